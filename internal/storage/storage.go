// Package storage writes finalized SiteTables and their audit trail.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/pvreconcile/internal/log"
	"github.com/chrissnell/pvreconcile/internal/storage/timescaledb"
	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
	"go.uber.org/multierr"
)

// Sink is a destination for finalized SiteTables.
type Sink interface {
	Name() string
	WriteSiteTable(ctx context.Context, t *types.SiteTable) error
	Close() error
}

// UnrecoverableIOError reports output that could not be written. It aborts
// the site run.
type UnrecoverableIOError struct {
	Path string
	Err  error
}

func (e *UnrecoverableIOError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *UnrecoverableIOError) Unwrap() error {
	return e.Err
}

// EnsureDir creates dir and checks that files can be created in it.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &UnrecoverableIOError{Path: dir, Err: err}
	}
	check, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return &UnrecoverableIOError{Path: dir, Err: err}
	}
	check.Close()
	return os.Remove(check.Name())
}

// OpenSinks builds every sink the output section asks for.
func OpenSinks(ctx context.Context, out config.OutputData, runID string) ([]Sink, error) {
	if err := EnsureDir(out.Dir); err != nil {
		return nil, err
	}

	var sinks []Sink
	for _, f := range out.Formats {
		switch f {
		case config.FormatCSV:
			sinks = append(sinks, &CSVSink{Dir: out.Dir})
		case config.FormatParquet:
			sinks = append(sinks, &ParquetSink{Dir: out.Dir})
		default:
			return nil, fmt.Errorf("unknown output format %q", f)
		}
	}

	if out.TimescaleDB != "" {
		ts, err := timescaledb.New(ctx, out.TimescaleDB, runID)
		if err != nil {
			return nil, multierr.Append(err, CloseSinks(sinks))
		}
		sinks = append(sinks, ts)
	}
	return sinks, nil
}

// CloseSinks closes every sink and combines their errors.
func CloseSinks(sinks []Sink) error {
	var err error
	for _, s := range sinks {
		err = multierr.Append(err, s.Close())
	}
	return err
}

// OutputFileMode is the permission of every table and dump written.
const OutputFileMode os.FileMode = 0o644

// replaceFile writes through write into a temporary file next to path and
// renames it into place with OutputFileMode.
func replaceFile(path string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return &UnrecoverableIOError{Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return &UnrecoverableIOError{Path: path, Err: err}
	}
	if err := tmp.Chmod(OutputFileMode); err != nil {
		tmp.Close()
		return &UnrecoverableIOError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &UnrecoverableIOError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &UnrecoverableIOError{Path: path, Err: err}
	}
	log.Debugf("wrote %s", path)
	return nil
}
