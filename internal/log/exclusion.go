package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/chrissnell/pvreconcile/internal/types"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ExclusionLog is the plain-text, append-only audit file of one site.
// Each line is one ExclusionDecision. Every site gets its own file, so
// parallel site runs never share a writer.
type ExclusionLog struct {
	mu    sync.Mutex
	w     io.WriteCloser
	path  string
	lines int
}

// ExclusionLogPath returns the exclusion log location for a site.
func ExclusionLogPath(dir, siteID string) string {
	return filepath.Join(dir, siteID+".exclusions.log")
}

// OpenExclusionLog opens (or appends to) the exclusion log of siteID in dir.
// The file rotates once it reaches maxSizeMB; zero keeps lumberjack's
// default of 100 MB.
func OpenExclusionLog(dir, siteID string, maxSizeMB, maxBackups int) (*ExclusionLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", dir, err)
	}
	path := ExclusionLogPath(dir, siteID)

	// lumberjack opens lazily; open once now so an unwritable directory
	// fails before the run starts.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening exclusion log: %w", err)
	}
	f.Close()

	return &ExclusionLog{
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		},
		path: path,
	}, nil
}

// NewExclusionLog wraps an arbitrary writer, mostly for tests.
func NewExclusionLog(w io.WriteCloser) *ExclusionLog {
	return &ExclusionLog{w: w}
}

// Path returns the file backing the log, empty for wrapped writers.
func (l *ExclusionLog) Path() string {
	return l.path
}

// Record appends one decision.
func (l *ExclusionLog) Record(d types.ExclusionDecision) error {
	return l.writeLine(d.String())
}

// Summary appends the final accepted/excluded counts of a site run.
func (l *ExclusionLog) Summary(runID string, accepted, excluded, rows int) error {
	return l.writeLine(fmt.Sprintf("# run %s: %d days accepted, %d days excluded, %d rows written", runID, accepted, excluded, rows))
}

// Lines returns the number of lines written so far.
func (l *ExclusionLog) Lines() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}

func (l *ExclusionLog) writeLine(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := io.WriteString(l.w, s+"\n"); err != nil {
		return fmt.Errorf("writing exclusion log: %w", err)
	}
	l.lines++
	return nil
}

// Close flushes and closes the underlying writer.
func (l *ExclusionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Close()
}
