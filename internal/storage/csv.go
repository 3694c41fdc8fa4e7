package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
)

// TimestampHeader is the first column of every SiteTable file.
const TimestampHeader = "timestamp"

// CSVSink writes the canonical <site>.csv table.
type CSVSink struct {
	Dir string
}

// Path returns the CSV path for site.
func (s *CSVSink) Path(siteID string) string {
	return filepath.Join(s.Dir, siteID+".csv")
}

func (s *CSVSink) Name() string {
	return "csv"
}

func (s *CSVSink) WriteSiteTable(_ context.Context, t *types.SiteTable) error {
	return replaceFile(s.Path(t.SiteID), func(f *os.File) error {
		return WriteCSV(f, t.Fields, t.Rows)
	})
}

func (s *CSVSink) Close() error {
	return nil
}

// Header returns the header row for fields.
func Header(fields []types.Field) []string {
	h := make([]string, 0, len(fields)+1)
	h = append(h, TimestampHeader)
	for _, f := range fields {
		h = append(h, f.String())
	}
	return h
}

// WriteCSV writes rows with the canonical header. Missing values are
// empty cells.
func WriteCSV(w io.Writer, fields []types.Field, rows []types.Reading) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	if err := cw.Write(Header(fields)); err != nil {
		return err
	}
	rec := make([]string, len(fields)+1)
	for _, r := range rows {
		rec[0] = r.Timestamp.Format(types.TimestampLayout)
		for i, f := range fields {
			rec[i+1] = FormatValue(r.Get(f))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// FormatValue renders v in the shortest form that reads back exactly.
func FormatValue(v float64) string {
	if types.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadCSV parses a SiteTable file written by WriteCSV.
func ReadCSV(r io.Reader, siteID string) (*types.SiteTable, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) == 0 || strings.TrimSpace(header[0]) != TimestampHeader {
		return nil, fmt.Errorf("first column must be %q", TimestampHeader)
	}
	fields := make([]types.Field, 0, len(header)-1)
	for _, name := range header[1:] {
		f, ok := types.ParseField(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		fields = append(fields, f)
	}

	t := types.NewSiteTable(siteID, fields)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := time.Parse(types.TimestampLayout, rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		reading := types.NewReading(siteID, ts)
		for i, f := range fields {
			if rec[i+1] == "" {
				continue
			}
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, f, err)
			}
			reading.Set(f, v)
		}
		t.Append(reading)
	}
	return t, nil
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path, siteID string) (*types.SiteTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, siteID)
}
