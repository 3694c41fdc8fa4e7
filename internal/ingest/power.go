package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/chrissnell/pvreconcile/internal/log"
	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
)

// PowerFile is the content of one raw PV file for one site.
type PowerFile struct {
	Path string
	// Days holds the readings of each calendar date in file order.
	Days map[time.Time][]types.Reading
	// BadCells counts numeric cells that could not be parsed and were
	// read as missing.
	BadCells int
	// BadRows counts rows skipped for an unreadable timestamp or hour.
	BadRows int
}

// Dates returns the dates of the file in chronological order.
func (f *PowerFile) Dates() []time.Time {
	dates := make([]time.Time, 0, len(f.Days))
	for d := range f.Days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// PowerReader reads the raw per-site PV files of a dataset.
type PowerReader struct {
	in     config.InputData
	layout Layout
	cells  Cells
	dateRe *regexp.Regexp
}

// NewPowerReader prepares a reader for the dataset input section.
func NewPowerReader(in config.InputData) (*PowerReader, error) {
	p := &PowerReader{in: in, layout: InputLayout(in), cells: NewCells(in.MissingTokens)}
	if in.DateFromFilename != "" {
		re, err := regexp.Compile(in.DateFromFilename)
		if err != nil {
			return nil, fmt.Errorf("invalid date_from_filename pattern: %w", err)
		}
		p.dateRe = re
	}
	return p, nil
}

// Files lists the raw files of site in lexical order.
func (p *PowerReader) Files(site config.SiteData) ([]string, error) {
	pattern := site.Pattern
	if pattern == "" {
		pattern = p.in.Pattern
	}
	files, err := filepath.Glob(filepath.Join(p.in.Dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad file pattern %q: %w", pattern, err)
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile extracts the readings of site from the file at path. A file
// that cannot be read or lacks the site's power column yields a
// *ParseError.
func (p *PowerReader) ReadFile(path string, site config.SiteData) (*PowerFile, error) {
	t, err := ReadTable(path, p.layout)
	if err != nil {
		return nil, err
	}

	apCol := t.Column(site.PowerColumn)
	if apCol < 0 {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("power column %q not found", site.PowerColumn)}
	}
	cols := map[types.Field]int{types.ActivePower: apCol}
	for f, name := range p.in.Columns {
		if f == types.ActivePower {
			continue
		}
		if i := t.Column(name); i >= 0 {
			cols[f] = i
		} else {
			log.Debugf("%s: column %q for %s not present", filepath.Base(path), name, f)
		}
	}

	var fileDate time.Time
	if p.dateRe != nil {
		fileDate, err = DateFromName(p.dateRe, filepath.Base(path), p.in.DateLayout)
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
	}
	positional := p.in.AlignMode == config.AlignPositional
	if (positional || p.in.TimestampColumn == "") && fileDate.IsZero() {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("file name carries no date")}
	}

	tsCol, hourCol := t.Column(p.in.TimestampColumn), t.Column(p.in.HourColumn)
	if !positional && tsCol < 0 && hourCol < 0 {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("neither timestamp column %q nor hour column %q found", p.in.TimestampColumn, p.in.HourColumn)}
	}

	out := &PowerFile{Path: path, Days: make(map[time.Time][]types.Reading)}
	for i, row := range t.Rows {
		var ts time.Time
		switch {
		case positional:
			ts = fileDate
		case tsCol >= 0:
			ts, err = ParseTimestamp(Cell(row, tsCol), p.in.TimestampLayout)
		default:
			var h int
			h, err = ParseHour(Cell(row, hourCol))
			ts = fileDate.Add(time.Duration(h) * time.Hour)
		}
		if err != nil {
			out.BadRows++
			log.Debug((&ParseError{Path: path, Row: i + 1, Err: err}).Error())
			continue
		}

		r := types.NewReading(site.ID, ts)
		for f, c := range cols {
			v, err := p.cells.Number(Cell(row, c))
			if err != nil {
				out.BadCells++
			}
			r.Set(f, v)
		}
		date := types.DateOf(ts)
		out.Days[date] = append(out.Days[date], r)
	}
	return out, nil
}
