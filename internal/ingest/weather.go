package ingest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/chrissnell/pvreconcile/internal/log"
	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
)

// WeatherTable holds the weather-station rows of a dataset grouped by date.
type WeatherTable struct {
	days map[time.Time][]types.Reading
	// Dropped lists dates removed for having too few hourly rows.
	Dropped []time.Time
	// BadRows counts rows skipped for an unreadable timestamp.
	BadRows int
}

// Day returns the rows of date in timestamp order. A nil table has no rows.
func (t *WeatherTable) Day(date time.Time) []types.Reading {
	if t == nil {
		return nil
	}
	return t.days[types.DateOf(date)]
}

// Len returns the number of dates in the table.
func (t *WeatherTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.days)
}

// LoadWeather reads the weather table described by w. An empty path
// yields an empty table.
func LoadWeather(w config.WeatherData) (*WeatherTable, error) {
	out := &WeatherTable{days: make(map[time.Time][]types.Reading)}
	if w.Path == "" {
		return out, nil
	}

	t, err := ReadTable(w.Path, WeatherLayout(w))
	if err != nil {
		return nil, err
	}
	tsCol := t.Column(w.TimestampColumn)
	if tsCol < 0 {
		return nil, &ParseError{Path: w.Path, Err: fmt.Errorf("timestamp column %q not found", w.TimestampColumn)}
	}
	stCol := -1
	if w.StationColumn != "" {
		stCol = t.Column(w.StationColumn)
	}
	cols := make(map[types.Field]int, len(w.Columns))
	for f, name := range w.Columns {
		i := t.Column(name)
		if i < 0 {
			return nil, &ParseError{Path: w.Path, Err: fmt.Errorf("column %q for %s not found", name, f)}
		}
		cols[f] = i
	}

	cells := NewCells(w.MissingTokens)
	var rows []types.Reading
	for i, row := range t.Rows {
		ts, err := ParseTimestamp(Cell(row, tsCol), w.TimestampLayout)
		if err != nil {
			out.BadRows++
			log.Debug((&ParseError{Path: w.Path, Row: i + 1, Err: err}).Error())
			continue
		}
		r := types.NewReading("", ts)
		r.StationID = Cell(row, stCol)
		for f, c := range cols {
			// unparseable cells read as missing
			v, _ := cells.Number(Cell(row, c))
			r.Set(f, v)
		}
		rows = append(rows, r)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	if w.CumulativeIrradiance {
		Deaccumulate(rows)
	}

	for _, r := range rows {
		d := types.DateOf(r.Timestamp)
		out.days[d] = append(out.days[d], r)
	}
	if w.MinHoursPerDay > 0 {
		for d, rs := range out.days {
			if distinctHours(rs) < w.MinHoursPerDay {
				delete(out.days, d)
				out.Dropped = append(out.Dropped, d)
			}
		}
		sort.Slice(out.Dropped, func(i, j int) bool { return out.Dropped[i].Before(out.Dropped[j]) })
	}
	return out, nil
}

// mjToWatts converts an hourly energy total in MJ/m² to a mean W/m².
const mjToWatts = 1e6 / 3600

// Deaccumulate turns a cumulative daily irradiance column (MJ/m²) into
// hourly mean irradiance (W/m²) by differencing consecutive rows of each
// station. rows must be in timestamp order. The first row of a station
// becomes missing; the negative step at each daily reset clips to zero.
func Deaccumulate(rows []types.Reading) {
	prev := make(map[string]float64)
	for i := range rows {
		r := &rows[i]
		cur := r.Get(types.GlobalHorizontalRadiation)
		last, seen := prev[r.StationID]
		prev[r.StationID] = cur
		if !seen || types.IsMissing(cur) || types.IsMissing(last) {
			r.Set(types.GlobalHorizontalRadiation, types.Missing())
			continue
		}
		step := math.Max(cur-last, 0) * mjToWatts
		r.Set(types.GlobalHorizontalRadiation, math.Round(step*1e4)/1e4)
	}
}

func distinctHours(rows []types.Reading) int {
	seen := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		seen[r.Hour()] = struct{}{}
	}
	return len(seen)
}
