// Package align joins a day of power readings with the weather table onto
// a 24-slot hourly grid.
package align

import (
	"fmt"
	"sort"
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
)

// Options configures an Aligner.
type Options struct {
	Mode             config.AlignMode
	Sources          map[types.Field]config.Source
	Blocklist        []time.Time
	DefaultStationID string
	// MaxFillHours bounds how many consecutive weather hours may be
	// carried forward to cover hours the power series needs.
	MaxFillHours int
	// RequireWeather fails dates with no weather rows.
	RequireWeather bool
}

// Aligner maps power and weather series onto a shared hourly timeline.
type Aligner struct {
	opts    Options
	blocked map[time.Time]struct{}
}

// New creates an Aligner. Unset sources default to config.DefaultSources.
func New(opts Options) *Aligner {
	if opts.Mode == "" {
		opts.Mode = config.AlignHour
	}
	if opts.Sources == nil {
		opts.Sources = config.DefaultSources()
	}
	if opts.DefaultStationID == "" {
		opts.DefaultStationID = config.DefaultStationID
	}
	a := &Aligner{opts: opts, blocked: make(map[time.Time]struct{}, len(opts.Blocklist))}
	for _, d := range opts.Blocklist {
		a.blocked[types.DateOf(d)] = struct{}{}
	}
	return a
}

// Blocked reports whether date is on the blocklist.
func (a *Aligner) Blocked(date time.Time) bool {
	_, ok := a.blocked[types.DateOf(date)]
	return ok
}

// Align produces the 24-slot DailyRecord of siteID for date from the raw
// power samples and the weather rows of that date. Samples dated on other
// days are ignored. In positional mode power timestamps are ignored and
// samples take the weather hours in order.
func (a *Aligner) Align(siteID string, date time.Time, power, weather []types.Reading) (types.DailyRecord, error) {
	date = types.DateOf(date)
	fail := func(cause error, detail string) (types.DailyRecord, error) {
		return types.DailyRecord{}, &AlignmentError{SiteID: siteID, Date: date, Cause: cause, Detail: detail}
	}

	if a.Blocked(date) {
		return fail(ErrBlocklisted, "")
	}

	wx := hourly(date, weather)
	if len(wx) == 0 && (a.opts.RequireWeather || a.opts.Mode == config.AlignPositional) {
		return fail(ErrNoWeather, "")
	}
	if len(wx) > 0 {
		a.synthesizeMidnight(wx)
	}

	var pw map[int]types.Reading
	switch a.opts.Mode {
	case config.AlignPositional:
		hours, err := a.fillContiguous(wx)
		if err != nil {
			return fail(ErrLengthMismatch, err.Error())
		}
		if len(power) != len(hours) {
			return fail(ErrLengthMismatch, fmt.Sprintf("%d power rows, %d weather hours", len(power), len(hours)))
		}
		pw = make(map[int]types.Reading, len(power))
		for i, r := range power {
			pw[hours[i]] = r
		}
	default:
		pw = hourly(date, power)
		if len(pw) == 0 {
			return fail(ErrLengthMismatch, "no power samples for date")
		}
		if len(wx) > 0 {
			if err := a.fillRequired(wx, pw); err != nil {
				return fail(ErrLengthMismatch, err.Error())
			}
		}
	}

	return a.merge(siteID, date, pw, wx), nil
}

// synthesizeMidnight carries the earliest weather record back to 00:00
// when the table has no record for that hour.
func (a *Aligner) synthesizeMidnight(wx map[int]types.Reading) {
	if _, ok := wx[0]; ok {
		return
	}
	earliest := sortedHours(wx)[0]
	r := wx[earliest]
	r.Timestamp = r.Timestamp.Add(-time.Duration(earliest) * time.Hour)
	r.StationID = a.opts.DefaultStationID
	wx[0] = r
}

// fillRequired inserts every hour the power series has but the weather
// table lacks by carrying the preceding weather hour forward.
func (a *Aligner) fillRequired(wx, pw map[int]types.Reading) error {
	for _, h := range sortedHours(pw) {
		if _, ok := wx[h]; ok {
			continue
		}
		if err := a.carryForward(wx, h); err != nil {
			return err
		}
	}
	return nil
}

// fillContiguous fills interior weather gaps so the table covers every
// hour from 00:00 to its last record, and returns those hours.
func (a *Aligner) fillContiguous(wx map[int]types.Reading) ([]int, error) {
	hours := sortedHours(wx)
	last := hours[len(hours)-1]
	out := make([]int, 0, last+1)
	for h := 0; h <= last; h++ {
		if _, ok := wx[h]; !ok {
			if err := a.carryForward(wx, h); err != nil {
				return nil, err
			}
		}
		out = append(out, h)
	}
	return out, nil
}

func (a *Aligner) carryForward(wx map[int]types.Reading, h int) error {
	prev := -1
	for p := h - 1; p >= 0; p-- {
		if _, ok := wx[p]; ok {
			prev = p
			break
		}
	}
	if prev < 0 {
		return fmt.Errorf("no weather record before hour %d", h)
	}
	if h-prev > a.opts.MaxFillHours {
		return fmt.Errorf("weather hour %d is %d hours after the last record, fill limit is %d", h, h-prev, a.opts.MaxFillHours)
	}
	// carry hour by hour so intermediate gaps are filled too
	for p := prev + 1; p <= h; p++ {
		r := wx[p-1]
		r.Timestamp = r.Timestamp.Add(time.Hour)
		wx[p] = r
	}
	return nil
}

func (a *Aligner) merge(siteID string, date time.Time, pw, wx map[int]types.Reading) types.DailyRecord {
	day := types.NewAlignedDay(siteID, date)
	for h := range day.Readings {
		slot := &day.Readings[h]
		p, hasP := pw[h]
		w, hasW := wx[h]
		if hasW {
			slot.StationID = w.StationID
		}
		for _, f := range types.AllFields {
			switch a.opts.Sources[f] {
			case config.SourcePower:
				if hasP {
					slot.Set(f, p.Get(f))
				}
			case config.SourceWeather:
				if hasW {
					slot.Set(f, w.Get(f))
				}
			default:
				if hasP && !types.IsMissing(p.Get(f)) {
					slot.Set(f, p.Get(f))
				} else if hasW {
					slot.Set(f, w.Get(f))
				}
			}
		}
	}
	return day
}

// hourly groups readings dated on date by hour of day and averages each
// field over the present values. It is the hourly mean resample of
// sub-hourly data.
func hourly(date time.Time, rows []types.Reading) map[int]types.Reading {
	type acc struct {
		first types.Reading
		sum   [types.NumFields]float64
		n     [types.NumFields]int
	}
	groups := make(map[int]*acc)
	for _, r := range rows {
		if !types.DateOf(r.Timestamp).Equal(date) {
			continue
		}
		h := r.Hour()
		g, ok := groups[h]
		if !ok {
			g = &acc{first: r}
			groups[h] = g
		}
		for f, v := range r.Values {
			if types.IsMissing(v) {
				continue
			}
			g.sum[f] += v
			g.n[f]++
		}
	}

	out := make(map[int]types.Reading, len(groups))
	for h, g := range groups {
		r := types.NewReading(g.first.SiteID, date.Add(time.Duration(h)*time.Hour))
		r.StationID = g.first.StationID
		for f := range r.Values {
			if g.n[f] > 0 {
				r.Values[f] = g.sum[f] / float64(g.n[f])
			}
		}
		out[h] = r
	}
	return out
}

func sortedHours(m map[int]types.Reading) []int {
	hours := make([]int, 0, len(m))
	for h := range m {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours
}
