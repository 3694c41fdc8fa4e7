// Package gaps classifies runs of missing values in a numeric column and
// repairs the short ones. Runs longer than the configured limit are
// reported so the owning day can be excluded.
package gaps

import (
	"fmt"

	"github.com/chrissnell/pvreconcile/internal/runs"
	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
)

// Action is what the repairer does with one missing run.
type Action int

const (
	// FillBackward copies the next valid value (length-1 run at the start).
	FillBackward Action = iota
	// FillForward copies the previous valid value (length-1 run at the end).
	FillForward
	// FillMean uses the exact mean of both neighbours (length-1 interior run).
	FillMean
	// Interpolate fits the enclosing valid values (interior run up to the limit).
	Interpolate
	// FillEdge copies the nearest valid value (edge run up to the limit).
	FillEdge
	// ZeroFill writes zeros between two zero neighbours (Active_Power only).
	ZeroFill
	// Exclude leaves the run unrepaired and flags the owning day.
	Exclude
)

func (a Action) String() string {
	switch a {
	case FillBackward:
		return "backfill"
	case FillForward:
		return "forward-fill"
	case FillMean:
		return "mean"
	case Interpolate:
		return "interpolate"
	case FillEdge:
		return "edge-fill"
	case ZeroFill:
		return "zero-fill"
	case Exclude:
		return "exclude"
	}
	return "unknown"
}

// Gap is one classified run of missing values.
type Gap struct {
	runs.Run
	Action Action
}

// Options tunes classification and repair of one column.
type Options struct {
	// MaxGap is the longest run that is repaired. Values below 1 are treated as 1.
	MaxGap     int
	Method     config.InterpolationMethod
	PolyOrder  int
	PolyWindow int
	// ZeroFill enables zero-filling runs enclosed by two zero values.
	ZeroFill bool
}

// OptionsFor derives the options for field f from the cleaning config.
// Zero-fill only ever applies to Active_Power.
func OptionsFor(c config.CleaningData, f types.Field) Options {
	return Options{
		MaxGap:     c.MaxGapFor(f),
		Method:     c.Interpolation,
		PolyOrder:  c.PolyOrder,
		PolyWindow: c.PolyWindow,
		ZeroFill:   c.ZeroFillPower && f == types.ActivePower,
	}
}

// Classify decides the action for every maximal run of missing values in series.
func Classify(series []float64, opts Options) []Gap {
	maxGap := opts.MaxGap
	if maxGap < 1 {
		maxGap = 1
	}
	missing := runs.True(runs.Mask(series, types.IsMissing))

	var out []Gap
	for _, r := range missing {
		atStart := r.Start == 0
		atEnd := r.End() == len(series)

		g := Gap{Run: r}
		switch {
		case atStart && atEnd:
			g.Action = Exclude
		case opts.ZeroFill && !atStart && !atEnd && series[r.Start-1] == 0 && series[r.End()] == 0:
			g.Action = ZeroFill
		case r.Length > maxGap:
			g.Action = Exclude
		case r.Length == 1 && atStart:
			g.Action = FillBackward
		case r.Length == 1 && atEnd:
			g.Action = FillForward
		case r.Length == 1:
			g.Action = FillMean
		case atStart || atEnd:
			g.Action = FillEdge
		default:
			g.Action = Interpolate
		}
		out = append(out, g)
	}
	return out
}

// Repair returns a repaired copy of series and the classified gaps. Runs
// classified as Exclude stay missing in the copy.
func Repair(series []float64, opts Options) ([]float64, []Gap) {
	out := append([]float64(nil), series...)
	gaps := Classify(series, opts)
	if len(gaps) == 0 {
		return out, nil
	}

	var fit interpolator
	for _, g := range gaps {
		switch g.Action {
		case FillBackward:
			out[g.Start] = series[g.End()]
		case FillForward:
			out[g.Start] = series[g.Start-1]
		case FillMean:
			out[g.Start] = (series[g.Start-1] + series[g.End()]) / 2
		case FillEdge:
			v := series[g.End()]
			if g.Start > 0 {
				v = series[g.Start-1]
			}
			for i := g.Start; i < g.End(); i++ {
				out[i] = v
			}
		case ZeroFill:
			for i := g.Start; i < g.End(); i++ {
				out[i] = 0
			}
		case Interpolate:
			if fit == nil {
				fit = newInterpolator(series, opts)
			}
			for i := g.Start; i < g.End(); i++ {
				out[i] = fit.at(g.Run, i)
			}
		}
	}
	return out, gaps
}

// RepairDay repairs every listed field of day in place and returns a
// too-many-missing decision for each field with an unrepairable run.
func RepairDay(day *types.DailyRecord, fields []types.Field, c config.CleaningData) []types.ExclusionDecision {
	var decisions []types.ExclusionDecision
	for _, f := range fields {
		opts := OptionsFor(c, f)
		repaired, gaps := Repair(day.Column(f), opts)
		day.SetColumn(f, repaired)

		var bad []runs.Run
		for _, g := range gaps {
			if g.Action == Exclude {
				bad = append(bad, g.Run)
			}
		}
		if len(bad) == 0 {
			continue
		}

		longest := runs.Longest(bad)
		d := types.DayDecision(day.SiteID, day.Date, types.ReasonTooManyMissing, f.String(),
			fmt.Sprintf("%d missing values from hour %d, limit %d", longest.Length, day.Readings[longest.Start].Hour(), opts.MaxGap))
		if longest.Length == len(day.Readings) {
			d.Detail = "no valid values"
		}
		for _, i := range runs.Indices(bad) {
			d.Hours = append(d.Hours, day.Readings[i].Hour())
		}
		decisions = append(decisions, d)
	}
	return decisions
}
