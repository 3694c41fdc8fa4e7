// Package daylight trims a day's record to the hours around generation.
package daylight

import (
	"github.com/chrissnell/pvreconcile/internal/types"
)

// Window is an inclusive range of hours of day.
type Window struct {
	First, Last int
}

// Find returns the generation window of day expanded by margin hours and
// clipped to the hours present in the record. ok is false when no hour has
// positive power; such a day carries no generation and is passed on
// unchanged. Otherwise an hour belongs to the window when it has positive
// power or positive irradiance. Hours of day are used rather than slot
// indices so trimming an already-windowed day yields the same window.
func Find(day types.DailyRecord, margin int) (w Window, ok bool) {
	if !generates(day) {
		return Window{}, false
	}
	first, last := -1, -1
	for _, r := range day.Readings {
		if !positive(r.Get(types.ActivePower)) && !positive(r.Get(types.GlobalHorizontalRadiation)) {
			continue
		}
		if first < 0 {
			first = r.Hour()
		}
		last = r.Hour()
	}
	if first < 0 {
		return Window{}, false
	}

	lo, hi := 0, types.HoursPerDay-1
	if n := len(day.Readings); n > 0 {
		lo, hi = day.Readings[0].Hour(), day.Readings[n-1].Hour()
	}
	return Window{First: max(first-margin, lo), Last: min(last+margin, hi)}, true
}

// Trim restricts day to its generation window. Days without generation
// are returned unchanged.
func Trim(day types.DailyRecord, margin int) types.DailyRecord {
	w, ok := Find(day, margin)
	if !ok {
		return day
	}
	out := day
	out.Readings = nil
	for _, r := range day.Readings {
		if h := r.Hour(); h >= w.First && h <= w.Last {
			out.Readings = append(out.Readings, r)
		}
	}
	return out
}

func generates(day types.DailyRecord) bool {
	for _, r := range day.Readings {
		if positive(r.Get(types.ActivePower)) {
			return true
		}
	}
	return false
}

func positive(v float64) bool {
	return !types.IsMissing(v) && v > 0
}
