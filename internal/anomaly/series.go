package anomaly

import (
	"fmt"
	"math"

	"github.com/chrissnell/pvreconcile/internal/runs"
	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
	"gonum.org/v1/gonum/stat"
)

// Correlation returns the Pearson correlation between Active_Power and
// irradiance over every hour of days where both are present, and the
// number of pairs used. It is NaN when fewer than two pairs exist or
// either column is constant.
func Correlation(days []types.DailyRecord) (float64, int) {
	var ap, ghi []float64
	for _, d := range days {
		for _, r := range d.Readings {
			p, g := r.Get(types.ActivePower), r.Get(types.GlobalHorizontalRadiation)
			if types.IsMissing(p) || types.IsMissing(g) {
				continue
			}
			ap = append(ap, p)
			ghi = append(ghi, g)
		}
	}
	if len(ap) < 2 {
		return math.NaN(), len(ap)
	}
	return stat.Correlation(ap, ghi, nil), len(ap)
}

// LowCorrelation excludes the whole series when the power/irradiance
// correlation is below threshold or cannot be computed.
func LowCorrelation(siteID string, days []types.DailyRecord, threshold float64) []types.ExclusionDecision {
	r, n := Correlation(days)
	if !math.IsNaN(r) && r >= threshold {
		return nil
	}
	return []types.ExclusionDecision{{
		SiteID: siteID,
		Reason: types.ReasonLowCorrelation,
		Scope:  types.ScopeSeries,
		Field:  types.ActivePower.String(),
		Detail: fmt.Sprintf("correlation %.4f over %d hours, minimum %.4f", r, n, threshold),
	}}
}

// IdenticalRuns returns the runs of at least k consecutive identical,
// present, non-zero values.
func IdenticalRuns(series []float64, k int) []runs.Run {
	if k < 2 {
		return nil
	}
	var out []runs.Run
	for _, vr := range runs.Values(series) {
		if vr.Length >= k && !types.IsMissing(vr.Value) && vr.Value != 0 {
			out = append(out, vr.Run)
		}
	}
	return out
}

// MarkIdenticalRuns scans field f across the chronologically ordered days
// as one series and marks every stuck run of k or more values missing.
// Runs do not continue across a gap between non-consecutive dates.
// It returns one value decision per affected day.
func MarkIdenticalRuns(days []types.DailyRecord, f types.Field, k int) []types.ExclusionDecision {
	if k < 2 || len(days) == 0 {
		return nil
	}

	type slot struct{ day, idx int }
	var series []float64
	var where []slot
	for di, d := range days {
		if di > 0 && !days[di-1].Date.AddDate(0, 0, 1).Equal(d.Date) {
			series = append(series, types.Missing())
			where = append(where, slot{-1, -1})
		}
		for i, r := range d.Readings {
			series = append(series, r.Get(f))
			where = append(where, slot{di, i})
		}
	}

	hours := make(map[int][]int)
	values := make(map[int]float64)
	for _, r := range IdenticalRuns(series, k) {
		for i := r.Start; i < r.End(); i++ {
			s := where[i]
			values[s.day] = series[i]
			days[s.day].Readings[s.idx].Set(f, types.Missing())
			hours[s.day] = append(hours[s.day], days[s.day].Readings[s.idx].Hour())
		}
	}

	var out []types.ExclusionDecision
	for di, d := range days {
		h, ok := hours[di]
		if !ok {
			continue
		}
		out = append(out, types.ExclusionDecision{
			SiteID: d.SiteID,
			Date:   d.Date,
			Reason: types.ReasonIdenticalRun,
			Scope:  types.ScopeValue,
			Field:  f.String(),
			Hours:  h,
			Detail: fmt.Sprintf("stuck at %v for %d hours, limit %d", values[di], len(h), k),
		})
	}
	return out
}

// ShiftToMinimum subtracts the series minimum of Active_Power from every
// present value so the lowest reading becomes zero. It returns the offset
// removed, or 0 when the series has no power values.
func ShiftToMinimum(days []types.DailyRecord) float64 {
	lo := math.Inf(1)
	for _, d := range days {
		for _, r := range d.Readings {
			if v := r.Get(types.ActivePower); !types.IsMissing(v) && v < lo {
				lo = v
			}
		}
	}
	if math.IsInf(lo, 1) || lo == 0 {
		return 0
	}
	for di := range days {
		for i := range days[di].Readings {
			r := &days[di].Readings[i]
			if v := r.Get(types.ActivePower); !types.IsMissing(v) {
				r.Set(types.ActivePower, v-lo)
			}
		}
	}
	return lo
}

// LowOutput marks Active_Power missing wherever it is at most MaxFraction
// of the series peak while irradiance exceeds MinGHI. It returns one value
// decision per affected day.
func LowOutput(days []types.DailyRecord, lo config.LowOutputData) []types.ExclusionDecision {
	peak := 0.0
	for _, d := range days {
		for _, r := range d.Readings {
			if v := r.Get(types.ActivePower); !types.IsMissing(v) && v > peak {
				peak = v
			}
		}
	}
	if peak <= 0 {
		return nil
	}

	var out []types.ExclusionDecision
	for di := range days {
		day := &days[di]
		var hours []int
		for i := range day.Readings {
			r := &day.Readings[i]
			p, g := r.Get(types.ActivePower), r.Get(types.GlobalHorizontalRadiation)
			if types.IsMissing(p) || types.IsMissing(g) {
				continue
			}
			if p/peak <= lo.MaxFraction && g > lo.MinGHI {
				r.Set(types.ActivePower, types.Missing())
				hours = append(hours, r.Hour())
			}
		}
		if len(hours) > 0 {
			detail := fmt.Sprintf("output at most %.2f of peak %v with GHI above %v", lo.MaxFraction, peak, lo.MinGHI)
			out = append(out, valueDecision(day, types.ReasonGHIAPMismatch, types.ActivePower, hours, detail))
		}
	}
	return out
}
