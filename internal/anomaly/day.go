package anomaly

import (
	"fmt"

	"github.com/chrissnell/pvreconcile/internal/runs"
	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
	"github.com/chrissnell/pvreconcile/pkg/solar"
)

// GHIAPMismatch flags the day when irradiance is above the threshold while
// power is not positive, or when power is produced with zero irradiance
// outside the margin around hours that do have irradiance.
func GHIAPMismatch(day types.DailyRecord, m config.MismatchData) []types.ExclusionDecision {
	ghi := day.Column(types.GlobalHorizontalRadiation)
	ap := day.Column(types.ActivePower)

	var noPower, noSun []int
	for i := range day.Readings {
		g, p := ghi[i], ap[i]
		if types.IsMissing(g) || types.IsMissing(p) {
			continue
		}
		if g > m.GHIThreshold && p <= 0 {
			noPower = append(noPower, day.Readings[i].Hour())
		}
		if p > m.PowerThreshold && g == 0 && !nearIrradiance(ghi, i, m.MarginHours) {
			noSun = append(noSun, day.Readings[i].Hour())
		}
	}

	var out []types.ExclusionDecision
	if len(noPower) > 0 {
		d := types.DayDecision(day.SiteID, day.Date, types.ReasonGHIAPMismatch, types.ActivePower.String(),
			fmt.Sprintf("irradiance without power at %d hours", len(noPower)))
		d.Hours = noPower
		out = append(out, d)
	}
	if len(noSun) > 0 {
		d := types.DayDecision(day.SiteID, day.Date, types.ReasonGHIAPMismatch, types.GlobalHorizontalRadiation.String(),
			fmt.Sprintf("power without irradiance at %d hours", len(noSun)))
		d.Hours = noSun
		out = append(out, d)
	}
	return out
}

// nearIrradiance reports whether any slot within margin of i has positive irradiance.
func nearIrradiance(ghi []float64, i, margin int) bool {
	for j := i - margin; j <= i+margin; j++ {
		if j == i || j < 0 || j >= len(ghi) {
			continue
		}
		if !types.IsMissing(ghi[j]) && ghi[j] > 0 {
			return true
		}
	}
	return false
}

// ZeroPowerRun flags the day when n or more consecutive daylight hours
// report exactly zero power. Daylight is irradiance above zero; for days
// without any irradiance values it is the span between the first and last
// hour with generation.
func ZeroPowerRun(day types.DailyRecord, n int) []types.ExclusionDecision {
	if n <= 0 {
		return nil
	}
	ghi := day.Column(types.GlobalHorizontalRadiation)
	ap := day.Column(types.ActivePower)

	daylight := runs.Mask(ghi, func(v float64) bool { return !types.IsMissing(v) && v > 0 })
	if !hasAny(ghi) {
		first, last := generationSpan(ap)
		for i := range daylight {
			daylight[i] = first >= 0 && i >= first && i <= last
		}
	}

	mask := make([]bool, len(ap))
	for i, v := range ap {
		mask[i] = daylight[i] && v == 0
	}
	longest := runs.Longest(runs.True(mask))
	if longest.Length < n {
		return nil
	}
	d := types.DayDecision(day.SiteID, day.Date, types.ReasonZeroPowerRun, types.ActivePower.String(),
		fmt.Sprintf("%d consecutive zero-power daylight hours from hour %d", longest.Length, day.Readings[longest.Start].Hour()))
	for i := longest.Start; i < longest.End(); i++ {
		d.Hours = append(d.Hours, day.Readings[i].Hour())
	}
	return []types.ExclusionDecision{d}
}

// NightGeneration flags the day when power above the threshold is reported
// in an hour during which the sun never rises above maxElevation degrees.
func NightGeneration(day types.DailyRecord, loc Location, ng config.NightGenerationData) []types.ExclusionDecision {
	var hours []int
	for _, r := range day.Readings {
		p := r.Get(types.ActivePower)
		if types.IsMissing(p) || p <= ng.PowerThreshold {
			continue
		}
		if solar.HourlyMaxElevation(loc.instant(r.Timestamp), loc.Latitude, loc.Longitude) < ng.MaxElevation {
			hours = append(hours, r.Hour())
		}
	}
	if len(hours) == 0 {
		return nil
	}
	detail := fmt.Sprintf("generation with the sun down at %d hours", len(hours))
	if rise, set, ok := solar.SunriseSunset(loc.instant(day.Date), loc.Latitude, loc.Longitude); ok {
		tz := loc.zone()
		detail += fmt.Sprintf(" (sunrise %s, sunset %s)", solar.FormatSunTime(rise, tz), solar.FormatSunTime(set, tz))
	}
	d := types.DayDecision(day.SiteID, day.Date, types.ReasonNightGeneration, types.ActivePower.String(), detail)
	d.Hours = hours
	return []types.ExclusionDecision{d}
}

func generationSpan(ap []float64) (first, last int) {
	first, last = -1, -1
	for i, v := range ap {
		if !types.IsMissing(v) && v > 0 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last
}

func hasAny(series []float64) bool {
	for _, v := range series {
		if !types.IsMissing(v) {
			return true
		}
	}
	return false
}
