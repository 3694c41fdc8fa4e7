package anomaly

import (
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
	"github.com/chrissnell/pvreconcile/pkg/solar"
)

// Normalize applies the negative-power policy, the zero snap and the
// capacity clip to Active_Power in place. Negative readings are recorded
// as value decisions whatever the policy.
func Normalize(day *types.DailyRecord, c config.CleaningData, capacityKW float64) []types.ExclusionDecision {
	var hours []int
	for i := range day.Readings {
		r := &day.Readings[i]
		v := r.Get(types.ActivePower)
		if types.IsMissing(v) {
			continue
		}
		if v < 0 {
			switch {
			case -v <= c.NegativeTolerance:
				v = 0
			case c.NegativePower == config.NegativeAbs:
				v = -v
			case c.NegativePower == config.NegativeZero:
				v = 0
			default:
				v = types.Missing()
			}
			hours = append(hours, r.Hour())
		}
		if !types.IsMissing(v) {
			if math.Abs(v) < c.ZeroSnap {
				v = 0
			}
			if c.ClipToCapacity && capacityKW > 0 && v > capacityKW {
				v = capacityKW
			}
		}
		r.Set(types.ActivePower, v)
	}
	if len(hours) == 0 {
		return nil
	}
	return []types.ExclusionDecision{{
		SiteID: day.SiteID,
		Date:   day.Date,
		Reason: types.ReasonNegativePower,
		Scope:  types.ScopeValue,
		Field:  types.ActivePower.String(),
		Hours:  hours,
		Detail: fmt.Sprintf("%d negative values, policy %s", len(hours), c.NegativePower),
	}}
}

// OutOfRange marks every value outside its physical range as missing and
// returns one value decision per affected field.
func OutOfRange(day *types.DailyRecord, ranges map[types.Field]config.Range) []types.ExclusionDecision {
	var out []types.ExclusionDecision
	for _, f := range types.AllFields {
		rg, ok := ranges[f]
		if !ok {
			continue
		}
		var hours []int
		for i := range day.Readings {
			v := day.Readings[i].Get(f)
			if types.IsMissing(v) || rg.Contains(v) {
				continue
			}
			day.Readings[i].Set(f, types.Missing())
			hours = append(hours, day.Readings[i].Hour())
		}
		if len(hours) > 0 {
			out = append(out, valueDecision(day, types.ReasonOutOfRange, f, hours, "outside physical range"))
		}
	}
	return out
}

// Location is a site's position for solar geometry.
type Location struct {
	Latitude, Longitude float64
	// TZ interprets the naive local timestamps of the site.
	TZ *time.Location
}

// instant converts a naive site-local timestamp into a real instant.
func (l Location) instant(naive time.Time) time.Time {
	y, m, d := naive.Date()
	return time.Date(y, m, d, naive.Hour(), naive.Minute(), naive.Second(), 0, l.zone())
}

func (l Location) zone() *time.Location {
	if l.TZ == nil {
		return time.UTC
	}
	return l.TZ
}

// ClearSky marks irradiance above factor times the clear-sky estimate
// plus slack as missing.
func ClearSky(day *types.DailyRecord, loc Location, cs config.ClearSkyData) []types.ExclusionDecision {
	var hours []int
	for i := range day.Readings {
		r := &day.Readings[i]
		v := r.Get(types.GlobalHorizontalRadiation)
		if types.IsMissing(v) {
			continue
		}
		limit := cs.Factor*solar.HourlyMaxClearSky(loc.instant(r.Timestamp), loc.Latitude, loc.Longitude) + cs.Slack
		if v > limit {
			r.Set(types.GlobalHorizontalRadiation, types.Missing())
			hours = append(hours, r.Hour())
		}
	}
	if len(hours) == 0 {
		return nil
	}
	return []types.ExclusionDecision{valueDecision(day, types.ReasonOutOfRange, types.GlobalHorizontalRadiation, hours, "above clear-sky bound")}
}

func valueDecision(day *types.DailyRecord, reason types.Reason, f types.Field, hours []int, detail string) types.ExclusionDecision {
	return types.ExclusionDecision{
		SiteID: day.SiteID,
		Date:   day.Date,
		Reason: reason,
		Scope:  types.ScopeValue,
		Field:  f.String(),
		Hours:  hours,
		Detail: detail,
	}
}
