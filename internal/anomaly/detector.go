// Package anomaly holds the independent screens that flag implausible or
// faulty PV data. Value screens mark individual values missing so gap
// repair re-evaluates them; day screens exclude a calendar date; series
// screens exclude a whole site or inverter. Every screen reports every
// hit, so a day can carry several reasons.
package anomaly

import (
	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
)

// Detector runs the screens configured for one site.
type Detector struct {
	cfg      config.CleaningData
	capacity float64
	loc      *Location
}

// New creates a Detector. loc may be nil when the site has no
// coordinates; the solar screens are then skipped.
func New(cfg config.CleaningData, capacityKW float64, loc *Location) *Detector {
	return &Detector{cfg: cfg, capacity: capacityKW, loc: loc}
}

// NewForSite builds a Detector from a site entry of the lookup table.
func NewForSite(cfg config.CleaningData, site config.SiteData) (*Detector, error) {
	var loc *Location
	if site.HasLocation() {
		tz, err := site.Location()
		if err != nil {
			return nil, err
		}
		loc = &Location{Latitude: *site.Latitude, Longitude: *site.Longitude, TZ: tz}
	}
	return New(cfg, site.CapacityKW, loc), nil
}

// ScreenValues normalises Active_Power and marks out-of-range values
// missing in place. It must run before gap repair.
func (d *Detector) ScreenValues(day *types.DailyRecord) []types.ExclusionDecision {
	out := Normalize(day, d.cfg, d.capacity)
	out = append(out, OutOfRange(day, d.cfg.Ranges)...)
	if d.cfg.ClearSky.Enabled && d.loc != nil {
		out = append(out, ClearSky(day, *d.loc, d.cfg.ClearSky)...)
	}
	return out
}

// ShiftSeries removes the series minimum of Active_Power when the dataset
// asks for it and returns the offset. It runs before ScreenValues.
func (d *Detector) ShiftSeries(days []types.DailyRecord) float64 {
	if !d.cfg.ShiftToMinimum {
		return 0
	}
	return ShiftToMinimum(days)
}

// ScreenSeries runs the screens that look at the whole chronologically
// ordered series: low output under strong irradiance, stuck-sensor runs,
// which may span days and are marked missing in place, and the
// correlation screen.
func (d *Detector) ScreenSeries(siteID string, days []types.DailyRecord) []types.ExclusionDecision {
	var out []types.ExclusionDecision
	if d.cfg.LowOutput.Enabled {
		out = append(out, LowOutput(days, d.cfg.LowOutput)...)
	}
	if d.cfg.IdenticalRun > 0 {
		for _, f := range d.cfg.IdenticalRunFields {
			out = append(out, MarkIdenticalRuns(days, f, d.cfg.IdenticalRun)...)
		}
	}
	if d.cfg.MinCorrelation != nil {
		out = append(out, LowCorrelation(siteID, days, *d.cfg.MinCorrelation)...)
	}
	return out
}

// ScreenDay runs the day-level predicates on a repaired day.
func (d *Detector) ScreenDay(day types.DailyRecord) []types.ExclusionDecision {
	var out []types.ExclusionDecision
	if d.cfg.Mismatch.Enabled {
		out = append(out, GHIAPMismatch(day, d.cfg.Mismatch)...)
	}
	out = append(out, ZeroPowerRun(day, d.cfg.ZeroPowerRun)...)
	if d.cfg.NightGeneration.Enabled && d.loc != nil {
		out = append(out, NightGeneration(day, *d.loc, d.cfg.NightGeneration)...)
	}
	return out
}
