package types

import (
	"fmt"
	"time"
)

// Reason names why data was flagged or removed.
type Reason string

const (
	ReasonTooManyMissing   Reason = "too-many-missing"
	ReasonGHIAPMismatch    Reason = "GHI-AP-mismatch"
	ReasonIdenticalRun     Reason = "identical-run"
	ReasonOutOfRange       Reason = "out-of-range"
	ReasonLowCorrelation   Reason = "low-correlation"
	ReasonZeroPowerRun     Reason = "zero-power-run"
	ReasonNightGeneration  Reason = "night-generation"
	ReasonNegativePower    Reason = "negative-power"
	ReasonAlignmentFailure Reason = "alignment-failure"
)

var validReasons = map[Reason]struct{}{
	ReasonTooManyMissing:   {},
	ReasonGHIAPMismatch:    {},
	ReasonIdenticalRun:     {},
	ReasonOutOfRange:       {},
	ReasonLowCorrelation:   {},
	ReasonZeroPowerRun:     {},
	ReasonNightGeneration:  {},
	ReasonNegativePower:    {},
	ReasonAlignmentFailure: {},
}

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	_, ok := validReasons[r]
	return ok
}

// Scope says how much data a decision covers.
type Scope string

const (
	// ScopeValue flags individual values as missing; the day survives
	// unless gap repair later rejects it.
	ScopeValue Scope = "value"
	// ScopeDay removes the whole calendar date.
	ScopeDay Scope = "day"
	// ScopeSeries removes the entire site or inverter series.
	ScopeSeries Scope = "whole-series"
)

// ExclusionDecision records one flag raised against a site's data.
type ExclusionDecision struct {
	SiteID string
	Date   time.Time
	Reason Reason
	Scope  Scope
	Field  string
	Hours  []int
	Detail string
}

// Excludes reports whether the decision removes data from the output.
func (d ExclusionDecision) Excludes() bool {
	return d.Scope == ScopeDay || d.Scope == ScopeSeries
}

func (d ExclusionDecision) String() string {
	date := ""
	if !d.Date.IsZero() {
		date = d.Date.Format(DateLayout)
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s", date, d.Reason, d.Scope, d.Field, d.Detail)
}

// DayDecision builds a day-scoped decision.
func DayDecision(siteID string, date time.Time, reason Reason, field, detail string) ExclusionDecision {
	return ExclusionDecision{
		SiteID: siteID,
		Date:   DateOf(date),
		Reason: reason,
		Scope:  ScopeDay,
		Field:  field,
		Detail: detail,
	}
}

// ExcludedDates returns the set of dates removed by day-scoped decisions.
func ExcludedDates(decisions []ExclusionDecision) map[time.Time]struct{} {
	out := make(map[time.Time]struct{})
	for _, d := range decisions {
		if d.Scope == ScopeDay {
			out[DateOf(d.Date)] = struct{}{}
		}
	}
	return out
}

// HasSeriesExclusion reports whether any decision excludes the whole series.
func HasSeriesExclusion(decisions []ExclusionDecision) bool {
	for _, d := range decisions {
		if d.Scope == ScopeSeries {
			return true
		}
	}
	return false
}
