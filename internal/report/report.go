// Package report summarizes a finalized SiteTable for the run audit.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/montanaflynn/stats"
)

// ColumnSummary describes the present values of one output column.
type ColumnSummary struct {
	Field   types.Field
	Count   int
	Missing int
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
}

// Summarize computes a ColumnSummary for every field of table. Columns
// without values report NaN statistics.
func Summarize(table *types.SiteTable) []ColumnSummary {
	out := make([]ColumnSummary, 0, len(table.Fields))
	for _, f := range table.Fields {
		var data stats.Float64Data
		missing := 0
		for _, r := range table.Rows {
			v := r.Get(f)
			if types.IsMissing(v) {
				missing++
				continue
			}
			data = append(data, v)
		}
		out = append(out, summarize(f, data, missing))
	}
	return out
}

func summarize(f types.Field, data stats.Float64Data, missing int) ColumnSummary {
	s := ColumnSummary{Field: f, Count: len(data), Missing: missing}
	nan := math.NaN()
	s.Mean, s.StdDev, s.Min, s.Max = nan, nan, nan, nan
	if len(data) == 0 {
		return s
	}

	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		s.Mean = nan
	}
	if s.StdDev, err = stats.StandardDeviation(data); err != nil {
		s.StdDev = nan
	}
	if s.Min, err = stats.Min(data); err != nil {
		s.Min = nan
	}
	if s.Max, err = stats.Max(data); err != nil {
		s.Max = nan
	}
	return s
}

func (s ColumnSummary) String() string {
	return fmt.Sprintf("%s n=%d missing=%d mean=%.3f sd=%.3f min=%.3f max=%.3f",
		s.Field, s.Count, s.Missing, s.Mean, s.StdDev, s.Min, s.Max)
}

// Format renders summaries one per line.
func Format(summaries []ColumnSummary) string {
	lines := make([]string, len(summaries))
	for i, s := range summaries {
		lines[i] = s.String()
	}
	return strings.Join(lines, "\n")
}
