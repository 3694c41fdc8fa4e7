// Package runs implements run-length encoding over boolean masks and
// float series. Gap classification and the stuck-sensor screens are
// expressed as predicates over these runs.
package runs

import "math"

// Run is a maximal stretch of equal elements.
type Run struct {
	Start  int
	Length int
}

// End returns the index one past the last element of the run.
func (r Run) End() int {
	return r.Start + r.Length
}

// Last returns the index of the last element of the run.
func (r Run) Last() int {
	return r.Start + r.Length - 1
}

// True returns the maximal runs of true values in mask, in order.
func True(mask []bool) []Run {
	var out []Run
	start := -1
	for i, v := range mask {
		switch {
		case v && start < 0:
			start = i
		case !v && start >= 0:
			out = append(out, Run{Start: start, Length: i - start})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, Run{Start: start, Length: len(mask) - start})
	}
	return out
}

// ValueRun is a maximal stretch of identical float values.
type ValueRun struct {
	Run
	Value float64
}

// Values encodes series as runs of exactly equal values. NaN never
// equals anything, so every NaN forms a run of its own.
func Values(series []float64) []ValueRun {
	var out []ValueRun
	for i := 0; i < len(series); {
		j := i + 1
		if !math.IsNaN(series[i]) {
			for j < len(series) && series[j] == series[i] {
				j++
			}
		}
		out = append(out, ValueRun{Run: Run{Start: i, Length: j - i}, Value: series[i]})
		i = j
	}
	return out
}

// Mask builds a boolean mask from a predicate over series.
func Mask(series []float64, pred func(float64) bool) []bool {
	mask := make([]bool, len(series))
	for i, v := range series {
		mask[i] = pred(v)
	}
	return mask
}

// Longest returns the longest run, or a zero Run when there are none.
func Longest(rs []Run) Run {
	var best Run
	for _, r := range rs {
		if r.Length > best.Length {
			best = r
		}
	}
	return best
}

// Indices expands runs into the element indices they cover.
func Indices(rs []Run) []int {
	var out []int
	for _, r := range rs {
		for i := r.Start; i < r.End(); i++ {
			out = append(out, i)
		}
	}
	return out
}
