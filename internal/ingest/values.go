package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
)

// defaultMissingTokens are always read as missing values.
var defaultMissingTokens = []string{"", "-", "--", "nan", "NaN", "NA", "N/A", "null"}

// Cells converts raw cells to numbers with a configured set of missing tokens.
type Cells struct {
	missing map[string]struct{}
}

// NewCells builds a converter that treats tokens, plus the defaults, as missing.
func NewCells(tokens []string) Cells {
	c := Cells{missing: make(map[string]struct{})}
	for _, t := range append(append([]string(nil), defaultMissingTokens...), tokens...) {
		c.missing[strings.TrimSpace(t)] = struct{}{}
	}
	return c
}

// Number parses a cell. Missing tokens give types.Missing() and no error.
func (c Cells) Number(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if _, ok := c.missing[cell]; ok {
		return types.Missing(), nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
	if err != nil {
		return types.Missing(), fmt.Errorf("not a number: %q", cell)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return types.Missing(), nil
	}
	return v, nil
}

var leadingDigits = regexp.MustCompile(`^\s*(\d{1,2})`)

// ParseHour reads an hour-of-day label such as "05 시", "05:00" or "5".
func ParseHour(label string) (int, error) {
	m := leadingDigits.FindStringSubmatch(label)
	if m == nil {
		return 0, fmt.Errorf("no hour in %q", label)
	}
	h, _ := strconv.Atoi(m[1])
	if h > 23 {
		return 0, fmt.Errorf("hour %d out of range in %q", h, label)
	}
	return h, nil
}

var fallbackLayouts = []string{
	types.TimestampLayout,
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01-02-06 15:04",
}

// ParseTimestamp reads a naive local timestamp with layout, falling back
// to a few common spreadsheet renderings.
func ParseTimestamp(cell, layout string) (time.Time, error) {
	cell = strings.TrimSpace(cell)
	if layout != "" {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, nil
		}
	}
	for _, l := range fallbackLayouts {
		if t, err := time.Parse(l, cell); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", cell)
}

// DateFromName extracts the calendar date from a file name with a regular
// expression whose first capture group holds the date.
func DateFromName(re *regexp.Regexp, name, layout string) (time.Time, error) {
	m := re.FindStringSubmatch(name)
	if len(m) < 2 {
		return time.Time{}, fmt.Errorf("no date in file name %q", name)
	}
	t, err := time.Parse(layout, m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("file name date: %w", err)
	}
	return t, nil
}
