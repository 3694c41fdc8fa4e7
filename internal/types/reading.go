// Package types defines the readings, daily records, site tables and
// exclusion decisions shared by every stage of the reconciliation pipeline.
package types

import (
	"math"
	"sort"
	"time"
)

// Field identifies one numeric column of a PV reading.
type Field int

const (
	ActivePower Field = iota
	GlobalHorizontalRadiation
	WeatherTemperature
	WeatherRelativeHumidity
	WindSpeed

	NumFields int = iota
)

var fieldNames = [NumFields]string{
	"Active_Power",
	"Global_Horizontal_Radiation",
	"Weather_Temperature_Celsius",
	"Weather_Relative_Humidity",
	"Wind_Speed",
}

// AllFields lists every field in canonical column order.
var AllFields = []Field{
	ActivePower,
	GlobalHorizontalRadiation,
	WeatherTemperature,
	WeatherRelativeHumidity,
	WindSpeed,
}

// String returns the canonical column name for the field.
func (f Field) String() string {
	if f < 0 || int(f) >= NumFields {
		return "unknown"
	}
	return fieldNames[f]
}

// ParseField maps a canonical column name back to its Field.
func ParseField(name string) (Field, bool) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return 0, false
}

// TimestampLayout is the layout used for the timestamp column of every
// SiteTable file.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout formats calendar dates in logs and audit records.
const DateLayout = "2006-01-02"

// Missing returns the marker used for an absent numeric value.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v marks an absent value.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Reading is one hourly observation for a site. Timestamps are naive
// site-local wall-clock times stored in UTC.
type Reading struct {
	SiteID    string
	StationID string
	Timestamp time.Time
	Values    [NumFields]float64
}

// NewReading returns a reading with every field missing.
func NewReading(siteID string, ts time.Time) Reading {
	r := Reading{SiteID: siteID, Timestamp: ts}
	for i := range r.Values {
		r.Values[i] = Missing()
	}
	return r
}

// Get returns the value of field f.
func (r Reading) Get(f Field) float64 {
	return r.Values[f]
}

// Set stores v in field f.
func (r *Reading) Set(f Field, v float64) {
	r.Values[f] = v
}

// Hour returns the hour of day of the reading.
func (r Reading) Hour() int {
	return r.Timestamp.Hour()
}

// HasMissing reports whether any of the given fields is missing.
func (r Reading) HasMissing(fields []Field) bool {
	for _, f := range fields {
		if IsMissing(r.Values[f]) {
			return true
		}
	}
	return false
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DailyRecord holds the readings of one site for one calendar date,
// ordered by strictly increasing hour.
type DailyRecord struct {
	SiteID   string
	Date     time.Time
	Readings []Reading
}

// HoursPerDay is the number of slots in an aligned DailyRecord.
const HoursPerDay = 24

// NewAlignedDay returns a 24-slot record with every value missing.
func NewAlignedDay(siteID string, date time.Time) DailyRecord {
	date = DateOf(date)
	d := DailyRecord{SiteID: siteID, Date: date, Readings: make([]Reading, HoursPerDay)}
	for h := 0; h < HoursPerDay; h++ {
		d.Readings[h] = NewReading(siteID, date.Add(time.Duration(h)*time.Hour))
	}
	return d
}

// Column copies field f of every reading into a new slice.
func (d DailyRecord) Column(f Field) []float64 {
	col := make([]float64, len(d.Readings))
	for i, r := range d.Readings {
		col[i] = r.Values[f]
	}
	return col
}

// SetColumn writes vals back into field f. vals must have one entry per reading.
func (d DailyRecord) SetColumn(f Field, vals []float64) {
	for i := range d.Readings {
		d.Readings[i].Values[f] = vals[i]
	}
}

// Hours returns the hour of day of every reading.
func (d DailyRecord) Hours() []int {
	hours := make([]int, len(d.Readings))
	for i, r := range d.Readings {
		hours[i] = r.Hour()
	}
	return hours
}

// IsAligned reports whether the record has exactly the 24 contiguous hours 0..23.
func (d DailyRecord) IsAligned() bool {
	if len(d.Readings) != HoursPerDay {
		return false
	}
	for i, r := range d.Readings {
		if r.Hour() != i || !DateOf(r.Timestamp).Equal(d.Date) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the record.
func (d DailyRecord) Clone() DailyRecord {
	c := d
	c.Readings = append([]Reading(nil), d.Readings...)
	return c
}

// SiteTable is the cleaned, chronologically ordered output for one site.
// Timestamps are unique; the first appended reading for a timestamp wins.
type SiteTable struct {
	SiteID string
	Fields []Field
	Rows   []Reading

	seen map[time.Time]struct{}
}

// NewSiteTable creates an empty table emitting the given fields.
func NewSiteTable(siteID string, fields []Field) *SiteTable {
	if len(fields) == 0 {
		fields = AllFields
	}
	return &SiteTable{
		SiteID: siteID,
		Fields: append([]Field(nil), fields...),
		seen:   make(map[time.Time]struct{}),
	}
}

// Append adds readings, dropping any whose timestamp is already present.
// It returns the number of readings dropped as duplicates.
func (t *SiteTable) Append(readings ...Reading) int {
	if t.seen == nil {
		t.seen = make(map[time.Time]struct{}, len(t.Rows))
		for _, r := range t.Rows {
			t.seen[r.Timestamp] = struct{}{}
		}
	}
	dropped := 0
	for _, r := range readings {
		if _, ok := t.seen[r.Timestamp]; ok {
			dropped++
			continue
		}
		t.seen[r.Timestamp] = struct{}{}
		t.Rows = append(t.Rows, r)
	}
	return dropped
}

// Sort orders rows by timestamp.
func (t *SiteTable) Sort() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].Timestamp.Before(t.Rows[j].Timestamp)
	})
}

// Len returns the number of rows.
func (t *SiteTable) Len() int {
	return len(t.Rows)
}

// Days returns the number of distinct calendar dates in the table.
func (t *SiteTable) Days() int {
	days := make(map[time.Time]struct{})
	for _, r := range t.Rows {
		days[DateOf(r.Timestamp)] = struct{}{}
	}
	return len(days)
}
