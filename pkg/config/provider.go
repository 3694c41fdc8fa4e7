// Package config holds the dataset configuration model for the
// reconciliation pipeline and the providers that load it.
package config

import (
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetDatasets() ([]DatasetData, error)
	GetOutputConfig() (*OutputData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Output   OutputData    `json:"output"`
	Datasets []DatasetData `json:"datasets"`
}

// OutputData says where and how SiteTables and audit artifacts are written
type OutputData struct {
	Dir           string   `json:"dir"`
	Formats       []string `json:"formats"`
	DumpExcluded  bool     `json:"dump_excluded,omitempty"`
	AuditDB       string   `json:"audit_db,omitempty"`
	TimescaleDB   string   `json:"timescaledb,omitempty"`
	MetricsFile   string   `json:"metrics_file,omitempty"`
	LogMaxSizeMB  int      `json:"log_max_size_mb,omitempty"`
	LogMaxBackups int      `json:"log_max_backups,omitempty"`
}

// DatasetData configures one data source: its raw file layout, its
// weather table, the sites it contains and the cleaning thresholds.
type DatasetData struct {
	Name      string                 `json:"name"`
	Input     InputData              `json:"input"`
	Weather   WeatherData            `json:"weather"`
	Sites     []SiteData             `json:"sites"`
	Cleaning  CleaningData           `json:"cleaning"`
	Blocklist []time.Time            `json:"blocklist,omitempty"`
	Sources   map[types.Field]Source `json:"sources,omitempty"`
}

// AlignMode selects how raw power rows get their hour of day.
type AlignMode string

const (
	// AlignHour floors each sample timestamp to its hour and averages.
	AlignHour AlignMode = "hour"
	// AlignPositional assigns weather timestamps to power rows in order.
	AlignPositional AlignMode = "positional"
)

// Source says which input a field of the aligned record is taken from.
type Source string

const (
	SourcePower   Source = "power"
	SourceWeather Source = "weather"
	// SourceAuto prefers the power file and falls back to the weather table.
	SourceAuto Source = "auto"
)

// InputData describes the raw PV files of a dataset.
type InputData struct {
	Dir              string                 `json:"dir"`
	Pattern          string                 `json:"pattern"`
	Format           string                 `json:"format,omitempty"`
	Sheet            string                 `json:"sheet,omitempty"`
	Delimiter        rune                   `json:"delimiter,omitempty"`
	HeaderRow        int                    `json:"header_row"`
	SkipRows         int                    `json:"skip_rows"`
	TimestampColumn  string                 `json:"timestamp_column,omitempty"`
	TimestampLayout  string                 `json:"timestamp_layout,omitempty"`
	HourColumn       string                 `json:"hour_column,omitempty"`
	DateFromFilename string                 `json:"date_from_filename,omitempty"`
	DateLayout       string                 `json:"date_layout,omitempty"`
	MissingTokens    []string               `json:"missing_tokens,omitempty"`
	Columns          map[types.Field]string `json:"columns,omitempty"`
	AlignMode        AlignMode              `json:"align_mode"`
}

// WeatherData describes the weather-station table joined with power data.
type WeatherData struct {
	Path                 string                 `json:"path,omitempty"`
	Format               string                 `json:"format,omitempty"`
	Delimiter            rune                   `json:"delimiter,omitempty"`
	HeaderRow            int                    `json:"header_row"`
	SkipRows             int                    `json:"skip_rows"`
	TimestampColumn      string                 `json:"timestamp_column"`
	TimestampLayout      string                 `json:"timestamp_layout,omitempty"`
	StationColumn        string                 `json:"station_column,omitempty"`
	Columns              map[types.Field]string `json:"columns,omitempty"`
	MissingTokens        []string               `json:"missing_tokens,omitempty"`
	CumulativeIrradiance bool                   `json:"cumulative_irradiance,omitempty"`
	DefaultStationID     string                 `json:"default_station_id,omitempty"`
	MinHoursPerDay       int                    `json:"min_hours_per_day,omitempty"`
	MaxFillHours         int                    `json:"max_fill_hours"`
}

// SiteData is one entry of the site lookup table: the output identifier
// and where its power values live in the raw files.
type SiteData struct {
	ID          string   `json:"id"`
	PowerColumn string   `json:"power_column"`
	Pattern     string   `json:"pattern,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	CapacityKW  float64  `json:"capacity_kw,omitempty"`
	// Timezone is the IANA zone of the naive local timestamps, used only
	// for solar geometry. Empty means UTC.
	Timezone string `json:"timezone,omitempty"`
}

// Location resolves the site timezone.
func (s SiteData) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// HasLocation reports whether the site has coordinates for solar geometry.
func (s SiteData) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Range bounds a physically plausible value. Nil ends are open.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// NegativePolicy decides what happens to negative Active_Power values.
type NegativePolicy string

const (
	NegativeAbs     NegativePolicy = "abs"
	NegativeZero    NegativePolicy = "zero"
	NegativeMissing NegativePolicy = "missing"
)

// InterpolationMethod selects how gaps longer than one sample are repaired.
type InterpolationMethod string

const (
	InterpolateLinear     InterpolationMethod = "linear"
	InterpolatePolynomial InterpolationMethod = "polynomial"
)

// CleaningData holds every tunable threshold of the repair and screening stages.
type CleaningData struct {
	OutputFields []types.Field `json:"output_fields"`

	MaxGap        int                 `json:"max_gap"`
	MaxGapByField map[types.Field]int `json:"max_gap_by_field,omitempty"`
	Interpolation InterpolationMethod `json:"interpolation"`
	PolyOrder     int                 `json:"poly_order"`
	PolyWindow    int                 `json:"poly_window"`
	ZeroFillPower bool                `json:"zero_fill_power,omitempty"`

	IdenticalRun       int           `json:"identical_run"`
	IdenticalRunFields []types.Field `json:"identical_run_fields"`
	ZeroPowerRun       int           `json:"zero_power_run"`
	MinCorrelation     *float64      `json:"min_correlation,omitempty"`
	MarginHours        int           `json:"margin_hours"`

	Ranges            map[types.Field]Range `json:"ranges"`
	NegativePower     NegativePolicy        `json:"negative_power"`
	NegativeTolerance float64               `json:"negative_tolerance,omitempty"`
	ZeroSnap          float64               `json:"zero_snap,omitempty"`
	ClipToCapacity    bool                  `json:"clip_to_capacity,omitempty"`
	ShiftToMinimum    bool                  `json:"shift_to_minimum,omitempty"`

	Mismatch        MismatchData        `json:"mismatch"`
	NightGeneration NightGenerationData `json:"night_generation"`
	ClearSky        ClearSkyData        `json:"clear_sky"`
	LowOutput       LowOutputData       `json:"low_output"`
}

// MaxGapFor returns the longest repairable missing run for field f.
func (c CleaningData) MaxGapFor(f types.Field) int {
	if n, ok := c.MaxGapByField[f]; ok {
		return n
	}
	return c.MaxGap
}

// MismatchData tunes the irradiance/power consistency screen.
type MismatchData struct {
	Enabled bool `json:"enabled"`
	// GHIThreshold is the irradiance above which power must be positive.
	GHIThreshold float64 `json:"ghi_threshold"`
	// PowerThreshold is the power above which irradiance must be non-zero.
	PowerThreshold float64 `json:"power_threshold"`
	// MarginHours exempts power-without-irradiance rows this close to an
	// hour with irradiance.
	MarginHours int `json:"margin_hours"`
}

// NightGenerationData tunes the power-while-sun-down screen.
type NightGenerationData struct {
	Enabled        bool    `json:"enabled"`
	MaxElevation   float64 `json:"max_elevation_deg"`
	PowerThreshold float64 `json:"power_threshold"`
}

// ClearSkyData tunes the irradiance-above-clear-sky screen.
type ClearSkyData struct {
	Enabled bool    `json:"enabled"`
	Factor  float64 `json:"factor"`
	Slack   float64 `json:"slack"`
}

// LowOutputData tunes the value-level screen for power that stays near zero
// under strong irradiance.
type LowOutputData struct {
	Enabled bool `json:"enabled"`
	// MaxFraction is the share of the series peak power at or below which
	// output is treated as a fault.
	MaxFraction float64 `json:"max_fraction"`
	// MinGHI is the irradiance above which such output is implausible.
	MinGHI float64 `json:"min_ghi"`
}
