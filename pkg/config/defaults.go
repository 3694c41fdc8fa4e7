package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/chrissnell/pvreconcile/internal/types"
)

// Environment variables that override values from the config file.
const (
	EnvTimescaleDSN = "PVRECONCILE_TIMESCALEDB_DSN"
	EnvOutputDir    = "PVRECONCILE_OUTPUT_DIR"
)

// Output formats for SiteTables.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatXLSX    = "xlsx"
)

// Defaults for the cleaning stages.
const (
	DefaultMaxGap            = 1
	DefaultPolyOrder         = 5
	DefaultPolyWindow        = 6
	DefaultIdenticalRun      = 10
	DefaultZeroPowerRun      = 4
	DefaultMarginHours       = 1
	DefaultMaxFillHours      = 3
	DefaultStationID         = "default"
	DefaultClearSkyFactor    = 1.2
	DefaultClearSkySlack     = 50.0
	DefaultLowOutputFraction = 0.05
	DefaultLowOutputGHI      = 200.0
)

func ptr(v float64) *float64 { return &v }

// DefaultRanges returns the physical bounds applied when a dataset does not
// override them.
func DefaultRanges() map[types.Field]Range {
	return map[types.Field]Range{
		types.GlobalHorizontalRadiation: {Max: ptr(2000)},
		types.WeatherTemperature:        {Min: ptr(-10)},
		types.WindSpeed:                 {Min: ptr(0)},
		types.WeatherRelativeHumidity:   {Min: ptr(0), Max: ptr(100)},
	}
}

// DefaultCleaning returns the cleaning parameters used for any value a
// dataset leaves unset.
func DefaultCleaning() CleaningData {
	return CleaningData{
		OutputFields:       append([]types.Field(nil), types.AllFields...),
		MaxGap:             DefaultMaxGap,
		Interpolation:      InterpolateLinear,
		PolyOrder:          DefaultPolyOrder,
		PolyWindow:         DefaultPolyWindow,
		IdenticalRun:       DefaultIdenticalRun,
		IdenticalRunFields: []types.Field{types.ActivePower},
		ZeroPowerRun:       DefaultZeroPowerRun,
		MarginHours:        DefaultMarginHours,
		Ranges:             DefaultRanges(),
		NegativePower:      NegativeMissing,
		Mismatch: MismatchData{
			Enabled:     true,
			MarginHours: DefaultMarginHours,
		},
		ClearSky: ClearSkyData{
			Factor: DefaultClearSkyFactor,
			Slack:  DefaultClearSkySlack,
		},
		LowOutput: LowOutputData{
			MaxFraction: DefaultLowOutputFraction,
			MinGHI:      DefaultLowOutputGHI,
		},
	}
}

// DefaultSources takes Active_Power from the power file and lets every
// other field fall back to the weather table.
func DefaultSources() map[types.Field]Source {
	src := make(map[types.Field]Source, types.NumFields)
	for _, f := range types.AllFields {
		src[f] = SourceAuto
	}
	src[types.ActivePower] = SourcePower
	return src
}

var fieldAliases = map[string]types.Field{
	"ap":          types.ActivePower,
	"power":       types.ActivePower,
	"ghi":         types.GlobalHorizontalRadiation,
	"ghr":         types.GlobalHorizontalRadiation,
	"irradiance":  types.GlobalHorizontalRadiation,
	"temperature": types.WeatherTemperature,
	"temp":        types.WeatherTemperature,
	"humidity":    types.WeatherRelativeHumidity,
	"rh":          types.WeatherRelativeHumidity,
	"wind":        types.WindSpeed,
	"wind_speed":  types.WindSpeed,
}

// LookupField resolves a canonical column name or a short alias
// (ap, ghi, temperature, humidity, wind) to a Field.
func LookupField(name string) (types.Field, error) {
	if f, ok := types.ParseField(name); ok {
		return f, nil
	}
	if f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

// ApplyEnv overrides output settings from the environment.
func ApplyEnv(cfg *ConfigData) {
	if dsn := os.Getenv(EnvTimescaleDSN); dsn != "" {
		cfg.Output.TimescaleDB = dsn
	}
	if dir := os.Getenv(EnvOutputDir); dir != "" {
		cfg.Output.Dir = dir
	}
}
