package config

import (
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/chrissnell/pvreconcile/internal/types"
	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// ParseYAML decodes a YAML document into the config model, filling
// defaults for everything left unset. It does not validate.
func ParseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Output   OutputYAML    `yaml:"output"`
		Datasets []DatasetYAML `yaml:"datasets"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Output: OutputData{
			Dir:           yamlConfig.Output.Dir,
			Formats:       yamlConfig.Output.Formats,
			DumpExcluded:  yamlConfig.Output.DumpExcluded,
			AuditDB:       yamlConfig.Output.AuditDB,
			TimescaleDB:   yamlConfig.Output.TimescaleDB,
			MetricsFile:   yamlConfig.Output.MetricsFile,
			LogMaxSizeMB:  yamlConfig.Output.LogMaxSizeMB,
			LogMaxBackups: yamlConfig.Output.LogMaxBackups,
		},
		Datasets: make([]DatasetData, len(yamlConfig.Datasets)),
	}
	if len(config.Output.Formats) == 0 {
		config.Output.Formats = []string{FormatCSV}
	}

	for i, ds := range yamlConfig.Datasets {
		d, err := ds.toData()
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", ds.Name, err)
		}
		config.Datasets[i] = d
	}

	return config, nil
}

// GetDatasets returns all configured datasets
func (y *YAMLProvider) GetDatasets() ([]DatasetData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Datasets, nil
}

// GetOutputConfig returns the output configuration
func (y *YAMLProvider) GetOutputConfig() (*OutputData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Output, nil
}

// IsReadOnly returns true since YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with YAML tags

type OutputYAML struct {
	Dir           string   `yaml:"dir"`
	Formats       []string `yaml:"formats,omitempty"`
	DumpExcluded  bool     `yaml:"dump_excluded,omitempty"`
	AuditDB       string   `yaml:"audit_db,omitempty"`
	TimescaleDB   string   `yaml:"timescaledb,omitempty"`
	MetricsFile   string   `yaml:"metrics_file,omitempty"`
	LogMaxSizeMB  int      `yaml:"log_max_size_mb,omitempty"`
	LogMaxBackups int      `yaml:"log_max_backups,omitempty"`
}

type DatasetYAML struct {
	Name      string            `yaml:"name"`
	Input     InputYAML         `yaml:"input"`
	Weather   WeatherYAML       `yaml:"weather,omitempty"`
	Sites     []SiteYAML        `yaml:"sites"`
	Cleaning  CleaningYAML      `yaml:"cleaning,omitempty"`
	Blocklist []string          `yaml:"blocklist,omitempty"`
	Sources   map[string]string `yaml:"sources,omitempty"`
}

type InputYAML struct {
	Dir              string            `yaml:"dir"`
	Pattern          string            `yaml:"pattern,omitempty"`
	Format           string            `yaml:"format,omitempty"`
	Sheet            string            `yaml:"sheet,omitempty"`
	Delimiter        string            `yaml:"delimiter,omitempty"`
	HeaderRow        int               `yaml:"header_row,omitempty"`
	SkipRows         int               `yaml:"skip_rows,omitempty"`
	TimestampColumn  string            `yaml:"timestamp_column,omitempty"`
	TimestampLayout  string            `yaml:"timestamp_layout,omitempty"`
	HourColumn       string            `yaml:"hour_column,omitempty"`
	DateFromFilename string            `yaml:"date_from_filename,omitempty"`
	DateLayout       string            `yaml:"date_layout,omitempty"`
	MissingTokens    []string          `yaml:"missing_tokens,omitempty"`
	Columns          map[string]string `yaml:"columns,omitempty"`
	AlignMode        string            `yaml:"align_mode,omitempty"`
}

type WeatherYAML struct {
	Path                 string            `yaml:"path,omitempty"`
	Format               string            `yaml:"format,omitempty"`
	Delimiter            string            `yaml:"delimiter,omitempty"`
	HeaderRow            int               `yaml:"header_row,omitempty"`
	SkipRows             int               `yaml:"skip_rows,omitempty"`
	TimestampColumn      string            `yaml:"timestamp_column,omitempty"`
	TimestampLayout      string            `yaml:"timestamp_layout,omitempty"`
	StationColumn        string            `yaml:"station_column,omitempty"`
	Columns              map[string]string `yaml:"columns,omitempty"`
	MissingTokens        []string          `yaml:"missing_tokens,omitempty"`
	CumulativeIrradiance bool              `yaml:"cumulative_irradiance,omitempty"`
	DefaultStationID     string            `yaml:"default_station_id,omitempty"`
	MinHoursPerDay       int               `yaml:"min_hours_per_day,omitempty"`
	MaxFillHours         *int              `yaml:"max_fill_hours,omitempty"`
}

type SiteYAML struct {
	ID          string   `yaml:"id"`
	PowerColumn string   `yaml:"power_column"`
	Pattern     string   `yaml:"pattern,omitempty"`
	Latitude    *float64 `yaml:"latitude,omitempty"`
	Longitude   *float64 `yaml:"longitude,omitempty"`
	CapacityKW  float64  `yaml:"capacity_kw,omitempty"`
	Timezone    string   `yaml:"timezone,omitempty"`
}

type RangeYAML struct {
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`
}

// CleaningYAML uses pointers so that unset keys keep their defaults.
type CleaningYAML struct {
	OutputFields []string `yaml:"output_fields,omitempty"`

	MaxGap        *int           `yaml:"max_gap,omitempty"`
	MaxGapByField map[string]int `yaml:"max_gap_by_field,omitempty"`
	Interpolation string         `yaml:"interpolation,omitempty"`
	PolyOrder     *int           `yaml:"poly_order,omitempty"`
	PolyWindow    *int           `yaml:"poly_window,omitempty"`
	ZeroFillPower bool           `yaml:"zero_fill_power,omitempty"`

	IdenticalRun       *int     `yaml:"identical_run,omitempty"`
	IdenticalRunFields []string `yaml:"identical_run_fields,omitempty"`
	ZeroPowerRun       *int     `yaml:"zero_power_run,omitempty"`
	MinCorrelation     *float64 `yaml:"min_correlation,omitempty"`
	MarginHours        *int     `yaml:"margin_hours,omitempty"`

	Ranges            map[string]RangeYAML `yaml:"ranges,omitempty"`
	NegativePower     string               `yaml:"negative_power,omitempty"`
	NegativeTolerance float64              `yaml:"negative_tolerance,omitempty"`
	ZeroSnap          float64              `yaml:"zero_snap,omitempty"`
	ClipToCapacity    bool                 `yaml:"clip_to_capacity,omitempty"`
	ShiftToMinimum    bool                 `yaml:"shift_to_minimum,omitempty"`

	Mismatch        *MismatchYAML        `yaml:"mismatch,omitempty"`
	NightGeneration *NightGenerationYAML `yaml:"night_generation,omitempty"`
	ClearSky        *ClearSkyYAML        `yaml:"clear_sky,omitempty"`
	LowOutput       *LowOutputYAML       `yaml:"low_output,omitempty"`
}

type MismatchYAML struct {
	Enabled        *bool   `yaml:"enabled,omitempty"`
	GHIThreshold   float64 `yaml:"ghi_threshold,omitempty"`
	PowerThreshold float64 `yaml:"power_threshold,omitempty"`
	MarginHours    *int    `yaml:"margin_hours,omitempty"`
}

type NightGenerationYAML struct {
	Enabled        bool    `yaml:"enabled"`
	MaxElevation   float64 `yaml:"max_elevation_deg,omitempty"`
	PowerThreshold float64 `yaml:"power_threshold,omitempty"`
}

type ClearSkyYAML struct {
	Enabled bool     `yaml:"enabled"`
	Factor  *float64 `yaml:"factor,omitempty"`
	Slack   *float64 `yaml:"slack,omitempty"`
}

type LowOutputYAML struct {
	Enabled     bool     `yaml:"enabled"`
	MaxFraction *float64 `yaml:"max_fraction,omitempty"`
	MinGHI      *float64 `yaml:"min_ghi,omitempty"`
}

func (ds DatasetYAML) toData() (DatasetData, error) {
	d := DatasetData{
		Name: ds.Name,
		Input: InputData{
			Dir:              ds.Input.Dir,
			Pattern:          ds.Input.Pattern,
			Format:           ds.Input.Format,
			Sheet:            ds.Input.Sheet,
			HeaderRow:        ds.Input.HeaderRow,
			SkipRows:         ds.Input.SkipRows,
			TimestampColumn:  ds.Input.TimestampColumn,
			TimestampLayout:  ds.Input.TimestampLayout,
			HourColumn:       ds.Input.HourColumn,
			DateFromFilename: ds.Input.DateFromFilename,
			DateLayout:       ds.Input.DateLayout,
			MissingTokens:    ds.Input.MissingTokens,
			AlignMode:        AlignMode(ds.Input.AlignMode),
		},
		Weather: WeatherData{
			Path:                 ds.Weather.Path,
			Format:               ds.Weather.Format,
			HeaderRow:            ds.Weather.HeaderRow,
			SkipRows:             ds.Weather.SkipRows,
			TimestampColumn:      ds.Weather.TimestampColumn,
			TimestampLayout:      ds.Weather.TimestampLayout,
			StationColumn:        ds.Weather.StationColumn,
			MissingTokens:        ds.Weather.MissingTokens,
			CumulativeIrradiance: ds.Weather.CumulativeIrradiance,
			DefaultStationID:     ds.Weather.DefaultStationID,
			MinHoursPerDay:       ds.Weather.MinHoursPerDay,
			MaxFillHours:         DefaultMaxFillHours,
		},
		Sites: make([]SiteData, len(ds.Sites)),
	}

	var err error
	if d.Input.Delimiter, err = delimiter(ds.Input.Delimiter); err != nil {
		return d, fmt.Errorf("input.delimiter: %w", err)
	}
	if d.Weather.Delimiter, err = delimiter(ds.Weather.Delimiter); err != nil {
		return d, fmt.Errorf("weather.delimiter: %w", err)
	}
	if d.Input.Format == "" {
		d.Input.Format = FormatCSV
	}
	if d.Input.Pattern == "" {
		d.Input.Pattern = "*"
	}
	if d.Input.AlignMode == "" {
		d.Input.AlignMode = AlignHour
	}
	if d.Input.TimestampLayout == "" {
		d.Input.TimestampLayout = types.TimestampLayout
	}
	if d.Input.DateLayout == "" {
		d.Input.DateLayout = types.DateLayout
	}
	if d.Weather.Format == "" {
		d.Weather.Format = FormatCSV
	}
	if d.Weather.TimestampLayout == "" {
		d.Weather.TimestampLayout = types.TimestampLayout
	}
	if d.Weather.DefaultStationID == "" {
		d.Weather.DefaultStationID = DefaultStationID
	}
	if ds.Weather.MaxFillHours != nil {
		d.Weather.MaxFillHours = *ds.Weather.MaxFillHours
	}

	if d.Input.Columns, err = fieldColumns(ds.Input.Columns); err != nil {
		return d, fmt.Errorf("input.columns: %w", err)
	}
	if d.Weather.Columns, err = fieldColumns(ds.Weather.Columns); err != nil {
		return d, fmt.Errorf("weather.columns: %w", err)
	}

	d.Sources = DefaultSources()
	for name, src := range ds.Sources {
		f, err := LookupField(name)
		if err != nil {
			return d, fmt.Errorf("sources: %w", err)
		}
		d.Sources[f] = Source(src)
	}

	for i, s := range ds.Sites {
		d.Sites[i] = SiteData{
			ID:          s.ID,
			PowerColumn: s.PowerColumn,
			Pattern:     s.Pattern,
			Latitude:    s.Latitude,
			Longitude:   s.Longitude,
			CapacityKW:  s.CapacityKW,
			Timezone:    s.Timezone,
		}
	}

	for _, b := range ds.Blocklist {
		t, err := time.Parse(types.DateLayout, b)
		if err != nil {
			return d, fmt.Errorf("blocklist: %w", err)
		}
		d.Blocklist = append(d.Blocklist, t)
	}

	if d.Cleaning, err = ds.Cleaning.toData(); err != nil {
		return d, fmt.Errorf("cleaning: %w", err)
	}
	return d, nil
}

func (c CleaningYAML) toData() (CleaningData, error) {
	out := DefaultCleaning()
	var err error

	if len(c.OutputFields) > 0 {
		if out.OutputFields, err = fieldList(c.OutputFields); err != nil {
			return out, fmt.Errorf("output_fields: %w", err)
		}
	}
	if c.MaxGap != nil {
		out.MaxGap = *c.MaxGap
	}
	if len(c.MaxGapByField) > 0 {
		out.MaxGapByField = make(map[types.Field]int, len(c.MaxGapByField))
		for name, n := range c.MaxGapByField {
			f, err := LookupField(name)
			if err != nil {
				return out, fmt.Errorf("max_gap_by_field: %w", err)
			}
			out.MaxGapByField[f] = n
		}
	}
	if c.Interpolation != "" {
		out.Interpolation = InterpolationMethod(c.Interpolation)
	}
	if c.PolyOrder != nil {
		out.PolyOrder = *c.PolyOrder
	}
	if c.PolyWindow != nil {
		out.PolyWindow = *c.PolyWindow
	}
	out.ZeroFillPower = c.ZeroFillPower

	if c.IdenticalRun != nil {
		out.IdenticalRun = *c.IdenticalRun
	}
	if len(c.IdenticalRunFields) > 0 {
		if out.IdenticalRunFields, err = fieldList(c.IdenticalRunFields); err != nil {
			return out, fmt.Errorf("identical_run_fields: %w", err)
		}
	}
	if c.ZeroPowerRun != nil {
		out.ZeroPowerRun = *c.ZeroPowerRun
	}
	out.MinCorrelation = c.MinCorrelation
	if c.MarginHours != nil {
		out.MarginHours = *c.MarginHours
	}

	for name, r := range c.Ranges {
		f, err := LookupField(name)
		if err != nil {
			return out, fmt.Errorf("ranges: %w", err)
		}
		out.Ranges[f] = Range{Min: r.Min, Max: r.Max}
	}
	if c.NegativePower != "" {
		out.NegativePower = NegativePolicy(c.NegativePower)
	}
	out.NegativeTolerance = c.NegativeTolerance
	out.ZeroSnap = c.ZeroSnap
	out.ClipToCapacity = c.ClipToCapacity
	out.ShiftToMinimum = c.ShiftToMinimum

	if m := c.Mismatch; m != nil {
		if m.Enabled != nil {
			out.Mismatch.Enabled = *m.Enabled
		}
		out.Mismatch.GHIThreshold = m.GHIThreshold
		out.Mismatch.PowerThreshold = m.PowerThreshold
		if m.MarginHours != nil {
			out.Mismatch.MarginHours = *m.MarginHours
		}
	}
	if n := c.NightGeneration; n != nil {
		out.NightGeneration = NightGenerationData{
			Enabled:        n.Enabled,
			MaxElevation:   n.MaxElevation,
			PowerThreshold: n.PowerThreshold,
		}
	}
	if cs := c.ClearSky; cs != nil {
		out.ClearSky.Enabled = cs.Enabled
		if cs.Factor != nil {
			out.ClearSky.Factor = *cs.Factor
		}
		if cs.Slack != nil {
			out.ClearSky.Slack = *cs.Slack
		}
	}
	if lo := c.LowOutput; lo != nil {
		out.LowOutput.Enabled = lo.Enabled
		if lo.MaxFraction != nil {
			out.LowOutput.MaxFraction = *lo.MaxFraction
		}
		if lo.MinGHI != nil {
			out.LowOutput.MinGHI = *lo.MinGHI
		}
	}
	return out, nil
}

func fieldColumns(in map[string]string) (map[types.Field]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[types.Field]string, len(in))
	for name, col := range in {
		f, err := LookupField(name)
		if err != nil {
			return nil, err
		}
		out[f] = col
	}
	return out, nil
}

func fieldList(names []string) ([]types.Field, error) {
	out := make([]types.Field, 0, len(names))
	for _, name := range names {
		f, err := LookupField(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func delimiter(s string) (rune, error) {
	switch {
	case s == "":
		return ',', nil
	case s == `\t` || s == "tab":
		return '\t', nil
	case utf8.RuneCountInString(s) != 1:
		return 0, fmt.Errorf("must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
