package config

import (
	"fmt"
	"regexp"

	"go.uber.org/multierr"
)

// Validate checks a loaded configuration for impossible values. Every
// problem found is reported, not just the first.
func (c *ConfigData) Validate() error {
	var err error

	if c.Output.Dir == "" {
		err = multierr.Append(err, fmt.Errorf("output.dir is required"))
	}
	for _, f := range c.Output.Formats {
		if f != FormatCSV && f != FormatParquet {
			err = multierr.Append(err, fmt.Errorf("output.formats: unknown format %q", f))
		}
	}
	if len(c.Datasets) == 0 {
		err = multierr.Append(err, fmt.Errorf("at least one dataset is required"))
	}

	names := make(map[string]struct{})
	sites := make(map[string]string)
	for i := range c.Datasets {
		ds := &c.Datasets[i]
		if ds.Name == "" {
			err = multierr.Append(err, fmt.Errorf("datasets[%d]: name is required", i))
		}
		if _, dup := names[ds.Name]; dup {
			err = multierr.Append(err, fmt.Errorf("dataset %q: duplicate name", ds.Name))
		}
		names[ds.Name] = struct{}{}

		for _, s := range ds.Sites {
			if prev, dup := sites[s.ID]; dup {
				err = multierr.Append(err, fmt.Errorf("dataset %q: site %q already defined in dataset %q", ds.Name, s.ID, prev))
			}
			sites[s.ID] = ds.Name
		}
		err = multierr.Append(err, ds.Validate())
	}
	return err
}

// Validate checks one dataset.
func (d *DatasetData) Validate() error {
	var err error
	prefix := fmt.Sprintf("dataset %q", d.Name)

	if d.Input.Dir == "" {
		err = multierr.Append(err, fmt.Errorf("%s: input.dir is required", prefix))
	}
	if !validInputFormat(d.Input.Format) {
		err = multierr.Append(err, fmt.Errorf("%s: input.format: unknown format %q", prefix, d.Input.Format))
	}
	switch d.Input.AlignMode {
	case AlignHour:
		if d.Input.TimestampColumn == "" && d.Input.HourColumn == "" {
			err = multierr.Append(err, fmt.Errorf("%s: hour alignment needs input.timestamp_column or input.hour_column", prefix))
		}
		if d.Input.TimestampColumn == "" && d.Input.DateFromFilename == "" {
			err = multierr.Append(err, fmt.Errorf("%s: input.hour_column needs input.date_from_filename", prefix))
		}
	case AlignPositional:
		if d.Weather.Path == "" {
			err = multierr.Append(err, fmt.Errorf("%s: positional alignment needs a weather table", prefix))
		}
		if d.Input.DateFromFilename == "" && d.Input.TimestampColumn == "" {
			err = multierr.Append(err, fmt.Errorf("%s: positional alignment needs input.date_from_filename or input.timestamp_column", prefix))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("%s: input.align_mode: unknown mode %q", prefix, d.Input.AlignMode))
	}
	if d.Input.DateFromFilename != "" {
		re, cerr := regexp.Compile(d.Input.DateFromFilename)
		switch {
		case cerr != nil:
			err = multierr.Append(err, fmt.Errorf("%s: input.date_from_filename: %w", prefix, cerr))
		case re.NumSubexp() < 1:
			err = multierr.Append(err, fmt.Errorf("%s: input.date_from_filename needs a capture group", prefix))
		}
	}
	if d.Input.HeaderRow < 0 || d.Input.SkipRows < 0 {
		err = multierr.Append(err, fmt.Errorf("%s: input header_row and skip_rows must be >= 0", prefix))
	}

	if d.Weather.Path != "" {
		if !validInputFormat(d.Weather.Format) {
			err = multierr.Append(err, fmt.Errorf("%s: weather.format: unknown format %q", prefix, d.Weather.Format))
		}
		if d.Weather.TimestampColumn == "" {
			err = multierr.Append(err, fmt.Errorf("%s: weather.timestamp_column is required", prefix))
		}
		if d.Weather.MaxFillHours < 0 {
			err = multierr.Append(err, fmt.Errorf("%s: weather.max_fill_hours must be >= 0", prefix))
		}
	}
	for f, src := range d.Sources {
		switch src {
		case SourcePower, SourceAuto:
		case SourceWeather:
			if d.Weather.Path == "" {
				err = multierr.Append(err, fmt.Errorf("%s: %s is sourced from weather but no weather table is configured", prefix, f))
			}
		default:
			err = multierr.Append(err, fmt.Errorf("%s: sources.%s: unknown source %q", prefix, f, src))
		}
	}

	if len(d.Sites) == 0 {
		err = multierr.Append(err, fmt.Errorf("%s: at least one site is required", prefix))
	}
	for i, s := range d.Sites {
		if s.ID == "" {
			err = multierr.Append(err, fmt.Errorf("%s: sites[%d]: id is required", prefix, i))
		}
		if s.PowerColumn == "" {
			err = multierr.Append(err, fmt.Errorf("%s: site %q: power_column is required", prefix, s.ID))
		}
		if (s.Latitude == nil) != (s.Longitude == nil) {
			err = multierr.Append(err, fmt.Errorf("%s: site %q: latitude and longitude must be set together", prefix, s.ID))
		}
		if _, lerr := s.Location(); lerr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: site %q: timezone: %w", prefix, s.ID, lerr))
		}
		if s.CapacityKW < 0 {
			err = multierr.Append(err, fmt.Errorf("%s: site %q: capacity_kw must be >= 0", prefix, s.ID))
		}
	}

	err = multierr.Append(err, d.Cleaning.Validate())
	if err != nil {
		return err
	}
	if d.Cleaning.NightGeneration.Enabled || d.Cleaning.ClearSky.Enabled {
		for _, s := range d.Sites {
			if !s.HasLocation() {
				err = multierr.Append(err, fmt.Errorf("%s: site %q: solar screens need latitude and longitude", prefix, s.ID))
			}
		}
	}
	return err
}

// Validate checks the cleaning thresholds.
func (c CleaningData) Validate() error {
	var err error

	if len(c.OutputFields) == 0 {
		err = multierr.Append(err, fmt.Errorf("cleaning.output_fields must not be empty"))
	}
	if c.MaxGap < 1 {
		err = multierr.Append(err, fmt.Errorf("cleaning.max_gap must be >= 1, got %d", c.MaxGap))
	}
	for f, n := range c.MaxGapByField {
		if n < 1 {
			err = multierr.Append(err, fmt.Errorf("cleaning.max_gap_by_field.%s must be >= 1, got %d", f, n))
		}
	}
	switch c.Interpolation {
	case InterpolateLinear:
	case InterpolatePolynomial:
		if c.PolyOrder < 1 {
			err = multierr.Append(err, fmt.Errorf("cleaning.poly_order must be >= 1, got %d", c.PolyOrder))
		}
		if c.PolyWindow < 1 {
			err = multierr.Append(err, fmt.Errorf("cleaning.poly_window must be >= 1, got %d", c.PolyWindow))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("cleaning.interpolation: unknown method %q", c.Interpolation))
	}
	if c.IdenticalRun == 1 || c.IdenticalRun < 0 {
		err = multierr.Append(err, fmt.Errorf("cleaning.identical_run must be 0 (disabled) or >= 2, got %d", c.IdenticalRun))
	}
	if c.ZeroPowerRun < 0 {
		err = multierr.Append(err, fmt.Errorf("cleaning.zero_power_run must be >= 0, got %d", c.ZeroPowerRun))
	}
	if c.MarginHours < 0 {
		err = multierr.Append(err, fmt.Errorf("cleaning.margin_hours must be >= 0, got %d", c.MarginHours))
	}
	if c.MinCorrelation != nil && (*c.MinCorrelation < -1 || *c.MinCorrelation > 1) {
		err = multierr.Append(err, fmt.Errorf("cleaning.min_correlation must be within [-1, 1], got %v", *c.MinCorrelation))
	}
	for f, r := range c.Ranges {
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			err = multierr.Append(err, fmt.Errorf("cleaning.ranges.%s: min %v above max %v", f, *r.Min, *r.Max))
		}
	}
	switch c.NegativePower {
	case NegativeAbs, NegativeZero, NegativeMissing:
	default:
		err = multierr.Append(err, fmt.Errorf("cleaning.negative_power: unknown policy %q", c.NegativePower))
	}
	if c.NegativeTolerance < 0 || c.ZeroSnap < 0 {
		err = multierr.Append(err, fmt.Errorf("cleaning.negative_tolerance and cleaning.zero_snap must be >= 0"))
	}
	if c.Mismatch.MarginHours < 0 {
		err = multierr.Append(err, fmt.Errorf("cleaning.mismatch.margin_hours must be >= 0, got %d", c.Mismatch.MarginHours))
	}
	if c.ClearSky.Enabled && c.ClearSky.Factor <= 0 {
		err = multierr.Append(err, fmt.Errorf("cleaning.clear_sky.factor must be > 0, got %v", c.ClearSky.Factor))
	}
	if c.LowOutput.Enabled && (c.LowOutput.MaxFraction < 0 || c.LowOutput.MaxFraction > 1) {
		err = multierr.Append(err, fmt.Errorf("cleaning.low_output.max_fraction must be within [0, 1], got %v", c.LowOutput.MaxFraction))
	}
	if c.LowOutput.MinGHI < 0 {
		err = multierr.Append(err, fmt.Errorf("cleaning.low_output.min_ghi must be >= 0, got %v", c.LowOutput.MinGHI))
	}
	return err
}

func validInputFormat(f string) bool {
	return f == FormatCSV || f == FormatXLSX
}
