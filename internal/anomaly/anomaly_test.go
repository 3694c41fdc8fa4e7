package anomaly

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
)

var date = time.Date(2022, 6, 21, 0, 0, 0, 0, time.UTC)

func newDay(d time.Time, ap, ghi []float64) types.DailyRecord {
	day := types.NewAlignedDay("site", d)
	for h := range day.Readings {
		if h < len(ap) {
			day.Readings[h].Set(types.ActivePower, ap[h])
		}
		if h < len(ghi) {
			day.Readings[h].Set(types.GlobalHorizontalRadiation, ghi[h])
		}
	}
	return day
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*config.CleaningData)
		capacity  float64
		in        float64
		want      float64
		decisions int
	}{
		{name: "positive untouched", in: 4.2, want: 4.2},
		{name: "abs policy", mutate: func(c *config.CleaningData) { c.NegativePower = config.NegativeAbs }, in: -3, want: 3, decisions: 1},
		{name: "zero policy", mutate: func(c *config.CleaningData) { c.NegativePower = config.NegativeZero }, in: -3, want: 0, decisions: 1},
		{name: "missing policy", in: -3, want: math.NaN(), decisions: 1},
		{name: "within tolerance snaps to zero", mutate: func(c *config.CleaningData) { c.NegativeTolerance = 0.5 }, in: -0.2, want: 0, decisions: 1},
		{name: "zero snap", mutate: func(c *config.CleaningData) { c.ZeroSnap = 0.001 }, in: 0.0004, want: 0},
		{name: "capacity clip", mutate: func(c *config.CleaningData) { c.ClipToCapacity = true }, capacity: 50, in: 61, want: 50},
		{name: "capacity clip disabled", capacity: 50, in: 61, want: 61},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.DefaultCleaning()
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			day := newDay(date, []float64{tt.in}, nil)
			got := Normalize(&day, c, tt.capacity)
			v := day.Readings[0].Get(types.ActivePower)
			if math.IsNaN(tt.want) != math.IsNaN(v) || (!math.IsNaN(v) && v != tt.want) {
				t.Errorf("normalized %v = %v, want %v", tt.in, v, tt.want)
			}
			if len(got) != tt.decisions {
				t.Errorf("got %d decisions, want %d", len(got), tt.decisions)
			}
			for _, d := range got {
				if d.Reason != types.ReasonNegativePower || d.Scope != types.ScopeValue {
					t.Errorf("decision = %v, want negative-power value decision", d)
				}
			}
		})
	}
}

func TestOutOfRangeMarksValuesMissing(t *testing.T) {
	day := types.NewAlignedDay("site", date)
	day.Readings[12].Set(types.GlobalHorizontalRadiation, 2100)
	day.Readings[13].Set(types.GlobalHorizontalRadiation, 900)
	day.Readings[4].Set(types.WeatherTemperature, -12)
	day.Readings[5].Set(types.WindSpeed, -0.5)
	day.Readings[6].Set(types.WeatherRelativeHumidity, 101)
	day.Readings[7].Set(types.WeatherRelativeHumidity, 100)

	got := OutOfRange(&day, config.DefaultRanges())
	if len(got) != 4 {
		t.Fatalf("got %d decisions, want 4: %v", len(got), got)
	}
	for _, d := range got {
		if d.Reason != types.ReasonOutOfRange || d.Scope != types.ScopeValue || d.Excludes() {
			t.Errorf("decision = %v, want non-excluding out-of-range value decision", d)
		}
	}
	checks := []struct {
		hour    int
		field   types.Field
		missing bool
	}{
		{12, types.GlobalHorizontalRadiation, true},
		{13, types.GlobalHorizontalRadiation, false},
		{4, types.WeatherTemperature, true},
		{5, types.WindSpeed, true},
		{6, types.WeatherRelativeHumidity, true},
		{7, types.WeatherRelativeHumidity, false},
	}
	for _, c := range checks {
		if got := types.IsMissing(day.Readings[c.hour].Get(c.field)); got != c.missing {
			t.Errorf("hour %d %s missing = %v, want %v", c.hour, c.field, got, c.missing)
		}
	}
}

func TestGHIAPMismatch(t *testing.T) {
	m := config.MismatchData{Enabled: true, MarginHours: 1}
	tests := []struct {
		name string
		ap   []float64
		ghi  []float64
		want int
	}{
		{
			name: "consistent day",
			ap:   []float64{0, 0, 0, 0, 15, 40, 30, 8, 0},
			ghi:  []float64{0, 0, 0, 50, 200, 400, 300, 100, 0},
			want: 1, // hour 3 has irradiance and no power
		},
		{
			name: "fully consistent",
			ap:   []float64{0, 0, 5, 15, 40, 30, 8, 0},
			ghi:  []float64{0, 0, 50, 200, 400, 300, 100, 0},
		},
		{
			name: "power at dusk margin hour is tolerated",
			ap:   []float64{0, 5, 15, 3, 0},
			ghi:  []float64{0, 50, 200, 0, 0},
		},
		{
			name: "power in the dark",
			ap:   []float64{0, 5, 15, 0, 0, 7},
			ghi:  []float64{0, 50, 200, 0, 0, 0},
			want: 1,
		},
		{
			name: "inverter fault",
			ap:   []float64{0, 5, 0, 0, 0},
			ghi:  []float64{0, 50, 300, 100, 0},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GHIAPMismatch(newDay(date, tt.ap, tt.ghi), m)
			if len(got) != tt.want {
				t.Fatalf("got %d decisions, want %d: %v", len(got), tt.want, got)
			}
			for _, d := range got {
				if d.Reason != types.ReasonGHIAPMismatch || d.Scope != types.ScopeDay {
					t.Errorf("decision = %v", d)
				}
			}
		})
	}
}

func TestZeroPowerRun(t *testing.T) {
	daylight := []float64{0, 0, 0, 0, 0, 0, 50, 200, 400, 600, 700, 650, 500, 300, 100, 0}
	tests := []struct {
		name string
		ap   []float64
		ghi  []float64
		n    int
		want bool
	}{
		{
			name: "night zeros are normal",
			ap:   []float64{0, 0, 0, 0, 0, 0, 1, 5, 9, 12, 14, 12, 9, 5, 1, 0},
			ghi:  daylight,
			n:    4,
		},
		{
			name: "outage during the day",
			ap:   []float64{0, 0, 0, 0, 0, 0, 1, 5, 0, 0, 0, 0, 9, 5, 1, 0},
			ghi:  daylight,
			n:    4,
			want: true,
		},
		{
			name: "three zeros below limit",
			ap:   []float64{0, 0, 0, 0, 0, 0, 1, 5, 0, 0, 0, 12, 9, 5, 1, 0},
			ghi:  daylight,
			n:    4,
		},
		{
			name: "no irradiance column uses generation span",
			ap:   []float64{0, 0, 1, 4, 0, 0, 0, 0, 6, 2, 0, 0, 0, 0, 0, 0},
			n:    4,
			want: true,
		},
		{
			name: "disabled",
			ap:   constant(0, 24),
			ghi:  constant(100, 24),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ZeroPowerRun(newDay(date, tt.ap, tt.ghi), tt.n)
			if (len(got) > 0) != tt.want {
				t.Errorf("ZeroPowerRun flagged = %v, want %v (%v)", len(got) > 0, tt.want, got)
			}
		})
	}
}

func TestLowCorrelationExcludesSeries(t *testing.T) {
	// ghi = 10 + a and ap = 10 + a + sqrt(3)*b with a, b orthogonal and of
	// equal variance gives a correlation of exactly 0.5
	a := []float64{1, -1, 1, -1}
	b := []float64{1, 1, -1, -1}
	var ap, ghi []float64
	for len(ap) < types.HoursPerDay {
		for i := range a {
			ghi = append(ghi, 10+a[i])
			ap = append(ap, 10+a[i]+math.Sqrt(3)*b[i])
		}
	}
	days := []types.DailyRecord{newDay(date, ap, ghi), newDay(date.AddDate(0, 0, 1), ap, ghi)}

	r, n := Correlation(days)
	if math.Abs(r-0.5) > 1e-9 || n != 48 {
		t.Fatalf("Correlation = %v over %d, want 0.5 over 48", r, n)
	}

	got := LowCorrelation("inv-3", days, 0.9)
	if len(got) != 1 {
		t.Fatalf("got %d decisions, want 1", len(got))
	}
	if got[0].Scope != types.ScopeSeries || got[0].Reason != types.ReasonLowCorrelation {
		t.Errorf("decision = %v, want whole-series low-correlation", got[0])
	}
	if !types.HasSeriesExclusion(got) {
		t.Errorf("HasSeriesExclusion = false")
	}

	if got := LowCorrelation("inv-3", days, 0.4); len(got) != 0 {
		t.Errorf("threshold 0.4 excluded the series: %v", got)
	}
}

func TestLowCorrelationWithoutData(t *testing.T) {
	days := []types.DailyRecord{types.NewAlignedDay("site", date)}
	if got := LowCorrelation("site", days, 0.9); len(got) != 1 {
		t.Errorf("series without pairs should be excluded, got %v", got)
	}
}

func TestMarkIdenticalRuns(t *testing.T) {
	ap := constant(0, 24)
	for h := 8; h < 18; h++ {
		ap[h] = 5.37
	}
	day := newDay(date, ap, nil)
	days := []types.DailyRecord{day}

	got := MarkIdenticalRuns(days, types.ActivePower, 10)
	if len(got) != 1 {
		t.Fatalf("got %d decisions, want 1", len(got))
	}
	if got[0].Reason != types.ReasonIdenticalRun || got[0].Scope != types.ScopeValue || len(got[0].Hours) != 10 {
		t.Errorf("decision = %v", got[0])
	}
	for h := 8; h < 18; h++ {
		if v := days[0].Readings[h].Get(types.ActivePower); !types.IsMissing(v) {
			t.Errorf("hour %d = %v, want missing", h, v)
		}
	}
	if v := days[0].Readings[7].Get(types.ActivePower); v != 0 {
		t.Errorf("hour 7 = %v, want 0 untouched", v)
	}
}

func TestMarkIdenticalRunsIgnoresShortAndZeroRuns(t *testing.T) {
	ap := constant(0, 24)
	for h := 8; h < 17; h++ {
		ap[h] = 5.37
	}
	days := []types.DailyRecord{newDay(date, ap, nil)}
	if got := MarkIdenticalRuns(days, types.ActivePower, 10); len(got) != 0 {
		t.Errorf("run of 9 flagged: %v", got)
	}
}

func TestMarkIdenticalRunsAcrossMidnight(t *testing.T) {
	first := constant(0, 24)
	second := constant(0, 24)
	for h := 19; h < 24; h++ {
		first[h] = 3.2
	}
	for h := 0; h < 5; h++ {
		second[h] = 3.2
	}

	consecutive := []types.DailyRecord{newDay(date, first, nil), newDay(date.AddDate(0, 0, 1), second, nil)}
	if got := MarkIdenticalRuns(consecutive, types.ActivePower, 10); len(got) != 2 {
		t.Errorf("run spanning midnight: got %d decisions, want 2", len(got))
	}

	gap := []types.DailyRecord{newDay(date, first, nil), newDay(date.AddDate(0, 0, 2), second, nil)}
	if got := MarkIdenticalRuns(gap, types.ActivePower, 10); len(got) != 0 {
		t.Errorf("run across a missing date flagged: %v", got)
	}
}

var seoul = Location{Latitude: 37.57, Longitude: 126.98, TZ: time.FixedZone("KST", 9*3600)}

func TestNightGeneration(t *testing.T) {
	ng := config.NightGenerationData{Enabled: true, MaxElevation: 0, PowerThreshold: 0.5}

	ap := constant(0, 24)
	ap[12] = 40
	if got := NightGeneration(newDay(date, ap, nil), seoul, ng); len(got) != 0 {
		t.Errorf("noon generation flagged: %v", got)
	}

	ap[2] = 6
	got := NightGeneration(newDay(date, ap, nil), seoul, ng)
	if len(got) != 1 || got[0].Reason != types.ReasonNightGeneration || got[0].Hours[0] != 2 {
		t.Fatalf("02:00 generation: got %v", got)
	}
	if !strings.Contains(got[0].Detail, "sunrise") {
		t.Errorf("detail %q lacks sun times", got[0].Detail)
	}
}

func TestClearSky(t *testing.T) {
	cs := config.ClearSkyData{Enabled: true, Factor: 1.2, Slack: 50}
	ghi := constant(0, 24)
	ghi[2] = 60
	ghi[12] = 800
	ghi[13] = 1500
	day := newDay(date, nil, ghi)

	got := ClearSky(&day, seoul, cs)
	if len(got) != 1 {
		t.Fatalf("got %d decisions, want 1", len(got))
	}
	if h := got[0].Hours; len(h) != 2 || h[0] != 2 || h[1] != 13 {
		t.Errorf("flagged hours = %v, want [2 13]", h)
	}
	if v := day.Readings[12].Get(types.GlobalHorizontalRadiation); v != 800 {
		t.Errorf("plausible noon GHI changed to %v", v)
	}
}

func TestDetectorRecordsEveryReason(t *testing.T) {
	c := config.DefaultCleaning()
	c.Mismatch = config.MismatchData{Enabled: true, MarginHours: 1}
	det := New(c, 0, nil)

	// outage with full sun trips both the mismatch and zero-run screens
	ap := []float64{0, 0, 0, 0, 0, 0, 1, 5, 0, 0, 0, 0, 9, 5, 1, 0}
	ghi := []float64{0, 0, 0, 0, 0, 0, 50, 200, 400, 600, 700, 650, 500, 300, 100, 0}
	got := det.ScreenDay(newDay(date, ap, ghi))

	reasons := make(map[types.Reason]bool)
	for _, d := range got {
		reasons[d.Reason] = true
	}
	if !reasons[types.ReasonGHIAPMismatch] || !reasons[types.ReasonZeroPowerRun] {
		t.Errorf("reasons = %v, want both GHI-AP-mismatch and zero-power-run", reasons)
	}
}

func TestShiftToMinimum(t *testing.T) {
	first := newDay(date, []float64{-2, -1.5, 0, 4}, nil)
	second := newDay(date.AddDate(0, 0, 1), []float64{-1, 3}, nil)
	second.Readings[1].Set(types.ActivePower, types.Missing())
	days := []types.DailyRecord{first, second}

	if got := ShiftToMinimum(days); got != -2 {
		t.Fatalf("offset = %v, want -2", got)
	}
	tests := []struct {
		day, hour int
		want      float64
	}{
		{0, 0, 0},
		{0, 1, 0.5},
		{0, 3, 6},
		{1, 0, 1},
	}
	for _, tt := range tests {
		if v := days[tt.day].Readings[tt.hour].Get(types.ActivePower); v != tt.want {
			t.Errorf("day %d hour %d = %v, want %v", tt.day, tt.hour, v, tt.want)
		}
	}
	if v := days[1].Readings[1].Get(types.ActivePower); !types.IsMissing(v) {
		t.Errorf("missing value shifted to %v", v)
	}
}

func TestShiftToMinimumWithoutPower(t *testing.T) {
	days := []types.DailyRecord{types.NewAlignedDay("site", date)}
	if got := ShiftToMinimum(days); got != 0 {
		t.Errorf("offset = %v, want 0", got)
	}
}

func TestLowOutput(t *testing.T) {
	lo := config.LowOutputData{Enabled: true, MaxFraction: 0.05, MinGHI: 200}
	tests := []struct {
		name    string
		ap, ghi float64
		marked  bool
	}{
		{name: "weak output in full sun", ap: 2, ghi: 600, marked: true},
		{name: "at the fraction", ap: 5, ghi: 600, marked: true},
		{name: "above the fraction", ap: 6, ghi: 600},
		{name: "weak output in dim light", ap: 2, ghi: 200},
		{name: "zero output in full sun", ap: 0, ghi: 300, marked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// hour 12 sets the series peak at 100
			day := newDay(date, constant(0, 24), constant(0, 24))
			day.Readings[12].Set(types.ActivePower, 100)
			day.Readings[12].Set(types.GlobalHorizontalRadiation, 900)
			day.Readings[9].Set(types.ActivePower, tt.ap)
			day.Readings[9].Set(types.GlobalHorizontalRadiation, tt.ghi)
			days := []types.DailyRecord{day}

			got := LowOutput(days, lo)
			v := days[0].Readings[9].Get(types.ActivePower)
			if tt.marked {
				if len(got) != 1 || !types.IsMissing(v) {
					t.Fatalf("decisions = %v, hour 9 = %v, want marked missing", got, v)
				}
				if got[0].Reason != types.ReasonGHIAPMismatch || got[0].Scope != types.ScopeValue || got[0].Hours[0] != 9 {
					t.Errorf("decision = %v", got[0])
				}
				return
			}
			if len(got) != 0 || v != tt.ap {
				t.Errorf("decisions = %v, hour 9 = %v, want untouched %v", got, v, tt.ap)
			}
		})
	}
}

func TestLowOutputSkipsSeriesWithoutPower(t *testing.T) {
	days := []types.DailyRecord{newDay(date, constant(0, 24), constant(500, 24))}
	if got := LowOutput(days, config.LowOutputData{Enabled: true, MaxFraction: 0.05, MinGHI: 200}); len(got) != 0 {
		t.Errorf("series with no output flagged: %v", got)
	}
}

func TestDetectorSeriesOptions(t *testing.T) {
	mk := func() []types.DailyRecord {
		ap := constant(-1, 24)
		ghi := constant(0, 24)
		for h := 8; h < 16; h++ {
			ap[h] = float64(h * 4)
			ghi[h] = 500
		}
		ap[10] = -0.5
		return []types.DailyRecord{newDay(date, ap, ghi)}
	}

	c := config.DefaultCleaning()
	c.IdenticalRun = 0
	off := New(c, 0, nil)
	days := mk()
	if got := off.ShiftSeries(days); got != 0 {
		t.Errorf("shift ran while disabled, offset %v", got)
	}
	if got := off.ScreenSeries("site", days); len(got) != 0 {
		t.Errorf("low output ran while disabled: %v", got)
	}

	c.ShiftToMinimum = true
	c.LowOutput.Enabled = true
	on := New(c, 0, nil)
	days = mk()
	if got := on.ShiftSeries(days); got != -1 {
		t.Errorf("offset = %v, want -1", got)
	}
	got := on.ScreenSeries("site", days)
	if len(got) != 1 || got[0].Reason != types.ReasonGHIAPMismatch {
		t.Fatalf("decisions = %v, want one low output decision", got)
	}
	if v := days[0].Readings[10].Get(types.ActivePower); !types.IsMissing(v) {
		t.Errorf("hour 10 = %v, want missing", v)
	}
}
