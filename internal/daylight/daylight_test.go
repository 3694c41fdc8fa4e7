package daylight

import (
	"testing"
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
)

func dayWithPower(ap []float64) types.DailyRecord {
	day := types.NewAlignedDay("site", time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC))
	for h := range day.Readings {
		v := 0.0
		if h < len(ap) {
			v = ap[h]
		}
		day.Readings[h].Set(types.ActivePower, v)
	}
	return day
}

func TestFind(t *testing.T) {
	tests := []struct {
		name   string
		ap     []float64
		margin int
		want   Window
		ok     bool
	}{
		{
			name:   "margin one",
			ap:     []float64{0, 0, 0, 0, 15, 40, 30, 8, 0},
			margin: 1,
			want:   Window{3, 8},
			ok:     true,
		},
		{
			name:   "clipped at midnight",
			ap:     []float64{3, 4, 0},
			margin: 2,
			want:   Window{0, 3},
			ok:     true,
		},
		{
			name:   "clipped at end of day",
			ap:     append(make([]float64, 22), 1, 1),
			margin: 3,
			want:   Window{19, 23},
			ok:     true,
		},
		{
			name:   "zero margin",
			ap:     []float64{0, 0, 5, 0, 6},
			margin: 0,
			want:   Window{2, 4},
			ok:     true,
		},
		{
			name: "no generation",
			ap:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Find(dayWithPower(tt.ap), tt.margin)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Find = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTrimKeepsMarginHours(t *testing.T) {
	day := types.NewAlignedDay("site", time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC))
	ghi := []float64{0, 0, 0, 50, 200, 400, 300, 100, 0}
	ap := []float64{0, 0, 0, 0, 15, 40, 30, 8, 0}
	for h := range day.Readings {
		g, p := 0.0, 0.0
		if h < len(ghi) {
			g, p = ghi[h], ap[h]
		}
		day.Readings[h].Set(types.GlobalHorizontalRadiation, g)
		day.Readings[h].Set(types.ActivePower, p)
	}

	got := Trim(day, 1)
	hours := got.Hours()
	// irradiance starts at hour 3, power at hour 4
	want := []int{2, 3, 4, 5, 6, 7, 8}
	if len(hours) != len(want) {
		t.Fatalf("hours = %v, want %v", hours, want)
	}
	for i := range want {
		if hours[i] != want[i] {
			t.Errorf("hours = %v, want %v", hours, want)
			break
		}
	}
	if len(day.Readings) != types.HoursPerDay {
		t.Errorf("input record was modified")
	}
}

func TestTrimIsIdempotent(t *testing.T) {
	day := dayWithPower([]float64{0, 0, 0, 0, 0, 2, 9, 14, 11, 3, 0})
	once := Trim(day, 1)
	twice := Trim(once, 1)

	w1, _ := Find(once, 1)
	w2, _ := Find(twice, 1)
	if w1 != w2 || len(once.Readings) != len(twice.Readings) {
		t.Errorf("second trim changed the window: %v -> %v", w1, w2)
	}
}

func TestTrimPassesNoGenerationDay(t *testing.T) {
	irradiance := make([]float64, types.HoursPerDay)
	for h := 7; h <= 16; h++ {
		irradiance[h] = 300
	}
	tests := []struct {
		name string
		ghi  []float64
	}{
		{name: "no power no irradiance"},
		{name: "irradiance without power", ghi: irradiance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := dayWithPower(nil)
			for h, v := range tt.ghi {
				day.Readings[h].Set(types.GlobalHorizontalRadiation, v)
			}
			if _, ok := Find(day, 1); ok {
				t.Errorf("Find reported a window for a day without power")
			}
			if got := Trim(day, 1); len(got.Readings) != types.HoursPerDay {
				t.Errorf("no-generation day trimmed to %d readings", len(got.Readings))
			}
		})
	}
}
