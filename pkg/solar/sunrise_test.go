package solar

import (
	"math"
	"testing"
	"time"
)

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func TestSunriseSunset(t *testing.T) {
	tests := []struct {
		name             string
		day              time.Time
		latitude         float64
		longitude        float64
		expectSunrise    bool // false if polar conditions
		sunriseApproxUTC int  // approximate expected sunrise in UTC minutes (±60 min tolerance)
		sunsetApproxUTC  int  // approximate expected sunset in UTC minutes (±60 min tolerance)
	}{
		{
			name:             "Equator at equinox",
			day:              time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			expectSunrise:    true,
			sunriseApproxUTC: 360,  // ~6:00 AM UTC
			sunsetApproxUTC:  1080, // ~6:00 PM UTC
		},
		{
			name:             "Seoul summer solstice",
			day:              time.Date(2022, 6, 21, 0, 0, 0, 0, time.UTC),
			latitude:         37.57,
			longitude:        126.98,
			expectSunrise:    true,
			sunriseApproxUTC: 1190, // ~5:11 AM KST, previous UTC evening
			sunsetApproxUTC:  657,  // ~7:57 PM KST
		},
		{
			name:             "London UK summer",
			day:              time.Date(2022, 6, 21, 0, 0, 0, 0, time.UTC),
			latitude:         51.5,
			longitude:        -0.1,
			expectSunrise:    true,
			sunriseApproxUTC: 223,  // ~3:43 AM UTC
			sunsetApproxUTC:  1221, // ~8:21 PM UTC
		},
		{
			name:      "Arctic circle summer (polar day)",
			day:       time.Date(2022, 6, 21, 0, 0, 0, 0, time.UTC),
			latitude:  70.0,
			longitude: 25.0,
		},
		{
			name:      "Arctic circle winter (polar night)",
			day:       time.Date(2022, 12, 21, 0, 0, 0, 0, time.UTC),
			latitude:  70.0,
			longitude: 25.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sunrise, sunset, ok := SunriseSunset(tt.day, tt.latitude, tt.longitude)
			if ok != tt.expectSunrise {
				t.Fatalf("ok = %v, want %v", ok, tt.expectSunrise)
			}
			if !ok {
				return
			}

			tolerance := 60
			if diff := int(math.Abs(float64(minutesOfDay(sunrise) - tt.sunriseApproxUTC))); diff > tolerance && diff < 1440-tolerance {
				t.Errorf("sunrise=%d minutes, expected ~%d minutes (±%d)", minutesOfDay(sunrise), tt.sunriseApproxUTC, tolerance)
			}
			if diff := int(math.Abs(float64(minutesOfDay(sunset) - tt.sunsetApproxUTC))); diff > tolerance && diff < 1440-tolerance {
				t.Errorf("sunset=%d minutes, expected ~%d minutes (±%d)", minutesOfDay(sunset), tt.sunsetApproxUTC, tolerance)
			}
			if !sunrise.Before(sunset) {
				t.Errorf("sunrise %v not before sunset %v", sunrise, sunset)
			}
		})
	}
}

func TestFormatSunTime(t *testing.T) {
	loc, _ := time.LoadLocation("America/Los_Angeles")

	tests := []struct {
		name     string
		t        time.Time
		loc      *time.Location
		expected string
	}{
		{
			name:     "Morning UTC to Pacific (winter/PST)",
			t:        time.Date(2000, 1, 1, 14, 0, 0, 0, time.UTC),
			loc:      loc,
			expected: "6:00 AM",
		},
		{
			name:     "Zero time returns empty",
			loc:      loc,
			expected: "",
		},
		{
			name:     "Noon UTC",
			t:        time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
			loc:      time.UTC,
			expected: "12:00 PM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatSunTime(tt.t, tt.loc)
			if result != tt.expected {
				t.Errorf("FormatSunTime(%v) = %q, expected %q", tt.t, result, tt.expected)
			}
		})
	}
}

func TestDayLengthAtMidLatitude(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for doy := 0; doy < 365; doy++ {
		day := start.AddDate(0, 0, doy)
		sunrise, sunset, ok := SunriseSunset(day, 45.0, 0.0)
		if !ok {
			t.Errorf("%s: unexpected polar conditions at 45°N", day.Format("2006-01-02"))
			continue
		}

		// Day length should be reasonable (4-20 hours at 45° latitude)
		if l := sunset.Sub(sunrise); l < 4*time.Hour || l > 20*time.Hour {
			t.Errorf("%s: unreasonable day length: %v", day.Format("2006-01-02"), l)
		}
	}
}
