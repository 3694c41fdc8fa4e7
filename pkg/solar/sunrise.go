package solar

import (
	"math"
	"time"
)

// SunriseSunset returns sunrise and sunset in UTC for the calendar date of
// day at the given latitude and longitude. ok is false for polar day
// (sun never sets) or polar night (sun never rises).
func SunriseSunset(day time.Time, latitude, longitude float64) (sunrise, sunset time.Time, ok bool) {
	y, m, d := day.Date()
	noon := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	pos := Position(noon, latitude, longitude, DefaultTurbidity)

	// cos(H) = -tan(lat) * tan(declination) with the sun on the horizon
	cosH := -math.Tan(degToRad(latitude)) * math.Tan(degToRad(pos.DeclinationDeg))
	if cosH < -1.0 || cosH > 1.0 {
		return time.Time{}, time.Time{}, false
	}

	hourAngleMinutes := radToDeg(math.Acos(cosH)) / 15.0 * 60.0

	// 720 = 12:00 UTC, shifted by 4 minutes per degree of longitude
	solarNoonUTC := 720.0 - 4*longitude - pos.EqOfTimeMin

	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	sunrise = midnight.Add(time.Duration((solarNoonUTC - hourAngleMinutes) * float64(time.Minute))).Round(time.Minute)
	sunset = midnight.Add(time.Duration((solarNoonUTC + hourAngleMinutes) * float64(time.Minute))).Round(time.Minute)
	return sunrise, sunset, true
}

// FormatSunTime formats a UTC instant as a clock time in loc.
func FormatSunTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("3:04 PM")
}
