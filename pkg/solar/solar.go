// Package solar computes sun position and clear-sky irradiance for a site.
// The PV screens use it to tell night from day and to bound plausible
// irradiance readings.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// SolarResult describes the sun as seen from one place at one instant.
type SolarResult struct {
	Irradiance     float64
	EqOfTimeMin    float64
	DeclinationDeg float64
	AzimuthDeg     float64
	ElevationDeg   float64
	CosZenith      float64
	SunEarthDistAU float64
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// DefaultTurbidity is the Bras atmospheric turbidity factor for clear air.
const DefaultTurbidity = 2.0

// Position returns the sun's position at t for latitude/longitude in degrees
// (east positive). Irradiance is the Bras clear-sky estimate for the given
// turbidity factor nfac; pass DefaultTurbidity when unsure.
func Position(t time.Time, lat, lon, nfac float64) SolarResult {
	const solarConstant = 1367.0

	t = t.UTC()
	jd := julian.TimeToJD(t)
	T := (jd - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	Ω := 125.04 - 1934.136*T
	λ := L0 + C - 0.00569 - 0.00478*math.Sin(degToRad(Ω))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	δRad := math.Asin(math.Sin(degToRad(eps0)) * math.Sin(degToRad(λ)))

	y := math.Tan(degToRad(eps0)/2) * math.Tan(degToRad(eps0)/2)
	eqTimeMin := radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4

	utcMin := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60.0
	tst := utcMin + 4*lon + eqTimeMin
	ha := tst/4 - 180
	haRad := degToRad(ha)

	latRad := degToRad(lat)
	cosZen := math.Sin(latRad)*math.Sin(δRad) + math.Cos(latRad)*math.Cos(δRad)*math.Cos(haRad)
	cosZen = math.Max(-1, math.Min(1, cosZen))
	zenRad := math.Acos(cosZen)
	// 0.5667 degrees of atmospheric refraction at the horizon
	elDeg := 90 - radToDeg(zenRad) + 0.5667

	res := SolarResult{
		EqOfTimeMin:    eqTimeMin,
		DeclinationDeg: radToDeg(δRad),
		ElevationDeg:   elDeg,
		CosZenith:      cosZen,
	}
	if elDeg <= 0 {
		return res
	}

	if s := math.Sin(zenRad); s > 0 {
		azCos := (math.Sin(δRad) - math.Sin(latRad)*cosZen) / (math.Cos(latRad) * s)
		res.AzimuthDeg = radToDeg(math.Acos(math.Max(-1, math.Min(1, azCos))))
		if ha > 0 {
			res.AzimuthDeg = 360 - res.AzimuthDeg
		}
	}

	// Sun-Earth distance (libastro s_edist)
	Mrad := degToRad(M)
	e = 0.016708617 - T*(0.000042037+T*0.0000001236)
	E := Mrad + e*math.Sin(Mrad)*(1+e*math.Cos(Mrad))
	v := 2 * math.Atan(math.Sqrt((1+e)/(1-e))*math.Tan(E/2))
	r := (1 - e*e) / (1 + e*math.Cos(v))
	res.SunEarthDistAU = r

	io := cosZen * solarConstant / (r * r)
	m := 1.0 / (cosZen + 0.15*math.Pow(elDeg+3.885, -1.253))
	a1 := 0.128 - 0.054*math.Log10(m)
	res.Irradiance = math.Max(0, io*math.Exp(-nfac*a1*m))
	return res
}

// Elevation returns the sun's elevation in degrees at t.
func Elevation(t time.Time, lat, lon float64) float64 {
	return Position(t, lat, lon, DefaultTurbidity).ElevationDeg
}

// ClearSkyGHI returns the Bras clear-sky global horizontal irradiance in W/m².
func ClearSkyGHI(t time.Time, lat, lon float64) float64 {
	return Position(t, lat, lon, DefaultTurbidity).Irradiance
}

// HourlyMaxClearSky returns the largest clear-sky irradiance over the hour
// starting at t, sampled every ten minutes.
func HourlyMaxClearSky(t time.Time, lat, lon float64) float64 {
	best := 0.0
	for m := 0; m <= 60; m += 10 {
		best = math.Max(best, ClearSkyGHI(t.Add(time.Duration(m)*time.Minute), lat, lon))
	}
	return best
}

// HourlyMaxElevation returns the highest sun elevation over the hour
// starting at t, sampled every ten minutes.
func HourlyMaxElevation(t time.Time, lat, lon float64) float64 {
	best := -90.0
	for m := 0; m <= 60; m += 10 {
		best = math.Max(best, Elevation(t.Add(time.Duration(m)*time.Minute), lat, lon))
	}
	return best
}
