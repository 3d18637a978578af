// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package physics

import (
	"math"
	"time"
)

// j2000 is the epoch of the GMST polynomial: 2000-01-01 12:00:00 UTC.
var j2000 = time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)

// GMSTDegrees returns the Greenwich Mean Sidereal Time angle in degrees for
// a UTC instant, normalized to [0, 360).
func GMSTDegrees(t time.Time) float64 {
	days := t.UTC().Sub(j2000).Seconds() / 86400
	gmst := 280.46061837 + 360.98564736629*days
	gmst = math.Mod(gmst, 360)
	if gmst < 0 {
		gmst += 360
	}
	return gmst
}

// ECIToGeodetic rotates an ECI position (km) at a UTC instant into
// geographic latitude, longitude (degrees) and altitude (km), spherical
// Earth. The inverse of the GMST rotation upstream applies when building
// the timeseries, so round-tripping a sample reproduces its geodetic block.
func ECIToGeodetic(x, y, z float64, t time.Time) (latDeg, lonDeg, altKm float64) {
	r := math.Sqrt(x*x + y*y + z*z)
	if r == 0 {
		return 0, 0, -EarthRadiusKm
	}
	latDeg = math.Asin(z/r) * 180 / math.Pi

	lonDeg = math.Atan2(y, x)*180/math.Pi - GMSTDegrees(t)
	lonDeg = math.Mod(lonDeg, 360)
	if lonDeg > 180 {
		lonDeg -= 360
	} else if lonDeg < -180 {
		lonDeg += 360
	}

	return latDeg, lonDeg, r - EarthRadiusKm
}
