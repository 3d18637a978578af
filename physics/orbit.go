// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package physics

import (
	"math"
)

// OrbitalVelocityKmS returns the circular orbital velocity for a semi-major
// axis in km, via v = sqrt(mu/a).
func OrbitalVelocityKmS(semiMajorAxisKm float64) float64 {
	if semiMajorAxisKm <= 0 {
		return 0
	}
	return math.Sqrt(MuEarth/(semiMajorAxisKm*1000)) / 1000
}

// OrbitalPeriodMinutes returns the orbital period for a semi-major axis in
// km, via Kepler's third law.
func OrbitalPeriodMinutes(semiMajorAxisKm float64) float64 {
	if semiMajorAxisKm <= 0 {
		return 0
	}
	a := semiMajorAxisKm * 1000
	return 2 * math.Pi * math.Sqrt(a*a*a/MuEarth) / 60
}

// SolveKepler solves Kepler's equation M = E - e*sin(E) for the eccentric
// anomaly E using Newton iteration. Angles in radians. Converges in a few
// iterations for the near-circular LEO eccentricities this pipeline sees.
func SolveKepler(meanAnomaly, eccentricity float64) float64 {
	const (
		tolerance     = 1e-8
		maxIterations = 10
	)

	e := meanAnomaly
	if eccentricity > 0.8 {
		e = math.Pi
	}
	for i := 0; i < maxIterations; i++ {
		delta := (e - eccentricity*math.Sin(e) - meanAnomaly) /
			(1 - eccentricity*math.Cos(e))
		e -= delta
		if math.Abs(delta) < tolerance {
			break
		}
	}
	return e
}

// TrueAnomaly converts an eccentric anomaly to the true anomaly, radians.
func TrueAnomaly(eccentricAnomaly, eccentricity float64) float64 {
	halfE := eccentricAnomaly / 2
	return 2 * math.Atan2(
		math.Sqrt(1+eccentricity)*math.Sin(halfE),
		math.Sqrt(1-eccentricity)*math.Cos(halfE),
	)
}

// SlantRangeKm returns the observer-to-satellite distance for a satellite at
// altitude altKm seen at elevation elevationDeg, spherical Earth.
func SlantRangeKm(altKm, elevationDeg float64) float64 {
	el := elevationDeg * math.Pi / 180
	r := EarthRadiusKm + altKm
	horizontal := EarthRadiusKm * math.Cos(el)
	return math.Sqrt(r*r-horizontal*horizontal) - EarthRadiusKm*math.Sin(el)
}

// CoverageAreaKm2 returns the ground footprint area of a satellite at
// altitude altKm with a minimum usable elevation, spherical cap formula.
func CoverageAreaKm2(altKm, minElevationDeg float64) float64 {
	el := minElevationDeg * math.Pi / 180
	r := EarthRadiusKm + altKm
	// Earth central angle to the edge of coverage.
	lambda := math.Acos(EarthRadiusKm/r*math.Cos(el)) - el
	return 2 * math.Pi * EarthRadiusKm * EarthRadiusKm * (1 - math.Cos(lambda))
}

// DopplerShiftHz returns the carrier shift for a radial velocity in km/s.
// Positive radial velocity (approaching) raises the received frequency.
func DopplerShiftHz(radialVelocityKmS, frequencyHz float64) float64 {
	return frequencyHz * (radialVelocityKmS * 1000) / SpeedOfLight
}
