// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package physics_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/physics"
)

func TestOrbitalVelocityLEO(t *testing.T) {
	// Starlink shell: ~550 km altitude.
	v := physics.OrbitalVelocityKmS(physics.EarthRadiusKm + 550)
	require.InDelta(t, 7.59, v, 0.05)

	// OneWeb shell: ~1200 km altitude.
	v = physics.OrbitalVelocityKmS(physics.EarthRadiusKm + 1200)
	require.InDelta(t, 7.26, v, 0.05)

	require.Zero(t, physics.OrbitalVelocityKmS(0))
}

func TestOrbitalPeriod(t *testing.T) {
	p := physics.OrbitalPeriodMinutes(physics.EarthRadiusKm + 550)
	require.InDelta(t, 95.6, p, 1.0)

	p = physics.OrbitalPeriodMinutes(physics.EarthRadiusKm + 1200)
	require.InDelta(t, 109.4, p, 1.5)
}

func TestSolveKepler(t *testing.T) {
	for _, tc := range []struct {
		meanAnomaly  float64
		eccentricity float64
	}{
		{0, 0},
		{1.0, 0.001},
		{2.5, 0.01},
		{5.9, 0.1},
		{math.Pi, 0.3},
	} {
		e := physics.SolveKepler(tc.meanAnomaly, tc.eccentricity)
		// The solution must satisfy Kepler's equation itself.
		back := e - tc.eccentricity*math.Sin(e)
		require.InDelta(t, tc.meanAnomaly, back, 1e-7,
			"M=%v e=%v", tc.meanAnomaly, tc.eccentricity)
	}
}

func TestSolveKeplerCircular(t *testing.T) {
	// For e=0 the eccentric anomaly equals the mean anomaly exactly.
	require.InDelta(t, 1.234, physics.SolveKepler(1.234, 0), 1e-12)
}

func TestFriisFSPL(t *testing.T) {
	// 1000 km at 20 GHz is about 178.5 dB.
	fspl := physics.FriisFSPL(1000, 20e9)
	require.InDelta(t, 178.5, fspl, 0.5)

	// FSPL grows by 6 dB when the distance doubles.
	require.InDelta(t, 6.02, physics.FriisFSPL(2000, 20e9)-fspl, 0.01)

	require.Zero(t, physics.FriisFSPL(0, 20e9))
}

func TestFSPLWithinLEOValidationBand(t *testing.T) {
	// Plausible FSPL band for LEO geometries.
	for _, alt := range []float64{550.0, 1200.0} {
		for el := 5.0; el <= 90; el += 5 {
			d := physics.SlantRangeKm(alt, el)
			fspl := physics.FriisFSPL(d, 20e9)
			require.Greater(t, fspl, 140.0, "alt=%v el=%v", alt, el)
			require.Less(t, fspl, 190.0, "alt=%v el=%v", alt, el)
		}
	}
}

func TestITUAtmosphericLoss(t *testing.T) {
	zenith := physics.ITUAtmosphericLoss(90, 20e9)
	low := physics.ITUAtmosphericLoss(5, 20e9)
	require.Greater(t, low, zenith)
	require.Greater(t, zenith, 0.0)
	require.Less(t, low, 20.0)

	// Below-horizon elevations are capped at the 5 degree path factor.
	require.Equal(t, low, physics.ITUAtmosphericLoss(-3, 20e9))
}

func TestSlantRange(t *testing.T) {
	// Straight up: slant range equals altitude.
	require.InDelta(t, 550, physics.SlantRangeKm(550, 90), 1e-6)
	// Range grows as elevation drops.
	require.Greater(t, physics.SlantRangeKm(550, 10), physics.SlantRangeKm(550, 60))
}

func TestCoverageAreaWithinValidationBand(t *testing.T) {
	for _, alt := range []float64{550.0, 1200.0} {
		area := physics.CoverageAreaKm2(alt, 5)
		require.Greater(t, area, 1e5)
		require.Less(t, area, 1e7)
	}
}

func TestRSRPDeterministic(t *testing.T) {
	a := physics.RSRP("STARLINK-1234", ntn.ConstellationStarlink, 35)
	for i := 0; i < 10; i++ {
		require.Equal(t, a, physics.RSRP("STARLINK-1234", ntn.ConstellationStarlink, 35))
	}

	// Different satellites fade differently at the same elevation.
	b := physics.RSRP("STARLINK-5678", ntn.ConstellationStarlink, 35)
	require.NotEqual(t, a, b)
}

func TestRSRPRange(t *testing.T) {
	for el := 5.0; el <= 90; el += 1 {
		for _, c := range []ntn.Constellation{
			ntn.ConstellationStarlink, ntn.ConstellationOneWeb, ntn.ConstellationOther,
		} {
			rsrp := physics.RSRP("SAT-1", c, el)
			require.GreaterOrEqual(t, rsrp, physics.RSRPMinDBm)
			require.LessOrEqual(t, rsrp, physics.RSRPMaxDBm)
		}
	}
}

func TestDopplerShift(t *testing.T) {
	// 7.5 km/s radial at 20 GHz is about 500 kHz.
	shift := physics.DopplerShiftHz(7.5, 20e9)
	require.InDelta(t, 500e3, shift, 1e3)
	require.Negative(t, physics.DopplerShiftHz(-7.5, 20e9))
}

func TestGMSTNormalized(t *testing.T) {
	for _, ts := range []time.Time{
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 15, 3, 30, 0, 0, time.UTC),
		time.Date(1990, 2, 1, 0, 0, 0, 0, time.UTC),
	} {
		gmst := physics.GMSTDegrees(ts)
		require.GreaterOrEqual(t, gmst, 0.0)
		require.Less(t, gmst, 360.0)
	}

	// At the J2000 epoch the polynomial evaluates to its constant term.
	require.InDelta(t, 280.46061837, physics.GMSTDegrees(j2000()), 1e-6)
}

func j2000() time.Time {
	return time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)
}

func TestECIToGeodetic(t *testing.T) {
	ts := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	// A point on the rotation axis is at the pole regardless of GMST.
	lat, _, alt := physics.ECIToGeodetic(0, 0, physics.EarthRadiusKm+550, ts)
	require.InDelta(t, 90, lat, 1e-9)
	require.InDelta(t, 550, alt, 1e-9)

	// Longitude stays within [-180, 180].
	lat, lon, alt := physics.ECIToGeodetic(6900, 1000, -2000, ts)
	require.GreaterOrEqual(t, lon, -180.0)
	require.LessOrEqual(t, lon, 180.0)
	require.GreaterOrEqual(t, lat, -90.0)
	require.LessOrEqual(t, lat, 90.0)
	require.Greater(t, alt, 0.0)
}

func TestTrueAnomalyCircular(t *testing.T) {
	require.InDelta(t, 1.0, physics.TrueAnomaly(1.0, 0), 1e-12)
}
