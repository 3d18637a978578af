// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package physics

import (
	"hash/fnv"
	"math"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
)

// FriisFSPL returns the free-space path loss in dB for a distance in km and
// a carrier frequency in Hz.
func FriisFSPL(distanceKm, frequencyHz float64) float64 {
	if distanceKm <= 0 || frequencyHz <= 0 {
		return 0
	}
	return 20*math.Log10(distanceKm*1000) +
		20*math.Log10(frequencyHz) +
		20*math.Log10(4*math.Pi/SpeedOfLight)
}

// ITUAtmosphericLoss returns the combined oxygen, water vapour and cloud
// attenuation in dB along the slant path, following the simplified ITU-R
// P.618 model with path factor 1/sin(elevation). Elevations at or below the
// horizon use the 5 degree path factor as a ceiling.
func ITUAtmosphericLoss(elevationDeg, frequencyHz float64) float64 {
	fGHz := frequencyHz / 1e9

	// Zenith specific attenuations around the 20 GHz downlink band.
	oxygen := 0.3 * (fGHz / 20)
	waterVapor := 0.5 * (fGHz / 20) * (fGHz / 20)
	cloud := 0.4 * (fGHz / 20)

	if elevationDeg < 5 {
		elevationDeg = 5
	}
	pathFactor := 1 / math.Sin(elevationDeg*math.Pi/180)

	return (oxygen + waterVapor + cloud) * pathFactor
}

// RFFor returns the RF parameter table entry for a constellation.
func RFFor(c ntn.Constellation) ConstellationRF {
	switch c {
	case ntn.ConstellationStarlink:
		return StarlinkRF
	case ntn.ConstellationOneWeb:
		return OneWebRF
	default:
		return OtherRF
	}
}

// fadingDB derives the multipath plus shadowing term from the satellite
// identity and elevation. Bounded to [-6, +6] dB and fully deterministic:
// identical (name, elevation) inputs always produce the identical value.
func fadingDB(name string, elevationDeg float64) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	seed := float64(h.Sum32() % 360)

	phase := seed * math.Pi / 180
	el := elevationDeg * math.Pi / 180
	return 4*math.Sin(phase+el) + 2*math.Cos(2*phase-el)
}

// RSRP computes the reference signal received power in dBm for a satellite
// seen at an elevation. Pure function of (name, constellation, elevation):
// EIRP + user antenna gain - FSPL - atmospheric loss + deterministic fading,
// clamped to the 3GPP TS 36.133 reporting range.
func RSRP(name string, c ntn.Constellation, elevationDeg float64) float64 {
	rf := RFFor(c)

	distanceKm := SlantRangeKm(rf.AltitudeKm, elevationDeg)
	fspl := FriisFSPL(distanceKm, rf.FrequencyHz)
	atmospheric := ITUAtmosphericLoss(elevationDeg, rf.FrequencyHz)

	eirpDBm := rf.EIRPdBW + 30
	rsrp := eirpDBm + UserAntennaGainDBi - fspl - atmospheric + fadingDB(name, elevationDeg)

	// Narrowband RSRP sits well below the wideband received power; the
	// resource-block share accounts for the offset.
	rsrp -= 30.0

	if rsrp < RSRPMinDBm {
		return RSRPMinDBm
	}
	if rsrp > RSRPMaxDBm {
		return RSRPMaxDBm
	}
	return rsrp
}
