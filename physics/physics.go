// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package physics implements the pure orbital mechanics and link budget
// calculations used across both pipeline stages: Kepler solving, coordinate
// rotations, Friis path loss, ITU-R atmospheric attenuation and RSRP.
//
// Every function is stateless and deterministic. RSRP in particular never
// draws random numbers; fading is a pure function of the satellite identity.
package physics

const (
	// MuEarth is the standard gravitational parameter of Earth, m^3/s^2.
	MuEarth = 3.986004418e14

	// EarthRadiusKm is the mean Earth radius.
	EarthRadiusKm = 6371.0

	// SpeedOfLight in m/s.
	SpeedOfLight = 299792458.0

	// UserAntennaGainDBi is the assumed ground terminal antenna gain.
	UserAntennaGainDBi = 35.0

	// RSRPMinDBm and RSRPMaxDBm bound reported RSRP per 3GPP TS 36.133.
	RSRPMinDBm = -140.0
	RSRPMaxDBm = -44.0
)

// ConstellationRF describes the downlink RF parameters of a constellation.
type ConstellationRF struct {
	EIRPdBW     float64
	FrequencyHz float64
	AltitudeKm  float64
}

// StarlinkRF and OneWebRF are the published downlink parameters used by the
// link budget. OtherRF is a conservative default for unmodeled networks.
var (
	StarlinkRF = ConstellationRF{EIRPdBW: 37.5, FrequencyHz: 20.2e9, AltitudeKm: 550}
	OneWebRF   = ConstellationRF{EIRPdBW: 40.0, FrequencyHz: 19.7e9, AltitudeKm: 1200}
	OtherRF    = ConstellationRF{EIRPdBW: 36.0, FrequencyHz: 20.0e9, AltitudeKm: 800}
)
