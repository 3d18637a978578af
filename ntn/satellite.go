// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package ntn

import (
	"time"
)

// Vector3 is a cartesian triple in kilometers (position) or km/s (velocity).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Geodetic is a geographic coordinate derived from ECI via GMST rotation.
type Geodetic struct {
	LatDeg float64 `json:"latitude_deg"`
	LonDeg float64 `json:"longitude_deg"`
	AltKm  float64 `json:"altitude_km"`
}

// OrbitalElements are the keplerian elements of a satellite at its TLE epoch.
type OrbitalElements struct {
	SemiMajorAxisKm float64   `json:"semi_major_axis_km"`
	Eccentricity    float64   `json:"eccentricity"`
	InclinationDeg  float64   `json:"inclination_deg"`
	RAANDeg         float64   `json:"raan_deg"`
	ArgPerigeeDeg   float64   `json:"arg_perigee_deg"`
	MeanAnomalyDeg  float64   `json:"mean_anomaly_deg"`
	MeanMotion      float64   `json:"mean_motion_rev_per_day"`
	Epoch           time.Time `json:"epoch"`
}

// PositionSample is one propagated point of a satellite relative to the
// configured ground observer.
type PositionSample struct {
	Time         time.Time `json:"timestamp"`
	ECI          Vector3   `json:"eci_km"`
	VelocityECI  Vector3   `json:"velocity_eci_km_s"`
	Geodetic     Geodetic  `json:"geodetic"`
	ElevationDeg float64   `json:"elevation_deg"`
	AzimuthDeg   float64   `json:"azimuth_deg"`
	RangeKm      float64   `json:"range_km"`
	Visible      bool      `json:"is_visible"`
}

// Satellite is an upstream-produced satellite with its full position
// timeseries. Immutable within this module.
type Satellite struct {
	Name          string           `json:"satellite_id"`
	NoradID       int              `json:"norad_id,omitempty"`
	Constellation Constellation    `json:"-"`
	Elements      OrbitalElements  `json:"orbital_elements"`
	Samples       []PositionSample `json:"position_timeseries"`
}

// VisibleCount returns the number of samples flagged visible.
func (s *Satellite) VisibleCount() int {
	count := 0
	for i := range s.Samples {
		if s.Samples[i].Visible {
			count++
		}
	}
	return count
}

// VisibilityRatio returns visible samples over total samples, 0 for empty.
func (s *Satellite) VisibilityRatio() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return float64(s.VisibleCount()) / float64(len(s.Samples))
}

// TimeRange returns the first and last sample timestamps.
func (s *Satellite) TimeRange() (first, last time.Time) {
	if len(s.Samples) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Samples[0].Time, s.Samples[len(s.Samples)-1].Time
}

// ValidateSamples checks the per-satellite sample invariants: monotonically
// non-decreasing timestamps, elevation within [-90, 90], and visibility
// implying non-negative elevation.
func (s *Satellite) ValidateSamples() error {
	for i := range s.Samples {
		sample := &s.Samples[i]
		if i > 0 && sample.Time.Before(s.Samples[i-1].Time) {
			return Error.New("satellite %s: sample %d timestamp %v precedes %v",
				s.Name, i, sample.Time, s.Samples[i-1].Time)
		}
		if sample.ElevationDeg < -90 || sample.ElevationDeg > 90 {
			return Error.New("satellite %s: sample %d elevation %.2f out of range",
				s.Name, i, sample.ElevationDeg)
		}
		if sample.Visible && sample.ElevationDeg < 0 {
			return Error.New("satellite %s: sample %d visible below horizon (%.2f deg)",
				s.Name, i, sample.ElevationDeg)
		}
	}
	return nil
}
