// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package upstream

import (
	"sort"
	"time"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
)

// Wire structs for the stage 4 artifact files. Kept separate from the ntn
// model so that schema drift upstream never leaks into the domain types.

type artifactFile struct {
	Metadata   map[string]interface{}       `json:"metadata"`
	Satellites map[string]artifactSatellite `json:"satellites"`
}

type artifactSatellite struct {
	NoradID            int               `json:"norad_id"`
	TLEEpoch           string            `json:"tle_epoch"`
	OrbitalElements    artifactElements  `json:"orbital_elements"`
	PositionTimeseries []artifactSample  `json:"position_timeseries"`
}

type artifactElements struct {
	SemiMajorAxisKm float64 `json:"semi_major_axis_km"`
	Eccentricity    float64 `json:"eccentricity"`
	InclinationDeg  float64 `json:"inclination_deg"`
	RAANDeg         float64 `json:"raan_deg"`
	ArgPerigeeDeg   float64 `json:"arg_perigee_deg"`
	MeanAnomalyDeg  float64 `json:"mean_anomaly_deg"`
	MeanMotion      float64 `json:"mean_motion_rev_per_day"`
}

type artifactVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type artifactGeodetic struct {
	Latitude   float64 `json:"latitude_deg"`
	Longitude  float64 `json:"longitude_deg"`
	AltitudeKm float64 `json:"altitude_km"`
}

type artifactSample struct {
	Timestamp    string           `json:"timestamp"`
	PositionECI  artifactVector   `json:"position_eci"`
	VelocityECI  artifactVector   `json:"velocity_eci"`
	Geodetic     artifactGeodetic `json:"geodetic"`
	ElevationDeg float64          `json:"elevation_deg"`
	AzimuthDeg   float64          `json:"azimuth_deg"`
	RangeKm      float64          `json:"range_km"`
	IsVisible    bool             `json:"is_visible"`
}

func sortedKeys(m map[string]artifactSatellite) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func convertSatellite(name string, constellation ntn.Constellation, in artifactSatellite) (ntn.Satellite, error) {
	if len(in.PositionTimeseries) == 0 {
		return ntn.Satellite{}, ErrSchema.New("satellite %s has an empty position timeseries", name)
	}

	epoch, err := parseUTC(in.TLEEpoch)
	if err != nil {
		return ntn.Satellite{}, ErrSchema.New("satellite %s tle_epoch: %v", name, err)
	}

	sat := ntn.Satellite{
		Name:          name,
		NoradID:       in.NoradID,
		Constellation: constellation,
		Elements: ntn.OrbitalElements{
			SemiMajorAxisKm: in.OrbitalElements.SemiMajorAxisKm,
			Eccentricity:    in.OrbitalElements.Eccentricity,
			InclinationDeg:  in.OrbitalElements.InclinationDeg,
			RAANDeg:         in.OrbitalElements.RAANDeg,
			ArgPerigeeDeg:   in.OrbitalElements.ArgPerigeeDeg,
			MeanAnomalyDeg:  in.OrbitalElements.MeanAnomalyDeg,
			MeanMotion:      in.OrbitalElements.MeanMotion,
			Epoch:           epoch,
		},
		Samples: make([]ntn.PositionSample, 0, len(in.PositionTimeseries)),
	}

	for i, s := range in.PositionTimeseries {
		ts, err := parseUTC(s.Timestamp)
		if err != nil {
			return ntn.Satellite{}, ErrSchema.New("satellite %s sample %d: %v", name, i, err)
		}
		sat.Samples = append(sat.Samples, ntn.PositionSample{
			Time:         ts,
			ECI:          ntn.Vector3{X: s.PositionECI.X, Y: s.PositionECI.Y, Z: s.PositionECI.Z},
			VelocityECI:  ntn.Vector3{X: s.VelocityECI.X, Y: s.VelocityECI.Y, Z: s.VelocityECI.Z},
			Geodetic:     ntn.Geodetic{LatDeg: s.Geodetic.Latitude, LonDeg: s.Geodetic.Longitude, AltKm: s.Geodetic.AltitudeKm},
			ElevationDeg: s.ElevationDeg,
			AzimuthDeg:   s.AzimuthDeg,
			RangeKm:      s.RangeKm,
			Visible:      s.IsVisible,
		})
	}
	return sat, nil
}

// parseUTC accepts ISO 8601 timestamps with an explicit UTC designator
// (Z or +00:00) and millisecond or finer precision.
func parseUTC(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, ErrSchema.New("empty timestamp")
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, ErrSchema.New("timestamp %q is not ISO 8601: %v", value, err)
	}
	if _, offset := ts.Zone(); offset != 0 {
		return time.Time{}, ErrSchema.New("timestamp %q is not UTC", value)
	}
	return ts.UTC(), nil
}
