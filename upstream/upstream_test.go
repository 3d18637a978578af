// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package upstream_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/ntn/ntntest"
	"github.com/cedarwud/ntn-stack-sub001/upstream"
)

// writeArtifact serializes fixture satellites into the stage 4 wire shape.
func writeArtifact(t *testing.T, dir, file string, constellation ntn.Constellation, count int) {
	type wireVector struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}
	type wireSample struct {
		Timestamp   string     `json:"timestamp"`
		PositionECI wireVector `json:"position_eci"`
		VelocityECI wireVector `json:"velocity_eci"`
		Geodetic struct {
			Latitude   float64 `json:"latitude_deg"`
			Longitude  float64 `json:"longitude_deg"`
			AltitudeKm float64 `json:"altitude_km"`
		} `json:"geodetic"`
		ElevationDeg float64 `json:"elevation_deg"`
		AzimuthDeg   float64 `json:"azimuth_deg"`
		RangeKm      float64 `json:"range_km"`
		IsVisible    bool    `json:"is_visible"`
	}
	type wireSat struct {
		NoradID         int                    `json:"norad_id"`
		TLEEpoch        string                 `json:"tle_epoch"`
		OrbitalElements map[string]float64     `json:"orbital_elements"`
		Timeseries      []wireSample           `json:"position_timeseries"`
	}

	satellites := map[string]wireSat{}
	for i := 0; i < count; i++ {
		sat := ntntest.Satellite(constellation, i, ntntest.Options{Samples: 8})
		ws := wireSat{
			NoradID:  sat.NoradID,
			TLEEpoch: sat.Elements.Epoch.Format("2006-01-02T15:04:05.000Z"),
			OrbitalElements: map[string]float64{
				"semi_major_axis_km":      sat.Elements.SemiMajorAxisKm,
				"eccentricity":            sat.Elements.Eccentricity,
				"inclination_deg":         sat.Elements.InclinationDeg,
				"raan_deg":                sat.Elements.RAANDeg,
				"arg_perigee_deg":         sat.Elements.ArgPerigeeDeg,
				"mean_anomaly_deg":        sat.Elements.MeanAnomalyDeg,
				"mean_motion_rev_per_day": sat.Elements.MeanMotion,
			},
		}
		for _, s := range sat.Samples {
			var w wireSample
			w.Timestamp = s.Time.Format("2006-01-02T15:04:05.000Z")
			w.PositionECI.X, w.PositionECI.Y, w.PositionECI.Z = s.ECI.X, s.ECI.Y, s.ECI.Z
			w.VelocityECI.X, w.VelocityECI.Y, w.VelocityECI.Z = s.VelocityECI.X, s.VelocityECI.Y, s.VelocityECI.Z
			w.Geodetic.Latitude, w.Geodetic.Longitude, w.Geodetic.AltitudeKm =
				s.Geodetic.LatDeg, s.Geodetic.LonDeg, s.Geodetic.AltKm
			w.ElevationDeg, w.AzimuthDeg, w.RangeKm, w.IsVisible =
				s.ElevationDeg, s.AzimuthDeg, s.RangeKm, s.Visible
			ws.Timeseries = append(ws.Timeseries, w)
		}
		satellites[sat.Name] = ws
	}

	raw, err := json.Marshal(map[string]interface{}{
		"metadata":   map[string]interface{}{"stage": 4},
		"satellites": satellites,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), raw, 0644))
}

func TestLoadBothConstellations(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	dir := ctx.Dir("input")
	writeArtifact(t, dir, "animation_enhanced_starlink.json", ntn.ConstellationStarlink, 5)
	writeArtifact(t, dir, "animation_enhanced_oneweb.json", ntn.ConstellationOneWeb, 3)

	loader := upstream.NewLoader(zaptest.NewLogger(t), upstream.Config{InputDir: dir})
	arena, report, err := loader.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 8, arena.Len())
	require.True(t, report.HasBoth())
	require.Equal(t, 8, report.TotalSatellites())

	// Starlink block precedes the OneWeb block in arena order.
	require.Equal(t, ntn.ConstellationStarlink, arena.Get(0).Constellation)
	require.Equal(t, ntn.ConstellationOneWeb, arena.Get(ntn.SatelliteID(arena.Len()-1)).Constellation)

	// Loading twice produces the identical arena order.
	arena2, _, err := loader.Load(ctx)
	require.NoError(t, err)
	for _, id := range arena.All() {
		require.Equal(t, arena.Get(id).Name, arena2.Get(id).Name)
	}
}

func TestLoadPartialConstellation(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	dir := ctx.Dir("input")
	writeArtifact(t, dir, "animation_enhanced_starlink.json", ntn.ConstellationStarlink, 4)

	loader := upstream.NewLoader(zaptest.NewLogger(t), upstream.Config{InputDir: dir})
	arena, report, err := loader.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, arena.Len())
	require.False(t, report.HasBoth())
	require.True(t, report.Constellations["oneweb"].Missing)
}

func TestLoadNothing(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	loader := upstream.NewLoader(zaptest.NewLogger(t), upstream.Config{InputDir: ctx.Dir("empty")})
	_, _, err := loader.Load(ctx)
	require.Error(t, err)
	require.True(t, upstream.ErrInputUnavailable.Has(err))
}

func TestLoadRejectsNonUTC(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	dir := ctx.Dir("input")
	raw := `{"metadata":{},"satellites":{"STARLINK-1":{
		"norad_id":1,"tle_epoch":"2025-06-15T00:00:00.000+08:00",
		"orbital_elements":{},"position_timeseries":[
			{"timestamp":"2025-06-15T00:00:00.000+08:00","is_visible":false,"elevation_deg":-10}
		]}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "animation_enhanced_starlink.json"), []byte(raw), 0644))

	loader := upstream.NewLoader(zaptest.NewLogger(t), upstream.Config{InputDir: dir})
	_, _, err := loader.Load(ctx)
	require.Error(t, err)
	require.True(t, upstream.ErrSchema.Has(err))
}

func TestTLEChecksum(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	tleDir := ctx.Dir("tle")
	loader := upstream.NewLoader(zaptest.NewLogger(t), upstream.Config{TLEDir: tleDir})

	// No TLE sources: empty checksum, no error.
	sum, err := loader.TLEChecksum()
	require.NoError(t, err)
	require.Empty(t, sum)

	require.NoError(t, os.WriteFile(filepath.Join(tleDir, "starlink.txt"), []byte("STARLINK-1000\n1 ...\n2 ...\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tleDir, "oneweb.txt"), []byte("ONEWEB-0100\n1 ...\n2 ...\n"), 0644))

	sum, err = loader.TLEChecksum()
	require.NoError(t, err)
	require.Len(t, sum, 64)

	// Identical content yields the identical checksum.
	sum2, err := loader.TLEChecksum()
	require.NoError(t, err)
	require.Equal(t, sum, sum2)
}
