// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package pipeline_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"github.com/cedarwud/ntn-stack-sub001/integration/elevation"
	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/ntn/ntntest"
	"github.com/cedarwud/ntn-stack-sub001/pipeline"
	"github.com/cedarwud/ntn-stack-sub001/planning/optimizer"
	"github.com/cedarwud/ntn-stack-sub001/upstream"
	"github.com/cedarwud/ntn-stack-sub001/validation"
)

// writeArtifact serializes fixtures into the stage 4 wire shape the loader
// reads.
func writeArtifact(t *testing.T, dir, file string, constellation ntn.Constellation, count, samples int) {
	type wireVector struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}
	type wireGeodetic struct {
		Latitude   float64 `json:"latitude_deg"`
		Longitude  float64 `json:"longitude_deg"`
		AltitudeKm float64 `json:"altitude_km"`
	}
	type wireSample struct {
		Timestamp    string       `json:"timestamp"`
		PositionECI  wireVector   `json:"position_eci"`
		VelocityECI  wireVector   `json:"velocity_eci"`
		Geodetic     wireGeodetic `json:"geodetic"`
		ElevationDeg float64      `json:"elevation_deg"`
		AzimuthDeg   float64      `json:"azimuth_deg"`
		RangeKm      float64      `json:"range_km"`
		IsVisible    bool         `json:"is_visible"`
	}
	type wireSat struct {
		NoradID         int                `json:"norad_id"`
		TLEEpoch        string             `json:"tle_epoch"`
		OrbitalElements map[string]float64 `json:"orbital_elements"`
		Timeseries      []wireSample       `json:"position_timeseries"`
	}

	satellites := map[string]wireSat{}
	for i := 0; i < count; i++ {
		sat := ntntest.Satellite(constellation, i, ntntest.Options{Samples: samples})
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
			ws.Timeseries = append(ws.Timeseries, wireSample{
				Timestamp:    s.Time.Format("2006-01-02T15:04:05.000Z"),
				PositionECI:  wireVector{X: s.ECI.X, Y: s.ECI.Y, Z: s.ECI.Z},
				VelocityECI:  wireVector{X: s.VelocityECI.X, Y: s.VelocityECI.Y, Z: s.VelocityECI.Z},
				Geodetic:     wireGeodetic{Latitude: s.Geodetic.LatDeg, Longitude: s.Geodetic.LonDeg, AltitudeKm: s.Geodetic.AltKm},
				ElevationDeg: s.ElevationDeg,
				AzimuthDeg:   s.AzimuthDeg,
				RangeKm:      s.RangeKm,
				IsVisible:    s.Visible,
			})
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

func testConfig(ctx *testcontext.Context) pipeline.Config {
	return pipeline.Config{
		OutputDir:     ctx.Dir("out"),
		Observer:      pipeline.ObserverConfig{LatDeg: 24.9441667, LonDeg: 121.3713889, AltKm: 0.05},
		Upstream:      upstream.Config{InputDir: ctx.Dir("input"), TLEDir: ctx.Dir("tle")},
		Elevation:     elevation.Config{Thresholds: []int{5, 10, 15}},
		Optimizer:     optimizer.Config{Algorithms: []string{optimizer.AlgorithmAnnealing}},
		Validation:    validation.Config{Level: "STANDARD"},
		Stage5Timeout: time.Minute,
		Stage6Timeout: 2 * time.Minute,
	}
}

func TestPeerRunEndToEnd(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	config := testConfig(ctx)
	writeArtifact(t, config.Upstream.InputDir, "animation_enhanced_starlink.json", ntn.ConstellationStarlink, 18, 240)
	writeArtifact(t, config.Upstream.InputDir, "animation_enhanced_oneweb.json", ntn.ConstellationOneWeb, 7, 240)
	require.NoError(t, os.WriteFile(filepath.Join(config.Upstream.TLEDir, "starlink.txt"), []byte("STARLINK-1000\n"), 0644))

	peer, err := pipeline.New(zaptest.NewLogger(t), config)
	require.NoError(t, err)
	defer ctx.Check(peer.Close)

	result, err := peer.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, pipeline.ExitSuccess, pipeline.ExitCode(err))

	// The winning pool honors the hard cardinality constraints.
	require.NotNil(t, result.Pool)
	require.True(t, result.Pool.SatisfiesQuantity())
	require.NotEmpty(t, result.Pool.ConfigurationID)
	require.Equal(t, optimizer.AlgorithmAnnealing, result.Best.Algorithm)

	// The index store is disabled, so integration degraded to volume-only.
	require.False(t, result.Integration.PostgresConnected)

	// Every orchestrator step ran, in order.
	var names []string
	for _, step := range result.Steps {
		names = append(names, step.Name)
	}
	require.Equal(t, []string{
		"gatekeeper",
		"load_upstream",
		"elevation_filter",
		"handover_synthesis",
		"storage_integration",
		"stage5_validation",
		"orbital_phase_analysis",
		"temporal_spatial_coordination",
		"pool_optimization",
		"coverage_guarantee",
		"stage6_validation",
		"rl_dataset",
		"emit_outputs",
	}, names)

	// Canonical artifacts and per-category directories exist on disk.
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.CanonicalOutputName))
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.PoolOutputName))
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.DirLayeredElevation, "starlink_5deg.json"))
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.DirHandoverScenario, "handover_events_a4.json"))
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.DirSignalQuality, "quality_summary.json"))
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.DirProcessingCache, "run_manifest.json"))
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.DirStatusFiles, "last_processing_time.txt"))
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.DirStatusFiles, "tle_checksum.txt"))
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.DirStatusFiles, "processing_status.json"))
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.DirStatusFiles, "health_check.json"))
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.DirSnapshots, "stage5_validation.json"))
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.DirSnapshots, "stage6_validation.json"))

	raw, err := os.ReadFile(filepath.Join(config.OutputDir, pipeline.CanonicalOutputName))
	require.NoError(t, err)
	var canonical map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &canonical))
	require.Equal(t, "data_integration", canonical["stage"])
	require.Equal(t, float64(25), canonical["total_satellites"])
	metadata := canonical["metadata"].(map[string]interface{})
	require.Contains(t, metadata, "observer_location")
	require.Contains(t, metadata, "tle_checksum")
}

func TestPeerRunIsReproducible(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	config := testConfig(ctx)
	writeArtifact(t, config.Upstream.InputDir, "animation_enhanced_starlink.json", ntn.ConstellationStarlink, 16, 240)
	writeArtifact(t, config.Upstream.InputDir, "animation_enhanced_oneweb.json", ntn.ConstellationOneWeb, 6, 240)

	readBack := func(name string) string {
		raw, err := os.ReadFile(filepath.Join(config.OutputDir, name))
		require.NoError(t, err)
		return string(raw)
	}
	run := func() (*pipeline.RunResult, string, string) {
		peer, err := pipeline.New(zaptest.NewLogger(t), config)
		require.NoError(t, err)
		defer ctx.Check(peer.Close)
		result, err := peer.Run(ctx)
		require.NoError(t, err)
		return result, readBack(pipeline.CanonicalOutputName), readBack(pipeline.PoolOutputName)
	}

	first, firstCanonical, firstPool := run()
	second, secondCanonical, secondPool := run()
	require.Equal(t, first.Pool.ConfigurationID, second.Pool.ConfigurationID)
	require.Equal(t, first.Best.Selection, second.Best.Selection)
	require.Equal(t, first.Dataset.Seed, second.Dataset.Seed)

	// The canonical artifacts must reproduce byte for byte; only the status
	// files may differ between reruns.
	require.Equal(t, firstCanonical, secondCanonical)
	require.Equal(t, firstPool, secondPool)
}

func TestPeerRejectsConfiguredPlaceholderPlanner(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	config := testConfig(ctx)
	config.Optimizer.Algorithms = []string{"random_selection"}

	peer, err := pipeline.New(zaptest.NewLogger(t), config)
	require.NoError(t, err)
	defer ctx.Check(peer.Close)

	_, err = peer.Run(ctx)
	require.Error(t, err)
	require.True(t, pipeline.ErrZeroTolerance.Has(err))
	require.Equal(t, pipeline.ExitZeroTolerance, pipeline.ExitCode(err))

	// The failure lands in the error snapshot, diagnostic included.
	raw, readErr := os.ReadFile(filepath.Join(config.OutputDir, pipeline.DirSnapshots, "error_snapshot.json"))
	require.NoError(t, readErr)
	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &snapshot))
	require.Equal(t, "ZeroToleranceFailure", snapshot["error_kind"])
	require.Contains(t, snapshot["message"], "錯誤動態池規劃器")
}

func TestPeerWritesErrorSnapshotOnMissingInput(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	config := testConfig(ctx)

	peer, err := pipeline.New(zaptest.NewLogger(t), config)
	require.NoError(t, err)
	defer ctx.Check(peer.Close)

	_, err = peer.Run(ctx)
	require.Error(t, err)
	require.Equal(t, pipeline.ExitFailure, pipeline.ExitCode(err))

	raw, readErr := os.ReadFile(filepath.Join(config.OutputDir, pipeline.CanonicalOutputName))
	require.NoError(t, readErr)
	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &snapshot))
	require.Equal(t, "InputUnavailable", snapshot["error_kind"])
	require.Equal(t, "stage5_integration", snapshot["stage"])
}

func TestRunStage5ContinuesOnPartialUpstream(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	config := testConfig(ctx)
	writeArtifact(t, config.Upstream.InputDir, "animation_enhanced_starlink.json", ntn.ConstellationStarlink, 10, 240)

	peer, err := pipeline.New(zaptest.NewLogger(t), config)
	require.NoError(t, err)
	defer ctx.Check(peer.Close)

	result, err := peer.RunStage5(ctx)
	require.NoError(t, err)
	require.NotNil(t, result.Integration)
	require.Nil(t, result.Pool)
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.CanonicalOutputName))
}

func TestRunStage6ProducesPool(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	config := testConfig(ctx)
	writeArtifact(t, config.Upstream.InputDir, "animation_enhanced_starlink.json", ntn.ConstellationStarlink, 18, 240)
	writeArtifact(t, config.Upstream.InputDir, "animation_enhanced_oneweb.json", ntn.ConstellationOneWeb, 7, 240)

	peer, err := pipeline.New(zaptest.NewLogger(t), config)
	require.NoError(t, err)
	defer ctx.Check(peer.Close)

	result, err := peer.RunStage6(ctx)
	require.NoError(t, err)
	require.NotNil(t, result.Pool)
	require.True(t, result.Pool.SatisfiesQuantity())
	require.NotNil(t, result.Stage6Validation)
	require.FileExists(t, filepath.Join(config.OutputDir, pipeline.PoolOutputName))
}
