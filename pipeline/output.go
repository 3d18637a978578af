// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cedarwud/ntn-stack-sub001/integration/elevation"
	"github.com/cedarwud/ntn-stack-sub001/integration/storage/bulkstore"
	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/physics"
	"github.com/cedarwud/ntn-stack-sub001/planning/coordination"
	"github.com/cedarwud/ntn-stack-sub001/planning/coverage"
	"github.com/cedarwud/ntn-stack-sub001/planning/optimizer"
)

// Canonical artifact names. Downstream consumers key on these exact paths.
const (
	CanonicalOutputName = "data_integration_output.json"
	PoolOutputName      = "dynamic_satellite_pool_output.json"
)

// Per-category output directories under the output root.
const (
	DirLayeredElevation = "layered_elevation_enhanced"
	DirHandoverScenario = "handover_scenarios"
	DirSignalQuality    = "signal_quality_analysis"
	DirProcessingCache  = "processing_cache"
	DirStatusFiles      = "status_files"
	DirSnapshots        = "validation_snapshots"
)

// Builder emits the run artifacts: the canonical integration output, the
// dynamic pool artifact, the per-category directories, status files and
// validation snapshots.
type Builder struct {
	log      *zap.Logger
	dir      string
	observer ObserverConfig
}

// NewBuilder creates an artifact builder rooted at dir.
func NewBuilder(log *zap.Logger, dir string, observer ObserverConfig) *Builder {
	return &Builder{log: log, dir: dir, observer: observer}
}

// Dir returns the output root.
func (b *Builder) Dir() string { return b.dir }

func (b *Builder) writer(subdirs ...string) *bulkstore.Writer {
	parts := append([]string{b.dir}, subdirs...)
	return bulkstore.NewWriter(b.log, filepath.Join(parts...))
}

// WriteAll emits every artifact of a completed run and returns their paths.
// The canonical JSON contains no wall-clock values, so byte-identical input
// reproduces byte-identical output; only the status files carry timestamps.
func (b *Builder) WriteAll(ctx context.Context, result *RunResult) (paths []string, err error) {
	defer mon.Task()(&ctx)(&err)

	root := b.writer()
	add := func(artifact bulkstore.Artifact, err error) error {
		if err != nil {
			return err
		}
		paths = append(paths, artifact.Path)
		return nil
	}

	if err := add(root.WriteJSON(ctx, CanonicalOutputName, b.canonicalPayload(result))); err != nil {
		return paths, err
	}
	if result.Pool != nil {
		if err := add(root.WriteJSON(ctx, PoolOutputName, b.poolPayload(result))); err != nil {
			return paths, err
		}
	}

	layered := b.writer(DirLayeredElevation)
	if result.Elevation != nil {
		for i := range result.Elevation.Layers {
			layer := &result.Elevation.Layers[i]
			name := fmt.Sprintf("%s_%ddeg.json", layer.Constellation, layer.ThresholdDeg)
			if err := add(layered.WriteJSON(ctx, name, layerPayload(layer))); err != nil {
				return paths, err
			}
		}
	}

	scenarios := b.writer(DirHandoverScenario)
	if result.Events != nil {
		for _, kind := range []ntn.EventKind{ntn.EventA4, ntn.EventA5, ntn.EventD2} {
			events := result.Events.EventsOfKind(kind)
			label := strings.ToLower(kind.String())
			if err := add(scenarios.WriteEvents(ctx, label, map[string]interface{}{
				"event_type":  kind.String(),
				"event_count": len(events),
				"events":      events,
			})); err != nil {
				return paths, err
			}
		}
	}
	if result.Elevation != nil {
		if err := add(scenarios.WriteJSON(ctx, "best_coverage_windows.json",
			bestWindows(result.Elevation, 20))); err != nil {
			return paths, err
		}
	}

	quality := b.writer(DirSignalQuality)
	if result.Arena != nil {
		if err := add(quality.WriteJSON(ctx, "quality_summary.json", qualitySummary(result.Arena))); err != nil {
			return paths, err
		}
		if err := add(quality.WriteJSON(ctx, "constellation_comparison.json", constellationComparison(result.Arena))); err != nil {
			return paths, err
		}
		if err := add(quality.WriteJSON(ctx, "signal_heatmap.json", signalHeatmap(result.Arena))); err != nil {
			return paths, err
		}
	}

	cache := b.writer(DirProcessingCache)
	if err := add(cache.WriteJSON(ctx, "run_manifest.json", b.runManifest(result))); err != nil {
		return paths, err
	}

	snapshots := b.writer(DirSnapshots)
	if result.Stage5Validation != nil {
		if err := add(snapshots.WriteJSON(ctx, "stage5_validation.json", result.Stage5Validation)); err != nil {
			return paths, err
		}
	}
	if result.Stage6Validation != nil {
		if err := add(snapshots.WriteJSON(ctx, "stage6_validation.json", result.Stage6Validation)); err != nil {
			return paths, err
		}
	}

	statusPaths, err := b.writeStatusFiles(ctx, result)
	if err != nil {
		return paths, err
	}
	paths = append(paths, statusPaths...)

	b.log.Info("run artifacts written", zap.Int("artifacts", len(paths)), zap.String("dir", b.dir))
	return paths, nil
}

// WriteErrorSnapshot records a failed run at the canonical output path and
// in the snapshot directory, so operators and retries see the failure
// instead of a stale previous success.
func (b *Builder) WriteErrorSnapshot(ctx context.Context, runErr error, result *RunResult) error {
	// The surrounding run context may already be past its deadline.
	ctx = context.WithoutCancel(ctx)

	stage := "stage5_integration"
	if result != nil && result.Integration != nil {
		stage = "stage6_planning"
	}
	payload := map[string]interface{}{
		"stage":      stage,
		"error_kind": ErrorKind(runErr),
		"message":    runErr.Error(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if result != nil && len(result.Steps) > 0 {
		partial := map[string]interface{}{"steps": result.Steps}
		if result.Arena != nil {
			partial["satellites_loaded"] = result.Arena.Len()
		}
		if result.Integration != nil {
			partial["successfully_integrated"] = result.Integration.SuccessfullyIntegrated
		}
		payload["partial_results"] = partial
	}

	var group []error
	if _, err := b.writer().WriteJSON(ctx, CanonicalOutputName, payload); err != nil {
		group = append(group, err)
	}
	if _, err := b.writer(DirSnapshots).WriteJSON(ctx, "error_snapshot.json", payload); err != nil {
		group = append(group, err)
	}
	for _, err := range group {
		b.log.Error("error snapshot write failed", zap.Error(err))
	}
	if len(group) > 0 {
		return Error.New("error snapshot incomplete: %d write failures", len(group))
	}
	return nil
}

// canonicalPayload shapes the stage 5 integration artifact.
func (b *Builder) canonicalPayload(result *RunResult) map[string]interface{} {
	payload := map[string]interface{}{
		"stage": "data_integration",
	}
	if result.Arena != nil {
		payload["total_satellites"] = result.Arena.Len()
		payload["satellites"] = satelliteSummaries(result.Arena)
	}
	if result.Report != nil {
		payload["constellation_summary"] = result.Report.Constellations
	}
	if result.Integration != nil {
		payload["successfully_integrated"] = result.Integration.SuccessfullyIntegrated
		payload["postgresql_summary"] = map[string]interface{}{
			"connected":              result.Integration.PostgresConnected,
			"index_rows":             result.Integration.IndexRows,
			"visible_points_indexed": result.Integration.VisiblePointsIndexed,
			"round_trip_verified":    result.Integration.RoundTripVerified,
			"storage_balance":        result.Integration.Balance,
		}
	}

	metadata := map[string]interface{}{
		"observer_location": map[string]float64{
			"latitude_deg":  b.observer.LatDeg,
			"longitude_deg": b.observer.LonDeg,
			"altitude_km":   b.observer.AltKm,
		},
		"processing_metrics": stepMetrics(result.Steps),
	}
	if result.Integration != nil {
		metadata["storage_architecture"] = result.Integration.Balance.Status
	}
	if result.Report != nil {
		metadata["tle_checksum"] = result.Report.TLEChecksum
	}
	if result.Stage5Validation != nil {
		metadata["validation_summary"] = result.Stage5Validation
		metadata["academic_compliance"] = map[string]interface{}{
			"grade":     result.Stage5Validation.Grade,
			"pass_rate": result.Stage5Validation.PassRate,
		}
	}
	payload["metadata"] = metadata
	return payload
}

// stepMetrics keeps the step names and their key metrics but drops the
// measured durations: the canonical artifact must reproduce byte for byte
// on rerun, so timings live in status_files/processing_status.json instead.
func stepMetrics(steps []StepResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(steps))
	for _, step := range steps {
		entry := map[string]interface{}{"name": step.Name}
		if len(step.Metrics) > 0 {
			entry["metrics"] = step.Metrics
		}
		out = append(out, entry)
	}
	return out
}

// poolPayload shapes the stage 6 planning artifact.
func (b *Builder) poolPayload(result *RunResult) map[string]interface{} {
	starlink, oneweb := result.Pool.MemberNames(result.Arena)
	pool := map[string]interface{}{
		"configuration_id":       result.Pool.ConfigurationID,
		"starlink_satellites":    starlink,
		"oneweb_satellites":      oneweb,
		"coverage_rate":          result.Pool.CoverageRate,
		"avg_signal_quality":     result.Pool.AvgSignalQuality,
		"est_handover_frequency": result.Pool.EstHandoverFrequency,
		"resource_utilization":   result.Pool.ResourceUtilization,
		"fitness_score":          result.Pool.Fitness,
		"accepted":               result.Pool.Accepted(),
	}
	if result.Best != nil {
		pool["optimizer"] = map[string]interface{}{
			"winner":     result.Best.Algorithm,
			"iterations": result.Best.Iterations,
			"scores":     result.Best.Scores,
			"candidates": optimizerTrace(result.Trace),
		}
	}

	payload := map[string]interface{}{
		"dynamic_satellite_pool": pool,
		"recommendations":        recommendations(result),
	}
	if result.Coverage != nil {
		payload["coverage_validation"] = result.Coverage
	}
	if result.Stage6Validation != nil {
		payload["academic_compliance_validation"] = result.Stage6Validation
	}
	if result.Phasing != nil {
		phases := map[string]interface{}{}
		for constellation, phase := range result.Phasing.PerConstellation {
			phases[constellation.String()] = phase
		}
		payload["phase_analysis"] = phases
	}
	if result.Plan != nil {
		payload["coordination"] = map[string]interface{}{
			"planned_windows": len(result.Plan.Windows),
			"critical_gaps":   result.Plan.CriticalGaps(),
			"integrated":      len(result.Plan.Integrated()),
		}
	}
	if result.Dataset != nil {
		payload["rl_dataset"] = map[string]interface{}{
			"transitions": len(result.Dataset.Transitions),
			"seed":        result.Dataset.Seed,
			"config_path": result.Dataset.ConfigPath,
			"tensor_path": result.Dataset.TensorPath,
		}
	}
	return payload
}

// recommendations derives operator guidance from the coverage outcome.
func recommendations(result *RunResult) []string {
	if result.Coverage == nil {
		return nil
	}
	if result.Coverage.Status == coverage.StatusGuaranteed && len(result.Coverage.Remediations) == 0 {
		return []string{"configuration accepted without remediation"}
	}
	var out []string
	for _, remediation := range result.Coverage.Remediations {
		out = append(out, "remediation applied: "+remediation)
	}
	if result.Coverage.Status == coverage.StatusNeedsAdjustment {
		out = append(out,
			"coverage requirements not met after remediation; widen the candidate pool or relax the elevation thresholds")
	}
	return out
}

// writeStatusFiles emits the operator-facing health files. These carry wall
// clock timestamps and stay out of the reproducibility contract.
func (b *Builder) writeStatusFiles(ctx context.Context, result *RunResult) (paths []string, err error) {
	dir := filepath.Join(b.dir, DirStatusFiles)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, Error.Wrap(err)
	}
	now := time.Now().UTC()

	writeText := func(name, content string) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return Error.Wrap(err)
		}
		paths = append(paths, path)
		return nil
	}

	if err := writeText("last_processing_time.txt", now.Format(time.RFC3339)+"\n"); err != nil {
		return paths, err
	}
	checksum := ""
	if result.Report != nil {
		checksum = result.Report.TLEChecksum
	}
	if err := writeText("tle_checksum.txt", checksum+"\n"); err != nil {
		return paths, err
	}

	status := b.writer(DirStatusFiles)
	add := func(artifact bulkstore.Artifact, err error) error {
		if err != nil {
			return err
		}
		paths = append(paths, artifact.Path)
		return nil
	}
	if err := add(status.WriteJSON(ctx, "processing_status.json", map[string]interface{}{
		"status":       "completed",
		"completed_at": now.Format(time.RFC3339),
		"steps":        result.Steps,
	})); err != nil {
		return paths, err
	}
	healthy := result.Stage5Validation == nil || result.Stage5Validation.Passed
	if result.Stage6Validation != nil {
		healthy = healthy && result.Stage6Validation.Passed
	}
	return paths, add(status.WriteJSON(ctx, "health_check.json", map[string]interface{}{
		"healthy":    healthy,
		"checked_at": now.Format(time.RFC3339),
	}))
}

// runManifest records the inputs that determine the run outcome.
func (b *Builder) runManifest(result *RunResult) map[string]interface{} {
	manifest := map[string]interface{}{
		"observer_location": map[string]float64{
			"latitude_deg":  b.observer.LatDeg,
			"longitude_deg": b.observer.LonDeg,
			"altitude_km":   b.observer.AltKm,
		},
	}
	if result.Report != nil {
		manifest["tle_checksum"] = result.Report.TLEChecksum
		manifest["constellations"] = result.Report.Constellations
	}
	if result.Dataset != nil {
		manifest["rl_seed"] = result.Dataset.Seed
	}
	if result.Pool != nil {
		manifest["configuration_id"] = result.Pool.ConfigurationID
	}
	return manifest
}

type satelliteSummary struct {
	SatelliteID     string  `json:"satellite_id"`
	Constellation   string  `json:"constellation"`
	NoradID         int     `json:"norad_id,omitempty"`
	TotalPoints     int     `json:"total_points"`
	VisiblePoints   int     `json:"visible_points"`
	VisibilityRatio float64 `json:"visibility_ratio"`
}

func satelliteSummaries(arena *ntn.Arena) []satelliteSummary {
	summaries := make([]satelliteSummary, 0, arena.Len())
	for _, id := range arena.All() {
		sat := arena.Get(id)
		summaries = append(summaries, satelliteSummary{
			SatelliteID:     sat.Name,
			Constellation:   sat.Constellation.String(),
			NoradID:         sat.NoradID,
			TotalPoints:     len(sat.Samples),
			VisiblePoints:   sat.VisibleCount(),
			VisibilityRatio: sat.VisibilityRatio(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].SatelliteID < summaries[j].SatelliteID })
	return summaries
}

// layerPayload shapes one layered elevation artifact, stats first, windows
// attached per satellite.
func layerPayload(layer *elevation.Layer) map[string]interface{} {
	satellites := make([]map[string]interface{}, 0, len(layer.Satellites))
	for i := range layer.Satellites {
		sl := &layer.Satellites[i]
		satellites = append(satellites, map[string]interface{}{
			"statistics":       sl.Stats,
			"coverage_windows": sl.Windows,
		})
	}
	return map[string]interface{}{
		"threshold_deg":   layer.ThresholdDeg,
		"constellation":   layer.Constellation.String(),
		"satellite_count": len(layer.Satellites),
		"satellites":      satellites,
	}
}

// bestWindows picks the top coverage windows across all layers by quality.
func bestWindows(output *elevation.Output, limit int) map[string]interface{} {
	var windows []ntn.CoverageWindow
	for i := range output.Layers {
		for j := range output.Layers[i].Satellites {
			windows = append(windows, output.Layers[i].Satellites[j].Windows...)
		}
	}
	sort.Slice(windows, func(i, j int) bool {
		if windows[i].QualityScore != windows[j].QualityScore {
			return windows[i].QualityScore > windows[j].QualityScore
		}
		return windows[i].SatelliteName < windows[j].SatelliteName
	})
	if len(windows) > limit {
		windows = windows[:limit]
	}
	return map[string]interface{}{
		"window_count": len(windows),
		"windows":      windows,
	}
}

type constellationQuality struct {
	Constellation      string  `json:"constellation"`
	Satellites         int     `json:"satellites"`
	AvgRSRPDBm         float64 `json:"avg_rsrp_dbm"`
	MinRSRPDBm         float64 `json:"min_rsrp_dbm"`
	MaxRSRPDBm         float64 `json:"max_rsrp_dbm"`
	AvgVisibilityRatio float64 `json:"avg_visibility_ratio"`
}

func qualityForConstellation(arena *ntn.Arena, c ntn.Constellation) constellationQuality {
	quality := constellationQuality{
		Constellation: c.String(),
		MinRSRPDBm:    physics.RSRPMaxDBm,
		MaxRSRPDBm:    physics.RSRPMinDBm,
	}
	sum, count, ratioSum := 0.0, 0, 0.0
	for _, id := range arena.ByConstellation(c) {
		sat := arena.Get(id)
		quality.Satellites++
		ratioSum += sat.VisibilityRatio()
		for i := range sat.Samples {
			s := &sat.Samples[i]
			if !s.Visible {
				continue
			}
			rsrp := physics.RSRP(sat.Name, c, s.ElevationDeg)
			sum += rsrp
			count++
			if rsrp < quality.MinRSRPDBm {
				quality.MinRSRPDBm = rsrp
			}
			if rsrp > quality.MaxRSRPDBm {
				quality.MaxRSRPDBm = rsrp
			}
		}
	}
	if count > 0 {
		quality.AvgRSRPDBm = sum / float64(count)
	} else {
		quality.MinRSRPDBm, quality.MaxRSRPDBm = 0, 0
	}
	if quality.Satellites > 0 {
		quality.AvgVisibilityRatio = ratioSum / float64(quality.Satellites)
	}
	return quality
}

func qualitySummary(arena *ntn.Arena) map[string]interface{} {
	perConstellation := []constellationQuality{}
	for _, c := range []ntn.Constellation{ntn.ConstellationStarlink, ntn.ConstellationOneWeb} {
		if len(arena.ByConstellation(c)) == 0 {
			continue
		}
		perConstellation = append(perConstellation, qualityForConstellation(arena, c))
	}
	return map[string]interface{}{"constellations": perConstellation}
}

func constellationComparison(arena *ntn.Arena) map[string]interface{} {
	comparison := map[string]interface{}{}
	for _, c := range []ntn.Constellation{ntn.ConstellationStarlink, ntn.ConstellationOneWeb} {
		role := coordination.RoleFor(c)
		comparison[c.String()] = map[string]interface{}{
			"quality": qualityForConstellation(arena, c),
			"role":    role,
		}
	}
	return comparison
}

// signalHeatmap bins average RSRP by elevation, 5 degree slots from 5 to 90.
func signalHeatmap(arena *ntn.Arena) map[string]interface{} {
	type slot struct {
		ElevationDeg int     `json:"elevation_deg"`
		AvgRSRPDBm   float64 `json:"avg_rsrp_dbm"`
		Samples      int     `json:"samples"`
	}
	heatmap := map[string]interface{}{}
	for _, c := range []ntn.Constellation{ntn.ConstellationStarlink, ntn.ConstellationOneWeb} {
		sums := map[int]float64{}
		counts := map[int]int{}
		for _, id := range arena.ByConstellation(c) {
			sat := arena.Get(id)
			for i := range sat.Samples {
				s := &sat.Samples[i]
				if !s.Visible || s.ElevationDeg < 5 {
					continue
				}
				bin := int(s.ElevationDeg/5) * 5
				if bin > 85 {
					bin = 85
				}
				sums[bin] += physics.RSRP(sat.Name, c, s.ElevationDeg)
				counts[bin]++
			}
		}
		slots := []slot{}
		for bin := 5; bin <= 85; bin += 5 {
			if counts[bin] == 0 {
				continue
			}
			slots = append(slots, slot{
				ElevationDeg: bin,
				AvgRSRPDBm:   sums[bin] / float64(counts[bin]),
				Samples:      counts[bin],
			})
		}
		heatmap[c.String()] = slots
	}
	return heatmap
}

// optimizerTrace reduces the per-algorithm solutions to a comparison table.
func optimizerTrace(trace []*optimizer.Solution) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(trace))
	for _, solution := range trace {
		if solution == nil {
			continue
		}
		out = append(out, map[string]interface{}{
			"algorithm":  solution.Algorithm,
			"fitness":    solution.Scores.Fitness,
			"iterations": solution.Iterations,
			"starlink":   len(solution.Selection.Starlink),
			"oneweb":     len(solution.Selection.OneWeb),
		})
	}
	return out
}
