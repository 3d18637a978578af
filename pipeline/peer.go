// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package pipeline wires the processing stages into one runnable peer and
// sequences them: gatekeeper, upstream load, integration, dynamic pool
// planning, validation and artifact emission.
package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"github.com/cedarwud/ntn-stack-sub001/integration/elevation"
	"github.com/cedarwud/ntn-stack-sub001/integration/handover"
	"github.com/cedarwud/ntn-stack-sub001/integration/storage"
	"github.com/cedarwud/ntn-stack-sub001/integration/storage/bulkstore"
	"github.com/cedarwud/ntn-stack-sub001/integration/storage/indexdb"
	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/physics"
	"github.com/cedarwud/ntn-stack-sub001/planning/coordination"
	"github.com/cedarwud/ntn-stack-sub001/planning/coverage"
	"github.com/cedarwud/ntn-stack-sub001/planning/optimizer"
	"github.com/cedarwud/ntn-stack-sub001/planning/phasing"
	"github.com/cedarwud/ntn-stack-sub001/rldataset"
	"github.com/cedarwud/ntn-stack-sub001/upstream"
	"github.com/cedarwud/ntn-stack-sub001/validation"
)

var mon = monkit.Package()

// ObserverConfig is the ground observer location. Defaults to NTPU.
type ObserverConfig struct {
	LatDeg float64 `help:"observer latitude in degrees" default:"24.9441667"`
	LonDeg float64 `help:"observer longitude in degrees" default:"121.3713889"`
	AltKm  float64 `help:"observer altitude in kilometers" default:"0.05"`
}

// Config collects every stage configuration.
type Config struct {
	OutputDir string `help:"root output directory" default:"./data/outputs"`

	Observer   ObserverConfig
	Upstream   upstream.Config
	Elevation  elevation.Config
	Handover   handover.Config
	IndexDB    indexdb.Config
	Optimizer  optimizer.Config
	Validation validation.Config
	RL         rldataset.Config

	IndexStoreEnabled bool `help:"write the postgres index store half of the hybrid storage" default:"true"`

	Stage5Timeout time.Duration `help:"integration stage budget" default:"5m"`
	Stage6Timeout time.Duration `help:"planning stage budget" default:"10m"`

	Strict bool `help:"abort with a validation error when a required category fails" default:"true"`
}

// StepResult records one orchestrator step.
type StepResult struct {
	Name     string                 `json:"name"`
	Duration time.Duration          `json:"-"`
	Seconds  float64                `json:"duration_seconds"`
	Metrics  map[string]interface{} `json:"metrics,omitempty"`
}

// RunResult is everything a full run produced.
type RunResult struct {
	Steps []StepResult

	Arena  *ntn.Arena
	Report *upstream.Report

	Elevation   *elevation.Output
	Events      *handover.Output
	Integration *storage.Result

	Phasing  *phasing.Analysis
	Plan     *coordination.Plan
	Best     *optimizer.Solution
	Trace    []*optimizer.Solution
	Pool     *ntn.PoolConfiguration
	Coverage *coverage.Verification

	Stage5Validation *validation.Summary
	Stage6Validation *validation.Summary
	Dataset          *rldataset.Dataset
}

// Peer wires the subsystems of one pipeline run.
type Peer struct {
	Log    *zap.Logger
	Config Config

	Gatekeeper *Gatekeeper

	Upstream struct {
		Loader *upstream.Loader
	}

	Integration struct {
		Filter      *elevation.Filter
		Synthesizer *handover.Synthesizer
		Bulk        *bulkstore.Writer
		DB          *indexdb.DB
	}

	Planning struct {
		Phasing     *phasing.Analyzer
		Coordinator *coordination.Coordinator
		Optimizer   *optimizer.Runner
		Coverage    *coverage.Engine
	}

	Validation *validation.Validator
	RL         *rldataset.Builder
	Output     *Builder
}

// New wires a peer from configuration. The index store connection is opened
// lazily inside Run so an unreachable database degrades instead of failing
// construction.
func New(log *zap.Logger, config Config) (*Peer, error) {
	peer := &Peer{Log: log, Config: config}

	peer.Gatekeeper = NewGatekeeper(log.Named("gatekeeper"))

	peer.Upstream.Loader = upstream.NewLoader(log.Named("upstream"), config.Upstream)

	peer.Integration.Filter = elevation.NewFilter(log.Named("elevation"), config.Elevation)
	peer.Integration.Synthesizer = handover.NewSynthesizer(log.Named("handover"), config.Handover)
	peer.Integration.Bulk = bulkstore.NewWriter(
		log.Named("bulkstore"),
		filepath.Join(config.OutputDir, "data_integration_outputs"))

	peer.Planning.Phasing = phasing.NewAnalyzer(log.Named("phasing"))
	peer.Planning.Coordinator = coordination.NewCoordinator(log.Named("coordination"))
	peer.Planning.Coverage = coverage.NewEngine(log.Named("coverage"))

	peer.Validation = validation.New(log.Named("validation"), config.Validation)

	rlConfig := config.RL
	if rlConfig.OutputDir == "" {
		rlConfig.OutputDir = filepath.Join(config.OutputDir, "rl_dataset")
	}
	peer.RL = rldataset.NewBuilder(log.Named("rldataset"), rlConfig)

	peer.Output = NewBuilder(log.Named("output"), config.OutputDir, config.Observer)
	return peer, nil
}

// Components lists the wired planner and analyzer identities for the
// gatekeeper.
func (peer *Peer) Components() []Component {
	components := []Component{
		{Name: "orbital_phase_analyzer", Kind: KindAnalyzer},
		{Name: "temporal_spatial_coordinator", Kind: KindAnalyzer},
		{Name: "coverage_guarantee_engine", Kind: KindAnalyzer},
		{Name: "trajectory_prediction", Kind: KindPredictor},
	}
	names := peer.Config.Optimizer.Algorithms
	if len(names) == 0 {
		names = optimizer.KnownAlgorithms()
	}
	for _, name := range names {
		components = append(components, Component{Name: name, Kind: KindPlanner})
	}
	return components
}

// Close releases held resources.
func (peer *Peer) Close() error {
	if peer.Integration.DB != nil {
		return peer.Integration.DB.Close()
	}
	return nil
}

// Run executes the full pipeline. On failure an error snapshot lands at the
// canonical output path before the error propagates.
func (peer *Peer) Run(ctx context.Context) (result *RunResult, err error) {
	defer mon.Task()(&ctx)(&err)

	result = &RunResult{}
	defer func() {
		if err != nil {
			peer.Output.WriteErrorSnapshot(ctx, err, result)
		}
	}()

	if err := peer.runStage5(ctx, result, true, peer.Config.Strict); err != nil {
		return result, err
	}
	if err := peer.runStage6(ctx, result); err != nil {
		return result, err
	}

	if err := peer.step(ctx, result, "emit_outputs", func(ctx context.Context) (map[string]interface{}, error) {
		paths, err := peer.Output.WriteAll(ctx, result)
		return map[string]interface{}{"artifacts": len(paths)}, err
	}); err != nil {
		return result, err
	}
	return result, nil
}

// RunStage5 executes the integration stage alone and emits its outputs.
func (peer *Peer) RunStage5(ctx context.Context) (result *RunResult, err error) {
	defer mon.Task()(&ctx)(&err)

	result = &RunResult{}
	defer func() {
		if err != nil {
			peer.Output.WriteErrorSnapshot(ctx, err, result)
		}
	}()

	if err := peer.runStage5(ctx, result, false, peer.Config.Strict); err != nil {
		return result, err
	}
	if err := peer.step(ctx, result, "emit_outputs", func(ctx context.Context) (map[string]interface{}, error) {
		paths, err := peer.Output.WriteAll(ctx, result)
		return map[string]interface{}{"artifacts": len(paths)}, err
	}); err != nil {
		return result, err
	}
	return result, nil
}

// RunStage6 executes the planning stage. Stage 5 results have no persisted
// handoff format, so integration runs first as a prerequisite; the strict
// validation gate applies to the planning snapshot only.
func (peer *Peer) RunStage6(ctx context.Context) (result *RunResult, err error) {
	defer mon.Task()(&ctx)(&err)

	result = &RunResult{}
	defer func() {
		if err != nil {
			peer.Output.WriteErrorSnapshot(ctx, err, result)
		}
	}()

	if err := peer.runStage5(ctx, result, true, false); err != nil {
		return result, err
	}
	if err := peer.runStage6(ctx, result); err != nil {
		return result, err
	}
	if err := peer.step(ctx, result, "emit_outputs", func(ctx context.Context) (map[string]interface{}, error) {
		paths, err := peer.Output.WriteAll(ctx, result)
		return map[string]interface{}{"artifacts": len(paths)}, err
	}); err != nil {
		return result, err
	}
	return result, nil
}

// runStage5 covers gatekeeping, upstream load, filtering, event synthesis,
// hybrid storage and the stage 5 validation snapshot. requireBoth applies
// the zero-tolerance constellation presence check, which only binds when
// the planning stage will follow; integration alone continues on a partial
// upstream and lets validation flag the gap. strict turns a failed stage 5
// validation snapshot into a run-aborting error.
func (peer *Peer) runStage5(ctx context.Context, result *RunResult, requireBoth, strict bool) error {
	ctx, cancel := context.WithTimeout(ctx, peer.Config.Stage5Timeout)
	defer cancel()

	err := peer.step(ctx, result, "gatekeeper", func(ctx context.Context) (map[string]interface{}, error) {
		components := peer.Components()
		return map[string]interface{}{"components": len(components)},
			peer.Gatekeeper.VerifyComponents(ctx, components)
	})
	if err != nil {
		return err
	}

	err = peer.step(ctx, result, "load_upstream", func(ctx context.Context) (map[string]interface{}, error) {
		arena, report, err := peer.Upstream.Loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		if sum, sumErr := peer.Upstream.Loader.TLEChecksum(); sumErr != nil {
			peer.Log.Warn("tle checksum unavailable", zap.Error(sumErr))
		} else {
			report.TLEChecksum = sum
		}
		result.Arena, result.Report = arena, report
		if requireBoth {
			if err := peer.Gatekeeper.VerifyData(ctx, arena); err != nil {
				return nil, err
			}
		}
		return map[string]interface{}{
			"satellites":   arena.Len(),
			"tle_checksum": report.TLEChecksum,
		}, nil
	})
	if err != nil {
		return err
	}

	err = peer.step(ctx, result, "elevation_filter", func(ctx context.Context) (map[string]interface{}, error) {
		output, err := peer.Integration.Filter.Run(ctx, result.Arena)
		if err != nil {
			return nil, err
		}
		result.Elevation = output
		return map[string]interface{}{"layers": len(output.Layers)}, nil
	})
	if err != nil {
		return err
	}

	err = peer.step(ctx, result, "handover_synthesis", func(ctx context.Context) (map[string]interface{}, error) {
		output, err := peer.Integration.Synthesizer.Run(ctx, result.Arena)
		if err != nil {
			return nil, err
		}
		result.Events = output
		return map[string]interface{}{"events": len(output.Events)}, nil
	})
	if err != nil {
		return err
	}

	err = peer.step(ctx, result, "storage_integration", func(ctx context.Context) (map[string]interface{}, error) {
		integrator := storage.NewIntegrator(
			peer.Log.Named("integrator"), peer.openIndexStore(ctx), peer.Integration.Bulk)
		integration, err := integrator.Integrate(ctx, result.Arena, result.Events)
		if err != nil {
			return nil, err
		}
		result.Integration = integration
		return map[string]interface{}{
			"balance_status":       integration.Balance.Status,
			"postgresql_connected": integration.PostgresConnected,
		}, nil
	})
	if err != nil {
		return err
	}

	return peer.step(ctx, result, "stage5_validation", func(ctx context.Context) (map[string]interface{}, error) {
		summary, err := peer.Validation.Run(ctx, &validation.Input{
			Arena:                result.Arena,
			Events:               result.Events,
			Stage4Count:          result.Report.TotalSatellites(),
			ReproducibilityProxy: 1.0,
		})
		if err != nil {
			return nil, err
		}
		result.Stage5Validation = summary
		metrics := map[string]interface{}{"pass_rate": summary.PassRate, "grade": summary.Grade}
		if strict && !summary.Passed {
			return metrics, ErrValidationFailed.New("stage 5 validation pass rate %.3f", summary.PassRate)
		}
		return metrics, nil
	})
}

// runStage6 covers phase analysis, coordination, pool optimization, the
// coverage guarantee, stage 6 validation and the RL dataset.
func (peer *Peer) runStage6(ctx context.Context, result *RunResult) error {
	ctx, cancel := context.WithTimeout(ctx, peer.Config.Stage6Timeout)
	defer cancel()

	err := peer.step(ctx, result, "orbital_phase_analysis", func(ctx context.Context) (map[string]interface{}, error) {
		analysis, err := peer.Planning.Phasing.Analyze(ctx, result.Arena, result.Arena.All())
		if err != nil {
			return nil, err
		}
		result.Phasing = analysis
		return map[string]interface{}{"diversity": analysis.Diversity()}, nil
	})
	if err != nil {
		return err
	}

	err = peer.step(ctx, result, "temporal_spatial_coordination", func(ctx context.Context) (map[string]interface{}, error) {
		plan, err := peer.Planning.Coordinator.Coordinate(ctx, result.Arena, result.Arena.All())
		if err != nil {
			return nil, err
		}
		result.Plan = plan
		return map[string]interface{}{
			"integrated":    len(plan.Integrated()),
			"critical_gaps": plan.CriticalGaps(),
		}, nil
	})
	if err != nil {
		return err
	}

	err = peer.step(ctx, result, "pool_optimization", func(ctx context.Context) (map[string]interface{}, error) {
		// Constructed here rather than in New: the gatekeeper must judge the
		// configured algorithm names before anything instantiates them.
		if peer.Planning.Optimizer == nil {
			runner, err := optimizer.NewRunner(
				peer.Log.Named("optimizer"), peer.Config.Optimizer.Algorithms...)
			if err != nil {
				return nil, err
			}
			peer.Planning.Optimizer = runner
		}
		problem, err := optimizer.NewProblem(result.Arena, result.Plan.Integrated())
		if err != nil {
			return nil, err
		}
		best, trace, err := peer.Planning.Optimizer.Run(ctx, problem)
		if err != nil {
			return nil, err
		}
		result.Best, result.Trace = best, trace
		result.Pool = peer.buildPool(result, best)
		return map[string]interface{}{
			"winner":  best.Algorithm,
			"fitness": best.Scores.Fitness,
		}, nil
	})
	if err != nil {
		return err
	}

	err = peer.step(ctx, result, "coverage_guarantee", func(ctx context.Context) (map[string]interface{}, error) {
		verification, err := peer.Planning.Coverage.Verify(
			ctx, result.Arena, result.Pool, result.Plan.Integrated())
		if err != nil {
			return nil, err
		}
		result.Coverage = verification
		return map[string]interface{}{"status": verification.Status}, nil
	})
	if err != nil {
		return err
	}

	err = peer.step(ctx, result, "stage6_validation", func(ctx context.Context) (map[string]interface{}, error) {
		summary, err := peer.Validation.Run(ctx, &validation.Input{
			Arena:                result.Arena,
			Pool:                 result.Pool,
			Coverage:             result.Coverage,
			Events:               result.Events,
			Stage4Count:          result.Report.TotalSatellites(),
			ReproducibilityProxy: 1.0,
		})
		if err != nil {
			return nil, err
		}
		result.Stage6Validation = summary
		metrics := map[string]interface{}{"pass_rate": summary.PassRate, "grade": summary.Grade}
		if peer.Config.Strict && !summary.Passed {
			return metrics, ErrValidationFailed.New("stage 6 validation pass rate %.3f", summary.PassRate)
		}
		return metrics, nil
	})
	if err != nil {
		return err
	}

	return peer.step(ctx, result, "rl_dataset", func(ctx context.Context) (map[string]interface{}, error) {
		dataset, err := peer.RL.Build(ctx, result.Arena, result.Pool, result.Events)
		if err != nil {
			return nil, err
		}
		result.Dataset = dataset
		return map[string]interface{}{"transitions": len(dataset.Transitions)}, nil
	})
}

// buildPool converts the winning selection into the frozen-form pool
// configuration. The id derives from the members and the TLE checksum so
// identical inputs reproduce it byte for byte.
func (peer *Peer) buildPool(result *RunResult, best *optimizer.Solution) *ntn.PoolConfiguration {
	pool := &ntn.PoolConfiguration{
		Starlink:             ntn.NewIDSet(result.Arena.Len()),
		OneWeb:               ntn.NewIDSet(result.Arena.Len()),
		AvgSignalQuality:     peer.avgSignalQuality(result.Arena, best.Selection.Members()),
		EstHandoverFrequency: handoverFrequency(result.Events, best.Selection),
		ResourceUtilization:  float64(len(best.Selection.Members())) / float64(result.Arena.Len()),
		Fitness:              best.Scores.Fitness,
	}
	for _, id := range best.Selection.Starlink {
		pool.Starlink.Add(id)
	}
	for _, id := range best.Selection.OneWeb {
		pool.OneWeb.Add(id)
	}

	h := fnv.New64a()
	for _, id := range best.Selection.Members() {
		_, _ = h.Write([]byte(result.Arena.Get(id).Name))
	}
	_, _ = h.Write([]byte(result.Report.TLEChecksum))
	pool.ConfigurationID = fmt.Sprintf("pool-%016x", h.Sum64())
	return pool
}

// avgSignalQuality is the mean normalized RSRP over visible samples of the
// pool members.
func (peer *Peer) avgSignalQuality(arena *ntn.Arena, members []ntn.SatelliteID) float64 {
	sum, count := 0.0, 0
	for _, id := range members {
		sat := arena.Get(id)
		for i := range sat.Samples {
			s := &sat.Samples[i]
			if !s.Visible {
				continue
			}
			rsrp := physics.RSRP(sat.Name, sat.Constellation, s.ElevationDeg)
			normalized := (rsrp - physics.RSRPMinDBm) / (physics.RSRPMaxDBm - physics.RSRPMinDBm)
			sum += normalized
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// handoverFrequency estimates events per hour among pool members.
func handoverFrequency(events *handover.Output, sel optimizer.Selection) float64 {
	members := ntn.NewIDSet(0)
	for _, id := range sel.Members() {
		members.Add(id)
	}
	count := 0
	var first, last time.Time
	for i := range events.Events {
		e := &events.Events[i]
		if !members.Has(e.Serving) {
			continue
		}
		count++
		if first.IsZero() || e.Time.Before(first) {
			first = e.Time
		}
		if e.Time.After(last) {
			last = e.Time
		}
	}
	hours := last.Sub(first).Hours()
	if hours <= 0 {
		return float64(count)
	}
	return float64(count) / hours
}

// openIndexStore connects to the index store, returning nil (volume-only
// mode) when disabled or unreachable.
func (peer *Peer) openIndexStore(ctx context.Context) storage.IndexStore {
	if !peer.Config.IndexStoreEnabled {
		return nil
	}
	if peer.Integration.DB != nil {
		return peer.Integration.DB
	}

	db, err := indexdb.Open(ctx, peer.Log.Named("indexdb"), peer.Config.IndexDB)
	if err != nil {
		peer.Log.Warn("index store open failed, continuing volume-only", zap.Error(err))
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		peer.Log.Warn("index store unreachable, continuing volume-only", zap.Error(err))
		_ = db.Close()
		return nil
	}
	peer.Integration.DB = db
	return db
}

// step runs one orchestrator step, recording its duration and metrics.
// Deadline overruns are reported as stage timeouts.
func (peer *Peer) step(ctx context.Context, result *RunResult, name string, fn func(context.Context) (map[string]interface{}, error)) error {
	start := time.Now()
	metrics, err := fn(ctx)
	duration := time.Since(start)

	result.Steps = append(result.Steps, StepResult{
		Name:     name,
		Duration: duration,
		Seconds:  duration.Seconds(),
		Metrics:  metrics,
	})
	mon.DurationVal("pipeline_step", monkit.NewSeriesTag("step", name)).Observe(duration)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = ErrTimeout.Wrap(err)
		}
		peer.Log.Error("pipeline step failed",
			zap.String("step", name),
			zap.Duration("duration", duration),
			zap.Error(err))
		return err
	}
	peer.Log.Info("pipeline step complete",
		zap.String("step", name),
		zap.Duration("duration", duration))
	return nil
}
