// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package coverage verifies that a pool configuration guarantees service:
// enough satellites visible at nearly every grid point, bounded gaps and
// sufficient orbital phase diversity. Failed pools walk a remediation
// ladder before the engine gives up and reports NeedsAdjustment.
package coverage

import (
	"context"
	"sort"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/planning/phasing"
)

var (
	// Error is the default coverage errs class.
	Error = errs.Class("coverage")

	mon = monkit.Package()
)

// Verification grid and targets.
const (
	GridPoints = 240
	GridStep   = 30 * time.Second

	TargetCoverageRate = 0.95
	MaxGapMinutes      = 2.0
	MinPhaseDiversity  = 0.7

	// BackupPoolFraction sizes the standby pool relative to the selection.
	BackupPoolFraction = 0.20

	// ThresholdWidenDeg is the elevation relaxation applied by the last
	// remediation step.
	ThresholdWidenDeg = 1.0

	baseElevationDeg = 5.0
)

// Verification statuses.
const (
	StatusGuaranteed      = "guaranteed"
	StatusNeedsAdjustment = "needs_adjustment"
)

// Remediation step names, in ladder order.
const (
	RemediationBackup    = "backup_activation"
	RemediationRoles     = "role_redistribution"
	RemediationThreshold = "elevation_threshold_widening"
)

// Verification is the outcome of one coverage check.
type Verification struct {
	Status          string   `json:"status"`
	StarlinkRate    float64  `json:"starlink_coverage_rate"`
	OneWebRate      float64  `json:"oneweb_coverage_rate"`
	MaxGapMinutes   float64  `json:"max_gap_minutes"`
	PhaseDiversity  float64  `json:"phase_diversity"`
	GridPoints      int      `json:"grid_points"`
	Remediations    []string `json:"remediations_applied,omitempty"`
	ActivatedBackup []string `json:"activated_backups,omitempty"`
}

// Satisfied reports whether every coverage requirement holds.
func (v *Verification) Satisfied() bool {
	return v.StarlinkRate >= TargetCoverageRate &&
		v.OneWebRate >= TargetCoverageRate &&
		v.MaxGapMinutes <= MaxGapMinutes &&
		v.PhaseDiversity >= MinPhaseDiversity
}

// Engine runs the coverage guarantee check.
type Engine struct {
	log     *zap.Logger
	phasing *phasing.Analyzer
}

// NewEngine creates a coverage guarantee engine.
func NewEngine(log *zap.Logger) *Engine {
	return &Engine{log: log, phasing: phasing.NewAnalyzer(log.Named("phasing"))}
}

// Verify checks the pool against the coverage requirements, remediating in
// order (backup activation, role redistribution, threshold widening) when a
// requirement fails. On success the pool is frozen. backups holds candidate
// ids not in the pool, used to build the standby set.
func (engine *Engine) Verify(ctx context.Context, arena *ntn.Arena, pool *ntn.PoolConfiguration, backups []ntn.SatelliteID) (_ *Verification, err error) {
	defer mon.Task()(&ctx)(&err)

	if !pool.SatisfiesQuantity() {
		return nil, Error.New("pool violates quantity constraints")
	}

	starlink := pool.Starlink.IDs()
	oneweb := pool.OneWeb.IDs()

	verification := engine.measure(ctx, arena, starlink, oneweb, baseElevationDeg, false)
	if verification.Satisfied() {
		return engine.accept(pool, verification), nil
	}

	// Remediation ladder. Each rung keeps the earlier rungs applied.
	redistributed := false
	threshold := baseElevationDeg

	backupSet := standbyPool(arena, starlink, oneweb, backups)
	if len(backupSet) > 0 {
		for _, id := range backupSet {
			if arena.Get(id).Constellation == ntn.ConstellationOneWeb {
				oneweb = append(oneweb, id)
			} else {
				starlink = append(starlink, id)
			}
		}
		verification = engine.measure(ctx, arena, starlink, oneweb, threshold, redistributed)
		verification.Remediations = append(verification.Remediations, RemediationBackup)
		for _, id := range backupSet {
			verification.ActivatedBackup = append(verification.ActivatedBackup, arena.Get(id).Name)
		}
		if verification.Satisfied() {
			return engine.accept(pool, verification), nil
		}
	}

	remediations := verification.Remediations
	activated := verification.ActivatedBackup

	redistributed = true
	verification = engine.measure(ctx, arena, starlink, oneweb, threshold, redistributed)
	verification.Remediations = append(remediations, RemediationRoles)
	verification.ActivatedBackup = activated
	if verification.Satisfied() {
		return engine.accept(pool, verification), nil
	}

	remediations = verification.Remediations
	threshold -= ThresholdWidenDeg
	verification = engine.measure(ctx, arena, starlink, oneweb, threshold, redistributed)
	verification.Remediations = append(remediations, RemediationThreshold)
	verification.ActivatedBackup = activated
	if verification.Satisfied() {
		return engine.accept(pool, verification), nil
	}

	verification.Status = StatusNeedsAdjustment
	engine.log.Warn("coverage guarantee not met after remediation",
		zap.Float64("starlink_rate", verification.StarlinkRate),
		zap.Float64("oneweb_rate", verification.OneWebRate),
		zap.Float64("max_gap_minutes", verification.MaxGapMinutes),
		zap.Float64("phase_diversity", verification.PhaseDiversity))
	return verification, nil
}

func (engine *Engine) accept(pool *ntn.PoolConfiguration, verification *Verification) *Verification {
	verification.Status = StatusGuaranteed
	pool.CoverageRate = (verification.StarlinkRate + verification.OneWebRate) / 2
	pool.Accept()

	mon.FloatVal("coverage_starlink_rate").Observe(verification.StarlinkRate)
	mon.FloatVal("coverage_oneweb_rate").Observe(verification.OneWebRate)
	engine.log.Info("coverage guarantee satisfied",
		zap.Float64("starlink_rate", verification.StarlinkRate),
		zap.Float64("oneweb_rate", verification.OneWebRate),
		zap.Strings("remediations", verification.Remediations))
	return verification
}

// measure samples the verification grid. redistributed lets OneWeb surplus
// above its own minimum stand in for missing Starlink coverage, which is how
// the gap-filler role absorbs primary-coverage shortfalls.
func (engine *Engine) measure(ctx context.Context, arena *ntn.Arena, starlink, oneweb []ntn.SatelliteID, elevationDeg float64, redistributed bool) *Verification {
	start := gridStart(arena, starlink, oneweb)

	starlinkOK, onewebOK := 0, 0
	bothFailRun, worstRun := 0, 0
	for point := 0; point < GridPoints; point++ {
		ts := start.Add(time.Duration(point) * GridStep)
		starVis := visibleAt(arena, starlink, ts, elevationDeg)
		owVis := visibleAt(arena, oneweb, ts, elevationDeg)

		if redistributed && starVis < ntn.StarlinkPoolMin && owVis > ntn.OneWebPoolMin {
			shift := owVis - ntn.OneWebPoolMin
			if shift > ntn.StarlinkPoolMin-starVis {
				shift = ntn.StarlinkPoolMin - starVis
			}
			starVis += shift
			owVis -= shift
		}

		starOK := starVis >= ntn.StarlinkPoolMin
		owOK := owVis >= ntn.OneWebPoolMin
		if starOK {
			starlinkOK++
		}
		if owOK {
			onewebOK++
		}
		if !starOK || !owOK {
			bothFailRun++
			if bothFailRun > worstRun {
				worstRun = bothFailRun
			}
		} else {
			bothFailRun = 0
		}
	}

	verification := &Verification{
		StarlinkRate:  float64(starlinkOK) / GridPoints,
		OneWebRate:    float64(onewebOK) / GridPoints,
		MaxGapMinutes: float64(worstRun) * GridStep.Minutes(),
		GridPoints:    GridPoints,
	}

	members := append(append([]ntn.SatelliteID(nil), starlink...), oneweb...)
	if analysis, err := engine.phasing.Analyze(ctx, arena, members); err == nil {
		verification.PhaseDiversity = analysis.Diversity()
	}
	return verification
}

// visibleAt counts pool members above the elevation threshold at one grid
// timestamp. Samples are matched by exact timestamp.
func visibleAt(arena *ntn.Arena, members []ntn.SatelliteID, ts time.Time, elevationDeg float64) int {
	count := 0
	for _, id := range members {
		sat := arena.Get(id)
		samples := sat.Samples
		i := sort.Search(len(samples), func(i int) bool {
			return !samples[i].Time.Before(ts)
		})
		if i < len(samples) && samples[i].Time.Equal(ts) && samples[i].ElevationDeg >= elevationDeg {
			count++
		}
	}
	return count
}

// gridStart anchors the verification grid at the earliest sample of the pool.
func gridStart(arena *ntn.Arena, starlink, oneweb []ntn.SatelliteID) time.Time {
	var start time.Time
	for _, members := range [][]ntn.SatelliteID{starlink, oneweb} {
		for _, id := range members {
			first, _ := arena.Get(id).TimeRange()
			if first.IsZero() {
				continue
			}
			if start.IsZero() || first.Before(start) {
				start = first
			}
		}
	}
	return start
}

// standbyPool picks the 20% backup set from the unused candidates, best
// visibility ratio first.
func standbyPool(arena *ntn.Arena, starlink, oneweb, backups []ntn.SatelliteID) []ntn.SatelliteID {
	inPool := map[ntn.SatelliteID]bool{}
	for _, id := range starlink {
		inPool[id] = true
	}
	for _, id := range oneweb {
		inPool[id] = true
	}

	var available []ntn.SatelliteID
	for _, id := range backups {
		if !inPool[id] {
			available = append(available, id)
		}
	}
	sort.Slice(available, func(i, j int) bool {
		ri := arena.Get(available[i]).VisibilityRatio()
		rj := arena.Get(available[j]).VisibilityRatio()
		if ri != rj {
			return ri > rj
		}
		return available[i] < available[j]
	})

	size := int(float64(len(starlink)+len(oneweb)) * BackupPoolFraction)
	if size > len(available) {
		size = len(available)
	}
	return available[:size]
}
