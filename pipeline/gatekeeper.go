// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/planning/optimizer"
)

// Component kinds the gatekeeper knows about.
const (
	KindPlanner   = "planner"
	KindOptimizer = "optimizer"
	KindAnalyzer  = "analyzer"
	KindPredictor = "predictor"
)

// Component describes one wired pipeline component for the pre-flight gate.
type Component struct {
	Name string
	Kind string
}

// Planner and optimizer types that may run. Everything else is rejected
// outright.
var allowedPlanners = map[string]bool{
	optimizer.AlgorithmGenetic:     true,
	optimizer.AlgorithmAnnealing:   true,
	optimizer.AlgorithmSwarm:       true,
	"orbital_phase_analyzer":       true,
	"temporal_spatial_coordinator": true,
	"coverage_guarantee_engine":    true,
	"trajectory_prediction":        true,
}

// deniedPlanners are known placeholder strategies; wiring one is an
// immediate zero-tolerance failure.
var deniedPlanners = []string{
	"random_selection",
	"fixed_percentage",
	"simplified_orbital",
}

// forbiddenFragments reject any component whose name admits synthetic data.
var forbiddenFragments = []string{
	"mock_satellites",
	"estimated_visibility",
	"arbitrary_coverage",
}

// requiredComponents must all be wired before the run may start.
var requiredComponents = map[string]bool{
	"orbital_phase_analyzer":       true,
	"temporal_spatial_coordinator": true,
	"coverage_guarantee_engine":    true,
	"trajectory_prediction":        true,
}

// Gatekeeper is the zero-tolerance pre-flight gate. Its failures are fatal
// and must never be caught and continued.
type Gatekeeper struct {
	log *zap.Logger
}

// NewGatekeeper creates the runtime gatekeeper.
func NewGatekeeper(log *zap.Logger) *Gatekeeper {
	return &Gatekeeper{log: log}
}

// VerifyComponents checks the wired component set before any computation:
// planner types against the allowlist, forbidden name fragments, and the
// presence of every required subcomponent.
func (gate *Gatekeeper) VerifyComponents(ctx context.Context, components []Component) (err error) {
	defer mon.Task()(&ctx)(&err)

	present := map[string]bool{}
	for _, component := range components {
		name := strings.ToLower(component.Name)
		present[name] = true

		for _, fragment := range forbiddenFragments {
			if strings.Contains(name, fragment) {
				return gate.reject("forbidden component %q (contains %q)", component.Name, fragment)
			}
		}

		if component.Kind == KindPlanner || component.Kind == KindOptimizer {
			for _, denied := range deniedPlanners {
				if strings.Contains(name, denied) {
					return gate.rejectPlanner(component.Name)
				}
			}
			if !allowedPlanners[name] {
				return gate.rejectPlanner(component.Name)
			}
		}
	}

	for required := range requiredComponents {
		if !present[required] {
			return gate.reject("required component %q is not wired", required)
		}
	}

	gate.log.Debug("gatekeeper component check passed", zap.Int("components", len(components)))
	return nil
}

// VerifyData checks the loaded upstream data: both constellations must be
// populated.
func (gate *Gatekeeper) VerifyData(ctx context.Context, arena *ntn.Arena) (err error) {
	defer mon.Task()(&ctx)(&err)

	counts := arena.CountByConstellation()
	for _, constellation := range []ntn.Constellation{ntn.ConstellationStarlink, ntn.ConstellationOneWeb} {
		if counts[constellation] == 0 {
			return gate.reject("upstream data missing %s satellites", constellation)
		}
	}
	return nil
}

// rejectPlanner emits the planner-specific diagnostic. The zh-TW label is
// part of the operator contract and appears verbatim in snapshots.
func (gate *Gatekeeper) rejectPlanner(name string) error {
	return gate.reject("錯誤動態池規劃器: %s", name)
}

func (gate *Gatekeeper) reject(format string, args ...interface{}) error {
	err := ErrZeroTolerance.New(format, args...)
	gate.log.Error("gatekeeper rejected the run", zap.Error(err))
	return err
}
