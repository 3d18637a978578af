// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package pipeline_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"github.com/cedarwud/ntn-stack-sub001/ntn/ntntest"
	"github.com/cedarwud/ntn-stack-sub001/pipeline"
	"github.com/cedarwud/ntn-stack-sub001/planning/optimizer"
	"github.com/cedarwud/ntn-stack-sub001/upstream"
)

func wiredComponents() []pipeline.Component {
	return []pipeline.Component{
		{Name: "orbital_phase_analyzer", Kind: pipeline.KindAnalyzer},
		{Name: "temporal_spatial_coordinator", Kind: pipeline.KindAnalyzer},
		{Name: "coverage_guarantee_engine", Kind: pipeline.KindAnalyzer},
		{Name: "trajectory_prediction", Kind: pipeline.KindPredictor},
		{Name: optimizer.AlgorithmGenetic, Kind: pipeline.KindPlanner},
		{Name: optimizer.AlgorithmAnnealing, Kind: pipeline.KindPlanner},
		{Name: optimizer.AlgorithmSwarm, Kind: pipeline.KindPlanner},
	}
}

func TestGatekeeperAcceptsWiredSet(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	gate := pipeline.NewGatekeeper(zaptest.NewLogger(t))
	require.NoError(t, gate.VerifyComponents(ctx, wiredComponents()))
}

func TestGatekeeperRejectsPlaceholderPlanner(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	for _, name := range []string{"random_selection", "fixed_percentage_planner", "simplified_orbital"} {
		components := append(wiredComponents(), pipeline.Component{Name: name, Kind: pipeline.KindPlanner})

		gate := pipeline.NewGatekeeper(zaptest.NewLogger(t))
		err := gate.VerifyComponents(ctx, components)
		require.Error(t, err)
		require.True(t, pipeline.ErrZeroTolerance.Has(err))
		require.Equal(t, pipeline.ExitZeroTolerance, pipeline.ExitCode(err))
		require.Contains(t, err.Error(), "錯誤動態池規劃器")
		require.Contains(t, err.Error(), name)
	}
}

func TestGatekeeperRejectsUnknownPlanner(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	components := append(wiredComponents(),
		pipeline.Component{Name: "greedy_picker", Kind: pipeline.KindOptimizer})

	gate := pipeline.NewGatekeeper(zaptest.NewLogger(t))
	err := gate.VerifyComponents(ctx, components)
	require.Error(t, err)
	require.True(t, pipeline.ErrZeroTolerance.Has(err))
	require.Contains(t, err.Error(), "greedy_picker")
}

func TestGatekeeperRejectsForbiddenFragment(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	components := append(wiredComponents(),
		pipeline.Component{Name: "mock_satellites_source", Kind: pipeline.KindAnalyzer})

	gate := pipeline.NewGatekeeper(zaptest.NewLogger(t))
	err := gate.VerifyComponents(ctx, components)
	require.Error(t, err)
	require.True(t, pipeline.ErrZeroTolerance.Has(err))
}

func TestGatekeeperRequiresAnalyzers(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	components := []pipeline.Component{
		{Name: optimizer.AlgorithmGenetic, Kind: pipeline.KindPlanner},
	}

	gate := pipeline.NewGatekeeper(zaptest.NewLogger(t))
	err := gate.VerifyComponents(ctx, components)
	require.Error(t, err)
	require.True(t, pipeline.ErrZeroTolerance.Has(err))
	require.True(t, strings.Contains(err.Error(), "required component"))
}

func TestVerifyDataRequiresBothConstellations(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	gate := pipeline.NewGatekeeper(zaptest.NewLogger(t))

	err := gate.VerifyData(ctx, ntntest.Arena(3, 0, ntntest.Options{}))
	require.Error(t, err)
	require.True(t, pipeline.ErrZeroTolerance.Has(err))

	require.NoError(t, gate.VerifyData(ctx, ntntest.Arena(3, 2, ntntest.Options{})))
}

func TestExitCodeMapping(t *testing.T) {
	require.Equal(t, pipeline.ExitSuccess, pipeline.ExitCode(nil))
	require.Equal(t, pipeline.ExitFailure, pipeline.ExitCode(pipeline.Error.New("boom")))
	require.Equal(t, pipeline.ExitZeroTolerance, pipeline.ExitCode(pipeline.ErrZeroTolerance.New("gate")))
	require.Equal(t, pipeline.ExitNoFeasible, pipeline.ExitCode(optimizer.ErrNoFeasible.New("none")))
	require.Equal(t, pipeline.ExitValidationFail, pipeline.ExitCode(pipeline.ErrValidationFailed.New("grade D")))
}

func TestErrorKindTaxonomy(t *testing.T) {
	require.Equal(t, "", pipeline.ErrorKind(nil))
	require.Equal(t, "ZeroToleranceFailure", pipeline.ErrorKind(pipeline.ErrZeroTolerance.New("gate")))
	require.Equal(t, "NoFeasibleConfiguration", pipeline.ErrorKind(optimizer.ErrNoFeasible.New("none")))
	require.Equal(t, "ValidationFailed", pipeline.ErrorKind(pipeline.ErrValidationFailed.New("grade D")))
	require.Equal(t, "Timeout", pipeline.ErrorKind(pipeline.ErrTimeout.New("stage budget")))
	require.Equal(t, "InputUnavailable", pipeline.ErrorKind(upstream.ErrInputUnavailable.New("missing")))
	require.Equal(t, "SchemaViolation", pipeline.ErrorKind(upstream.ErrSchema.New("bad artifact")))
	require.Equal(t, "Failure", pipeline.ErrorKind(pipeline.Error.New("boom")))
}
