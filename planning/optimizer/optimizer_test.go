// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/ntn/ntntest"
	"github.com/cedarwud/ntn-stack-sub001/planning/optimizer"
)

func newProblem(t *testing.T, starlink, oneweb int) *optimizer.Problem {
	arena := ntntest.Arena(starlink, oneweb, ntntest.Options{})
	problem, err := optimizer.NewProblem(arena, arena.All())
	require.NoError(t, err)
	return problem
}

func TestRegistry(t *testing.T) {
	require.Equal(t, []string{
		optimizer.AlgorithmGenetic,
		optimizer.AlgorithmSwarm,
		optimizer.AlgorithmAnnealing,
	}, optimizer.KnownAlgorithms())

	for _, name := range optimizer.KnownAlgorithms() {
		algorithm, err := optimizer.NewAlgorithm(name)
		require.NoError(t, err)
		require.Equal(t, name, algorithm.Name())
	}

	_, err := optimizer.NewAlgorithm("random_selection")
	require.Error(t, err)
}

func TestEachAlgorithmFindsFeasibleSolution(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	problem := newProblem(t, 18, 7)
	for _, name := range optimizer.KnownAlgorithms() {
		algorithm, err := optimizer.NewAlgorithm(name)
		require.NoError(t, err)

		solution, err := algorithm.Optimize(ctx, problem)
		require.NoError(t, err, name)
		require.True(t, solution.Selection.Feasible(), name)
		require.GreaterOrEqual(t, len(solution.Selection.Starlink), ntn.StarlinkPoolMin, name)
		require.LessOrEqual(t, len(solution.Selection.Starlink), ntn.StarlinkPoolMax, name)
		require.GreaterOrEqual(t, len(solution.Selection.OneWeb), ntn.OneWebPoolMin, name)
		require.LessOrEqual(t, len(solution.Selection.OneWeb), ntn.OneWebPoolMax, name)
		require.Greater(t, solution.Scores.Fitness, 0.0, name)
		require.LessOrEqual(t, solution.Scores.Fitness, 1.0, name)
	}
}

func TestOptimizationIsDeterministic(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	for _, name := range optimizer.KnownAlgorithms() {
		first, err := optimizer.NewAlgorithm(name)
		require.NoError(t, err)
		second, err := optimizer.NewAlgorithm(name)
		require.NoError(t, err)

		// Fresh problems, same candidates: the id-seeded generator must
		// reproduce the identical solution.
		a, err := first.Optimize(ctx, newProblem(t, 16, 5))
		require.NoError(t, err)
		b, err := second.Optimize(ctx, newProblem(t, 16, 5))
		require.NoError(t, err)

		require.Equal(t, a.Selection, b.Selection, name)
		require.Equal(t, a.Scores, b.Scores, name)
	}
}

func TestRunnerPicksHighestFitness(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	runner, err := optimizer.NewRunner(zaptest.NewLogger(t))
	require.NoError(t, err)

	problem := newProblem(t, 18, 7)
	best, trace, err := runner.Run(ctx, problem)
	require.NoError(t, err)
	require.NotNil(t, best)
	require.NotEmpty(t, trace)

	for _, solution := range trace {
		require.True(t, solution.Selection.Feasible())
		require.LessOrEqual(t, solution.Scores.Fitness, best.Scores.Fitness)
	}
	require.Greater(t, problem.Evaluations(), int64(0))
}

func TestNoFeasibleWhenCandidatesShort(t *testing.T) {
	arena := ntntest.Arena(5, 1, ntntest.Options{})
	_, err := optimizer.NewProblem(arena, arena.All())
	require.Error(t, err)
	require.True(t, optimizer.ErrNoFeasible.Has(err))
}

func TestNoFeasibleConstraintDiagnostics(t *testing.T) {
	// Operators triage infeasible runs by the violated constraint, so the
	// error text names it as a key/value pair.
	arena := ntntest.Arena(5, 7, ntntest.Options{})
	_, err := optimizer.NewProblem(arena, arena.All())
	require.Error(t, err)
	require.True(t, optimizer.ErrNoFeasible.Has(err))
	require.Contains(t, err.Error(), "starlink_min_satellites: 10")

	arena = ntntest.Arena(12, 1, ntntest.Options{})
	_, err = optimizer.NewProblem(arena, arena.All())
	require.Error(t, err)
	require.True(t, optimizer.ErrNoFeasible.Has(err))
	require.Contains(t, err.Error(), "oneweb_min_satellites: 3")
}

func TestUnknownAlgorithmRejectedByRunner(t *testing.T) {
	_, err := optimizer.NewRunner(zaptest.NewLogger(t), "fixed_percentage")
	require.Error(t, err)
}

func TestEvaluateScoreBounds(t *testing.T) {
	problem := newProblem(t, 14, 5)

	arena := ntntest.Arena(14, 5, ntntest.Options{})
	sel := optimizer.Selection{
		Starlink: arena.ByConstellation(ntn.ConstellationStarlink)[:10],
		OneWeb:   arena.ByConstellation(ntn.ConstellationOneWeb)[:3],
	}
	scores := problem.Evaluate(sel)

	require.GreaterOrEqual(t, scores.CoverageContinuity, 0.0)
	require.LessOrEqual(t, scores.CoverageContinuity, 1.0)
	require.GreaterOrEqual(t, scores.ConstellationEfficiency, 0.0)
	require.LessOrEqual(t, scores.ConstellationEfficiency, 1.0)
	require.GreaterOrEqual(t, scores.HandoverOptimality, 0.0)
	require.LessOrEqual(t, scores.HandoverOptimality, 1.0)
	require.GreaterOrEqual(t, scores.ResourceBalance, 0.0)
	require.LessOrEqual(t, scores.ResourceBalance, 1.0)
	require.Greater(t, scores.Fitness, 0.0)
}
