// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package phasing_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/ntn/ntntest"
	"github.com/cedarwud/ntn-stack-sub001/planning/phasing"
)

func TestAnalyzeBinsAndScores(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	arena := ntntest.Arena(15, 6, ntntest.Options{})
	analyzer := phasing.NewAnalyzer(zaptest.NewLogger(t))
	analysis, err := analyzer.Analyze(ctx, arena, arena.All())
	require.NoError(t, err)

	require.Len(t, analysis.PerConstellation, 2)
	for _, phase := range analysis.PerConstellation {
		// Every member lands in exactly one MA bin and one RAAN bin.
		maTotal, raanTotal := 0, 0
		for i := range phase.MeanAnomaly {
			maTotal += len(phase.MeanAnomaly[i].Satellites)
		}
		for i := range phase.RAAN {
			raanTotal += len(phase.RAAN[i].Satellites)
		}
		require.Equal(t, maTotal, raanTotal)

		require.GreaterOrEqual(t, phase.Uniformity, 0.0)
		require.LessOrEqual(t, phase.Uniformity, 1.0)
		require.GreaterOrEqual(t, phase.Dispersion, 0.0)
		require.LessOrEqual(t, phase.Dispersion, 1.0)
		require.InDelta(t, 1.0, phase.MAWeight+phase.RAANWeight, 1e-12)
		require.Contains(t, []string{
			phasing.RatingExcellent, phasing.RatingGood,
			phasing.RatingAcceptable, phasing.RatingPoor,
		}, phase.Rating)
	}

	require.GreaterOrEqual(t, analysis.Diversity(), 0.0)
	require.LessOrEqual(t, analysis.Diversity(), 1.0)
}

func TestAnalyzeEmptyInput(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	arena := ntntest.Arena(2, 1, ntntest.Options{})
	analyzer := phasing.NewAnalyzer(zaptest.NewLogger(t))
	_, err := analyzer.Analyze(ctx, arena, nil)
	require.Error(t, err)
}

func TestAdaptiveWeightsSumToOne(t *testing.T) {
	for _, n := range []int{1, 3, 10, 15, 24, 100} {
		ma, raan := phasing.AdaptiveWeights(n)
		require.InDelta(t, 1.0, ma+raan, 1e-12, "n=%d", n)
		require.Greater(t, ma, 0.0)
		require.Greater(t, raan, 0.0)
	}
	// Larger sets weigh in-plane spacing more heavily.
	smallMA, _ := phasing.AdaptiveWeights(3)
	largeMA, _ := phasing.AdaptiveWeights(100)
	require.Greater(t, largeMA, smallMA)
}

func TestSubsetAnalysis(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	arena := ntntest.Arena(12, 4, ntntest.Options{})
	members := arena.ByConstellation(ntn.ConstellationStarlink)[:10]

	analyzer := phasing.NewAnalyzer(zaptest.NewLogger(t))
	analysis, err := analyzer.Analyze(ctx, arena, members)
	require.NoError(t, err)
	require.Len(t, analysis.PerConstellation, 1)

	phase := analysis.PerConstellation[ntn.ConstellationStarlink]
	require.NotNil(t, phase)
	total := 0
	for i := range phase.MeanAnomaly {
		total += len(phase.MeanAnomaly[i].Satellites)
	}
	require.Equal(t, 10, total)
}
