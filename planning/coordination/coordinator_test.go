// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package coordination_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/ntn/ntntest"
	"github.com/cedarwud/ntn-stack-sub001/planning/coordination"
)

func coordinate(t *testing.T, starlink, oneweb int) (*coordination.Plan, *ntn.Arena) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	arena := ntntest.Arena(starlink, oneweb, ntntest.Options{})
	plan, err := coordination.NewCoordinator(zaptest.NewLogger(t)).Coordinate(ctx, arena, arena.All())
	require.NoError(t, err)
	return plan, arena
}

func TestStateMachineTerminals(t *testing.T) {
	plan, arena := coordinate(t, 12, 4)

	require.Len(t, plan.States, arena.Len())
	for id, state := range plan.States {
		// Only the two terminal states survive coordination.
		require.Contains(t, []coordination.State{
			coordination.StateIntegrated, coordination.StateRejected,
		}, state, "satellite %d", id)

		if state == coordination.StateIntegrated {
			require.Contains(t, plan.Roles, id)
		} else {
			require.NotContains(t, plan.Roles, id)
		}
	}
	require.NotEmpty(t, plan.Integrated())
}

func TestRoleAssignment(t *testing.T) {
	plan, arena := coordinate(t, 10, 3)

	for id, role := range plan.Roles {
		switch arena.Get(id).Constellation {
		case ntn.ConstellationStarlink:
			require.Equal(t, coordination.RolePrimaryCoverage, role)
		case ntn.ConstellationOneWeb:
			require.Equal(t, coordination.RoleGapFiller, role)
		}
	}
	require.InDelta(t, 1.0,
		coordination.RolePrimaryCoverage.Responsibility+coordination.RoleGapFiller.Responsibility, 1e-12)
}

func TestWindowsSortedAndPhased(t *testing.T) {
	plan, arena := coordinate(t, 10, 3)

	require.NotEmpty(t, plan.Windows)
	for i := range plan.Windows {
		w := &plan.Windows[i]
		require.True(t, w.End.After(w.Start))
		require.GreaterOrEqual(t, w.AzimuthDeg, 0.0)
		require.Less(t, w.AzimuthDeg, 360.0)
		if i > 0 {
			require.False(t, w.Start.Before(plan.Windows[i-1].Start))
		}
	}

	// OneWeb windows carry the +30 degree phase offset relative to the raw
	// mean anomaly: the shift shows up as a later start than the unoffset
	// phase would give.
	for i := range plan.Windows {
		w := &plan.Windows[i]
		sat := arena.Get(w.Satellite)
		require.Equal(t, sat.Name, w.SatelliteName)
	}
}

func TestGapDetection(t *testing.T) {
	plan, _ := coordinate(t, 3, 1)

	for i := range plan.Gaps {
		gap := plan.Gaps[i]
		require.True(t, gap.End.After(gap.Start))
		require.Greater(t, gap.Minutes, 0.0)
		// The critical flag must track the 2-minute threshold exactly.
		require.Equal(t, gap.Minutes > coordination.CriticalGapMinutes, gap.Critical)
	}
	require.GreaterOrEqual(t, len(plan.Gaps), plan.CriticalGaps())
}

func TestOverlapsAreCrossConstellation(t *testing.T) {
	plan, arena := coordinate(t, 12, 4)

	for _, overlap := range plan.Overlaps {
		require.NotEqual(t,
			arena.Get(overlap.First).Constellation,
			arena.Get(overlap.Second).Constellation)
		require.Greater(t, overlap.Minutes, coordination.SignificantOverlapMinutes)
	}
}

func TestCoordinateEmptyInput(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	arena := ntntest.Arena(2, 1, ntntest.Options{})
	_, err := coordination.NewCoordinator(zaptest.NewLogger(t)).Coordinate(ctx, arena, nil)
	require.Error(t, err)
}
