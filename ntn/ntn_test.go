// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package ntn_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
)

func TestIDSet(t *testing.T) {
	set := ntn.NewIDSet(200)
	require.Zero(t, set.Count())

	set.Add(0)
	set.Add(63)
	set.Add(64)
	set.Add(199)
	require.Equal(t, 4, set.Count())
	require.True(t, set.Has(63))
	require.False(t, set.Has(62))

	set.Remove(63)
	require.False(t, set.Has(63))
	require.Equal(t, 3, set.Count())

	require.Equal(t, []ntn.SatelliteID{0, 64, 199}, set.IDs())

	clone := set.Clone()
	clone.Add(5)
	require.False(t, set.Has(5))
	require.True(t, clone.Has(5))

	other := ntn.NewIDSet(200)
	other.Add(64)
	require.True(t, set.Intersects(other))
	other.Remove(64)
	require.False(t, set.Intersects(other))

	// Adding past the initial capacity grows the set.
	set.Add(1000)
	require.True(t, set.Has(1000))
}

func TestArena(t *testing.T) {
	arena := ntn.NewArena(4)

	id1, err := arena.Add(ntn.Satellite{Name: "STARLINK-1", Constellation: ntn.ConstellationStarlink})
	require.NoError(t, err)
	id2, err := arena.Add(ntn.Satellite{Name: "ONEWEB-1", Constellation: ntn.ConstellationOneWeb})
	require.NoError(t, err)

	_, err = arena.Add(ntn.Satellite{Name: "STARLINK-1"})
	require.Error(t, err)

	require.Equal(t, 2, arena.Len())
	require.Equal(t, "STARLINK-1", arena.Get(id1).Name)

	got, ok := arena.Lookup("ONEWEB-1")
	require.True(t, ok)
	require.Equal(t, id2, got)

	require.Equal(t, []ntn.SatelliteID{id1}, arena.ByConstellation(ntn.ConstellationStarlink))
	require.Equal(t, map[ntn.Constellation]int{
		ntn.ConstellationStarlink: 1,
		ntn.ConstellationOneWeb:   1,
	}, arena.CountByConstellation())
}

func TestValidateSamples(t *testing.T) {
	base := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	sat := ntn.Satellite{Name: "STARLINK-1", Samples: []ntn.PositionSample{
		{Time: base, ElevationDeg: 10, Visible: true},
		{Time: base.Add(30 * time.Second), ElevationDeg: -5},
	}}
	require.NoError(t, sat.ValidateSamples())

	// Time going backwards is rejected.
	sat.Samples[1].Time = base.Add(-time.Second)
	require.Error(t, sat.ValidateSamples())
	sat.Samples[1].Time = base.Add(30 * time.Second)

	// Visible below the horizon is rejected.
	sat.Samples[1].Visible = true
	require.Error(t, sat.ValidateSamples())
	sat.Samples[1].Visible = false

	// Elevation outside [-90, 90] is rejected.
	sat.Samples[1].ElevationDeg = 95
	require.Error(t, sat.ValidateSamples())
}

func TestSatelliteCounters(t *testing.T) {
	base := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	sat := ntn.Satellite{Samples: []ntn.PositionSample{
		{Time: base, Visible: true},
		{Time: base.Add(time.Minute), Visible: false},
		{Time: base.Add(2 * time.Minute), Visible: true},
		{Time: base.Add(3 * time.Minute), Visible: false},
	}}
	require.Equal(t, 2, sat.VisibleCount())
	require.InDelta(t, 0.5, sat.VisibilityRatio(), 1e-9)

	first, last := sat.TimeRange()
	require.Equal(t, base, first)
	require.Equal(t, base.Add(3*time.Minute), last)

	var empty ntn.Satellite
	require.Zero(t, empty.VisibilityRatio())
}

func TestPoolConfigurationQuantity(t *testing.T) {
	pool := &ntn.PoolConfiguration{
		Starlink: ntn.NewIDSet(64),
		OneWeb:   ntn.NewIDSet(64),
	}

	for i := 0; i < 12; i++ {
		pool.Starlink.Add(ntn.SatelliteID(i))
	}
	for i := 40; i < 44; i++ {
		pool.OneWeb.Add(ntn.SatelliteID(i))
	}
	require.True(t, pool.SatisfiesQuantity())

	// Exactly the minimums are accepted.
	minPool := &ntn.PoolConfiguration{Starlink: ntn.NewIDSet(64), OneWeb: ntn.NewIDSet(64)}
	for i := 0; i < 10; i++ {
		minPool.Starlink.Add(ntn.SatelliteID(i))
	}
	for i := 40; i < 43; i++ {
		minPool.OneWeb.Add(ntn.SatelliteID(i))
	}
	require.True(t, minPool.SatisfiesQuantity())

	// Overlap between the sets is rejected.
	pool.OneWeb.Add(5)
	require.False(t, pool.SatisfiesQuantity())
	pool.OneWeb.Remove(5)

	// Too few OneWeb satellites is rejected.
	pool.OneWeb.Remove(40)
	pool.OneWeb.Remove(41)
	require.False(t, pool.SatisfiesQuantity())

	require.False(t, pool.Accepted())
	pool.Accept()
	require.True(t, pool.Accepted())
}

func TestEnumLabels(t *testing.T) {
	require.Equal(t, "starlink", ntn.ConstellationStarlink.String())
	require.Equal(t, ntn.ConstellationStarlink, ntn.ParseConstellation("Starlink"))
	require.Equal(t, ntn.ConstellationOther, ntn.ParseConstellation("iridium"))
	require.Equal(t, "A4", ntn.EventA4.String())
	require.Equal(t, "trigger", ntn.DecisionTrigger.String())
	require.Equal(t, "PASS", ntn.StatusPass.String())
	require.Equal(t, "SKIPPED", ntn.StatusSkipped.String())
}
