// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package rldataset_test

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"github.com/cedarwud/ntn-stack-sub001/integration/handover"
	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/ntn/ntntest"
	"github.com/cedarwud/ntn-stack-sub001/rldataset"
)

func buildDataset(t *testing.T, dir string) (*rldataset.Dataset, *ntn.Arena) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	log := zaptest.NewLogger(t)
	arena := ntntest.Arena(12, 4, ntntest.Options{})
	events, err := handover.NewSynthesizer(log, handover.Config{}).Run(ctx, arena)
	require.NoError(t, err)

	pool := &ntn.PoolConfiguration{
		ConfigurationID: "pool-under-test",
		Starlink:        ntn.NewIDSet(arena.Len()),
		OneWeb:          ntn.NewIDSet(arena.Len()),
	}
	for _, id := range arena.ByConstellation(ntn.ConstellationStarlink)[:10] {
		pool.Starlink.Add(id)
	}
	for _, id := range arena.ByConstellation(ntn.ConstellationOneWeb)[:3] {
		pool.OneWeb.Add(id)
	}

	builder := rldataset.NewBuilder(log, rldataset.Config{OutputDir: dir})
	dataset, err := builder.Build(ctx, arena, pool, events)
	require.NoError(t, err)
	return dataset, arena
}

func TestBuildTransitions(t *testing.T) {
	dataset, _ := buildDataset(t, t.TempDir())
	require.NotEmpty(t, dataset.Transitions)

	for _, transition := range dataset.Transitions {
		require.GreaterOrEqual(t, transition.Action, 0)
		require.Less(t, transition.Action, rldataset.DiscreteActions)
		for _, v := range transition.Continuous {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
		}
		require.NotEmpty(t, transition.Serving)
		if transition.Action == rldataset.ActionHandoverCandidate1 {
			require.NotEmpty(t, transition.Target)
		}
	}
}

func TestArtifactsOnDisk(t *testing.T) {
	dir := t.TempDir()
	dataset, _ := buildDataset(t, dir)

	require.False(t, dataset.TensorSkipped)
	require.NotEmpty(t, dataset.TensorPath)

	raw, err := os.ReadFile(dataset.ConfigPath)
	require.NoError(t, err)
	var config map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &config))
	require.EqualValues(t, rldataset.StateDim, config["state_dim"])
	require.Len(t, config["discrete_actions"], rldataset.DiscreteActions)

	tensor, err := os.Open(dataset.TensorPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, tensor.Close()) }()

	var header struct {
		Magic       [6]byte
		_           [2]byte
		Transitions uint32
		StateDim    uint32
		Continuous  uint32
	}
	require.NoError(t, binary.Read(tensor, binary.LittleEndian, &header))
	require.EqualValues(t, len(dataset.Transitions), header.Transitions)
	require.EqualValues(t, rldataset.StateDim, header.StateDim)
	require.EqualValues(t, rldataset.ContinuousDim, header.Continuous)

	info, err := os.Stat(dataset.TensorPath)
	require.NoError(t, err)
	rowBytes := int64(4 * (rldataset.StateDim + 1 + rldataset.ContinuousDim + 1))
	headerBytes := int64(6 + 2 + 3*4)
	require.Equal(t, headerBytes+rowBytes*int64(len(dataset.Transitions)), info.Size())
}

func TestSeedIsDeterministic(t *testing.T) {
	require.Equal(t,
		rldataset.SeedSource("pool-a"), rldataset.SeedSource("pool-a"))
	require.NotEqual(t,
		rldataset.SeedSource("pool-a"), rldataset.SeedSource("pool-b"))

	first, _ := buildDataset(t, t.TempDir())
	second, _ := buildDataset(t, t.TempDir())
	require.Equal(t, first.Seed, second.Seed)
	require.Equal(t, first.Transitions, second.Transitions)
}
