// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package rldataset serializes handover decision sequences into training
// artifacts for downstream reinforcement learning. It builds state vectors,
// discrete and continuous actions, and shaped rewards from the synthesized
// handover events; no training happens here.
package rldataset

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/cedarwud/ntn-stack-sub001/integration/handover"
	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/physics"
)

var (
	// Error is the default rldataset errs class.
	Error = errs.Class("rldataset")

	mon = monkit.Package()
)

// StateDim is the fixed state vector width: 6 serving fields, 3 candidates
// with 4 fields each, and 2 environment fields.
const StateDim = 20

// Discrete actions.
const (
	ActionMaintain = iota
	ActionHandoverCandidate1
	ActionHandoverCandidate2
	ActionHandoverCandidate3
	ActionEmergencyScan

	DiscreteActions = 5
)

// ActionLabels names the discrete actions in index order.
var ActionLabels = []string{
	"MAINTAIN", "HANDOVER_CAND1", "HANDOVER_CAND2", "HANDOVER_CAND3", "EMERGENCY_SCAN",
}

// ContinuousDim is the continuous action width: handover probability,
// candidate weight, threshold adjustment.
const ContinuousDim = 3

// Reward shaping weights.
const (
	RewardSignalQualityWeight = 0.4
	RewardContinuityWeight    = 0.3
	RewardEfficiencyWeight    = 0.2
	RewardResourceWeight      = 0.1

	// pingPongPenalty discourages transitions that bounce straight back to
	// the previous serving satellite.
	pingPongPenalty = 0.5

	// strongGainBonus rewards handovers that improve RSRP by over 3 dB.
	strongGainBonus = 0.2
)

// Transition is one (state, action, reward) step.
type Transition struct {
	State      [StateDim]float64      `json:"state"`
	Action     int                    `json:"action"`
	Continuous [ContinuousDim]float64 `json:"continuous_action"`
	Reward     float64                `json:"reward"`
	Serving    string                 `json:"serving_satellite"`
	Target     string                 `json:"target_satellite,omitempty"`
	Time       time.Time              `json:"timestamp"`
}

// Dataset is the built training set plus pointers to its emitted files.
type Dataset struct {
	Transitions   []Transition `json:"-"`
	Seed          int64        `json:"seed"`
	ConfigPath    string       `json:"config_path"`
	TensorPath    string       `json:"tensor_path,omitempty"`
	TensorSkipped bool         `json:"tensor_skipped,omitempty"`
}

// Config tunes the dataset builder.
type Config struct {
	OutputDir string `help:"directory for RL training artifacts" default:"data/rl_dataset"`
}

// Builder assembles the RL dataset from handover events.
type Builder struct {
	log    *zap.Logger
	config Config
}

// NewBuilder creates a dataset builder.
func NewBuilder(log *zap.Logger, config Config) *Builder {
	return &Builder{log: log, config: config}
}

// SeedSource derives the dataset seed from the pool configuration id, so
// the same pool always produces the same dataset.
func SeedSource(configurationID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(configurationID))
	return int64(h.Sum64())
}

// Build converts the pool's handover events into transitions and emits the
// tensor and config artifacts. A failed tensor write is logged and skipped;
// the JSON config always lands.
func (builder *Builder) Build(ctx context.Context, arena *ntn.Arena, pool *ntn.PoolConfiguration, events *handover.Output) (_ *Dataset, err error) {
	defer mon.Task()(&ctx)(&err)

	dataset := &Dataset{Seed: SeedSource(pool.ConfigurationID)}

	poolMembers := pool.Starlink.Clone()
	for _, id := range pool.OneWeb.IDs() {
		poolMembers.Add(id)
	}

	var previousServing ntn.SatelliteID
	var hasPrevious bool
	for i := range events.Events {
		event := &events.Events[i]
		if !poolMembers.Has(event.Serving) {
			continue
		}

		transition := builder.transition(arena, event, hasPrevious, previousServing)
		dataset.Transitions = append(dataset.Transitions, transition)
		previousServing, hasPrevious = event.Serving, true
	}

	if err := os.MkdirAll(builder.config.OutputDir, 0755); err != nil {
		return nil, Error.Wrap(err)
	}

	dataset.ConfigPath = filepath.Join(builder.config.OutputDir, "rl_config.json")
	if err := builder.writeConfig(dataset); err != nil {
		return nil, err
	}

	tensorPath := filepath.Join(builder.config.OutputDir, "transitions.bin")
	if err := writeTensor(tensorPath, dataset.Transitions); err != nil {
		// Binary emission is best effort; training can rebuild it from the
		// JSON config plus transitions.
		builder.log.Warn("tensor emission skipped", zap.Error(err))
		dataset.TensorSkipped = true
	} else {
		dataset.TensorPath = tensorPath
	}

	mon.IntVal("rl_transitions").Observe(int64(len(dataset.Transitions)))
	builder.log.Info("rl dataset built",
		zap.Int("transitions", len(dataset.Transitions)),
		zap.Int64("seed", dataset.Seed),
		zap.Bool("tensor_skipped", dataset.TensorSkipped))
	return dataset, nil
}

// transition builds one step from a handover event.
func (builder *Builder) transition(arena *ntn.Arena, event *ntn.HandoverEvent, hasPrevious bool, previousServing ntn.SatelliteID) Transition {
	serving := arena.Get(event.Serving)
	neighbor := arena.Get(event.Neighbor)

	transition := Transition{
		Serving: serving.Name,
		Time:    event.Time,
	}

	// Serving block: rsrp, elevation, range, doppler, snr, time to LOS.
	sample := sampleAt(serving, event.Time)
	transition.State[0] = event.ServingRSRPDBm
	transition.State[1] = event.ElevationDeg
	transition.State[2] = sample.RangeKm
	transition.State[3] = dopplerFor(serving)
	transition.State[4] = snrProxy(event.ServingRSRPDBm)
	transition.State[5] = timeToLOSMinutes(serving, event.Time)

	// Candidate blocks: rsrp, elevation, range, doppler for up to three
	// neighbors, the event's neighbor first.
	candidates := candidateOrder(arena, event)
	for i := 0; i < 3; i++ {
		base := 6 + i*4
		if i >= len(candidates) {
			continue
		}
		cand := arena.Get(candidates[i])
		candSample := sampleAt(cand, event.Time)
		transition.State[base] = physics.RSRP(cand.Name, cand.Constellation, candSample.ElevationDeg)
		transition.State[base+1] = candSample.ElevationDeg
		transition.State[base+2] = candSample.RangeKm
		transition.State[base+3] = dopplerFor(cand)
	}

	// Environment block: deterministic proxies derived from the event, not
	// from randomness.
	transition.State[18] = networkLoadProxy(event.Time)
	transition.State[19] = weatherProxy(serving.Name)

	gain := event.NeighborRSRPDBm - event.ServingRSRPDBm
	switch {
	case event.Decision == ntn.DecisionTrigger:
		transition.Action = ActionHandoverCandidate1
		transition.Target = neighbor.Name
	case event.ServingRSRPDBm < physics.RSRPMinDBm+10:
		transition.Action = ActionEmergencyScan
	default:
		transition.Action = ActionMaintain
	}

	transition.Continuous[0] = clamp01((gain + 6) / 12)
	transition.Continuous[1] = clamp01((event.NeighborRSRPDBm - physics.RSRPMinDBm) / (physics.RSRPMaxDBm - physics.RSRPMinDBm))
	transition.Continuous[2] = clamp01(event.ElevationDeg / 90)

	transition.Reward = reward(event, gain, hasPrevious && event.Neighbor == previousServing)
	return transition
}

// reward shapes the step reward from the four weighted terms plus the
// ping-pong penalty and strong-gain bonus.
func reward(event *ntn.HandoverEvent, gain float64, pingPong bool) float64 {
	signalQuality := clamp01((gain + 6) / 12)
	continuity := clamp01(event.ElevationDeg / 45)
	efficiency := 1.0
	if event.Decision == ntn.DecisionTrigger {
		// Triggered handovers consume signalling resources.
		efficiency = 0.5
	}
	resource := clamp01((event.NeighborRSRPDBm - physics.RSRPMinDBm) / (physics.RSRPMaxDBm - physics.RSRPMinDBm))

	r := RewardSignalQualityWeight*signalQuality +
		RewardContinuityWeight*continuity +
		RewardEfficiencyWeight*efficiency +
		RewardResourceWeight*resource
	if pingPong && event.Decision == ntn.DecisionTrigger {
		r -= pingPongPenalty
	}
	if gain > 3 && event.Decision == ntn.DecisionTrigger {
		r += strongGainBonus
	}
	return r
}

// candidateOrder lists the event's neighbor first, then the serving
// satellite's other neighbors by id.
func candidateOrder(arena *ntn.Arena, event *ntn.HandoverEvent) []ntn.SatelliteID {
	candidates := []ntn.SatelliteID{event.Neighbor}
	for _, id := range arena.All() {
		if id != event.Serving && id != event.Neighbor {
			candidates = append(candidates, id)
		}
		if len(candidates) == 3 {
			break
		}
	}
	return candidates
}

func sampleAt(sat *ntn.Satellite, ts time.Time) *ntn.PositionSample {
	i := sort.Search(len(sat.Samples), func(i int) bool {
		return !sat.Samples[i].Time.Before(ts)
	})
	if i >= len(sat.Samples) {
		i = len(sat.Samples) - 1
	}
	return &sat.Samples[i]
}

func dopplerFor(sat *ntn.Satellite) float64 {
	rf := physics.RFFor(sat.Constellation)
	velocity := physics.OrbitalVelocityKmS(sat.Elements.SemiMajorAxisKm)
	return physics.DopplerShiftHz(velocity, rf.FrequencyHz)
}

// timeToLOSMinutes measures from ts to the end of the current visibility
// run, 0 when the satellite is not visible at ts.
func timeToLOSMinutes(sat *ntn.Satellite, ts time.Time) float64 {
	i := sort.Search(len(sat.Samples), func(i int) bool {
		return !sat.Samples[i].Time.Before(ts)
	})
	if i >= len(sat.Samples) || !sat.Samples[i].Visible {
		return 0
	}
	for ; i < len(sat.Samples); i++ {
		if !sat.Samples[i].Visible {
			break
		}
	}
	last := sat.Samples[i-1].Time
	return last.Sub(ts).Minutes()
}

// snrProxy maps RSRP onto an SNR estimate relative to a -120 dBm noise
// floor.
func snrProxy(rsrpDBm float64) float64 {
	return rsrpDBm + 120
}

// networkLoadProxy derives a deterministic load factor from the time of day.
func networkLoadProxy(ts time.Time) float64 {
	minuteOfDay := float64(ts.UTC().Hour()*60 + ts.UTC().Minute())
	return 0.5 + 0.4*math.Sin(2*math.Pi*minuteOfDay/1440)
}

// weatherProxy derives a deterministic attenuation factor from the
// satellite name, mirroring the id-seeded fading model.
func weatherProxy(name string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return float64(h.Sum32()%100) / 100
}

func (builder *Builder) writeConfig(dataset *Dataset) error {
	config := map[string]interface{}{
		"state_dim":        StateDim,
		"discrete_actions": ActionLabels,
		"continuous_dim":   ContinuousDim,
		"continuous_fields": []string{
			"handover_probability", "candidate_weight", "threshold_adjustment",
		},
		"reward_weights": map[string]float64{
			"signal_quality_gain": RewardSignalQualityWeight,
			"continuity":          RewardContinuityWeight,
			"efficiency":          RewardEfficiencyWeight,
			"resource":            RewardResourceWeight,
		},
		"transitions": len(dataset.Transitions),
		"seed":        dataset.Seed,
	}
	raw, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(os.WriteFile(dataset.ConfigPath, raw, 0644))
}

// Tensor file layout: magic, version, counts, then float32 rows of
// state | action | continuous | reward, little endian.
var tensorMagic = [6]byte{'N', 'T', 'N', 'R', 'L', 1}

func writeTensor(path string, transitions []Transition) error {
	file, err := os.Create(path)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = file.Close() }()

	header := struct {
		Magic       [6]byte
		_           [2]byte
		Transitions uint32
		StateDim    uint32
		Continuous  uint32
	}{Magic: tensorMagic, Transitions: uint32(len(transitions)), StateDim: StateDim, Continuous: ContinuousDim}
	if err := binary.Write(file, binary.LittleEndian, header); err != nil {
		return Error.Wrap(err)
	}

	for i := range transitions {
		t := &transitions[i]
		row := make([]float32, 0, StateDim+1+ContinuousDim+1)
		for _, v := range t.State {
			row = append(row, float32(v))
		}
		row = append(row, float32(t.Action))
		for _, v := range t.Continuous {
			row = append(row, float32(v))
		}
		row = append(row, float32(t.Reward))
		if err := binary.Write(file, binary.LittleEndian, row); err != nil {
			return Error.Wrap(err)
		}
	}
	return Error.Wrap(file.Close())
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
