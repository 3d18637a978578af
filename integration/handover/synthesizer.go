// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package handover synthesizes 3GPP TS 38.331 measurement events (A4, A5,
// D2) from pairs of visible satellites. RSRP comes from the real elevation
// via the physics link budget; timestamps are the TLE-epoch-derived sample
// times, never wall clock.
package handover

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/sync2"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/physics"
)

var (
	// Error is the default handover errs class.
	Error = errs.Class("handover")

	mon = monkit.Package()
)

// 3GPP citation tags carried by every synthesized event.
const (
	citationA4 = "3GPP TS 38.331 v17.3.0 Section 5.5.4.5 (Event A4)"
	citationA5 = "3GPP TS 38.331 v17.3.0 Section 5.5.4.6 (Event A5)"
	citationD2 = "3GPP TS 38.331 v17.3.0 Section 5.5.4.15a (Event D2)"
)

// Config contains configurable values for event synthesis.
type Config struct {
	SampleStride     int `help:"evaluate every n-th aligned sample to bound pair complexity" default:"10"`
	MaxEventsPerPair int `help:"event cap per ordered (serving, neighbor) pair" default:"5"`
	Concurrency      int `help:"serving-satellite fan-out limit, 0 means min(NumCPU, 32)" default:"0"`
}

func (config Config) stride() int {
	if config.SampleStride > 0 {
		return config.SampleStride
	}
	return 10
}

func (config Config) cap() int {
	if config.MaxEventsPerPair > 0 {
		return config.MaxEventsPerPair
	}
	return 5
}

func (config Config) concurrency() int {
	if config.Concurrency > 0 {
		return config.Concurrency
	}
	n := runtime.NumCPU()
	if n > 32 {
		n = 32
	}
	return n
}

// Output is the synthesized event set plus per-kind counts.
type Output struct {
	Events []ntn.HandoverEvent
	ByKind map[ntn.EventKind]int
}

// EventsOfKind returns the events of one kind, preserving global order.
func (o *Output) EventsOfKind(kind ntn.EventKind) []ntn.HandoverEvent {
	var out []ntn.HandoverEvent
	for i := range o.Events {
		if o.Events[i].Kind == kind {
			out = append(out, o.Events[i])
		}
	}
	return out
}

// Synthesizer derives measurement events from the satellite arena.
type Synthesizer struct {
	log    *zap.Logger
	config Config
}

// NewSynthesizer creates an event synthesizer.
func NewSynthesizer(log *zap.Logger, config Config) *Synthesizer {
	return &Synthesizer{log: log, config: config}
}

// Run evaluates every ordered pair of satellites with visible samples.
// Serving satellites fan out over a bounded limiter; the combined event
// list is sorted by (serving, neighbor, timestamp) so downstream hashes
// are reproducible.
func (s *Synthesizer) Run(ctx context.Context, arena *ntn.Arena) (_ *Output, err error) {
	defer mon.Task()(&ctx)(&err)

	// Only satellites that are ever visible can serve or be measured.
	var visible []ntn.SatelliteID
	for _, id := range arena.All() {
		if arena.Get(id).VisibleCount() > 0 {
			visible = append(visible, id)
		}
	}

	limiter := sync2.NewLimiter(s.config.concurrency())
	defer limiter.Wait()

	var mu sync.Mutex
	var all []ntn.HandoverEvent

	for _, serving := range visible {
		serving := serving
		started := limiter.Go(ctx, func() {
			events := s.synthesizeForServing(arena, serving, visible)
			if len(events) == 0 {
				return
			}
			mu.Lock()
			all = append(all, events...)
			mu.Unlock()
		})
		if !started {
			return nil, Error.Wrap(ctx.Err())
		}
	}
	limiter.Wait()

	sort.Slice(all, func(i, j int) bool {
		a, b := &all[i], &all[j]
		if a.Serving != b.Serving {
			return a.Serving < b.Serving
		}
		if a.Neighbor != b.Neighbor {
			return a.Neighbor < b.Neighbor
		}
		return a.Time.Before(b.Time)
	})

	output := &Output{Events: all, ByKind: make(map[ntn.EventKind]int)}
	for i := range all {
		output.ByKind[all[i].Kind]++
	}

	mon.IntVal("handover_events_synthesized").Observe(int64(len(all)))
	s.log.Info("handover event synthesis complete",
		zap.Int("events", len(all)),
		zap.Int("a4", output.ByKind[ntn.EventA4]),
		zap.Int("a5", output.ByKind[ntn.EventA5]),
		zap.Int("d2", output.ByKind[ntn.EventD2]))
	return output, nil
}

func (s *Synthesizer) synthesizeForServing(arena *ntn.Arena, servingID ntn.SatelliteID, visible []ntn.SatelliteID) []ntn.HandoverEvent {
	serving := arena.Get(servingID)
	stride := s.config.stride()
	maxPerPair := s.config.cap()

	var events []ntn.HandoverEvent
	for _, neighborID := range visible {
		if neighborID == servingID {
			continue
		}
		neighbor := arena.Get(neighborID)

		aligned := len(serving.Samples)
		if len(neighbor.Samples) < aligned {
			aligned = len(neighbor.Samples)
		}

		pairCount := 0
		for i := 0; i < aligned && pairCount < maxPerPair; i += stride {
			ss, ns := &serving.Samples[i], &neighbor.Samples[i]
			if !ss.Visible || !ns.Visible {
				continue
			}

			servingRSRP := physics.RSRP(serving.Name, serving.Constellation, ss.ElevationDeg)
			neighborRSRP := physics.RSRP(neighbor.Name, neighbor.Constellation, ns.ElevationDeg)

			if event, ok := evaluatePair(serving, neighbor, servingID, neighborID, ss, ns, servingRSRP, neighborRSRP); ok {
				events = append(events, event)
				pairCount++
			}
		}
	}
	return events
}

// evaluatePair applies the A4, A5 and D2 trigger conditions in that order
// and returns the first event that fires at this aligned sample.
func evaluatePair(serving, neighbor *ntn.Satellite, servingID, neighborID ntn.SatelliteID, ss, ns *ntn.PositionSample, servingRSRP, neighborRSRP float64) (ntn.HandoverEvent, bool) {
	event := ntn.HandoverEvent{
		Serving:         servingID,
		ServingName:     serving.Name,
		Neighbor:        neighborID,
		NeighborName:    neighbor.Name,
		Time:            ss.Time,
		ServingRSRPDBm:  servingRSRP,
		NeighborRSRPDBm: neighborRSRP,
		ElevationDeg:    ss.ElevationDeg,
	}

	// A4: neighbour better than an altitude-compensated threshold.
	a4Threshold := -95.0 + altitudeCompensationDB(neighbor)
	if neighborRSRP > a4Threshold {
		event.Kind = ntn.EventA4
		event.KindLabel = event.Kind.String()
		event.TriggerRSRPDBm = neighborRSRP
		event.Decision = decideByMargin(neighborRSRP - a4Threshold)
		event.DecisionLabel = event.Decision.String()
		event.Citation = citationA4
		return event, true
	}

	// A5: serving below threshold1 while neighbour above threshold2.
	threshold1 := -105.0 + elevationCompensationDB(ss.ElevationDeg)
	threshold2 := threshold1 + 5
	if servingRSRP < threshold1 && neighborRSRP > threshold2 {
		event.Kind = ntn.EventA5
		event.KindLabel = event.Kind.String()
		event.TriggerRSRPDBm = neighborRSRP
		event.Decision = decideByMargin(neighborRSRP - threshold2)
		event.DecisionLabel = event.Decision.String()
		event.Citation = citationA5
		return event, true
	}

	// D2: RSRP divergence beyond a distance-adjusted threshold.
	d2Threshold := 3.0 + distanceAdjustmentDB(ss.RangeKm, ns.RangeKm)
	if diff := math.Abs(neighborRSRP - servingRSRP); diff > d2Threshold {
		event.Kind = ntn.EventD2
		event.KindLabel = event.Kind.String()
		event.TriggerRSRPDBm = neighborRSRP
		event.Decision = decideByMargin(diff - d2Threshold)
		event.DecisionLabel = event.Decision.String()
		event.Citation = citationD2
		return event, true
	}

	return ntn.HandoverEvent{}, false
}

// altitudeCompensationDB maps the neighbour's orbital altitude to [0, 5] dB.
// Higher shells report over a longer path, so their A4 gate relaxes.
func altitudeCompensationDB(sat *ntn.Satellite) float64 {
	altKm := sat.Elements.SemiMajorAxisKm - physics.EarthRadiusKm
	comp := 5 * (altKm - 500) / 1000
	if comp < 0 {
		return 0
	}
	if comp > 5 {
		return 5
	}
	return comp
}

// elevationCompensationDB maps the serving elevation to [0, 5] dB: the
// higher the pass, the stronger the serving signal must degrade before A5.
func elevationCompensationDB(elevationDeg float64) float64 {
	comp := 5 * (elevationDeg - 5) / 85
	if comp < 0 {
		return 0
	}
	if comp > 5 {
		return 5
	}
	return comp
}

// distanceAdjustmentDB widens the D2 gate when the two slant ranges are far
// apart, up to +2 dB.
func distanceAdjustmentDB(servingRangeKm, neighborRangeKm float64) float64 {
	adj := math.Abs(servingRangeKm-neighborRangeKm) / 1000
	if adj > 2 {
		return 2
	}
	return adj
}

// decideByMargin maps trigger margin to the handover decision.
func decideByMargin(marginDB float64) ntn.Decision {
	if marginDB > 2 {
		return ntn.DecisionTrigger
	}
	return ntn.DecisionEvaluate
}
