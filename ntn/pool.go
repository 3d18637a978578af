// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package ntn

import (
	"time"
)

// Pool cardinality constraints for the dynamic satellite pool.
const (
	StarlinkPoolMin = 10
	StarlinkPoolMax = 15
	OneWebPoolMin   = 3
	OneWebPoolMax   = 6
)

// CoverageWindow is a contiguous span during which a satellite is usable
// above a threshold elevation. Derived inside the integration and planning
// stages; discarded at run end unless serialized into the final artifact.
type CoverageWindow struct {
	Satellite       SatelliteID `json:"-"`
	SatelliteName   string      `json:"satellite_id"`
	AOS             time.Time   `json:"aos_time"`
	LOS             time.Time   `json:"los_time"`
	MaxElevationDeg float64     `json:"max_elevation_deg"`
	AvgRSRPDBm      float64     `json:"avg_rsrp_dbm"`
	QualityScore    float64     `json:"quality_score"`
}

// Duration returns the window length.
func (w CoverageWindow) Duration() time.Duration { return w.LOS.Sub(w.AOS) }

// HandoverEvent is a synthesized 3GPP TS 38.331 measurement event between a
// serving and a neighbour satellite.
type HandoverEvent struct {
	Kind            EventKind   `json:"-"`
	KindLabel       string      `json:"event_type"`
	Serving         SatelliteID `json:"-"`
	ServingName     string      `json:"serving_satellite"`
	Neighbor        SatelliteID `json:"-"`
	NeighborName    string      `json:"neighbor_satellite"`
	Time            time.Time   `json:"timestamp"`
	TriggerRSRPDBm  float64     `json:"trigger_rsrp_dbm"`
	ServingRSRPDBm  float64     `json:"serving_rsrp_dbm"`
	NeighborRSRPDBm float64     `json:"neighbor_rsrp_dbm"`
	ElevationDeg    float64     `json:"elevation_deg"`
	Decision        Decision    `json:"-"`
	DecisionLabel   string      `json:"decision"`
	Citation        string      `json:"standard_reference"`
}

// SatelliteCandidate is the planning-stage view of a satellite: its scores
// and predicted coverage, detached from the raw timeseries.
type SatelliteCandidate struct {
	Satellite          SatelliteID      `json:"-"`
	SatelliteName      string           `json:"satellite_id"`
	Constellation      Constellation    `json:"-"`
	CoverageScore      float64          `json:"coverage_score"`
	SignalQualityScore float64          `json:"signal_quality_score"`
	StabilityScore     float64          `json:"stability_score"`
	ResourceCost       float64          `json:"resource_cost"`
	PredictedHandovers int              `json:"predicted_handovers"`
	Windows            []CoverageWindow `json:"coverage_windows,omitempty"`
}

// PoolConfiguration is the planning-stage output: which satellites form the
// dynamic pool. It references satellites by id only and is frozen once the
// coverage guarantee engine accepts it.
type PoolConfiguration struct {
	ConfigurationID      string  `json:"configuration_id"`
	Starlink             *IDSet  `json:"-"`
	OneWeb               *IDSet  `json:"-"`
	CoverageRate         float64 `json:"coverage_rate"`
	AvgSignalQuality     float64 `json:"avg_signal_quality"`
	EstHandoverFrequency float64 `json:"est_handover_frequency"`
	ResourceUtilization  float64 `json:"resource_utilization"`
	Fitness              float64 `json:"fitness_score"`

	accepted bool
}

// SatisfiesQuantity reports whether the pool honors the hard cardinality
// constraints and set disjointness.
func (p *PoolConfiguration) SatisfiesQuantity() bool {
	if p.Starlink == nil || p.OneWeb == nil {
		return false
	}
	sl, ow := p.Starlink.Count(), p.OneWeb.Count()
	if sl < StarlinkPoolMin || sl > StarlinkPoolMax {
		return false
	}
	if ow < OneWebPoolMin || ow > OneWebPoolMax {
		return false
	}
	return !p.Starlink.Intersects(p.OneWeb)
}

// Accept freezes the configuration. Further Accept calls are no-ops.
func (p *PoolConfiguration) Accept() { p.accepted = true }

// Accepted reports whether the coverage guarantee engine accepted the pool.
func (p *PoolConfiguration) Accepted() bool { return p.accepted }

// MemberNames resolves both sets to satellite names via the arena, Starlink
// first, each set in ascending id order.
func (p *PoolConfiguration) MemberNames(arena *Arena) (starlink, oneweb []string) {
	for _, id := range p.Starlink.IDs() {
		starlink = append(starlink, arena.Get(id).Name)
	}
	for _, id := range p.OneWeb.IDs() {
		oneweb = append(oneweb, arena.Get(id).Name)
	}
	return starlink, oneweb
}
