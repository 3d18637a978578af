// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package phasing analyzes the orbital phase distribution of each
// constellation: mean anomaly over 12 bins of 30 degrees, RAAN over 8 bins
// of 45 degrees, and a combined diversity score used by the coverage
// guarantee and the pool optimizer.
package phasing

import (
	"context"
	"math"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
)

var (
	// Error is the default phasing errs class.
	Error = errs.Class("phasing")

	mon = monkit.Package()
)

// Bin layout for the two element distributions.
const (
	MeanAnomalyBins   = 12
	MeanAnomalyBinDeg = 30.0
	RAANBins          = 8
	RAANBinDeg        = 45.0
)

// Diversity ratings.
const (
	RatingExcellent  = "excellent"
	RatingGood       = "good"
	RatingAcceptable = "acceptable"
	RatingPoor       = "poor"
)

// ConstellationPhase is the phase analysis of one constellation.
type ConstellationPhase struct {
	Constellation  ntn.Constellation    `json:"-"`
	MeanAnomaly    [MeanAnomalyBins]Bin `json:"mean_anomaly_bins"`
	RAAN           [RAANBins]Bin        `json:"raan_bins"`
	Uniformity     float64              `json:"ma_uniformity_score"`
	Dispersion     float64              `json:"raan_dispersion_score"`
	MAWeight       float64              `json:"ma_weight"`
	RAANWeight     float64              `json:"raan_weight"`
	DiversityScore float64              `json:"diversity_score"`
	Rating         string               `json:"diversity_rating"`
}

// Bin holds the satellites whose element falls inside one angular slot.
type Bin struct {
	StartDeg   float64  `json:"start_deg"`
	Satellites []string `json:"satellites"`
}

// Analysis is the phase analysis of a full candidate set.
type Analysis struct {
	PerConstellation map[ntn.Constellation]*ConstellationPhase
}

// Diversity returns the combined diversity score over the analyzed
// constellations, weighted by member count.
func (a *Analysis) Diversity() float64 {
	total, weighted := 0, 0.0
	for _, phase := range a.PerConstellation {
		n := phase.memberCount()
		weighted += phase.DiversityScore * float64(n)
		total += n
	}
	if total == 0 {
		return 0
	}
	return weighted / float64(total)
}

func (p *ConstellationPhase) memberCount() int {
	count := 0
	for i := range p.MeanAnomaly {
		count += len(p.MeanAnomaly[i].Satellites)
	}
	return count
}

// Analyzer computes phase distributions from orbital elements.
type Analyzer struct {
	log *zap.Logger
}

// NewAnalyzer creates a phase analyzer.
func NewAnalyzer(log *zap.Logger) *Analyzer {
	return &Analyzer{log: log}
}

// Analyze bins the given satellites by mean anomaly and RAAN, per
// constellation, and scores the distributions.
func (analyzer *Analyzer) Analyze(ctx context.Context, arena *ntn.Arena, members []ntn.SatelliteID) (_ *Analysis, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(members) == 0 {
		return nil, Error.New("no satellites to analyze")
	}

	analysis := &Analysis{PerConstellation: map[ntn.Constellation]*ConstellationPhase{}}
	for _, id := range members {
		sat := arena.Get(id)
		phase, ok := analysis.PerConstellation[sat.Constellation]
		if !ok {
			phase = newConstellationPhase(sat.Constellation)
			analysis.PerConstellation[sat.Constellation] = phase
		}

		ma := normalizeDeg(sat.Elements.MeanAnomalyDeg)
		raan := normalizeDeg(sat.Elements.RAANDeg)
		maBin := int(ma/MeanAnomalyBinDeg) % MeanAnomalyBins
		raanBin := int(raan/RAANBinDeg) % RAANBins
		phase.MeanAnomaly[maBin].Satellites = append(phase.MeanAnomaly[maBin].Satellites, sat.Name)
		phase.RAAN[raanBin].Satellites = append(phase.RAAN[raanBin].Satellites, sat.Name)
	}

	for _, phase := range analysis.PerConstellation {
		n := phase.memberCount()
		phase.Uniformity = spreadScore(binCounts(phase.MeanAnomaly[:]))
		phase.Dispersion = spreadScore(binCounts(phase.RAAN[:]))
		phase.MAWeight, phase.RAANWeight = AdaptiveWeights(n)
		phase.DiversityScore = phase.MAWeight*phase.Uniformity + phase.RAANWeight*phase.Dispersion
		phase.Rating = rateDiversity(phase.DiversityScore, n)

		mon.FloatVal("phase_diversity",
			monkit.NewSeriesTag("constellation", phase.Constellation.String()),
		).Observe(phase.DiversityScore)
		analyzer.log.Debug("phase analysis",
			zap.Stringer("constellation", phase.Constellation),
			zap.Int("satellites", n),
			zap.Float64("uniformity", phase.Uniformity),
			zap.Float64("dispersion", phase.Dispersion),
			zap.Float64("diversity", phase.DiversityScore),
			zap.String("rating", phase.Rating))
	}

	return analysis, nil
}

func newConstellationPhase(c ntn.Constellation) *ConstellationPhase {
	phase := &ConstellationPhase{Constellation: c}
	for i := range phase.MeanAnomaly {
		phase.MeanAnomaly[i].StartDeg = float64(i) * MeanAnomalyBinDeg
	}
	for i := range phase.RAAN {
		phase.RAAN[i].StartDeg = float64(i) * RAANBinDeg
	}
	return phase
}

func binCounts(bins []Bin) []int {
	counts := make([]int, len(bins))
	for i := range bins {
		counts[i] = len(bins[i].Satellites)
	}
	return counts
}

// spreadScore rates how evenly counts spread across bins:
// 1 - (max-min)/max. A single-bin pile-up scores 0, a perfectly even
// spread scores 1.
func spreadScore(counts []int) float64 {
	minCount, maxCount := counts[0], counts[0]
	for _, c := range counts[1:] {
		if c < minCount {
			minCount = c
		}
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount == 0 {
		return 0
	}
	return 1 - float64(maxCount-minCount)/float64(maxCount)
}

// AdaptiveWeights derives the mean-anomaly and RAAN weights from the
// constellation size. Larger sets carry more satellites per plane, so in-plane
// spacing (mean anomaly) dominates; small sets lean on plane spread (RAAN).
// The weights always sum to 1.
func AdaptiveWeights(satellites int) (maWeight, raanWeight float64) {
	fill := math.Min(1, float64(satellites)/float64(MeanAnomalyBins*2))
	maWeight = 0.5 + 0.2*fill
	return maWeight, 1 - maWeight
}

// rateDiversity maps a diversity score to a rating. Thresholds scale with
// the reachable score: a constellation smaller than the bin count cannot
// fill every bin, so its bar is proportionally lower.
func rateDiversity(score float64, satellites int) string {
	reach := math.Min(1, float64(satellites)/float64(MeanAnomalyBins))
	switch {
	case score >= 0.8*reach:
		return RatingExcellent
	case score >= 0.6*reach:
		return RatingGood
	case score >= 0.4*reach:
		return RatingAcceptable
	default:
		return RatingPoor
	}
}

func normalizeDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
