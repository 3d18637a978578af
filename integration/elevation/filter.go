// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package elevation implements the layered elevation filter of the
// integration stage: for each threshold it keeps the samples that are
// visible at or above the threshold and derives per-satellite statistics
// and coverage windows. The filter never synthesizes samples; upstream
// data is authoritative.
package elevation

import (
	"context"
	"math"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/sync2"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/physics"
)

var (
	// Error is the default elevation errs class.
	Error = errs.Class("elevation")

	mon = monkit.Package()
)

// minQualifyingSamples drops a satellite from a layer when fewer samples
// than this survive the threshold.
const minQualifyingSamples = 3

// Config contains configurable values for the layered filter.
type Config struct {
	Thresholds  []int `help:"elevation thresholds in degrees, one output layer each" default:"5,10,15"`
	Concurrency int   `help:"satellite fan-out limit, 0 means min(NumCPU, 32)" default:"0"`
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

// Stats describes one satellite inside one layer.
type Stats struct {
	SatelliteName string  `json:"satellite_id"`
	Constellation string  `json:"constellation"`
	ThresholdDeg  int     `json:"threshold_deg"`
	MinElevation  float64 `json:"min_elevation_deg"`
	MaxElevation  float64 `json:"max_elevation_deg"`
	AvgElevation  float64 `json:"avg_elevation_deg"`
	FilteredCount int     `json:"filtered_count"`
	TotalCount    int     `json:"total_count"`
}

// SatelliteLayer holds the surviving samples of one satellite at one
// threshold, plus derived windows and statistics.
type SatelliteLayer struct {
	Satellite ntn.SatelliteID
	Stats     Stats
	Samples   []ntn.PositionSample
	Windows   []ntn.CoverageWindow
}

// Layer is the output of one (threshold, constellation) pair.
type Layer struct {
	ThresholdDeg  int
	Constellation ntn.Constellation
	Satellites    []SatelliteLayer
}

// Output is the complete layered filter result.
type Output struct {
	Layers []Layer
}

// LayerFor returns the layer for a threshold and constellation, nil if the
// combination produced no satellites.
func (o *Output) LayerFor(thresholdDeg int, c ntn.Constellation) *Layer {
	for i := range o.Layers {
		if o.Layers[i].ThresholdDeg == thresholdDeg && o.Layers[i].Constellation == c {
			return &o.Layers[i]
		}
	}
	return nil
}

// Filter runs the layered elevation filtering pass.
type Filter struct {
	log    *zap.Logger
	config Config
}

// NewFilter creates a layered elevation filter.
func NewFilter(log *zap.Logger, config Config) *Filter {
	return &Filter{log: log, config: config}
}

// Run filters every satellite in the arena through every configured
// threshold. Satellites fan out over a bounded limiter; layer contents come
// back in deterministic (threshold, constellation, satellite id) order.
func (filter *Filter) Run(ctx context.Context, arena *ntn.Arena) (_ *Output, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(filter.config.Thresholds) == 0 {
		return nil, Error.New("no thresholds configured")
	}

	limiter := sync2.NewLimiter(filter.config.concurrency())
	defer limiter.Wait()

	var mu sync.Mutex
	perLayer := make(map[int]map[ntn.Constellation][]SatelliteLayer)
	for _, threshold := range filter.config.Thresholds {
		perLayer[threshold] = make(map[ntn.Constellation][]SatelliteLayer)
	}

	for _, id := range arena.All() {
		id := id
		started := limiter.Go(ctx, func() {
			sat := arena.Get(id)
			for _, threshold := range filter.config.Thresholds {
				layer, ok := filterSatellite(id, sat, threshold)
				if !ok {
					continue
				}
				mu.Lock()
				perLayer[threshold][sat.Constellation] = append(perLayer[threshold][sat.Constellation], layer)
				mu.Unlock()
			}
		})
		if !started {
			return nil, Error.Wrap(ctx.Err())
		}
	}
	limiter.Wait()

	output := &Output{}
	thresholds := append([]int(nil), filter.config.Thresholds...)
	sort.Ints(thresholds)
	for _, threshold := range thresholds {
		for _, constellation := range []ntn.Constellation{
			ntn.ConstellationStarlink, ntn.ConstellationOneWeb, ntn.ConstellationOther,
		} {
			sats := perLayer[threshold][constellation]
			if len(sats) == 0 {
				continue
			}
			sort.Slice(sats, func(i, j int) bool {
				return sats[i].Satellite < sats[j].Satellite
			})
			output.Layers = append(output.Layers, Layer{
				ThresholdDeg:  threshold,
				Constellation: constellation,
				Satellites:    sats,
			})
		}
	}

	for i := range output.Layers {
		layer := &output.Layers[i]
		mon.IntVal("elevation_layer_satellites",
			monkit.NewSeriesTag("threshold", strconv.Itoa(layer.ThresholdDeg)),
			monkit.NewSeriesTag("constellation", layer.Constellation.String()),
		).Observe(int64(len(layer.Satellites)))
	}

	filter.log.Info("layered elevation filtering complete",
		zap.Int("layers", len(output.Layers)),
		zap.Ints("thresholds", thresholds))
	return output, nil
}

// filterSatellite keeps samples with visible && elevation >= threshold.
// Threshold comparison is inclusive. Satellites below the qualifying sample
// floor are dropped for this threshold only.
func filterSatellite(id ntn.SatelliteID, sat *ntn.Satellite, thresholdDeg int) (SatelliteLayer, bool) {
	threshold := float64(thresholdDeg)

	var kept []ntn.PositionSample
	minEl, maxEl, sumEl := math.MaxFloat64, -math.MaxFloat64, 0.0
	for i := range sat.Samples {
		s := &sat.Samples[i]
		if !s.Visible || s.ElevationDeg < threshold {
			continue
		}
		kept = append(kept, *s)
		if s.ElevationDeg < minEl {
			minEl = s.ElevationDeg
		}
		if s.ElevationDeg > maxEl {
			maxEl = s.ElevationDeg
		}
		sumEl += s.ElevationDeg
	}
	if len(kept) < minQualifyingSamples {
		return SatelliteLayer{}, false
	}

	return SatelliteLayer{
		Satellite: id,
		Stats: Stats{
			SatelliteName: sat.Name,
			Constellation: sat.Constellation.String(),
			ThresholdDeg:  thresholdDeg,
			MinElevation:  minEl,
			MaxElevation:  maxEl,
			AvgElevation:  sumEl / float64(len(kept)),
			FilteredCount: len(kept),
			TotalCount:    len(sat.Samples),
		},
		Samples: kept,
		Windows: deriveWindows(id, sat, kept),
	}, true
}

// deriveWindows groups consecutive qualifying samples into coverage windows.
// Samples more than maxWindowGap apart start a new window.
const maxWindowGap = 90 * time.Second

func deriveWindows(id ntn.SatelliteID, sat *ntn.Satellite, kept []ntn.PositionSample) []ntn.CoverageWindow {
	var windows []ntn.CoverageWindow

	flush := func(run []ntn.PositionSample) {
		// A window needs at least two samples so AOS strictly precedes LOS.
		if len(run) < 2 {
			return
		}
		maxEl, sumRSRP := -math.MaxFloat64, 0.0
		for i := range run {
			if run[i].ElevationDeg > maxEl {
				maxEl = run[i].ElevationDeg
			}
			sumRSRP += physics.RSRP(sat.Name, sat.Constellation, run[i].ElevationDeg)
		}
		avgRSRP := sumRSRP / float64(len(run))
		windows = append(windows, ntn.CoverageWindow{
			Satellite:       id,
			SatelliteName:   sat.Name,
			AOS:             run[0].Time,
			LOS:             run[len(run)-1].Time,
			MaxElevationDeg: maxEl,
			AvgRSRPDBm:      avgRSRP,
			QualityScore:    windowQuality(maxEl, avgRSRP),
		})
	}

	runStart := 0
	for i := 1; i <= len(kept); i++ {
		if i == len(kept) || kept[i].Time.Sub(kept[i-1].Time) > maxWindowGap {
			flush(kept[runStart:i])
			runStart = i
		}
	}
	return windows
}

// windowQuality maps max elevation and average RSRP into [0, 1].
func windowQuality(maxElevationDeg, avgRSRPDBm float64) float64 {
	elevationTerm := maxElevationDeg / 90
	if elevationTerm > 1 {
		elevationTerm = 1
	}
	// -120 dBm or worse scores 0, -80 dBm or better scores 1.
	signalTerm := (avgRSRPDBm + 120) / 40
	if signalTerm < 0 {
		signalTerm = 0
	}
	if signalTerm > 1 {
		signalTerm = 1
	}
	return 0.5*elevationTerm + 0.5*signalTerm
}
