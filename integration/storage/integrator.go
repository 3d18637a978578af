// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package storage implements the hybrid storage integrator: satellite
// metadata and statistics go to the structured index store while the full
// timeseries goes to the file-based bulk store. The index store is
// optional at runtime; when it is unreachable the integrator degrades to
// volume-only mode instead of blocking the pipeline.
package storage

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/memory"

	"github.com/cedarwud/ntn-stack-sub001/integration/handover"
	"github.com/cedarwud/ntn-stack-sub001/integration/storage/bulkstore"
	"github.com/cedarwud/ntn-stack-sub001/integration/storage/indexdb"
	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/physics"
)

var (
	// Error is the default storage errs class.
	Error = errs.Class("storage")

	mon = monkit.Package()
)

// Balance status values recorded in the final artifact.
const (
	BalanceHybrid     = "hybrid"
	BalanceVolumeOnly = "volume_only"
)

// IndexStore is the structured half of the hybrid storage.
type IndexStore interface {
	Init(ctx context.Context) error
	InsertSatelliteIndex(ctx context.Context, rows []indexdb.SatelliteIndexRow) error
	InsertSatelliteMetadata(ctx context.Context, rows []indexdb.SatelliteMetadataRow) error
	InsertSignalStatistics(ctx context.Context, rows []indexdb.SignalStatisticsRow) error
	InsertHandoverSummary(ctx context.Context, rows []indexdb.HandoverSummaryRow) error
	InsertProcessingSummary(ctx context.Context, row indexdb.ProcessingSummaryRow) error
	Totals(ctx context.Context) (rows, visiblePoints int64, err error)
	Close() error
}

// BulkWriter is the bulk half of the hybrid storage.
type BulkWriter interface {
	PurgePreviousRuns() error
	WriteTimeseries(ctx context.Context, constellation string, payload interface{}) (bulkstore.Artifact, error)
	WriteEvents(ctx context.Context, kind string, payload interface{}) (bulkstore.Artifact, error)
}

// BalanceReport describes how bytes split between the two stores.
type BalanceReport struct {
	Status           string      `json:"status"`
	IndexBytes       memory.Size `json:"index_bytes"`
	BulkBytes        memory.Size `json:"bulk_bytes"`
	IndexShare       float64     `json:"index_share"`
	TargetIndexShare float64     `json:"target_index_share"`
}

// Result is the outcome of one integration pass.
type Result struct {
	IndexRows              int                  `json:"index_rows"`
	VisiblePointsIndexed   int64                `json:"visible_points_indexed"`
	SuccessfullyIntegrated int                  `json:"successfully_integrated"`
	Artifacts              []bulkstore.Artifact `json:"artifacts"`
	Balance                BalanceReport        `json:"storage_balance"`
	PostgresConnected      bool                 `json:"postgresql_connected"`
	RoundTripVerified      bool                 `json:"round_trip_verified"`
}

// Integrator splits upstream data between the index and bulk stores.
type Integrator struct {
	log   *zap.Logger
	index IndexStore // nil means the operator disabled the index store
	bulk  BulkWriter
}

// NewIntegrator creates a storage integrator. index may be nil.
func NewIntegrator(log *zap.Logger, index IndexStore, bulk BulkWriter) *Integrator {
	return &Integrator{log: log, index: index, bulk: bulk}
}

// satelliteBlob is the bulk-store view of one satellite.
type satelliteBlob struct {
	SatelliteID        string               `json:"satellite_id"`
	Constellation      string               `json:"constellation"`
	NoradID            int                  `json:"norad_id,omitempty"`
	TotalPoints        int                  `json:"total_points"`
	VisiblePoints      int                  `json:"visible_points"`
	PositionTimeseries []ntn.PositionSample `json:"position_timeseries"`
	SignalTimeline     []signalPoint        `json:"signal_timeline"`
}

type signalPoint struct {
	Time      time.Time `json:"timestamp"`
	RSRPDBm   float64   `json:"rsrp_dbm"`
	Elevation float64   `json:"elevation_deg"`
}

// Integrate writes both halves of the hybrid storage and verifies the
// round trip. Index store failures degrade to volume-only mode: they are
// logged and recorded in the balance report, never propagated.
func (integrator *Integrator) Integrate(ctx context.Context, arena *ntn.Arena, events *handover.Output) (_ *Result, err error) {
	defer mon.Task()(&ctx)(&err)
	start := time.Now()

	if err := integrator.bulk.PurgePreviousRuns(); err != nil {
		return nil, Error.Wrap(err)
	}

	result := &Result{}

	// Bulk store first: it is the authoritative copy.
	var bulkVisible int64
	perConstellation := map[ntn.Constellation][]satelliteBlob{}
	for _, id := range arena.All() {
		sat := arena.Get(id)
		blob := satelliteBlob{
			SatelliteID:        sat.Name,
			Constellation:      sat.Constellation.String(),
			NoradID:            sat.NoradID,
			TotalPoints:        len(sat.Samples),
			VisiblePoints:      sat.VisibleCount(),
			PositionTimeseries: sat.Samples,
		}
		for i := range sat.Samples {
			s := &sat.Samples[i]
			if !s.Visible {
				continue
			}
			blob.SignalTimeline = append(blob.SignalTimeline, signalPoint{
				Time:      s.Time,
				RSRPDBm:   physics.RSRP(sat.Name, sat.Constellation, s.ElevationDeg),
				Elevation: s.ElevationDeg,
			})
		}
		bulkVisible += int64(blob.VisiblePoints)
		perConstellation[sat.Constellation] = append(perConstellation[sat.Constellation], blob)
	}

	var bulkBytes int64
	for _, constellation := range []ntn.Constellation{
		ntn.ConstellationStarlink, ntn.ConstellationOneWeb, ntn.ConstellationOther,
	} {
		blobs := perConstellation[constellation]
		if len(blobs) == 0 {
			continue
		}
		sort.Slice(blobs, func(i, j int) bool { return blobs[i].SatelliteID < blobs[j].SatelliteID })
		artifact, err := integrator.bulk.WriteTimeseries(ctx, constellation.String(), map[string]interface{}{
			"constellation":   constellation.String(),
			"satellite_count": len(blobs),
			"satellites":      blobs,
		})
		if err != nil {
			return nil, Error.Wrap(err)
		}
		result.Artifacts = append(result.Artifacts, artifact)
		bulkBytes += artifact.Bytes
		result.SuccessfullyIntegrated += len(blobs)
	}

	for _, kind := range []ntn.EventKind{ntn.EventA4, ntn.EventA5, ntn.EventD2} {
		kindEvents := events.EventsOfKind(kind)
		artifact, err := integrator.bulk.WriteEvents(ctx, kind.String(), map[string]interface{}{
			"event_type": kind.String(),
			"count":      len(kindEvents),
			"events":     kindEvents,
		})
		if err != nil {
			return nil, Error.Wrap(err)
		}
		result.Artifacts = append(result.Artifacts, artifact)
		bulkBytes += artifact.Bytes
	}

	// Index store second: failures here must never block the pipeline.
	indexBytes := int64(0)
	if integrator.index != nil {
		indexBytes, err = integrator.writeIndex(ctx, arena, events, bulkVisible, result, start)
		if err != nil {
			integrator.log.Warn("index store unavailable, degrading to volume-only mode", zap.Error(err))
			result.PostgresConnected = false
			result.RoundTripVerified = false
			indexBytes = 0
		}
	}

	result.VisiblePointsIndexed = bulkVisible
	result.Balance = balanceReport(result.IndexRows, indexBytes, bulkBytes, result.PostgresConnected)

	mon.IntVal("storage_bulk_bytes").Observe(bulkBytes)
	mon.IntVal("storage_index_rows").Observe(int64(result.IndexRows))
	integrator.log.Info("hybrid storage integration complete",
		zap.Int("index_rows", result.IndexRows),
		zap.String("balance_status", result.Balance.Status),
		zap.Bool("postgresql_connected", result.PostgresConnected))
	return result, nil
}

func (integrator *Integrator) writeIndex(ctx context.Context, arena *ntn.Arena, events *handover.Output, bulkVisible int64, result *Result, start time.Time) (indexBytes int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := integrator.index.Init(ctx); err != nil {
		return 0, err
	}

	var indexRows []indexdb.SatelliteIndexRow
	var metadataRows []indexdb.SatelliteMetadataRow
	var signalRows []indexdb.SignalStatisticsRow
	for _, id := range arena.All() {
		sat := arena.Get(id)
		indexRows = append(indexRows, indexdb.SatelliteIndexRow{
			SatelliteID:     sat.Name,
			Constellation:   sat.Constellation.String(),
			NoradID:         int64(sat.NoradID),
			TotalPoints:     int64(len(sat.Samples)),
			VisiblePoints:   int64(sat.VisibleCount()),
			VisibilityRatio: sat.VisibilityRatio(),
		})
		metadataRows = append(metadataRows, indexdb.SatelliteMetadataRow{
			SatelliteID:     sat.Name,
			SemiMajorAxisKm: sat.Elements.SemiMajorAxisKm,
			Eccentricity:    sat.Elements.Eccentricity,
			InclinationDeg:  sat.Elements.InclinationDeg,
			RAANDeg:         sat.Elements.RAANDeg,
			MeanAnomalyDeg:  sat.Elements.MeanAnomalyDeg,
			Epoch:           sat.Elements.Epoch,
		})
		if stats, ok := signalStatistics(sat); ok {
			signalRows = append(signalRows, stats)
		}
	}

	if err := integrator.index.InsertSatelliteIndex(ctx, indexRows); err != nil {
		return 0, err
	}
	if err := integrator.index.InsertSatelliteMetadata(ctx, metadataRows); err != nil {
		return 0, err
	}
	if err := integrator.index.InsertSignalStatistics(ctx, signalRows); err != nil {
		return 0, err
	}
	if err := integrator.index.InsertHandoverSummary(ctx, handoverSummaries(arena, events)); err != nil {
		return 0, err
	}
	for _, row := range processingSummaries(arena, result.Artifacts, time.Since(start).Seconds()) {
		if err := integrator.index.InsertProcessingSummary(ctx, row); err != nil {
			return 0, err
		}
	}

	rows, visible, err := integrator.index.Totals(ctx)
	if err != nil {
		return 0, err
	}

	result.IndexRows = int(rows)
	result.PostgresConnected = true
	// Round-trip integrity: the index must account for exactly the visible
	// points present in the bulk store. Tolerance is zero.
	result.RoundTripVerified = visible == bulkVisible
	if !result.RoundTripVerified {
		integrator.log.Warn("index/bulk round-trip mismatch",
			zap.Int64("index_visible_points", visible),
			zap.Int64("bulk_visible_points", bulkVisible))
	}

	return estimateIndexBytes(len(indexRows), len(signalRows), len(metadataRows)), nil
}

// signalStatistics aggregates RSRP over the visible samples of a satellite.
func signalStatistics(sat *ntn.Satellite) (indexdb.SignalStatisticsRow, bool) {
	minRSRP, maxRSRP, sum := math.MaxFloat64, -math.MaxFloat64, 0.0
	count := 0
	for i := range sat.Samples {
		s := &sat.Samples[i]
		if !s.Visible {
			continue
		}
		rsrp := physics.RSRP(sat.Name, sat.Constellation, s.ElevationDeg)
		if rsrp < minRSRP {
			minRSRP = rsrp
		}
		if rsrp > maxRSRP {
			maxRSRP = rsrp
		}
		sum += rsrp
		count++
	}
	if count == 0 {
		return indexdb.SignalStatisticsRow{}, false
	}
	return indexdb.SignalStatisticsRow{
		SatelliteID:   sat.Name,
		Constellation: sat.Constellation.String(),
		MinRSRPDBm:    minRSRP,
		MaxRSRPDBm:    maxRSRP,
		AvgRSRPDBm:    sum / float64(count),
	}, true
}

// processingSummaries builds one summary row per populated constellation:
// satellite count, visible-point retention and the bulk artifact size.
func processingSummaries(arena *ntn.Arena, artifacts []bulkstore.Artifact, elapsedSeconds float64) []indexdb.ProcessingSummaryRow {
	sizes := map[string]int64{}
	for _, artifact := range artifacts {
		sizes[artifact.Name] = artifact.Bytes
	}

	var rows []indexdb.ProcessingSummaryRow
	for _, c := range []ntn.Constellation{ntn.ConstellationStarlink, ntn.ConstellationOneWeb} {
		ids := arena.ByConstellation(c)
		if len(ids) == 0 {
			continue
		}
		total, visible := 0, 0
		for _, id := range ids {
			sat := arena.Get(id)
			total += len(sat.Samples)
			visible += sat.VisibleCount()
		}
		row := indexdb.ProcessingSummaryRow{
			Constellation:  c.String(),
			Stage:          "data_integration",
			TotalSats:      int64(len(ids)),
			ProcessingTime: elapsedSeconds,
			SizeMB:         float64(sizes[c.String()+"_timeseries.json"]) / (1 << 20),
		}
		if total > 0 {
			row.RetentionRate = float64(visible) / float64(total)
		}
		rows = append(rows, row)
	}
	return rows
}

// handoverSummaries tallies events per (kind, serving constellation).
func handoverSummaries(arena *ntn.Arena, events *handover.Output) []indexdb.HandoverSummaryRow {
	type key struct {
		kind          ntn.EventKind
		constellation ntn.Constellation
	}
	counts := map[key]*indexdb.HandoverSummaryRow{}
	for i := range events.Events {
		e := &events.Events[i]
		k := key{e.Kind, arena.Get(e.Serving).Constellation}
		row, ok := counts[k]
		if !ok {
			row = &indexdb.HandoverSummaryRow{
				EventType:     e.Kind.String(),
				Constellation: k.constellation.String(),
			}
			counts[k] = row
		}
		row.EventCount++
		switch e.Decision {
		case ntn.DecisionTrigger:
			row.TriggerCount++
		case ntn.DecisionEvaluate:
			row.EvaluateCount++
		}
	}

	rows := make([]indexdb.HandoverSummaryRow, 0, len(counts))
	for _, row := range counts {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EventType != rows[j].EventType {
			return rows[i].EventType < rows[j].EventType
		}
		return rows[i].Constellation < rows[j].Constellation
	})
	return rows
}

// estimateIndexBytes approximates the structured-store footprint from row
// counts; the index store does not expose physical sizes portably.
func estimateIndexBytes(indexRows, signalRows, metadataRows int) int64 {
	return int64(indexRows)*96 + int64(signalRows)*72 + int64(metadataRows)*88
}

// balanceReport computes the index/bulk byte split against the adaptive
// target share: 15% for small runs, 20% for medium, 25% for large.
func balanceReport(indexRows int, indexBytes, bulkBytes int64, connected bool) BalanceReport {
	target := 0.15
	switch {
	case indexRows >= 10000:
		target = 0.25
	case indexRows >= 1000:
		target = 0.20
	}

	report := BalanceReport{
		Status:           BalanceVolumeOnly,
		IndexBytes:       memory.Size(indexBytes),
		BulkBytes:        memory.Size(bulkBytes),
		TargetIndexShare: target,
	}
	if connected {
		report.Status = BalanceHybrid
	}
	if total := indexBytes + bulkBytes; total > 0 {
		report.IndexShare = float64(indexBytes) / float64(total)
	}
	return report
}
