// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package indexdb

import (
	"context"
	"time"

	"storj.io/private/dbutil/pgutil"
)

// SatelliteIndexRow is one row of the satellite_index table.
type SatelliteIndexRow struct {
	SatelliteID     string
	Constellation   string
	NoradID         int64
	TotalPoints     int64
	VisiblePoints   int64
	VisibilityRatio float64
}

// ProcessingSummaryRow is one row of the processing_summary table.
type ProcessingSummaryRow struct {
	Constellation  string
	Stage          string
	TotalSats      int64
	RetentionRate  float64
	ProcessingTime float64
	SizeMB         float64
}

// SignalStatisticsRow is one row of the signal_quality_statistics table.
type SignalStatisticsRow struct {
	SatelliteID   string
	Constellation string
	MinRSRPDBm    float64
	MaxRSRPDBm    float64
	AvgRSRPDBm    float64
}

// HandoverSummaryRow is one row of the handover_events_summary table.
type HandoverSummaryRow struct {
	EventType     string
	Constellation string
	EventCount    int64
	TriggerCount  int64
	EvaluateCount int64
}

// SatelliteMetadataRow is one row of the satellite_metadata table.
type SatelliteMetadataRow struct {
	SatelliteID     string
	SemiMajorAxisKm float64
	Eccentricity    float64
	InclinationDeg  float64
	RAANDeg         float64
	MeanAnomalyDeg  float64
	Epoch           time.Time
}

// InsertSatelliteIndex batch-inserts index rows, flushing at the configured
// batch size.
func (db *DB) InsertSatelliteIndex(ctx context.Context, rows []SatelliteIndexRow) (err error) {
	defer mon.Task()(&ctx)(&err)

	for start := 0; start < len(rows); start += db.batch {
		end := start + db.batch
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		ids := make([]string, len(chunk))
		constellations := make([]string, len(chunk))
		noradIDs := make([]int64, len(chunk))
		totals := make([]int64, len(chunk))
		visibles := make([]int64, len(chunk))
		ratios := make([]float64, len(chunk))
		for i, row := range chunk {
			ids[i] = row.SatelliteID
			constellations[i] = row.Constellation
			noradIDs[i] = row.NoradID
			totals[i] = row.TotalPoints
			visibles[i] = row.VisiblePoints
			ratios[i] = row.VisibilityRatio
		}

		_, err = db.db.ExecContext(ctx, `
			INSERT INTO satellite_index (satellite_id, constellation, norad_id, total_points, visible_points, visibility_ratio)
			SELECT unnest($1::text[]), unnest($2::text[]), unnest($3::int8[]), unnest($4::int8[]), unnest($5::int8[]), unnest($6::float8[])
			ON CONFLICT (satellite_id) DO UPDATE SET
				total_points = EXCLUDED.total_points,
				visible_points = EXCLUDED.visible_points,
				visibility_ratio = EXCLUDED.visibility_ratio
		`,
			pgutil.TextArray(ids),
			pgutil.TextArray(constellations),
			pgutil.Int8Array(noradIDs),
			pgutil.Int8Array(totals),
			pgutil.Int8Array(visibles),
			pgutil.Float8Array(ratios),
		)
		if err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

// InsertProcessingSummary appends one stage summary row.
func (db *DB) InsertProcessingSummary(ctx context.Context, row ProcessingSummaryRow) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = db.db.ExecContext(ctx, `
		INSERT INTO processing_summary (constellation, stage, total_sats, retention_rate, processing_time, size_mb)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, row.Constellation, row.Stage, row.TotalSats, row.RetentionRate, row.ProcessingTime, row.SizeMB)
	return Error.Wrap(err)
}

// InsertSignalStatistics batch-inserts signal statistics rows.
func (db *DB) InsertSignalStatistics(ctx context.Context, rows []SignalStatisticsRow) (err error) {
	defer mon.Task()(&ctx)(&err)

	for start := 0; start < len(rows); start += db.batch {
		end := start + db.batch
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		ids := make([]string, len(chunk))
		constellations := make([]string, len(chunk))
		mins := make([]float64, len(chunk))
		maxs := make([]float64, len(chunk))
		avgs := make([]float64, len(chunk))
		for i, row := range chunk {
			ids[i] = row.SatelliteID
			constellations[i] = row.Constellation
			mins[i] = row.MinRSRPDBm
			maxs[i] = row.MaxRSRPDBm
			avgs[i] = row.AvgRSRPDBm
		}

		_, err = db.db.ExecContext(ctx, `
			INSERT INTO signal_quality_statistics (satellite_id, constellation, min_rsrp_dbm, max_rsrp_dbm, avg_rsrp_dbm)
			SELECT unnest($1::text[]), unnest($2::text[]), unnest($3::float8[]), unnest($4::float8[]), unnest($5::float8[])
			ON CONFLICT (satellite_id) DO UPDATE SET
				min_rsrp_dbm = EXCLUDED.min_rsrp_dbm,
				max_rsrp_dbm = EXCLUDED.max_rsrp_dbm,
				avg_rsrp_dbm = EXCLUDED.avg_rsrp_dbm
		`,
			pgutil.TextArray(ids),
			pgutil.TextArray(constellations),
			pgutil.Float8Array(mins),
			pgutil.Float8Array(maxs),
			pgutil.Float8Array(avgs),
		)
		if err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

// InsertHandoverSummary appends per-kind handover event summaries.
func (db *DB) InsertHandoverSummary(ctx context.Context, rows []HandoverSummaryRow) (err error) {
	defer mon.Task()(&ctx)(&err)

	for _, row := range rows {
		_, err = db.db.ExecContext(ctx, `
			INSERT INTO handover_events_summary (event_type, constellation, event_count, trigger_count, evaluate_count)
			VALUES ($1, $2, $3, $4, $5)
		`, row.EventType, row.Constellation, row.EventCount, row.TriggerCount, row.EvaluateCount)
		if err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

// InsertSatelliteMetadata batch-inserts orbital element metadata.
func (db *DB) InsertSatelliteMetadata(ctx context.Context, rows []SatelliteMetadataRow) (err error) {
	defer mon.Task()(&ctx)(&err)

	for start := 0; start < len(rows); start += db.batch {
		end := start + db.batch
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		ids := make([]string, len(chunk))
		axes := make([]float64, len(chunk))
		eccs := make([]float64, len(chunk))
		incs := make([]float64, len(chunk))
		raans := make([]float64, len(chunk))
		anomalies := make([]float64, len(chunk))
		epochs := make([]time.Time, len(chunk))
		for i, row := range chunk {
			ids[i] = row.SatelliteID
			axes[i] = row.SemiMajorAxisKm
			eccs[i] = row.Eccentricity
			incs[i] = row.InclinationDeg
			raans[i] = row.RAANDeg
			anomalies[i] = row.MeanAnomalyDeg
			epochs[i] = row.Epoch
		}

		_, err = db.db.ExecContext(ctx, `
			INSERT INTO satellite_metadata (satellite_id, semi_major_axis_km, eccentricity, inclination_deg, raan_deg, mean_anomaly_deg, epoch)
			SELECT unnest($1::text[]), unnest($2::float8[]), unnest($3::float8[]), unnest($4::float8[]), unnest($5::float8[]), unnest($6::float8[]), unnest($7::timestamptz[])
			ON CONFLICT (satellite_id) DO NOTHING
		`,
			pgutil.TextArray(ids),
			pgutil.Float8Array(axes),
			pgutil.Float8Array(eccs),
			pgutil.Float8Array(incs),
			pgutil.Float8Array(raans),
			pgutil.Float8Array(anomalies),
			pgutil.TimestampTZArray(epochs),
		)
		if err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

// Totals returns the row count and the sum of visible points across the
// satellite index, for the round-trip integrity check against the bulk store.
func (db *DB) Totals(ctx context.Context) (rows int64, visiblePoints int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = db.db.QueryRowContext(ctx, `
		SELECT count(*), coalesce(sum(visible_points), 0) FROM satellite_index
	`).Scan(&rows, &visiblePoints)
	return rows, visiblePoints, Error.Wrap(err)
}
