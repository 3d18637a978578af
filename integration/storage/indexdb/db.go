// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package indexdb implements the structured half of the hybrid storage:
// satellite metadata, per-stage processing summaries, signal statistics and
// handover event summaries in PostgreSQL. The bulk timeseries lives in the
// file-based bulk store; this database only ever carries the index.
package indexdb

import (
	"context"

	_ "github.com/jackc/pgx/v5/stdlib" // registers pgx as a tagsql driver.
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/private/dbutil"
	"storj.io/private/dbutil/pgutil"
	"storj.io/private/tagsql"
)

var (
	// Error is the default indexdb errs class.
	Error = errs.Class("indexdb")

	mon = monkit.Package()
)

// Config contains configurable values for the index store.
type Config struct {
	URL       string `help:"postgres connection string for the index store" default:"postgres://postgres@localhost/ntn?sslmode=disable"`
	BatchSize int    `help:"rows per batched insert flush" default:"100"`
}

// BatchOrDefault returns the configured batch size, floored at 1.
func (config Config) BatchOrDefault() int {
	if config.BatchSize > 0 {
		return config.BatchSize
	}
	return 100
}

// DB wraps the index store connection. All writes go through a single
// writer; the integrator never issues concurrent writes to the same table.
type DB struct {
	log     *zap.Logger
	db      tagsql.DB
	connstr string
	impl    dbutil.Implementation
	batch   int
}

// Open connects to the index store.
func Open(ctx context.Context, log *zap.Logger, config Config) (*DB, error) {
	_, _, impl, err := dbutil.SplitConnStr(config.URL)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if impl != dbutil.Postgres && impl != dbutil.Cockroach {
		return nil, Error.New("unsupported implementation: %s", config.URL)
	}

	connstr, err := pgutil.CheckApplicationName(config.URL, "ntn-pipeline")
	if err != nil {
		return nil, Error.Wrap(err)
	}

	rawdb, err := tagsql.Open(ctx, "pgx", connstr)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	dbutil.Configure(ctx, rawdb, "indexdb", mon)

	db := &DB{
		log:     log,
		db:      rawdb,
		connstr: connstr,
		impl:    impl,
		batch:   config.BatchOrDefault(),
	}
	log.Debug("connected to index store", zap.String("db source", connstr))
	return db, nil
}

// Ping checks whether the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return Error.Wrap(db.db.PingContext(ctx))
}

// Close releases the connection.
func (db *DB) Close() error {
	return Error.Wrap(db.db.Close())
}

// Init creates the index store schema when it does not exist yet.
func (db *DB) Init(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = db.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS satellite_index (
			satellite_id     text PRIMARY KEY,
			constellation    text NOT NULL,
			norad_id         bigint,
			total_points     bigint NOT NULL,
			visible_points   bigint NOT NULL,
			visibility_ratio double precision NOT NULL
		);
		CREATE TABLE IF NOT EXISTS processing_summary (
			id              serial PRIMARY KEY,
			constellation   text NOT NULL,
			stage           text NOT NULL,
			total_sats      bigint NOT NULL,
			retention_rate  double precision NOT NULL,
			processing_time double precision NOT NULL,
			size_mb         double precision NOT NULL
		);
		CREATE TABLE IF NOT EXISTS signal_quality_statistics (
			satellite_id  text PRIMARY KEY,
			constellation text NOT NULL,
			min_rsrp_dbm  double precision NOT NULL,
			max_rsrp_dbm  double precision NOT NULL,
			avg_rsrp_dbm  double precision NOT NULL
		);
		CREATE TABLE IF NOT EXISTS handover_events_summary (
			id             serial PRIMARY KEY,
			event_type     text NOT NULL,
			constellation  text NOT NULL,
			event_count    bigint NOT NULL,
			trigger_count  bigint NOT NULL,
			evaluate_count bigint NOT NULL
		);
		CREATE TABLE IF NOT EXISTS satellite_metadata (
			satellite_id       text PRIMARY KEY,
			semi_major_axis_km double precision NOT NULL,
			eccentricity       double precision NOT NULL,
			inclination_deg    double precision NOT NULL,
			raan_deg           double precision NOT NULL,
			mean_anomaly_deg   double precision NOT NULL,
			epoch              timestamptz NOT NULL
		);
	`)
	return Error.Wrap(err)
}

// DropSchema removes every index store table. Used between test runs.
func (db *DB) DropSchema(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = db.db.ExecContext(ctx, `
		DROP TABLE IF EXISTS satellite_index;
		DROP TABLE IF EXISTS processing_summary;
		DROP TABLE IF EXISTS signal_quality_statistics;
		DROP TABLE IF EXISTS handover_events_summary;
		DROP TABLE IF EXISTS satellite_metadata;
	`)
	return Error.Wrap(err)
}
