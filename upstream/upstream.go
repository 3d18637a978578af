// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package upstream loads the stage 4 artifacts (per-constellation enhanced
// animation JSON) into the satellite arena and records the TLE manifest.
//
// The loader treats upstream data as authoritative: it never synthesizes
// samples and rejects files whose shape violates the artifact schema.
package upstream

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
)

var (
	// Error is the default upstream errs class.
	Error = errs.Class("upstream")
	// ErrInputUnavailable marks a missing or unreadable upstream file.
	ErrInputUnavailable = errs.Class("input unavailable")
	// ErrSchema marks an upstream file whose structure fails validation.
	ErrSchema = errs.Class("schema violation")

	mon = monkit.Package()
)

// Config contains configurable values for the upstream loader.
type Config struct {
	InputDir string `help:"directory containing the stage 4 artifacts" default:"./data"`
	TLEDir   string `help:"directory containing raw TLE files for the run manifest" default:"./tle_data"`
}

// ConstellationReport summarizes what was loaded for one constellation.
type ConstellationReport struct {
	Constellation  string    `json:"constellation"`
	File           string    `json:"file"`
	SatelliteCount int       `json:"satellite_count"`
	SampleCount    int       `json:"sample_count"`
	TimeRangeStart time.Time `json:"time_range_start"`
	TimeRangeEnd   time.Time `json:"time_range_end"`
	Missing        bool      `json:"missing"`
}

// Report is the outcome of a full upstream load.
type Report struct {
	Constellations map[string]*ConstellationReport `json:"constellations"`
	TLEChecksum    string                          `json:"tle_checksum,omitempty"`
}

// Loader reads upstream artifacts into an arena.
type Loader struct {
	log    *zap.Logger
	config Config
}

// NewLoader creates an upstream loader.
func NewLoader(log *zap.Logger, config Config) *Loader {
	return &Loader{log: log, config: config}
}

// artifact files emitted by stage 4, one per constellation.
var artifactFiles = map[ntn.Constellation]string{
	ntn.ConstellationStarlink: "animation_enhanced_starlink.json",
	ntn.ConstellationOneWeb:   "animation_enhanced_oneweb.json",
}

// Load reads both constellation artifacts in parallel and fills a fresh
// arena. A single missing constellation is a partial failure: it is logged,
// marked in the report and the run continues. Both missing is fatal.
func (loader *Loader) Load(ctx context.Context) (_ *ntn.Arena, _ *Report, err error) {
	defer mon.Task()(&ctx)(&err)

	type loaded struct {
		constellation ntn.Constellation
		satellites    []ntn.Satellite
		report        *ConstellationReport
	}

	results := make([]loaded, 0, len(artifactFiles))
	var group errgroup.Group
	resultCh := make(chan loaded, len(artifactFiles))

	for constellation, file := range artifactFiles {
		constellation, file := constellation, file
		group.Go(func() error {
			path := filepath.Join(loader.config.InputDir, file)
			satellites, report, err := loader.loadFile(ctx, constellation, path)
			if err != nil {
				if ErrInputUnavailable.Has(err) {
					loader.log.Warn("constellation artifact missing, continuing without it",
						zap.String("constellation", constellation.String()),
						zap.String("path", path),
						zap.Error(err))
					resultCh <- loaded{constellation: constellation, report: &ConstellationReport{
						Constellation: constellation.String(),
						File:          file,
						Missing:       true,
					}}
					return nil
				}
				return err
			}
			report.File = file
			resultCh <- loaded{constellation: constellation, satellites: satellites, report: report}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	close(resultCh)
	for r := range resultCh {
		results = append(results, r)
	}

	report := &Report{Constellations: make(map[string]*ConstellationReport)}
	total := 0
	for _, r := range results {
		report.Constellations[r.constellation.String()] = r.report
		total += len(r.satellites)
	}
	if total == 0 {
		return nil, nil, ErrInputUnavailable.New("no upstream constellation data under %q", loader.config.InputDir)
	}

	arena := ntn.NewArena(total)
	// Deterministic arena order: Starlink block first, then OneWeb.
	for _, constellation := range []ntn.Constellation{ntn.ConstellationStarlink, ntn.ConstellationOneWeb} {
		for _, r := range results {
			if r.constellation != constellation {
				continue
			}
			for i := range r.satellites {
				if _, err := arena.Add(r.satellites[i]); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	mon.IntVal("upstream_satellites_loaded").Observe(int64(arena.Len()))
	loader.log.Info("upstream load complete",
		zap.Int("satellites", arena.Len()),
		zap.Int("constellations", len(report.Constellations)))
	return arena, report, nil
}

func (loader *Loader) loadFile(ctx context.Context, constellation ntn.Constellation, path string) (_ []ntn.Satellite, _ *ConstellationReport, err error) {
	defer mon.Task()(&ctx)(&err)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, ErrInputUnavailable.Wrap(err)
	}

	var file artifactFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, nil, ErrSchema.New("%s: %v", path, err)
	}
	if len(file.Satellites) == 0 {
		return nil, nil, ErrSchema.New("%s: artifact contains no satellites", path)
	}

	report := &ConstellationReport{Constellation: constellation.String()}
	satellites := make([]ntn.Satellite, 0, len(file.Satellites))
	for _, name := range sortedKeys(file.Satellites) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		sat, err := convertSatellite(name, constellation, file.Satellites[name])
		if err != nil {
			return nil, nil, err
		}
		if err := sat.ValidateSamples(); err != nil {
			return nil, nil, ErrSchema.Wrap(err)
		}
		report.SampleCount += len(sat.Samples)
		if first, last := sat.TimeRange(); !first.IsZero() {
			if report.TimeRangeStart.IsZero() || first.Before(report.TimeRangeStart) {
				report.TimeRangeStart = first
			}
			if last.After(report.TimeRangeEnd) {
				report.TimeRangeEnd = last
			}
		}
		satellites = append(satellites, sat)
	}
	report.SatelliteCount = len(satellites)
	return satellites, report, nil
}
