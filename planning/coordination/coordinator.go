// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package coordination performs temporal-spatial coordination between the
// constellations: it infers coverage windows from orbital periods, detects
// gaps and cross-constellation conflicts, applies the OneWeb phase offset
// and assigns complementary coverage roles.
package coordination

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/physics"
)

var (
	// Error is the default coordination errs class.
	Error = errs.Class("coordination")

	mon = monkit.Package()
)

// Coordination thresholds.
const (
	// VisibilityFraction is the share of an orbital period a LEO satellite
	// spends above the observer's horizon.
	VisibilityFraction = 0.30

	// CriticalGapMinutes marks a coverage gap as critical.
	CriticalGapMinutes = 2.0

	// SignificantOverlapMinutes marks a cross-constellation window overlap.
	SignificantOverlapMinutes = 5.0

	// AzimuthConflictDeg is the minimum azimuth separation between two
	// satellites covering at the same time.
	AzimuthConflictDeg = 15.0

	// OneWebPhaseOffsetDeg is added to OneWeb mean anomalies so OneWeb
	// windows interleave with Starlink windows.
	OneWebPhaseOffsetDeg = 30.0
)

// State tracks a satellite through the coordination pipeline.
type State int

// Coordination states. Integrated and Rejected are terminal.
const (
	StateCandidate State = iota
	StatePhaseAdjusted
	StateRoleAssigned
	StateIntegrated
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateCandidate:
		return "candidate"
	case StatePhaseAdjusted:
		return "phase_adjusted"
	case StateRoleAssigned:
		return "role_assigned"
	case StateIntegrated:
		return "integrated"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Role is a constellation coverage responsibility.
type Role struct {
	Name            string  `json:"name"`
	Responsibility  float64 `json:"responsibility"`
	ElevationMinDeg float64 `json:"elevation_min_deg"`
	ElevationMaxDeg float64 `json:"elevation_max_deg"`
}

// The two complementary roles: Starlink sweeps the low-elevation band as
// primary coverage, OneWeb fills gaps from the high-elevation band.
var (
	RolePrimaryCoverage = Role{Name: "primary_coverage", Responsibility: 0.70, ElevationMinDeg: 5, ElevationMaxDeg: 20}
	RoleGapFiller       = Role{Name: "gap_filler", Responsibility: 0.30, ElevationMinDeg: 20, ElevationMaxDeg: 90}
)

// RoleFor returns the role a constellation plays.
func RoleFor(c ntn.Constellation) Role {
	if c == ntn.ConstellationOneWeb {
		return RoleGapFiller
	}
	return RolePrimaryCoverage
}

// PlannedWindow is one inferred coverage window.
type PlannedWindow struct {
	Satellite     ntn.SatelliteID   `json:"-"`
	SatelliteName string            `json:"satellite_id"`
	Constellation ntn.Constellation `json:"-"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	AzimuthDeg    float64           `json:"azimuth_deg"`
}

// Gap is a stretch of a constellation's timeline with no planned window.
type Gap struct {
	Constellation ntn.Constellation `json:"-"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Minutes       float64           `json:"minutes"`
	Critical      bool              `json:"critical"`
}

// Overlap is a significant cross-constellation window overlap.
type Overlap struct {
	First           ntn.SatelliteID `json:"-"`
	Second          ntn.SatelliteID `json:"-"`
	Minutes         float64         `json:"minutes"`
	AzimuthConflict bool            `json:"azimuth_conflict"`
}

// Plan is the coordination outcome over one candidate set.
type Plan struct {
	Windows  []PlannedWindow
	Gaps     []Gap
	Overlaps []Overlap
	States   map[ntn.SatelliteID]State
	Roles    map[ntn.SatelliteID]Role
}

// CriticalGaps counts gaps longer than the critical threshold.
func (p *Plan) CriticalGaps() int {
	count := 0
	for i := range p.Gaps {
		if p.Gaps[i].Critical {
			count++
		}
	}
	return count
}

// Integrated returns the ids that reached the terminal integrated state,
// in ascending order.
func (p *Plan) Integrated() []ntn.SatelliteID {
	var ids []ntn.SatelliteID
	for id, state := range p.States {
		if state == StateIntegrated {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Coordinator runs the temporal-spatial coordination pass.
type Coordinator struct {
	log *zap.Logger
}

// NewCoordinator creates a coordinator.
func NewCoordinator(log *zap.Logger) *Coordinator {
	return &Coordinator{log: log}
}

// Coordinate walks every candidate through the coordination state machine
// and derives the constellation timelines.
func (coordinator *Coordinator) Coordinate(ctx context.Context, arena *ntn.Arena, members []ntn.SatelliteID) (_ *Plan, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(members) == 0 {
		return nil, Error.New("no candidates to coordinate")
	}

	plan := &Plan{
		States: make(map[ntn.SatelliteID]State, len(members)),
		Roles:  make(map[ntn.SatelliteID]Role, len(members)),
	}

	for _, id := range members {
		sat := arena.Get(id)
		plan.States[id] = StateCandidate

		meanAnomaly := sat.Elements.MeanAnomalyDeg
		if sat.Constellation == ntn.ConstellationOneWeb {
			meanAnomaly += OneWebPhaseOffsetDeg
			plan.States[id] = StatePhaseAdjusted
		}

		role := RoleFor(sat.Constellation)
		if !qualifiesForRole(sat, role) {
			plan.States[id] = StateRejected
			coordinator.log.Debug("candidate rejected, no qualifying role",
				zap.String("satellite", sat.Name),
				zap.String("role", role.Name))
			continue
		}
		plan.Roles[id] = role
		plan.States[id] = StateRoleAssigned

		plan.Windows = append(plan.Windows, inferWindow(id, sat, meanAnomaly))
		plan.States[id] = StateIntegrated
	}

	sort.Slice(plan.Windows, func(i, j int) bool {
		if !plan.Windows[i].Start.Equal(plan.Windows[j].Start) {
			return plan.Windows[i].Start.Before(plan.Windows[j].Start)
		}
		return plan.Windows[i].Satellite < plan.Windows[j].Satellite
	})

	plan.Gaps = detectGaps(plan.Windows)
	plan.Overlaps = detectOverlaps(plan.Windows)

	mon.IntVal("coordination_critical_gaps").Observe(int64(plan.CriticalGaps()))
	coordinator.log.Info("temporal-spatial coordination complete",
		zap.Int("candidates", len(members)),
		zap.Int("integrated", len(plan.Integrated())),
		zap.Int("gaps", len(plan.Gaps)),
		zap.Int("critical_gaps", plan.CriticalGaps()),
		zap.Int("overlaps", len(plan.Overlaps)))
	return plan, nil
}

// qualifiesForRole checks the satellite's peak elevation against its role's
// elevation band. A satellite that never climbs into its band cannot serve.
func qualifiesForRole(sat *ntn.Satellite, role Role) bool {
	for i := range sat.Samples {
		s := &sat.Samples[i]
		if s.Visible && s.ElevationDeg >= role.ElevationMinDeg {
			return true
		}
	}
	return false
}

// inferWindow derives a coverage window from the orbital period: the
// satellite covers the observer for VisibilityFraction of each revolution,
// phased by its (possibly offset) mean anomaly.
func inferWindow(id ntn.SatelliteID, sat *ntn.Satellite, meanAnomalyDeg float64) PlannedWindow {
	period := time.Duration(physics.OrbitalPeriodMinutes(sat.Elements.SemiMajorAxisKm) * float64(time.Minute))
	phase := normalizeDeg(meanAnomalyDeg) / 360.0
	start := sat.Elements.Epoch.Add(time.Duration(phase * float64(period)))
	return PlannedWindow{
		Satellite:     id,
		SatelliteName: sat.Name,
		Constellation: sat.Constellation,
		Start:         start,
		End:           start.Add(time.Duration(VisibilityFraction * float64(period))),
		AzimuthDeg:    meanAzimuth(sat),
	}
}

// meanAzimuth is the circular mean of azimuth over visible samples. With no
// visible samples the RAAN is used as a stand-in heading.
func meanAzimuth(sat *ntn.Satellite) float64 {
	sumSin, sumCos := 0.0, 0.0
	count := 0
	for i := range sat.Samples {
		s := &sat.Samples[i]
		if !s.Visible {
			continue
		}
		rad := s.AzimuthDeg * math.Pi / 180
		sumSin += math.Sin(rad)
		sumCos += math.Cos(rad)
		count++
	}
	if count == 0 {
		return normalizeDeg(sat.Elements.RAANDeg)
	}
	return normalizeDeg(math.Atan2(sumSin, sumCos) * 180 / math.Pi)
}

// detectGaps scans each constellation's window timeline for uncovered
// stretches. Windows must already be sorted by start time.
func detectGaps(windows []PlannedWindow) []Gap {
	latest := map[ntn.Constellation]time.Time{}
	var gaps []Gap
	for i := range windows {
		w := &windows[i]
		if end, ok := latest[w.Constellation]; ok && w.Start.After(end) {
			minutes := w.Start.Sub(end).Minutes()
			gaps = append(gaps, Gap{
				Constellation: w.Constellation,
				Start:         end,
				End:           w.Start,
				Minutes:       minutes,
				Critical:      minutes > CriticalGapMinutes,
			})
		}
		if end, ok := latest[w.Constellation]; !ok || w.End.After(end) {
			latest[w.Constellation] = w.End
		}
	}
	return gaps
}

// detectOverlaps finds cross-constellation pairs whose windows overlap for
// longer than the significance threshold, flagging azimuth conflicts.
func detectOverlaps(windows []PlannedWindow) []Overlap {
	var overlaps []Overlap
	for i := range windows {
		for j := i + 1; j < len(windows); j++ {
			a, b := &windows[i], &windows[j]
			if a.Constellation == b.Constellation {
				continue
			}
			if !b.Start.Before(a.End) {
				// Sorted by start: nothing later overlaps a either.
				break
			}
			end := a.End
			if b.End.Before(end) {
				end = b.End
			}
			minutes := end.Sub(b.Start).Minutes()
			if minutes <= SignificantOverlapMinutes {
				continue
			}
			overlaps = append(overlaps, Overlap{
				First:           a.Satellite,
				Second:          b.Satellite,
				Minutes:         minutes,
				AzimuthConflict: azimuthSeparation(a.AzimuthDeg, b.AzimuthDeg) < AzimuthConflictDeg,
			})
		}
	}
	return overlaps
}

// azimuthSeparation is the circular distance between two headings, in
// [0, 180].
func azimuthSeparation(a, b float64) float64 {
	diff := math.Abs(normalizeDeg(a) - normalizeDeg(b))
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

func normalizeDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
