// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package validation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/physics"
	"github.com/cedarwud/ntn-stack-sub001/planning/coverage"
)

// thresholds collects every tunable limit in one value so sample mode can
// loosen them uniformly.
type thresholds struct {
	overallPass       float64
	fieldCompleteness float64
	quality           float64
	highQualityRatio  float64
	qualityStdMax     float64
	coverageRate      float64
	maxShare          float64
	altitudeDiversity float64
	authenticRatio    float64
	standardRatio     float64
	reproducibility   float64
}

func defaultThresholds() thresholds {
	return thresholds{
		overallPass:       0.90,
		fieldCompleteness: 0.95,
		quality:           0.60,
		highQualityRatio:  0.30,
		qualityStdMax:     0.20,
		coverageRate:      coverage.TargetCoverageRate,
		maxShare:          0.85,
		altitudeDiversity: 0.30,
		authenticRatio:    0.95,
		standardRatio:     0.90,
		reproducibility:   0.85,
	}
}

// loosen relaxes the ratio thresholds by pp percentage points.
func (t thresholds) loosen(pp float64) thresholds {
	t.overallPass -= pp
	t.fieldCompleteness -= pp
	t.quality -= pp
	t.highQualityRatio -= pp
	t.coverageRate -= pp
	t.authenticRatio -= pp
	t.standardRatio -= pp
	t.reproducibility -= pp
	return t
}

// Final pool size band: both constellations at their minimum through both at
// their maximum.
const (
	finalPoolMin = ntn.StarlinkPoolMin + ntn.OneWebPoolMin
	finalPoolMax = ntn.StarlinkPoolMax + ntn.OneWebPoolMax
)

// Candidate pool size band, applied when no final configuration exists yet.
const (
	candidatePoolMin = 100
	candidatePoolMax = 250
)

func structureChecks(input *Input, t thresholds) []CheckResult {
	var checks []CheckResult

	if input.Pool != nil {
		size := input.Pool.Starlink.Count() + input.Pool.OneWeb.Count()
		checks = append(checks, CheckResult{
			Name:     "final_pool_size",
			Critical: true,
			Passed:   size >= finalPoolMin && size <= finalPoolMax,
			Value:    float64(size),
			Message:  fmt.Sprintf("pool size %d, allowed [%d,%d]", size, finalPoolMin, finalPoolMax),
		})
		checks = append(checks, CheckResult{
			Name:     "pool_id_uniqueness",
			Critical: true,
			Passed:   !input.Pool.Starlink.Intersects(input.Pool.OneWeb),
			Value:    1,
		})
	} else {
		size := input.Arena.Len()
		checks = append(checks, CheckResult{
			Name:     "candidate_pool_size",
			Critical: true,
			Passed:   size >= candidatePoolMin && size <= candidatePoolMax,
			Value:    float64(size),
			Message:  fmt.Sprintf("candidate pool %d, allowed [%d,%d]", size, candidatePoolMin, candidatePoolMax),
		})
	}

	complete := 0
	for _, id := range input.Arena.All() {
		sat := input.Arena.Get(id)
		if sat.Name != "" && len(sat.Samples) > 0 && !sat.Elements.Epoch.IsZero() {
			complete++
		}
	}
	ratio := ratioOf(complete, input.Arena.Len())
	checks = append(checks, CheckResult{
		Name:     "field_completeness",
		Critical: true,
		Passed:   ratio >= t.fieldCompleteness,
		Value:    ratio,
	})
	return checks
}

// satelliteQuality folds visibility and mean RSRP into [0,1].
func satelliteQuality(sat *ntn.Satellite) float64 {
	sum, count := 0.0, 0
	for i := range sat.Samples {
		s := &sat.Samples[i]
		if !s.Visible {
			continue
		}
		sum += physics.RSRP(sat.Name, sat.Constellation, s.ElevationDeg)
		count++
	}
	signal := 0.0
	if count > 0 {
		signal = clamp01((sum/float64(count) + 120) / 40)
	}
	visibility := clamp01(sat.VisibilityRatio() / 0.5)
	return 0.5*visibility + 0.5*signal
}

func qualityChecks(input *Input, t thresholds) []CheckResult {
	members := poolMembers(input)
	if len(members) == 0 {
		return []CheckResult{{Name: "quality_members", Critical: true, Passed: false, Message: "no satellites to score"}}
	}

	qualities := make([]float64, 0, len(members))
	minQuality, sum, high := math.MaxFloat64, 0.0, 0
	for _, id := range members {
		q := satelliteQuality(input.Arena.Get(id))
		qualities = append(qualities, q)
		sum += q
		if q < minQuality {
			minQuality = q
		}
		if q >= 0.8 {
			high++
		}
	}
	avg := sum / float64(len(qualities))

	variance := 0.0
	for _, q := range qualities {
		variance += (q - avg) * (q - avg)
	}
	sigma := math.Sqrt(variance / float64(len(qualities)))

	return []CheckResult{
		{Name: "avg_quality", Critical: true, Passed: avg >= t.quality, Value: avg},
		{Name: "min_quality", Critical: false, Passed: minQuality >= 0.8*t.quality, Value: minQuality},
		{Name: "high_quality_ratio", Critical: false, Passed: ratioOf(high, len(qualities)) >= t.highQualityRatio, Value: ratioOf(high, len(qualities))},
		{Name: "quality_stddev", Critical: false, Passed: sigma <= t.qualityStdMax, Value: sigma},
	}
}

func coverageChecks(input *Input, t thresholds) []CheckResult {
	if input.Coverage == nil {
		return []CheckResult{{
			Name:    "coverage_not_evaluated",
			Passed:  true,
			Message: "no coverage verification at this stage",
		}}
	}
	v := input.Coverage
	return []CheckResult{
		{Name: "starlink_coverage_rate", Critical: true, Passed: v.StarlinkRate >= t.coverageRate, Value: v.StarlinkRate},
		{Name: "oneweb_coverage_rate", Critical: true, Passed: v.OneWebRate >= t.coverageRate, Value: v.OneWebRate},
		{Name: "max_coverage_gap", Critical: true, Passed: v.MaxGapMinutes <= coverage.MaxGapMinutes, Value: v.MaxGapMinutes},
		{Name: "phase_diversity", Critical: false, Passed: v.PhaseDiversity >= coverage.MinPhaseDiversity, Value: v.PhaseDiversity},
	}
}

func diversityChecks(input *Input, t thresholds) []CheckResult {
	counts := map[ntn.Constellation]int{}
	minAlt, maxAlt := math.MaxFloat64, 0.0
	members := poolMembers(input)
	for _, id := range members {
		sat := input.Arena.Get(id)
		counts[sat.Constellation]++
		alt := sat.Elements.SemiMajorAxisKm - physics.EarthRadiusKm
		if alt < minAlt {
			minAlt = alt
		}
		if alt > maxAlt {
			maxAlt = alt
		}
	}

	populated := 0
	largest := 0
	for _, count := range counts {
		if count > 0 {
			populated++
		}
		if count > largest {
			largest = count
		}
	}

	share := ratioOf(largest, len(members))
	altDiversity := 0.0
	if maxAlt > 0 {
		altDiversity = (maxAlt - minAlt) / maxAlt
	}

	return []CheckResult{
		{Name: "constellation_count", Critical: true, Passed: populated >= 2, Value: float64(populated)},
		{Name: "max_constellation_share", Critical: false, Passed: share <= t.maxShare, Value: share},
		{Name: "altitude_diversity", Critical: false, Passed: altDiversity >= t.altitudeDiversity, Value: altDiversity},
	}
}

func physicsChecks(input *Input) []CheckResult {
	velocityOK, periodOK, fsplOK, areaOK := true, true, true, true
	var worstVelocity, worstPeriod, worstFSPL, worstArea float64

	seen := map[ntn.Constellation]bool{}
	for _, id := range poolMembers(input) {
		sat := input.Arena.Get(id)
		if seen[sat.Constellation] {
			continue
		}
		seen[sat.Constellation] = true

		a := sat.Elements.SemiMajorAxisKm
		altitude := a - physics.EarthRadiusKm
		rf := physics.RFFor(sat.Constellation)

		velocity := physics.OrbitalVelocityKmS(a)
		period := physics.OrbitalPeriodMinutes(a)
		fspl := physics.FriisFSPL(physics.SlantRangeKm(altitude, 5), rf.FrequencyHz)
		area := physics.CoverageAreaKm2(altitude, 5)

		if velocity < 6.5 || velocity > 8.5 {
			velocityOK, worstVelocity = false, velocity
		}
		if period < 80 || period > 120 {
			periodOK, worstPeriod = false, period
		}
		if fspl < 140 || fspl > 190 {
			fsplOK, worstFSPL = false, fspl
		}
		if area < 1e5 || area > 1e7 {
			areaOK, worstArea = false, area
		}
	}

	return []CheckResult{
		{Name: "orbital_velocity_band", Critical: true, Passed: velocityOK, Value: worstVelocity},
		{Name: "orbital_period_band", Critical: true, Passed: periodOK, Value: worstPeriod},
		{Name: "fspl_band", Critical: true, Passed: fsplOK, Value: worstFSPL},
		{Name: "coverage_area_band", Critical: true, Passed: areaOK, Value: worstArea},
	}
}

// Cross-stage time-range limits, in hours.
const (
	minTimeRangeHours = 1.5
	maxTimeRangeHours = 48.0
)

func crossStageChecks(input *Input) []CheckResult {
	var checks []CheckResult

	if input.Stage4Count > 0 {
		mismatch := input.Stage4Count - input.Arena.Len()
		if mismatch < 0 {
			mismatch = -mismatch
		}
		checks = append(checks, CheckResult{
			Name:     "satellite_count_consistency",
			Critical: true,
			Passed:   mismatch <= 2,
			Value:    float64(mismatch),
		})
	}

	for _, constellation := range []ntn.Constellation{ntn.ConstellationStarlink, ntn.ConstellationOneWeb} {
		ids := input.Arena.ByConstellation(constellation)
		if len(ids) == 0 {
			continue
		}
		var first, last time.Time
		for _, id := range ids {
			f, l := input.Arena.Get(id).TimeRange()
			if first.IsZero() || f.Before(first) {
				first = f
			}
			if l.After(last) {
				last = l
			}
		}
		hours := last.Sub(first).Hours()
		check := CheckResult{
			Name:     constellation.String() + "_time_range",
			Critical: true,
			Passed:   hours >= minTimeRangeHours && hours <= maxTimeRangeHours,
			Value:    hours,
		}
		if !check.Passed {
			check.Message = fmt.Sprintf("%s時間範圍不合理: %.2f小時", constellation, hours)
		}
		checks = append(checks, check)
	}

	utcOK, millisOK := true, true
	for _, id := range input.Arena.All() {
		sat := input.Arena.Get(id)
		for i := range sat.Samples {
			ts := sat.Samples[i].Time
			if _, offset := ts.Zone(); offset != 0 {
				utcOK = false
			}
			if !ts.Truncate(time.Millisecond).Equal(ts) {
				millisOK = false
			}
		}
	}
	checks = append(checks,
		CheckResult{Name: "utc_compliance", Critical: true, Passed: utcOK, Value: 1},
		CheckResult{Name: "millisecond_precision", Critical: false, Passed: millisOK, Value: 1},
	)
	return checks
}

func academicChecks(input *Input, t thresholds) []CheckResult {
	authentic := 0
	for _, id := range input.Arena.All() {
		sat := input.Arena.Get(id)
		if sat.NoradID > 0 && len(sat.Samples) > 0 {
			authentic++
		}
	}
	authenticRatio := ratioOf(authentic, input.Arena.Len())

	standardRatio := 1.0
	if input.Events != nil && len(input.Events.Events) > 0 {
		cited := 0
		for i := range input.Events.Events {
			if strings.Contains(input.Events.Events[i].Citation, "3GPP") {
				cited++
			}
		}
		standardRatio = ratioOf(cited, len(input.Events.Events))
	}

	reproducibility := input.ReproducibilityProxy
	if reproducibility <= 0 {
		// Unset means no non-deterministic component ran.
		reproducibility = 1
	}

	return []CheckResult{
		{Name: "authentic_data_ratio", Critical: true, Passed: authenticRatio >= t.authenticRatio, Value: authenticRatio},
		{Name: "standard_method_ratio", Critical: false, Passed: standardRatio >= t.standardRatio, Value: standardRatio},
		{Name: "reproducibility_proxy", Critical: false, Passed: reproducibility >= t.reproducibility, Value: reproducibility},
	}
}

// poolMembers returns the pool's ids when a pool exists, the whole arena
// otherwise.
func poolMembers(input *Input) []ntn.SatelliteID {
	if input.Pool != nil {
		return append(input.Pool.Starlink.IDs(), input.Pool.OneWeb.IDs()...)
	}
	return input.Arena.All()
}

func ratioOf(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
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
