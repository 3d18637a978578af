// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package validation runs the multi-level quality gate over pipeline
// outputs. Checks are plain values grouped into categories; a pure fold
// aggregates category results into an overall pass rate and letter grade.
package validation

import (
	"context"
	"strings"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/cedarwud/ntn-stack-sub001/integration/handover"
	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/planning/coverage"
)

var (
	// Error is the default validation errs class.
	Error = errs.Class("validation")

	mon = monkit.Package()
)

// Level selects how much of the check suite runs.
type Level int

// Validation levels. Fast runs critical checks only; Comprehensive adds the
// cross-stage category on top of the standard suite.
const (
	LevelFast Level = iota
	LevelStandard
	LevelComprehensive
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelFast:
		return "FAST"
	case LevelComprehensive:
		return "COMPREHENSIVE"
	default:
		return "STANDARD"
	}
}

// ParseLevel maps a configuration string to a level, defaulting to STANDARD.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FAST":
		return LevelFast
	case "COMPREHENSIVE":
		return LevelComprehensive
	default:
		return LevelStandard
	}
}

// Category names a group of related checks.
type Category string

// Check categories.
const (
	CategoryStructure  Category = "structure"
	CategoryQuality    Category = "quality"
	CategoryCoverage   Category = "coverage"
	CategoryDiversity  Category = "diversity"
	CategoryPhysics    Category = "physics"
	CategoryCrossStage Category = "cross_stage"
	CategoryAcademic   Category = "academic_standards"
)

// downgradeAfter is the duration past which the run degrades to FAST.
const downgradeAfter = 5 * time.Second

// sampleModeSlackPP loosens ratio thresholds when sampled input is in use.
const sampleModeSlackPP = 0.05

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string  `json:"name"`
	Passed   bool    `json:"passed"`
	Critical bool    `json:"critical"`
	Message  string  `json:"message,omitempty"`
	Value    float64 `json:"value"`
}

// CategoryResult folds the checks of one category.
type CategoryResult struct {
	Category Category      `json:"category"`
	Status   ntn.Status    `json:"-"`
	Label    string        `json:"status"`
	Checks   []CheckResult `json:"checks"`
}

// PassRate is the fraction of executed checks that passed.
func (r *CategoryResult) PassRate() float64 {
	if len(r.Checks) == 0 {
		return 1
	}
	passed := 0
	for i := range r.Checks {
		if r.Checks[i].Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(r.Checks))
}

// Summary is the final validation verdict.
type Summary struct {
	Level      Level            `json:"-"`
	LevelLabel string           `json:"level"`
	Results    []CategoryResult `json:"categories"`
	PassRate   float64          `json:"pass_rate"`
	Grade      string           `json:"grade"`
	Passed     bool             `json:"passed"`
	Downgraded bool             `json:"auto_downgraded"`
	SampleMode bool             `json:"sample_mode"`
	Duration   time.Duration    `json:"-"`
}

// Input carries everything the checks inspect. Pool and Coverage may be nil
// when validating the integration stage alone.
type Input struct {
	Arena    *ntn.Arena
	Pool     *ntn.PoolConfiguration
	Coverage *coverage.Verification
	Events   *handover.Output

	// Stage4Count is the satellite count reported by the upstream stage,
	// compared against the loaded arena.
	Stage4Count int

	// ReproducibilityProxy scores how much of the pipeline ran through
	// deterministic components. The orchestrator computes it; 1.0 means
	// fully id-seeded.
	ReproducibilityProxy float64
}

// Config tunes the validator.
type Config struct {
	Level      string `help:"validation level: FAST, STANDARD or COMPREHENSIVE" default:"STANDARD"`
	SampleMode bool   `help:"loosen ratio thresholds by 5pp for sampled input" default:"false"`
}

// Validator executes the check suite.
type Validator struct {
	log        *zap.Logger
	level      Level
	sampleMode bool
}

// New creates a validator.
func New(log *zap.Logger, config Config) *Validator {
	return &Validator{
		log:        log,
		level:      ParseLevel(config.Level),
		sampleMode: config.SampleMode,
	}
}

// Run executes the categories active at the configured level. When the run
// overshoots the downgrade budget, the remaining non-critical categories are
// skipped and the summary is marked downgraded.
func (v *Validator) Run(ctx context.Context, input *Input) (_ *Summary, err error) {
	defer mon.Task()(&ctx)(&err)

	if input == nil || input.Arena == nil {
		return nil, Error.New("validation input missing arena")
	}

	start := time.Now()
	summary := &Summary{
		Level:      v.level,
		LevelLabel: v.level.String(),
		SampleMode: v.sampleMode,
	}

	thresholds := defaultThresholds()
	if v.sampleMode {
		thresholds = thresholds.loosen(sampleModeSlackPP)
	}

	for _, category := range v.activeCategories() {
		if err := ctx.Err(); err != nil {
			return nil, Error.Wrap(err)
		}
		if summary.Downgraded && !criticalCategory(category) {
			summary.Results = append(summary.Results, CategoryResult{
				Category: category,
				Status:   ntn.StatusSkipped,
				Label:    ntn.StatusSkipped.String(),
			})
			continue
		}

		result := runCategory(category, input, thresholds)
		summary.Results = append(summary.Results, result)

		if !summary.Downgraded && v.level != LevelFast && time.Since(start) > downgradeAfter {
			summary.Downgraded = true
			v.log.Warn("validation over budget, downgrading to FAST",
				zap.Duration("elapsed", time.Since(start)))
		}
	}

	summary.PassRate, summary.Grade = Aggregate(summary.Results)
	summary.Passed = summary.PassRate >= thresholds.overallPass && noCriticalFailure(summary.Results)
	summary.Duration = time.Since(start)

	mon.FloatVal("validation_pass_rate").Observe(summary.PassRate)
	v.log.Info("validation complete",
		zap.String("level", summary.LevelLabel),
		zap.Float64("pass_rate", summary.PassRate),
		zap.String("grade", summary.Grade),
		zap.Bool("passed", summary.Passed),
		zap.Bool("downgraded", summary.Downgraded))
	return summary, nil
}

func (v *Validator) activeCategories() []Category {
	switch v.level {
	case LevelFast:
		return []Category{CategoryStructure, CategoryCoverage, CategoryPhysics}
	case LevelComprehensive:
		return []Category{
			CategoryStructure, CategoryQuality, CategoryCoverage,
			CategoryDiversity, CategoryPhysics, CategoryCrossStage, CategoryAcademic,
		}
	default:
		return []Category{
			CategoryStructure, CategoryQuality, CategoryCoverage,
			CategoryDiversity, CategoryPhysics, CategoryAcademic,
		}
	}
}

func criticalCategory(category Category) bool {
	switch category {
	case CategoryStructure, CategoryCoverage, CategoryPhysics:
		return true
	default:
		return false
	}
}

func runCategory(category Category, input *Input, thresholds thresholds) CategoryResult {
	var checks []CheckResult
	switch category {
	case CategoryStructure:
		checks = structureChecks(input, thresholds)
	case CategoryQuality:
		checks = qualityChecks(input, thresholds)
	case CategoryCoverage:
		checks = coverageChecks(input, thresholds)
	case CategoryDiversity:
		checks = diversityChecks(input, thresholds)
	case CategoryPhysics:
		checks = physicsChecks(input)
	case CategoryCrossStage:
		checks = crossStageChecks(input)
	case CategoryAcademic:
		checks = academicChecks(input, thresholds)
	}
	return foldCategory(category, checks)
}

// foldCategory derives the category status: FAIL when a critical check
// failed, PARTIAL when only optional checks failed.
func foldCategory(category Category, checks []CheckResult) CategoryResult {
	status := ntn.StatusPass
	for i := range checks {
		if checks[i].Passed {
			continue
		}
		if checks[i].Critical {
			status = ntn.StatusFail
			break
		}
		status = ntn.StatusPartial
	}
	return CategoryResult{
		Category: category,
		Status:   status,
		Label:    status.String(),
		Checks:   checks,
	}
}

// Aggregate is the pure fold over category results: overall pass rate across
// executed checks, graded A (>=0.9), B (>=0.8), C (>=0.7) or D.
func Aggregate(results []CategoryResult) (passRate float64, grade string) {
	total, passed := 0, 0
	for i := range results {
		if results[i].Status == ntn.StatusSkipped {
			continue
		}
		for j := range results[i].Checks {
			total++
			if results[i].Checks[j].Passed {
				passed++
			}
		}
	}
	if total == 0 {
		return 1, "A"
	}
	passRate = float64(passed) / float64(total)
	switch {
	case passRate >= 0.9:
		grade = "A"
	case passRate >= 0.8:
		grade = "B"
	case passRate >= 0.7:
		grade = "C"
	default:
		grade = "D"
	}
	return passRate, grade
}

func noCriticalFailure(results []CategoryResult) bool {
	for i := range results {
		if results[i].Status == ntn.StatusFail {
			return false
		}
	}
	return true
}
