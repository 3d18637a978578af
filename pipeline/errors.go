// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package pipeline

import (
	"github.com/zeebo/errs"

	"github.com/cedarwud/ntn-stack-sub001/planning/optimizer"
	"github.com/cedarwud/ntn-stack-sub001/upstream"
)

var (
	// Error is the default pipeline errs class.
	Error = errs.Class("pipeline")

	// ErrZeroTolerance means the runtime gatekeeper rejected a wired
	// component. Fatal, never caught.
	ErrZeroTolerance = errs.Class("zero tolerance failure")

	// ErrValidationFailed means a required validation category failed while
	// strict mode was active.
	ErrValidationFailed = errs.Class("validation failed")

	// ErrTimeout means a stage exceeded its budget.
	ErrTimeout = errs.Class("stage timeout")
)

// Process exit codes.
const (
	ExitSuccess        = 0
	ExitFailure        = 1
	ExitZeroTolerance  = 2
	ExitNoFeasible     = 3
	ExitValidationFail = 4
)

// ExitCode maps a pipeline error to its process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case ErrZeroTolerance.Has(err):
		return ExitZeroTolerance
	case optimizer.ErrNoFeasible.Has(err):
		return ExitNoFeasible
	case ErrValidationFailed.Has(err):
		return ExitValidationFail
	default:
		return ExitFailure
	}
}

// ErrorKind names the error taxonomy entry for the error snapshot.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case ErrZeroTolerance.Has(err):
		return "ZeroToleranceFailure"
	case optimizer.ErrNoFeasible.Has(err):
		return "NoFeasibleConfiguration"
	case ErrValidationFailed.Has(err):
		return "ValidationFailed"
	case ErrTimeout.Has(err):
		return "Timeout"
	case upstream.ErrInputUnavailable.Has(err):
		return "InputUnavailable"
	case upstream.ErrSchema.Has(err):
		return "SchemaViolation"
	default:
		return "Failure"
	}
}
