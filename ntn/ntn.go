// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package ntn contains the core data model shared by the integration and
// dynamic planning stages: satellites, position samples, coverage windows,
// handover events and pool configurations.
//
// Satellites and their samples are produced upstream and are immutable
// within this module. Everything derived from them (windows, events, pools)
// is owned by the stage that derives it.
package ntn

import (
	"github.com/zeebo/errs"
)

// Error is the default ntn errs class.
var Error = errs.Class("ntn")

// Constellation identifies the satellite network a satellite belongs to.
type Constellation byte

const (
	// ConstellationOther is any network that is not explicitly modeled.
	ConstellationOther Constellation = iota
	// ConstellationStarlink is the SpaceX Starlink network.
	ConstellationStarlink
	// ConstellationOneWeb is the OneWeb network.
	ConstellationOneWeb
)

// String implements fmt.Stringer.
func (c Constellation) String() string {
	switch c {
	case ConstellationStarlink:
		return "starlink"
	case ConstellationOneWeb:
		return "oneweb"
	default:
		return "other"
	}
}

// ParseConstellation maps an upstream constellation label to its enum value.
// Unrecognized labels map to ConstellationOther.
func ParseConstellation(s string) Constellation {
	switch s {
	case "starlink", "Starlink", "STARLINK":
		return ConstellationStarlink
	case "oneweb", "OneWeb", "ONEWEB":
		return ConstellationOneWeb
	default:
		return ConstellationOther
	}
}

// EventKind is a 3GPP TS 38.331 measurement event type.
type EventKind byte

const (
	// EventA4 triggers when a neighbour becomes better than a threshold.
	EventA4 EventKind = iota
	// EventA5 triggers when the serving cell becomes worse than threshold1
	// while a neighbour becomes better than threshold2.
	EventA5
	// EventD2 triggers on distance-based serving/neighbour divergence.
	EventD2
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case EventA4:
		return "A4"
	case EventA5:
		return "A5"
	default:
		return "D2"
	}
}

// Decision is the handover decision attached to a synthesized event.
type Decision byte

const (
	// DecisionHold keeps the serving satellite.
	DecisionHold Decision = iota
	// DecisionTrigger requests an immediate handover.
	DecisionTrigger
	// DecisionEvaluate defers to a later measurement round.
	DecisionEvaluate
)

// String implements fmt.Stringer.
func (d Decision) String() string {
	switch d {
	case DecisionTrigger:
		return "trigger"
	case DecisionEvaluate:
		return "evaluate"
	default:
		return "hold"
	}
}

// Status is the outcome of a validation category.
type Status byte

const (
	// StatusPass means every check in the category passed.
	StatusPass Status = iota
	// StatusFail means at least one required check failed.
	StatusFail
	// StatusPartial means optional checks failed but required ones passed.
	StatusPartial
	// StatusSkipped means the category did not run at the active level.
	StatusSkipped
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	case StatusPartial:
		return "PARTIAL"
	default:
		return "SKIPPED"
	}
}
