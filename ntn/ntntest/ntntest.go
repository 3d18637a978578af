// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package ntntest provides deterministic satellite fixtures for tests.
package ntntest

import (
	"fmt"
	"math"
	"time"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
	"github.com/cedarwud/ntn-stack-sub001/physics"
)

// Epoch is the fixed TLE epoch used by all fixtures.
var Epoch = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

// Options tunes fixture generation.
type Options struct {
	Samples         int           // samples per satellite, default 192
	Step            time.Duration // sample spacing, default 30s
	VisibleFraction float64       // approximate fraction of visible samples, default 0.30
}

func (opts *Options) fill() {
	if opts.Samples == 0 {
		opts.Samples = 192
	}
	if opts.Step == 0 {
		opts.Step = 30 * time.Second
	}
	if opts.VisibleFraction == 0 {
		opts.VisibleFraction = 0.30
	}
}

// Satellite builds one deterministic satellite. The index spreads mean
// anomaly and RAAN across the constellation so phase analysis sees a
// dispersed population, and shifts each satellite's visibility window so
// the constellation covers the whole span.
func Satellite(constellation ntn.Constellation, index int, opts Options) ntn.Satellite {
	opts.fill()

	var name string
	var altKm float64
	switch constellation {
	case ntn.ConstellationStarlink:
		name = fmt.Sprintf("STARLINK-%d", 1000+index)
		altKm = 550
	case ntn.ConstellationOneWeb:
		name = fmt.Sprintf("ONEWEB-%d", 100+index)
		altKm = 1200
	default:
		name = fmt.Sprintf("OTHER-%d", index)
		altKm = 800
	}

	sat := ntn.Satellite{
		Name:          name,
		NoradID:       40000 + index,
		Constellation: constellation,
		Elements: ntn.OrbitalElements{
			SemiMajorAxisKm: physics.EarthRadiusKm + altKm,
			Eccentricity:    0.0005 + 0.0001*float64(index%5),
			InclinationDeg:  53.0,
			RAANDeg:         math.Mod(float64(index)*47.0, 360),
			ArgPerigeeDeg:   90,
			MeanAnomalyDeg:  math.Mod(float64(index)*31.0, 360),
			MeanMotion:      1440 / physics.OrbitalPeriodMinutes(physics.EarthRadiusKm+altKm),
			Epoch:           Epoch,
		},
	}

	visibleSpan := int(float64(opts.Samples) * opts.VisibleFraction)
	if visibleSpan < 1 {
		visibleSpan = 1
	}
	offset := (index * 13) % opts.Samples

	for i := 0; i < opts.Samples; i++ {
		ts := Epoch.Add(time.Duration(i) * opts.Step)
		// Position of this sample inside the satellite's visibility cycle.
		cyclePos := (i + opts.Samples - offset) % opts.Samples
		visible := cyclePos < visibleSpan

		elevation := -10.0
		if visible {
			// Rise to a per-satellite peak mid-window, then set. OneWeb
			// fixtures dwell high, matching their gap-filler elevation band.
			peak := 15.0 + float64(index%60)
			if constellation == ntn.ConstellationOneWeb {
				peak = 45.0 + float64(index%40)
			}
			progress := float64(cyclePos) / float64(visibleSpan)
			elevation = 5 + (peak-5)*math.Sin(progress*math.Pi)
			if elevation < 5 {
				elevation = 5
			}
		}

		r := physics.EarthRadiusKm + altKm
		angle := 2 * math.Pi * float64(i) / float64(opts.Samples)
		sat.Samples = append(sat.Samples, ntn.PositionSample{
			Time: ts,
			ECI: ntn.Vector3{
				X: r * math.Cos(angle),
				Y: r * math.Sin(angle) * math.Cos(53*math.Pi/180),
				Z: r * math.Sin(angle) * math.Sin(53*math.Pi/180),
			},
			VelocityECI: ntn.Vector3{
				X: -physics.OrbitalVelocityKmS(r) * math.Sin(angle),
				Y: physics.OrbitalVelocityKmS(r) * math.Cos(angle),
			},
			Geodetic:     ntn.Geodetic{LatDeg: 24.9, LonDeg: 121.4, AltKm: altKm},
			ElevationDeg: elevation,
			AzimuthDeg:   math.Mod(float64(index)*37+float64(i)*1.5, 360),
			RangeKm:      physics.SlantRangeKm(altKm, math.Max(elevation, 5)),
			Visible:      visible,
		})
	}
	return sat
}

// Arena builds an arena with the given constellation sizes, Starlink first.
func Arena(starlink, oneweb int, opts Options) *ntn.Arena {
	arena := ntn.NewArena(starlink + oneweb)
	for i := 0; i < starlink; i++ {
		_, _ = arena.Add(Satellite(ntn.ConstellationStarlink, i, opts))
	}
	for i := 0; i < oneweb; i++ {
		_, _ = arena.Add(Satellite(ntn.ConstellationOneWeb, i, opts))
	}
	return arena
}
