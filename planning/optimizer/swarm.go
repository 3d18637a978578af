// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package optimizer

import (
	"context"
	"sort"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
)

// Particle swarm parameters.
const (
	psoParticles  = 30
	psoIterations = 100
	psoInertia    = 0.7
	psoCognitive  = 1.5
	psoSocial     = 1.5
)

// Swarm searches a continuous relaxation: each particle holds a selection
// probability in [0,1] per candidate, decoded to a feasible selection by
// constraint-respecting top-k over the sorted probabilities.
type Swarm struct{}

// Name implements Algorithm.
func (*Swarm) Name() string { return AlgorithmSwarm }

type particle struct {
	position []float64
	velocity []float64

	bestPosition []float64
	bestScores   Scores
}

// Optimize implements Algorithm.
func (s *Swarm) Optimize(ctx context.Context, problem *Problem) (*Solution, error) {
	rng := problem.rng(s.Name())
	dims := len(problem.starlink) + len(problem.oneweb)

	swarm := make([]particle, psoParticles)
	var globalBest []float64
	var globalScores Scores
	for i := range swarm {
		p := &swarm[i]
		p.position = make([]float64, dims)
		p.velocity = make([]float64, dims)
		for d := range p.position {
			p.position[d] = rng.Float64()
			p.velocity[d] = rng.Float64()*0.2 - 0.1
		}
		p.bestPosition = append([]float64(nil), p.position...)
		p.bestScores = problem.Evaluate(decode(problem, p.position))

		if globalBest == nil || p.bestScores.Fitness > globalScores.Fitness {
			globalBest = append([]float64(nil), p.position...)
			globalScores = p.bestScores
		}
	}

	for iteration := 0; iteration < psoIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, Error.Wrap(err)
		}

		for i := range swarm {
			p := &swarm[i]
			for d := range p.position {
				p.velocity[d] = psoInertia*p.velocity[d] +
					psoCognitive*rng.Float64()*(p.bestPosition[d]-p.position[d]) +
					psoSocial*rng.Float64()*(globalBest[d]-p.position[d])
				p.position[d] = clamp01(p.position[d] + p.velocity[d])
			}

			scores := problem.Evaluate(decode(problem, p.position))
			if scores.Fitness > p.bestScores.Fitness {
				p.bestPosition = append(p.bestPosition[:0], p.position...)
				p.bestScores = scores
			}
			if scores.Fitness > globalScores.Fitness {
				globalBest = append(globalBest[:0], p.position...)
				globalScores = scores
			}
		}
	}

	selection := decode(problem, globalBest)
	return &Solution{
		Algorithm:  s.Name(),
		Selection:  selection,
		Scores:     problem.Evaluate(selection),
		Iterations: psoIterations,
	}, nil
}

// decode maps a continuous position to a feasible selection: per
// constellation, candidates sort by probability and the top-k enter the
// pool, with k counted from probabilities above 0.5 clamped into the
// constraint band.
func decode(problem *Problem, position []float64) Selection {
	starlinkProbs := position[:len(problem.starlink)]
	onewebProbs := position[len(problem.starlink):]
	sel := Selection{
		Starlink: topK(problem.starlink, starlinkProbs, ntn.StarlinkPoolMin, ntn.StarlinkPoolMax),
		OneWeb:   topK(problem.oneweb, onewebProbs, ntn.OneWebPoolMin, ntn.OneWebPoolMax),
	}
	sel.sort()
	return sel
}

func topK(pool []ntn.SatelliteID, probs []float64, min, max int) []ntn.SatelliteID {
	k := 0
	for _, prob := range probs {
		if prob > 0.5 {
			k++
		}
	}
	if k < min {
		k = min
	}
	if k > max {
		k = max
	}
	if k > len(pool) {
		k = len(pool)
	}

	order := make([]int, len(pool))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })

	out := make([]ntn.SatelliteID, k)
	for i := 0; i < k; i++ {
		out[i] = pool[order[i]]
	}
	return out
}
