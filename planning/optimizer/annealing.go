// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package optimizer

import (
	"context"
	"math"
	"math/rand"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
)

// Simulated annealing parameters.
const (
	saInitialTemperature = 100.0
	saCoolingRate        = 0.95
	saMinTemperature     = 0.01
	saMaxIterations      = 1000
)

// Annealing searches with Metropolis acceptance over three neighbor moves:
// add, remove, replace. Every move respects the quantity constraints.
type Annealing struct{}

// Name implements Algorithm.
func (*Annealing) Name() string { return AlgorithmAnnealing }

// Optimize implements Algorithm.
func (a *Annealing) Optimize(ctx context.Context, problem *Problem) (*Solution, error) {
	rng := problem.rng(a.Name())

	current := problem.randomSelection(rng)
	currentScores := problem.Evaluate(current)
	best, bestScores := current, currentScores

	temperature := saInitialTemperature
	iterations := 0
	for temperature > saMinTemperature && iterations < saMaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, Error.Wrap(err)
		}

		neighbor := neighborMove(rng, problem, current)
		neighborScores := problem.Evaluate(neighbor)

		delta := neighborScores.Fitness - currentScores.Fitness
		if delta > 0 || rng.Float64() < math.Exp(delta/temperature) {
			current, currentScores = neighbor, neighborScores
			if currentScores.Fitness > bestScores.Fitness {
				best, bestScores = current, currentScores
			}
		}

		temperature *= saCoolingRate
		iterations++
	}

	return &Solution{
		Algorithm:  a.Name(),
		Selection:  best,
		Scores:     bestScores,
		Iterations: iterations,
	}, nil
}

// neighborMove applies one of add/remove/replace to a random constellation
// gene, skipping moves that would leave the constraint band.
func neighborMove(rng *rand.Rand, problem *Problem, sel Selection) Selection {
	next := sel.clone()

	starlink := rng.Intn(2) == 0
	gene, pool := next.OneWeb, problem.oneweb
	min, max := ntn.OneWebPoolMin, ntn.OneWebPoolMax
	if starlink {
		gene, pool = next.Starlink, problem.starlink
		min, max = ntn.StarlinkPoolMin, ntn.StarlinkPoolMax
	}

	switch rng.Intn(3) {
	case 0: // add
		if len(gene) < max {
			if id, ok := randomOutsider(rng, gene, pool); ok {
				gene = append(gene, id)
			}
		}
	case 1: // remove
		if len(gene) > min {
			i := rng.Intn(len(gene))
			gene = append(gene[:i], gene[i+1:]...)
		}
	default: // replace
		replaceOne(rng, gene, pool)
	}

	if starlink {
		next.Starlink = gene
	} else {
		next.OneWeb = gene
	}
	next.sort()
	return next
}

func randomOutsider(rng *rand.Rand, gene, pool []ntn.SatelliteID) (ntn.SatelliteID, bool) {
	member := map[ntn.SatelliteID]bool{}
	for _, id := range gene {
		member[id] = true
	}
	var outside []ntn.SatelliteID
	for _, id := range pool {
		if !member[id] {
			outside = append(outside, id)
		}
	}
	if len(outside) == 0 {
		return 0, false
	}
	return outside[rng.Intn(len(outside))], true
}
