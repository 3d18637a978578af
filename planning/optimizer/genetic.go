// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package optimizer

import (
	"context"
	"math/rand"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
)

// Genetic algorithm parameters.
const (
	gaPopulation     = 50
	gaGenerations    = 100
	gaMutationRate   = 0.1
	gaCrossoverRate  = 0.8
	gaTournamentSize = 3
)

// Genetic searches with tournament selection, single-point crossover and
// random-replace mutation. Elitism keeps the best individual per generation.
type Genetic struct{}

// Name implements Algorithm.
func (*Genetic) Name() string { return AlgorithmGenetic }

type individual struct {
	selection Selection
	scores    Scores
}

// Optimize implements Algorithm.
func (g *Genetic) Optimize(ctx context.Context, problem *Problem) (*Solution, error) {
	rng := problem.rng(g.Name())

	population := make([]individual, gaPopulation)
	for i := range population {
		population[i].selection = problem.randomSelection(rng)
		population[i].scores = problem.Evaluate(population[i].selection)
	}

	best := population[0]
	for i := range population[1:] {
		if population[i+1].scores.Fitness > best.scores.Fitness {
			best = population[i+1]
		}
	}

	for generation := 0; generation < gaGenerations; generation++ {
		if err := ctx.Err(); err != nil {
			return nil, Error.Wrap(err)
		}

		next := make([]individual, 0, gaPopulation)
		next = append(next, best)
		for len(next) < gaPopulation {
			parentA := tournament(rng, population)
			parentB := tournament(rng, population)

			child := parentA.selection.clone()
			if rng.Float64() < gaCrossoverRate {
				child = crossover(rng, problem, parentA.selection, parentB.selection)
			}
			if rng.Float64() < gaMutationRate {
				mutateReplace(rng, problem, &child)
			}
			child.sort()
			next = append(next, individual{selection: child, scores: problem.Evaluate(child)})
		}
		population = next

		for i := range population {
			if population[i].scores.Fitness > best.scores.Fitness {
				best = population[i]
			}
		}
	}

	return &Solution{
		Algorithm:  g.Name(),
		Selection:  best.selection,
		Scores:     best.scores,
		Iterations: gaGenerations,
	}, nil
}

func tournament(rng *rand.Rand, population []individual) individual {
	winner := population[rng.Intn(len(population))]
	for i := 1; i < gaTournamentSize; i++ {
		challenger := population[rng.Intn(len(population))]
		if challenger.scores.Fitness > winner.scores.Fitness {
			winner = challenger
		}
	}
	return winner
}

// crossover splices each constellation gene at a single point, dedups and
// repairs the child back into the quantity constraints.
func crossover(rng *rand.Rand, problem *Problem, a, b Selection) Selection {
	return Selection{
		Starlink: spliceGene(rng, a.Starlink, b.Starlink, problem.starlink, ntn.StarlinkPoolMin, ntn.StarlinkPoolMax),
		OneWeb:   spliceGene(rng, a.OneWeb, b.OneWeb, problem.oneweb, ntn.OneWebPoolMin, ntn.OneWebPoolMax),
	}
}

func spliceGene(rng *rand.Rand, a, b, pool []ntn.SatelliteID, min, max int) []ntn.SatelliteID {
	point := rng.Intn(len(a) + 1)
	child := append([]ntn.SatelliteID(nil), a[:point]...)
	seen := map[ntn.SatelliteID]bool{}
	for _, id := range child {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			child = append(child, id)
			seen[id] = true
		}
	}
	return repair(rng, child, pool, min, max)
}

// repair trims an oversized gene and refills an undersized one from the
// unused candidates.
func repair(rng *rand.Rand, gene, pool []ntn.SatelliteID, min, max int) []ntn.SatelliteID {
	for len(gene) > max {
		i := rng.Intn(len(gene))
		gene = append(gene[:i], gene[i+1:]...)
	}
	if len(gene) < min {
		member := map[ntn.SatelliteID]bool{}
		for _, id := range gene {
			member[id] = true
		}
		for _, i := range rng.Perm(len(pool)) {
			if len(gene) >= min {
				break
			}
			if !member[pool[i]] {
				gene = append(gene, pool[i])
				member[pool[i]] = true
			}
		}
	}
	return gene
}

// mutateReplace swaps one random member for a random non-member of the same
// constellation, when one exists.
func mutateReplace(rng *rand.Rand, problem *Problem, sel *Selection) {
	if rng.Intn(2) == 0 {
		replaceOne(rng, sel.Starlink, problem.starlink)
	} else {
		replaceOne(rng, sel.OneWeb, problem.oneweb)
	}
}

func replaceOne(rng *rand.Rand, gene, pool []ntn.SatelliteID) {
	if len(gene) == 0 || len(gene) >= len(pool) {
		return
	}
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
	gene[rng.Intn(len(gene))] = outside[rng.Intn(len(outside))]
}
