// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

// Package optimizer selects the dynamic satellite pool. Three algorithms
// (genetic, simulated annealing, particle swarm) search the candidate set in
// parallel under hard quantity constraints; the highest-fitness feasible
// configuration wins, with ties broken by coverage continuity.
package optimizer

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sort"
	"sync"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cedarwud/ntn-stack-sub001/ntn"
)

var (
	// Error is the default optimizer errs class.
	Error = errs.Class("optimizer")

	// ErrNoFeasible means no algorithm produced a configuration satisfying
	// the quantity constraints. Not recoverable locally.
	ErrNoFeasible = errs.Class("no feasible configuration")

	mon = monkit.Package()
)

// Objective weights. Handover optimality is a cost: its complement enters
// the fitness sum.
const (
	WeightCoverageContinuity      = 0.40
	WeightConstellationEfficiency = 0.25
	WeightHandoverOptimality      = 0.20
	WeightResourceBalance         = 0.15
)

// Scores holds the per-objective values of one candidate selection.
type Scores struct {
	CoverageContinuity      float64 `json:"coverage_continuity"`
	ConstellationEfficiency float64 `json:"constellation_efficiency"`
	HandoverOptimality      float64 `json:"handover_optimality"`
	ResourceBalance         float64 `json:"resource_balance"`
	Fitness                 float64 `json:"fitness"`
}

// Selection is one candidate pool assignment, kept sorted per constellation.
type Selection struct {
	Starlink []ntn.SatelliteID
	OneWeb   []ntn.SatelliteID
}

func (sel Selection) clone() Selection {
	return Selection{
		Starlink: append([]ntn.SatelliteID(nil), sel.Starlink...),
		OneWeb:   append([]ntn.SatelliteID(nil), sel.OneWeb...),
	}
}

func (sel *Selection) sort() {
	sort.Slice(sel.Starlink, func(i, j int) bool { return sel.Starlink[i] < sel.Starlink[j] })
	sort.Slice(sel.OneWeb, func(i, j int) bool { return sel.OneWeb[i] < sel.OneWeb[j] })
}

// Feasible reports whether the selection meets the quantity constraints.
func (sel Selection) Feasible() bool {
	return len(sel.Starlink) >= ntn.StarlinkPoolMin && len(sel.Starlink) <= ntn.StarlinkPoolMax &&
		len(sel.OneWeb) >= ntn.OneWebPoolMin && len(sel.OneWeb) <= ntn.OneWebPoolMax
}

// Members returns the combined id list, Starlink first.
func (sel Selection) Members() []ntn.SatelliteID {
	members := make([]ntn.SatelliteID, 0, len(sel.Starlink)+len(sel.OneWeb))
	members = append(members, sel.Starlink...)
	members = append(members, sel.OneWeb...)
	return members
}

// Solution is one algorithm's best configuration.
type Solution struct {
	Algorithm  string    `json:"algorithm"`
	Selection  Selection `json:"-"`
	Scores     Scores    `json:"scores"`
	Iterations int       `json:"iterations"`
}

// Algorithm is one search strategy over a Problem.
type Algorithm interface {
	Name() string
	Optimize(ctx context.Context, problem *Problem) (*Solution, error)
}

// Registered algorithm names. The runtime gatekeeper verifies planner types
// against this list.
const (
	AlgorithmGenetic   = "genetic_algorithm"
	AlgorithmAnnealing = "simulated_annealing"
	AlgorithmSwarm     = "particle_swarm"
)

// Registry maps algorithm names to constructors. Unknown names are rejected,
// which keeps placeholder strategies out of the run.
var registry = map[string]func() Algorithm{
	AlgorithmGenetic:   func() Algorithm { return &Genetic{} },
	AlgorithmAnnealing: func() Algorithm { return &Annealing{} },
	AlgorithmSwarm:     func() Algorithm { return &Swarm{} },
}

// KnownAlgorithms returns the registered algorithm names, sorted.
func KnownAlgorithms() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewAlgorithm instantiates a registered algorithm by name.
func NewAlgorithm(name string) (Algorithm, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, Error.New("unknown algorithm %q", name)
	}
	return factory(), nil
}

// Problem is the optimization input: the candidate ids per constellation and
// the precomputed visibility timelines used by the fitness function.
type Problem struct {
	arena            *ntn.Arena
	starlink, oneweb []ntn.SatelliteID
	visible          map[ntn.SatelliteID][]bool
	visibilityRatio  map[ntn.SatelliteID]float64
	samples          int
	evaluations      int64
	mu               sync.Mutex
}

// NewProblem builds a problem over the integrated candidates. It fails with
// ErrNoFeasible when a constellation cannot reach its pool minimum.
func NewProblem(arena *ntn.Arena, candidates []ntn.SatelliteID) (*Problem, error) {
	problem := &Problem{
		arena:           arena,
		visible:         make(map[ntn.SatelliteID][]bool, len(candidates)),
		visibilityRatio: make(map[ntn.SatelliteID]float64, len(candidates)),
	}
	for _, id := range candidates {
		sat := arena.Get(id)
		switch sat.Constellation {
		case ntn.ConstellationStarlink:
			problem.starlink = append(problem.starlink, id)
		case ntn.ConstellationOneWeb:
			problem.oneweb = append(problem.oneweb, id)
		default:
			continue
		}

		timeline := make([]bool, len(sat.Samples))
		for i := range sat.Samples {
			timeline[i] = sat.Samples[i].Visible
		}
		problem.visible[id] = timeline
		problem.visibilityRatio[id] = sat.VisibilityRatio()
		if len(timeline) > problem.samples {
			problem.samples = len(timeline)
		}
	}

	if len(problem.starlink) < ntn.StarlinkPoolMin {
		return nil, ErrNoFeasible.New("starlink candidates %d below starlink_min_satellites: %d",
			len(problem.starlink), ntn.StarlinkPoolMin)
	}
	if len(problem.oneweb) < ntn.OneWebPoolMin {
		return nil, ErrNoFeasible.New("oneweb candidates %d below oneweb_min_satellites: %d",
			len(problem.oneweb), ntn.OneWebPoolMin)
	}
	return problem, nil
}

// Evaluate scores one selection against the four objectives.
func (p *Problem) Evaluate(sel Selection) Scores {
	p.mu.Lock()
	p.evaluations++
	p.mu.Unlock()

	var coverageSum, excessSum float64
	for t := 0; t < p.samples; t++ {
		starVis, owVis := 0, 0
		for _, id := range sel.Starlink {
			if timeline := p.visible[id]; t < len(timeline) && timeline[t] {
				starVis++
			}
		}
		for _, id := range sel.OneWeb {
			if timeline := p.visible[id]; t < len(timeline) && timeline[t] {
				owVis++
			}
		}
		coverageSum += 0.5*capRatio(starVis, ntn.StarlinkPoolMin) + 0.5*capRatio(owVis, ntn.OneWebPoolMin)
		if starVis > ntn.StarlinkPoolMin {
			excessSum += float64(starVis - ntn.StarlinkPoolMin)
		}
		if owVis > ntn.OneWebPoolMin {
			excessSum += float64(owVis - ntn.OneWebPoolMin)
		}
	}

	scores := Scores{}
	if p.samples > 0 {
		scores.CoverageContinuity = coverageSum / float64(p.samples)
		// Excess simultaneous visibility drives handover churn; normalize by
		// the largest possible excess.
		maxExcess := float64((ntn.StarlinkPoolMax - ntn.StarlinkPoolMin) + (ntn.OneWebPoolMax - ntn.OneWebPoolMin))
		if maxExcess > 0 {
			scores.HandoverOptimality = clamp01(excessSum / float64(p.samples) / maxExcess)
		}
	}

	total := 0.0
	for _, id := range sel.Members() {
		total += p.visibilityRatio[id]
	}
	if n := len(sel.Starlink) + len(sel.OneWeb); n > 0 {
		scores.ConstellationEfficiency = total / float64(n)

		share := float64(len(sel.Starlink)) / float64(n)
		scores.ResourceBalance = 1 - clamp01(abs(share-0.70)/0.70)
	}

	scores.Fitness = WeightCoverageContinuity*scores.CoverageContinuity +
		WeightConstellationEfficiency*scores.ConstellationEfficiency +
		WeightHandoverOptimality*(1-scores.HandoverOptimality) +
		WeightResourceBalance*scores.ResourceBalance
	return scores
}

// Evaluations returns how many fitness evaluations ran so far.
func (p *Problem) Evaluations() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.evaluations
}

// rng returns a deterministic source for an algorithm: the seed derives from
// the algorithm name and the candidate set, never from the clock.
func (p *Problem) rng(name string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	for _, id := range p.starlink {
		_, _ = h.Write([]byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)})
	}
	for _, id := range p.oneweb {
		_, _ = h.Write([]byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)})
	}
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// randomSelection draws a feasible selection uniformly.
func (p *Problem) randomSelection(rng *rand.Rand) Selection {
	sel := Selection{
		Starlink: pick(rng, p.starlink, randomCount(rng, ntn.StarlinkPoolMin, ntn.StarlinkPoolMax, len(p.starlink))),
		OneWeb:   pick(rng, p.oneweb, randomCount(rng, ntn.OneWebPoolMin, ntn.OneWebPoolMax, len(p.oneweb))),
	}
	sel.sort()
	return sel
}

// Config tunes the optimizer run.
type Config struct {
	Algorithms []string `help:"optimization algorithms to run in parallel" default:"genetic_algorithm,simulated_annealing,particle_swarm"`
}

// Runner fans the algorithms out and joins on the best solution.
type Runner struct {
	log        *zap.Logger
	algorithms []Algorithm
}

// NewRunner creates a runner over the named algorithms; with none given, all
// registered algorithms run.
func NewRunner(log *zap.Logger, names ...string) (*Runner, error) {
	if len(names) == 0 {
		names = KnownAlgorithms()
	}
	runner := &Runner{log: log}
	for _, name := range names {
		algorithm, err := NewAlgorithm(name)
		if err != nil {
			return nil, err
		}
		runner.algorithms = append(runner.algorithms, algorithm)
	}
	return runner, nil
}

// Run executes every algorithm in parallel and returns the winning solution
// plus the full per-algorithm trace.
func (runner *Runner) Run(ctx context.Context, problem *Problem) (best *Solution, trace []*Solution, err error) {
	defer mon.Task()(&ctx)(&err)

	solutions := make([]*Solution, len(runner.algorithms))
	var group errgroup.Group
	for i, algorithm := range runner.algorithms {
		i, algorithm := i, algorithm
		group.Go(func() error {
			solution, err := algorithm.Optimize(ctx, problem)
			if err != nil {
				runner.log.Warn("algorithm failed",
					zap.String("algorithm", algorithm.Name()), zap.Error(err))
				return nil
			}
			solutions[i] = solution
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, Error.Wrap(err)
	}

	for _, solution := range solutions {
		if solution == nil || !solution.Selection.Feasible() {
			continue
		}
		trace = append(trace, solution)
		if best == nil || better(solution, best) {
			best = solution
		}
	}
	if best == nil {
		return nil, nil, ErrNoFeasible.New(
			"no algorithm satisfied starlink_min_satellites: %d, oneweb_min_satellites: %d",
			ntn.StarlinkPoolMin, ntn.OneWebPoolMin)
	}

	mon.FloatVal("optimizer_best_fitness").Observe(best.Scores.Fitness)
	runner.log.Info("pool optimization complete",
		zap.String("winner", best.Algorithm),
		zap.Float64("fitness", best.Scores.Fitness),
		zap.Int("starlink", len(best.Selection.Starlink)),
		zap.Int("oneweb", len(best.Selection.OneWeb)),
		zap.Int64("evaluations", problem.Evaluations()))
	return best, trace, nil
}

// better prefers higher fitness; ties go to higher coverage continuity.
func better(a, b *Solution) bool {
	if a.Scores.Fitness != b.Scores.Fitness {
		return a.Scores.Fitness > b.Scores.Fitness
	}
	return a.Scores.CoverageContinuity > b.Scores.CoverageContinuity
}

func capRatio(count, target int) float64 {
	if count >= target {
		return 1
	}
	return float64(count) / float64(target)
}

func randomCount(rng *rand.Rand, min, max, available int) int {
	if max > available {
		max = available
	}
	if max < min {
		return min
	}
	return min + rng.Intn(max-min+1)
}

// pick draws k distinct elements, returned unsorted.
func pick(rng *rand.Rand, pool []ntn.SatelliteID, k int) []ntn.SatelliteID {
	perm := rng.Perm(len(pool))
	if k > len(pool) {
		k = len(pool)
	}
	out := make([]ntn.SatelliteID, k)
	for i := 0; i < k; i++ {
		out[i] = pool[perm[i]]
	}
	return out
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

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
