package racers

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/baldhumanity/racers-go/racers/nn"
)

// Reproduction handles the creation of new brains, either from scratch or
// through crossover and mutation of the two fittest cars.
type Reproduction struct {
	Config    *Config
	NextKey   int           // State for the next car key
	Ancestors map[int][]int // Map car key -> parent keys (for tracking lineage)
	rng       *rand.Rand
}

// NewReproduction creates a new reproduction manager drawing from rng.
func NewReproduction(config *Config, rng *rand.Rand) *Reproduction {
	return &Reproduction{
		Config:    config,
		NextKey:   1, // Start car keys at 1
		Ancestors: make(map[int][]int),
		rng:       rng,
	}
}

// getNextKey gets the next available car key and increments the internal counter.
func (r *Reproduction) getNextKey() int {
	key := r.NextKey
	r.NextKey++
	return key
}

// RandomBrain creates a brain of the configured topology with fresh parameters.
func (r *Reproduction) RandomBrain() (*nn.Network, error) {
	n := r.Config.Network
	return nn.New(r.Config.LayerSizes(), n.HiddenActivation, n.OutputActivation, r.Config.NetworkInit(), r.rng)
}

// CreateNewPopulation creates popSize cars with random brains.
func (r *Reproduction) CreateNewPopulation(track *Track, popSize int) ([]*Car, error) {
	brains := make([]*nn.Network, popSize)
	for i := range brains {
		brain, err := r.RandomBrain()
		if err != nil {
			return nil, fmt.Errorf("failed to create brain: %w", err)
		}
		brains[i] = brain
	}
	return r.Spawn(track, brains)
}

// Spawn places one new car per brain at the start of the track.
func (r *Reproduction) Spawn(track *Track, brains []*nn.Network) ([]*Car, error) {
	cars := make([]*Car, len(brains))
	newAncestors := make(map[int][]int, len(brains))
	for i, brain := range brains {
		car, err := NewCar(r.getNextKey(), brain, track, r.Config)
		if err != nil {
			return nil, err
		}
		cars[i] = car
		newAncestors[car.Key] = []int{} // No parents for spawned brains
	}
	r.Ancestors = newAncestors
	return cars, nil
}

// Reproduce sorts cars by fitness and breeds popSize children from the two
// fittest. Every child is a crossover of the same two parents followed by
// mutation. The parents' brains are read, never modified.
func (r *Reproduction) Reproduce(track *Track, cars []*Car, popSize int) ([]*Car, MutationStats, error) {
	var stats MutationStats
	if len(cars) < 2 {
		return nil, stats, fmt.Errorf("need at least two cars to reproduce, got %d", len(cars))
	}

	SortByFitness(cars)
	parent1, parent2 := cars[0], cars[1]

	children := make([]*Car, popSize)
	newAncestors := make(map[int][]int, popSize)
	for i := range children {
		brain, err := Crossover(parent1.Brain, parent2.Brain, r.rng)
		if err != nil {
			return nil, stats, fmt.Errorf("crossover of %d and %d failed: %w", parent1.Key, parent2.Key, err)
		}
		stats.Add(Mutate(brain, &r.Config.Mutation, r.rng))

		child, err := NewCar(r.getNextKey(), brain, track, r.Config)
		if err != nil {
			return nil, stats, err
		}
		child.ParentKeys = []int{parent1.Key, parent2.Key}
		children[i] = child
		newAncestors[child.Key] = child.ParentKeys
	}
	r.Ancestors = newAncestors // Update ancestor tracking for the new generation
	return children, stats, nil
}

// SortByFitness orders cars from fittest to weakest. Equal fitness keeps the
// existing order.
func SortByFitness(cars []*Car) {
	sort.SliceStable(cars, func(i, j int) bool {
		return cars[i].Fitness > cars[j].Fitness
	})
}

// CrossoverPoint holds the per-layer indices used by single point crossover.
type CrossoverPoint struct {
	Weight int // last flattened weight index taken from the second parent
	Bias   int // last bias index taken from the second parent
}

// Crossover builds a child from two parents of identical shape. For each
// layer one index is drawn in the flattened weights and one independently in
// the biases; every parameter at or before its index comes from parent2, the
// rest from parent1. Neither parent is modified.
func Crossover(parent1, parent2 *nn.Network, rng *rand.Rand) (*nn.Network, error) {
	if !parent1.SameShape(parent2) {
		return nil, fmt.Errorf("%w: parents %v and %v", nn.ErrShapeMismatch, parent1.Shape(), parent2.Shape())
	}
	points := make([]CrossoverPoint, len(parent1.Layers))
	for i, l := range parent1.Layers {
		points[i] = CrossoverPoint{
			Weight: rng.Intn(len(l.WeightData())),
			Bias:   rng.Intn(len(l.BiasData())),
		}
	}
	return CrossoverAt(parent1, parent2, points)
}

// CrossoverAt is Crossover with caller supplied indices, one point per layer.
func CrossoverAt(parent1, parent2 *nn.Network, points []CrossoverPoint) (*nn.Network, error) {
	if !parent1.SameShape(parent2) {
		return nil, fmt.Errorf("%w: parents %v and %v", nn.ErrShapeMismatch, parent1.Shape(), parent2.Shape())
	}
	if len(points) != len(parent1.Layers) {
		return nil, fmt.Errorf("%w: %d crossover points for %d layers", nn.ErrShapeMismatch, len(points), len(parent1.Layers))
	}

	child := parent1.Clone()
	for i, l := range child.Layers {
		src := parent2.Layers[i]
		p := points[i]
		if p.Weight < 0 || p.Weight >= len(l.WeightData()) || p.Bias < 0 || p.Bias >= len(l.BiasData()) {
			return nil, fmt.Errorf("crossover point %+v out of range for layer %d", p, i)
		}
		copy(l.WeightData()[:p.Weight+1], src.WeightData()[:p.Weight+1])
		copy(l.BiasData()[:p.Bias+1], src.BiasData()[:p.Bias+1])
	}
	return child, nil
}

// MutationStats counts what Mutate did.
type MutationStats struct {
	Params int // parameters visited
	Resets int // parameters replaced by a fresh value
	Nudges int // parameters perturbed
}

// Add accumulates other into s.
func (s *MutationStats) Add(other MutationStats) {
	s.Params += other.Params
	s.Resets += other.Resets
	s.Nudges += other.Nudges
}

// Mutate visits every weight and bias of net. With probability ResetProb a
// parameter is replaced by a uniform draw from [ResetMin, ResetMax]; then,
// independently, with probability NudgeProb a uniform draw from
// [-NudgePower, NudgePower] is added. Both can fire on the same parameter.
func Mutate(net *nn.Network, cfg *MutationConfig, rng *rand.Rand) MutationStats {
	var stats MutationStats
	for _, l := range net.Layers {
		stats.Add(mutateParams(l.WeightData(), cfg, rng))
		stats.Add(mutateParams(l.BiasData(), cfg, rng))
	}
	return stats
}

func mutateParams(params []float64, cfg *MutationConfig, rng *rand.Rand) MutationStats {
	stats := MutationStats{Params: len(params)}
	for i := range params {
		if rng.Float64() < cfg.ResetProb {
			params[i] = cfg.ResetMin + rng.Float64()*(cfg.ResetMax-cfg.ResetMin)
			stats.Resets++
		}
		if rng.Float64() < cfg.NudgeProb {
			params[i] += (rng.Float64()*2 - 1) * cfg.NudgePower
			stats.Nudges++
		}
	}
	return stats
}
