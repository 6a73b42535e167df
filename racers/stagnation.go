package racers

import "math"

// Stagnation tracks how long the run has gone without a new best fitness.
type Stagnation struct {
	Config         *FitnessConfig
	FitnessHistory []float64 // best fitness of every finished generation
	BestFitness    float64
	LastImproved   int // generation that set BestFitness
}

// NewStagnation creates a new stagnation tracker.
func NewStagnation(config *FitnessConfig) *Stagnation {
	return &Stagnation{
		Config:      config,
		BestFitness: math.Inf(-1),
	}
}

// Update records the best fitness of generation and reports whether the run
// has now stagnated: no improvement for MaxStagnation generations while
// ResetOnStagnation is enabled. The counter restarts after a stagnant report
// so a reset gets a full window to improve.
func (s *Stagnation) Update(generation int, best float64) bool {
	s.FitnessHistory = append(s.FitnessHistory, best)
	if best > s.BestFitness {
		s.BestFitness = best
		s.LastImproved = generation
		return false
	}
	if !s.Config.ResetOnStagnation {
		return false
	}
	if s.StagnantFor(generation) >= s.Config.MaxStagnation {
		s.LastImproved = generation
		return true
	}
	return false
}

// StagnantFor returns the number of generations since the best fitness last improved.
func (s *Stagnation) StagnantFor(generation int) int {
	return generation - s.LastImproved
}
