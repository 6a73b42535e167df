package racers

import (
	"math"
	"sort"
)

// --- Statistical Functions ---

// Mean calculates the average of a slice of float64 values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	return Sum(values) / float64(len(values))
}

// Stdev calculates the sample standard deviation of a slice of float64 values.
func Stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0.0 // Standard deviation is undefined for less than 2 values
	}
	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

// Sum calculates the sum of a slice of float64 values.
func Sum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// MaxFloat calculates the maximum value in a slice of float64 values.
// Returns negative infinity if the slice is empty.
func MaxFloat(values []float64) float64 {
	maxVal := math.Inf(-1)
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	return maxVal
}

// Median calculates the median of a slice of float64 values.
// Returns NaN if the slice is empty.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}

	// Sort a copy to avoid modifying the original slice
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2.0
}

// GenerationStats summarizes one finished generation.
type GenerationStats struct {
	Generation  int
	Best        float64
	Mean        float64
	Stdev       float64
	Median      float64
	BestKey     int // key of the fittest car
	Crashed     int // cars that crashed before the generation ended
	MaxLaps     int
	Ticks       int // ticks the generation ran for
	Mutation    MutationStats
	Regenerated bool // next generation was randomized after stagnation
}

// summarize computes GenerationStats over cars, which must be sorted fittest first.
func summarize(generation, ticks int, cars []*Car) GenerationStats {
	fitnesses := make([]float64, len(cars))
	stats := GenerationStats{Generation: generation, Ticks: ticks}
	for i, c := range cars {
		fitnesses[i] = c.Fitness
		if c.Crashed {
			stats.Crashed++
		}
		if c.Laps > stats.MaxLaps {
			stats.MaxLaps = c.Laps
		}
	}
	if len(cars) > 0 {
		stats.BestKey = cars[0].Key
	}
	stats.Best = MaxFloat(fitnesses)
	stats.Mean = Mean(fitnesses)
	stats.Stdev = Stdev(fitnesses)
	stats.Median = Median(fitnesses)
	return stats
}
