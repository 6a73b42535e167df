package racers

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/baldhumanity/racers-go/racers/nn"
)

// Population holds the state of the evolutionary process: the shared track,
// the cars of the current generation and the counters that drive the
// Running -> Regenerating cycle. It has a single owner; methods are not safe
// for concurrent use.
type Population struct {
	Config       *Config
	Track        *Track
	Cars         []*Car // Current generation, always Config.Simulation.PopSize long
	Reproduction *Reproduction
	Stagnation   *Stagnation
	Sink         FitnessSink
	Generation   int
	Tick         int // ticks run in the current generation
	TotalTicks   int
	History      []GenerationStats
	BestBrain    *nn.Network // Best brain found so far (a private copy)
	BestFitness  float64
	Seed         int64
	Output       io.Writer // progress messages, defaults to os.Stdout

	rng      *rand.Rand
	genStart time.Time
}

// NewPopulation creates a new Population with random brains.
// A nil sink keeps fitness records in memory.
func NewPopulation(config *Config, track *Track, sink FitnessSink) (*Population, error) {
	p, err := newPopulation(config, track, sink)
	if err != nil {
		return nil, err
	}
	cars, err := p.Reproduction.CreateNewPopulation(track, config.Simulation.PopSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial population: %w", err)
	}
	p.Cars = cars
	return p, nil
}

// NewPopulationWithBrains creates a Population whose first generation drives
// the given brains. Each brain is cloned so the caller keeps ownership.
func NewPopulationWithBrains(config *Config, track *Track, sink FitnessSink, brains []*nn.Network) (*Population, error) {
	if len(brains) != config.Simulation.PopSize {
		return nil, fmt.Errorf("got %d brains for a population of %d", len(brains), config.Simulation.PopSize)
	}
	p, err := newPopulation(config, track, sink)
	if err != nil {
		return nil, err
	}
	owned := make([]*nn.Network, len(brains))
	for i, b := range brains {
		owned[i] = b.Clone()
	}
	cars, err := p.Reproduction.Spawn(track, owned)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn population: %w", err)
	}
	p.Cars = cars
	return p, nil
}

func newPopulation(config *Config, track *Track, sink FitnessSink) (*Population, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if track == nil {
		return nil, fmt.Errorf("track is required")
	}
	if sink == nil {
		sink = NewMemorySink()
	}
	seed := config.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	return &Population{
		Config:       config,
		Track:        track,
		Reproduction: NewReproduction(config, rng),
		Stagnation:   NewStagnation(&config.Fitness),
		Sink:         sink,
		BestFitness:  math.Inf(-1),
		Seed:         seed,
		Output:       os.Stdout,
		rng:          rng,
	}, nil
}

// Alive returns the number of cars that have not crashed.
func (p *Population) Alive() int {
	n := 0
	for _, c := range p.Cars {
		if !c.Crashed {
			n++
		}
	}
	return n
}

// Step advances the simulation by one tick. It reports true when the tick
// ended the generation, in which case Cars already holds the next one.
func (p *Population) Step(ctx context.Context) (bool, error) {
	if p.Tick == 0 {
		fmt.Fprintf(p.Output, "****** Generation %d ******\n", p.Generation)
		p.genStart = time.Now()
	}
	p.updateCars()

	for _, c := range p.Cars {
		if c.Crashed {
			continue
		}
		if c.IsOnTrack(p.Track) {
			c.score(p.Track, &p.Config.Fitness)
		} else if p.Config.Simulation.CrashOffTrack {
			c.Crashed = true
		}
	}
	p.Tick++
	p.TotalTicks++

	if p.Tick >= p.Config.Simulation.GenerationTicks || p.Alive() == 0 {
		return true, p.Regenerate(ctx)
	}
	return false, nil
}

// updateCars runs Update on every alive car, split across Workers goroutines.
// Each car only touches its own state and the read-only track, so chunks need
// no locking; the WaitGroup is the barrier before the tick is evaluated.
func (p *Population) updateCars() {
	dt := p.Config.Simulation.DT
	alive := make([]*Car, 0, len(p.Cars))
	for _, c := range p.Cars {
		if !c.Crashed {
			alive = append(alive, c)
		}
	}

	workers := p.Config.Simulation.Workers
	if workers <= 1 || len(alive) < 2 {
		for _, c := range alive {
			c.Update(p.Track, dt)
		}
		return
	}

	chunk := (len(alive) + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < len(alive); start += chunk {
		end := min(start+chunk, len(alive))
		wg.Add(1)
		go func(cars []*Car) {
			defer wg.Done()
			for _, c := range cars {
				c.Update(p.Track, dt)
			}
		}(alive[start:end])
	}
	wg.Wait()
}

// Regenerate ends the current generation: it ranks the cars, logs the best
// fitness to the sink and replaces every car with a child of the two fittest.
func (p *Population) Regenerate(ctx context.Context) error {
	SortByFitness(p.Cars)
	stats := summarize(p.Generation, p.Tick, p.Cars)

	// Nothing is updated until the record is stored.
	if err := p.Sink.Append(ctx, FitnessRecord{Generation: p.Generation, Best: stats.Best, Mean: stats.Mean}); err != nil {
		return fmt.Errorf("failed to log fitness for generation %d: %w", p.Generation, err)
	}

	best := p.Cars[0]
	if best.Fitness > p.BestFitness {
		p.BestFitness = best.Fitness
		p.BestBrain = best.Brain.Clone()
		fmt.Fprintf(p.Output, " New best car found! Key: %d, Fitness: %.0f, Laps: %d\n", best.Key, best.Fitness, best.Laps)
	}
	fmt.Fprintf(p.Output, " Best of generation %d: Key: %d, Fitness: %.0f, Mean: %.2f, Crashed: %d/%d\n",
		p.Generation, best.Key, best.Fitness, stats.Mean, stats.Crashed, len(p.Cars))

	var next []*Car
	var err error
	if p.Stagnation.Update(p.Generation, stats.Best) {
		fmt.Fprintf(p.Output, " No improvement for %d generations, resetting population.\n", p.Config.Fitness.MaxStagnation)
		next, err = p.Reproduction.CreateNewPopulation(p.Track, p.Config.Simulation.PopSize)
		stats.Regenerated = true
	} else {
		next, stats.Mutation, err = p.Reproduction.Reproduce(p.Track, p.Cars, p.Config.Simulation.PopSize)
	}
	if err != nil {
		return fmt.Errorf("reproduction failed in generation %d: %w", p.Generation, err)
	}

	p.History = append(p.History, stats)
	fmt.Fprintf(p.Output, "Generation %d finished in %s (%s ticks, %s total)\n\n",
		p.Generation, time.Since(p.genStart).Round(time.Millisecond),
		humanize.Comma(int64(p.Tick)), humanize.Comma(int64(p.TotalTicks)))

	p.Cars = next
	p.Tick = 0
	p.Generation++
	return nil
}

// RunGeneration steps until the current generation ends and returns its stats.
func (p *Population) RunGeneration(ctx context.Context) (GenerationStats, error) {
	for {
		if err := ctx.Err(); err != nil {
			return GenerationStats{}, err
		}
		done, err := p.Step(ctx)
		if err != nil {
			return GenerationStats{}, err
		}
		if done {
			return p.History[len(p.History)-1], nil
		}
	}
}

// Run evolves the population for the given number of generations.
func (p *Population) Run(ctx context.Context, generations int) error {
	for i := 0; i < generations; i++ {
		if _, err := p.RunGeneration(ctx); err != nil {
			return fmt.Errorf("generation %d failed: %w", p.Generation, err)
		}
	}
	return nil
}

// Brains returns the brains of the current generation, in car order.
func (p *Population) Brains() []*nn.Network {
	brains := make([]*nn.Network, len(p.Cars))
	for i, c := range p.Cars {
		brains[i] = c.Brain
	}
	return brains
}
