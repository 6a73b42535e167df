package racers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/racers-go/racers/nn"
)

// smallRunConfig keeps generations short so tests run several of them.
func smallRunConfig() *Config {
	cfg := DefaultConfig()
	cfg.Simulation.PopSize = 8
	cfg.Simulation.GenerationTicks = 90
	cfg.Simulation.Seed = 42
	cfg.Car.Rays = 5
	cfg.Network.HiddenSizes = []int{4}
	cfg.Output.Sink = "memory"
	return cfg
}

func newTestPopulation(t *testing.T, cfg *Config, sink FitnessSink) *Population {
	t.Helper()
	p, err := NewPopulation(cfg, DefaultTrack(), sink)
	require.NoError(t, err)
	p.Output = io.Discard
	return p
}

func brainParams(net *nn.Network) [][]float64 {
	var params [][]float64
	for _, l := range net.Layers {
		params = append(params, l.WeightData(), l.BiasData())
	}
	return params
}

func TestNewPopulation(t *testing.T) {
	cfg := smallRunConfig()
	p := newTestPopulation(t, cfg, nil)

	require.Len(t, p.Cars, cfg.Simulation.PopSize)
	assert.IsType(t, &MemorySink{}, p.Sink)
	assert.Equal(t, int64(42), p.Seed)
	assert.Equal(t, cfg.Simulation.PopSize, p.Alive())
	assert.Nil(t, p.BestBrain)
	for _, c := range p.Cars {
		assert.Equal(t, cfg.LayerSizes(), c.Brain.Shape())
	}

	bad := smallRunConfig()
	bad.Simulation.PopSize = 1
	_, err := NewPopulation(bad, DefaultTrack(), nil)
	assert.Error(t, err)

	_, err = NewPopulation(cfg, nil, nil)
	assert.Error(t, err)
}

func TestZeroBrainsFirstTick(t *testing.T) {
	cfg := pointCarConfig()
	track := squareTrack(t)
	brains := []*nn.Network{zeroBrain(t, cfg), zeroBrain(t, cfg)}

	p, err := NewPopulationWithBrains(cfg, track, nil, brains)
	require.NoError(t, err)
	p.Output = io.Discard

	done, err := p.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, p.Tick)

	dt := cfg.Simulation.DT
	v := 0.5 * cfg.Car.MaxAcc * dt
	v += -v * 0.5 * cfg.Car.BrakingFactor * dt
	v += -v * cfg.Car.FrictionRoad * dt
	for _, c := range p.Cars {
		assert.InDelta(t, 150+v*dt, c.Position.X, 1e-12)
		assert.Equal(t, 100.0, c.Position.Y)
		assert.False(t, c.Crashed)
		assert.Equal(t, cfg.Fitness.PerTick, c.Fitness)
	}

	// the population owns copies of the brains it was given
	assert.NotSame(t, brains[0], p.Cars[0].Brain)
}

func TestNewPopulationWithBrainsChecksCount(t *testing.T) {
	cfg := pointCarConfig()
	_, err := NewPopulationWithBrains(cfg, squareTrack(t), nil, []*nn.Network{zeroBrain(t, cfg)})
	assert.Error(t, err)
}

func TestGenerationEndsOnTickBudget(t *testing.T) {
	cfg := smallRunConfig()
	cfg.Simulation.CrashOffTrack = false
	sink := NewMemorySink()
	p := newTestPopulation(t, cfg, sink)
	firstKeys := map[int]bool{}
	for _, c := range p.Cars {
		firstKeys[c.Key] = true
	}

	stats, err := p.RunGeneration(context.Background())
	require.NoError(t, err)

	// nobody crashes, so the budget ends the generation
	assert.Equal(t, cfg.Simulation.GenerationTicks, stats.Ticks)
	assert.Equal(t, 0, stats.Crashed)
	assert.Equal(t, 0, stats.Generation)
	assert.Equal(t, 1, p.Generation)
	assert.Equal(t, 0, p.Tick)
	assert.Equal(t, cfg.Simulation.GenerationTicks, p.TotalTicks)

	require.Len(t, p.Cars, cfg.Simulation.PopSize)
	for _, c := range p.Cars {
		assert.False(t, firstKeys[c.Key], "car %d survived regeneration", c.Key)
		assert.Len(t, c.ParentKeys, 2)
		assert.Zero(t, c.Fitness)
		assert.False(t, c.Crashed)
	}

	require.Len(t, sink.Records(), 1)
	assert.Equal(t, FitnessRecord{Generation: 0, Best: stats.Best, Mean: stats.Mean}, sink.Records()[0])
	assert.Equal(t, stats.Best, p.BestFitness)
	require.NotNil(t, p.BestBrain)
}

func TestAllCrashedEndsGeneration(t *testing.T) {
	cfg := smallRunConfig()
	p := newTestPopulation(t, cfg, nil)
	for _, c := range p.Cars {
		c.Crashed = true
	}

	done, err := p.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, done)
	require.Len(t, p.History, 1)
	assert.Equal(t, 1, p.History[0].Ticks)
	assert.Equal(t, cfg.Simulation.PopSize, p.History[0].Crashed)
	assert.Equal(t, cfg.Simulation.PopSize, p.Alive())
	assert.Equal(t, 1, p.Generation)
}

func TestCrashedCarsStopMoving(t *testing.T) {
	cfg := smallRunConfig()
	p := newTestPopulation(t, cfg, nil)
	crashed := p.Cars[0]
	crashed.Crashed = true
	pos := crashed.Position

	_, err := p.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pos, crashed.Position)
	assert.Zero(t, crashed.Fitness)
}

func TestOffTrackCarsCrash(t *testing.T) {
	cfg := smallRunConfig()
	p := newTestPopulation(t, cfg, nil)
	lost := p.Cars[0]
	lost.Manual = true
	lost.SetPosition(p.Track.Points()[0].Add(p.Track.Points()[4]).Scale(0.5))
	require.False(t, lost.IsOnTrack(p.Track))

	_, err := p.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, lost.Crashed)
	assert.Zero(t, lost.Fitness)
	assert.Equal(t, cfg.Simulation.PopSize-1, p.Alive())
}

func TestOffTrackCarsKeepDrivingWhenAllowed(t *testing.T) {
	cfg := smallRunConfig()
	cfg.Simulation.CrashOffTrack = false
	p := newTestPopulation(t, cfg, nil)
	lost := p.Cars[0]
	lost.Manual = true
	lost.SetPosition(p.Track.Points()[0].Add(p.Track.Points()[4]).Scale(0.5))

	_, err := p.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, lost.Crashed)
	assert.Zero(t, lost.Fitness)
}

func TestRunIsDeterministicForASeed(t *testing.T) {
	run := func(workers int) *Population {
		cfg := smallRunConfig()
		cfg.Simulation.Workers = workers
		p := newTestPopulation(t, cfg, nil)
		require.NoError(t, p.Run(context.Background(), 3))
		return p
	}

	a, b, parallel := run(1), run(1), run(4)
	require.Len(t, a.History, 3)
	assert.Equal(t, a.History, b.History)
	assert.Equal(t, a.History, parallel.History)
	assert.Equal(t, a.TotalTicks, parallel.TotalTicks)
	for i := range a.Cars {
		assert.Equal(t, brainParams(a.Cars[i].Brain), brainParams(b.Cars[i].Brain))
		assert.Equal(t, brainParams(a.Cars[i].Brain), brainParams(parallel.Cars[i].Brain))
	}
}

func TestBestBrainIsACopy(t *testing.T) {
	p := newTestPopulation(t, smallRunConfig(), nil)
	require.NoError(t, p.Run(context.Background(), 2))
	require.NotNil(t, p.BestBrain)

	for _, c := range p.Cars {
		assert.NotSame(t, c.Brain, p.BestBrain)
	}
	assert.Equal(t, MaxFloat([]float64{p.History[0].Best, p.History[1].Best}), p.BestFitness)
}

func TestRunStopsOnCancel(t *testing.T) {
	p := newTestPopulation(t, smallRunConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.RunGeneration(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, p.Run(ctx, 1), context.Canceled)
	assert.Equal(t, 0, p.Tick)
}

func TestRegenerateLogsProgress(t *testing.T) {
	p := newTestPopulation(t, smallRunConfig(), nil)
	var out bytes.Buffer
	p.Output = &out

	require.NoError(t, p.Run(context.Background(), 1))
	assert.Contains(t, out.String(), "Best of generation 0")
	assert.Contains(t, out.String(), "New best car found!")
	assert.Contains(t, out.String(), "Generation 0 finished")
}

func TestStagnantRunIsRandomized(t *testing.T) {
	cfg := smallRunConfig()
	cfg.Fitness.ResetOnStagnation = true
	cfg.Fitness.MaxStagnation = 2
	p := newTestPopulation(t, cfg, nil)

	// every generation crashes at once with the same fitness
	for gen := 0; gen < 4; gen++ {
		for _, c := range p.Cars {
			c.Crashed = true
		}
		done, err := p.Step(context.Background())
		require.NoError(t, err)
		require.True(t, done)
	}

	require.Len(t, p.History, 4)
	assert.False(t, p.History[0].Regenerated)
	assert.False(t, p.History[1].Regenerated)
	assert.True(t, p.History[2].Regenerated)
	assert.Zero(t, p.History[2].Mutation.Params)
	assert.False(t, p.History[3].Regenerated)
	for _, c := range p.Cars {
		assert.Len(t, c.ParentKeys, 2)
	}
}

type failingSink struct{}

func (failingSink) Append(context.Context, FitnessRecord) error { return errors.New("disk full") }
func (failingSink) Close() error { return nil }

func TestSinkErrorLeavesRunUntouched(t *testing.T) {
	cfg := smallRunConfig()
	p := newTestPopulation(t, cfg, failingSink{})
	var out bytes.Buffer
	p.Output = &out
	p.Cars[3].Fitness = 50
	cars := append([]*Car(nil), p.Cars...)

	err := p.Regenerate(context.Background())
	require.ErrorContains(t, err, "disk full")

	assert.Nil(t, p.BestBrain)
	assert.Zero(t, p.BestFitness)
	assert.Zero(t, p.Generation)
	assert.Empty(t, p.History)
	assert.NotContains(t, out.String(), "New best car found!")
	assert.ElementsMatch(t, cars, p.Cars)
}
