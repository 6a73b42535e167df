package racers

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"

	"github.com/baldhumanity/racers-go/racers/nn"
)

// LayerSaveData is the gob form of an nn.Layer. Matrices are stored as their
// row-major backing data.
type LayerSaveData struct {
	Inputs, Outputs int
	Weights         []float64
	Biases          []float64
	Activation      string
}

// PopulationSaveData holds only the parts of Population needed to resume a
// run. The Config and Track are not saved, they are supplied again on load.
type PopulationSaveData struct {
	Generation     int
	TotalTicks     int
	Seed           int64
	NextKey        int
	Brains         [][]LayerSaveData
	BestBrain      []LayerSaveData // nil until a generation has finished
	BestFitness    float64
	History        []GenerationStats
	FitnessHistory []float64
	LastImproved   int
}

// SaveCheckpoint saves the current generation's brains and the run counters
// to a gzip compressed gob file. Call it between generations; fitness earned
// by the cars of an unfinished generation is not saved.
func (p *Population) SaveCheckpoint(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", filePath, err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)

	saveData := PopulationSaveData{
		Generation:     p.Generation,
		TotalTicks:     p.TotalTicks,
		Seed:           p.Seed,
		NextKey:        p.Reproduction.NextKey,
		Brains:         make([][]LayerSaveData, len(p.Cars)),
		BestFitness:    p.BestFitness,
		History:        p.History,
		FitnessHistory: p.Stagnation.FitnessHistory,
		LastImproved:   p.Stagnation.LastImproved,
	}
	for i, c := range p.Cars {
		saveData.Brains[i] = encodeNetwork(c.Brain)
	}
	if p.BestBrain != nil {
		saveData.BestBrain = encodeNetwork(p.BestBrain)
	}

	if err := gob.NewEncoder(gzWriter).Encode(saveData); err != nil {
		return fmt.Errorf("failed to encode population data: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush checkpoint '%s': %w", filePath, err)
	}

	fmt.Fprintf(p.Output, "Checkpoint saved to %s\n", filePath)
	return nil
}

// LoadCheckpoint restores a Population from a checkpoint file. The config and
// track must describe the same brain topology as the run that wrote it.
func LoadCheckpoint(checkpointPath string, config *Config, track *Track, sink FitnessSink) (*Population, error) {
	file, err := os.Open(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file '%s': %w", checkpointPath, err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gzReader.Close()

	var saveData PopulationSaveData
	if err := gob.NewDecoder(gzReader).Decode(&saveData); err != nil {
		return nil, fmt.Errorf("failed to decode population data from checkpoint: %w", err)
	}
	if len(saveData.Brains) != config.Simulation.PopSize {
		return nil, fmt.Errorf("checkpoint holds %d brains, config expects a population of %d",
			len(saveData.Brains), config.Simulation.PopSize)
	}

	p, err := newPopulation(config, track, sink)
	if err != nil {
		return nil, err
	}

	brains := make([]*nn.Network, len(saveData.Brains))
	for i, layers := range saveData.Brains {
		if brains[i], err = decodeNetwork(layers); err != nil {
			return nil, fmt.Errorf("brain %d: %w", i, err)
		}
	}
	if saveData.BestBrain != nil {
		if p.BestBrain, err = decodeNetwork(saveData.BestBrain); err != nil {
			return nil, fmt.Errorf("best brain: %w", err)
		}
	}

	// The generator state is not saved; reseeding per generation keeps resumed
	// runs reproducible without replaying the stream of the first generation.
	p.Seed = saveData.Seed
	p.rng = rand.New(rand.NewSource(saveData.Seed + int64(saveData.Generation)))
	p.Reproduction = NewReproduction(config, p.rng)
	p.Reproduction.NextKey = saveData.NextKey
	if p.Cars, err = p.Reproduction.Spawn(track, brains); err != nil {
		return nil, fmt.Errorf("failed to spawn checkpointed population: %w", err)
	}

	p.Generation = saveData.Generation
	p.TotalTicks = saveData.TotalTicks
	p.BestFitness = saveData.BestFitness
	p.History = saveData.History
	p.Stagnation.FitnessHistory = saveData.FitnessHistory
	p.Stagnation.LastImproved = saveData.LastImproved
	p.Stagnation.BestFitness = MaxFloat(saveData.FitnessHistory)

	fmt.Fprintf(p.Output, "Checkpoint loaded from %s (Generation %d)\n", checkpointPath, p.Generation)
	return p, nil
}

func encodeNetwork(net *nn.Network) []LayerSaveData {
	layers := make([]LayerSaveData, len(net.Layers))
	for i, l := range net.Layers {
		layers[i] = LayerSaveData{
			Inputs:     l.InputSize(),
			Outputs:    l.OutputSize(),
			Weights:    append([]float64(nil), l.WeightData()...),
			Biases:     append([]float64(nil), l.BiasData()...),
			Activation: l.Activation,
		}
	}
	return layers
}

func decodeNetwork(layers []LayerSaveData) (*nn.Network, error) {
	net := nn.NewNetwork()
	for i, ld := range layers {
		l, err := nn.NewLayer(ld.Inputs, ld.Outputs, ld.Activation)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if len(ld.Weights) != len(l.WeightData()) || len(ld.Biases) != len(l.BiasData()) {
			return nil, fmt.Errorf("layer %d: %w: stored parameters do not fit %dx%d",
				i, nn.ErrShapeMismatch, ld.Outputs, ld.Inputs)
		}
		copy(l.WeightData(), ld.Weights)
		copy(l.BiasData(), ld.Biases)
		if err := net.AddLayer(l); err != nil {
			return nil, err
		}
	}
	return net, nil
}
