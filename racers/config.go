package racers

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/baldhumanity/racers-go/racers/nn"
)

// Config stores the configuration parameters for a simulation run.
// All values are fixed at construction; nothing is reconfigured mid-generation.
type Config struct {
	Simulation SimulationConfig
	Car        CarConfig
	Network    NetworkConfig
	Mutation   MutationConfig
	Fitness    FitnessConfig
	Output     OutputConfig
}

// SimulationConfig holds parameters of the generation loop and the play area.
type SimulationConfig struct {
	PopSize         int     `ini:"pop_size"`
	GenerationTicks int     `ini:"generation_ticks"` // tick budget per generation
	DT              float64 `ini:"dt"`               // seconds per tick
	Seed            int64   `ini:"seed"`             // 0 picks a time based seed
	AreaWidth       float64 `ini:"area_width"`
	AreaHeight      float64 `ini:"area_height"`
	Workers         int     `ini:"workers"`         // goroutines used to update cars within a tick
	CrashOffTrack   bool    `ini:"crash_off_track"` // false keeps off-track cars driving on grass
	TrackFile       string  `ini:"track_file"`      // YAML track, empty uses DefaultTrack
}

// CarConfig holds the physical and sensor constants shared by every car.
type CarConfig struct {
	Rays          int     `ini:"rays"`
	FOV           float64 `ini:"fov"` // degrees
	MaxSpeed      float64 `ini:"max_speed"`
	MaxAcc        float64 `ini:"max_acc"`
	MaxSteerAngle float64 `ini:"max_steer_angle"` // degrees
	SteerWeight   float64 `ini:"steer_weight"`    // degrees of steer at full lock
	FrictionRoad  float64 `ini:"friction_road"`
	FrictionGrass float64 `ini:"friction_grass"`
	BrakingFactor float64 `ini:"braking_factor"`
	HitboxWidth   float64 `ini:"hitbox_width"`
	HitboxHeight  float64 `ini:"hitbox_height"`
}

// NetworkConfig holds the brain topology and its initialization bounds.
type NetworkConfig struct {
	HiddenSizes      []int   `ini:"hidden_sizes" delim:" "` // Space-separated list
	HiddenActivation string  `ini:"hidden_activation"`
	OutputActivation string  `ini:"output_activation"`
	WeightMin        float64 `ini:"weight_min"`
	WeightMax        float64 `ini:"weight_max"`
	BiasMin          float64 `ini:"bias_min"`
	BiasMax          float64 `ini:"bias_max"`
}

// MutationConfig holds the per-parameter mutation probabilities and magnitudes.
type MutationConfig struct {
	ResetProb  float64 `ini:"reset_prob"`
	NudgeProb  float64 `ini:"nudge_prob"`
	ResetMin   float64 `ini:"reset_min"`
	ResetMax   float64 `ini:"reset_max"`
	NudgePower float64 `ini:"nudge_power"` // nudges are uniform in [-power, power]
}

// FitnessConfig holds the reward scheme and stagnation handling.
type FitnessConfig struct {
	PerTick           float64 `ini:"per_tick"`
	PerSector         float64 `ini:"per_sector"`
	PerLap            float64 `ini:"per_lap"`
	ResetOnStagnation bool    `ini:"reset_on_stagnation"`
	MaxStagnation     int     `ini:"max_stagnation"`
}

// OutputConfig names the artifacts a run produces.
type OutputConfig struct {
	Sink       string `ini:"sink"` // file, sqlite or memory
	FitnessLog string `ini:"fitness_log"`
	Plot       string `ini:"plot"`
	Checkpoint string `ini:"checkpoint"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			PopSize:         125,
			GenerationTicks: 1200,
			DT:              1.0 / 60.0,
			AreaWidth:       1200,
			AreaHeight:      800,
			Workers:         1,
			CrashOffTrack:   true,
		},
		Car: CarConfig{
			Rays:          12,
			FOV:           200,
			MaxSpeed:      350,
			MaxAcc:        400,
			MaxSteerAngle: 40,
			SteerWeight:   30,
			FrictionRoad:  0.88,
			FrictionGrass: 0.08,
			BrakingFactor: 0.9,
			HitboxWidth:   30,
			HitboxHeight:  60,
		},
		Network: NetworkConfig{
			HiddenSizes:      []int{8, 5},
			HiddenActivation: nn.ActivationIdentity,
			OutputActivation: nn.ActivationSigmoid,
			WeightMin:        -1,
			WeightMax:        1,
			BiasMin:          -1,
			BiasMax:          1,
		},
		Mutation: MutationConfig{
			ResetProb:  0.02,
			NudgeProb:  0.03,
			ResetMin:   -1,
			ResetMax:   1,
			NudgePower: 0.1,
		},
		Fitness: FitnessConfig{
			PerTick:       1,
			PerSector:     10,
			PerLap:        100,
			MaxStagnation: 15,
		},
		Output: OutputConfig{
			Sink:       "file",
			FitnessLog: "fitness.log",
		},
	}
}

// LoadConfig loads configuration parameters from an INI file.
// Keys missing from the file keep their DefaultConfig value.
func LoadConfig(filePath string) (*Config, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true, // Allow # comments starting with # or ;
		UnescapeValueCommentSymbols: true, // If # or ; appear in value, treat as value
	}, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}

	config := DefaultConfig()

	// Map sections to structs
	sections := []struct {
		name   string
		target interface{}
	}{
		{"Simulation", &config.Simulation},
		{"Car", &config.Car},
		{"Network", &config.Network},
		{"Mutation", &config.Mutation},
		{"Fitness", &config.Fitness},
		{"Output", &config.Output},
	}
	for _, s := range sections {
		if !cfg.HasSection(s.name) {
			continue
		}
		if err := cfg.Section(s.name).MapTo(s.target); err != nil {
			return nil, fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}

	// --- Explicitly clean potentially problematic string values ---
	config.Simulation.TrackFile = cleanIniString(config.Simulation.TrackFile)
	config.Network.HiddenActivation = cleanIniString(config.Network.HiddenActivation)
	config.Network.OutputActivation = cleanIniString(config.Network.OutputActivation)
	config.Output.Sink = strings.ToLower(cleanIniString(config.Output.Sink))
	config.Output.FitnessLog = cleanIniString(config.Output.FitnessLog)
	config.Output.Plot = cleanIniString(config.Output.Plot)
	config.Output.Checkpoint = cleanIniString(config.Output.Checkpoint)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every value for range and consistency errors.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.PopSize < 2 {
		return fmt.Errorf("config error: pop_size must be at least 2 to pick two parents")
	}
	if s.GenerationTicks <= 0 {
		return fmt.Errorf("config error: generation_ticks must be positive")
	}
	if s.DT <= 0 {
		return fmt.Errorf("config error: dt must be positive")
	}
	if s.AreaWidth <= 0 || s.AreaHeight <= 0 {
		return fmt.Errorf("config error: area_width and area_height must be positive")
	}
	if s.Workers < 0 {
		return fmt.Errorf("config error: workers cannot be negative")
	}

	car := c.Car
	if car.Rays <= 0 {
		return fmt.Errorf("config error: rays must be positive")
	}
	if car.FOV <= 0 || car.FOV > 360 {
		return fmt.Errorf("config error: fov must be in (0, 360]")
	}
	if car.MaxSpeed <= 0 || car.MaxAcc <= 0 {
		return fmt.Errorf("config error: max_speed and max_acc must be positive")
	}
	if car.MaxSteerAngle <= 0 || car.SteerWeight <= 0 {
		return fmt.Errorf("config error: max_steer_angle and steer_weight must be positive")
	}
	if car.FrictionRoad < 0 || car.FrictionGrass < 0 || car.BrakingFactor < 0 {
		return fmt.Errorf("config error: friction and braking coefficients cannot be negative")
	}
	if car.HitboxWidth < 0 || car.HitboxHeight < 0 {
		return fmt.Errorf("config error: hitbox dimensions cannot be negative")
	}
	if car.HitboxWidth > s.AreaWidth || car.HitboxHeight > s.AreaHeight {
		return fmt.Errorf("config error: hitbox does not fit in the play area")
	}

	n := c.Network
	for _, h := range n.HiddenSizes {
		if h <= 0 {
			return fmt.Errorf("config error: hidden_sizes must all be positive, got %v", n.HiddenSizes)
		}
	}
	if _, err := nn.GetActivation(n.HiddenActivation); err != nil {
		return fmt.Errorf("config error: hidden_activation: %w", err)
	}
	if _, err := nn.GetActivation(n.OutputActivation); err != nil {
		return fmt.Errorf("config error: output_activation: %w", err)
	}
	if n.WeightMax < n.WeightMin {
		return fmt.Errorf("config error: weight_max cannot be less than weight_min")
	}
	if n.BiasMax < n.BiasMin {
		return fmt.Errorf("config error: bias_max cannot be less than bias_min")
	}

	m := c.Mutation
	if m.ResetProb < 0 || m.ResetProb > 1 {
		return fmt.Errorf("config error: reset_prob must be between 0 and 1")
	}
	if m.NudgeProb < 0 || m.NudgeProb > 1 {
		return fmt.Errorf("config error: nudge_prob must be between 0 and 1")
	}
	if m.ResetMax < m.ResetMin {
		return fmt.Errorf("config error: reset_max cannot be less than reset_min")
	}
	if m.NudgePower < 0 {
		return fmt.Errorf("config error: nudge_power cannot be negative")
	}

	f := c.Fitness
	if f.PerTick < 0 || f.PerSector < 0 || f.PerLap < 0 {
		return fmt.Errorf("config error: fitness rewards cannot be negative")
	}
	if f.ResetOnStagnation && f.MaxStagnation <= 0 {
		return fmt.Errorf("config error: max_stagnation must be positive when reset_on_stagnation is set")
	}

	validSinks := map[string]bool{"": true, "file": true, "sqlite": true, "memory": true}
	if !validSinks[c.Output.Sink] {
		return fmt.Errorf("config error: invalid sink '%s', must be one of 'file', 'sqlite', 'memory'", c.Output.Sink)
	}
	return nil
}

// NumInputs is the length of the feature vector fed to every brain:
// one reading per ray plus six kinematic features.
func (c *Config) NumInputs() int {
	return c.Car.Rays + kinematicFeatures
}

// LayerSizes returns the brain topology, inputs first.
func (c *Config) LayerSizes() []int {
	sizes := []int{c.NumInputs()}
	sizes = append(sizes, c.Network.HiddenSizes...)
	return append(sizes, numOutputs)
}

// NetworkInit returns the bounds for freshly drawn parameters.
func (c *Config) NetworkInit() nn.Init {
	return nn.Init{
		WeightMin: c.Network.WeightMin,
		WeightMax: c.Network.WeightMax,
		BiasMin:   c.Network.BiasMin,
		BiasMax:   c.Network.BiasMax,
	}
}

// Area returns the playable field.
func (c *Config) Area() Area {
	return Area{Width: c.Simulation.AreaWidth, Height: c.Simulation.AreaHeight}
}

// cleanIniString removes inline comments and trims whitespace from a string read from INI.
func cleanIniString(s string) string {
	// Remove comments starting with # or ;
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
