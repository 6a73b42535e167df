package racers

import (
	"fmt"
	"math"

	"github.com/baldhumanity/racers-go/racers/geom"
	"github.com/baldhumanity/racers-go/racers/nn"
)

const (
	// kinematicFeatures is the number of non-ray inputs: velocity x/y,
	// acceleration x/y, steer and sin(angle).
	kinematicFeatures = 6
	// numOutputs is accelerator, steering and brakes.
	numOutputs = 3
	// turnRate scales dt into the heading interpolation weight.
	turnRate = 6.0
)

// Area is the playable field. Cars are clamped inside it.
type Area struct {
	Width, Height float64
}

// Control is one input channel of a car. Its weight is always kept inside
// [Min, Max] and falls back to Default after every tick.
type Control struct {
	Min, Max, Default float64
	Weight            float64
}

// Set clamps v into the channel's range and stores it.
func (c *Control) Set(v float64) {
	c.Weight = geom.Clamp(v, c.Min, c.Max)
}

// Reset restores the default weight.
func (c *Control) Reset() {
	c.Weight = c.Default
}

func pedal() Control {
	return Control{Min: 0, Max: 1}
}

// Car is a single vehicle driven by its own network.
type Car struct {
	Key        int   // Unique identifier for this car across the run.
	ParentKeys []int // Keys of the two cars this one was bred from, empty for random brains.

	// Position is the top-left corner of the hitbox.
	Position     geom.Vec
	Velocity     geom.Vec
	Acceleration geom.Vec
	Direction    geom.Vec
	Angle        float64 // heading in radians
	Steer        float64 // steering angle applied on the last tick, radians

	Hitbox geom.Rect
	Brain  *nn.Network

	Accelerator Control
	Steering    Control
	Brakes      Control

	// Manual cars skip the network; something outside the simulation sets the
	// control channels through SetControls before every tick.
	Manual bool

	Fitness float64
	Crashed bool
	Laps    int
	Sector  int // sector the car is currently in
	Ticks   int // ticks survived

	checkpoint int // last sector that was rewarded
	cfg        *CarConfig
	sensor     Sensor
	area       Area
}

// NewCar places a car with the given brain at the track's start pose.
// The brain must accept the feature vector described by cfg.
func NewCar(key int, brain *nn.Network, track *Track, cfg *Config) (*Car, error) {
	if brain == nil {
		return nil, fmt.Errorf("car %d: brain is nil", key)
	}
	if brain.InputSize() != cfg.NumInputs() || brain.OutputSize() != numOutputs {
		return nil, fmt.Errorf("car %d: %w: brain shape %v does not fit %d inputs and %d outputs",
			key, nn.ErrShapeMismatch, brain.Shape(), cfg.NumInputs(), numOutputs)
	}

	start, angle := track.StartPose()
	w, h := cfg.Car.HitboxWidth, cfg.Car.HitboxHeight
	c := &Car{
		Key:         key,
		Position:    geom.V(start.X-w/2, start.Y-h/2),
		Angle:       angle,
		Direction:   geom.FromAngle(angle),
		Hitbox:      geom.Rect{X: start.X - w/2, Y: start.Y - h/2, W: w, H: h},
		Brain:       brain,
		Accelerator: pedal(),
		Brakes:      pedal(),
		Steering:    Control{Min: -1, Max: 1},
		cfg:         &cfg.Car,
		sensor: Sensor{
			Rays:  cfg.Car.Rays,
			FOV:   cfg.Car.FOV,
			Range: cfg.Simulation.AreaWidth,
		},
		area: cfg.Area(),
	}
	c.Sector = track.Sector(c.Center())
	c.checkpoint = c.Sector
	return c, nil
}

// Center returns the middle of the hitbox, the origin of rays and track tests.
func (c *Car) Center() geom.Vec {
	return c.Hitbox.Center()
}

// Bounds returns the hitbox for drawing.
func (c *Car) Bounds() geom.Rect {
	return c.Hitbox
}

// Speed returns the magnitude of the velocity.
func (c *Car) Speed() float64 {
	return c.Velocity.Len()
}

// SetControls sets all three channels at once, clamped to their ranges.
// It is the entry point for manual control.
func (c *Car) SetControls(accelerator, steering, brakes float64) {
	c.Accelerator.Set(accelerator)
	c.Steering.Set(steering)
	c.Brakes.Set(brakes)
}

// SetPosition moves the car, keeping the whole hitbox inside the area.
func (c *Car) SetPosition(p geom.Vec) {
	x := geom.Clamp(p.X, 0, c.area.Width-c.Hitbox.W)
	y := geom.Clamp(p.Y, 0, c.area.Height-c.Hitbox.H)
	c.Position = geom.V(x, y)
	c.Hitbox.X = x
	c.Hitbox.Y = y
}

// Features builds the network input: normalized ray distances followed by
// velocity, acceleration, steer and heading features.
func (c *Car) Features(track *Track) []float64 {
	features := c.sensor.Cast(track, c.Center(), c.Angle)
	return append(features,
		c.Velocity.X/c.cfg.MaxSpeed,
		c.Velocity.Y/c.cfg.MaxSpeed,
		c.Acceleration.X/c.cfg.MaxAcc,
		c.Acceleration.Y/c.cfg.MaxAcc,
		c.Steer/geom.ToRadians(c.cfg.SteerWeight),
		math.Sin(c.Angle),
	)
}

// Think runs the brain on the current features and loads its outputs into
// the control channels. The feature vector always matches the brain, so a
// failing activation is a programming error and panics.
func (c *Car) Think(track *Track) {
	out, err := c.Brain.Activate(c.Features(track))
	if err != nil {
		panic(fmt.Sprintf("car %d: %v", c.Key, err))
	}
	c.Accelerator.Set(out[0])
	c.Steering.Set((out[1] - 0.5) * 2) // convert to value between -1.0 and 1.0
	c.Brakes.Set(out[2])
}

// Update advances the car by one tick of dt seconds.
func (c *Car) Update(track *Track, dt float64) {
	if !c.Manual {
		c.Think(track)
	}

	friction := c.cfg.FrictionRoad
	if !track.Contains(c.Center()) {
		friction = c.cfg.FrictionGrass
	}
	c.integrate(dt, friction)
}

// integrate applies the control channels and moves the car.
func (c *Car) integrate(dt, friction float64) {
	maxSteer := geom.ToRadians(c.cfg.MaxSteerAngle)
	c.Steer = geom.Clamp(c.Steering.Weight*geom.ToRadians(c.cfg.SteerWeight), -maxSteer, maxSteer)
	target := c.Angle + c.Steer
	c.Angle = geom.Lerp(c.Angle, target, dt*turnRate)
	c.Direction = geom.FromAngle(c.Angle)

	c.Acceleration = c.Direction.Scale(c.Accelerator.Weight * c.cfg.MaxAcc)
	c.Velocity = c.Velocity.Add(c.Acceleration.Scale(dt))

	brake := c.Velocity.Neg().Scale(c.Brakes.Weight * c.cfg.BrakingFactor)
	c.Velocity = c.Velocity.Add(brake.Scale(dt))

	drag := c.Velocity.Neg().Scale(friction)
	c.Velocity = c.Velocity.Add(drag.Scale(dt))
	c.Velocity = c.Velocity.Limit(c.cfg.MaxSpeed)

	c.SetPosition(c.Position.Add(c.Velocity.Scale(dt)))

	// there is no held throttle, channels are rebuilt every tick
	c.Accelerator.Reset()
	c.Steering.Reset()
	c.Brakes.Reset()
}

// IsOnTrack reports whether the car's center is within half the track width
// of its sector's centerline.
func (c *Car) IsOnTrack(track *Track) bool {
	return track.Contains(c.Center())
}

// score rewards one tick of survival and any forward progress. A sector is
// only rewarded when it directly follows the last rewarded one, so reversing
// and re-entering a sector earns nothing.
func (c *Car) score(track *Track, f *FitnessConfig) {
	c.Ticks++
	c.Fitness += f.PerTick

	c.Sector = track.Sector(c.Center())
	if c.Sector == (c.checkpoint+1)%track.Len() {
		c.checkpoint = c.Sector
		c.Fitness += f.PerSector
		if c.Sector == 0 {
			c.Laps++
			c.Fitness += f.PerLap
		}
	}
}
