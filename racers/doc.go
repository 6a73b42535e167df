// Package racers evolves neural network drivers for cars on a closed track.
//
// Every car carries a small fixed-shape feed-forward network. Each tick the
// network reads the car's ray sensors and kinematic state and sets the
// accelerator, steering and brakes; the physics step then moves the car.
// Cars earn fitness for surviving on the track and for driving through its
// sectors in order. When the tick budget runs out, or every car has crashed,
// the two fittest cars breed the next generation through single point
// crossover and per-parameter mutation.
//
// Basic usage:
//
//	// Load configuration
//	config, err := racers.LoadConfig("path/to/config")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	// Open the fitness log and create a new population on the reference track
//	sink, err := racers.NewFitnessSink(ctx, config.Output.Sink, config.Output.FitnessLog)
//	if err != nil {
//		log.Fatalf("Error opening fitness log: %v", err)
//	}
//	defer sink.Close()
//
//	pop, err := racers.NewPopulation(config, racers.DefaultTrack(), sink)
//	if err != nil {
//		log.Fatalf("Error creating population: %v", err)
//	}
//
//	// Run for 100 generations
//	if err := pop.Run(ctx, 100); err != nil {
//		log.Fatalf("Error running evolution: %v", err)
//	}
//
// A renderer drives the same Population one tick at a time with Step and
// reads each car's Bounds, Center and Angle between ticks.
package racers
