package racers

import (
	"github.com/baldhumanity/racers-go/racers/geom"
)

// rayLengthFactor stretches each ray well past the reference length so any
// boundary inside the play area is reachable.
const rayLengthFactor = 5

// Sensor casts a fan of distance rays from a car toward the track boundaries.
type Sensor struct {
	Rays  int     // number of rays in the fan
	FOV   float64 // field of view in degrees, centered on the heading
	Range float64 // reference length: readings are distance / Range, and misses read 1
}

// RayAngles returns the absolute angle in radians of every ray for a car
// heading at angle. Rays are evenly spaced across the field of view and
// symmetric around the heading.
func (s Sensor) RayAngles(angle float64) []float64 {
	angles := make([]float64, s.Rays)
	if s.Rays == 0 {
		return angles
	}
	step := s.FOV / float64(s.Rays)
	start := geom.ToDegrees(angle) - s.FOV/2
	for i := range angles {
		angles[i] = geom.ToRadians(start + step*(float64(i)+0.5))
	}
	return angles
}

// Cast returns one normalized reading in [0, 1] per ray.
func (s Sensor) Cast(track *Track, origin geom.Vec, angle float64) []float64 {
	readings := make([]float64, s.Rays)
	for i, a := range s.RayAngles(angle) {
		readings[i] = CastRay(track, origin, geom.FromAngle(a), s.Range) / s.Range
	}
	return readings
}

// CastRay returns the distance from origin along dir to the nearest boundary
// edge of the track, or maxDist when nothing closer is hit. The scan starts at
// the sector containing origin and walks the whole loop, testing both the left
// and the right edge of every segment.
func CastRay(track *Track, origin, dir geom.Vec, maxDist float64) float64 {
	end := origin.Add(dir.Scale(maxDist * rayLengthFactor))
	shortest := maxDist

	start := track.Sector(origin)
	for i := 0; i < track.Len(); i++ {
		e := track.Edge(start + i)
		if p, ok := geom.SegmentIntersection(origin, end, e.LeftStart, e.LeftEnd); ok {
			if d := p.Dist(origin); d < shortest {
				shortest = d
			}
		}
		if p, ok := geom.SegmentIntersection(origin, end, e.RightStart, e.RightEnd); ok {
			if d := p.Dist(origin); d < shortest {
				shortest = d
			}
		}
	}
	return shortest
}
