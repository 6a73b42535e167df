package racers

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/baldhumanity/racers-go/racers/geom"
)

// Edge holds the two boundary lines of one track segment.
// The left boundary runs LeftStart->LeftEnd, the right one RightStart->RightEnd.
type Edge struct {
	LeftStart, LeftEnd   geom.Vec
	RightStart, RightEnd geom.Vec
}

// Track is a closed loop of centerline points with a uniform width.
// Segment i runs from point i to point (i+1) mod n. A Track is immutable once
// built and safe to share between cars.
type Track struct {
	points    []geom.Vec
	width     float64
	midpoints []geom.Vec
	edges     []Edge
}

// NewTrack validates the loop and derives the boundary edges of every segment.
func NewTrack(points []geom.Vec, width float64) (*Track, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("track needs at least 3 points, got %d", len(points))
	}
	if !(width > 0) {
		return nil, fmt.Errorf("track width must be positive, got %v", width)
	}

	t := &Track{
		points: append([]geom.Vec(nil), points...),
		width:  width,
	}
	n := len(t.points)
	t.midpoints = make([]geom.Vec, n)
	for i := range t.points {
		t.midpoints[i] = t.points[i].Midpoint(t.points[(i+1)%n])
	}

	// Each point gets the average normal of the segments entering and leaving
	// it, so neighbouring edges meet at the corners.
	normals := make([]geom.Vec, n)
	for i := range t.points {
		in := t.points[i].Sub(t.points[(i+n-1)%n])
		out := t.points[(i+1)%n].Sub(t.points[i])
		avg := in.Perp().Add(out.Perp()).Scale(0.5).Normalize()
		if avg == (geom.Vec{}) {
			// hairpin: the two normals cancel out
			avg = out.Perp().Normalize()
		}
		normals[i] = avg
	}

	half := width / 2
	t.edges = make([]Edge, n)
	for i := range t.points {
		j := (i + 1) % n
		p, q := t.points[i], t.points[j]
		t.edges[i] = Edge{
			LeftStart:  p.Add(normals[i].Scale(half)),
			LeftEnd:    q.Add(normals[j].Scale(half)),
			RightStart: p.Sub(normals[i].Scale(half)),
			RightEnd:   q.Sub(normals[j].Scale(half)),
		}
	}
	return t, nil
}

// Points returns a copy of the centerline points.
func (t *Track) Points() []geom.Vec {
	return append([]geom.Vec(nil), t.points...)
}

// Width returns the full track width.
func (t *Track) Width() float64 {
	return t.width
}

// Len returns the number of segments, which equals the number of points.
func (t *Track) Len() int {
	return len(t.points)
}

// Segment returns the end points of segment i, wrapping around the loop.
func (t *Track) Segment(i int) (geom.Vec, geom.Vec) {
	n := len(t.points)
	i = ((i % n) + n) % n
	return t.points[i], t.points[(i+1)%n]
}

// Edge returns the boundary edges of segment i, wrapping around the loop.
func (t *Track) Edge(i int) Edge {
	n := len(t.edges)
	return t.edges[((i%n)+n)%n]
}

// Sector returns the index of the segment whose midpoint is closest to p.
// Ties go to the lowest index.
func (t *Track) Sector(p geom.Vec) int {
	closest := 0
	shortest := math.MaxFloat64
	for i, mp := range t.midpoints {
		if d := mp.Dist(p); d < shortest {
			shortest = d
			closest = i
		}
	}
	return closest
}

// DistanceFromCenter returns the perpendicular distance from p to the line
// through the segment of its sector.
func (t *Track) DistanceFromCenter(p geom.Vec) float64 {
	a, b := t.Segment(t.Sector(p))
	return geom.DistanceToLine(p, a, b)
}

// Contains reports whether p lies within half the track width of its sector's
// centerline.
func (t *Track) Contains(p geom.Vec) bool {
	return t.DistanceFromCenter(p) <= t.width/2
}

// StartPose returns the midpoint of the first segment and the heading along it.
func (t *Track) StartPose() (geom.Vec, float64) {
	a, b := t.Segment(0)
	return a.Midpoint(b), b.Sub(a).Angle()
}

// trackFile is the on-disk YAML layout of a track.
type trackFile struct {
	Width  float64     `yaml:"width"`
	Points [][]float64 `yaml:"points"`
}

// LoadTrack reads a track from a YAML file of the form
//
//	width: 75
//	points:
//	  - [484, 150]
//	  - [728, 180]
//	  ...
func LoadTrack(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track file '%s': %w", path, err)
	}
	var tf trackFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse track file '%s': %w", path, err)
	}
	points := make([]geom.Vec, 0, len(tf.Points))
	for i, p := range tf.Points {
		if len(p) != 2 {
			return nil, fmt.Errorf("track file '%s': point %d has %d coordinates, want 2", path, i, len(p))
		}
		points = append(points, geom.V(p[0], p[1]))
	}
	track, err := NewTrack(points, tf.Width)
	if err != nil {
		return nil, fmt.Errorf("track file '%s': %w", path, err)
	}
	return track, nil
}

// DefaultTrack returns the reference loop sized for a 1200x800 area.
func DefaultTrack() *Track {
	t, err := NewTrack([]geom.Vec{
		{X: 484, Y: 150}, {X: 728, Y: 180}, {X: 916, Y: 328},
		{X: 900, Y: 500}, {X: 670, Y: 576}, {X: 482, Y: 564},
		{X: 208, Y: 528}, {X: 186, Y: 308}, {X: 282, Y: 194},
	}, 75)
	if err != nil {
		panic(err)
	}
	return t
}
