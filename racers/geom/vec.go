// Package geom provides the small amount of 2D vector math the simulation needs:
// vectors, rectangles, line equations, segment intersection and interpolation.
package geom

import (
	"math"

	"golang.org/x/exp/constraints"
)

// epsilon is the tolerance used when deciding that two directions are parallel
// or that a vector has no length.
const epsilon = 1e-9

// Vec is a point or direction in 2D space.
type Vec struct {
	X, Y float64
}

// V is shorthand for Vec{X: x, Y: y}.
func V(x, y float64) Vec {
	return Vec{X: x, Y: y}
}

// FromAngle returns the unit vector pointing at angle radians.
func FromAngle(angle float64) Vec {
	return Vec{X: math.Cos(angle), Y: math.Sin(angle)}
}

// Add returns v + o.
func (v Vec) Add(o Vec) Vec {
	return Vec{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec) Sub(o Vec) Vec {
	return Vec{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v multiplied by s.
func (v Vec) Scale(s float64) Vec {
	return Vec{X: v.X * s, Y: v.Y * s}
}

// Neg returns -v.
func (v Vec) Neg() Vec {
	return Vec{X: -v.X, Y: -v.Y}
}

// Dot returns the dot product of v and o.
func (v Vec) Dot(o Vec) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Cross returns the z component of the 3D cross product of v and o.
func (v Vec) Cross(o Vec) float64 {
	return v.X*o.Y - v.Y*o.X
}

// Len returns the length of v.
func (v Vec) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Dist returns the distance between the points v and o.
func (v Vec) Dist(o Vec) float64 {
	return math.Hypot(v.X-o.X, v.Y-o.Y)
}

// Normalize returns the unit vector in the direction of v, or the zero vector
// when v has no length.
func (v Vec) Normalize() Vec {
	l := v.Len()
	if l < epsilon {
		return Vec{}
	}
	return v.Scale(1 / l)
}

// Perp returns v rotated by 90 degrees (the left-hand normal in a y-down screen
// frame, the right-hand normal in a y-up frame).
func (v Vec) Perp() Vec {
	return Vec{X: -v.Y, Y: v.X}
}

// Angle returns the heading of v in radians.
func (v Vec) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// Limit scales v down so its length does not exceed maxLen.
func (v Vec) Limit(maxLen float64) Vec {
	l2 := v.X*v.X + v.Y*v.Y
	if l2 > maxLen*maxLen && l2 > 0 {
		return v.Scale(maxLen / math.Sqrt(l2))
	}
	return v
}

// Midpoint returns the point halfway between v and o.
func (v Vec) Midpoint(o Vec) Vec {
	return Vec{X: (v.X + o.X) / 2, Y: (v.Y + o.Y) / 2}
}

// Rect is an axis aligned rectangle anchored at its top-left corner.
type Rect struct {
	X, Y, W, H float64
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Vec {
	return Vec{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Clamp restricts value to [lo, hi].
func Clamp[T constraints.Ordered](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Lerp interpolates from a toward b. The weight is clamped to [0, 1] so large
// time steps never overshoot the target.
func Lerp(a, b, weight float64) float64 {
	return a + (b-a)*Clamp(weight, 0, 1)
}

// ToRadians converts degrees to radians.
func ToRadians(deg float64) float64 {
	return deg / 180 * math.Pi
}

// ToDegrees converts radians to degrees.
func ToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
