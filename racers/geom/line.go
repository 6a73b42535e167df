package geom

import "math"

// Line is the general form a*x + b*y + c = 0 of a line through two points.
// Unlike the slope-intercept form it represents vertical lines without special
// cases.
type Line struct {
	A, B, C float64
}

// LineThrough returns the line passing through p1 and p2. When the points
// coincide the result has A == B == 0 and Distance falls back to the distance
// from p1.
func LineThrough(p1, p2 Vec) Line {
	a := p2.Y - p1.Y
	b := p1.X - p2.X
	return Line{A: a, B: b, C: -(a*p1.X + b*p1.Y)}
}

// Degenerate reports whether the line was built from two identical points.
func (l Line) Degenerate() bool {
	return math.Abs(l.A) < epsilon && math.Abs(l.B) < epsilon
}

// Distance returns the perpendicular distance from p to the line.
func (l Line) Distance(p Vec) float64 {
	norm := math.Hypot(l.A, l.B)
	if norm < epsilon {
		return math.Abs(l.C)
	}
	return math.Abs(l.A*p.X+l.B*p.Y+l.C) / norm
}

// DistanceToLine returns the perpendicular distance from p to the infinite
// line through a and b, or the distance to a when a and b coincide.
func DistanceToLine(p, a, b Vec) float64 {
	l := LineThrough(a, b)
	if l.Degenerate() {
		return p.Dist(a)
	}
	return l.Distance(p)
}

// SegmentIntersection intersects segment p1->p2 with segment q1->q2.
// It reports false when the segments do not touch, are parallel or collinear,
// or when either has zero length.
func SegmentIntersection(p1, p2, q1, q2 Vec) (Vec, bool) {
	r := p2.Sub(p1)
	s := q2.Sub(q1)
	denom := r.Cross(s)
	if math.Abs(denom) < epsilon {
		return Vec{}, false
	}
	qp := q1.Sub(p1)
	t := qp.Cross(s) / denom
	u := qp.Cross(r) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return Vec{}, false
	}
	return p1.Add(r.Scale(t)), true
}
