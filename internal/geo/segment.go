package geo

import "math"

const parallelTolerance = 1e-12

// ProjectionFactor returns the parameter t of the orthogonal projection of p on
// the planar line a→b (0 at a, 1 at b). A degenerate segment gives 0.
func ProjectionFactor(p, a, b Coordinate) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return 0
	}
	return ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
}

// ClosestPoint returns the point of segment a-b nearest to p in plan, with Z
// interpolated along the segment.
func ClosestPoint(p, a, b Coordinate) Coordinate {
	t := math.Max(0, math.Min(1, ProjectionFactor(p, a, b)))
	return a.Lerp(b, t)
}

// InterpolateZ returns the elevation of p linearly interpolated between a and
// b from its planar distance to a.
func InterpolateZ(p, a, b Coordinate) float64 {
	d := a.Distance2D(b)
	if d == 0 {
		return a.Z
	}
	return a.Z + (b.Z-a.Z)*a.Distance2D(p)/d
}

// Cross2D is the z component of (b-a)×(p-a). Positive when p is left of a→b.
func Cross2D(a, b, p Coordinate) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

// IntersectSegments returns the planar intersection of segments p0-p1 and
// q0-q1. Collinear overlaps are not reported. The returned Z is NaN.
func IntersectSegments(p0, p1, q0, q1 Coordinate) (Coordinate, bool) {
	rx, ry := p1.X-p0.X, p1.Y-p0.Y
	sx, sy := q1.X-q0.X, q1.Y-q0.Y
	denom := rx*sy - ry*sx
	if math.Abs(denom) < parallelTolerance {
		return Coordinate{}, false
	}
	qpx, qpy := q0.X-p0.X, q0.Y-p0.Y
	t := (qpx*sy - qpy*sx) / denom
	u := (qpx*ry - qpy*rx) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return Coordinate{}, false
	}
	return XY(p0.X+t*rx, p0.Y+t*ry), true
}

// SegmentParam returns the parameter along p0→p1 of a point known to lie on it.
func SegmentParam(p, p0, p1 Coordinate) float64 {
	return math.Max(0, math.Min(1, ProjectionFactor(p, p0, p1)))
}

// DistanceToSegment is the planar distance from p to segment a-b.
func DistanceToSegment(p, a, b Coordinate) float64 {
	return p.Distance2D(ClosestPoint(p, a, b))
}

// SegmentsDistance is the planar distance between two segments.
func SegmentsDistance(a0, a1, b0, b1 Coordinate) float64 {
	if _, ok := IntersectSegments(a0, a1, b0, b1); ok {
		return 0
	}
	return math.Min(
		math.Min(DistanceToSegment(a0, b0, b1), DistanceToSegment(a1, b0, b1)),
		math.Min(DistanceToSegment(b0, a0, a1), DistanceToSegment(b1, a0, a1)),
	)
}

// MirrorAcrossLine reflects p across the planar line through a and b. Z is kept.
func MirrorAcrossLine(p, a, b Coordinate) Coordinate {
	t := ProjectionFactor(p, a, b)
	fx := a.X + t*(b.X-a.X)
	fy := a.Y + t*(b.Y-a.Y)
	return Coordinate{X: 2*fx - p.X, Y: 2*fy - p.Y, Z: p.Z}
}
