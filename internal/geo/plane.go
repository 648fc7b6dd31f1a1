package geo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Point2 is a position in a vertical profile: U along the azimuth, Z elevation.
type Point2 struct {
	U float64
	Z float64
}

// CutPlane is the plane containing the segment P1-P2 that is horizontal in the
// direction perpendicular to it. Its normal points upward.
type CutPlane struct {
	P1, P2 Coordinate
}

// ZAt returns the elevation of the plane above the planar position of p.
func (c CutPlane) ZAt(p Coordinate) float64 {
	return c.P1.Z + (c.P2.Z-c.P1.Z)*ProjectionFactor(p, c.P1, c.P2)
}

// Offset is positive when p lies above the plane.
func (c CutPlane) Offset(p Coordinate) float64 {
	return p.Z - c.ZAt(p)
}

// CutRing keeps the parts of a closed roof ring lying above the plane. Kept
// vertices are dropped vertically onto the plane and the points where ring
// edges cross the plane are inserted, so the result lies in the plane.
func (c CutPlane) CutRing(ring []Coordinate) []Coordinate {
	out := make([]Coordinate, 0, len(ring))
	var last float64
	for i, p := range ring {
		off := c.Offset(p)
		if i > 0 && (off >= 0) != (last >= 0) {
			t := last / (last - off)
			x := ring[i-1].Lerp(p, t)
			out = append(out, x.WithZ(c.ZAt(x)))
		}
		if off >= 0 {
			out = append(out, p.WithZ(c.ZAt(p)))
		}
		last = off
	}
	return out
}

// MeanPlane fits z = A·u + B to a piecewise-linear profile in the least-squares
// sense over its whole extent. A profile with no extent gives a flat plane at
// the first elevation.
func MeanPlane(profile []Point2) (a, b float64) {
	if len(profile) == 0 {
		return 0, 0
	}
	var s1, su, suu, sz, suz float64
	for i := 1; i < len(profile); i++ {
		u0, z0 := profile[i-1].U, profile[i-1].Z
		u1, z1 := profile[i].U, profile[i].Z
		l := u1 - u0
		if l <= 0 {
			continue
		}
		s1 += l
		su += (u1*u1 - u0*u0) / 2
		suu += (u1*u1*u1 - u0*u0*u0) / 3
		sz += l * (z0 + z1) / 2
		suz += l / 6 * (u0*(2*z0+z1) + u1*(z0+2*z1))
	}
	if s1 == 0 {
		return 0, profile[0].Z
	}

	lhs := mat.NewDense(2, 2, []float64{suu, su, su, s1})
	rhs := mat.NewVecDense(2, []float64{suz, sz})
	var x mat.VecDense
	if err := x.SolveVec(lhs, rhs); err != nil {
		return 0, sz / s1
	}
	return x.AtVec(0), x.AtVec(1)
}

// ProjectOnLine returns the foot of the perpendicular from p to z = a·u + b.
func ProjectOnLine(p Point2, a, b float64) Point2 {
	u := (p.U + a*(p.Z-b)) / (1 + a*a)
	return Point2{U: u, Z: a*u + b}
}

// HeightAboveLine is the signed orthogonal distance from p to z = a·u + b.
func HeightAboveLine(p Point2, a, b float64) float64 {
	return (p.Z - a*p.U - b) / math.Sqrt(1+a*a)
}

// MirrorAcrossProfileLine reflects p across z = a·u + b.
func MirrorAcrossProfileLine(p Point2, a, b float64) Point2 {
	f := ProjectOnLine(p, a, b)
	return Point2{U: 2*f.U - p.U, Z: 2*f.Z - p.Z}
}
