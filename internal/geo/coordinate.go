// Package geo holds the 3D coordinate type and the planar helpers used by
// path construction.
package geo

import "math"

// Coordinate is a point in the scene. Z is NaN until heights are resolved.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// XY returns a coordinate with an unknown Z.
func XY(x, y float64) Coordinate {
	return Coordinate{X: x, Y: y, Z: math.NaN()}
}

// XYZ builds a coordinate.
func XYZ(x, y, z float64) Coordinate {
	return Coordinate{X: x, Y: y, Z: z}
}

// HasZ reports whether the elevation is known.
func (c Coordinate) HasZ() bool {
	return !math.IsNaN(c.Z)
}

// WithZ returns a copy of c at elevation z.
func (c Coordinate) WithZ(z float64) Coordinate {
	c.Z = z
	return c
}

// Distance2D is the planar distance between c and o.
func (c Coordinate) Distance2D(o Coordinate) float64 {
	return math.Hypot(o.X-c.X, o.Y-c.Y)
}

// Distance3D is the euclidean distance. Unknown elevations count as equal.
func (c Coordinate) Distance3D(o Coordinate) float64 {
	dz := o.Z - c.Z
	if math.IsNaN(dz) {
		dz = 0
	}
	return math.Sqrt((o.X-c.X)*(o.X-c.X) + (o.Y-c.Y)*(o.Y-c.Y) + dz*dz)
}

// Equals2D compares planar positions exactly.
func (c Coordinate) Equals2D(o Coordinate) bool {
	return c.X == o.X && c.Y == o.Y
}

// Lerp interpolates between c and o, t=0 giving c.
func (c Coordinate) Lerp(o Coordinate, t float64) Coordinate {
	return Coordinate{
		X: c.X + t*(o.X-c.X),
		Y: c.Y + t*(o.Y-c.Y),
		Z: c.Z + t*(o.Z-c.Z),
	}
}

// Azimuth is the planar angle of the vector c→o in radians.
func (c Coordinate) Azimuth(o Coordinate) float64 {
	return math.Atan2(o.Y-c.Y, o.X-c.X)
}

// MoveToward2D shifts c by dist in the planar direction of target, keeping Z.
// A coincident target leaves c unchanged.
func (c Coordinate) MoveToward2D(target Coordinate, dist float64) Coordinate {
	d := c.Distance2D(target)
	if d == 0 {
		return c
	}
	c.X += (target.X - c.X) / d * dist
	c.Y += (target.Y - c.Y) / d * dist
	return c
}

// PathLength3D sums the 3D lengths of consecutive legs.
func PathLength3D(pts []Coordinate) float64 {
	var l float64
	for i := 1; i < len(pts); i++ {
		l += pts[i-1].Distance3D(pts[i])
	}
	return l
}

// PathLength2D sums the planar lengths of consecutive legs.
func PathLength2D(pts []Coordinate) float64 {
	var l float64
	for i := 1; i < len(pts); i++ {
		l += pts[i-1].Distance2D(pts[i])
	}
	return l
}
