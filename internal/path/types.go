// Package path enumerates the geometric propagation paths between a source
// and a receiver: direct field, mirror-image reflections, and diffraction over
// roofs and around building sides.
package path

import (
	"noiseprop/internal/geo"
)

// PointType tags the role of a path point.
type PointType int

const (
	Source PointType = iota
	Receiver
	Reflection
	VerticalDiffraction
	HorizontalDiffraction
)

func (t PointType) String() string {
	switch t {
	case Source:
		return "SRCE"
	case Receiver:
		return "RECV"
	case Reflection:
		return "REFL"
	case VerticalDiffraction:
		return "DIFV"
	case HorizontalDiffraction:
		return "DIFH"
	default:
		return "UNKNOWN"
	}
}

// Point is an immutable path vertex.
type Point struct {
	Position   geo.Coordinate `json:"position"`
	Type       PointType      `json:"type"`
	GroundZ    float64        `json:"groundZ"`
	BuildingID int            `json:"buildingId,omitempty"`
	// WallAlpha is the per-band absorption of the reflecting wall.
	WallAlpha []float64 `json:"wallAlpha,omitempty"`
}

// As returns a copy of the point with another role.
func (p Point) As(t PointType) Point {
	p.Type = t
	return p
}

// Segment carries the ground parameters of one straight leg, measured against
// the leg's least-squares mean ground plane.
type Segment struct {
	S geo.Coordinate `json:"s"`
	R geo.Coordinate `json:"r"`
	// G is the absorbing fraction of the leg's planar length.
	G float64 `json:"g"`
	// GPrime is G corrected for a source close to the ground.
	GPrime float64 `json:"gPrime"`
	// D is the 3D distance S-R.
	D float64 `json:"d"`
	// Dp is the distance between S and R projected on the mean plane.
	Dp float64 `json:"dp"`
	// Zs and Zr are the heights above the mean plane.
	Zs float64 `json:"zs"`
	Zr float64 `json:"zr"`
	// ZsPrime and ZrPrime include the favorable-condition height corrections.
	ZsPrime       float64 `json:"zsPrime"`
	ZrPrime       float64 `json:"zrPrime"`
	TestForm      float64 `json:"testForm"`
	TestFormPrime float64 `json:"testFormPrime"`
	// PlaneA and PlaneB define the mean plane z = A·u + B, u measured from S
	// along Azimuth.
	PlaneA  float64        `json:"planeA"`
	PlaneB  float64        `json:"planeB"`
	Azimuth float64        `json:"azimuth"`
	Origin  geo.Coordinate `json:"origin"`
}

// Path is an immutable propagation path. Points run from Source to Receiver.
// SR holds the direct source-receiver segment, followed for roof diffraction
// by the image-source and image-receiver segments.
type Path struct {
	Points   []Point   `json:"points"`
	Segments []Segment `json:"segments"`
	SR       []Segment `json:"sr"`
}

// Kind classifies a path by its interior points.
type Kind int

const (
	Direct Kind = iota
	Reflected
	DiffractedRoof
	DiffractedSide
)

func (k Kind) String() string {
	switch k {
	case Reflected:
		return "reflected"
	case DiffractedRoof:
		return "diffracted-roof"
	case DiffractedSide:
		return "diffracted-side"
	default:
		return "direct"
	}
}

// Kind reports what the path's interior points are.
func (p Path) Kind() Kind {
	for _, pt := range p.Points {
		switch pt.Type {
		case Reflection:
			return Reflected
		case HorizontalDiffraction:
			return DiffractedRoof
		case VerticalDiffraction:
			return DiffractedSide
		}
	}
	return Direct
}

// Count returns the number of points of the given type.
func (p Path) Count(t PointType) int {
	n := 0
	for _, pt := range p.Points {
		if pt.Type == t {
			n++
		}
	}
	return n
}

// Length is the 3D length along the points.
func (p Path) Length() float64 {
	var l float64
	for i := 1; i < len(p.Points); i++ {
		l += p.Points[i-1].Position.Distance3D(p.Points[i].Position)
	}
	return l
}

// Source returns the first point position.
func (p Path) Source() geo.Coordinate {
	return p.Points[0].Position
}

// Receiver returns the last point position.
func (p Path) Receiver() geo.Coordinate {
	return p.Points[len(p.Points)-1].Position
}

// Positions returns the point positions in order.
func (p Path) Positions() []geo.Coordinate {
	out := make([]geo.Coordinate, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pt.Position
	}
	return out
}
