// Package source splits point, line and multi-line sources into weighted point
// sources carrying an optimistic power bound, ordered best first.
package source

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"

	"noiseprop/internal/acoustics"
	"noiseprop/internal/attenuation"
	perrors "noiseprop/internal/errors"
	"noiseprop/internal/geo"
)

// DefaultBoundMargin is the gain in dB added to the spreading-only bound of a
// single path to cover ground and favorable-refraction effects. The bound of a
// source-receiver pair is that of one path until Scale accounts for the
// others.
const DefaultBoundMargin = 9.0

// Source is an emission geometry with a per-band sound power level in dB.
// Height is measured above the terrain at each vertex.
type Source struct {
	ID       int64
	Geometry orb.Geometry
	Height   float64
	Power    []float64
}

// Point is one discretized emission point.
type Point struct {
	// Index is the position of the originating source in the input list.
	Index    int
	ID       int64
	Fragment int
	Position geo.Coordinate
	// Li is the length represented by a line fragment, 1 for point sources.
	Li float64
	// Power is the per-band sound power in W.
	Power []float64
	// Bound is the per-band received power bound in W.
	Bound      []float64
	TotalBound float64
}

// HeightFunc returns the terrain elevation, NaN when unknown.
type HeightFunc func(p geo.Coordinate) float64

type line []geo.Coordinate

type entry struct {
	index  int
	src    Source
	power  []float64
	lines  []line // absolute 3D vertices, a point source is a single vertex

	// bounding rectangle of the planar geometry, the rtree key
	geom.Polygon
}

// Discretizer holds the sources of a run. It is read-only once built.
type Discretizer struct {
	entries []*entry
	index   *rtree.Rtree
	maxDist float64
	margin  float64
	bands   int
}

// NewDiscretizer validates the sources and resolves their vertex elevations.
// An unsupported geometry or a power spectrum of the wrong length is fatal.
func NewDiscretizer(sources []Source, bands int, heightAt HeightFunc, maxDist, marginDb float64) (*Discretizer, error) {
	d := &Discretizer{
		index:   rtree.NewTree(25, 50),
		maxDist: maxDist,
		margin:  math.Pow(10, marginDb/10),
		bands:   bands,
	}
	for i, s := range sources {
		if len(s.Power) != bands {
			return nil, perrors.Newf(perrors.BandMismatch, "source %d has %d power values for %d bands", s.ID, len(s.Power), bands)
		}
		lines, err := resolve(s, heightAt)
		if err != nil {
			return nil, err
		}
		e := &entry{index: i, src: s, power: acoustics.DbaToWArray(s.Power), lines: lines}
		e.Polygon = boundPolygon(s.Geometry.Bound())
		d.entries = append(d.entries, e)
		d.index.Insert(e)
	}
	return d, nil
}

// boundPolygon returns the rectangle of b as a closed ring. A point source
// gives a degenerate ring whose bounds are the point itself.
func boundPolygon(b orb.Bound) geom.Polygon {
	return geom.Polygon{{
		{X: b.Min[0], Y: b.Min[1]},
		{X: b.Max[0], Y: b.Min[1]},
		{X: b.Max[0], Y: b.Max[1]},
		{X: b.Min[0], Y: b.Max[1]},
		{X: b.Min[0], Y: b.Min[1]},
	}}
}

func resolve(s Source, heightAt HeightFunc) ([]line, error) {
	vertex := func(p orb.Point) geo.Coordinate {
		c := geo.XY(p[0], p[1])
		ground := 0.0
		if heightAt != nil {
			ground = heightAt(c)
		}
		if math.IsNaN(ground) {
			ground = 0
		}
		return c.WithZ(ground + s.Height)
	}
	toLine := func(ls orb.LineString) line {
		l := make(line, len(ls))
		for i, p := range ls {
			l[i] = vertex(p)
		}
		return l
	}

	switch g := s.Geometry.(type) {
	case orb.Point:
		return []line{{vertex(g)}}, nil
	case orb.LineString:
		return []line{toLine(g)}, nil
	case orb.MultiLineString:
		out := make([]line, 0, len(g))
		for _, ls := range g {
			out = append(out, toLine(ls))
		}
		return out, nil
	default:
		var name string
		if s.Geometry != nil {
			name = s.Geometry.GeoJSONType()
		}
		return nil, perrors.Newf(perrors.UnsupportedGeometry, "source %d has unsupported geometry %q", s.ID, name).
			WithDetails(map[string]any{"source": s.ID, "geometry": name})
	}
}

// Len returns the number of sources.
func (d *Discretizer) Len() int {
	return len(d.entries)
}

// IDs returns the external source ids in input order.
func (d *Discretizer) IDs() []int64 {
	out := make([]int64, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.src.ID
	}
	return out
}

// Near discretizes the sources within the search radius of the receiver and
// returns the points ordered by descending bound, then ascending source id,
// then ascending fragment.
func (d *Discretizer) Near(receiver geo.Coordinate) []Point {
	search := &geom.Bounds{
		Min: geom.Point{X: receiver.X - d.maxDist, Y: receiver.Y - d.maxDist},
		Max: geom.Point{X: receiver.X + d.maxDist, Y: receiver.Y + d.maxDist},
	}
	var out []Point
	for _, item := range d.index.SearchIntersect(search) {
		out = append(out, d.discretize(item.(*entry), receiver)...)
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Less reports whether a is processed before b: larger bounds first, ties
// broken on ascending ids.
func Less(a, b Point) bool {
	if a.TotalBound != b.TotalBound {
		return a.TotalBound > b.TotalBound
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	if a.Index != b.Index {
		return a.Index < b.Index
	}
	return a.Fragment < b.Fragment
}

// Scale multiplies the bound of p by k, the number of propagation paths the
// point can send to the receiver.
func (p *Point) Scale(k float64) {
	for i := range p.Bound {
		p.Bound[i] *= k
	}
	p.TotalBound *= k
}

func (d *Discretizer) discretize(e *entry, receiver geo.Coordinate) []Point {
	var out []Point
	fragment := 0
	emit := func(pos geo.Coordinate, li float64) {
		if d.maxDist > 0 && pos.Distance2D(receiver) > d.maxDist {
			fragment++
			return
		}
		out = append(out, d.point(e, fragment, pos, li, receiver))
		fragment++
	}

	for _, l := range e.lines {
		if len(l) == 1 {
			emit(l[0], 1)
			continue
		}
		for _, s := range Split(l, receiver) {
			emit(s.Position, s.Li)
		}
	}
	return out
}

func (d *Discretizer) point(e *entry, fragment int, pos geo.Coordinate, li float64, receiver geo.Coordinate) Point {
	spread := math.Pow(10, -attenuation.ADiv(pos.Distance3D(receiver))/10) * li * d.margin
	bound := make([]float64, len(e.power))
	for i, w := range e.power {
		bound[i] = w * spread
	}
	return Point{
		Index:      e.index,
		ID:         e.src.ID,
		Fragment:   fragment,
		Position:   pos,
		Li:         li,
		Power:      e.power,
		Bound:      bound,
		TotalBound: floats.Sum(bound),
	}
}

// Fragment is one piece of a split line.
type Fragment struct {
	Position geo.Coordinate
	Li       float64
}

// Split cuts a polyline into pieces no longer than half the distance from the
// receiver to the line (at least 1 m) and returns their midpoints. A line
// shorter than that limit gives its own midpoint.
func Split(l []geo.Coordinate, receiver geo.Coordinate) []Fragment {
	length := geo.PathLength3D(l)
	if length == 0 {
		return nil
	}
	constraint := math.Max(1, receiver.Distance3D(nearest(l, receiver))/2)
	if length < constraint {
		return []Fragment{{Position: along(l, length/2), Li: length}}
	}
	n := int(math.Ceil(length / constraint))
	target := length / float64(n)
	out := make([]Fragment, n)
	for i := range out {
		out[i] = Fragment{Position: along(l, (float64(i)+0.5)*target), Li: target}
	}
	return out
}

// nearest returns the planar closest point of the polyline with its elevation
// interpolated along the segment.
func nearest(l []geo.Coordinate, p geo.Coordinate) geo.Coordinate {
	best, bestDist := l[0], math.Inf(1)
	for i := 1; i < len(l); i++ {
		c := geo.ClosestPoint(p, l[i-1], l[i])
		if dist := c.Distance2D(p); dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best
}

// along returns the point at 3D arc length s from the start of the polyline.
func along(l []geo.Coordinate, s float64) geo.Coordinate {
	for i := 1; i < len(l); i++ {
		seg := l[i-1].Distance3D(l[i])
		if s <= seg && seg > 0 {
			return l[i-1].Lerp(l[i], s/seg)
		}
		s -= seg
	}
	return l[len(l)-1]
}
