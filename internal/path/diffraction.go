package path

import (
	"math"

	"noiseprop/internal/geo"
	"noiseprop/internal/oracle"
)

// maxHullIterations caps the hull enlargement loop. Each pass adds at least
// one building so real scenes stop far earlier.
const maxHullIterations = 1000

type edgeKey [4]float64

// SideHull returns the path from p1 to p2 around the buildings on the left or
// right side, as a chain of convex hull vertices lying in the cut plane of
// p1-p2. It returns nil when no such path exists: the hull grows too long
// compared to the direct distance, leaves the domain, or loses p1 or p2.
func (b *Builder) SideHull(left bool, p1, p2 geo.Coordinate) []geo.Coordinate {
	if p1.Equals2D(p2) {
		return nil
	}
	plane := geo.CutPlane{P1: p1, P2: p2}
	direct := p1.Distance2D(p2)

	seen := make(map[int]bool)
	input := []geo.Coordinate{p1, p2}
	for _, id := range oracle.BuildingsOn(b.oracle.Profile(p1, p2)) {
		if roof := b.cutRoof(plane, id); len(roof) > 0 {
			input = append(input, roof...)
			seen[id] = true
		}
	}

	checked := make(map[edgeKey]bool)
	for iter := 0; iter < maxHullIterations; iter++ {
		hull := geo.ConvexHull(input)
		if b.cfg.MaxHullRatio > 0 && geo.RingPerimeter(hull)/direct > b.cfg.MaxHullRatio {
			return nil
		}
		side := sidePath(hull, p1, p2, left)
		if side == nil {
			return nil
		}

		var added []geo.Coordinate
		for i := 1; i < len(side) && len(added) == 0; i++ {
			u, v := side[i-1], side[i]
			key := edgeKey{u.X, u.Y, v.X, v.Y}
			if checked[key] {
				continue
			}
			if b.oracle.TriangleIDAt(u) == -1 || b.oracle.TriangleIDAt(v) == -1 {
				return nil
			}
			for _, id := range oracle.BuildingsOn(b.oracle.Profile(u, v)) {
				if seen[id] {
					continue
				}
				if roof := b.cutRoof(plane, id); len(roof) > 0 {
					added = append(added, roof...)
					seen[id] = true
				}
			}
			if len(added) == 0 {
				checked[key] = true
			}
		}
		if len(added) == 0 {
			return side
		}
		input = append(append(make([]geo.Coordinate, 0, len(hull)+len(added)), hull...), added...)
	}
	b.logger.Warn("side hull did not converge", "p1", p1, "p2", p2)
	return nil
}

// cutRoof returns the open roof ring of a building cut by the plane.
func (b *Builder) cutRoof(plane geo.CutPlane, id int) []geo.Coordinate {
	roof := plane.CutRing(b.oracle.SilhouetteVertices(id, 0, 2*math.Pi))
	if len(roof) > 1 && roof[0].Equals2D(roof[len(roof)-1]) {
		roof = roof[:len(roof)-1]
	}
	return roof
}

// sidePath walks the counter-clockwise hull from p1 to p2. The right side
// follows the hull order, the left side runs against it.
func sidePath(hull []geo.Coordinate, p1, p2 geo.Coordinate, left bool) []geo.Coordinate {
	i1 := indexOf2D(hull, p1)
	if i1 < 0 {
		return nil
	}
	n := len(hull)
	ring := make([]geo.Coordinate, n)
	for i := range hull {
		ring[i] = hull[(i1+i)%n]
	}
	i2 := indexOf2D(ring[1:], p2)
	if i2 < 0 {
		return nil
	}
	i2++

	var side []geo.Coordinate
	if left {
		side = append(side, ring[0])
		for i := n - 1; i >= i2; i-- {
			side = append(side, ring[i])
		}
	} else {
		side = append(side, ring[:i2+1]...)
	}
	side[0] = p1
	side[len(side)-1] = p2
	return side
}

func indexOf2D(pts []geo.Coordinate, p geo.Coordinate) int {
	for i, q := range pts {
		if q.Equals2D(p) {
			return i
		}
	}
	return -1
}

// VerticalEdgeDiffraction returns the paths around the left and right sides of
// the buildings between source and receiver. Interior vertices are pushed by
// epsilon away from the direct line so that they clear the building corner.
func (b *Builder) VerticalEdgeDiffraction(source, receiver geo.Coordinate) []Path {
	var out []Path
	for _, left := range []bool{true, false} {
		coords := b.SideHull(left, source, receiver)
		if len(coords) <= 2 {
			continue
		}
		pts := make([]Point, len(coords))
		pts[0] = b.point(source, Source)
		pts[len(pts)-1] = b.point(receiver, Receiver)
		for i := 1; i < len(coords)-1; i++ {
			c := coords[i]
			if b.cfg.Epsilon > 0 {
				// c is a footprint corner: toward the direct line is inside the
				// building, where both legs would be obstructed.
				c = c.MoveToward2D(geo.ClosestPoint(c, source, receiver), -b.cfg.Epsilon)
			}
			pts[i] = b.point(c, VerticalDiffraction)
		}
		p := Path{Points: pts}
		p.Segments = b.legs(p.Positions())
		p.SR = []Segment{b.unfold(p.Segments, source, receiver)}
		out = append(out, p)
	}
	return out
}

// HorizontalEdgeDiffraction builds the path over the roofs. An unobstructed
// pair yields the freefield path. The boolean is false when the roofs offer no
// valid path.
func (b *Builder) HorizontalEdgeDiffraction(obstructed bool, receiver, source geo.Coordinate, inters []oracle.Intersection) (Path, bool) {
	if inters == nil {
		inters = b.oracle.Profile(source, receiver)
	}
	if !obstructed {
		return b.Freefield(receiver, source, inters), true
	}
	roof := b.oracle.ShortestRoofPath(source, receiver, inters)
	if !roof.Valid || len(roof.Path) < 3 {
		return Path{}, false
	}

	pts := make([]Point, len(roof.Path))
	pts[0] = b.point(source, Source)
	pts[len(pts)-1] = b.point(receiver, Receiver)
	for i := 1; i < len(roof.Path)-1; i++ {
		c := roof.Path[i]
		if b.cfg.Epsilon > 0 {
			c = c.MoveToward2D(receiver, b.cfg.Epsilon)
		}
		pt := b.point(c, HorizontalDiffraction)
		if !math.IsNaN(pt.GroundZ) && c.Z <= pt.GroundZ {
			return Path{}, false
		}
		if id := nearestBuilding(inters, roof.Path[i]); id > 0 {
			pt.BuildingID = id
		}
		pts[i] = pt
	}

	p := Path{Points: pts}
	p.Segments = b.legs(p.Positions())
	first, last := p.Segments[0], p.Segments[len(p.Segments)-1]
	p.SR = []Segment{
		b.segment(source, receiver, inters),
		straight(imageOf(source, first), receiver),
		straight(source, imageOf(receiver, last)),
	}
	return p, true
}

func nearestBuilding(inters []oracle.Intersection, p geo.Coordinate) int {
	for _, in := range inters {
		if in.BuildingID > 0 && in.Position.Equals2D(p) {
			return in.BuildingID
		}
	}
	return 0
}

// DirectPaths returns the freefield path when source and receiver see each
// other, otherwise the enabled diffraction paths.
func (b *Builder) DirectPaths(source, receiver geo.Coordinate, vertical, horizontal bool) []Path {
	inters := b.oracle.Profile(source, receiver)
	var hidden, overBuilding bool
	for _, in := range inters {
		if in.OnBuilding {
			overBuilding = true
		}
		if in.OnBuilding || in.OnTopography {
			hidden = true
		}
	}
	if !hidden {
		return []Path{b.Freefield(receiver, source, inters)}
	}

	var out []Path
	if vertical && overBuilding {
		if p, ok := b.HorizontalEdgeDiffraction(true, receiver, source, inters); ok {
			out = append(out, p)
		}
	}
	if horizontal {
		out = append(out, b.VerticalEdgeDiffraction(source, receiver)...)
	}
	return out
}
