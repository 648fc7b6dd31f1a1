package boxworld

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"noiseprop/internal/geo"
	"noiseprop/internal/oracle"
)

// groundTolerance is how far under the terrain an endpoint may sit before the
// ray counts as buried, in m.
const groundTolerance = 1e-6

type crossing struct {
	t     float64
	inter oracle.Intersection
}

// Profile lists the footprint crossings of a→b, bracketed by a and b.
func (w *World) Profile(a, b geo.Coordinate) []oracle.Intersection {
	length := a.Distance2D(b)
	start := oracle.Intersection{Position: a}
	end := oracle.Intersection{Position: b}
	if ga := w.HeightAt(a); a.Z < ga-groundTolerance {
		start.OnTopography = true
	}
	if gb := w.HeightAt(b); b.Z < gb-groundTolerance {
		end.OnTopography = true
	}
	if length == 0 {
		return []oracle.Intersection{start, end}
	}

	var crossings []crossing
	for _, item := range w.index.SearchIntersect(segmentBounds(a, b, 0)) {
		crossings = append(crossings, w.crossBuilding(item.(*building), a, b, length)...)
	}
	sort.SliceStable(crossings, func(i, j int) bool { return crossings[i].t < crossings[j].t })

	out := make([]oracle.Intersection, 0, len(crossings)+2)
	out = append(out, start)
	for _, c := range crossings {
		out = append(out, c.inter)
	}
	return append(out, end)
}

// crossBuilding returns the entry and exit points of a→b through one footprint.
func (w *World) crossBuilding(bd *building, a, b geo.Coordinate, length float64) []crossing {
	ts := []float64{0, 1}
	for i := 0; i+1 < len(bd.ring); i++ {
		if p, ok := geo.IntersectSegments(a, b, bd.ring[i], bd.ring[i+1]); ok {
			ts = append(ts, geo.SegmentParam(p, a, b))
		}
	}
	sort.Float64s(ts)

	var out []crossing
	for i := 0; i+1 < len(ts); i++ {
		t0, t1 := ts[i], ts[i+1]
		if (t1-t0)*length < minCrossing {
			continue
		}
		mid := a.Lerp(b, (t0+t1)/2)
		if !planar.RingContains(bd.orbRng, orb.Point{mid.X, mid.Y}) {
			continue
		}
		p0, p1 := a.Lerp(b, t0), a.Lerp(b, t1)
		blocked := math.Min(p0.Z, p1.Z) < bd.roofZ
		out = append(out,
			crossing{t: t0, inter: oracle.Intersection{Position: p0, BuildingID: bd.id, OnBuilding: blocked}},
			crossing{t: t1, inter: oracle.Intersection{Position: p1, BuildingID: bd.id, OnBuilding: blocked}},
		)
	}
	return out
}

// IsFreeField reports whether a→b stays above the terrain and the buildings.
func (w *World) IsFreeField(a, b geo.Coordinate) bool {
	for _, in := range w.Profile(a, b) {
		if in.OnBuilding || in.OnTopography {
			return false
		}
	}
	return true
}

// ShortestRoofPath stretches a path from a to b over the roofs crossed in the
// vertical plane of a→b. It is valid when at least one roof edge rises above
// the straight line.
func (w *World) ShortestRoofPath(a, b geo.Coordinate, inters []oracle.Intersection) oracle.RoofPath {
	if inters == nil {
		inters = w.Profile(a, b)
	}
	pts := make([]geo.Point2, 0, len(inters)+2)
	pos := make([]geo.Coordinate, 0, len(inters)+2)
	pts = append(pts, geo.Point2{U: 0, Z: a.Z})
	pos = append(pos, a)
	for _, in := range inters {
		if in.BuildingID == 0 {
			continue
		}
		roof := w.RoofHeight(in.BuildingID)
		pts = append(pts, geo.Point2{U: a.Distance2D(in.Position), Z: roof})
		pos = append(pos, in.Position.WithZ(roof))
	}
	pts = append(pts, geo.Point2{U: a.Distance2D(b), Z: b.Z})
	pos = append(pos, b)

	order := make([]int, len(pts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return pts[order[i]].U < pts[order[j]].U })
	sortedPts := make([]geo.Point2, len(pts))
	for i, o := range order {
		sortedPts[i] = pts[o]
	}

	hull := geo.UpperHull(sortedPts)
	path := make([]geo.Coordinate, len(hull))
	for i, h := range hull {
		path[i] = pos[order[h]]
	}
	return oracle.RoofPath{Path: path, Valid: len(path) > 2}
}
