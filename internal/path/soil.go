package path

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"noiseprop/internal/geo"
)

// Soil is a ground area with a dimensionless absorption G in [0,1].
type Soil struct {
	G       float64
	Polygon geom.Polygon
}

type soilItem struct {
	g float64
	geom.Polygon
}

// SoilIndex answers ground-fraction queries. It is read-only once built.
type SoilIndex struct {
	tree *rtree.Rtree
}

// NewSoilIndex indexes the soil polygons. Areas not covered count as G=0.
func NewSoilIndex(soils []Soil) *SoilIndex {
	idx := &SoilIndex{tree: rtree.NewTree(25, 50)}
	for _, s := range soils {
		if len(s.Polygon) == 0 {
			continue
		}
		idx.tree.Insert(&soilItem{g: s.G, Polygon: s.Polygon})
	}
	return idx
}

// GPath returns the length-weighted G along the planar segment a-b.
func (s *SoilIndex) GPath(a, b geo.Coordinate) float64 {
	length := a.Distance2D(b)
	if s == nil || length == 0 {
		return 0
	}
	line := geom.LineString{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}}
	var weighted float64
	for _, item := range s.tree.SearchIntersect(line.Bounds()) {
		soil := item.(*soilItem)
		clipped := line.Clip(soil.Polygon)
		if clipped == nil {
			continue
		}
		weighted += clipped.Length() * soil.g
	}
	return math.Max(0, math.Min(1, weighted/length))
}
