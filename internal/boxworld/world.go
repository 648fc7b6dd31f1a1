// Package boxworld is an analytic obstruction scene: planar terrain inside a
// rectangular domain and extruded flat-roof buildings. It implements the
// oracle queries without a triangulated mesh.
package boxworld

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	perrors "noiseprop/internal/errors"
	"noiseprop/internal/geo"
	"noiseprop/internal/oracle"
)

// cellSize is the edge length of the grid cells reported as triangle ids.
const cellSize = 25.0

// minCrossing is the shortest footprint interval counted as a crossing, in m.
const minCrossing = 1e-6

// Terrain is the plane z = Z0 + SlopeX·x + SlopeY·y.
type Terrain struct {
	Z0     float64
	SlopeX float64
	SlopeY float64
}

// Building is an extruded footprint. Height is measured from the terrain at
// the footprint centroid. Alpha holds one absorption value per band.
type Building struct {
	ID        int
	Footprint orb.Ring
	Height    float64
	Alpha     []float64
}

type building struct {
	id     int
	ring   []geo.Coordinate // counter-clockwise, closed
	orbRng orb.Ring
	roofZ  float64
	alpha  []float64

	// footprint indexes the building in the rtree.
	geom.Polygon
}

type wallItem struct {
	wall oracle.Wall
	geom.LineString
}

// World is a read-only scene, safe for concurrent queries once built.
type World struct {
	domain    orb.Bound
	terrain   Terrain
	bands     int
	buildings map[int]*building
	index     *rtree.Rtree
	walls     []oracle.Wall
	wallIndex *rtree.Rtree
	nx        int
}

var _ oracle.Oracle = (*World)(nil)

// New builds a world. Building ids must be positive and unique, and each
// building must carry either one absorption value or one per band.
func New(domain orb.Bound, terrain Terrain, buildings []Building, bands int) (*World, error) {
	if domain.Max[0] <= domain.Min[0] || domain.Max[1] <= domain.Min[1] {
		return nil, perrors.Newf(perrors.InvalidScene, "empty propagation domain %v", domain)
	}
	w := &World{
		domain:    domain,
		terrain:   terrain,
		bands:     bands,
		buildings: make(map[int]*building, len(buildings)),
		index:     rtree.NewTree(25, 50),
		wallIndex: rtree.NewTree(25, 50),
		nx:        int(math.Ceil((domain.Max[0]-domain.Min[0])/cellSize)) + 1,
	}
	for _, b := range buildings {
		if err := w.addBuilding(b); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *World) addBuilding(b Building) error {
	if b.ID <= 0 {
		return perrors.Newf(perrors.InvalidScene, "building id %d must be positive", b.ID)
	}
	if _, dup := w.buildings[b.ID]; dup {
		return perrors.Newf(perrors.InvalidScene, "duplicate building id %d", b.ID)
	}
	ring := append(orb.Ring(nil), b.Footprint...)
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	if len(ring) < 4 {
		return perrors.Newf(perrors.InvalidScene, "building %d footprint needs at least 3 vertices", b.ID)
	}
	if ring.Orientation() != orb.CCW {
		for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
			ring[i], ring[j] = ring[j], ring[i]
		}
	}

	alpha, err := expandAlpha(b.Alpha, w.bands)
	if err != nil {
		return perrors.New(perrors.InvalidScene, "building absorption", err).WithDetails(map[string]int{"building": b.ID})
	}

	centroid, _ := planar.CentroidArea(orb.Polygon{ring})
	bd := &building{
		id:     b.ID,
		orbRng: ring,
		roofZ:  w.terrainZ(centroid[0], centroid[1]) + b.Height,
		alpha:  alpha,
	}
	footprint := make([]geom.Point, len(ring))
	for i, p := range ring {
		footprint[i] = geom.Point{X: p[0], Y: p[1]}
	}
	bd.Polygon = geom.Polygon{footprint}
	bd.ring = make([]geo.Coordinate, len(ring))
	for i, p := range ring {
		bd.ring[i] = geo.XYZ(p[0], p[1], bd.roofZ)
	}
	w.buildings[b.ID] = bd
	w.index.Insert(bd)

	for i := 0; i+1 < len(bd.ring); i++ {
		// counter-clockwise ring: the exterior is on the right of each edge
		wall := oracle.Wall{
			ID:         len(w.walls),
			P0:         bd.ring[i],
			P1:         bd.ring[i+1],
			BuildingID: b.ID,
		}
		w.walls = append(w.walls, wall)
		w.wallIndex.Insert(&wallItem{
			wall:       wall,
			LineString: geom.LineString{{X: wall.P0.X, Y: wall.P0.Y}, {X: wall.P1.X, Y: wall.P1.Y}},
		})
	}
	return nil
}

func expandAlpha(alpha []float64, bands int) ([]float64, error) {
	switch len(alpha) {
	case 0:
		return make([]float64, bands), nil
	case 1:
		out := make([]float64, bands)
		for i := range out {
			out[i] = alpha[0]
		}
		return out, nil
	case bands:
		return append([]float64(nil), alpha...), nil
	default:
		return nil, perrors.Newf(perrors.BandMismatch, "%d absorption values for %d bands", len(alpha), bands)
	}
}

func segmentBounds(a, b geo.Coordinate, pad float64) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: math.Min(a.X, b.X) - pad, Y: math.Min(a.Y, b.Y) - pad},
		Max: geom.Point{X: math.Max(a.X, b.X) + pad, Y: math.Max(a.Y, b.Y) + pad},
	}
}

func (w *World) terrainZ(x, y float64) float64 {
	return w.terrain.Z0 + w.terrain.SlopeX*x + w.terrain.SlopeY*y
}

func (w *World) inDomain(p geo.Coordinate) bool {
	return p.X >= w.domain.Min[0] && p.X <= w.domain.Max[0] &&
		p.Y >= w.domain.Min[1] && p.Y <= w.domain.Max[1]
}

// HeightAt returns the terrain elevation, NaN outside the domain.
func (w *World) HeightAt(p geo.Coordinate) float64 {
	if !w.inDomain(p) {
		return math.NaN()
	}
	return w.terrainZ(p.X, p.Y)
}

// TriangleIDAt returns the grid cell holding p, -1 outside the domain.
func (w *World) TriangleIDAt(p geo.Coordinate) int {
	if !w.inDomain(p) {
		return -1
	}
	ix := int((p.X - w.domain.Min[0]) / cellSize)
	iy := int((p.Y - w.domain.Min[1]) / cellSize)
	return iy*w.nx + ix
}

// RoofHeight returns the absolute roof elevation, NaN for an unknown building.
func (w *World) RoofHeight(buildingID int) float64 {
	if b, ok := w.buildings[buildingID]; ok {
		return b.roofZ
	}
	return math.NaN()
}

// WallAbsorption returns a copy of the building's per-band absorption.
func (w *World) WallAbsorption(buildingID int) []float64 {
	if b, ok := w.buildings[buildingID]; ok {
		return append([]float64(nil), b.alpha...)
	}
	return make([]float64, w.bands)
}

// SilhouetteVertices returns the closed roof ring of a building, keeping the
// vertices whose interior angle lies in [angleFrom, angleTo].
func (w *World) SilhouetteVertices(buildingID int, angleFrom, angleTo float64) []geo.Coordinate {
	b, ok := w.buildings[buildingID]
	if !ok {
		return nil
	}
	n := len(b.ring) - 1
	out := make([]geo.Coordinate, 0, len(b.ring))
	for i := 0; i < n; i++ {
		prev, cur, next := b.ring[(i+n-1)%n], b.ring[i], b.ring[(i+1)%n]
		if a := interiorAngle(prev, cur, next); a >= angleFrom && a <= angleTo {
			out = append(out, cur)
		}
	}
	if len(out) > 0 {
		out = append(out, out[0])
	}
	return out
}

// interiorAngle at cur for a counter-clockwise ring, in [0, 2π).
func interiorAngle(prev, cur, next geo.Coordinate) float64 {
	a := cur.Azimuth(next) - cur.Azimuth(prev)
	for a < 0 {
		a += 2 * math.Pi
	}
	return 2*math.Pi - a
}

// WallsWithinRange returns the facades within maxDist of p, ordered by id.
func (w *World) WallsWithinRange(maxDist float64, p geo.Coordinate) []oracle.Wall {
	var out []oracle.Wall
	for _, item := range w.wallIndex.SearchIntersect(segmentBounds(p, p, maxDist)) {
		wi := item.(*wallItem)
		if geo.DistanceToSegment(p, wi.wall.P0, wi.wall.P1) <= maxDist {
			out = append(out, wi.wall)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GroundProfile returns the terrain under each intersection. Positions outside
// the domain use the terrain plane extended past the domain.
func (w *World) GroundProfile(inters []oracle.Intersection) []geo.Coordinate {
	out := make([]geo.Coordinate, len(inters))
	for i, in := range inters {
		out[i] = geo.XYZ(in.Position.X, in.Position.Y, w.terrainZ(in.Position.X, in.Position.Y))
	}
	return out
}
