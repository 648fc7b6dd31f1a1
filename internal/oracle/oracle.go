// Package oracle defines the geometry queries path construction relies on.
// Implementations answer visibility, profile and silhouette questions about
// the obstruction scene and must be safe for concurrent readers.
package oracle

import "noiseprop/internal/geo"

// Intersection is one point of a profile between two positions.
type Intersection struct {
	Position geo.Coordinate
	// BuildingID is the footprint crossed at this point, 0 for none.
	BuildingID int
	// OnBuilding is set when the ray passes through the building volume here.
	OnBuilding bool
	// OnTopography is set when the ray is under the ground here.
	OnTopography bool
}

// Wall is a building facade segment. The exterior face is on the right of P0→P1.
type Wall struct {
	ID         int
	P0, P1     geo.Coordinate
	BuildingID int
}

// RoofPath is the shortest path over building roofs between two positions in
// the vertical plane containing them.
type RoofPath struct {
	Path  []geo.Coordinate
	Valid bool
}

// Oracle answers geometric queries against the obstruction scene.
type Oracle interface {
	// IsFreeField reports whether nothing obstructs the segment a-b.
	IsFreeField(a, b geo.Coordinate) bool
	// Profile lists the intersections from a to b, starting at a and ending at b.
	Profile(a, b geo.Coordinate) []Intersection
	// HeightAt returns the terrain elevation, NaN outside the domain.
	HeightAt(p geo.Coordinate) float64
	// RoofHeight returns the absolute roof elevation of a building.
	RoofHeight(buildingID int) float64
	// WallAbsorption returns the per-band absorption of a building's facades.
	WallAbsorption(buildingID int) []float64
	// SilhouetteVertices returns the closed roof ring of a building, keeping
	// vertices whose exterior angle lies in [angleFrom, angleTo].
	SilhouetteVertices(buildingID int, angleFrom, angleTo float64) []geo.Coordinate
	// GroundProfile returns the terrain elevation under each intersection.
	GroundProfile(inters []Intersection) []geo.Coordinate
	// WallsWithinRange returns the facades within maxDist of p.
	WallsWithinRange(maxDist float64, p geo.Coordinate) []Wall
	// TriangleIDAt returns the mesh cell holding p, -1 outside the domain.
	TriangleIDAt(p geo.Coordinate) int
	// ShortestRoofPath returns the path over the obstacles between a and b.
	ShortestRoofPath(a, b geo.Coordinate, inters []Intersection) RoofPath
}

// BuildingsOn returns the distinct building ids crossed by a profile, in
// order of first appearance.
func BuildingsOn(inters []Intersection) []int {
	var ids []int
	seen := make(map[int]bool)
	for _, in := range inters {
		if in.BuildingID != 0 && !seen[in.BuildingID] {
			seen[in.BuildingID] = true
			ids = append(ids, in.BuildingID)
		}
	}
	return ids
}
