package boxworld

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"

	perrors "noiseprop/internal/errors"
	"noiseprop/internal/geo"
	"noiseprop/internal/oracle"
)

var testDomain = orb.Bound{Min: orb.Point{-300, -300}, Max: orb.Point{300, 300}}

func square(id int, x0, y0, x1, y1, h float64) Building {
	// clockwise on purpose: New must reorient it
	return Building{ID: id, Footprint: orb.Ring{{x0, y0}, {x0, y1}, {x1, y1}, {x1, y0}}, Height: h}
}

func newWorld(t *testing.T, buildings ...Building) *World {
	t.Helper()
	w, err := New(testDomain, Terrain{}, buildings, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return w
}

func TestNew_InvalidScene(t *testing.T) {
	tests := []struct {
		name      string
		domain    orb.Bound
		buildings []Building
	}{
		{"empty domain", orb.Bound{}, nil},
		{"zero id", testDomain, []Building{square(0, 0, 0, 1, 1, 5)}},
		{"duplicate id", testDomain, []Building{square(1, 0, 0, 1, 1, 5), square(1, 5, 5, 6, 6, 5)}},
		{"degenerate footprint", testDomain, []Building{{ID: 1, Footprint: orb.Ring{{0, 0}, {1, 1}}}}},
		{"band mismatch", testDomain, []Building{{ID: 1, Footprint: orb.Ring{{0, 0}, {1, 0}, {1, 1}}, Alpha: []float64{0.1, 0.2}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.domain, Terrain{}, tt.buildings, 3)
			if err == nil {
				t.Fatal("expected error")
			}
			if !perrors.IsCode(err, perrors.InvalidScene) {
				t.Errorf("error code = %v, want %v", perrors.CodeOf(err), perrors.InvalidScene)
			}
		})
	}
}

func TestProfile_CrossesBuilding(t *testing.T) {
	w := newWorld(t, square(7, 40, -10, 60, 10, 20))
	inters := w.Profile(geo.XYZ(0, 0, 1), geo.XYZ(100, 0, 1))
	if len(inters) != 4 {
		t.Fatalf("got %d intersections, want 4", len(inters))
	}
	if !inters[1].OnBuilding || inters[1].BuildingID != 7 {
		t.Errorf("entry = %+v, want building 7 blocking", inters[1])
	}
	if math.Abs(inters[1].Position.X-40) > 1e-9 || math.Abs(inters[2].Position.X-60) > 1e-9 {
		t.Errorf("crossing at x = %v, %v, want 40, 60", inters[1].Position.X, inters[2].Position.X)
	}
	if got := oracle.BuildingsOn(inters); len(got) != 1 || got[0] != 7 {
		t.Errorf("BuildingsOn = %v, want [7]", got)
	}
	if w.IsFreeField(geo.XYZ(0, 0, 1), geo.XYZ(100, 0, 1)) {
		t.Error("ray through the building should not be free")
	}
}

func TestProfile_OverLowBuilding(t *testing.T) {
	w := newWorld(t, square(1, 40, -10, 60, 10, 0.5))
	if !w.IsFreeField(geo.XYZ(0, 0, 1), geo.XYZ(100, 0, 1)) {
		t.Error("ray above the roof should be free")
	}
}

func TestProfile_UnderTerrain(t *testing.T) {
	w, err := New(testDomain, Terrain{Z0: 5}, nil, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	inters := w.Profile(geo.XYZ(0, 0, 1), geo.XYZ(10, 0, 6))
	if !inters[0].OnTopography {
		t.Error("start below the terrain should be flagged")
	}
	if inters[len(inters)-1].OnTopography {
		t.Error("end above the terrain should not be flagged")
	}
}

func TestWorld_Heights(t *testing.T) {
	w, err := New(testDomain, Terrain{Z0: 2, SlopeX: 0.1}, []Building{square(1, 0, 0, 10, 10, 8)}, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := w.HeightAt(geo.XY(10, 0)); math.Abs(got-3) > 1e-9 {
		t.Errorf("HeightAt = %v, want 3", got)
	}
	if got := w.HeightAt(geo.XY(1000, 0)); !math.IsNaN(got) {
		t.Errorf("HeightAt outside = %v, want NaN", got)
	}
	// roof measured from the terrain at the centroid (5,5): 2.5 + 8
	if got := w.RoofHeight(1); math.Abs(got-10.5) > 1e-9 {
		t.Errorf("RoofHeight = %v, want 10.5", got)
	}
	if got := w.RoofHeight(99); !math.IsNaN(got) {
		t.Errorf("RoofHeight unknown = %v, want NaN", got)
	}
	if got := w.WallAbsorption(1); len(got) != 3 || got[0] != 0 {
		t.Errorf("WallAbsorption = %v, want three zeros", got)
	}
}

func TestWorld_TriangleIDAt(t *testing.T) {
	w := newWorld(t)
	if got := w.TriangleIDAt(geo.XY(400, 0)); got != -1 {
		t.Errorf("TriangleIDAt outside = %d, want -1", got)
	}
	a, b := w.TriangleIDAt(geo.XY(0, 0)), w.TriangleIDAt(geo.XY(100, 0))
	if a < 0 || b < 0 || a == b {
		t.Errorf("TriangleIDAt = %d, %d, want distinct cells", a, b)
	}
}

func TestWorld_WallsWithinRange(t *testing.T) {
	var (
		_ geom.Geom = (*building)(nil)
		_ geom.Geom = (*wallItem)(nil)
	)

	w := newWorld(t, square(1, 40, 20, 60, 30, 10), square(2, 200, 200, 210, 210, 10))
	walls := w.WallsWithinRange(50, geo.XY(80, 0))
	if len(walls) != 4 {
		t.Fatalf("got %d walls, want the 4 facades of building 1", len(walls))
	}
	for i, wall := range walls {
		if wall.BuildingID != 1 {
			t.Errorf("wall %d belongs to building %d", wall.ID, wall.BuildingID)
		}
		if i > 0 && walls[i-1].ID >= wall.ID {
			t.Error("walls not ordered by id")
		}
		// exterior on the right: the centroid is on the left
		if geo.Cross2D(wall.P0, wall.P1, geo.XY(50, 25)) <= 0 {
			t.Errorf("wall %d is not oriented with the exterior on its right", wall.ID)
		}
	}
}

func TestWorld_SilhouetteVertices(t *testing.T) {
	w := newWorld(t, square(1, 0, 0, 10, 10, 5))
	ring := w.SilhouetteVertices(1, 0, 2*math.Pi)
	if len(ring) != 5 {
		t.Fatalf("got %d vertices, want a closed ring of 5", len(ring))
	}
	if !ring[0].Equals2D(ring[4]) {
		t.Error("ring not closed")
	}
	for _, c := range ring {
		if c.Z != 5 {
			t.Errorf("vertex z = %v, want roof height 5", c.Z)
		}
	}
	if got := w.SilhouetteVertices(1, 0, math.Pi/4); len(got) != 0 {
		t.Errorf("got %d vertices with a narrow angle range, want 0", len(got))
	}
}

func TestWorld_ShortestRoofPath(t *testing.T) {
	w := newWorld(t, square(1, 40, -10, 60, 10, 20))
	src, rcv := geo.XYZ(0, 0, 1), geo.XYZ(100, 0, 1)

	rp := w.ShortestRoofPath(src, rcv, nil)
	if !rp.Valid || len(rp.Path) != 4 {
		t.Fatalf("ShortestRoofPath = %+v, want a valid 4-point path", rp)
	}
	if !rp.Path[0].Equals2D(src) || !rp.Path[3].Equals2D(rcv) {
		t.Error("path should start at the source and end at the receiver")
	}

	low := newWorld(t, square(1, 40, -10, 60, 10, 0.5))
	if rp := low.ShortestRoofPath(src, rcv, nil); rp.Valid {
		t.Errorf("path over a low building = %+v, want invalid", rp)
	}
}

func TestWorld_GroundProfile(t *testing.T) {
	w, err := New(testDomain, Terrain{SlopeY: 0.5}, nil, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	g := w.GroundProfile([]oracle.Intersection{{Position: geo.XY(0, 4)}, {Position: geo.XY(0, 1000)}})
	if g[0].Z != 2 || g[1].Z != 500 {
		t.Errorf("GroundProfile = %v, want z 2 and 500", g)
	}
}
