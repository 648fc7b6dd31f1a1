package path

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"

	"noiseprop/internal/boxworld"
	"noiseprop/internal/geo"
)

const tol = 1e-6

func box(id int, x0, y0, x1, y1, height float64) boxworld.Building {
	return boxworld.Building{
		ID:        id,
		Footprint: orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}},
		Height:    height,
		Alpha:     []float64{0.1},
	}
}

func newTestBuilder(t *testing.T, buildings ...boxworld.Building) (*Builder, *boxworld.World) {
	t.Helper()
	domain := orb.Bound{Min: orb.Point{-300, -300}, Max: orb.Point{300, 300}}
	w, err := boxworld.New(domain, boxworld.Terrain{}, buildings, 8)
	if err != nil {
		t.Fatalf("boxworld.New failed: %v", err)
	}
	return NewBuilder(w, nil, DefaultSettings(), nil), w
}

func TestFreefield_Heights(t *testing.T) {
	b, _ := newTestBuilder(t)
	src := geo.XYZ(10, 10, 1)
	rcv := geo.XYZ(200, 50, 4)

	p := b.Freefield(rcv, src, nil)
	if len(p.Points) != 2 || p.Points[0].Type != Source || p.Points[1].Type != Receiver {
		t.Fatalf("unexpected points %+v", p.Points)
	}
	seg := p.SR[0]
	if math.Abs(seg.Zs-1) > tol {
		t.Errorf("Zs = %v, want 1", seg.Zs)
	}
	if math.Abs(seg.Zr-4) > tol {
		t.Errorf("Zr = %v, want 4", seg.Zr)
	}
	if want := src.Distance2D(rcv); math.Abs(seg.Dp-want) > tol {
		t.Errorf("Dp = %v, want %v", seg.Dp, want)
	}
	if want := src.Distance3D(rcv); math.Abs(seg.D-want) > tol {
		t.Errorf("D = %v, want %v", seg.D, want)
	}
	if seg.G != 0 || seg.GPrime != 0 {
		t.Errorf("G = %v, GPrime = %v, want 0", seg.G, seg.GPrime)
	}
	if seg.TestForm <= 1 {
		t.Errorf("TestForm = %v, want > 1", seg.TestForm)
	}
	if seg.ZsPrime <= seg.Zs || seg.ZrPrime <= seg.Zr {
		t.Errorf("favorable heights %v, %v not above %v, %v", seg.ZsPrime, seg.ZrPrime, seg.Zs, seg.Zr)
	}
}

func TestFreefield_GroundCorrection(t *testing.T) {
	domain := orb.Bound{Min: orb.Point{-300, -300}, Max: orb.Point{300, 300}}
	w, err := boxworld.New(domain, boxworld.Terrain{}, nil, 8)
	if err != nil {
		t.Fatalf("boxworld.New failed: %v", err)
	}
	soils := NewSoilIndex([]Soil{{G: 1, Polygon: geom.Polygon{{{X: -100, Y: -100}, {X: 100, Y: -100}, {X: 100, Y: 100}, {X: -100, Y: 100}, {X: -100, Y: -100}}}}})
	cfg := DefaultSettings()
	cfg.GroundFactorSource = 0
	b := NewBuilder(w, soils, cfg, nil)

	// short and high: dp <= 30(zs+zr) so G' mixes in the source ground factor
	p := b.Freefield(geo.XYZ(20, 0, 5), geo.XYZ(0, 0, 5), nil)
	seg := p.SR[0]
	if math.Abs(seg.G-1) > tol {
		t.Fatalf("G = %v, want 1", seg.G)
	}
	want := seg.TestForm
	if math.Abs(seg.GPrime-want) > tol {
		t.Errorf("GPrime = %v, want %v", seg.GPrime, want)
	}
}

func TestSoilIndex_GPath(t *testing.T) {
	var _ geom.Geom = (*soilItem)(nil)

	soils := NewSoilIndex([]Soil{
		{G: 1, Polygon: geom.Polygon{{{X: 0, Y: -10}, {X: 50, Y: -10}, {X: 50, Y: 10}, {X: 0, Y: 10}, {X: 0, Y: -10}}}},
	})
	tests := []struct {
		name string
		a, b geo.Coordinate
		want float64
	}{
		{"quarter covered", geo.XY(-50, 0), geo.XY(150, 0), 0.25},
		{"fully outside", geo.XY(-50, 50), geo.XY(150, 50), 0},
		{"zero length", geo.XY(10, 0), geo.XY(10, 0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := soils.GPath(tt.a, tt.b); math.Abs(got-tt.want) > tol {
				t.Errorf("GPath = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReflections_SingleWall(t *testing.T) {
	b, w := newTestBuilder(t, box(1, 40, 20, 60, 30, 10))
	src := geo.XYZ(20, 0, 1)
	rcv := geo.XYZ(80, 0, 4)

	walls := w.WallsWithinRange(50, rcv)
	paths := b.Reflections(rcv, src, walls)
	if len(paths) != 1 {
		t.Fatalf("got %d reflection paths, want 1", len(paths))
	}
	p := paths[0]
	if p.Kind() != Reflected {
		t.Errorf("Kind = %v, want reflected", p.Kind())
	}
	if len(p.Points) != 3 {
		t.Fatalf("got %d points, want 3", len(p.Points))
	}
	refl := p.Points[1]
	if refl.Type != Reflection {
		t.Errorf("point type = %v, want REFL", refl.Type)
	}
	if math.Abs(refl.Position.X-50) > tol || math.Abs(refl.Position.Y-20) > tol {
		t.Errorf("reflection at %v, want (50,20)", refl.Position)
	}
	if math.Abs(refl.Position.Z-2.5) > tol {
		t.Errorf("reflection z = %v, want 2.5", refl.Position.Z)
	}
	if len(refl.WallAlpha) != 8 || refl.WallAlpha[0] != 0.1 {
		t.Errorf("WallAlpha = %v, want eight values of 0.1", refl.WallAlpha)
	}
	if len(p.Segments) != 2 {
		t.Errorf("got %d segments, want 2", len(p.Segments))
	}
	if want := src.Distance3D(geo.XYZ(80, 40, 4)); math.Abs(p.Length()-want) > tol {
		t.Errorf("Length = %v, want image distance %v", p.Length(), want)
	}
	if b.MirrorImages() == 0 {
		t.Error("expected mirror images to be counted")
	}
}

func TestReflections_WallBelowRay(t *testing.T) {
	b, w := newTestBuilder(t, box(1, 40, 20, 60, 30, 2))
	src := geo.XYZ(20, 0, 1)
	rcv := geo.XYZ(80, 0, 4)

	if paths := b.Reflections(rcv, src, w.WallsWithinRange(50, rcv)); len(paths) != 0 {
		t.Errorf("got %d paths, want 0 when the wall is lower than the reflection point", len(paths))
	}
}

func TestReflections_MaxReflectionDistance(t *testing.T) {
	b, w := newTestBuilder(t, box(1, 40, 20, 60, 30, 10))
	b.cfg.MaxReflectionDistance = 5
	src := geo.XYZ(20, 0, 1)
	rcv := geo.XYZ(80, 0, 4)

	if paths := b.Reflections(rcv, src, w.WallsWithinRange(50, rcv)); len(paths) != 0 {
		t.Errorf("got %d paths, want 0 with the wall beyond the reflection distance", len(paths))
	}
}

func TestBuildMirrors_SecondOrder(t *testing.T) {
	_, w := newTestBuilder(t, box(1, 0, 20, 100, 30, 10), box(2, 0, -30, 100, -20, 10))
	src := geo.XYZ(20, 0, 1)
	rcv := geo.XYZ(80, 0, 4)
	walls := append(w.WallsWithinRange(60, rcv), w.WallsWithinRange(60, src)...)

	arena := BuildMirrors(rcv, src, walls, 2, 100, 1000)
	second := 0
	for i, n := range arena.Nodes {
		if n.Parent >= i {
			t.Fatalf("node %d has parent %d after it", i, n.Parent)
		}
		if arena.Depth(i) == 2 {
			second++
			if n.Wall == arena.Nodes[n.Parent].Wall {
				t.Errorf("node %d mirrors twice on wall %d", i, n.Wall)
			}
		}
	}
	if second == 0 {
		t.Error("expected second-order images between facing walls")
	}
}

func TestSideHull_AroundBox(t *testing.T) {
	b, _ := newTestBuilder(t, box(1, 40, -10, 60, 10, 20))
	src := geo.XYZ(0, 0, 1)
	rcv := geo.XYZ(100, 0, 1)

	tests := []struct {
		name  string
		left  bool
		sideY float64
	}{
		{"left", true, 10},
		{"right", false, -10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side := b.SideHull(tt.left, src, rcv)
			if len(side) != 4 {
				t.Fatalf("got %d points, want 4: %v", len(side), side)
			}
			if !side[0].Equals2D(src) || !side[3].Equals2D(rcv) {
				t.Errorf("side does not run from source to receiver: %v", side)
			}
			for _, c := range side[1:3] {
				if c.Y != tt.sideY {
					t.Errorf("vertex %v not on y = %v", c, tt.sideY)
				}
				if math.Abs(c.Z-1) > tol {
					t.Errorf("vertex z = %v, want cut plane height 1", c.Z)
				}
			}
		})
	}
}

func TestVerticalEdgeDiffraction_VerticesClearBuilding(t *testing.T) {
	b, w := newTestBuilder(t, box(1, 40, -10, 60, 10, 20))
	src := geo.XYZ(0, 0, 1)
	rcv := geo.XYZ(100, 0, 1)

	paths := b.VerticalEdgeDiffraction(src, rcv)
	if len(paths) != 2 {
		t.Fatalf("got %d paths, want one per side", len(paths))
	}
	for _, p := range paths {
		pts := p.Positions()
		for i, pt := range p.Points[1 : len(pts)-1] {
			if pt.Type != VerticalDiffraction {
				t.Errorf("point %d type = %v, want %v", i+1, pt.Type, VerticalDiffraction)
			}
			if math.Abs(pt.Position.Y) <= 10 {
				t.Errorf("vertex %v is not outside the footprint", pt.Position)
			}
		}
		for i := 1; i < len(pts); i++ {
			if !w.IsFreeField(pts[i-1], pts[i]) {
				t.Errorf("leg %v -> %v is obstructed", pts[i-1], pts[i])
			}
		}
	}
}

func TestSideHull_RatioExceeded(t *testing.T) {
	b, _ := newTestBuilder(t, box(1, 3, -100, 7, 100, 10))
	src := geo.XYZ(0, 0, 1)
	rcv := geo.XYZ(10, 0, 1)

	if side := b.SideHull(true, src, rcv); side != nil {
		t.Errorf("SideHull = %v, want nil for a hull much longer than the direct path", side)
	}
	if paths := b.VerticalEdgeDiffraction(src, rcv); len(paths) != 0 {
		t.Errorf("got %d side paths, want 0", len(paths))
	}
}

func TestSideHull_LeavesDomain(t *testing.T) {
	b, _ := newTestBuilder(t, box(1, 40, -10, 60, 400, 20))
	b.cfg.MaxHullRatio = 100
	if side := b.SideHull(true, geo.XYZ(0, 0, 1), geo.XYZ(100, 0, 1)); side != nil {
		t.Errorf("SideHull = %v, want nil when the hull leaves the domain", side)
	}
}

func TestDirectPaths(t *testing.T) {
	src := geo.XYZ(0, 0, 1)
	rcv := geo.XYZ(100, 0, 1)

	t.Run("unobstructed", func(t *testing.T) {
		b, _ := newTestBuilder(t, box(1, 40, -10, 60, 10, 0.5))
		paths := b.DirectPaths(src, rcv, true, true)
		if len(paths) != 1 || paths[0].Kind() != Direct {
			t.Fatalf("got %d paths, want a single direct path", len(paths))
		}
	})

	t.Run("roof only", func(t *testing.T) {
		b, _ := newTestBuilder(t, box(1, 40, -10, 60, 10, 20))
		paths := b.DirectPaths(src, rcv, true, false)
		if len(paths) != 1 {
			t.Fatalf("got %d paths, want 1", len(paths))
		}
		p := paths[0]
		if p.Kind() != DiffractedRoof || p.Count(HorizontalDiffraction) != 2 {
			t.Errorf("got %v with %d roof points, want 2", p.Kind(), p.Count(HorizontalDiffraction))
		}
		if len(p.SR) != 3 {
			t.Errorf("got %d SR segments, want 3", len(p.SR))
		}
		for _, pt := range p.Points[1:3] {
			if math.Abs(pt.Position.Z-20) > tol {
				t.Errorf("roof point z = %v, want 20", pt.Position.Z)
			}
		}
	})

	t.Run("all diffractions", func(t *testing.T) {
		b, _ := newTestBuilder(t, box(1, 40, -10, 60, 10, 20))
		paths := b.DirectPaths(src, rcv, true, true)
		if len(paths) != 3 {
			t.Fatalf("got %d paths, want roof plus two sides", len(paths))
		}
		sides := 0
		for _, p := range paths {
			if p.Kind() == DiffractedSide {
				sides++
				want := 2*math.Hypot(40, 10) + 20
				if math.Abs(p.Length()-want) > 1e-3 {
					t.Errorf("side length = %v, want %v", p.Length(), want)
				}
			}
		}
		if sides != 2 {
			t.Errorf("got %d side paths, want 2", sides)
		}
	})

	t.Run("diffraction disabled", func(t *testing.T) {
		b, _ := newTestBuilder(t, box(1, 40, -10, 60, 10, 20))
		if paths := b.DirectPaths(src, rcv, false, false); len(paths) != 0 {
			t.Errorf("got %d paths, want 0", len(paths))
		}
	})
}

func TestHorizontalEdgeDiffraction_ImageSegments(t *testing.T) {
	b, _ := newTestBuilder(t, box(1, 40, -10, 60, 10, 20))
	src := geo.XYZ(0, 0, 1)
	rcv := geo.XYZ(100, 0, 1)

	p, ok := b.HorizontalEdgeDiffraction(true, rcv, src, nil)
	if !ok {
		t.Fatal("expected a roof path")
	}
	// flat ground at z=0: the images sit below the ground
	if got := p.SR[1].S; math.Abs(got.Z+1) > tol || math.Abs(got.X) > tol {
		t.Errorf("image source = %v, want (0,0,-1)", got)
	}
	if got := p.SR[2].R; math.Abs(got.Z+1) > tol || math.Abs(got.X-100) > tol {
		t.Errorf("image receiver = %v, want (100,0,-1)", got)
	}

	free, ok := b.HorizontalEdgeDiffraction(false, rcv, src, nil)
	if !ok || free.Kind() != Direct {
		t.Errorf("unobstructed call = %v, %v, want the freefield path", free.Kind(), ok)
	}
}

func TestPaths_MaxSourceDistance(t *testing.T) {
	b, _ := newTestBuilder(t)
	b.cfg.MaxSourceDistance = 50
	if paths := b.Paths(geo.XYZ(0, 0, 1), geo.XYZ(100, 0, 1), nil); len(paths) != 0 {
		t.Errorf("got %d paths, want 0 beyond the source distance", len(paths))
	}
}

func TestPointType_String(t *testing.T) {
	tests := []struct {
		t    PointType
		want string
	}{
		{Source, "SRCE"},
		{Receiver, "RECV"},
		{Reflection, "REFL"},
		{VerticalDiffraction, "DIFV"},
		{HorizontalDiffraction, "DIFH"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
