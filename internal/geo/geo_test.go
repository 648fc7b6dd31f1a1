package geo

import (
	"math"
	"testing"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestIntersectSegments(t *testing.T) {
	tests := []struct {
		name   string
		p0, p1 Coordinate
		q0, q1 Coordinate
		want   Coordinate
		wantOK bool
	}{
		{"cross", XY(0, 0), XY(10, 10), XY(0, 10), XY(10, 0), XY(5, 5), true},
		{"touching end", XY(0, 0), XY(5, 0), XY(5, -1), XY(5, 1), XY(5, 0), true},
		{"disjoint", XY(0, 0), XY(1, 0), XY(2, -1), XY(2, 1), Coordinate{}, false},
		{"parallel", XY(0, 0), XY(1, 0), XY(0, 1), XY(1, 1), Coordinate{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := IntersectSegments(tt.p0, tt.p1, tt.q0, tt.q1)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (!near(got.X, tt.want.X, 1e-9) || !near(got.Y, tt.want.Y, 1e-9)) {
				t.Errorf("IntersectSegments() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInterpolateZ(t *testing.T) {
	a, b := XYZ(0, 0, 10), XYZ(10, 0, 20)
	if got := InterpolateZ(XY(2.5, 0), a, b); !near(got, 12.5, 1e-12) {
		t.Errorf("InterpolateZ() = %v, want 12.5", got)
	}
	if got := InterpolateZ(XY(3, 3), a, a); got != 10 {
		t.Errorf("degenerate InterpolateZ() = %v, want 10", got)
	}
}

func TestMirrorAcrossLine(t *testing.T) {
	got := MirrorAcrossLine(XYZ(2, 3, 4), XY(0, 0), XY(10, 0))
	if got.X != 2 || got.Y != -3 || got.Z != 4 {
		t.Errorf("MirrorAcrossLine() = %v, want (2,-3,4)", got)
	}
}

func TestConvexHull(t *testing.T) {
	pts := []Coordinate{
		XYZ(0, 0, 1), XYZ(10, 0, 2), XYZ(10, 10, 3), XYZ(0, 10, 4),
		XYZ(5, 5, 5), XYZ(5, 0, 6), XYZ(0, 0, 7),
	}
	hull := ConvexHull(pts)
	if len(hull) != 4 {
		t.Fatalf("len(hull) = %d, want 4: %v", len(hull), hull)
	}
	var area float64
	for i := range hull {
		j := (i + 1) % len(hull)
		area += hull[i].X*hull[j].Y - hull[j].X*hull[i].Y
	}
	if area <= 0 {
		t.Errorf("hull should be counter-clockwise, signed area %v", area)
	}
	if got := RingPerimeter(hull); !near(got, 40, 1e-9) {
		t.Errorf("RingPerimeter() = %v, want 40", got)
	}
	for _, p := range hull {
		if p.X == 10 && p.Y == 10 && p.Z != 3 {
			t.Errorf("hull vertex lost its elevation: %v", p)
		}
	}
}

func TestUpperHull(t *testing.T) {
	pts := []Point2{{0, 1}, {2, 5}, {3, 2}, {5, 6}, {6, 6}, {9, 4}}
	idx := UpperHull(pts)
	want := []int{0, 1, 3, 4, 5}
	if len(idx) != len(want) {
		t.Fatalf("UpperHull() = %v, want %v", idx, want)
	}
	for i := range want {
		if idx[i] != want[i] {
			t.Errorf("UpperHull()[%d] = %d, want %d", i, idx[i], want[i])
		}
	}
}

func TestMeanPlane(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		a, b := MeanPlane([]Point2{{0, 3}, {50, 3}, {100, 3}})
		if !near(a, 0, 1e-9) || !near(b, 3, 1e-9) {
			t.Errorf("MeanPlane() = %v, %v, want 0, 3", a, b)
		}
	})
	t.Run("slope", func(t *testing.T) {
		a, b := MeanPlane([]Point2{{0, 1}, {40, 3}, {100, 6}})
		if !near(a, 0.05, 1e-9) || !near(b, 1, 1e-9) {
			t.Errorf("MeanPlane() = %v, %v, want 0.05, 1", a, b)
		}
	})
	t.Run("step is balanced", func(t *testing.T) {
		a, b := MeanPlane([]Point2{{0, 0}, {10, 0}, {10, 2}, {20, 2}})
		if a <= 0 {
			t.Errorf("slope = %v, want positive", a)
		}
		if mid := a*10 + b; !near(mid, 1, 1e-9) {
			t.Errorf("plane at the step = %v, want 1", mid)
		}
	})
	t.Run("degenerate", func(t *testing.T) {
		a, b := MeanPlane([]Point2{{0, 4}})
		if a != 0 || b != 4 {
			t.Errorf("MeanPlane() = %v, %v, want 0, 4", a, b)
		}
	})
}

func TestProfileLineHelpers(t *testing.T) {
	p := Point2{U: 0, Z: 2}
	if h := HeightAboveLine(p, 0, 0); h != 2 {
		t.Errorf("HeightAboveLine() = %v, want 2", h)
	}
	m := MirrorAcrossProfileLine(p, 0, 0)
	if m.U != 0 || m.Z != -2 {
		t.Errorf("MirrorAcrossProfileLine() = %v, want (0,-2)", m)
	}
	f := ProjectOnLine(Point2{U: 0, Z: 2}, 1, 0)
	if !near(f.U, 1, 1e-12) || !near(f.Z, 1, 1e-12) {
		t.Errorf("ProjectOnLine() = %v, want (1,1)", f)
	}
}

func TestCutPlane(t *testing.T) {
	plane := CutPlane{P1: XYZ(0, 0, 0), P2: XYZ(100, 0, 10)}
	if got := plane.ZAt(XY(50, 30)); !near(got, 5, 1e-12) {
		t.Errorf("ZAt() = %v, want 5", got)
	}

	// A 20 m roof square at x 40..60, partly below the plane near x=60 when the
	// roof is at 5.5 m: plane is 4..6 m across it.
	ring := []Coordinate{
		XYZ(40, -10, 5.5), XYZ(60, -10, 5.5), XYZ(60, 10, 5.5), XYZ(40, 10, 5.5), XYZ(40, -10, 5.5),
	}
	cut := plane.CutRing(ring)
	if len(cut) == 0 {
		t.Fatal("CutRing() returned nothing")
	}
	for _, p := range cut {
		if !near(p.Z, plane.ZAt(p), 1e-9) {
			t.Errorf("cut point %v is not on the plane", p)
		}
		if p.X > 55+1e-9 {
			t.Errorf("cut point %v lies where the roof is under the plane", p)
		}
	}

	if got := plane.CutRing([]Coordinate{XYZ(40, 0, 1), XYZ(60, 0, 1)}); len(got) != 0 {
		t.Errorf("roof below plane should be cut away, got %v", got)
	}
}
