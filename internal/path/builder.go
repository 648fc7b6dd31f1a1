package path

import (
	"log/slog"
	"math"
	"sync/atomic"

	"noiseprop/internal/geo"
	"noiseprop/internal/oracle"
)

// a0 is the curvature term of the favorable-condition height correction.
const a0 = 2e-4

// minHeightSum floors zs+zr when it divides, in m.
const minHeightSum = 1e-2

// Builder constructs propagation paths against one scene. It keeps no state
// between calls except counters and is safe for concurrent use.
type Builder struct {
	oracle oracle.Oracle
	soils  *SoilIndex
	cfg    Settings
	logger *slog.Logger

	images atomic.Int64
}

// NewBuilder creates a Builder. A nil soil index means reflecting ground
// everywhere. A nil logger discards.
func NewBuilder(o oracle.Oracle, soils *SoilIndex, cfg Settings, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{oracle: o, soils: soils, cfg: cfg, logger: logger}
}

// Settings returns the builder configuration.
func (b *Builder) Settings() Settings {
	return b.cfg
}

// MirrorImages returns the number of mirror images generated so far.
func (b *Builder) MirrorImages() int64 {
	return b.images.Load()
}

// Freefield builds the straight path from source to receiver. inters may be
// nil, in which case the profile is requested from the oracle.
func (b *Builder) Freefield(receiver, source geo.Coordinate, inters []oracle.Intersection) Path {
	if inters == nil {
		inters = b.oracle.Profile(source, receiver)
	}
	seg := b.segment(source, receiver, inters)
	return Path{
		Points: []Point{
			b.point(source, Source),
			b.point(receiver, Receiver),
		},
		Segments: []Segment{seg},
		SR:       []Segment{seg},
	}
}

// Paths returns every path from source to receiver: the direct ones and the
// reflections on the given walls.
func (b *Builder) Paths(source, receiver geo.Coordinate, walls []oracle.Wall) []Path {
	if b.cfg.MaxSourceDistance > 0 && source.Distance2D(receiver) > b.cfg.MaxSourceDistance {
		return nil
	}
	paths := b.DirectPaths(source, receiver, b.cfg.VerticalDiffraction, b.cfg.HorizontalDiffraction)
	if b.cfg.ReflectionOrder > 0 && len(walls) > 0 {
		paths = append(paths, b.Reflections(receiver, source, walls)...)
	}
	return paths
}

func (b *Builder) point(p geo.Coordinate, t PointType) Point {
	return Point{Position: p, Type: t, GroundZ: b.oracle.HeightAt(p)}
}

// segment measures one straight leg against its mean ground plane.
func (b *Builder) segment(s, r geo.Coordinate, inters []oracle.Intersection) Segment {
	if inters == nil {
		inters = b.oracle.Profile(s, r)
	}
	ground := b.oracle.GroundProfile(inters)
	profile := make([]geo.Point2, 0, len(ground))
	for _, g := range ground {
		if math.IsNaN(g.Z) {
			continue
		}
		profile = append(profile, geo.Point2{U: s.Distance2D(g), Z: g.Z})
	}
	pa, pb := geo.MeanPlane(profile)

	length := s.Distance2D(r)
	sp := geo.Point2{U: 0, Z: s.Z}
	rp := geo.Point2{U: length, Z: r.Z}
	ps, pr := geo.ProjectOnLine(sp, pa, pb), geo.ProjectOnLine(rp, pa, pb)

	seg := Segment{
		S:       s,
		R:       r,
		G:       b.soils.GPath(s, r),
		D:       s.Distance3D(r),
		Dp:      math.Hypot(pr.U-ps.U, pr.Z-ps.Z),
		Zs:      math.Max(0, geo.HeightAboveLine(sp, pa, pb)),
		Zr:      math.Max(0, geo.HeightAboveLine(rp, pa, pb)),
		PlaneA:  pa,
		PlaneB:  pb,
		Azimuth: s.Azimuth(r),
		Origin:  geo.XYZ(s.X, s.Y, pb),
	}
	b.finish(&seg)
	return seg
}

// finish derives the corrected ground factor and the favorable heights.
func (b *Builder) finish(seg *Segment) {
	sum := math.Max(seg.Zs+seg.Zr, minHeightSum)
	seg.TestForm = seg.Dp / (30 * sum)
	if seg.TestForm <= 1 {
		seg.GPrime = seg.G*seg.TestForm + b.cfg.GroundFactorSource*(1-seg.TestForm)
	} else {
		seg.GPrime = seg.G
	}

	dzT := 6e-3 * seg.Dp / sum
	dzs := a0 * math.Pow(seg.Zs/sum, 2) * seg.Dp * seg.Dp / 2
	dzr := a0 * math.Pow(seg.Zr/sum, 2) * seg.Dp * seg.Dp / 2
	seg.ZsPrime = seg.Zs + dzs + dzT
	seg.ZrPrime = seg.Zr + dzr + dzT
	seg.TestFormPrime = seg.Dp / (30 * (seg.ZsPrime + seg.ZrPrime))
}

// unfold merges the legs of a multi-leg path into one equivalent segment from
// source to receiver: G weighted by planar length, zs from the first leg, zr
// from the last, dp summed.
func (b *Builder) unfold(legs []Segment, s, r geo.Coordinate) Segment {
	first, last := legs[0], legs[len(legs)-1]
	var planar, weighted, dp float64
	for _, l := range legs {
		pl := l.S.Distance2D(l.R)
		planar += pl
		weighted += l.G * pl
		dp += l.Dp
	}
	seg := Segment{
		S:       s,
		R:       r,
		D:       s.Distance3D(r),
		Dp:      dp,
		Zs:      first.Zs,
		Zr:      last.Zr,
		PlaneA:  first.PlaneA,
		PlaneB:  first.PlaneB,
		Azimuth: first.Azimuth,
		Origin:  first.Origin,
	}
	if planar > 0 {
		seg.G = weighted / planar
	}
	b.finish(&seg)
	return seg
}

// legs builds the freefield segment of each consecutive pair of points.
func (b *Builder) legs(pts []geo.Coordinate) []Segment {
	out := make([]Segment, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		out = append(out, b.segment(pts[i-1], pts[i], nil))
	}
	return out
}

// imageOf mirrors p across the mean plane of seg, within the vertical plane
// of the segment.
func imageOf(p geo.Coordinate, seg Segment) geo.Coordinate {
	cos, sin := math.Cos(seg.Azimuth), math.Sin(seg.Azimuth)
	u := (p.X-seg.S.X)*cos + (p.Y-seg.S.Y)*sin
	m := geo.MirrorAcrossProfileLine(geo.Point2{U: u, Z: p.Z}, seg.PlaneA, seg.PlaneB)
	return geo.XYZ(seg.S.X+m.U*cos, seg.S.Y+m.U*sin, m.Z)
}

// straight is a bare segment carrying only its endpoints and lengths.
func straight(s, r geo.Coordinate) Segment {
	return Segment{S: s, R: r, D: s.Distance3D(r), Dp: s.Distance3D(r), Azimuth: s.Azimuth(r)}
}
