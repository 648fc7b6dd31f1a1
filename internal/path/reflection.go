package path

import (
	"math"

	"noiseprop/internal/geo"
	"noiseprop/internal/oracle"
)

// MirrorNode is one receiver image in the reflection tree.
type MirrorNode struct {
	Position   geo.Coordinate
	Wall       int // index in the candidate wall list
	BuildingID int
	Parent     int // -1 for first order
}

// MirrorArena holds the receiver images of every reflection order. Parents
// always precede their children.
type MirrorArena struct {
	Nodes []MirrorNode
}

// Depth returns the reflection order of node i.
func (a *MirrorArena) Depth(i int) int {
	d := 0
	for ; i >= 0; i = a.Nodes[i].Parent {
		d++
	}
	return d
}

// BuildMirrors mirrors the receiver across the walls, order times. An image is
// created only when its parent faces the exterior side of the wall, the wall
// lies within maxRefDist of the source-receiver segment, and the image stays
// within maxSrcDist of the source.
func BuildMirrors(receiver, source geo.Coordinate, walls []oracle.Wall, order int, maxRefDist, maxSrcDist float64) *MirrorArena {
	arena := &MirrorArena{}
	near := make([]bool, len(walls))
	for i, w := range walls {
		near[i] = maxRefDist <= 0 || geo.SegmentsDistance(w.P0, w.P1, source, receiver) <= maxRefDist
	}

	// level holds the parent indices to expand, -1 standing for the receiver
	level := []int{-1}
	for depth := 0; depth < order && len(level) > 0; depth++ {
		var next []int
		for _, parent := range level {
			pos, parentWall := receiver, -1
			if parent >= 0 {
				pos, parentWall = arena.Nodes[parent].Position, arena.Nodes[parent].Wall
			}
			for wi, w := range walls {
				if wi == parentWall || !near[wi] {
					continue
				}
				if geo.Cross2D(w.P0, w.P1, pos) >= 0 {
					continue
				}
				image := geo.MirrorAcrossLine(pos, w.P0, w.P1)
				if maxSrcDist > 0 && image.Distance2D(source) > maxSrcDist {
					continue
				}
				arena.Nodes = append(arena.Nodes, MirrorNode{
					Position:   image,
					Wall:       wi,
					BuildingID: w.BuildingID,
					Parent:     parent,
				})
				next = append(next, len(arena.Nodes)-1)
			}
		}
		level = next
	}
	return arena
}

// Reflections returns the valid specular paths from source to receiver on the
// given walls, up to the configured order.
func (b *Builder) Reflections(receiver, source geo.Coordinate, walls []oracle.Wall) []Path {
	arena := BuildMirrors(receiver, source, walls, b.cfg.ReflectionOrder,
		b.cfg.MaxReflectionDistance, b.cfg.MaxSourceDistance)
	b.images.Add(int64(len(arena.Nodes)))

	var out []Path
	for i := range arena.Nodes {
		if p, ok := b.validateChain(arena, i, receiver, source, walls); ok {
			out = append(out, p)
		}
	}
	return out
}

// validateChain walks from node idx back to the first-order image, placing one
// reflection point per wall. Each point must lie on its wall between the
// ground and the roof and every leg must be unobstructed.
func (b *Builder) validateChain(arena *MirrorArena, idx int, receiver, source geo.Coordinate, walls []oracle.Wall) (Path, bool) {
	dest := source
	var refl []Point
	for cursor := idx; cursor >= 0; cursor = arena.Nodes[cursor].Parent {
		node := arena.Nodes[cursor]
		w := walls[node.Wall]
		if geo.Cross2D(w.P0, w.P1, dest) >= 0 {
			return Path{}, false
		}
		ip, ok := geo.IntersectSegments(node.Position, dest, w.P0, w.P1)
		if !ok || ip.Equals2D(dest) || ip.Equals2D(receiver) {
			return Path{}, false
		}
		ip.Z = geo.InterpolateZ(ip, node.Position, dest)

		ground := b.oracle.HeightAt(ip)
		if !math.IsNaN(ground) && ip.Z <= ground {
			return Path{}, false
		}
		if roof := b.oracle.RoofHeight(node.BuildingID); math.IsNaN(roof) || ip.Z >= roof {
			return Path{}, false
		}
		if !b.oracle.IsFreeField(dest, ip) {
			return Path{}, false
		}
		refl = append(refl, Point{
			Position:   ip,
			Type:       Reflection,
			GroundZ:    ground,
			BuildingID: node.BuildingID,
			WallAlpha:  b.oracle.WallAbsorption(node.BuildingID),
		})
		dest = ip
	}
	if !b.oracle.IsFreeField(dest, receiver) {
		return Path{}, false
	}

	pts := make([]Point, 0, len(refl)+2)
	pts = append(pts, b.point(source, Source))
	pts = append(pts, refl...)
	pts = append(pts, b.point(receiver, Receiver))

	p := Path{Points: pts}
	p.Segments = b.legs(p.Positions())
	p.SR = []Segment{b.unfold(p.Segments, source, receiver)}
	return p, true
}
