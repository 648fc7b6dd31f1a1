package attenuation

import (
	"math"

	"noiseprop/internal/geo"
	"noiseprop/internal/path"
)

// ABoundary is the ground and diffraction term of a path for each band.
func (e *Evaluator) ABoundary(p path.Path, favorable bool) []float64 {
	sr := p.SR[0]
	switch p.Kind() {
	case path.DiffractedRoof:
		return e.roofBoundary(p, favorable)
	case path.DiffractedSide:
		gw, gm := srGround(sr, favorable)
		ground := e.AGround(sr, gw, gm, favorable)
		delta, eLength := pathDifference(p.Positions(), false)
		dif := e.DeltaDif(delta, eLength)
		for i := range ground {
			ground[i] += dif[i]
		}
		return ground
	default:
		gw, gm := srGround(sr, favorable)
		return e.AGround(sr, gw, gm, favorable)
	}
}

// srGround picks the ground factors of a source-side segment: favorable
// conditions use G for the impedance and G' for the bound, homogeneous
// conditions use G' for both.
func srGround(seg path.Segment, favorable bool) (gw, gm float64) {
	if favorable {
		return seg.G, seg.GPrime
	}
	return seg.GPrime, seg.GPrime
}

func (e *Evaluator) roofBoundary(p path.Path, favorable bool) []float64 {
	pts := p.Positions()
	n := len(pts)
	interior := pts[1 : n-1]

	difSR := e.DeltaDif(pathDifference(pts, favorable))
	difSpR := e.DeltaDif(pathDifference(withEnds(p.SR[len(p.SR)-2].S, interior, pts[n-1]), favorable))
	difSRp := e.DeltaDif(pathDifference(withEnds(pts[0], interior, p.SR[len(p.SR)-1].R), favorable))

	segSO, segOR := p.Segments[0], p.Segments[len(p.Segments)-1]
	gw, gm := srGround(segSO, favorable)
	groundSO := e.AGround(segSO, gw, gm, favorable)
	groundOR := e.AGround(segOR, segOR.G, segOR.G, favorable)

	out := make([]float64, len(e.bands))
	flat := segSO.Zs <= minGroundHeight || segOR.Zr <= minGroundHeight
	for i := range out {
		dif := math.Min(maxDeltaDif, difSR[i])
		if flat {
			out[i] = dif + groundSO[i] + groundOR[i]
			continue
		}
		out[i] = dif + DeltaGround(groundSO[i], difSpR[i], difSR[i]) + DeltaGround(groundOR[i], difSRp[i], difSR[i])
	}
	return out
}

func withEnds(s geo.Coordinate, interior []geo.Coordinate, r geo.Coordinate) []geo.Coordinate {
	out := make([]geo.Coordinate, 0, len(interior)+2)
	out = append(out, s)
	out = append(out, interior...)
	return append(out, r)
}

// pathDifference returns the excess length of the path through the
// diffraction edges over the direct line, and the distance between the first
// and last edges. Favorable conditions measure along rays curved downward with
// radius max(1000, 8d).
func pathDifference(pts []geo.Coordinate, favorable bool) (delta, eLength float64) {
	n := len(pts)
	direct := pts[0].Distance3D(pts[n-1])
	length := func(c float64) float64 { return c }
	if favorable {
		gamma := math.Max(1000, 8*direct)
		length = func(c float64) float64 { return 2 * gamma * math.Asin(math.Min(1, c/(2*gamma))) }
	}
	var total float64
	for i := 1; i < n; i++ {
		l := length(pts[i-1].Distance3D(pts[i]))
		total += l
		if i > 1 && i < n-1 {
			eLength += l
		}
	}
	return total - length(direct), eLength
}
