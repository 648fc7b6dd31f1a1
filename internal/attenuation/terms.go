package attenuation

import (
	"math"

	"noiseprop/internal/acoustics"
	"noiseprop/internal/path"
)

const oneThird = 1.0 / 3.0

// maxDeltaDif caps the diffraction term of roof paths, in dB.
const maxDeltaDif = 25

// minGroundHeight is the height under which the equivalent-height form of the
// roof-path boundary term is replaced by plain ground terms, in m.
const minGroundHeight = 1e-7

// ADiv is the geometric divergence over distance d, never less than at 1 m.
func ADiv(d float64) float64 {
	return acoustics.WToDba(4 * math.Pi * math.Max(1, d*d))
}

// AAtm is the atmospheric absorption over dist for alpha in dB/km.
func AAtm(dist, alpha float64) float64 {
	return alpha * dist / 1000
}

// AGround is the ground term of one segment for each band. gw drives the
// ground impedance and gm the lower bound.
func (e *Evaluator) AGround(seg path.Segment, gw, gm float64, favorable bool) []float64 {
	out := make([]float64, len(e.bands))
	floor := e.groundFloor(seg, gm, favorable)
	if seg.G == 0 && e.gDisc {
		// reflecting ground: the floor itself, homogeneous uses the plain -3 dB
		if !favorable {
			floor = -3
		}
		for i := range out {
			out[i] = floor
		}
		return out
	}

	zs, zr := seg.Zs, seg.Zr
	if favorable {
		zs, zr = seg.ZsPrime, seg.ZrPrime
	}
	for i, b := range e.bands {
		f := b.Nominal
		k := 2 * math.Pi * f / e.celerity
		w := 0.0185 * math.Pow(f, 2.5) * math.Pow(gw, 2.6) /
			(math.Pow(f, 1.5)*math.Pow(gw, 2.6) + 1.3e3*math.Pow(f, 0.75)*math.Pow(gw, 1.3) + 1.16e6)
		cf := seg.Dp * (1 + 3*w*seg.Dp*math.Exp(-math.Sqrt(w*seg.Dp))) / (1 + w*seg.Dp)
		root := math.Sqrt(2 * cf / k)
		a := -10 * math.Log10(4*k*k/(seg.Dp*seg.Dp)*
			(zs*zs-root*zs+cf/k)*
			(zr*zr-root*zr+cf/k))
		out[i] = math.Max(a, floor)
	}
	return out
}

func (e *Evaluator) groundFloor(seg path.Segment, gm float64, favorable bool) float64 {
	if !favorable {
		return -3 * (1 - gm)
	}
	tf := seg.TestForm
	if e.prime2520 {
		tf = seg.TestFormPrime
	}
	if tf <= 1 {
		return -3 * (1 - gm)
	}
	return -3 * (1 - gm) * (1 + 2*(1-1/tf))
}

// DeltaDif is the diffraction attenuation for a path-length difference delta,
// e being the distance between the first and last diffraction edges.
func (e *Evaluator) DeltaDif(delta, eLength float64) []float64 {
	out := make([]float64, len(e.bands))
	for i, lambda := range e.lambda {
		cpp := 1.0
		if eLength > 0.3 {
			g := math.Pow(5*lambda/eLength, 2)
			cpp = (1 + g) / (oneThird + g)
		}
		tf := 40 / lambda * cpp * delta
		var d float64
		if tf >= -2 {
			d = 10 * math.Log10(math.Max(0, 3+tf))
		}
		out[i] = math.Max(0, d)
	}
	return out
}

// DeltaGround converts a segment ground term into its contribution to a
// diffracted path, given the diffraction terms with the mirrored source or
// receiver (deltaDifPrime) and without (deltaDif).
func DeltaGround(aGround, deltaDifPrime, deltaDif float64) float64 {
	arg := 1 + (math.Pow(10, -aGround/20)-1)*math.Pow(10, -(deltaDifPrime-deltaDif)/20)
	if arg < 0 {
		arg = 0
	}
	return -20 * math.Log10(arg)
}

// ARef is the absorption of the reflecting walls along the path.
func ARef(p path.Path, bands int) []float64 {
	out := make([]float64, bands)
	for _, pt := range p.Points {
		if pt.Type != path.Reflection {
			continue
		}
		for i := range out {
			var alpha float64
			if i < len(pt.WallAlpha) {
				alpha = pt.WallAlpha[i]
			}
			out[i] += -10 * math.Log10(1-alpha)
		}
	}
	return out
}
