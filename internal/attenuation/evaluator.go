// Package attenuation evaluates the CNOSSOS-EU per-band attenuation of
// propagation paths and blends homogeneous and favorable conditions.
package attenuation

import (
	"math"

	"noiseprop/internal/acoustics"
	perrors "noiseprop/internal/errors"
	"noiseprop/internal/geo"
	"noiseprop/internal/path"
)

// WindRoseSectors is the number of direction sectors of the favorable
// occurrence table.
const WindRoseSectors = 16

// DefaultWindRose gives every direction an even chance of favorable
// conditions.
func DefaultWindRose() []float64 {
	return acoustics.Fill(WindRoseSectors, 0.5)
}

// Params describe the atmosphere and frequency bands of an evaluation.
type Params struct {
	Bands []acoustics.Band
	// Temperature in °C.
	Temperature float64
	// Humidity is the relative humidity in percent.
	Humidity float64
	// Pressure in Pa.
	Pressure float64
	// WindRose is the probability of favorable conditions per direction.
	WindRose []float64
	// GDisc replaces the ground term of fully reflecting segments by its
	// lower bound.
	GDisc bool
	// Prime2520 uses the corrected heights in the favorable lower bound.
	Prime2520 bool
}

// Evaluator is immutable once built and safe for concurrent use.
type Evaluator struct {
	bands     []acoustics.Band
	lambda    []float64
	alpha     []float64
	celerity  float64
	windRose  []float64
	gDisc     bool
	prime2520 bool
}

// Terms holds the per-band components of a path attenuation, in dB.
type Terms struct {
	ADiv      float64   `json:"aDiv"`
	AAtm      []float64 `json:"aAtm"`
	ABoundary []float64 `json:"aBoundary"`
	ARef      []float64 `json:"aRef"`
	// Total is -(ADiv + AAtm + ABoundary + ARef).
	Total []float64 `json:"total"`
}

// New validates the parameters and precomputes wavelengths and absorption.
func New(p Params) (*Evaluator, error) {
	if len(p.Bands) == 0 {
		return nil, perrors.Newf(perrors.InvalidConfig, "no frequency band")
	}
	rose := p.WindRose
	if len(rose) == 0 {
		rose = DefaultWindRose()
	}
	if len(rose) != WindRoseSectors {
		return nil, perrors.Newf(perrors.InvalidConfig, "wind rose has %d sectors, want %d", len(rose), WindRoseSectors)
	}
	for i, v := range rose {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return nil, perrors.Newf(perrors.InvalidConfig, "wind rose sector %d = %v, want a probability", i, v)
		}
	}
	pressure := p.Pressure
	if pressure <= 0 {
		pressure = acoustics.ReferencePressure
	}

	e := &Evaluator{
		bands:     append([]acoustics.Band(nil), p.Bands...),
		celerity:  acoustics.Celerity(p.Temperature),
		windRose:  append([]float64(nil), rose...),
		gDisc:     p.GDisc,
		prime2520: p.Prime2520,
	}
	e.lambda = make([]float64, len(p.Bands))
	e.alpha = make([]float64, len(p.Bands))
	for i, b := range p.Bands {
		e.lambda[i] = acoustics.Wavelength(b.Nominal, e.celerity)
		e.alpha[i] = acoustics.AtmosphericAlpha(b.Exact, p.Temperature, p.Humidity, pressure)
	}
	return e, nil
}

// Bands returns the number of frequency bands.
func (e *Evaluator) Bands() int {
	return len(e.bands)
}

// Celerity returns the speed of sound in m/s.
func (e *Evaluator) Celerity() float64 {
	return e.celerity
}

// Alpha returns the atmospheric absorption per band in dB/km.
func (e *Evaluator) Alpha() []float64 {
	return append([]float64(nil), e.alpha...)
}

// Terms evaluates each attenuation component of the path.
func (e *Evaluator) Terms(p path.Path, favorable bool) Terms {
	sr := p.SR[0]
	kind := p.Kind()

	divDist := sr.D
	if kind == path.Reflected {
		divDist = p.Length()
	}
	atmDist := sr.D
	if kind == path.Reflected || kind == path.DiffractedSide {
		atmDist = p.Length()
	}

	t := Terms{
		ADiv:      ADiv(divDist),
		AAtm:      make([]float64, len(e.bands)),
		ABoundary: e.ABoundary(p, favorable),
		ARef:      ARef(p, len(e.bands)),
		Total:     make([]float64, len(e.bands)),
	}
	for i := range e.bands {
		t.AAtm[i] = AAtm(atmDist, e.alpha[i])
		t.Total[i] = -(t.ADiv + t.AAtm[i] + t.ABoundary[i] + t.ARef[i])
	}
	return t
}

// Evaluate returns the total attenuation of the path per band, in dB.
func (e *Evaluator) Evaluate(p path.Path, favorable bool) []float64 {
	return e.Terms(p, favorable).Total
}

// EvaluateMeteo blends homogeneous and favorable attenuations of each path by
// the favorable probability of its direction, then sums the paths
// energetically. It returns nil when there is no path.
func (e *Evaluator) EvaluateMeteo(paths []path.Path) ([]float64, error) {
	var total []float64
	for _, p := range paths {
		prob := e.windRose[RoseIndex(p.Source(), p.Receiver())]
		hom := make([]float64, len(e.bands))
		fav := make([]float64, len(e.bands))
		if prob != 1 {
			hom = e.Evaluate(p, false)
		}
		if prob != 0 {
			fav = e.Evaluate(p, true)
		}
		blended, err := acoustics.SumArrayWithPonderation(fav, hom, prob)
		if err != nil {
			return nil, err
		}
		if total == nil {
			total = blended
			continue
		}
		if total, err = acoustics.SumDbArray(blended, total); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// RoseIndex returns the wind rose sector of the direction source→receiver.
// Sectors are counted clockwise from north, the sector centered on north
// being the last one.
func RoseIndex(source, receiver geo.Coordinate) int {
	section := 2 * math.Pi / WindRoseSectors
	angle := -(source.Azimuth(receiver) - math.Pi)
	angle -= math.Pi/2 - section/2
	if angle < 0 {
		angle += 2 * math.Pi
	}
	idx := int(angle/section) - 1
	if idx < 0 {
		idx = WindRoseSectors - 1
	}
	return idx
}
