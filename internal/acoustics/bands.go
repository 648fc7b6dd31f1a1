package acoustics

import "math"

// Band is one frequency band. Nominal drives wavelength and ground terms,
// Exact drives atmospheric absorption.
type Band struct {
	Nominal float64 `json:"nominal"`
	Exact   float64 `json:"exact"`
}

// OctaveNominal is the CNOSSOS-EU octave band list.
var OctaveNominal = []float64{63, 125, 250, 500, 1000, 2000, 4000, 8000}

// ThirdOctaveNominal lists the third-octave bands from 50 Hz to 10 kHz.
var ThirdOctaveNominal = []float64{
	50, 63, 80, 100, 125, 160, 200, 250, 315, 400, 500, 630,
	800, 1000, 1250, 1600, 2000, 2500, 3150, 4000, 5000, 6300, 8000, 10000,
}

// ExactFrequency returns the base-10 exact mid-band frequency nearest to a
// nominal third-octave or octave frequency.
func ExactFrequency(nominal float64) float64 {
	if nominal <= 0 {
		return nominal
	}
	k := math.Round(10 * math.Log10(nominal/1000))
	return 1000 * math.Pow(10, k/10)
}

// NewBands pairs nominal frequencies with exact ones. When exact is empty the
// exact frequencies are derived from the nominal ones.
func NewBands(nominal, exact []float64) []Band {
	bands := make([]Band, len(nominal))
	for i, f := range nominal {
		e := ExactFrequency(f)
		if i < len(exact) {
			e = exact[i]
		}
		bands[i] = Band{Nominal: f, Exact: e}
	}
	return bands
}

// Wavelength returns c/f, or 1 for a non-positive frequency.
func Wavelength(f, celerity float64) float64 {
	if f <= 0 {
		return 1
	}
	return celerity / f
}
