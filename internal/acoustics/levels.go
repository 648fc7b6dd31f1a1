// Package acoustics holds per-band level arithmetic and atmospheric absorption.
package acoustics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	perrors "noiseprop/internal/errors"
)

// DbaToW converts a level in dB to linear power.
func DbaToW(db float64) float64 {
	return math.Pow(10, db/10)
}

// WToDba converts linear power to dB. Zero power gives -Inf.
func WToDba(w float64) float64 {
	return 10 * math.Log10(w)
}

// DbaToWArray converts every band of a dB array to linear power.
func DbaToWArray(db []float64) []float64 {
	out := make([]float64, len(db))
	for i, v := range db {
		out[i] = DbaToW(v)
	}
	return out
}

// WToDbaArray converts every band of a power array to dB.
func WToDbaArray(w []float64) []float64 {
	out := make([]float64, len(w))
	for i, v := range w {
		out[i] = WToDba(v)
	}
	return out
}

// SumDbArray adds two dB arrays band by band in the power domain.
func SumDbArray(a, b []float64) ([]float64, error) {
	if err := sameLength(a, b); err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = WToDba(DbaToW(a[i]) + DbaToW(b[i]))
	}
	return out, nil
}

// MultArray multiplies two arrays band by band.
func MultArray(a, b []float64) ([]float64, error) {
	if err := sameLength(a, b); err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out, nil
}

// SumArrayWithPonderation blends two dB arrays in the power domain, giving
// weight p to a and 1-p to b.
func SumArrayWithPonderation(a, b []float64, p float64) ([]float64, error) {
	if err := sameLength(a, b); err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = WToDba(p*DbaToW(a[i]) + (1-p)*DbaToW(b[i]))
	}
	return out, nil
}

// SumArray returns the sum of all bands.
func SumArray(a []float64) float64 {
	return floats.Sum(a)
}

// Fill returns an array of n copies of v.
func Fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func sameLength(a, b []float64) error {
	if len(a) != len(b) {
		return perrors.Newf(perrors.BandMismatch, "band arrays differ in length: %d vs %d", len(a), len(b))
	}
	return nil
}
