package acoustics

import "math"

const (
	// ReferencePressure is the standard atmosphere in Pa.
	ReferencePressure = 101325.0
	kelvinOffset      = 273.15
	referenceKelvin   = 293.15
	triplePointKelvin = 273.16
)

// AtmosphericAlpha returns the pure-tone absorption coefficient of air in dB/km
// (ISO 9613-1) at frequency f (Hz), temperature in °C, relative humidity in
// percent and pressure in Pa.
func AtmosphericAlpha(f, temperature, humidity, pressure float64) float64 {
	t := temperature + kelvinOffset
	pr := pressure / ReferencePressure

	psat := math.Pow(10, -6.8346*math.Pow(triplePointKelvin/t, 1.261)+4.6151)
	h := humidity * psat / pr

	tr := t / referenceKelvin
	frO := pr * (24 + 4.04e4*h*(0.02+h)/(0.391+h))
	frN := pr * math.Pow(tr, -0.5) * (9 + 280*h*math.Exp(-4.170*(math.Pow(tr, -1.0/3.0)-1)))

	f2 := f * f
	alpha := 8.686 * f2 * (1.84e-11/pr*math.Sqrt(tr) +
		math.Pow(tr, -2.5)*(0.01275*math.Exp(-2239.1/t)/(frO+f2/frO)+
			0.1068*math.Exp(-3352.0/t)/(frN+f2/frN)))
	return alpha * 1000
}

// Celerity returns the speed of sound in m/s at the given temperature in °C.
func Celerity(temperature float64) float64 {
	return 343.2 * math.Sqrt((temperature+kelvinOffset)/referenceKelvin)
}
