package path

// Settings are the geometric knobs of path construction.
type Settings struct {
	// Epsilon is the planar offset applied to diffraction vertices, in m.
	Epsilon float64
	// MaxHullRatio rejects side diffraction when the hull perimeter exceeds
	// this multiple of the direct distance.
	MaxHullRatio float64
	// MaxSourceDistance bounds the source-receiver distance and the distance
	// from a mirror image to the source, in m.
	MaxSourceDistance float64
	// MaxReflectionDistance bounds the distance from a reflecting wall to the
	// source-receiver segment, in m.
	MaxReflectionDistance float64
	ReflectionOrder       int
	// VerticalDiffraction enables the over-roof path.
	VerticalDiffraction bool
	// HorizontalDiffraction enables the paths around building sides.
	HorizontalDiffraction bool
	// GroundFactorSource is the absorption of the ground right under sources.
	GroundFactorSource float64
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Epsilon:               1e-7,
		MaxHullRatio:          4,
		MaxSourceDistance:     750,
		MaxReflectionDistance: 50,
		ReflectionOrder:       1,
		VerticalDiffraction:   true,
		HorizontalDiffraction: true,
		GroundFactorSource:    0,
	}
}
