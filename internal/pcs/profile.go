package pcs

import "math"

// Profile is a daily curve for a unit's own production or consumption (MWh per step).
// value(t) = max(0, Base + Amplitude*cos(2*pi*(t - PeakTime)))
type Profile struct {
	Base      float64 `yaml:"base" json:"base"`
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
	// PeakTime is the day fraction of the maximum.
	PeakTime float64 `yaml:"peak_time" json:"peak_time"`
}

func (p Profile) At(t float64) float64 {
	v := p.Base + p.Amplitude*math.Cos(2*math.Pi*(t-p.PeakTime))
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
