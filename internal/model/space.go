package model

import (
	"fmt"
	"math"
)

// Box is a continuous vector space with per-dimension bounds.
// It mirrors what RL drivers expect for action and observation spaces.
type Box struct {
	Low  []float64 `json:"low"`
	High []float64 `json:"high"`
}

// NewBox builds a Box and checks that bounds are consistent.
func NewBox(low, high []float64) (Box, error) {
	if len(low) != len(high) {
		return Box{}, fmt.Errorf("box bounds length mismatch: low=%d high=%d", len(low), len(high))
	}
	for i := range low {
		if low[i] > high[i] {
			return Box{}, fmt.Errorf("box dim %d: low %g > high %g", i, low[i], high[i])
		}
	}
	return Box{Low: append([]float64(nil), low...), High: append([]float64(nil), high...)}, nil
}

// UniformBox repeats the same bounds n times.
func UniformBox(n int, low, high float64) Box {
	b := Box{Low: make([]float64, n), High: make([]float64, n)}
	for i := 0; i < n; i++ {
		b.Low[i] = low
		b.High[i] = high
	}
	return b
}

// Concat appends other's dimensions after b's.
func (b Box) Concat(other Box) Box {
	return Box{
		Low:  append(append([]float64(nil), b.Low...), other.Low...),
		High: append(append([]float64(nil), b.High...), other.High...),
	}
}

func (b Box) Dim() int { return len(b.Low) }

func (b Box) Contains(x []float64) bool {
	if len(x) != len(b.Low) {
		return false
	}
	for i, v := range x {
		if math.IsNaN(v) || v < b.Low[i] || v > b.High[i] {
			return false
		}
	}
	return true
}

// Clip returns a copy of x clamped to the bounds. Extra dimensions are dropped;
// missing dimensions are filled with the lower bound.
func (b Box) Clip(x []float64) []float64 {
	out := make([]float64, len(b.Low))
	for i := range out {
		v := b.Low[i]
		if i < len(x) && !math.IsNaN(x[i]) {
			v = x[i]
		}
		out[i] = clamp(v, b.Low[i], b.High[i])
	}
	return out
}
