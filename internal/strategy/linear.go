package strategy

import (
	"fmt"
	"math"
)

// Linear is a frozen affine policy: action = Weights*obs + Bias, clipped to [Low, High].
// It is the simplest form an exported trained actor can take.
type Linear struct {
	Weights [][]float64 `json:"weights" yaml:"weights"`
	Bias    []float64   `json:"bias" yaml:"bias"`
	Low     []float64   `json:"low,omitempty" yaml:"low,omitempty"`
	High    []float64   `json:"high,omitempty" yaml:"high,omitempty"`
}

func (l *Linear) Name() string { return "linear" }

func (l *Linear) Validate() error {
	if len(l.Weights) == 0 {
		return fmt.Errorf("linear policy: weights are empty")
	}
	if len(l.Bias) != len(l.Weights) {
		return fmt.Errorf("linear policy: bias has %d values, want %d", len(l.Bias), len(l.Weights))
	}
	width := len(l.Weights[0])
	for i, row := range l.Weights {
		if len(row) != width {
			return fmt.Errorf("linear policy: row %d has %d weights, want %d", i, len(row), width)
		}
	}
	if len(l.Low) > 0 && len(l.Low) != len(l.Weights) {
		return fmt.Errorf("linear policy: low has %d values, want %d", len(l.Low), len(l.Weights))
	}
	if len(l.High) > 0 && len(l.High) != len(l.Weights) {
		return fmt.Errorf("linear policy: high has %d values, want %d", len(l.High), len(l.Weights))
	}
	return nil
}

func (l *Linear) Predict(obs []float64, _ bool) ([]float64, error) {
	if len(obs) != len(l.Weights[0]) {
		return nil, fmt.Errorf("linear policy: observation has %d values, want %d", len(obs), len(l.Weights[0]))
	}
	out := make([]float64, len(l.Weights))
	for i, row := range l.Weights {
		v := l.Bias[i]
		for j, w := range row {
			v += w * obs[j]
		}
		if len(l.Low) > 0 {
			v = math.Max(v, l.Low[i])
		}
		if len(l.High) > 0 {
			v = math.Min(v, l.High[i])
		}
		out[i] = v
	}
	return out, nil
}
