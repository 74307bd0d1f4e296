package env

import (
	"fmt"
	"math"

	"energy-net/internal/model"
)

// RescaleAction lets the agent act in [-1, 1] on every dimension and maps
// the action linearly onto the inner action space.
type RescaleAction struct {
	Env
	inner model.Box
}

func NewRescaleAction(inner Env) (*RescaleAction, error) {
	box := inner.ActionSpace()
	for i := range box.Low {
		if math.IsInf(box.Low[i], 0) || math.IsInf(box.High[i], 0) {
			return nil, fmt.Errorf("rescale: action dim %d is unbounded", i)
		}
	}
	return &RescaleAction{Env: inner, inner: box}, nil
}

func (r *RescaleAction) ActionSpace() model.Box {
	return model.UniformBox(r.inner.Dim(), -1, 1)
}

func (r *RescaleAction) Step(action []float64) (Transition, error) {
	return r.Env.Step(r.Rescale(action))
}

// Rescale maps a [-1, 1] action onto the inner bounds. Values outside are clipped.
func (r *RescaleAction) Rescale(action []float64) []float64 {
	unit := model.UniformBox(r.inner.Dim(), -1, 1).Clip(action)
	out := make([]float64, len(unit))
	for i, v := range unit {
		lo, hi := r.inner.Low[i], r.inner.High[i]
		out[i] = lo + (v+1)*0.5*(hi-lo)
	}
	return out
}
