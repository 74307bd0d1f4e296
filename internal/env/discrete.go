package env

import (
	"fmt"
	"math"

	"energy-net/internal/model"
)

// DiscreteAction exposes n evenly spaced levels per inner action dimension.
// The agent sends a single index in [0, n^dim).
type DiscreteAction struct {
	Env
	inner model.Box
	n     int
	count int
}

func NewDiscreteAction(inner Env, n int) (*DiscreteAction, error) {
	if n < 2 {
		return nil, fmt.Errorf("discrete: need at least 2 levels, got %d", n)
	}
	box := inner.ActionSpace()
	for i := range box.Low {
		if math.IsInf(box.Low[i], 0) || math.IsInf(box.High[i], 0) {
			return nil, fmt.Errorf("discrete: action dim %d is unbounded", i)
		}
	}
	count := 1
	for i := 0; i < box.Dim(); i++ {
		if count > math.MaxInt/n {
			return nil, fmt.Errorf("discrete: %d levels over %d dims overflows the index", n, box.Dim())
		}
		count *= n
	}
	return &DiscreteAction{Env: inner, inner: box, n: n, count: count}, nil
}

// Count is the number of discrete actions.
func (d *DiscreteAction) Count() int { return d.count }

func (d *DiscreteAction) ActionSpace() model.Box {
	return model.Box{Low: []float64{0}, High: []float64{float64(d.Count() - 1)}}
}

func (d *DiscreteAction) Step(action []float64) (Transition, error) {
	if len(action) == 0 {
		return Transition{}, fmt.Errorf("discrete: empty action")
	}
	return d.Env.Step(d.Decode(int(math.Round(action[0]))))
}

// Decode turns an index into a continuous action. Out-of-range indices are clamped.
func (d *DiscreteAction) Decode(idx int) []float64 {
	if idx < 0 {
		idx = 0
	}
	if last := d.Count() - 1; idx > last {
		idx = last
	}
	out := make([]float64, d.inner.Dim())
	for i := range out {
		level := idx % d.n
		idx /= d.n
		lo, hi := d.inner.Low[i], d.inner.High[i]
		out[i] = lo + float64(level)*(hi-lo)/float64(d.n-1)
	}
	return out
}
