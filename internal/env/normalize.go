package env

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"energy-net/internal/model"

	"gonum.org/v1/gonum/stat"
)

const (
	normEpsilon  = 1e-8
	initialCount = 1e-4
)

// Normalizer keeps running mean and variance per observation dimension and
// standardizes observations with them.
type Normalizer struct {
	Mean  []float64 `json:"mean"`
	Var   []float64 `json:"var"`
	Count float64   `json:"count"`
	// Clip bounds the normalized values; 0 disables clipping.
	Clip float64 `json:"clip"`
}

func NewNormalizer(dim int, clip float64) *Normalizer {
	n := &Normalizer{Mean: make([]float64, dim), Var: make([]float64, dim), Count: initialCount, Clip: clip}
	for i := range n.Var {
		n.Var[i] = 1
	}
	return n
}

func (n *Normalizer) Dim() int { return len(n.Mean) }

// Update folds a batch of observations into the running statistics.
func (n *Normalizer) Update(batch ...[]float64) error {
	if len(batch) == 0 {
		return nil
	}
	dim := n.Dim()
	col := make([]float64, len(batch))
	for d := 0; d < dim; d++ {
		for i, obs := range batch {
			if len(obs) != dim {
				return fmt.Errorf("normalizer: observation %d has %d values, want %d", i, len(obs), dim)
			}
			col[i] = obs[d]
		}
		bMean, bVar := stat.PopMeanVariance(col, nil)
		if len(col) == 1 {
			bVar = 0
		}
		n.Mean[d], n.Var[d] = combine(n.Mean[d], n.Var[d], n.Count, bMean, bVar, float64(len(col)))
	}
	n.Count += float64(len(batch))
	return nil
}

// combine merges two (mean, population variance, count) summaries.
func combine(mean, variance, count, bMean, bVar, bCount float64) (float64, float64) {
	total := count + bCount
	delta := bMean - mean
	newMean := mean + delta*bCount/total
	m2 := variance*count + bVar*bCount + delta*delta*count*bCount/total
	return newMean, m2 / total
}

// Transform standardizes obs. It does not update the statistics.
func (n *Normalizer) Transform(obs []float64) []float64 {
	out := make([]float64, len(obs))
	for i, v := range obs {
		if i >= n.Dim() {
			out[i] = v
			continue
		}
		z := (v - n.Mean[i]) / math.Sqrt(n.Var[i]+normEpsilon)
		if n.Clip > 0 {
			z = math.Max(-n.Clip, math.Min(n.Clip, z))
		}
		out[i] = z
	}
	return out
}

// InverseTransform maps a normalized observation back. Clipped values do not round-trip.
func (n *Normalizer) InverseTransform(z []float64) []float64 {
	out := make([]float64, len(z))
	for i, v := range z {
		if i >= n.Dim() {
			out[i] = v
			continue
		}
		out[i] = v*math.Sqrt(n.Var[i]+normEpsilon) + n.Mean[i]
	}
	return out
}

func (n *Normalizer) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(n)
}

func LoadNormalizer(r io.Reader) (*Normalizer, error) {
	var n Normalizer
	if err := json.NewDecoder(r).Decode(&n); err != nil {
		return nil, fmt.Errorf("decode normalizer: %w", err)
	}
	if len(n.Mean) != len(n.Var) {
		return nil, fmt.Errorf("normalizer: mean has %d values, var has %d", len(n.Mean), len(n.Var))
	}
	return &n, nil
}

func (n *Normalizer) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := n.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func LoadNormalizerFile(path string) (*Normalizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadNormalizer(f)
}

// NormalizeObservation wraps an Env and standardizes what it observes.
// While Training is true every observation also updates the statistics.
type NormalizeObservation struct {
	Env
	Stats    *Normalizer
	Training bool
}

func NewNormalizeObservation(inner Env, stats *Normalizer) *NormalizeObservation {
	if stats == nil {
		stats = NewNormalizer(inner.ObservationSpace().Dim(), 10)
	}
	return &NormalizeObservation{Env: inner, Stats: stats, Training: true}
}

func (w *NormalizeObservation) Reset(seed *uint64) ([]float64, error) {
	obs, err := w.Env.Reset(seed)
	if err != nil {
		return nil, err
	}
	return w.observe(obs)
}

func (w *NormalizeObservation) Step(action []float64) (Transition, error) {
	tr, err := w.Env.Step(action)
	if err != nil {
		return Transition{}, err
	}
	tr.Observation, err = w.observe(tr.Observation)
	return tr, err
}

func (w *NormalizeObservation) ObservationSpace() model.Box {
	c := w.Stats.Clip
	if c <= 0 {
		c = math.Inf(1)
	}
	return model.UniformBox(w.Stats.Dim(), -c, c)
}

func (w *NormalizeObservation) observe(obs []float64) ([]float64, error) {
	if w.Training {
		if err := w.Stats.Update(obs); err != nil {
			return nil, err
		}
	}
	return w.Stats.Transform(obs), nil
}
