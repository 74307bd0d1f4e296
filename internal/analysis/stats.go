package analysis

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a series such as per-step rewards.
type Stats struct {
	Count int     `json:"count"`
	Total float64 `json:"total"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P05   float64 `json:"p05"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
}

// Summarize returns zero Stats for an empty series.
func Summarize(xs []float64) Stats {
	if len(xs) == 0 {
		return Stats{}
	}
	s := Stats{
		Count: len(xs),
		Total: floats.Sum(xs),
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
	}
	if len(xs) == 1 {
		s.Mean = xs[0]
	} else {
		s.Mean, s.Std = stat.MeanStdDev(xs, nil)
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	s.P05 = stat.Quantile(0.05, stat.LinInterp, sorted, nil)
	s.P50 = stat.Quantile(0.5, stat.LinInterp, sorted, nil)
	s.P95 = stat.Quantile(0.95, stat.LinInterp, sorted, nil)
	return s
}
