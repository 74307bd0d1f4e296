package analysis

import (
	"testing"

	"energy-net/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{4, 1, 3, 2})
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 10, s.Total, 1e-12)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.Greater(t, s.Std, 0.0)
	assert.LessOrEqual(t, s.P05, s.P50)
	assert.LessOrEqual(t, s.P50, s.P95)

	assert.Equal(t, Stats{}, Summarize(nil))

	one := Summarize([]float64{7})
	assert.Equal(t, 7.0, one.Mean)
	assert.Equal(t, 0.0, one.Std)
}

func TestComputePotential(t *testing.T) {
	prices := []strategy.PricePoint{{Buy: 10, Sell: 8}, {Buy: 50, Sell: 40}}
	p := ComputePotential("peaky", prices)
	assert.Equal(t, 2, p.Count)
	// Only half a unit moves per step, so holding and selling at 40 wins.
	assert.InDelta(t, 20, p.OracleProfit, 1e-9)
	assert.InDelta(t, 30, p.Buy.Mean, 1e-9)

	flat := ComputePotential("flat", []strategy.PricePoint{{Buy: 10, Sell: 10}})
	assert.InDelta(t, 5, flat.OracleProfit, 1e-9)

	assert.Equal(t, 0.0, ComputePotential("empty", nil).OracleProfit)
}

func TestRankByOracleProfit(t *testing.T) {
	ranked := RankByOracleProfit(map[string][]strategy.PricePoint{
		"flat":  {{Buy: 10, Sell: 10}, {Buy: 10, Sell: 10}},
		"peaky": {{Buy: 1, Sell: 1}, {Buy: 100, Sell: 90}},
	})
	require.Len(t, ranked, 2)
	assert.Equal(t, "peaky", ranked[0].Name)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
}
