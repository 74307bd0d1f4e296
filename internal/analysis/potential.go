package analysis

import (
	"math"

	"energy-net/internal/strategy"
)

// ArbitragePotential summarizes what a price path offers a storage unit.
// It does not depend on a specific battery size; it includes both raw price
// stats and an "oracle" profit for a canonical battery.
type ArbitragePotential struct {
	Name  string `json:"name"`
	Count int    `json:"count"`

	Buy  Stats `json:"buy"`
	Sell Stats `json:"sell"`

	// SpreadP95P05 is the high sell price minus the low buy price.
	SpreadP95P05 float64 `json:"spread_p95_p05"`

	// OracleProfit is the profit from a canonical battery:
	// - 1 MWh energy, 1 MWh per step in either direction
	// - 100% efficiency
	// - level bounds [0,1], initial level 0.5
	// - actions {-1, 0, +1} each step
	OracleProfit float64 `json:"oracle_profit"`
}

func ComputePotential(name string, prices []strategy.PricePoint) ArbitragePotential {
	p := ArbitragePotential{Name: name, Count: len(prices)}
	if len(prices) == 0 {
		return p
	}
	buy := make([]float64, len(prices))
	sell := make([]float64, len(prices))
	for i, pp := range prices {
		buy[i] = pp.Buy
		sell[i] = pp.Sell
	}
	p.Buy = Summarize(buy)
	p.Sell = Summarize(sell)
	p.SpreadP95P05 = p.Sell.P95 - p.Buy.P05
	p.OracleProfit = oracleProfitCanonical(prices)
	return p
}

// oracleProfitCanonical computes a best-effort upper bound with a two-level DP.
func oracleProfitCanonical(prices []strategy.PricePoint) float64 {
	const steps = 2 // levels 0, 0.5, 1
	nStates := steps + 1
	negInf := math.Inf(-1)

	dp := make([]float64, nStates)
	next := make([]float64, nStates)
	for i := range dp {
		dp[i] = negInf
	}
	dp[1] = 0

	for _, pp := range prices {
		for i := range next {
			next[i] = negInf
		}
		for s := 0; s < nStates; s++ {
			if math.IsInf(dp[s], -1) {
				continue
			}
			// Idle
			next[s] = math.Max(next[s], dp[s])
			// Charge half a unit at the buy price.
			if s < steps {
				next[s+1] = math.Max(next[s+1], dp[s]-0.5*pp.Buy)
			}
			// Discharge half a unit at the sell price.
			if s > 0 {
				next[s-1] = math.Max(next[s-1], dp[s]+0.5*pp.Sell)
			}
		}
		dp, next = next, dp
	}

	best := negInf
	for _, v := range dp {
		best = math.Max(best, v)
	}
	if math.IsInf(best, -1) {
		return 0
	}
	return best
}
