package analysis

import (
	"sort"

	"energy-net/internal/strategy"
)

type RankedPotential struct {
	ArbitragePotential
	Rank int `json:"rank"`
}

// RankByOracleProfit computes potentials per named price path and sorts descending by OracleProfit.
func RankByOracleProfit(byName map[string][]strategy.PricePoint) []RankedPotential {
	out := make([]RankedPotential, 0, len(byName))
	for name, prices := range byName {
		out = append(out, RankedPotential{ArbitragePotential: ComputePotential(name, prices)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OracleProfit == out[j].OracleProfit {
			return out[i].Name < out[j].Name
		}
		return out[i].OracleProfit > out[j].OracleProfit
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
