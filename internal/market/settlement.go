package market

import "math"

// Settlement is the grid-side accounting of one step.
type Settlement struct {
	RealizedDemand float64 `json:"realized_demand"`
	ActualDemand   float64 `json:"actual_demand"`
	Dispatch       float64 `json:"dispatch"`
	Shortfall      float64 `json:"shortfall"`
	ReserveCost    float64 `json:"reserve_cost"`
	DispatchCost   float64 `json:"dispatch_cost"`
	TotalCost      float64 `json:"total_cost"`
	// Utilization is actual demand over dispatch (0 when nothing was dispatched).
	Utilization float64 `json:"utilization"`
}

// Settle computes shortfall and costs for realized demand plus PCS net demand
// against the committed dispatch.
func Settle(realizedDemand, pcsDemand, dispatch, reservePrice, dispatchPrice float64) Settlement {
	actual := realizedDemand + pcsDemand
	if actual < 0 {
		actual = 0
	}
	shortfall := math.Max(0, actual-dispatch)
	s := Settlement{
		RealizedDemand: realizedDemand,
		ActualDemand:   actual,
		Dispatch:       dispatch,
		Shortfall:      shortfall,
		ReserveCost:    shortfall * reservePrice,
		DispatchCost:   dispatch * dispatchPrice,
	}
	s.TotalCost = s.ReserveCost + s.DispatchCost
	if dispatch > 0 {
		s.Utilization = actual / dispatch
	}
	return s
}
