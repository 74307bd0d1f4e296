package controller

import "energy-net/internal/analysis"

// StepInfo is the full record of one settled step.
type StepInfo struct {
	Step int     `json:"step"`
	Time float64 `json:"time"`

	PredictedDemand float64 `json:"predicted_demand"`
	RealizedDemand  float64 `json:"realized_demand"`
	ActualDemand    float64 `json:"actual_demand"`
	PCSDemand       float64 `json:"pcs_demand"`

	BuyPrice      float64 `json:"iso_buy_price"`
	SellPrice     float64 `json:"iso_sell_price"`
	Dispatch      float64 `json:"dispatch"`
	ReservePrice  float64 `json:"reserve_price"`
	DispatchPrice float64 `json:"dispatch_price"`

	Shortfall    float64 `json:"shortfall"`
	ReserveCost  float64 `json:"reserve_cost"`
	DispatchCost float64 `json:"dispatch_cost"`
	TotalCost    float64 `json:"total_cost"`
	Utilization  float64 `json:"utilization"`
	PCSPayment   float64 `json:"pcs_payment"`

	Production     float64   `json:"production"`
	Consumption    float64   `json:"consumption"`
	BatteryLevels  []float64 `json:"battery_levels"`
	BatteryActions []float64 `json:"battery_actions"`
	NetExchanges   []float64 `json:"net_exchanges"`

	EnergyBought float64 `json:"energy_bought"`
	EnergySold   float64 `json:"energy_sold"`

	ISOReward       float64 `json:"iso_reward"`
	PCSReward       float64 `json:"pcs_reward"`
	AverageBuyPrice float64 `json:"average_buy_price"`
}

// ISOMetrics accumulates grid-side totals for the episode.
type ISOMetrics struct {
	Steps             int     `json:"steps"`
	ShortfallSteps    int     `json:"shortfall_steps"`
	TotalShortfall    float64 `json:"total_shortfall"`
	TotalReserveCost  float64 `json:"total_reserve_cost"`
	TotalDispatchCost float64 `json:"total_dispatch_cost"`
	TotalPCSPayment   float64 `json:"total_pcs_payment"`
	TotalReward       float64 `json:"total_reward"`
	// MeanUtilization is actual demand over dispatch, averaged over steps.
	MeanUtilization float64 `json:"mean_utilization"`
}

func (m *ISOMetrics) Record(info StepInfo) {
	m.Steps++
	if info.Shortfall > 0 {
		m.ShortfallSteps++
	}
	m.TotalShortfall += info.Shortfall
	m.TotalReserveCost += info.ReserveCost
	m.TotalDispatchCost += info.DispatchCost
	m.TotalPCSPayment += info.PCSPayment
	m.TotalReward += info.ISOReward
	m.MeanUtilization += (info.Utilization - m.MeanUtilization) / float64(m.Steps)
}

// PCSMetrics keeps the per-step history of the controlled PCS unit.
type PCSMetrics struct {
	Rewards      []float64 `json:"rewards"`
	Levels       []float64 `json:"levels"`
	NetExchanges []float64 `json:"net_exchanges"`
	Payments     []float64 `json:"payments"`
}

func (m *PCSMetrics) Record(info StepInfo) {
	m.Rewards = append(m.Rewards, info.PCSReward)
	if len(info.BatteryLevels) > 0 {
		m.Levels = append(m.Levels, info.BatteryLevels[0])
	}
	if len(info.NetExchanges) > 0 {
		m.NetExchanges = append(m.NetExchanges, info.NetExchanges[0])
	}
	m.Payments = append(m.Payments, info.PCSPayment)
}

// PCSSummary is the end-of-episode view of the PCS.
type PCSSummary struct {
	Reward analysis.Stats `json:"reward"`
	Level  analysis.Stats `json:"level"`
	Steps  int            `json:"steps"`
}

func (m *PCSMetrics) Summary() PCSSummary {
	return PCSSummary{
		Reward: analysis.Summarize(m.Rewards),
		Level:  analysis.Summarize(m.Levels),
		Steps:  len(m.Rewards),
	}
}
