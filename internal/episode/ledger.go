package episode

import (
	"energy-net/internal/analysis"
	"energy-net/internal/controller"
	"energy-net/internal/model"
	"energy-net/internal/strategy"
)

// LedgerRow is one row of per-step output.
// This is the primary artifact for "what happened" in an episode.
type LedgerRow struct {
	Step  int     `json:"step"`
	Time  float64 `json:"time"`
	Clock string  `json:"clock"`

	PredictedDemand float64 `json:"predicted_demand"`
	RealizedDemand  float64 `json:"realized_demand"`
	ActualDemand    float64 `json:"actual_demand"`
	PCSDemand       float64 `json:"pcs_demand"`

	BuyPrice  float64 `json:"iso_buy_price"`
	SellPrice float64 `json:"iso_sell_price"`
	Dispatch  float64 `json:"dispatch"`

	Shortfall    float64 `json:"shortfall"`
	ReserveCost  float64 `json:"reserve_cost"`
	DispatchCost float64 `json:"dispatch_cost"`

	Action   model.Action   `json:"action"`
	Exchange model.Exchange `json:"exchange"`

	RequestedAction float64 `json:"requested_action"`
	BatteryAction   float64 `json:"battery_action"`
	LevelStart      float64 `json:"level_start"`
	LevelEnd        float64 `json:"level_end"`

	ISOReward    float64 `json:"iso_reward"`
	PCSReward    float64 `json:"pcs_reward"`
	CumISOReward float64 `json:"cum_iso_reward"`
	CumPCSReward float64 `json:"cum_pcs_reward"`

	EnergyBought float64 `json:"energy_bought"`
	EnergySold   float64 `json:"energy_sold"`
}

type Result struct {
	ID     string      `json:"id,omitempty"`
	Name   string      `json:"name,omitempty"`
	Ledger []LedgerRow `json:"ledger"`
	Steps  int         `json:"steps"`

	TotalISOReward float64 `json:"total_iso_reward"`
	TotalPCSReward float64 `json:"total_pcs_reward"`
	EnergyBought   float64 `json:"energy_bought"`
	EnergySold     float64 `json:"energy_sold"`
	FinalLevel     float64 `json:"final_level"`

	ISO    controller.ISOMetrics `json:"iso_metrics"`
	PCS    controller.PCSSummary `json:"pcs_summary"`
	Prices analysis.Stats        `json:"buy_prices"`
}

// PricePath extracts the per-step prices a PCS faced.
func PricePath(ledger []LedgerRow) []strategy.PricePoint {
	out := make([]strategy.PricePoint, len(ledger))
	for i, r := range ledger {
		out[i] = strategy.PricePoint{Buy: r.BuyPrice, Sell: r.SellPrice}
	}
	return out
}
