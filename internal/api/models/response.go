package models

import (
	"energy-net/internal/analysis"
	"energy-net/internal/controller"
	"energy-net/internal/episode"
	"energy-net/internal/model"
)

// SimulateResponse represents the response from one episode
type SimulateResponse struct {
	ID      string              `json:"id,omitempty"`
	Status  string              `json:"status"`
	Summary Summary             `json:"summary"`
	Ledger  []episode.LedgerRow `json:"ledger,omitempty"`
}

// Summary contains aggregated episode results
type Summary struct {
	Steps          int                   `json:"steps"`
	TotalISOReward float64               `json:"total_iso_reward"`
	TotalPCSReward float64               `json:"total_pcs_reward"`
	EnergyBought   float64               `json:"energy_bought"`
	EnergySold     float64               `json:"energy_sold"`
	FinalLevel     float64               `json:"final_level"`
	ISO            controller.ISOMetrics `json:"iso_metrics"`
	PCS            controller.PCSSummary `json:"pcs_summary"`
	BuyPrices      analysis.Stats        `json:"buy_prices"`
	Windows        []Window              `json:"windows,omitempty"` // contiguous charge/discharge runs
}

// Window is a contiguous run of steps with the same battery action
type Window struct {
	Action       model.Action `json:"action"`
	StartClock   string       `json:"start_clock"`
	EndClock     string       `json:"end_clock"`
	Steps        int          `json:"steps"`
	Energy       float64      `json:"energy"`        // level change over the window
	AveragePrice float64      `json:"average_price"` // buy price when charging, sell price when discharging
}

// CompareResponse represents the response from a comparison
type CompareResponse struct {
	Objective  string             `json:"objective"`
	Comparison []ComparisonResult `json:"comparison"`
}

// ComparisonResult contains results for one variation
type ComparisonResult struct {
	Rank    int     `json:"rank"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Summary Summary `json:"summary"`
}

// RankResponse represents the response from ranking ISO policies
type RankResponse struct {
	Rankings []Ranking `json:"rankings"`
}

// Ranking represents one ranked ISO policy
type Ranking struct {
	Rank         int     `json:"rank"`
	Policy       string  `json:"policy"`
	Count        int     `json:"count"`
	SpreadP95P05 float64 `json:"spread_p95_p05"`
	MinBuy       float64 `json:"min_buy"`
	MaxBuy       float64 `json:"max_buy"`
	OracleProfit float64 `json:"oracle_profit"`
}

// PCSPresetInfo represents information about a PCS preset file
type PCSPresetInfo struct {
	ID    string       `json:"id"`
	File  string       `json:"file"`
	Units int          `json:"units"`
	Specs BatterySpecs `json:"specs"`
}

// BatterySpecs contains the shared battery specifications of a preset
type BatterySpecs struct {
	Capacity         float64 `json:"capacity"`
	ChargeRateMax    float64 `json:"charge_rate_max"`
	DischargeRateMax float64 `json:"discharge_rate_max"`
}

// StrategyInfo represents information about a policy kind
type StrategyInfo struct {
	Kind        string          `json:"kind"`
	Sides       []string        `json:"sides"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a strategy parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "int", "string", "[]float"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// OptionsResponse lists the accepted enum values
type OptionsResponse struct {
	DemandPatterns  []string `json:"demand_patterns"`
	CostTypes       []string `json:"cost_types"`
	PricingPolicies []string `json:"pricing_policies"`
	DispatchRules   []string `json:"dispatch_rules"`
	RewardKinds     []string `json:"reward_kinds"`
}

// SessionResponse describes an interactive session after each call
type SessionResponse struct {
	ID             string                 `json:"id"`
	Step           int                    `json:"step"`
	AwaitingPCS    bool                   `json:"awaiting_pcs"`
	ISOObservation []float64              `json:"iso_observation"`
	PCSObservation []float64              `json:"pcs_observation"`
	ISOActionSpace model.Box              `json:"iso_action_space"`
	PCSActionSpace model.Box              `json:"pcs_action_space"`
	State          model.MarketState      `json:"state"`
	Result         *controller.StepResult `json:"result,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
