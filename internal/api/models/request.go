package models

import "energy-net/internal/strategy"

// SimulateRequest represents the request body for running one episode
type SimulateRequest struct {
	Config  SimulationConfig `json:"config,omitempty"`
	ISO     PolicyRef        `json:"iso" binding:"required"`
	PCS     *PolicyRef       `json:"pcs,omitempty"` // nil = unit policies / charge at max rate
	Seed    *uint64          `json:"seed,omitempty"`
	Options SimulateOptions  `json:"options,omitempty"`
}

// PolicyRef names a catalog policy or carries an inline spec. Spec wins when both are set.
type PolicyRef struct {
	Name string         `json:"name,omitempty"`
	Spec *strategy.Spec `json:"spec,omitempty"`
}

// SimulationConfig overrides the server's base configuration for one request
type SimulationConfig struct {
	PCSFile          string        `json:"pcs_file,omitempty"` // preset id under the PCS preset directory
	Battery          BatteryConfig `json:"battery,omitempty"`
	PricingPolicy    string        `json:"pricing_policy,omitempty"`
	DemandPattern    string        `json:"demand_pattern,omitempty"`
	CostType         string        `json:"cost_type,omitempty"`
	UncertaintySigma *float64      `json:"uncertainty_sigma,omitempty"`
	MaxSteps         int           `json:"max_steps,omitempty"`
	UseDispatch      *bool         `json:"use_dispatch,omitempty"`
	DispatchRule     string        `json:"dispatch_rule,omitempty"`
}

// BatteryConfig defines battery parameters
type BatteryConfig struct {
	Min                 float64 `json:"min,omitempty"`
	Max                 float64 `json:"max,omitempty"`
	Init                float64 `json:"init,omitempty"`
	ChargeRateMax       float64 `json:"charge_rate_max,omitempty"`
	DischargeRateMax    float64 `json:"discharge_rate_max,omitempty"`
	ChargeEfficiency    float64 `json:"charge_efficiency,omitempty"`
	DischargeEfficiency float64 `json:"discharge_efficiency,omitempty"`
}

// SimulateOptions contains optional run parameters
type SimulateOptions struct {
	IncludeLedger bool `json:"include_ledger,omitempty"` // default: false
	Persist       bool `json:"persist,omitempty"`        // store the episode when a database is configured
}

// CompareRequest represents a request to compare several setups on the same seed
type CompareRequest struct {
	BaseConfig SimulationConfig `json:"base_config,omitempty"`
	Seed       uint64           `json:"seed,omitempty"`
	Objective  string           `json:"objective,omitempty"` // "pcs_reward" (default) or "iso_reward"
	Variations []Variation      `json:"variations" binding:"required,min=1"`
}

// Variation defines a variation to test
type Variation struct {
	Name   string           `json:"name" binding:"required"`
	Config SimulationConfig `json:"config,omitempty"`
	ISO    PolicyRef        `json:"iso"`
	PCS    *PolicyRef       `json:"pcs,omitempty"`
}

// RankRequest represents a request to rank ISO catalog policies by the arbitrage room they leave
type RankRequest struct {
	Names string `form:"names,omitempty"` // comma-separated; default: every ISO catalog policy
	Limit int    `form:"limit,omitempty"` // default: 10
	Seed  uint64 `form:"seed,omitempty"`
}

// CreateSessionRequest starts an interactive episode
type CreateSessionRequest struct {
	Config SimulationConfig `json:"config,omitempty"`
	Seed   *uint64          `json:"seed,omitempty"`
}

// ActionRequest carries one agent's action
type ActionRequest struct {
	Action []float64 `json:"action"`
}

// StepRequest carries both agents' actions for a full step
type StepRequest struct {
	ISO []float64 `json:"iso" binding:"required"`
	PCS []float64 `json:"pcs,omitempty"`
}

// ResetRequest restarts a session, optionally with a new seed
type ResetRequest struct {
	Seed *uint64 `json:"seed,omitempty"`
}
