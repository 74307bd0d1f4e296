// Package pricing converts raw ISO actions into published buy/sell prices and dispatch.
package pricing

import (
	"math"
	"strings"

	"energy-net/internal/logging"
	"energy-net/internal/model"

	"github.com/sirupsen/logrus"
)

// Policy names a pricing strategy. The set is closed.
type Policy string

const (
	PolicyOnline    Policy = "ONLINE"
	PolicyQuadratic Policy = "QUADRATIC"
	PolicyConstant  Policy = "CONSTANT"
)

var Policies = []Policy{PolicyOnline, PolicyQuadratic, PolicyConstant}

func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PolicyOnline, PolicyQuadratic, PolicyConstant:
		return p, nil
	default:
		return "", model.NewConfigError("iso.pricing_policy", "unsupported pricing policy %q", s)
	}
}

// IsDayAhead reports whether the policy fixes its parameters once per episode.
func (p Policy) IsDayAhead() bool {
	return p == PolicyQuadratic || p == PolicyConstant
}

// Decision is what the ISO publishes for one step.
type Decision struct {
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`
	Dispatch  float64 `json:"dispatch"`
}

// Strategy turns an ISO action into a Decision.
//
// stepIndex is the 0-based index of the step being priced. firstActionTaken is
// the caller's gate for day-ahead policies; the updated gate is returned.
// Out-of-range values are clamped. Only a malformed day-ahead action returns an error.
type Strategy interface {
	Policy() Policy
	ActionSpace(useDispatch bool) model.Box
	ProcessAction(action []float64, stepIndex int, firstActionTaken bool, predictedDemand float64, useDispatch bool) (Decision, bool, error)
	Reset()
}

// Bounds is a closed interval.
type Bounds struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (b Bounds) clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// CoefficientBounds bounds the [a, b, c] terms of a price polynomial.
type CoefficientBounds struct {
	Low  [3]float64 `yaml:"low" json:"low"`
	High [3]float64 `yaml:"high" json:"high"`
}

// Config holds everything a strategy needs. Prices are $/MWh.
type Config struct {
	MinPrice float64
	MaxPrice float64

	// Per-side bounds for ONLINE actions.
	BuyPrice  Bounds
	SellPrice Bounds

	// Polynomial coefficient bounds for QUADRATIC.
	BuyCoefficients  CoefficientBounds
	SellCoefficients CoefficientBounds

	Dispatch DispatchConfig

	// Horizon is the episode length, i.e. the size of a day-ahead dispatch profile.
	Horizon int
}

// Validate returns a ConfigError for inconsistent bounds.
func (c Config) Validate() error {
	if c.MinPrice > c.MaxPrice {
		return model.NewConfigError("iso.min_price", "must be <= max_price (min=%g max=%g)", c.MinPrice, c.MaxPrice)
	}
	if c.BuyPrice.Min > c.BuyPrice.Max {
		return model.NewConfigError("iso.online.buy_price", "min %g > max %g", c.BuyPrice.Min, c.BuyPrice.Max)
	}
	if c.SellPrice.Min > c.SellPrice.Max {
		return model.NewConfigError("iso.online.sell_price", "min %g > max %g", c.SellPrice.Min, c.SellPrice.Max)
	}
	for i := 0; i < 3; i++ {
		if c.BuyCoefficients.Low[i] > c.BuyCoefficients.High[i] {
			return model.NewConfigError("iso.quadratic.buy", "coefficient %d: low > high", i)
		}
		if c.SellCoefficients.Low[i] > c.SellCoefficients.High[i] {
			return model.NewConfigError("iso.quadratic.sell", "coefficient %d: low > high", i)
		}
	}
	if c.Horizon <= 0 {
		return model.NewConfigError("environment.max_steps_per_episode", "must be > 0")
	}
	return c.Dispatch.Validate()
}

// New builds the strategy for policy.
func New(policy Policy, cfg Config, log logrus.FieldLogger) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logging.OrDiscard(log).WithField("policy", string(policy))

	switch policy {
	case PolicyOnline:
		return &Online{cfg: cfg, log: log}, nil
	case PolicyQuadratic:
		return &Quadratic{cfg: cfg, log: log}, nil
	case PolicyConstant:
		return &Constant{cfg: cfg, log: log}, nil
	default:
		return nil, model.NewConfigError("iso.pricing_policy", "unsupported pricing policy %q", policy)
	}
}

func (c Config) clampPrice(p float64) float64 {
	return Bounds{Min: c.MinPrice, Max: c.MaxPrice}.clamp(p)
}

// dayAhead is the per-episode state shared by QUADRATIC and CONSTANT.
type dayAhead struct {
	profile []float64
	set     bool
}

func (d *dayAhead) reset() {
	d.profile = nil
	d.set = false
}

// dispatch returns the stored profile value for stepIndex, or the rule default.
func (d *dayAhead) dispatch(cfg DispatchConfig, stepIndex int, predictedDemand float64, useDispatch bool) float64 {
	if useDispatch && stepIndex >= 0 && stepIndex < len(d.profile) {
		return d.profile[stepIndex]
	}
	return cfg.Default(stepIndex, predictedDemand)
}

// splitDayAhead checks the length of a day-ahead action and splits it into
// its head (coefficients or prices) and the optional dispatch profile.
func splitDayAhead(policy Policy, action []float64, head int, useDispatch bool, cfg Config) ([]float64, []float64, error) {
	want := head
	if useDispatch {
		want += cfg.Horizon
	}
	if len(action) != want {
		return nil, nil, model.NewConfigError("iso.action",
			"%s day-ahead action must have length %d, got %d", policy, want, len(action))
	}
	values := append([]float64(nil), action[:head]...)
	var profile []float64
	if useDispatch {
		profile = make([]float64, cfg.Horizon)
		for i, v := range action[head:] {
			profile[i] = cfg.Dispatch.Bounds.clamp(sanitize(v, cfg.Dispatch.Bounds.Min))
		}
	}
	return values, profile, nil
}

func dispatchSpace(cfg Config, n int) model.Box {
	return model.UniformBox(n, cfg.Dispatch.Bounds.Min, cfg.Dispatch.Bounds.Max)
}

func sanitize(v, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return v
}
