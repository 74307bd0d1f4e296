// Package strategy holds frozen policies that map an observation to an action.
// They stand in for trained agents on either side of the market.
package strategy

import (
	"fmt"
	"strings"

	"energy-net/internal/model"
)

// Policy is the narrow contract for an external or frozen agent.
type Policy interface {
	Predict(obs []float64, deterministic bool) ([]float64, error)
}

// Named is implemented by policies that can describe themselves.
type Named interface {
	Name() string
}

func NameOf(p Policy) string {
	if p == nil {
		return "none"
	}
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}

// Func adapts a plain function to Policy.
type Func func(obs []float64) []float64

func (f Func) Predict(obs []float64, _ bool) ([]float64, error) { return f(obs), nil }

// ChargeMax is the default PCS heuristic: always charge at the maximum rate.
// The battery manager trims it to what is feasible.
type ChargeMax struct {
	Rate float64
}

func (ChargeMax) Name() string { return "charge_max" }

func (c ChargeMax) Predict([]float64, bool) ([]float64, error) {
	return []float64{c.Rate}, nil
}

// Constant always returns the same action.
type Constant struct {
	Action []float64 `json:"action"`
}

func (Constant) Name() string { return "constant" }

func (c Constant) Predict([]float64, bool) ([]float64, error) {
	if len(c.Action) == 0 {
		return nil, fmt.Errorf("constant policy has no action")
	}
	return append([]float64(nil), c.Action...), nil
}

// Kind names a policy type in policy files and API requests.
type Kind string

const (
	KindChargeMax Kind = "charge_max"
	KindConstant  Kind = "constant"
	KindSchedule  Kind = "schedule"
	KindLinear    Kind = "linear"
	KindOracle    Kind = "oracle"
)

// Spec is the serializable description of a frozen policy.
type Spec struct {
	Kind     Kind            `json:"kind" yaml:"kind"`
	Action   []float64       `json:"action,omitempty" yaml:"action,omitempty"`
	Rate     float64         `json:"rate,omitempty" yaml:"rate,omitempty"`
	Schedule *ScheduleParams `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Linear   *Linear         `json:"linear,omitempty" yaml:"linear,omitempty"`
	Oracle   *OracleParams   `json:"oracle,omitempty" yaml:"oracle,omitempty"`
}

// Env carries what some policies need to be built but cannot get from a Spec alone.
type Env struct {
	Battery model.BatteryParams
	// Prices is the known per-step price path, needed by the oracle.
	Prices  []PricePoint
	Horizon int
}

// FromSpec builds a policy.
func FromSpec(spec Spec, env Env) (Policy, error) {
	switch Kind(strings.ToLower(string(spec.Kind))) {
	case KindChargeMax, "":
		rate := spec.Rate
		if rate == 0 {
			rate = env.Battery.ChargeRateMax
		}
		return ChargeMax{Rate: rate}, nil
	case KindConstant:
		if len(spec.Action) == 0 {
			return nil, fmt.Errorf("constant policy: action is required")
		}
		return Constant{Action: spec.Action}, nil
	case KindSchedule:
		if spec.Schedule == nil {
			return nil, fmt.Errorf("schedule policy: schedule params are required")
		}
		return NewSchedule(*spec.Schedule)
	case KindLinear:
		if spec.Linear == nil {
			return nil, fmt.Errorf("linear policy: weights are required")
		}
		if err := spec.Linear.Validate(); err != nil {
			return nil, err
		}
		return spec.Linear, nil
	case KindOracle:
		params := OracleParams{}
		if spec.Oracle != nil {
			params = *spec.Oracle
		}
		return NewOracle(env.Prices, env.Battery, env.Horizon, params)
	default:
		return nil, fmt.Errorf("unknown policy kind %q", spec.Kind)
	}
}
