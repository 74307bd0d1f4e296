package pricing

import (
	"math"
	"strings"

	"energy-net/internal/model"
)

// DispatchRule decides the dispatch when the ISO agent does not control it.
type DispatchRule string

const (
	DispatchPredictedDemand DispatchRule = "PREDICTED_DEMAND"
	DispatchFixed           DispatchRule = "FIXED"
	DispatchScaled          DispatchRule = "SCALED"
	DispatchProfile         DispatchRule = "PROFILE"
)

var DispatchRules = []DispatchRule{DispatchPredictedDemand, DispatchFixed, DispatchScaled, DispatchProfile}

func ParseDispatchRule(s string) (DispatchRule, error) {
	r := DispatchRule(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case "":
		return DispatchPredictedDemand, nil
	case DispatchPredictedDemand, DispatchFixed, DispatchScaled, DispatchProfile:
		return r, nil
	default:
		return "", model.NewConfigError("iso.dispatch.rule", "unsupported dispatch rule %q", s)
	}
}

// DispatchConfig bounds agent-controlled dispatch and configures the default rule.
type DispatchConfig struct {
	Bounds Bounds
	Rule   DispatchRule

	FixedValue  float64
	ScaleFactor float64
	// Profile is indexed by step. Steps past its end fall back to predicted demand.
	Profile []float64
}

func (c DispatchConfig) Validate() error {
	if c.Bounds.Min > c.Bounds.Max {
		return model.NewConfigError("iso.dispatch", "min %g > max %g", c.Bounds.Min, c.Bounds.Max)
	}
	switch c.Rule {
	case "", DispatchPredictedDemand, DispatchFixed, DispatchScaled:
	case DispatchProfile:
		if len(c.Profile) == 0 {
			return model.NewConfigError("iso.dispatch.profile", "required when rule is PROFILE")
		}
	default:
		return model.NewConfigError("iso.dispatch.rule", "unsupported dispatch rule %q", c.Rule)
	}
	return nil
}

// Default returns the dispatch for stepIndex under the configured rule.
func (c DispatchConfig) Default(stepIndex int, predictedDemand float64) float64 {
	switch c.Rule {
	case DispatchFixed:
		return math.Max(0, c.FixedValue)
	case DispatchScaled:
		scale := c.ScaleFactor
		if scale == 0 {
			scale = 1
		}
		return math.Max(0, predictedDemand*scale)
	case DispatchProfile:
		if stepIndex >= 0 && stepIndex < len(c.Profile) {
			return math.Max(0, c.Profile[stepIndex])
		}
		return predictedDemand
	default:
		return predictedDemand
	}
}
