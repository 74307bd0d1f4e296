package data

import (
	"encoding/json"
	"fmt"
	"os"

	"energy-net/internal/strategy"
)

// LoadPolicySpec reads a single policy description, e.g. exported linear weights.
func LoadPolicySpec(path string) (strategy.Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return strategy.Spec{}, err
	}
	var spec strategy.Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return strategy.Spec{}, fmt.Errorf("parse policy %s: %w", path, err)
	}
	return spec, nil
}

// LoadPolicy reads a policy file and builds it.
func LoadPolicy(path string, env strategy.Env) (strategy.Policy, error) {
	spec, err := LoadPolicySpec(path)
	if err != nil {
		return nil, err
	}
	return strategy.FromSpec(spec, env)
}

// PriceSeries is a named per-step price path, e.g. a recorded episode.
type PriceSeries struct {
	Name   string                `json:"name"`
	Prices []strategy.PricePoint `json:"prices"`
}

// LoadPriceSeries reads a JSON array of price series.
func LoadPriceSeries(path string) ([]PriceSeries, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []PriceSeries
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse price series %s: %w", path, err)
	}
	return out, nil
}

// GroupByName splits series into name-keyed price paths. Repeated names are concatenated.
func GroupByName(series []PriceSeries) map[string][]strategy.PricePoint {
	out := map[string][]strategy.PricePoint{}
	for _, s := range series {
		out[s.Name] = append(out[s.Name], s.Prices...)
	}
	return out
}
