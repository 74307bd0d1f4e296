package strategy

import (
	"fmt"
	"math"

	"energy-net/internal/logging"
	"energy-net/internal/model"
)

// PricePoint is the price pair a PCS faces in one step.
type PricePoint struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

// OracleParams controls the discretization of the planner.
type OracleParams struct {
	// LevelSteps controls level discretization between [Min, Max].
	// Higher = more accurate, slower.
	LevelSteps int `json:"level_steps,omitempty" yaml:"level_steps,omitempty"`

	// ActionSteps controls action discretization on each side of zero.
	ActionSteps int `json:"action_steps,omitempty" yaml:"action_steps,omitempty"`

	// StepsPerDay maps the observed time of day back to a step index.
	// Defaults to the number of prices.
	StepsPerDay int `json:"steps_per_day,omitempty" yaml:"steps_per_day,omitempty"`
}

// Oracle is a perfect-foresight PCS policy. Given the full price path for an
// episode it plans, by dynamic programming on a discretized level grid, the
// action sequence that minimizes the PCS's energy bill.
//
// It is a ranking baseline: no trained agent facing the same prices can beat it
// by more than the discretization error.
type Oracle struct {
	plan        []float64
	stepsPerDay int
}

func NewOracle(prices []PricePoint, battery model.BatteryParams, horizon int, cfg OracleParams) (*Oracle, error) {
	if len(prices) == 0 {
		return nil, fmt.Errorf("oracle: no prices")
	}
	if horizon > 0 && horizon < len(prices) {
		prices = prices[:horizon]
	}
	if cfg.LevelSteps <= 0 {
		cfg.LevelSteps = 200
	}
	if cfg.ActionSteps <= 0 {
		cfg.ActionSteps = 10
	}
	if cfg.StepsPerDay <= 0 {
		cfg.StepsPerDay = len(prices)
	}
	plan, err := planDP(prices, battery, cfg.LevelSteps, cfg.ActionSteps)
	if err != nil {
		return nil, err
	}
	return &Oracle{plan: plan, stepsPerDay: cfg.StepsPerDay}, nil
}

func (o *Oracle) Name() string { return "oracle" }

// Plan returns a copy of the planned actions.
func (o *Oracle) Plan() []float64 { return append([]float64(nil), o.plan...) }

// Predict reads the time from a PCS observation [level, time, buy, sell].
// Observations carry the clock after it advanced for the step, so step k sits at (k+1)/stepsPerDay.
func (o *Oracle) Predict(obs []float64, _ bool) ([]float64, error) {
	if len(obs) < 2 {
		return nil, fmt.Errorf("oracle: observation too short (%d)", len(obs))
	}
	n := o.stepsPerDay
	k := (int(math.Round(obs[1]*float64(n))) + n - 1) % n
	if k < 0 || k >= len(o.plan) {
		return []float64{0}, nil
	}
	return []float64{o.plan[k]}, nil
}

// planDP runs a backward value pass then walks forward from the initial level.
func planDP(prices []PricePoint, p model.BatteryParams, levelSteps, actionSteps int) ([]float64, error) {
	scratch, err := model.NewBatteryManager(p, logging.Discard())
	if err != nil {
		return nil, err
	}
	if levelSteps < 2 {
		levelSteps = 2
	}
	nStates := levelSteps + 1

	levelToIdx := func(level float64) int {
		if level <= p.Min {
			return 0
		}
		if level >= p.Max {
			return levelSteps
		}
		f := (level - p.Min) / (p.Max - p.Min)
		return int(math.Round(f * float64(levelSteps)))
	}
	idxToLevel := func(idx int) float64 {
		f := float64(idx) / float64(levelSteps)
		return p.Min + f*(p.Max-p.Min)
	}

	// Action set: idle first so ties resolve to doing nothing.
	actions := make([]float64, 0, 2*actionSteps+1)
	actions = append(actions, 0)
	for k := 1; k <= actionSteps; k++ {
		actions = append(actions,
			-p.DischargeRateMax*float64(k)/float64(actionSteps),
			p.ChargeRateMax*float64(k)/float64(actionSteps))
	}

	// transition computes the next state index and step reward for one action.
	transition := func(sIdx int, action float64, price PricePoint) (int, float64) {
		scratch.State.Level = idxToLevel(sIdx)
		delta, next := scratch.CalculateEnergyChange(action)
		grid := scratch.GridEnergy(delta)
		reward := 0.0
		if grid > 0 {
			reward = -grid * price.Buy
		} else {
			reward = -grid * price.Sell
		}
		return levelToIdx(next), reward
	}

	T := len(prices)
	value := make([][]float64, T+1)
	for t := range value {
		value[t] = make([]float64, nStates)
	}
	best := make([][]float64, T)
	for t := T - 1; t >= 0; t-- {
		best[t] = make([]float64, nStates)
		for s := 0; s < nStates; s++ {
			bestValue := math.Inf(-1)
			bestAction := 0.0
			for _, a := range actions {
				ns, r := transition(s, a, prices[t])
				v := r + value[t+1][ns]
				if v > bestValue+1e-12 {
					bestValue = v
					bestAction = a
				}
			}
			value[t][s] = bestValue
			best[t][s] = bestAction
		}
	}

	plan := make([]float64, T)
	cur := levelToIdx(p.Init)
	for t := 0; t < T; t++ {
		plan[t] = best[t][cur]
		cur, _ = transition(cur, plan[t], prices[t])
	}
	return plan, nil
}
