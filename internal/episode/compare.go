package episode

import (
	"context"
	"fmt"
	"sort"

	"energy-net/internal/controller"
	"energy-net/internal/strategy"

	"github.com/sirupsen/logrus"
)

// Variation is one candidate setup in a comparison.
type Variation struct {
	Name   string
	Config controller.Config
	ISO    strategy.Policy
	PCS    strategy.Policy
	// UnitPolicies drive the PCS units other than the externally controlled one.
	UnitPolicies map[int]strategy.Policy
}

// Objective picks the score used to rank results.
type Objective string

const (
	ObjectivePCS Objective = "pcs_reward"
	ObjectiveISO Objective = "iso_reward"
)

func (o Objective) Score(r *Result) float64 {
	if o == ObjectiveISO {
		return r.TotalISOReward
	}
	return r.TotalPCSReward
}

type Ranked struct {
	Rank   int     `json:"rank"`
	Score  float64 `json:"score"`
	Result *Result `json:"result"`
}

// Compare runs every variation with the same seed and ranks them by objective, best first.
func (e *Engine) Compare(ctx context.Context, variations []Variation, seed uint64, objective Objective) ([]Ranked, error) {
	if len(variations) == 0 {
		return nil, fmt.Errorf("no variations")
	}
	out := make([]Ranked, 0, len(variations))
	for _, v := range variations {
		ctrl, err := controller.New(v.Config, e.log.WithField("variation", v.Name))
		if err != nil {
			return nil, fmt.Errorf("variation %q: %w", v.Name, err)
		}
		for idx, p := range v.UnitPolicies {
			ctrl.PCS().SetTrainedAgent(idx, p)
		}
		s := seed
		res, err := e.Run(ctx, ctrl, v.ISO, v.PCS, &s, nil)
		if err != nil {
			return nil, fmt.Errorf("variation %q: %w", v.Name, err)
		}
		res.Name = v.Name
		out = append(out, Ranked{Score: objective.Score(res), Result: res})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	for i := range out {
		out[i].Rank = i + 1
	}
	e.log.WithFields(logrus.Fields{
		"variations": len(out),
		"best":       out[0].Result.Name,
		"objective":  objective,
	}).Info("comparison finished")
	return out, nil
}
