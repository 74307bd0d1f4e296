// Package episode runs whole episodes with frozen policies on both sides and
// records what happened.
package episode

import (
	"context"
	"fmt"

	"energy-net/internal/analysis"
	"energy-net/internal/controller"
	"energy-net/internal/logging"
	"energy-net/internal/model"
	"energy-net/internal/strategy"

	"github.com/sirupsen/logrus"
)

// StepHook is called after every settled step. Returning an error aborts the run.
type StepHook func(row LedgerRow) error

type Engine struct {
	log logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Engine { return &Engine{log: logging.OrDiscard(log)} }

// Run resets ctrl and plays one episode. The ISO policy prices every step; a nil
// PCS policy leaves unit 0 to its attached agent or the default heuristic.
// The context is checked between steps.
func (e *Engine) Run(ctx context.Context, ctrl *controller.Controller, iso, pcs strategy.Policy, seed *uint64, hook StepHook) (*Result, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("controller is nil")
	}
	if iso == nil {
		return nil, fmt.Errorf("iso policy is nil")
	}

	ctrl.Reset(seed)
	maxSteps := ctrl.Config().Time.MaxSteps
	ledger := make([]LedgerRow, 0, maxSteps)
	var cumISO, cumPCS float64

	for idx := 0; idx < maxSteps; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("step %d: %w", idx, err)
		}

		isoAction, err := iso.Predict(ctrl.ISOObservation(), true)
		if err != nil {
			return nil, fmt.Errorf("step %d iso policy: %w", idx, err)
		}
		if _, err := ctrl.StepISO(isoAction); err != nil {
			return nil, fmt.Errorf("step %d iso: %w", idx, err)
		}

		levelStart := ctrl.PCS().Unit(0).Battery.Level()
		var pcsAction []float64
		if pcs != nil {
			pcsAction, err = pcs.Predict(ctrl.PCSObservation(), true)
			if err != nil {
				e.log.WithError(err).WithField("step", idx).Warn("pcs policy failed, unit 0 falls back to its own policy")
				pcsAction = nil
			}
		}

		res, err := ctrl.StepPCS(pcsAction)
		if err != nil {
			return nil, fmt.Errorf("step %d pcs: %w", idx, err)
		}
		cumISO += res.ISOReward
		cumPCS += res.PCSReward

		info := res.Info
		row := LedgerRow{
			Step:  info.Step,
			Time:  info.Time,
			Clock: Clock(info.Time),

			PredictedDemand: info.PredictedDemand,
			RealizedDemand:  info.RealizedDemand,
			ActualDemand:    info.ActualDemand,
			PCSDemand:       info.PCSDemand,

			BuyPrice:  info.BuyPrice,
			SellPrice: info.SellPrice,
			Dispatch:  info.Dispatch,

			Shortfall:    info.Shortfall,
			ReserveCost:  info.ReserveCost,
			DispatchCost: info.DispatchCost,

			Exchange: model.ExchangeFromNet(info.PCSDemand),

			LevelStart: levelStart,

			ISOReward:    res.ISOReward,
			PCSReward:    res.PCSReward,
			CumISOReward: cumISO,
			CumPCSReward: cumPCS,

			EnergyBought: info.EnergyBought,
			EnergySold:   info.EnergySold,
		}
		if len(pcsAction) > 0 {
			row.RequestedAction = pcsAction[0]
		}
		if len(info.BatteryActions) > 0 {
			row.BatteryAction = info.BatteryActions[0]
			row.LevelEnd = info.BatteryLevels[0]
			row.Action = model.ActionFromEnergyChange(row.LevelEnd - levelStart)
		}
		ledger = append(ledger, row)

		if hook != nil {
			if err := hook(row); err != nil {
				return nil, fmt.Errorf("step %d hook: %w", idx, err)
			}
		}
		if res.Truncated || res.Terminated {
			break
		}
	}

	st := ctrl.State()
	result := &Result{
		Ledger:         ledger,
		Steps:          len(ledger),
		TotalISOReward: cumISO,
		TotalPCSReward: cumPCS,
		EnergyBought:   st.EnergyBought,
		EnergySold:     st.EnergySold,
		FinalLevel:     ctrl.PCS().Unit(0).Battery.Level(),
		ISO:            ctrl.ISOMetrics(),
		PCS:            ctrl.PCSMetrics().Summary(),
		Prices:         analysis.Summarize(ctrl.PriceHistory()),
	}
	e.log.WithFields(logrus.Fields{
		"steps":      result.Steps,
		"iso_reward": result.TotalISOReward,
		"pcs_reward": result.TotalPCSReward,
	}).Info("episode finished")
	return result, nil
}

// Clock renders a day fraction as HH:MM.
func Clock(t float64) string {
	mins := int(t*24*60 + 0.5)
	mins %= 24 * 60
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}
