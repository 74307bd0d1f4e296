package pricing

import (
	"math"

	"energy-net/internal/model"

	"github.com/sirupsen/logrus"
)

// Online prices every step directly from the action: [buy, sell] or [buy, sell, dispatch].
type Online struct {
	cfg Config
	log logrus.FieldLogger
}

func (s *Online) Policy() Policy { return PolicyOnline }

func (s *Online) ActionSpace(useDispatch bool) model.Box {
	box := model.Box{
		Low:  []float64{s.cfg.BuyPrice.Min, s.cfg.SellPrice.Min},
		High: []float64{s.cfg.BuyPrice.Max, s.cfg.SellPrice.Max},
	}
	if useDispatch {
		box = box.Concat(dispatchSpace(s.cfg, 1))
	}
	return box
}

func (s *Online) ProcessAction(action []float64, stepIndex int, firstActionTaken bool, predictedDemand float64, useDispatch bool) (Decision, bool, error) {
	want := 2
	if useDispatch {
		want = 3
	}
	switch {
	case len(action) == 1:
		s.log.WithField("action", action[0]).Warn("scalar online action, using it for both buy and sell price")
		action = []float64{action[0], action[0]}
	case len(action) == 0:
		s.log.Warn("empty online action, using minimum prices")
		action = []float64{s.cfg.BuyPrice.Min, s.cfg.SellPrice.Min}
	case len(action) > want:
		s.log.WithFields(logrus.Fields{"got": len(action), "want": want}).Warn("online action too long, extra values ignored")
	}

	buy := s.cfg.clampPrice(s.cfg.BuyPrice.clamp(sanitize(action[0], s.cfg.BuyPrice.Min)))
	sell := s.cfg.clampPrice(s.cfg.SellPrice.clamp(sanitize(action[1], s.cfg.SellPrice.Min)))
	if buy != action[0] || sell != action[1] {
		s.log.WithFields(logrus.Fields{
			"buy_in": action[0], "sell_in": action[1], "buy": buy, "sell": sell,
		}).Debug("online prices clamped")
	}

	dispatch := s.cfg.Dispatch.Default(stepIndex, predictedDemand)
	if useDispatch {
		if len(action) >= 3 && !math.IsNaN(action[2]) {
			dispatch = s.cfg.Dispatch.Bounds.clamp(action[2])
		} else {
			s.log.WithField("step", stepIndex).Warn("dispatch action missing, using default dispatch rule")
		}
	}

	return Decision{BuyPrice: buy, SellPrice: sell, Dispatch: dispatch}, firstActionTaken, nil
}

func (s *Online) Reset() {}
