package pricing

import (
	"energy-net/internal/model"

	"github.com/sirupsen/logrus"
)

// Constant takes [buy, sell] (+ dispatch profile) on the first step and holds those
// prices for the rest of the episode.
type Constant struct {
	cfg Config
	log logrus.FieldLogger

	buy, sell float64
	state     dayAhead
}

func (s *Constant) Policy() Policy { return PolicyConstant }

func (s *Constant) ActionSpace(useDispatch bool) model.Box {
	box := model.UniformBox(2, s.cfg.MinPrice, s.cfg.MaxPrice)
	if useDispatch {
		box = box.Concat(dispatchSpace(s.cfg, s.cfg.Horizon))
	}
	return box
}

func (s *Constant) ProcessAction(action []float64, stepIndex int, firstActionTaken bool, predictedDemand float64, useDispatch bool) (Decision, bool, error) {
	if stepIndex == 0 && !firstActionTaken {
		prices, profile, err := splitDayAhead(PolicyConstant, action, 2, useDispatch, s.cfg)
		if err != nil {
			return Decision{}, firstActionTaken, err
		}
		s.buy = s.cfg.clampPrice(sanitize(prices[0], s.cfg.MinPrice))
		s.sell = s.cfg.clampPrice(sanitize(prices[1], s.cfg.MinPrice))
		s.state.profile = profile
		s.state.set = true
		firstActionTaken = true
		s.log.WithFields(logrus.Fields{"buy": s.buy, "sell": s.sell}).Info("day-ahead constant prices set")
	} else if !s.state.set {
		s.log.WithField("step", stepIndex).Warn("constant prices were never set, using minimum price")
		s.buy, s.sell = s.cfg.MinPrice, s.cfg.MinPrice
	}

	return Decision{
		BuyPrice:  s.buy,
		SellPrice: s.sell,
		Dispatch:  s.state.dispatch(s.cfg.Dispatch, stepIndex, predictedDemand, useDispatch),
	}, firstActionTaken, nil
}

// Prices returns the stored day-ahead buy and sell prices.
func (s *Constant) Prices() (buy, sell float64) { return s.buy, s.sell }

func (s *Constant) Reset() {
	s.buy, s.sell = 0, 0
	s.state.reset()
}
