package pricing

import (
	"energy-net/internal/model"

	"github.com/sirupsen/logrus"
)

// Quadratic takes [a_b, b_b, c_b, a_s, b_s, c_s] (+ dispatch profile) on the first
// step of an episode and prices every step as a*d^2 + b*d + c of predicted demand.
type Quadratic struct {
	cfg Config
	log logrus.FieldLogger

	buyCoef  [3]float64
	sellCoef [3]float64
	state    dayAhead
}

func (s *Quadratic) Policy() Policy { return PolicyQuadratic }

func (s *Quadratic) ActionSpace(useDispatch bool) model.Box {
	b, sl := s.cfg.BuyCoefficients, s.cfg.SellCoefficients
	box := model.Box{
		Low:  []float64{b.Low[0], b.Low[1], b.Low[2], sl.Low[0], sl.Low[1], sl.Low[2]},
		High: []float64{b.High[0], b.High[1], b.High[2], sl.High[0], sl.High[1], sl.High[2]},
	}
	if useDispatch {
		box = box.Concat(dispatchSpace(s.cfg, s.cfg.Horizon))
	}
	return box
}

func (s *Quadratic) ProcessAction(action []float64, stepIndex int, firstActionTaken bool, predictedDemand float64, useDispatch bool) (Decision, bool, error) {
	if stepIndex == 0 && !firstActionTaken {
		coef, profile, err := splitDayAhead(PolicyQuadratic, action, 6, useDispatch, s.cfg)
		if err != nil {
			return Decision{}, firstActionTaken, err
		}
		for i := 0; i < 3; i++ {
			s.buyCoef[i] = clampCoef(coef[i], s.cfg.BuyCoefficients, i)
			s.sellCoef[i] = clampCoef(coef[3+i], s.cfg.SellCoefficients, i)
		}
		s.state.profile = profile
		s.state.set = true
		firstActionTaken = true
		s.log.WithFields(logrus.Fields{"buy_coef": s.buyCoef, "sell_coef": s.sellCoef}).Info("day-ahead quadratic coefficients set")
	} else if !s.state.set {
		s.log.WithField("step", stepIndex).Warn("quadratic coefficients were never set, pricing with zero coefficients")
	}

	d := predictedDemand
	buy := s.cfg.clampPrice(s.buyCoef[0]*d*d + s.buyCoef[1]*d + s.buyCoef[2])
	sell := s.cfg.clampPrice(s.sellCoef[0]*d*d + s.sellCoef[1]*d + s.sellCoef[2])

	return Decision{
		BuyPrice:  buy,
		SellPrice: sell,
		Dispatch:  s.state.dispatch(s.cfg.Dispatch, stepIndex, predictedDemand, useDispatch),
	}, firstActionTaken, nil
}

// Coefficients returns copies of the stored buy and sell coefficients.
func (s *Quadratic) Coefficients() (buy, sell [3]float64) { return s.buyCoef, s.sellCoef }

func (s *Quadratic) Reset() {
	s.buyCoef = [3]float64{}
	s.sellCoef = [3]float64{}
	s.state.reset()
}

func clampCoef(v float64, b CoefficientBounds, i int) float64 {
	return Bounds{Min: b.Low[i], Max: b.High[i]}.clamp(sanitize(v, 0))
}
