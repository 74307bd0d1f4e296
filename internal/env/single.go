package env

import (
	"errors"

	"energy-net/internal/controller"
	"energy-net/internal/logging"
	"energy-net/internal/model"
	"energy-net/internal/strategy"

	"github.com/sirupsen/logrus"
)

// ISOEnv trains the ISO against a fixed PCS side. A nil PCS policy leaves
// unit 0 to its attached agent or the default heuristic.
type ISOEnv struct {
	ctrl      *controller.Controller
	pcsPolicy strategy.Policy
	log       logrus.FieldLogger
}

func NewISOEnv(ctrl *controller.Controller, pcsPolicy strategy.Policy, log logrus.FieldLogger) *ISOEnv {
	return &ISOEnv{ctrl: ctrl, pcsPolicy: pcsPolicy, log: logging.OrDiscard(log).WithField("env", "iso")}
}

func (e *ISOEnv) Reset(seed *uint64) ([]float64, error) {
	iso, _ := e.ctrl.Reset(seed)
	return iso, nil
}

func (e *ISOEnv) Step(action []float64) (Transition, error) {
	if _, err := e.ctrl.StepISO(action); err != nil {
		return Transition{}, err
	}

	var pcsAction []float64
	if e.pcsPolicy != nil {
		a, err := e.pcsPolicy.Predict(e.ctrl.PCSObservation(), true)
		if err != nil {
			e.log.WithError(err).Warn("fixed pcs policy failed, unit 0 falls back to its own policy")
		} else {
			pcsAction = a
		}
	}

	res, err := e.ctrl.StepPCS(pcsAction)
	if err != nil {
		return Transition{}, err
	}
	return Transition{
		Observation: res.ISOObservation,
		Reward:      res.ISOReward,
		Terminated:  res.Terminated,
		Truncated:   res.Truncated,
		Info:        res.Info,
	}, nil
}

func (e *ISOEnv) ActionSpace() model.Box      { return e.ctrl.ISOActionSpace() }
func (e *ISOEnv) ObservationSpace() model.Box { return e.ctrl.ISOObservationSpace() }

// PCSEnv trains the PCS against a fixed ISO policy.
type PCSEnv struct {
	ctrl      *controller.Controller
	isoPolicy strategy.Policy
	log       logrus.FieldLogger
}

func NewPCSEnv(ctrl *controller.Controller, isoPolicy strategy.Policy, log logrus.FieldLogger) *PCSEnv {
	return &PCSEnv{ctrl: ctrl, isoPolicy: isoPolicy, log: logging.OrDiscard(log).WithField("env", "pcs")}
}

func (e *PCSEnv) Reset(seed *uint64) ([]float64, error) {
	_, pcs := e.ctrl.Reset(seed)
	return pcs, nil
}

// Step asks the ISO policy for prices, then applies action to unit 0.
// An ISO policy error is returned since there is no sensible price to fall back to.
func (e *PCSEnv) Step(action []float64) (Transition, error) {
	if e.isoPolicy == nil {
		return Transition{}, errors.New("pcs env: no ISO policy")
	}
	isoAction, err := e.isoPolicy.Predict(e.ctrl.ISOObservation(), true)
	if err != nil {
		return Transition{}, err
	}
	if _, err := e.ctrl.StepISO(isoAction); err != nil {
		return Transition{}, err
	}
	res, err := e.ctrl.StepPCS(action)
	if err != nil {
		return Transition{}, err
	}
	return Transition{
		Observation: res.PCSObservation,
		Reward:      res.PCSReward,
		Terminated:  res.Terminated,
		Truncated:   res.Truncated,
		Info:        res.Info,
	}, nil
}

func (e *PCSEnv) ActionSpace() model.Box      { return e.ctrl.PCSActionSpace() }
func (e *PCSEnv) ObservationSpace() model.Box { return e.ctrl.PCSObservationSpace() }
