package env

import (
	"fmt"

	"energy-net/internal/controller"
	"energy-net/internal/model"
)

// EnergyNetV0 is the multi-agent environment: both roles act every step.
type EnergyNetV0 struct {
	ctrl *controller.Controller
}

func NewEnergyNetV0(ctrl *controller.Controller) *EnergyNetV0 {
	return &EnergyNetV0{ctrl: ctrl}
}

func (e *EnergyNetV0) Controller() *controller.Controller { return e.ctrl }

func (e *EnergyNetV0) Reset(seed *uint64) map[Agent][]float64 {
	iso, pcs := e.ctrl.Reset(seed)
	return map[Agent][]float64{AgentISO: iso, AgentPCS: pcs}
}

// Step requires an ISO action. A missing PCS action lets unit 0's own policy act.
func (e *EnergyNetV0) Step(actions map[Agent][]float64) (map[Agent]Transition, error) {
	iso, ok := actions[AgentISO]
	if !ok {
		return nil, fmt.Errorf("missing %s action", AgentISO)
	}
	res, err := e.ctrl.Step(iso, actions[AgentPCS])
	if err != nil {
		return nil, err
	}
	return map[Agent]Transition{
		AgentISO: {
			Observation: res.ISOObservation,
			Reward:      res.ISOReward,
			Terminated:  res.Terminated,
			Truncated:   res.Truncated,
			Info:        res.Info,
		},
		AgentPCS: {
			Observation: res.PCSObservation,
			Reward:      res.PCSReward,
			Terminated:  res.Terminated,
			Truncated:   res.Truncated,
			Info:        res.Info,
		},
	}, nil
}

func (e *EnergyNetV0) ActionSpaces() map[Agent]model.Box {
	return map[Agent]model.Box{
		AgentISO: e.ctrl.ISOActionSpace(),
		AgentPCS: e.ctrl.PCSActionSpace(),
	}
}

func (e *EnergyNetV0) ObservationSpaces() map[Agent]model.Box {
	return map[Agent]model.Box{
		AgentISO: e.ctrl.ISOObservationSpace(),
		AgentPCS: e.ctrl.PCSObservationSpace(),
	}
}
