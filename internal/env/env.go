// Package env exposes the controller through a reset/step contract for
// external training and evaluation drivers.
package env

import (
	"energy-net/internal/controller"
	"energy-net/internal/model"
)

// Agent identifies a market role.
type Agent string

const (
	AgentISO Agent = "iso"
	AgentPCS Agent = "pcs"
)

var Agents = []Agent{AgentISO, AgentPCS}

// Transition is the outcome of one step from one agent's point of view.
type Transition struct {
	Observation []float64           `json:"observation"`
	Reward      float64             `json:"reward"`
	Terminated  bool                `json:"terminated"`
	Truncated   bool                `json:"truncated"`
	Info        controller.StepInfo `json:"info"`
}

// Done reports whether the episode ended for any reason.
func (t Transition) Done() bool { return t.Terminated || t.Truncated }

// Env is a single-agent environment.
type Env interface {
	Reset(seed *uint64) ([]float64, error)
	Step(action []float64) (Transition, error)
	ActionSpace() model.Box
	ObservationSpace() model.Box
}
