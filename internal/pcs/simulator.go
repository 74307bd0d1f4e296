// Package pcs simulates a set of PCS units reacting to published prices.
package pcs

import (
	"fmt"
	"math"

	"energy-net/internal/logging"
	"energy-net/internal/model"
	"energy-net/internal/strategy"

	"github.com/sirupsen/logrus"
)

// UnitConfig describes one PCS unit.
type UnitConfig struct {
	Battery     model.BatteryParams
	Production  Profile
	Consumption Profile
}

// Config describes the whole arena.
type Config struct {
	Units []UnitConfig
	// MultiAction extends the action to [battery, consumption_scale, production_scale].
	MultiAction bool
	// ScaleMax bounds the consumption/production multipliers in multi-action mode.
	ScaleMax float64
}

// Unit is one slot of the arena. The simulator owns it.
type Unit struct {
	Battery *model.BatteryManager
	// Policy is the trained agent, nil means the default heuristic.
	Policy      strategy.Policy
	Production  float64
	Consumption float64

	cfg UnitConfig
}

// UnitResult is what one unit did in a step.
type UnitResult struct {
	Index       int     `json:"index"`
	Production  float64 `json:"production"`
	Consumption float64 `json:"consumption"`
	// BatteryAction is the validated grid-side battery action.
	BatteryAction float64 `json:"battery_action"`
	EnergyChange  float64 `json:"energy_change"`
	GridEnergy    float64 `json:"grid_energy"`
	// NetExchange is consumption - production + grid-side battery draw. Positive buys from the grid.
	NetExchange  float64 `json:"net_exchange"`
	BatteryLevel float64 `json:"battery_level"`
	OK           bool    `json:"ok"`
}

// Response aggregates every unit in index order.
type Response struct {
	Production     float64      `json:"production"`
	Consumption    float64      `json:"consumption"`
	PCSDemand      float64      `json:"pcs_demand"`
	BatteryLevels  []float64    `json:"battery_levels"`
	BatteryActions []float64    `json:"battery_actions"`
	NetExchanges   []float64    `json:"net_exchanges"`
	Units          []UnitResult `json:"units"`
}

// Simulator is an index-addressed arena of PCS units.
type Simulator struct {
	cfg   Config
	units []Unit
	log   logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger) (*Simulator, error) {
	if len(cfg.Units) == 0 {
		return nil, model.NewConfigError("pcs.units", "at least one unit is required")
	}
	if cfg.ScaleMax <= 0 {
		cfg.ScaleMax = 1
	}
	log = logging.OrDiscard(log)

	s := &Simulator{cfg: cfg, log: log, units: make([]Unit, len(cfg.Units))}
	for i, uc := range cfg.Units {
		bm, err := model.NewBatteryManager(uc.Battery, log.WithField("unit", i))
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		s.units[i] = Unit{Battery: bm, cfg: uc}
	}
	log.WithField("units", len(s.units)).Info("pcs simulator initialized")
	return s, nil
}

func (s *Simulator) Len() int { return len(s.units) }

func (s *Simulator) MultiAction() bool { return s.cfg.MultiAction }

// ActionSpace is the per-unit action space.
func (s *Simulator) ActionSpace(idx int) model.Box {
	p := s.cfg.Units[0].Battery
	if idx >= 0 && idx < len(s.units) {
		p = s.units[idx].cfg.Battery
	}
	box := model.Box{Low: []float64{-p.DischargeRateMax}, High: []float64{p.ChargeRateMax}}
	if s.cfg.MultiAction {
		box = box.Concat(model.UniformBox(2, 0, s.cfg.ScaleMax))
	}
	return box
}

// Unit returns the unit at idx, or nil and an error log when out of range.
func (s *Simulator) Unit(idx int) *Unit {
	if idx < 0 || idx >= len(s.units) {
		s.log.WithFields(logrus.Fields{"index": idx, "units": len(s.units)}).Error("pcs unit index out of range")
		return nil
	}
	return &s.units[idx]
}

// SetTrainedAgent attaches a policy to unit idx. It reports false for a bad index.
func (s *Simulator) SetTrainedAgent(idx int, p strategy.Policy) bool {
	u := s.Unit(idx)
	if u == nil {
		return false
	}
	u.Policy = p
	s.log.WithFields(logrus.Fields{"index": idx, "policy": strategy.NameOf(p)}).Info("pcs trained agent set")
	return true
}

// Observation builds [battery_level, time, buy_price, sell_price] for unit idx.
func (s *Simulator) Observation(idx int, snap model.Snapshot) []float64 {
	u := s.Unit(idx)
	if u == nil {
		return make([]float64, 4)
	}
	return []float64{u.Battery.Level(), snap.CurrentTime, snap.ISOBuyPrice, snap.ISOSellPrice}
}

// SimulateResponse steps every unit in index order. Units present in actions use
// that action; the rest ask their trained agent or the default heuristic.
func (s *Simulator) SimulateResponse(snap model.Snapshot, actions map[int][]float64) Response {
	for idx := range actions {
		if idx < 0 || idx >= len(s.units) {
			s.log.WithFields(logrus.Fields{"index": idx, "units": len(s.units)}).Error("action for unknown pcs unit ignored")
		}
	}

	resp := Response{
		BatteryLevels:  make([]float64, len(s.units)),
		BatteryActions: make([]float64, len(s.units)),
		NetExchanges:   make([]float64, len(s.units)),
		Units:          make([]UnitResult, len(s.units)),
	}
	for i := range s.units {
		action, ok := actions[i]
		if !ok {
			action = s.decide(i, snap)
		}
		r := s.step(i, snap, action)

		resp.Production += r.Production
		resp.Consumption += r.Consumption
		resp.PCSDemand += r.NetExchange
		resp.BatteryLevels[i] = r.BatteryLevel
		resp.BatteryActions[i] = r.BatteryAction
		resp.NetExchanges[i] = r.NetExchange
		resp.Units[i] = r
	}

	s.log.WithFields(logrus.Fields{
		"pcs_demand":  resp.PCSDemand,
		"production":  resp.Production,
		"consumption": resp.Consumption,
	}).Debug("pcs response")
	return resp
}

// UnitResponse steps a single unit. A nil action asks the unit's policy.
// An out-of-range index logs an error and returns a zero result with OK=false.
func (s *Simulator) UnitResponse(idx int, snap model.Snapshot, action []float64) UnitResult {
	if s.Unit(idx) == nil {
		return UnitResult{Index: idx}
	}
	if action == nil {
		action = s.decide(idx, snap)
	}
	return s.step(idx, snap, action)
}

// Reset restores every battery and clears readings. Trained agents stay attached.
func (s *Simulator) Reset() {
	for i := range s.units {
		s.units[i].Battery.Reset(nil)
		s.units[i].Production = 0
		s.units[i].Consumption = 0
	}
}

func (s *Simulator) decide(idx int, snap model.Snapshot) []float64 {
	u := &s.units[idx]
	fallback := strategy.ChargeMax{Rate: u.cfg.Battery.ChargeRateMax}
	if u.Policy == nil {
		a, _ := fallback.Predict(nil, true)
		return a
	}
	a, err := u.Policy.Predict(s.Observation(idx, snap), true)
	if err != nil || len(a) == 0 {
		s.log.WithFields(logrus.Fields{"index": idx, "error": err}).Warn("pcs policy failed, using default heuristic")
		a, _ = fallback.Predict(nil, true)
	}
	return a
}

func (s *Simulator) step(idx int, snap model.Snapshot, action []float64) UnitResult {
	u := &s.units[idx]

	raw := 0.0
	if len(action) == 0 {
		s.log.WithField("index", idx).Warn("empty pcs action, using 0")
	} else {
		raw = action[0]
	}

	production := u.cfg.Production.At(snap.CurrentTime)
	consumption := u.cfg.Consumption.At(snap.CurrentTime)
	if s.cfg.MultiAction {
		consumption *= s.scale(action, 1)
		production *= s.scale(action, 2)
	}

	validated := u.Battery.ValidateAction(raw)
	delta := u.Battery.Update(validated)
	grid := u.Battery.GridEnergy(delta)

	u.Production = production
	u.Consumption = consumption

	return UnitResult{
		Index:         idx,
		Production:    production,
		Consumption:   consumption,
		BatteryAction: validated,
		EnergyChange:  delta,
		GridEnergy:    grid,
		NetExchange:   consumption - production + grid,
		BatteryLevel:  u.Battery.Level(),
		OK:            true,
	}
}

// scale reads a multi-action multiplier; a missing value leaves the reading unchanged.
func (s *Simulator) scale(action []float64, i int) float64 {
	if i >= len(action) || math.IsNaN(action[i]) {
		return 1
	}
	return math.Max(0, math.Min(s.cfg.ScaleMax, action[i]))
}
