package model

import (
	"math"

	"energy-net/internal/logging"

	"github.com/sirupsen/logrus"
)

// Tolerance used when deciding whether an action crosses a battery bound.
const batteryEpsilon = 1e-6

// nearMinFraction is the share of usable capacity treated as "near empty".
// Discharges requested inside this band are scaled down proportionally.
const nearMinFraction = 0.01

// BatteryParams defines the physical parameters of a PCS battery.
// Units:
// - Min, Max, Init: MWh
// - ChargeRateMax, DischargeRateMax: MWh per step
// - Efficiencies: (0, 1]
// - LifetimeConstant: dimensionless, informational
type BatteryParams struct {
	Min                 float64
	Max                 float64
	Init                float64
	ChargeRateMax       float64
	DischargeRateMax    float64
	ChargeEfficiency    float64
	DischargeEfficiency float64
	LifetimeConstant    float64
}

func (p BatteryParams) Validate() error {
	if p.Max <= p.Min {
		return NewConfigError("battery.max", "must be > battery.min (min=%g max=%g)", p.Min, p.Max)
	}
	if p.Min < 0 {
		return NewConfigError("battery.min", "must be >= 0")
	}
	if p.Init < p.Min || p.Init > p.Max {
		return NewConfigError("battery.init", "must be within [min, max]")
	}
	if p.ChargeRateMax < 0 {
		return NewConfigError("battery.charge_rate_max", "must be >= 0")
	}
	if p.DischargeRateMax < 0 {
		return NewConfigError("battery.discharge_rate_max", "must be >= 0")
	}
	if p.ChargeEfficiency <= 0 || p.ChargeEfficiency > 1 {
		return NewConfigError("battery.charge_efficiency", "must be in (0, 1]")
	}
	if p.DischargeEfficiency <= 0 || p.DischargeEfficiency > 1 {
		return NewConfigError("battery.discharge_efficiency", "must be in (0, 1]")
	}
	return nil
}

// Capacity is the usable span between the bounds.
func (p BatteryParams) Capacity() float64 { return p.Max - p.Min }

// BatteryState captures the mutable part of a battery.
type BatteryState struct {
	Level         float64
	PreviousLevel float64
	// EnergyChange is the signed level delta of the last update (positive = charge).
	EnergyChange float64
	Step         int
}

// BatterySnapshot is the read-only view reported to metrics and info dicts.
type BatterySnapshot struct {
	Level             float64 `json:"battery_level"`
	EnergyChange      float64 `json:"energy_change"`
	AvailableCapacity float64 `json:"available_capacity"`
	UsedCapacityRatio float64 `json:"used_capacity_ratio"`
	PreviousLevel     float64 `json:"previous_level"`
}

// BatteryManager owns one battery. Actions are grid-side energy per step:
// positive charges, negative discharges. Infeasible actions are clamped, never rejected.
type BatteryManager struct {
	Params BatteryParams
	State  BatteryState

	log logrus.FieldLogger
}

func NewBatteryManager(params BatteryParams, log logrus.FieldLogger) (*BatteryManager, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	m := &BatteryManager{
		Params: params,
		State: BatteryState{
			Level:         params.Init,
			PreviousLevel: params.Init,
		},
		log: logging.OrDiscard(log),
	}
	m.log.WithFields(logrus.Fields{"min": params.Min, "max": params.Max}).Debug("battery manager initialized")
	return m, nil
}

// Level returns the current stored energy.
func (m *BatteryManager) Level() float64 { return m.State.Level }

// CalculateEnergyChange computes the level delta and resulting level for action
// without mutating the battery.
func (m *BatteryManager) CalculateEnergyChange(action float64) (energyChange, newLevel float64) {
	p := m.Params
	level := m.State.Level

	switch {
	case action > 0:
		added := math.Min(action, p.ChargeRateMax)
		space := math.Max(0, (p.Max-level)/p.ChargeEfficiency)
		energyChange = math.Min(added, space) * p.ChargeEfficiency
	case action < 0:
		removed := math.Min(-action, p.DischargeRateMax)
		deliverable := math.Max(0, (level-p.Min)*p.DischargeEfficiency)
		energyChange = -math.Min(removed, deliverable) / p.DischargeEfficiency
	}

	newLevel = clamp(level+energyChange, p.Min, p.Max)
	energyChange = newLevel - level

	m.log.WithFields(logrus.Fields{
		"action":        action,
		"energy_change": energyChange,
		"new_level":     newLevel,
	}).Debug("battery energy change")
	return energyChange, newLevel
}

// Update applies action and returns the realized level delta.
func (m *BatteryManager) Update(action float64) float64 {
	energyChange, newLevel := m.CalculateEnergyChange(action)

	m.State.PreviousLevel = m.State.Level
	m.State.Level = newLevel
	m.State.EnergyChange = energyChange
	m.State.Step++

	m.log.WithFields(logrus.Fields{
		"from":  m.State.PreviousLevel,
		"to":    m.State.Level,
		"delta": energyChange,
	}).Debug("battery updated")
	return energyChange
}

// ValidateAction clamps a proposed action to what the battery can physically do now.
func (m *BatteryManager) ValidateAction(action float64) float64 {
	p := m.Params
	level := m.State.Level

	if math.IsNaN(action) || math.IsInf(action, 0) {
		m.log.WithField("action", action).Warn("non-finite battery action, using 0")
		return 0
	}

	var validated float64
	switch {
	case action > 0:
		maxCharge := math.Max(0, (p.Max-level)/p.ChargeEfficiency)
		validated = math.Min(action, math.Min(p.ChargeRateMax, maxCharge))
		if level+validated*p.ChargeEfficiency > p.Max+batteryEpsilon {
			validated = 0
		}
	case action < 0:
		headroom := level - p.Min
		maxDischarge := math.Min(p.DischargeRateMax, math.Max(0, headroom*p.DischargeEfficiency))
		requested := -action

		band := nearMinFraction * p.Capacity()
		if headroom < band && band > 0 {
			// Scale proportionally to how much of the near-empty band is left.
			requested *= math.Max(0, headroom) / band
			m.log.WithFields(logrus.Fields{
				"level":    level,
				"headroom": headroom,
				"scaled":   requested,
			}).Debug("battery near minimum, scaling discharge")
		}
		validated = -math.Min(requested, maxDischarge)
		if level+validated/p.DischargeEfficiency < p.Min-batteryEpsilon {
			validated = 0
		}
	default:
		return 0
	}

	if math.Abs(validated) < batteryEpsilon {
		validated = 0
	}
	if validated != action {
		m.log.WithFields(logrus.Fields{
			"action":    action,
			"validated": validated,
			"level":     level,
		}).Warn("battery action limited to feasible range")
	}
	return validated
}

// GridEnergy converts a level delta into the energy exchanged with the grid:
// charging draws more than it stores, discharging delivers less than it withdraws.
func (m *BatteryManager) GridEnergy(energyChange float64) float64 {
	switch {
	case energyChange > 0:
		return energyChange / m.Params.ChargeEfficiency
	case energyChange < 0:
		return energyChange * m.Params.DischargeEfficiency
	default:
		return 0
	}
}

func (m *BatteryManager) Snapshot() BatterySnapshot {
	ratio := 0.0
	if m.Params.Max > 0 {
		ratio = m.State.Level / m.Params.Max
	}
	return BatterySnapshot{
		Level:             m.State.Level,
		EnergyChange:      m.State.EnergyChange,
		AvailableCapacity: m.Params.Max - m.State.Level,
		UsedCapacityRatio: ratio,
		PreviousLevel:     m.State.PreviousLevel,
	}
}

// Reset restores the battery to level, or to Params.Init when level is nil.
func (m *BatteryManager) Reset(level *float64) {
	l := m.Params.Init
	if level != nil {
		l = clamp(*level, m.Params.Min, m.Params.Max)
	}
	m.State = BatteryState{Level: l, PreviousLevel: l}
	m.log.WithField("level", l).Debug("battery reset")
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
