package strategy

import (
	"fmt"
	"math"
	"strings"
)

// ScheduleParams implements a simple daily time-window policy:
// - Charge during [ChargeStart, ChargeEnd)
// - Discharge during [DischargeStart, DischargeEnd)
// - Otherwise idle
//
// Times are "HH:MM" and compared against the day fraction found at obs[TimeIndex].
type ScheduleParams struct {
	ChargeStart    string  `json:"charge_start" yaml:"charge_start"`
	ChargeEnd      string  `json:"charge_end,omitempty" yaml:"charge_end,omitempty"` // default = DischargeStart
	DischargeStart string  `json:"discharge_start" yaml:"discharge_start"`
	DischargeEnd   string  `json:"discharge_end,omitempty" yaml:"discharge_end,omitempty"` // default = DischargeStart => zero-length
	ChargeRate     float64 `json:"charge_rate" yaml:"charge_rate"`
	DischargeRate  float64 `json:"discharge_rate" yaml:"discharge_rate"`
	// TimeIndex is 1 for PCS observations [level, time, buy, sell].
	TimeIndex int `json:"time_index" yaml:"time_index"`
}

type Schedule struct {
	Params ScheduleParams

	csMins int
	ceMins int
	dsMins int
	deMins int
}

func NewSchedule(p ScheduleParams) (*Schedule, error) {
	cs, err := parseHHMM(p.ChargeStart)
	if err != nil {
		return nil, err
	}
	ds, err := parseHHMM(p.DischargeStart)
	if err != nil {
		return nil, err
	}
	ce := ds
	if strings.TrimSpace(p.ChargeEnd) != "" {
		if ce, err = parseHHMM(p.ChargeEnd); err != nil {
			return nil, err
		}
	}
	de := ds
	if strings.TrimSpace(p.DischargeEnd) != "" {
		if de, err = parseHHMM(p.DischargeEnd); err != nil {
			return nil, err
		}
	}
	if p.TimeIndex < 0 {
		return nil, fmt.Errorf("schedule: time_index must be >= 0")
	}
	return &Schedule{Params: p, csMins: cs, ceMins: ce, dsMins: ds, deMins: de}, nil
}

func (s *Schedule) Name() string { return "schedule" }

func (s *Schedule) Predict(obs []float64, _ bool) ([]float64, error) {
	if s.Params.TimeIndex >= len(obs) {
		return nil, fmt.Errorf("schedule: observation has %d values, time index is %d", len(obs), s.Params.TimeIndex)
	}
	mins := dayMinutes(obs[s.Params.TimeIndex])

	if inWindow(mins, s.csMins, s.ceMins) {
		return []float64{math.Abs(s.Params.ChargeRate)}, nil
	}
	if inWindow(mins, s.dsMins, s.deMins) {
		return []float64{-math.Abs(s.Params.DischargeRate)}, nil
	}
	return []float64{0}, nil
}

// dayMinutes maps a day fraction to minutes since midnight.
func dayMinutes(t float64) int {
	t = math.Mod(t, 1)
	if t < 0 {
		t++
	}
	m := int(math.Floor(t*24*60 + 1e-9))
	if m >= 24*60 {
		m = 24*60 - 1
	}
	return m
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0], "%d", &h); err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &m); err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

// inWindow checks whether tMins is in [start, end) on a 24h clock.
// If start == end, the window is empty (always false).
// If start > end, it wraps across midnight.
func inWindow(tMins, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return tMins >= start && tMins < end
	}
	// wrap
	return tMins >= start || tMins < end
}
