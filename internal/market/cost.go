package market

import (
	"fmt"
	"math"
	"strings"
)

// CostType selects how reserve and dispatch prices evolve over the day.
type CostType string

const (
	CostConstant  CostType = "CONSTANT"
	CostVariable  CostType = "VARIABLE"
	CostTimeOfUse CostType = "TIME_OF_USE"
)

var CostTypes = []CostType{CostConstant, CostVariable, CostTimeOfUse}

func ParseCostType(s string) (CostType, error) {
	c := CostType(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CostConstant, CostVariable, CostTimeOfUse:
		return c, nil
	case "":
		return CostConstant, nil
	default:
		return "", fmt.Errorf("unsupported cost type %q", s)
	}
}

// CostConfig holds base prices ($/MWh) and the shape of their variation.
type CostConfig struct {
	ReservePrice  float64
	DispatchPrice float64

	// Variation is the relative swing used by VARIABLE (0.2 = +/-20%).
	Variation float64

	// Time-of-use multipliers and the peak window in hours [PeakStart, PeakEnd).
	PeakMultiplier     float64
	ShoulderMultiplier float64
	OffPeakMultiplier  float64
	PeakStartHour      int
	PeakEndHour        int
	OffPeakEndHour     int
}

func (c CostConfig) WithDefaults() CostConfig {
	if c.Variation == 0 {
		c.Variation = 0.2
	}
	if c.PeakMultiplier == 0 {
		c.PeakMultiplier = 1.5
	}
	if c.ShoulderMultiplier == 0 {
		c.ShoulderMultiplier = 1.0
	}
	if c.OffPeakMultiplier == 0 {
		c.OffPeakMultiplier = 0.7
	}
	if c.PeakStartHour == 0 && c.PeakEndHour == 0 {
		c.PeakStartHour, c.PeakEndHour = 17, 21
	}
	if c.OffPeakEndHour == 0 {
		c.OffPeakEndHour = 7
	}
	return c
}

// CalculateCosts returns the reserve and dispatch prices at time-of-day t.
func CalculateCosts(costType CostType, cfg CostConfig, t float64) (reservePrice, dispatchPrice float64) {
	cfg = cfg.WithDefaults()
	mult := 1.0
	switch costType {
	case CostConstant:
	case CostVariable:
		// Smooth swing peaking in the evening.
		mult = 1 + cfg.Variation*math.Sin(2*math.Pi*(wrapDay(t)-0.5))
	case CostTimeOfUse:
		mult = touMultiplier(Hour(t), cfg)
	}
	return math.Max(0, cfg.ReservePrice*mult), math.Max(0, cfg.DispatchPrice*mult)
}

// Hour converts a day fraction into the hour bucket [0, 23].
func Hour(t float64) int {
	h := int(math.Floor(wrapDay(t) * 24))
	if h > 23 {
		h = 23
	}
	return h
}

func touMultiplier(hour int, cfg CostConfig) float64 {
	switch {
	case inHourWindow(hour, cfg.PeakStartHour, cfg.PeakEndHour):
		return cfg.PeakMultiplier
	case hour < cfg.OffPeakEndHour:
		return cfg.OffPeakMultiplier
	default:
		return cfg.ShoulderMultiplier
	}
}

// inHourWindow checks whether hour is in [start, end) on a 24h clock,
// wrapping across midnight when start > end.
func inHourWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
