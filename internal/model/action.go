package model

// Action is a human-friendly operating mode for a timestep.
// Keep these values stable; they are intended for CSV output.
type Action string

const (
	ActionCharging    Action = "CHARGING"
	ActionIdle        Action = "IDLE"
	ActionDischarging Action = "DISCHARGING"
)

// ActionFromEnergyChange labels a battery level delta (positive = charge).
func ActionFromEnergyChange(energyChange float64) Action {
	switch {
	case energyChange > 0:
		return ActionCharging
	case energyChange < 0:
		return ActionDischarging
	default:
		return ActionIdle
	}
}

// Exchange labels the net grid position of a PCS (positive = buying).
type Exchange string

const (
	ExchangeBuying   Exchange = "BUYING"
	ExchangeBalanced Exchange = "BALANCED"
	ExchangeSelling  Exchange = "SELLING"
)

func ExchangeFromNet(net float64) Exchange {
	switch {
	case net > 0:
		return ExchangeBuying
	case net < 0:
		return ExchangeSelling
	default:
		return ExchangeBalanced
	}
}
