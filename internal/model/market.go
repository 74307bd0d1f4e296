package model

// MarketState is the shared grid state of one episode. The controller is its only writer;
// it is created at reset and mutated exactly once per step.
type MarketState struct {
	// CurrentTime is the fraction of the day in [0, 1).
	CurrentTime float64 `json:"current_time"`

	PredictedDemand float64 `json:"predicted_demand"`
	// RealizedDemand is the predicted demand plus forecast error.
	RealizedDemand float64 `json:"realized_demand"`
	// ActualDemand is the realized demand plus the PCS net demand.
	ActualDemand float64 `json:"actual_demand"`
	PCSDemand    float64 `json:"pcs_demand"`

	ISOBuyPrice  float64 `json:"iso_buy_price"`
	ISOSellPrice float64 `json:"iso_sell_price"`
	Dispatch     float64 `json:"dispatch"`

	ReservePrice  float64 `json:"reserve_price"`
	DispatchPrice float64 `json:"dispatch_price"`

	Production  float64 `json:"production"`
	Consumption float64 `json:"consumption"`

	// Cumulative over the episode.
	EnergyBought float64 `json:"energy_bought"`
	EnergySold   float64 `json:"energy_sold"`

	StepCount  int  `json:"step_count"`
	Terminated bool `json:"terminated"`
	Truncated  bool `json:"truncated"`
}

// Snapshot is the subset of market state a PCS unit reacts to.
type Snapshot struct {
	CurrentTime  float64
	ISOBuyPrice  float64
	ISOSellPrice float64
}

func (s MarketState) Snapshot() Snapshot {
	return Snapshot{
		CurrentTime:  s.CurrentTime,
		ISOBuyPrice:  s.ISOBuyPrice,
		ISOSellPrice: s.ISOSellPrice,
	}
}
