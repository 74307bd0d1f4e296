// Package controller runs the two-sided market: one authoritative timeline, the
// shared market state, and the reward accounting for both the ISO and the PCS.
package controller

import (
	"errors"
	"fmt"
	"math"

	"energy-net/internal/logging"
	"energy-net/internal/market"
	"energy-net/internal/model"
	"energy-net/internal/pcs"
	"energy-net/internal/pricing"
	"energy-net/internal/reward"

	"github.com/sirupsen/logrus"
)

var (
	// ErrEpisodeOver is returned when stepping a truncated episode before Reset.
	ErrEpisodeOver = errors.New("episode is over, call Reset")
	// ErrPhaseOrder is returned when StepISO and StepPCS are not called alternately.
	ErrPhaseOrder = errors.New("step phases out of order")
)

// TimeConfig defines the clock. Durations are in minutes.
type TimeConfig struct {
	StepDuration  float64
	MinutesPerDay float64
	MaxSteps      int
}

// Config is the fully resolved configuration of one controller.
type Config struct {
	Time TimeConfig

	DemandPattern market.DemandPattern
	Demand        market.DemandConfig
	// DemandSigma is the standard deviation of the forecast error on realized demand.
	DemandSigma float64

	CostType market.CostType
	Cost     market.CostConfig

	PricingPolicy     pricing.Policy
	Pricing           pricing.Config
	UseDispatchAction bool

	PCS pcs.Config

	ISOReward reward.Kind
	PCSReward reward.Kind

	Seed uint64
}

func (c Config) withDefaults() Config {
	if c.Time.MinutesPerDay <= 0 {
		c.Time.MinutesPerDay = 1440
	}
	if c.DemandPattern == "" {
		c.DemandPattern = market.DemandSinusoidal
	}
	if c.CostType == "" {
		c.CostType = market.CostConstant
	}
	if c.PricingPolicy == "" {
		c.PricingPolicy = pricing.PolicyOnline
	}
	if c.ISOReward == "" {
		c.ISOReward = reward.KindISO
	}
	if c.PCSReward == "" {
		c.PCSReward = reward.KindCost
	}
	if c.Pricing.Horizon == 0 {
		c.Pricing.Horizon = c.Time.MaxSteps
	}
	return c
}

func (c Config) validate() error {
	if c.Time.StepDuration <= 0 {
		return model.NewConfigError("environment.time.step_duration", "must be > 0")
	}
	if c.Time.MaxSteps <= 0 {
		return model.NewConfigError("environment.time.max_steps_per_episode", "must be > 0")
	}
	if c.DemandSigma < 0 {
		return model.NewConfigError("environment.demand.uncertainty_sigma", "must be >= 0")
	}
	if c.Pricing.Horizon != c.Time.MaxSteps {
		return model.NewConfigError("iso.dispatch_horizon", "must equal max_steps_per_episode (%d), got %d", c.Time.MaxSteps, c.Pricing.Horizon)
	}
	return nil
}

// StepResult is what a full step returns to the drivers of both agents.
type StepResult struct {
	ISOObservation []float64 `json:"iso_observation"`
	PCSObservation []float64 `json:"pcs_observation"`
	ISOReward      float64   `json:"iso_reward"`
	PCSReward      float64   `json:"pcs_reward"`
	Terminated     bool      `json:"terminated"`
	Truncated      bool      `json:"truncated"`
	Info           StepInfo  `json:"info"`
}

type phase int

const (
	phaseISO phase = iota // waiting for the ISO action
	phasePCS              // prices published, waiting for the PCS action
)

// Controller owns the market state and every battery. It is not safe for
// concurrent use; a step runs to completion before the next is accepted.
type Controller struct {
	cfg Config
	log logrus.FieldLogger

	pricing   pricing.Strategy
	demand    *market.DemandModel
	noise     *market.Uncertainty
	pcs       *pcs.Simulator
	isoReward reward.Calculator
	pcsReward reward.Calculator

	state            model.MarketState
	firstActionTaken bool
	phase            phase
	seed             uint64

	priceHistory []float64
	isoMetrics   ISOMetrics
	pcsMetrics   PCSMetrics
	last         StepInfo
}

func New(cfg Config, log logrus.FieldLogger) (*Controller, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log = logging.OrDiscard(log)

	strat, err := pricing.New(cfg.PricingPolicy, cfg.Pricing, log)
	if err != nil {
		return nil, err
	}
	sim, err := pcs.New(cfg.PCS, log.WithField("component", "pcs"))
	if err != nil {
		return nil, err
	}
	isoReward, err := reward.New(cfg.ISOReward)
	if err != nil {
		return nil, err
	}
	pcsReward, err := reward.New(cfg.PCSReward)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:       cfg,
		log:       log,
		pricing:   strat,
		demand:    market.NewDemandModel(cfg.DemandPattern, cfg.Demand, cfg.Seed),
		noise:     market.NewUncertainty(cfg.DemandSigma, cfg.Seed+1),
		pcs:       sim,
		isoReward: isoReward,
		pcsReward: pcsReward,
	}
	c.Reset(&cfg.Seed)

	log.WithFields(logrus.Fields{
		"pricing":   cfg.PricingPolicy,
		"demand":    cfg.DemandPattern,
		"cost":      cfg.CostType,
		"max_steps": cfg.Time.MaxSteps,
		"pcs_units": sim.Len(),
	}).Info("controller initialized")
	return c, nil
}

// Reset starts a new episode. A nil seed keeps the previous seed, so repeated
// resets replay the same demand noise.
func (c *Controller) Reset(seed *uint64) (isoObs, pcsObs []float64) {
	if seed != nil {
		c.seed = *seed
	}
	c.demand.Seed(c.seed)
	c.noise.Seed(c.seed + 1)
	c.pricing.Reset()
	c.pcs.Reset()

	c.state = model.MarketState{}
	c.state.PredictedDemand = c.demand.Predict(0)
	c.state.RealizedDemand = c.state.PredictedDemand
	c.state.ActualDemand = c.state.PredictedDemand
	c.state.Dispatch = c.state.PredictedDemand
	c.state.ReservePrice, c.state.DispatchPrice = market.CalculateCosts(c.cfg.CostType, c.cfg.Cost, 0)

	c.firstActionTaken = false
	c.phase = phaseISO
	c.priceHistory = c.priceHistory[:0]
	c.isoMetrics = ISOMetrics{}
	c.pcsMetrics = PCSMetrics{}
	c.last = StepInfo{}

	c.log.WithField("seed", c.seed).Debug("episode reset")
	return c.ISOObservation(), c.PCSObservation()
}

// StepISO runs the clock advance, demand forecast and pricing phase for the next step.
// A malformed day-ahead action returns a ConfigError and leaves the state untouched.
func (c *Controller) StepISO(action []float64) (pricing.Decision, error) {
	if c.state.Truncated || c.state.Terminated {
		return pricing.Decision{}, ErrEpisodeOver
	}
	if c.phase != phaseISO {
		return pricing.Decision{}, fmt.Errorf("%w: ISO action while waiting for PCS", ErrPhaseOrder)
	}

	stepIndex := c.state.StepCount
	t := c.timeAt(stepIndex + 1)
	mark := c.demand.Mark()
	predicted := c.demand.Predict(t)

	decision, first, err := c.pricing.ProcessAction(action, stepIndex, c.firstActionTaken, predicted, c.cfg.UseDispatchAction)
	if err != nil {
		c.demand.Rewind(mark)
		c.log.WithError(err).WithField("step", stepIndex).Error("iso action rejected")
		return pricing.Decision{}, err
	}

	c.firstActionTaken = first
	c.state.CurrentTime = t
	c.state.PredictedDemand = predicted
	c.state.ISOBuyPrice = decision.BuyPrice
	c.state.ISOSellPrice = decision.SellPrice
	c.state.Dispatch = decision.Dispatch
	c.state.ReservePrice, c.state.DispatchPrice = market.CalculateCosts(c.cfg.CostType, c.cfg.Cost, t)
	c.priceHistory = append(c.priceHistory, decision.BuyPrice)
	c.phase = phasePCS

	c.log.WithFields(logrus.Fields{
		"step":      stepIndex,
		"time":      t,
		"predicted": predicted,
		"buy":       decision.BuyPrice,
		"sell":      decision.SellPrice,
		"dispatch":  decision.Dispatch,
	}).Debug("iso phase")
	return decision, nil
}

// StepPCS applies the PCS action to unit 0 (nil lets unit 0's own policy act),
// settles the step and computes rewards.
func (c *Controller) StepPCS(action []float64) (StepResult, error) {
	if c.state.Truncated || c.state.Terminated {
		return StepResult{}, ErrEpisodeOver
	}
	if c.phase != phasePCS {
		return StepResult{}, fmt.Errorf("%w: PCS action before ISO prices", ErrPhaseOrder)
	}

	var actions map[int][]float64
	if action != nil {
		actions = map[int][]float64{0: action}
	}
	resp := c.pcs.SimulateResponse(c.state.Snapshot(), actions)

	s := &c.state
	s.PCSDemand = resp.PCSDemand
	s.Production = resp.Production
	s.Consumption = resp.Consumption
	if resp.PCSDemand > 0 {
		s.EnergyBought += resp.PCSDemand
	} else {
		s.EnergySold += -resp.PCSDemand
	}

	realized := math.Max(0, s.PredictedDemand+c.noise.Noise())
	settle := market.Settle(realized, resp.PCSDemand, s.Dispatch, s.ReservePrice, s.DispatchPrice)
	s.RealizedDemand = settle.RealizedDemand
	s.ActualDemand = settle.ActualDemand

	rinfo := reward.Info{
		BuyPrice:     s.ISOBuyPrice,
		SellPrice:    s.ISOSellPrice,
		PCSDemand:    resp.PCSDemand,
		Shortfall:    settle.Shortfall,
		ReserveCost:  settle.ReserveCost,
		DispatchCost: settle.DispatchCost,
	}
	isoR := c.isoReward.Compute(rinfo)
	pcsR := c.pcsReward.Compute(rinfo)

	s.StepCount++
	s.Truncated = s.StepCount >= c.cfg.Time.MaxSteps
	c.phase = phaseISO

	info := StepInfo{
		Step:            s.StepCount,
		Time:            s.CurrentTime,
		PredictedDemand: s.PredictedDemand,
		RealizedDemand:  s.RealizedDemand,
		ActualDemand:    s.ActualDemand,
		PCSDemand:       s.PCSDemand,
		BuyPrice:        s.ISOBuyPrice,
		SellPrice:       s.ISOSellPrice,
		Dispatch:        s.Dispatch,
		ReservePrice:    s.ReservePrice,
		DispatchPrice:   s.DispatchPrice,
		Shortfall:       settle.Shortfall,
		ReserveCost:     settle.ReserveCost,
		DispatchCost:    settle.DispatchCost,
		TotalCost:       settle.TotalCost,
		Utilization:     settle.Utilization,
		PCSPayment:      rinfo.PCSPayment(),
		Production:      resp.Production,
		Consumption:     resp.Consumption,
		BatteryLevels:   resp.BatteryLevels,
		BatteryActions:  resp.BatteryActions,
		NetExchanges:    resp.NetExchanges,
		EnergyBought:    s.EnergyBought,
		EnergySold:      s.EnergySold,
		ISOReward:       isoR,
		PCSReward:       pcsR,
		AverageBuyPrice: c.AverageBuyPrice(),
	}
	c.isoMetrics.Record(info)
	c.pcsMetrics.Record(info)
	c.last = info

	c.log.WithFields(logrus.Fields{
		"step":       s.StepCount,
		"pcs_demand": s.PCSDemand,
		"shortfall":  settle.Shortfall,
		"iso_reward": isoR,
		"pcs_reward": pcsR,
	}).Debug("pcs phase settled")
	if s.Truncated {
		c.log.WithFields(logrus.Fields{
			"steps":         s.StepCount,
			"energy_bought": s.EnergyBought,
			"energy_sold":   s.EnergySold,
		}).Info("episode truncated")
	}

	return StepResult{
		ISOObservation: c.ISOObservation(),
		PCSObservation: c.PCSObservation(),
		ISOReward:      isoR,
		PCSReward:      pcsR,
		Terminated:     s.Terminated,
		Truncated:      s.Truncated,
		Info:           info,
	}, nil
}

// Step runs both phases.
func (c *Controller) Step(isoAction, pcsAction []float64) (StepResult, error) {
	if _, err := c.StepISO(isoAction); err != nil {
		return StepResult{}, err
	}
	return c.StepPCS(pcsAction)
}

// ISOObservation is [time, predicted_demand, pcs_demand].
func (c *Controller) ISOObservation() []float64 {
	return []float64{c.state.CurrentTime, c.state.PredictedDemand, c.state.PCSDemand}
}

// PCSObservation is [battery_level, time, buy_price, sell_price] for unit 0.
func (c *Controller) PCSObservation() []float64 {
	return c.pcs.Observation(0, c.state.Snapshot())
}

func (c *Controller) ISOActionSpace() model.Box {
	return c.pricing.ActionSpace(c.cfg.UseDispatchAction)
}

func (c *Controller) PCSActionSpace() model.Box { return c.pcs.ActionSpace(0) }

// ISOObservationSpace bounds [time, predicted_demand, pcs_demand].
func (c *Controller) ISOObservationSpace() model.Box {
	inf := math.Inf(1)
	return model.Box{Low: []float64{0, 0, -inf}, High: []float64{1, inf, inf}}
}

// PCSObservationSpace bounds [battery_level, time, buy_price, sell_price].
func (c *Controller) PCSObservationSpace() model.Box {
	b := c.cfg.PCS.Units[0].Battery
	p := c.cfg.Pricing
	return model.Box{
		Low:  []float64{b.Min, 0, p.MinPrice, p.MinPrice},
		High: []float64{b.Max, 1, p.MaxPrice, p.MaxPrice},
	}
}

// State returns a copy of the market state.
func (c *Controller) State() model.MarketState { return c.state }

func (c *Controller) Config() Config { return c.cfg }

// PCS exposes the unit arena, e.g. to attach trained agents.
func (c *Controller) PCS() *pcs.Simulator { return c.pcs }

func (c *Controller) Pricing() pricing.Strategy { return c.pricing }

// AwaitingPCS reports whether prices for the current step are published and the PCS action is due.
func (c *Controller) AwaitingPCS() bool { return c.phase == phasePCS }

// FirstActionTaken reports whether the day-ahead action was accepted this episode.
func (c *Controller) FirstActionTaken() bool { return c.firstActionTaken }

// PriceHistory returns the buy prices published so far this episode.
func (c *Controller) PriceHistory() []float64 {
	return append([]float64(nil), c.priceHistory...)
}

// AverageBuyPrice is the running mean of published buy prices.
func (c *Controller) AverageBuyPrice() float64 {
	if len(c.priceHistory) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range c.priceHistory {
		sum += p
	}
	return sum / float64(len(c.priceHistory))
}

func (c *Controller) LastInfo() StepInfo { return c.last }

func (c *Controller) ISOMetrics() ISOMetrics { return c.isoMetrics }

func (c *Controller) PCSMetrics() *PCSMetrics { return &c.pcsMetrics }

// timeAt is the day fraction after count steps.
func (c *Controller) timeAt(count int) float64 {
	return math.Mod(float64(count)*c.cfg.Time.StepDuration/c.cfg.Time.MinutesPerDay, 1)
}
