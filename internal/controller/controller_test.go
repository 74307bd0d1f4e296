package controller

import (
	"errors"
	"testing"

	"energy-net/internal/market"
	"energy-net/internal/model"
	"energy-net/internal/pcs"
	"energy-net/internal/pricing"
	"energy-net/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Time:          TimeConfig{StepDuration: 30, MaxSteps: 48},
		DemandPattern: market.DemandSinusoidal,
		Demand:        market.DemandConfig{BaseLoad: 100, Amplitude: 20},
		CostType:      market.CostConstant,
		Cost:          market.CostConfig{ReservePrice: 50, DispatchPrice: 10},
		PricingPolicy: pricing.PolicyOnline,
		Pricing: pricing.Config{
			MinPrice:  0,
			MaxPrice:  100,
			BuyPrice:  pricing.Bounds{Min: 0, Max: 100},
			SellPrice: pricing.Bounds{Min: 0, Max: 100},
			BuyCoefficients: pricing.CoefficientBounds{
				High: [3]float64{10, 10, 100},
			},
			SellCoefficients: pricing.CoefficientBounds{
				High: [3]float64{10, 10, 100},
			},
			Dispatch: pricing.DispatchConfig{Bounds: pricing.Bounds{Min: 0, Max: 500}},
		},
		PCS: pcs.Config{Units: []pcs.UnitConfig{{
			Battery: model.BatteryParams{
				Min: 0, Max: 100, Init: 50,
				ChargeRateMax: 5, DischargeRateMax: 5,
				ChargeEfficiency: 0.9, DischargeEfficiency: 0.9,
			},
			Production:  pcs.Profile{Base: 1},
			Consumption: pcs.Profile{Base: 2},
		}}},
		Seed: 7,
	}
}

func newController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := New(cfg, nil)
	require.NoError(t, err)
	return c
}

func TestOnlinePricesWithFlatZeroDemand(t *testing.T) {
	cfg := testConfig()
	cfg.Demand = market.DemandConfig{}
	c := newController(t, cfg)

	d, err := c.StepISO([]float64{0.10, 0.08})
	require.NoError(t, err)
	assert.InDelta(t, 0.10, d.BuyPrice, 1e-12)
	assert.InDelta(t, 0.08, d.SellPrice, 1e-12)
	assert.Equal(t, c.State().PredictedDemand, d.Dispatch)
	assert.Equal(t, 0.0, d.Dispatch)
}

func TestFullEpisodeTruncatesAtHorizon(t *testing.T) {
	c := newController(t, testConfig())

	var bought, sold float64
	for i := 1; i <= 48; i++ {
		res, err := c.Step([]float64{40, 30}, []float64{-5})
		require.NoError(t, err)
		assert.False(t, res.Terminated)
		if i < 48 {
			require.False(t, res.Truncated, "truncated early at step %d", i)
		} else {
			assert.True(t, res.Truncated)
		}
		if res.Info.PCSDemand > 0 {
			bought += res.Info.PCSDemand
		} else {
			sold += -res.Info.PCSDemand
		}
		assert.GreaterOrEqual(t, c.State().CurrentTime, 0.0)
		assert.Less(t, c.State().CurrentTime, 1.0)
	}

	st := c.State()
	assert.Equal(t, 48, st.StepCount)
	assert.InDelta(t, bought, st.EnergyBought, 1e-9)
	assert.InDelta(t, sold, st.EnergySold, 1e-9)
	assert.Greater(t, st.EnergySold, 0.0)

	_, err := c.Step([]float64{40, 30}, []float64{-5})
	assert.ErrorIs(t, err, ErrEpisodeOver)

	sum := c.PCSMetrics().Summary()
	assert.Equal(t, 48, sum.Steps)
	assert.Equal(t, 48, c.ISOMetrics().Steps)
}

func TestRewardSignUnderShortfall(t *testing.T) {
	cfg := testConfig()
	cfg.DemandSigma = 5
	c := newController(t, cfg)

	shortfalls := 0
	for i := 0; i < 48; i++ {
		// Default PCS policy charges, so actual demand exceeds dispatch.
		res, err := c.Step([]float64{90, 10}, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Info.ReserveCost, 0.0)
		if res.Info.Shortfall > 0 {
			shortfalls++
			assert.LessOrEqual(t, res.ISOReward, 0.0)
		}
	}
	assert.Greater(t, shortfalls, 0)
}

func TestPhaseOrderIsEnforced(t *testing.T) {
	c := newController(t, testConfig())

	_, err := c.StepPCS([]float64{1})
	assert.ErrorIs(t, err, ErrPhaseOrder)

	assert.False(t, c.AwaitingPCS())
	_, err = c.StepISO([]float64{10, 10})
	require.NoError(t, err)
	assert.True(t, c.AwaitingPCS())
	_, err = c.StepISO([]float64{10, 10})
	assert.ErrorIs(t, err, ErrPhaseOrder)

	res, err := c.StepPCS([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Info.Step)
	assert.False(t, c.AwaitingPCS())
}

func TestDayAheadShapeErrorLeavesStateUntouched(t *testing.T) {
	cfg := testConfig()
	cfg.PricingPolicy = pricing.PolicyQuadratic
	c := newController(t, cfg)

	_, err := c.Step([]float64{1, 2}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConfiguration))
	assert.Equal(t, 0, c.State().StepCount)
	assert.False(t, c.FirstActionTaken())

	res, err := c.Step([]float64{0, 0, 5, 0, 0, 3}, nil)
	require.NoError(t, err)
	assert.True(t, c.FirstActionTaken())
	assert.InDelta(t, 5, res.Info.BuyPrice, 1e-12)

	res, err = c.Step([]float64{0, 0, 50, 0, 0, 30, 1, 1}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 5, res.Info.BuyPrice, 1e-12)
	assert.InDelta(t, 3, res.Info.SellPrice, 1e-12)
}

func TestRejectedDayAheadActionKeepsDemandStream(t *testing.T) {
	cfg := testConfig()
	cfg.PricingPolicy = pricing.PolicyQuadratic
	cfg.DemandPattern = market.DemandRandom
	cfg.Demand.NoiseScale = 10
	good := []float64{0, 0, 5, 0, 0, 3}

	clean := newController(t, cfg)
	want, err := clean.Step(good, nil)
	require.NoError(t, err)

	retried := newController(t, cfg)
	_, err = retried.Step([]float64{1, 2}, nil)
	require.ErrorIs(t, err, model.ErrConfiguration)
	got, err := retried.Step(good, nil)
	require.NoError(t, err)

	assert.Equal(t, want.Info.PredictedDemand, got.Info.PredictedDemand)
	assert.Equal(t, want.Info.RealizedDemand, got.Info.RealizedDemand)
	assert.Equal(t, clean.State().PredictedDemand, retried.State().PredictedDemand)
}

func TestResetReplaysSeededEpisode(t *testing.T) {
	cfg := testConfig()
	cfg.DemandSigma = 3
	c := newController(t, cfg)

	run := func() []float64 {
		var out []float64
		for i := 0; i < 10; i++ {
			res, err := c.Step([]float64{20, 10}, []float64{1})
			require.NoError(t, err)
			out = append(out, res.Info.RealizedDemand)
		}
		return out
	}
	first := run()
	c.Reset(nil)
	second := run()
	assert.Equal(t, first, second)

	seed := uint64(99)
	c.Reset(&seed)
	assert.NotEqual(t, first, run())
}

func TestObservationsAndSpaces(t *testing.T) {
	c := newController(t, testConfig())
	iso, pcsObs := c.Reset(nil)
	assert.Len(t, iso, 3)
	assert.Len(t, pcsObs, 4)
	assert.Equal(t, 50.0, pcsObs[0])

	res, err := c.Step([]float64{30, 20}, []float64{5})
	require.NoError(t, err)
	assert.InDelta(t, 1.0/48, res.ISOObservation[0], 1e-12)
	assert.Equal(t, res.Info.PCSDemand, res.ISOObservation[2])
	assert.Equal(t, []float64{c.PCS().Unit(0).Battery.Level(), 1.0 / 48, 30, 20}, res.PCSObservation)

	assert.Equal(t, 2, c.ISOActionSpace().Dim())
	assert.Equal(t, 1, c.PCSActionSpace().Dim())
	assert.Equal(t, 3, c.ISOObservationSpace().Dim())
	assert.Equal(t, 4, c.PCSObservationSpace().Dim())
}

func TestPriceHistoryAndAverage(t *testing.T) {
	c := newController(t, testConfig())
	for _, p := range []float64{10, 20, 30} {
		_, err := c.Step([]float64{p, 5}, []float64{0})
		require.NoError(t, err)
	}
	assert.Equal(t, []float64{10, 20, 30}, c.PriceHistory())
	assert.InDelta(t, 20, c.AverageBuyPrice(), 1e-12)
	assert.InDelta(t, 20, c.LastInfo().AverageBuyPrice, 1e-12)
}

func TestTrainedAgentDrivesUnitZeroWithoutAction(t *testing.T) {
	c := newController(t, testConfig())
	require.True(t, c.PCS().SetTrainedAgent(0, strategy.Constant{Action: []float64{-2}}))

	res, err := c.Step([]float64{30, 20}, nil)
	require.NoError(t, err)
	assert.InDelta(t, -2, res.Info.BatteryActions[0], 1e-9)
}

func TestNewRejectsBadTime(t *testing.T) {
	cfg := testConfig()
	cfg.Time.StepDuration = 0
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
