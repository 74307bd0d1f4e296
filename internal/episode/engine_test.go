package episode

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"energy-net/internal/controller"
	"energy-net/internal/market"
	"energy-net/internal/model"
	"energy-net/internal/pcs"
	"energy-net/internal/pricing"
	"energy-net/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() controller.Config {
	return controller.Config{
		Time:   controller.TimeConfig{StepDuration: 60, MaxSteps: 24},
		Demand: market.DemandConfig{BaseLoad: 50, Amplitude: 10},
		Cost:   market.CostConfig{ReservePrice: 30, DispatchPrice: 5},
		Pricing: pricing.Config{
			MaxPrice:  100,
			BuyPrice:  pricing.Bounds{Min: 0, Max: 100},
			SellPrice: pricing.Bounds{Min: 0, Max: 100},
			Dispatch:  pricing.DispatchConfig{Bounds: pricing.Bounds{Max: 200}},
		},
		PCS: pcs.Config{Units: []pcs.UnitConfig{{
			Battery: model.BatteryParams{
				Min: 0, Max: 20, Init: 10,
				ChargeRateMax: 4, DischargeRateMax: 4,
				ChargeEfficiency: 1, DischargeEfficiency: 1,
			},
		}}},
		Seed: 3,
	}
}

func newController(t *testing.T) *controller.Controller {
	t.Helper()
	c, err := controller.New(testConfig(), nil)
	require.NoError(t, err)
	return c
}

var flatPrices = strategy.Constant{Action: []float64{30, 10}}

func TestRunChargingEpisode(t *testing.T) {
	e := New(nil)
	var hooked int
	res, err := e.Run(context.Background(), newController(t), flatPrices, strategy.Constant{Action: []float64{1}}, nil, func(LedgerRow) error {
		hooked++
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 24, res.Steps)
	assert.Len(t, res.Ledger, 24)
	assert.Equal(t, 24, hooked)

	first := res.Ledger[0]
	assert.Equal(t, 1, first.Step)
	assert.Equal(t, "01:00", first.Clock)
	assert.Equal(t, 10.0, first.LevelStart)
	assert.InDelta(t, 11, first.LevelEnd, 1e-9)
	assert.Equal(t, model.ActionCharging, first.Action)
	assert.Equal(t, model.ExchangeBuying, first.Exchange)
	assert.InDelta(t, -30, first.PCSReward, 1e-9)

	// Full after ten steps, idle afterwards.
	last := res.Ledger[23]
	assert.InDelta(t, 20, last.LevelEnd, 1e-9)
	assert.Equal(t, model.ActionIdle, last.Action)
	assert.InDelta(t, -300, res.TotalPCSReward, 1e-9)
	assert.InDelta(t, 10, res.EnergyBought, 1e-9)
	assert.Equal(t, 20.0, res.FinalLevel)
	assert.InDelta(t, 30, res.Prices.Mean, 1e-9)
}

func TestRunSeededIsReproducible(t *testing.T) {
	cfg := testConfig()
	cfg.DemandSigma = 5
	e := New(nil)

	run := func() *Result {
		c, err := controller.New(cfg, nil)
		require.NoError(t, err)
		seed := uint64(11)
		res, err := e.Run(context.Background(), c, flatPrices, nil, &seed, nil)
		require.NoError(t, err)
		return res
	}
	assert.Equal(t, run().Ledger, run().Ledger)
}

func TestRunStopsOnHookError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(nil).Run(context.Background(), newController(t), flatPrices, nil, nil, func(r LedgerRow) error {
		if r.Step == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Run(ctx, newController(t), flatPrices, nil, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsMissingISO(t *testing.T) {
	_, err := New(nil).Run(context.Background(), newController(t), nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestCompareRanksByObjective(t *testing.T) {
	e := New(nil)
	ranked, err := e.Compare(context.Background(), []Variation{
		{Name: "charge", Config: testConfig(), ISO: flatPrices, PCS: strategy.Constant{Action: []float64{1}}},
		{Name: "discharge", Config: testConfig(), ISO: flatPrices, PCS: strategy.Constant{Action: []float64{-1}}},
	}, 5, ObjectivePCS)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, "discharge", ranked[0].Result.Name)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.InDelta(t, 100, ranked[0].Score, 1e-9)
	assert.Equal(t, "charge", ranked[1].Result.Name)

	_, err = e.Compare(context.Background(), nil, 0, ObjectivePCS)
	assert.Error(t, err)
}

func TestWriteLedger(t *testing.T) {
	res, err := New(nil).Run(context.Background(), newController(t), flatPrices, nil, nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLedger(&buf, res.Ledger))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 25)
	assert.True(t, strings.HasPrefix(lines[0], "step,time,clock,predicted_demand"))
	assert.True(t, strings.HasPrefix(lines[1], "1,0.041667,01:00,"))
}

func TestClock(t *testing.T) {
	assert.Equal(t, "00:00", Clock(0))
	assert.Equal(t, "12:00", Clock(0.5))
	assert.Equal(t, "23:30", Clock(47.0/48))
}
