package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func testParams() BatteryParams {
	return BatteryParams{
		Min:                 0,
		Max:                 100,
		Init:                50,
		ChargeRateMax:       10,
		DischargeRateMax:    10,
		ChargeEfficiency:    1,
		DischargeEfficiency: 1,
	}
}

func newManager(t *testing.T, p BatteryParams) *BatteryManager {
	t.Helper()
	m, err := NewBatteryManager(p, nil)
	require.NoError(t, err)
	return m
}

func TestBatteryParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BatteryParams)
	}{
		{"max below min", func(p *BatteryParams) { p.Max = -1 }},
		{"negative min", func(p *BatteryParams) { p.Min = -1 }},
		{"init out of range", func(p *BatteryParams) { p.Init = 101 }},
		{"negative charge rate", func(p *BatteryParams) { p.ChargeRateMax = -1 }},
		{"zero efficiency", func(p *BatteryParams) { p.ChargeEfficiency = 0 }},
		{"efficiency above one", func(p *BatteryParams) { p.DischargeEfficiency = 1.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			var ce *ConfigError
			assert.True(t, errors.As(err, &ce))
		})
	}
	assert.NoError(t, testParams().Validate())
}

func TestChargeAtMaxIsNoOp(t *testing.T) {
	p := testParams()
	p.Init = p.Max
	m := newManager(t, p)

	change, level := m.CalculateEnergyChange(5)
	assert.Equal(t, 0.0, change)
	assert.Equal(t, p.Max, level)
	assert.Equal(t, 0.0, m.ValidateAction(5))
	assert.Equal(t, 0.0, m.Update(5))
	assert.Equal(t, p.Max, m.Level())
}

func TestDischargeNearEmptyIsScaled(t *testing.T) {
	p := testParams()
	p.Init = p.Min + 0.001
	m := newManager(t, p)

	validated := m.ValidateAction(-10)
	assert.Less(t, validated, 0.0)
	assert.Greater(t, validated, -10.0)
	assert.InDelta(t, -0.001, validated, 1e-12)

	m.Update(validated)
	assert.GreaterOrEqual(t, m.Level(), p.Min)
}

func TestValidateActionClampsToRates(t *testing.T) {
	m := newManager(t, testParams())
	assert.Equal(t, 10.0, m.ValidateAction(25))
	assert.Equal(t, -10.0, m.ValidateAction(-25))
	assert.Equal(t, 3.0, m.ValidateAction(3))
	assert.Equal(t, 0.0, m.ValidateAction(math.NaN()))
	assert.Equal(t, 0.0, m.ValidateAction(math.Inf(1)))
}

func TestEfficiencyRoundTripLoses(t *testing.T) {
	p := testParams()
	p.ChargeEfficiency = 0.9
	p.DischargeEfficiency = 0.9
	m := newManager(t, p)
	start := m.Level()

	stored := m.Update(10)
	assert.InDelta(t, 9, stored, 1e-9)
	drawn := m.GridEnergy(stored)
	assert.InDelta(t, 10, drawn, 1e-9)

	withdrawn := m.Update(-10)
	delivered := -m.GridEnergy(withdrawn)
	assert.LessOrEqual(t, delivered, drawn+1e-9)
	assert.Less(t, m.Level(), start)
}

func TestBatteryBoundsHoldForRandomActions(t *testing.T) {
	p := testParams()
	p.ChargeEfficiency = 0.93
	p.DischargeEfficiency = 0.87
	m := newManager(t, p)
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 2000; i++ {
		action := (rng.Float64()*2 - 1) * 30
		if i%2 == 0 {
			action = m.ValidateAction(action)
		}
		m.Update(action)
		require.GreaterOrEqual(t, m.Level(), p.Min, "step %d", i)
		require.LessOrEqual(t, m.Level(), p.Max, "step %d", i)
	}
	assert.Equal(t, 2000, m.State.Step)
}

func TestBatteryResetAndSnapshot(t *testing.T) {
	m := newManager(t, testParams())
	m.Update(10)

	snap := m.Snapshot()
	assert.Equal(t, 60.0, snap.Level)
	assert.Equal(t, 50.0, snap.PreviousLevel)
	assert.Equal(t, 10.0, snap.EnergyChange)
	assert.Equal(t, 40.0, snap.AvailableCapacity)
	assert.InDelta(t, 0.6, snap.UsedCapacityRatio, 1e-9)

	m.Reset(nil)
	assert.Equal(t, 50.0, m.Level())
	assert.Equal(t, 0, m.State.Step)

	level := 250.0
	m.Reset(&level)
	assert.Equal(t, 100.0, m.Level())
}

func TestBox(t *testing.T) {
	_, err := NewBox([]float64{0}, []float64{1, 2})
	assert.Error(t, err)
	_, err = NewBox([]float64{2}, []float64{1})
	assert.Error(t, err)

	b, err := NewBox([]float64{0, -1}, []float64{10, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Dim())
	assert.True(t, b.Contains([]float64{5, 0}))
	assert.False(t, b.Contains([]float64{5}))
	assert.False(t, b.Contains([]float64{11, 0}))
	assert.False(t, b.Contains([]float64{math.NaN(), 0}))

	assert.Equal(t, []float64{10, -1}, b.Clip([]float64{12, -3, 99}))
	assert.Equal(t, []float64{0, -1}, b.Clip(nil))

	c := b.Concat(UniformBox(1, 0, 5))
	assert.Equal(t, []float64{0, -1, 0}, c.Low)
	assert.Equal(t, []float64{10, 1, 5}, c.High)
}

func TestActionLabels(t *testing.T) {
	assert.Equal(t, ActionCharging, ActionFromEnergyChange(0.1))
	assert.Equal(t, ActionDischarging, ActionFromEnergyChange(-0.1))
	assert.Equal(t, ActionIdle, ActionFromEnergyChange(0))

	assert.Equal(t, ExchangeBuying, ExchangeFromNet(1))
	assert.Equal(t, ExchangeSelling, ExchangeFromNet(-1))
	assert.Equal(t, ExchangeBalanced, ExchangeFromNet(0))
}

func TestConfigErrorMessage(t *testing.T) {
	err := NewConfigError("iso.action", "expected %d values", 6)
	assert.Equal(t, "configuration error: iso.action: expected 6 values", err.Error())
	assert.Equal(t, "configuration error: bad", (&ConfigError{Msg: "bad"}).Error())
}
