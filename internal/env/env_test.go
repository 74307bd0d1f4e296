package env

import (
	"bytes"
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

func newController(t *testing.T) *controller.Controller {
	t.Helper()
	c, err := controller.New(controller.Config{
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
		Seed: 1,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestEnergyNetV0Step(t *testing.T) {
	e := NewEnergyNetV0(newController(t))
	obs := e.Reset(nil)
	assert.Len(t, obs[AgentISO], 3)
	assert.Len(t, obs[AgentPCS], 4)

	out, err := e.Step(map[Agent][]float64{AgentISO: {40, 20}, AgentPCS: {-2}})
	require.NoError(t, err)
	assert.InDelta(t, 40, out[AgentPCS].Reward, 1e-9) // sells 2 at 20
	assert.Equal(t, out[AgentISO].Info, out[AgentPCS].Info)

	_, err = e.Step(map[Agent][]float64{AgentPCS: {1}})
	assert.Error(t, err)

	assert.Equal(t, 2, e.ActionSpaces()[AgentISO].Dim())
	assert.Equal(t, 4, e.ObservationSpaces()[AgentPCS].Dim())
}

func TestISOEnvUsesFixedPCSPolicy(t *testing.T) {
	e := NewISOEnv(newController(t), strategy.Constant{Action: []float64{-0.1}}, nil)
	obs, err := e.Reset(nil)
	require.NoError(t, err)
	assert.Len(t, obs, 3)

	var tr Transition
	for i := 0; i < 24; i++ {
		tr, err = e.Step([]float64{30, 10})
		require.NoError(t, err)
		assert.InDelta(t, -0.1, tr.Info.BatteryActions[0], 1e-9)
	}
	assert.True(t, tr.Done())
	assert.Len(t, tr.Observation, 3)
}

func TestPCSEnvUsesFixedISOPolicy(t *testing.T) {
	e := NewPCSEnv(newController(t), strategy.Constant{Action: []float64{25, 15}}, nil)
	_, err := e.Reset(nil)
	require.NoError(t, err)

	tr, err := e.Step([]float64{2})
	require.NoError(t, err)
	assert.Equal(t, 25.0, tr.Info.BuyPrice)
	assert.InDelta(t, -50, tr.Reward, 1e-9) // buys 2 at 25
	assert.Equal(t, []float64{12, 1.0 / 24, 25, 15}, tr.Observation)
}

func TestRescaleAction(t *testing.T) {
	inner := NewPCSEnv(newController(t), strategy.Constant{Action: []float64{25, 15}}, nil)
	r, err := NewRescaleAction(inner)
	require.NoError(t, err)

	assert.Equal(t, model.UniformBox(1, -1, 1), r.ActionSpace())
	assert.Equal(t, []float64{-4}, r.Rescale([]float64{-1}))
	assert.Equal(t, []float64{0}, r.Rescale([]float64{0}))
	assert.Equal(t, []float64{4}, r.Rescale([]float64{7}))

	tr, err := r.Step([]float64{0.5})
	require.NoError(t, err)
	assert.InDelta(t, 2, tr.Info.BatteryActions[0], 1e-9)
}

func TestDiscreteAction(t *testing.T) {
	inner := NewPCSEnv(newController(t), strategy.Constant{Action: []float64{25, 15}}, nil)
	d, err := NewDiscreteAction(inner, 5)
	require.NoError(t, err)

	assert.Equal(t, 5, d.Count())
	assert.Equal(t, []float64{-4}, d.Decode(0))
	assert.Equal(t, []float64{0}, d.Decode(2))
	assert.Equal(t, []float64{4}, d.Decode(99))

	tr, err := d.Step([]float64{3})
	require.NoError(t, err)
	assert.InDelta(t, 2, tr.Info.BatteryActions[0], 1e-9)

	_, err = NewDiscreteAction(inner, 1)
	assert.Error(t, err)
}

type boxEnv struct {
	Env
	box model.Box
}

func (b boxEnv) ActionSpace() model.Box { return b.box }

func TestDiscreteActionRejectsOverflowingIndex(t *testing.T) {
	dim := 54
	box := model.Box{Low: make([]float64, dim), High: make([]float64, dim)}
	for i := range box.High {
		box.High[i] = 1
	}

	_, err := NewDiscreteAction(boxEnv{box: box}, 3)
	assert.Error(t, err)

	d, err := NewDiscreteAction(boxEnv{box: model.Box{Low: box.Low[:3], High: box.High[:3]}}, 3)
	require.NoError(t, err)
	assert.Equal(t, 27, d.Count())
	assert.Equal(t, 26.0, d.ActionSpace().High[0])
}

func TestPCSEnvWithoutISOPolicyErrors(t *testing.T) {
	e := NewPCSEnv(newController(t), nil, nil)
	_, err := e.Reset(nil)
	require.NoError(t, err)

	_, err = e.Step([]float64{1})
	assert.Error(t, err)
}

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(2, 0)
	require.NoError(t, n.Update([]float64{1, 10}, []float64{3, 10}, []float64{5, 10}))

	assert.InDelta(t, 3, n.Mean[0], 1e-3)
	assert.InDelta(t, 10, n.Mean[1], 1e-3)
	assert.InDelta(t, 8.0/3, n.Var[0], 1e-2)

	z := n.Transform([]float64{5, 10})
	assert.Greater(t, z[0], 0.0)
	assert.InDelta(t, 0, z[1], 1e-2)

	back := n.InverseTransform(z)
	assert.InDelta(t, 5, back[0], 1e-9)
	assert.InDelta(t, 10, back[1], 1e-9)

	assert.Error(t, n.Update([]float64{1}))

	var buf bytes.Buffer
	require.NoError(t, n.Save(&buf))
	loaded, err := LoadNormalizer(&buf)
	require.NoError(t, err)
	assert.Equal(t, n.Mean, loaded.Mean)
	assert.Equal(t, n.Count, loaded.Count)
}

func TestNormalizeObservationWrapper(t *testing.T) {
	inner := NewPCSEnv(newController(t), strategy.Constant{Action: []float64{25, 15}}, nil)
	w := NewNormalizeObservation(inner, nil)

	_, err := w.Reset(nil)
	require.NoError(t, err)
	tr, err := w.Step([]float64{1})
	require.NoError(t, err)
	for _, v := range tr.Observation {
		assert.LessOrEqual(t, v, 10.0)
		assert.GreaterOrEqual(t, v, -10.0)
	}
	assert.InDelta(t, 2+initialCount, w.Stats.Count, 1e-12)

	w.Training = false
	_, err = w.Step([]float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 2+initialCount, w.Stats.Count, 1e-12)
}
