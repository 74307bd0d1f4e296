package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestParsePatternsAndCostTypes(t *testing.T) {
	p, err := ParseDemandPattern(" spikes ")
	require.NoError(t, err)
	assert.Equal(t, DemandSpikes, p)

	p, err = ParseDemandPattern("")
	require.NoError(t, err)
	assert.Equal(t, DemandSinusoidal, p)

	_, err = ParseDemandPattern("FLAT")
	assert.Error(t, err)

	c, err := ParseCostType("time_of_use")
	require.NoError(t, err)
	assert.Equal(t, CostTimeOfUse, c)

	_, err = ParseCostType("HOURLY")
	assert.Error(t, err)
}

func TestSinusoidalDemand(t *testing.T) {
	cfg := DemandConfig{BaseLoad: 100, Amplitude: 50, PhaseShift: 0.25}

	assert.InDelta(t, 150, CalculateDemand(0.25, DemandSinusoidal, cfg, nil), 1e-9)
	assert.InDelta(t, 50, CalculateDemand(0.75, DemandSinusoidal, cfg, nil), 1e-9)
	assert.InDelta(t, 100, CalculateDemand(0.5, DemandSinusoidal, cfg, nil), 1e-9)
}

func TestDemandNeverNegative(t *testing.T) {
	cfg := DemandConfig{BaseLoad: 10, Amplitude: 50}
	for _, pattern := range DemandPatterns {
		for i := 0; i < 48; i++ {
			d := CalculateDemand(float64(i)/48, pattern, cfg, rand.NewSource(1))
			assert.GreaterOrEqual(t, d, 0.0, "%s at step %d", pattern, i)
		}
	}
}

func TestPeriodicDemand(t *testing.T) {
	cfg := DemandConfig{BaseLoad: 100, Amplitude: 40, Cycles: 2}

	assert.InDelta(t, 100, CalculateDemand(0, DemandPeriodic, cfg, nil), 1e-9)
	assert.InDelta(t, 140, CalculateDemand(0.25, DemandPeriodic, cfg, nil), 1e-9)
	assert.InDelta(t, 100, CalculateDemand(0.5, DemandPeriodic, cfg, nil), 1e-9)
}

func TestSpikeDemand(t *testing.T) {
	cfg := DemandConfig{BaseLoad: 100, Amplitude: 0, Spikes: []float64{0.5}, SpikeMagnitude: 80, SpikeWidth: 0.1}

	assert.InDelta(t, 180, CalculateDemand(0.5, DemandSpikes, cfg, nil), 1e-9)
	assert.InDelta(t, 140, CalculateDemand(0.55, DemandSpikes, cfg, nil), 1e-9)
	assert.InDelta(t, 100, CalculateDemand(0.7, DemandSpikes, cfg, nil), 1e-9)

	// Spikes wrap around midnight.
	cfg.Spikes = []float64{0.02}
	assert.InDelta(t, 160, CalculateDemand(0.995, DemandSpikes, cfg, nil), 1e-9)
}

func TestRandomDemandIsSeeded(t *testing.T) {
	cfg := DemandConfig{BaseLoad: 100, Amplitude: 20, NoiseScale: 5}

	a := NewDemandModel(DemandRandom, cfg, 7)
	b := NewDemandModel(DemandRandom, cfg, 7)
	var first []float64
	for i := 0; i < 10; i++ {
		da, db := a.Predict(float64(i)/10), b.Predict(float64(i)/10)
		assert.Equal(t, da, db)
		first = append(first, da)
	}

	a.Seed(7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first[i], a.Predict(float64(i)/10))
	}

	// Without a source RANDOM falls back to the sinusoid.
	assert.InDelta(t, 120, CalculateDemand(0, DemandRandom, cfg, nil), 1e-9)
}

func TestDemandRewindReplaysDraw(t *testing.T) {
	m := NewDemandModel(DemandRandom, DemandConfig{BaseLoad: 100, NoiseScale: 5}, 7)
	mark := m.Mark()
	first := m.Predict(0.25)
	assert.NotEqual(t, first, m.Predict(0.25))

	m.Rewind(mark)
	assert.Equal(t, first, m.Predict(0.25))
}

func TestUncertainty(t *testing.T) {
	var nilU *Uncertainty
	assert.Equal(t, 0.0, nilU.Noise())
	assert.Equal(t, 0.0, NewUncertainty(0, 1).Noise())

	a, b := NewUncertainty(3, 11), NewUncertainty(3, 11)
	nonZero := false
	for i := 0; i < 5; i++ {
		na := a.Noise()
		assert.Equal(t, na, b.Noise())
		if na != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero)
}

func TestCalculateCosts(t *testing.T) {
	cfg := CostConfig{ReservePrice: 50, DispatchPrice: 10}

	r, d := CalculateCosts(CostConstant, cfg, 0.8)
	assert.Equal(t, 50.0, r)
	assert.Equal(t, 10.0, d)

	tests := []struct {
		name string
		t    float64
		mult float64
	}{
		{"off peak", 3.0 / 24, 0.7},
		{"shoulder", 12.0 / 24, 1.0},
		{"peak", 18.5 / 24, 1.5},
		{"after peak", 22.0 / 24, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, d := CalculateCosts(CostTimeOfUse, cfg, tt.t)
			assert.InDelta(t, 50*tt.mult, r, 1e-9)
			assert.InDelta(t, 10*tt.mult, d, 1e-9)
		})
	}

	r, _ = CalculateCosts(CostVariable, cfg, 0.75)
	assert.InDelta(t, 60, r, 1e-9)
	r, _ = CalculateCosts(CostVariable, cfg, 0.25)
	assert.InDelta(t, 40, r, 1e-9)
}

func TestPeakWindowWrapsMidnight(t *testing.T) {
	cfg := CostConfig{ReservePrice: 10, DispatchPrice: 1, PeakStartHour: 22, PeakEndHour: 2, OffPeakEndHour: 1}
	r, _ := CalculateCosts(CostTimeOfUse, cfg, 23.0/24)
	assert.InDelta(t, 15, r, 1e-9)
	r, _ = CalculateCosts(CostTimeOfUse, cfg, 1.5/24)
	assert.InDelta(t, 15, r, 1e-9)
	r, _ = CalculateCosts(CostTimeOfUse, cfg, 12.0/24)
	assert.InDelta(t, 10, r, 1e-9)
}

func TestHour(t *testing.T) {
	assert.Equal(t, 0, Hour(0))
	assert.Equal(t, 0, Hour(1))
	assert.Equal(t, 23, Hour(0.999))
	assert.Equal(t, 18, Hour(-0.25))
	assert.Equal(t, 12, Hour(1.5))
}

func TestSettle(t *testing.T) {
	s := Settle(100, 10, 100, 50, 10)
	assert.Equal(t, 110.0, s.ActualDemand)
	assert.Equal(t, 10.0, s.Shortfall)
	assert.Equal(t, 500.0, s.ReserveCost)
	assert.Equal(t, 1000.0, s.DispatchCost)
	assert.Equal(t, 1500.0, s.TotalCost)
	assert.InDelta(t, 1.1, s.Utilization, 1e-9)

	// Surplus dispatch has no shortfall.
	s = Settle(80, -10, 100, 50, 10)
	assert.Equal(t, 70.0, s.ActualDemand)
	assert.Equal(t, 0.0, s.Shortfall)
	assert.Equal(t, 0.0, s.ReserveCost)

	// PCS export larger than demand cannot make demand negative.
	s = Settle(5, -20, 0, 50, 10)
	assert.Equal(t, 0.0, s.ActualDemand)
	assert.Equal(t, 0.0, s.Utilization)
}
