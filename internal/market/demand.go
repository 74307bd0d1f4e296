package market

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// DemandPattern selects the generator used for the predicted demand curve.
type DemandPattern string

const (
	DemandSinusoidal DemandPattern = "SINUSOIDAL"
	DemandRandom     DemandPattern = "RANDOM"
	DemandPeriodic   DemandPattern = "PERIODIC"
	DemandSpikes     DemandPattern = "SPIKES"
)

// DemandPatterns lists every supported pattern in a stable order.
var DemandPatterns = []DemandPattern{DemandSinusoidal, DemandRandom, DemandPeriodic, DemandSpikes}

func ParseDemandPattern(s string) (DemandPattern, error) {
	p := DemandPattern(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case DemandSinusoidal, DemandRandom, DemandPeriodic, DemandSpikes:
		return p, nil
	case "":
		return DemandSinusoidal, nil
	default:
		return "", fmt.Errorf("unsupported demand pattern %q", s)
	}
}

// DemandConfig parameterizes every pattern. Times are fractions of a day.
type DemandConfig struct {
	BaseLoad  float64
	Amplitude float64
	// PhaseShift moves the daily peak, as a fraction of the day.
	PhaseShift float64
	// Period of the sinusoid as a fraction of the day (1 = one cycle per day).
	Period float64
	// NoiseScale is the standard deviation used by RANDOM.
	NoiseScale float64
	// Cycles is the number of peaks per day for PERIODIC.
	Cycles float64
	// Spikes are the centres of demand spikes for SPIKES.
	Spikes         []float64
	SpikeMagnitude float64
	SpikeWidth     float64
}

// WithDefaults fills zero-valued shape parameters.
func (c DemandConfig) WithDefaults() DemandConfig {
	if c.Period <= 0 {
		c.Period = 1
	}
	if c.Cycles <= 0 {
		c.Cycles = 2
	}
	if c.SpikeWidth <= 0 {
		c.SpikeWidth = 1.0 / 48
	}
	if len(c.Spikes) == 0 {
		c.Spikes = []float64{0.35, 0.8}
	}
	return c
}

// CalculateDemand returns the predicted demand at time-of-day t for the pattern.
// rng is only consulted by RANDOM; nil falls back to the sinusoid.
// The result is never negative.
func CalculateDemand(t float64, pattern DemandPattern, cfg DemandConfig, rng rand.Source) float64 {
	cfg = cfg.WithDefaults()
	base := sinusoid(t, cfg)

	var demand float64
	switch pattern {
	case DemandSinusoidal:
		demand = base
	case DemandRandom:
		demand = base
		if rng != nil && cfg.NoiseScale > 0 {
			demand += distuv.Normal{Mu: 0, Sigma: cfg.NoiseScale, Src: rng}.Rand()
		}
	case DemandPeriodic:
		// Several equal peaks per day around the base load.
		demand = cfg.BaseLoad + cfg.Amplitude*0.5*(1-math.Cos(2*math.Pi*cfg.Cycles*(t-cfg.PhaseShift)))
	case DemandSpikes:
		demand = base
		for _, centre := range cfg.Spikes {
			d := math.Abs(wrapDay(t - centre))
			if d > 0.5 {
				d = 1 - d
			}
			if d <= cfg.SpikeWidth {
				demand += cfg.SpikeMagnitude * (1 - d/cfg.SpikeWidth)
			}
		}
	default:
		demand = cfg.BaseLoad
	}

	if demand < 0 || math.IsNaN(demand) {
		return 0
	}
	return demand
}

func sinusoid(t float64, cfg DemandConfig) float64 {
	return cfg.BaseLoad + cfg.Amplitude*math.Cos(2*math.Pi*(t-cfg.PhaseShift)/cfg.Period)
}

// DemandModel binds a pattern, its parameters and a seeded source together.
type DemandModel struct {
	Pattern DemandPattern
	Config  DemandConfig

	src *rand.PCGSource
}

func NewDemandModel(pattern DemandPattern, cfg DemandConfig, seed uint64) *DemandModel {
	src := &rand.PCGSource{}
	src.Seed(seed)
	return &DemandModel{Pattern: pattern, Config: cfg, src: src}
}

// Seed restarts the random stream, so episodes with the same seed replay identically.
func (m *DemandModel) Seed(seed uint64) { m.src.Seed(seed) }

func (m *DemandModel) Predict(t float64) float64 {
	return CalculateDemand(t, m.Pattern, m.Config, m.src)
}

// Mark captures the position of the random stream. Rewind returns to it.
func (m *DemandModel) Mark() rand.PCGSource { return *m.src }

func (m *DemandModel) Rewind(mark rand.PCGSource) { *m.src = mark }

// Uncertainty draws forecast errors for realized demand.
type Uncertainty struct {
	Sigma float64

	src rand.Source
}

func NewUncertainty(sigma float64, seed uint64) *Uncertainty {
	return &Uncertainty{Sigma: sigma, src: rand.NewSource(seed)}
}

func (u *Uncertainty) Seed(seed uint64) { u.src.Seed(seed) }

// Noise returns one draw of N(0, Sigma), or 0 when Sigma is not positive.
func (u *Uncertainty) Noise() float64 {
	if u == nil || u.Sigma <= 0 {
		return 0
	}
	return distuv.Normal{Mu: 0, Sigma: u.Sigma, Src: u.src}.Rand()
}

func wrapDay(t float64) float64 {
	t = math.Mod(t, 1)
	if t < 0 {
		t++
	}
	return t
}
