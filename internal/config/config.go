package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"energy-net/internal/controller"
	"energy-net/internal/market"
	"energy-net/internal/model"
	"energy-net/internal/pcs"
	"energy-net/internal/pricing"
	"energy-net/internal/reward"
	"energy-net/internal/strategy"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	ISO         ISOConfig         `yaml:"iso"`

	// Optional: load PCS parameters from a separate YAML (e.g. configs/pcs/*.yaml).
	// If both PCSFile and PCS are provided, PCS overrides PCSFile.
	PCSFile string    `yaml:"pcs_file"`
	PCS     PCSConfig `yaml:"pcs"`

	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api"`
	Logging LoggingConfig `yaml:"logging"`
}

type EnvironmentConfig struct {
	Time   TimeConfig   `yaml:"time"`
	Demand DemandConfig `yaml:"demand"`
	Costs  CostConfig   `yaml:"costs"`
	Seed   uint64       `yaml:"seed"`
}

type TimeConfig struct {
	StepDuration       float64 `yaml:"step_duration"`
	MinutesPerDay      float64 `yaml:"minutes_per_day"`
	MaxStepsPerEpisode int     `yaml:"max_steps_per_episode"`
}

type DemandConfig struct {
	Pattern        string    `yaml:"pattern"`
	BaseLoad       float64   `yaml:"base_load"`
	Amplitude      float64   `yaml:"amplitude"`
	PhaseShift     float64   `yaml:"phase_shift"`
	Period         float64   `yaml:"period"`
	NoiseScale     float64   `yaml:"noise_scale"`
	Cycles         float64   `yaml:"cycles"`
	Spikes         []float64 `yaml:"spikes"`
	SpikeMagnitude float64   `yaml:"spike_magnitude"`
	SpikeWidth     float64   `yaml:"spike_width"`
	// UncertaintySigma is the standard deviation of realized demand around the forecast.
	UncertaintySigma float64 `yaml:"uncertainty_sigma"`
}

type CostConfig struct {
	Type               string  `yaml:"type"`
	ReservePrice       float64 `yaml:"reserve_price"`
	DispatchPrice      float64 `yaml:"dispatch_price"`
	Variation          float64 `yaml:"variation"`
	PeakMultiplier     float64 `yaml:"peak_multiplier"`
	ShoulderMultiplier float64 `yaml:"shoulder_multiplier"`
	OffPeakMultiplier  float64 `yaml:"off_peak_multiplier"`
	PeakStartHour      int     `yaml:"peak_start_hour"`
	PeakEndHour        int     `yaml:"peak_end_hour"`
	OffPeakEndHour     int     `yaml:"off_peak_end_hour"`
}

type BoundsConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type PolynomialBounds struct {
	Low  [3]float64 `yaml:"low"`
	High [3]float64 `yaml:"high"`
}

type ISOConfig struct {
	PricingPolicy string `yaml:"pricing_policy"`
	Reward        string `yaml:"reward"`

	MinPrice  float64      `yaml:"min_price"`
	MaxPrice  float64      `yaml:"max_price"`
	BuyPrice  BoundsConfig `yaml:"buy_price"`
	SellPrice BoundsConfig `yaml:"sell_price"`

	Quadratic struct {
		Buy  PolynomialBounds `yaml:"buy"`
		Sell PolynomialBounds `yaml:"sell"`
	} `yaml:"quadratic"`

	Dispatch DispatchConfig `yaml:"dispatch"`
}

type DispatchConfig struct {
	// Enabled lets the ISO agent control dispatch through its action.
	Enabled     bool      `yaml:"enabled"`
	Min         float64   `yaml:"min"`
	Max         float64   `yaml:"max"`
	Rule        string    `yaml:"rule"`
	FixedValue  float64   `yaml:"fixed_value"`
	ScaleFactor float64   `yaml:"scale_factor"`
	Profile     []float64 `yaml:"profile"`
}

type BatteryConfig struct {
	Min                 float64 `yaml:"min"`
	Max                 float64 `yaml:"max"`
	Init                float64 `yaml:"init"`
	ChargeRateMax       float64 `yaml:"charge_rate_max"`
	DischargeRateMax    float64 `yaml:"discharge_rate_max"`
	ChargeEfficiency    float64 `yaml:"charge_efficiency"`
	DischargeEfficiency float64 `yaml:"discharge_efficiency"`
	LifetimeConstant    float64 `yaml:"lifetime_constant"`
}

// UnitConfig overrides the shared PCS defaults for one unit.
type UnitConfig struct {
	Battery     BatteryConfig  `yaml:"battery"`
	Production  *pcs.Profile   `yaml:"production"`
	Consumption *pcs.Profile   `yaml:"consumption"`
	Policy      *strategy.Spec `yaml:"policy"`
}

type PCSConfig struct {
	Reward      string        `yaml:"reward"`
	MultiAction bool          `yaml:"multi_action"`
	ScaleMax    float64       `yaml:"scale_max"`
	Battery     BatteryConfig `yaml:"battery"`
	Production  pcs.Profile   `yaml:"production"`
	Consumption pcs.Profile   `yaml:"consumption"`
	// Units lists per-unit overrides. Empty means one unit with the shared defaults.
	Units []UnitConfig `yaml:"units"`
}

type StorageConfig struct {
	// PostgresDSN enables the episode store when set.
	PostgresDSN string `yaml:"postgres_dsn"`
}

type APIConfig struct {
	Addr        string        `yaml:"addr"`
	CORSOrigins []string      `yaml:"cors_origins"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	// If pcs_file is set, load it and merge in any explicit overrides from c.PCS.
	if c.PCSFile != "" {
		pcsPath := c.PCSFile
		if !filepath.IsAbs(pcsPath) {
			// Relative paths resolve against the config file directory first, then the cwd.
			cand := filepath.Join(filepath.Dir(path), pcsPath)
			if _, err := os.Stat(cand); err == nil {
				pcsPath = cand
			}
		}
		loaded, err := LoadPCSFile(pcsPath)
		if err != nil {
			return nil, err
		}
		c.PCS = MergePCS(loaded, c.PCS)
	}
	return c, nil
}

// Parse decodes YAML without touching the filesystem.
func Parse(raw []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// ApplyDefaults fills the values a minimal config may leave out.
func (c *Config) ApplyDefaults() {
	t := &c.Environment.Time
	if t.MinutesPerDay == 0 {
		t.MinutesPerDay = 1440
	}
	if t.StepDuration == 0 {
		t.StepDuration = 30
	}
	if t.MaxStepsPerEpisode == 0 {
		t.MaxStepsPerEpisode = int(t.MinutesPerDay / t.StepDuration)
	}
	if c.ISO.PricingPolicy == "" {
		c.ISO.PricingPolicy = string(pricing.PolicyOnline)
	}
	if c.ISO.Reward == "" {
		c.ISO.Reward = string(reward.KindISO)
	}
	if c.PCS.Reward == "" {
		c.PCS.Reward = string(reward.KindCost)
	}
	if c.Environment.Demand.Period == 0 {
		c.Environment.Demand.Period = 1
	}
	if c.ISO.BuyPrice == (BoundsConfig{}) {
		c.ISO.BuyPrice = BoundsConfig{Min: c.ISO.MinPrice, Max: c.ISO.MaxPrice}
	}
	if c.ISO.SellPrice == (BoundsConfig{}) {
		c.ISO.SellPrice = BoundsConfig{Min: c.ISO.MinPrice, Max: c.ISO.MaxPrice}
	}
	if c.ISO.Dispatch.Min == 0 && c.ISO.Dispatch.Max == 0 {
		c.ISO.Dispatch.Max = 2 * (c.Environment.Demand.BaseLoad + c.Environment.Demand.Amplitude)
	}
	b := &c.PCS.Battery
	if b.ChargeEfficiency == 0 {
		b.ChargeEfficiency = 1
	}
	if b.DischargeEfficiency == 0 {
		b.DischargeEfficiency = 1
	}
	// If init is not provided, start the battery at its minimum.
	if b.Init == 0 {
		b.Init = b.Min
	}
	if c.PCS.MultiAction && c.PCS.ScaleMax == 0 {
		c.PCS.ScaleMax = 2
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.API.SessionTTL == 0 {
		c.API.SessionTTL = time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.ISO.MinPrice > c.ISO.MaxPrice {
		return model.NewConfigError("iso.min_price", "must be <= iso.max_price")
	}
	for i, u := range c.units() {
		if err := u.Battery.Validate(); err != nil {
			return fmt.Errorf("pcs unit %d: %w", i, err)
		}
	}
	cc, err := c.ToController()
	if err != nil {
		return err
	}
	// Validate the rest by constructing a controller.
	if _, err := controller.New(cc, nil); err != nil {
		if errors.Is(err, model.ErrConfiguration) {
			return err
		}
		return model.NewConfigError("config", "%v", err)
	}
	return nil
}

// ToController resolves the file shape into a controller configuration.
func (c *Config) ToController() (controller.Config, error) {
	env := c.Environment
	pattern, err := market.ParseDemandPattern(env.Demand.Pattern)
	if err != nil {
		return controller.Config{}, model.NewConfigError("environment.demand.pattern", "%v", err)
	}
	costType, err := market.ParseCostType(env.Costs.Type)
	if err != nil {
		return controller.Config{}, model.NewConfigError("environment.costs.type", "%v", err)
	}
	policy, err := pricing.ParsePolicy(c.ISO.PricingPolicy)
	if err != nil {
		return controller.Config{}, model.NewConfigError("iso.pricing_policy", "%v", err)
	}
	rule, err := pricing.ParseDispatchRule(c.ISO.Dispatch.Rule)
	if err != nil {
		return controller.Config{}, model.NewConfigError("iso.dispatch.rule", "%v", err)
	}
	isoReward, err := reward.ParseKind(c.ISO.Reward)
	if err != nil {
		return controller.Config{}, model.NewConfigError("iso.reward", "%v", err)
	}
	pcsReward, err := reward.ParseKind(c.PCS.Reward)
	if err != nil {
		return controller.Config{}, model.NewConfigError("pcs.reward", "%v", err)
	}

	return controller.Config{
		Time: controller.TimeConfig{
			StepDuration:  env.Time.StepDuration,
			MinutesPerDay: env.Time.MinutesPerDay,
			MaxSteps:      env.Time.MaxStepsPerEpisode,
		},
		DemandPattern: pattern,
		Demand: market.DemandConfig{
			BaseLoad:       env.Demand.BaseLoad,
			Amplitude:      env.Demand.Amplitude,
			PhaseShift:     env.Demand.PhaseShift,
			Period:         env.Demand.Period,
			NoiseScale:     env.Demand.NoiseScale,
			Cycles:         env.Demand.Cycles,
			Spikes:         env.Demand.Spikes,
			SpikeMagnitude: env.Demand.SpikeMagnitude,
			SpikeWidth:     env.Demand.SpikeWidth,
		},
		DemandSigma: env.Demand.UncertaintySigma,
		CostType:    costType,
		Cost: market.CostConfig{
			ReservePrice:       env.Costs.ReservePrice,
			DispatchPrice:      env.Costs.DispatchPrice,
			Variation:          env.Costs.Variation,
			PeakMultiplier:     env.Costs.PeakMultiplier,
			ShoulderMultiplier: env.Costs.ShoulderMultiplier,
			OffPeakMultiplier:  env.Costs.OffPeakMultiplier,
			PeakStartHour:      env.Costs.PeakStartHour,
			PeakEndHour:        env.Costs.PeakEndHour,
			OffPeakEndHour:     env.Costs.OffPeakEndHour,
		},
		PricingPolicy: policy,
		Pricing: pricing.Config{
			MinPrice:         c.ISO.MinPrice,
			MaxPrice:         c.ISO.MaxPrice,
			BuyPrice:         pricing.Bounds(c.ISO.BuyPrice),
			SellPrice:        pricing.Bounds(c.ISO.SellPrice),
			BuyCoefficients:  pricing.CoefficientBounds(c.ISO.Quadratic.Buy),
			SellCoefficients: pricing.CoefficientBounds(c.ISO.Quadratic.Sell),
			Dispatch: pricing.DispatchConfig{
				Bounds:      pricing.Bounds{Min: c.ISO.Dispatch.Min, Max: c.ISO.Dispatch.Max},
				Rule:        rule,
				FixedValue:  c.ISO.Dispatch.FixedValue,
				ScaleFactor: c.ISO.Dispatch.ScaleFactor,
				Profile:     c.ISO.Dispatch.Profile,
			},
			Horizon: env.Time.MaxStepsPerEpisode,
		},
		UseDispatchAction: c.ISO.Dispatch.Enabled,
		PCS: pcs.Config{
			Units:       c.units(),
			MultiAction: c.PCS.MultiAction,
			ScaleMax:    c.PCS.ScaleMax,
		},
		ISOReward: isoReward,
		PCSReward: pcsReward,
		Seed:      env.Seed,
	}, nil
}

// UnitPolicies builds the frozen policies attached to individual units, keyed by unit index.
func (c *Config) UnitPolicies() (map[int]strategy.Policy, error) {
	out := map[int]strategy.Policy{}
	for i, u := range c.PCS.Units {
		if u.Policy == nil {
			continue
		}
		p, err := strategy.FromSpec(*u.Policy, strategy.Env{
			Battery: MergeBattery(c.PCS.Battery, u.Battery).ToModelParams(),
			Horizon: c.Environment.Time.MaxStepsPerEpisode,
		})
		if err != nil {
			return nil, fmt.Errorf("pcs unit %d policy: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func (c *Config) units() []pcs.UnitConfig {
	shared := pcs.UnitConfig{
		Battery:     c.PCS.Battery.ToModelParams(),
		Production:  c.PCS.Production,
		Consumption: c.PCS.Consumption,
	}
	if len(c.PCS.Units) == 0 {
		return []pcs.UnitConfig{shared}
	}
	out := make([]pcs.UnitConfig, len(c.PCS.Units))
	for i, u := range c.PCS.Units {
		uc := shared
		uc.Battery = MergeBattery(c.PCS.Battery, u.Battery).ToModelParams()
		if u.Production != nil {
			uc.Production = *u.Production
		}
		if u.Consumption != nil {
			uc.Consumption = *u.Consumption
		}
		out[i] = uc
	}
	return out
}

func (b BatteryConfig) ToModelParams() model.BatteryParams {
	return model.BatteryParams{
		Min:                 b.Min,
		Max:                 b.Max,
		Init:                b.Init,
		ChargeRateMax:       b.ChargeRateMax,
		DischargeRateMax:    b.DischargeRateMax,
		ChargeEfficiency:    b.ChargeEfficiency,
		DischargeEfficiency: b.DischargeEfficiency,
		LifetimeConstant:    b.LifetimeConstant,
	}
}

func (b BatteryConfig) Validate() error {
	return b.ToModelParams().Validate()
}

type pcsFileWrapper struct {
	PCS PCSConfig `yaml:"pcs"`
}

// LoadPCSFile reads a PCS preset, the `pcs:` section of a standalone file.
func LoadPCSFile(path string) (PCSConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PCSConfig{}, err
	}
	var w pcsFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return PCSConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return w.PCS, nil
}

// MergePCS overlays non-zero fields from override onto base.
func MergePCS(base, override PCSConfig) PCSConfig {
	out := base
	if override.Reward != "" {
		out.Reward = override.Reward
	}
	if override.MultiAction {
		out.MultiAction = true
	}
	if override.ScaleMax != 0 {
		out.ScaleMax = override.ScaleMax
	}
	out.Battery = MergeBattery(base.Battery, override.Battery)
	if override.Production != (pcs.Profile{}) {
		out.Production = override.Production
	}
	if override.Consumption != (pcs.Profile{}) {
		out.Consumption = override.Consumption
	}
	if len(override.Units) > 0 {
		out.Units = override.Units
	}
	return out
}

// MergeBattery overlays non-zero fields from override onto base.
// This is used for pcs_file merging and per-unit overrides.
func MergeBattery(base, override BatteryConfig) BatteryConfig {
	out := base
	if override.Min != 0 {
		out.Min = override.Min
	}
	if override.Max != 0 {
		out.Max = override.Max
	}
	if override.Init != 0 {
		out.Init = override.Init
	}
	if override.ChargeRateMax != 0 {
		out.ChargeRateMax = override.ChargeRateMax
	}
	if override.DischargeRateMax != 0 {
		out.DischargeRateMax = override.DischargeRateMax
	}
	if override.ChargeEfficiency != 0 {
		out.ChargeEfficiency = override.ChargeEfficiency
	}
	if override.DischargeEfficiency != 0 {
		out.DischargeEfficiency = override.DischargeEfficiency
	}
	if override.LifetimeConstant != 0 {
		out.LifetimeConstant = override.LifetimeConstant
	}
	return out
}
