package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"energy-net/internal/api/models"
	"energy-net/internal/config"
	"energy-net/internal/controller"
	"energy-net/internal/data"
	"energy-net/internal/episode"
	"energy-net/internal/logging"
	"energy-net/internal/model"
	"energy-net/internal/store"
	"energy-net/internal/strategy"
	"energy-net/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxSteps caps request-supplied episode lengths.
const maxSteps = 10000

// EpisodeStore is the part of the episode store the API uses.
type EpisodeStore interface {
	SaveEpisode(ctx context.Context, res *episode.Result) error
	LoadEpisode(ctx context.Context, id string) (*episode.Result, error)
	ListEpisodes(ctx context.Context, limit int) ([]store.Summary, error)
}

// Deps is shared by every handler.
type Deps struct {
	Base      *config.Config
	PresetDir string
	Catalog   *data.Catalog
	Engine    *episode.Engine
	Recorder  *telemetry.Recorder
	Store     EpisodeStore // nil disables persistence
	Log       logrus.FieldLogger
}

func (d *Deps) logger() logrus.FieldLogger { return logging.OrDiscard(d.Log) }

func (d *Deps) observeEpisode(source string, res *episode.Result) {
	if d.Recorder != nil {
		d.Recorder.ObserveEpisode(source, res)
	}
}

func respondError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}

// configStatus maps configuration failures to 400 and everything else to 500.
func configStatus(err error) int {
	if errors.Is(err, model.ErrConfiguration) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// buildConfig overlays a request on the base configuration and validates the result.
func (d *Deps) buildConfig(req models.SimulationConfig) (*config.Config, error) {
	if d.Base == nil {
		return nil, fmt.Errorf("server has no base configuration")
	}
	cfg := *d.Base

	// If pcs_file is set, load the preset and merge request overrides onto it.
	if req.PCSFile != "" {
		// pcs_file is just the preset id (e.g. "default"); presets live in one directory.
		if strings.ContainsAny(req.PCSFile, `/\`) || strings.Contains(req.PCSFile, "..") {
			return nil, model.NewConfigError("pcs_file", "invalid preset id %q", req.PCSFile)
		}
		loaded, err := config.LoadPCSFile(filepath.Join(d.PresetDir, req.PCSFile+".yaml"))
		if err != nil {
			return nil, model.NewConfigError("pcs_file", "failed to load preset %q: %v", req.PCSFile, err)
		}
		cfg.PCS = config.MergePCS(cfg.PCS, loaded)
	}
	cfg.PCS.Battery = config.MergeBattery(cfg.PCS.Battery, config.BatteryConfig{
		Min:                 req.Battery.Min,
		Max:                 req.Battery.Max,
		Init:                req.Battery.Init,
		ChargeRateMax:       req.Battery.ChargeRateMax,
		DischargeRateMax:    req.Battery.DischargeRateMax,
		ChargeEfficiency:    req.Battery.ChargeEfficiency,
		DischargeEfficiency: req.Battery.DischargeEfficiency,
	})

	if req.PricingPolicy != "" {
		cfg.ISO.PricingPolicy = req.PricingPolicy
	}
	if req.DemandPattern != "" {
		cfg.Environment.Demand.Pattern = req.DemandPattern
	}
	if req.CostType != "" {
		cfg.Environment.Costs.Type = req.CostType
	}
	if req.UncertaintySigma != nil {
		cfg.Environment.Demand.UncertaintySigma = *req.UncertaintySigma
	}
	if req.MaxSteps != 0 {
		if req.MaxSteps < 0 || req.MaxSteps > maxSteps {
			return nil, model.NewConfigError("max_steps", "must be in [1, %d]", maxSteps)
		}
		cfg.Environment.Time.MaxStepsPerEpisode = req.MaxSteps
	}
	if req.UseDispatch != nil {
		cfg.ISO.Dispatch.Enabled = *req.UseDispatch
	}
	if req.DispatchRule != "" {
		cfg.ISO.Dispatch.Rule = req.DispatchRule
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeConfig overlays a variation's config on the comparison base.
func mergeConfig(base, override models.SimulationConfig) models.SimulationConfig {
	out := base
	if override.PCSFile != "" {
		out.PCSFile = override.PCSFile
	}
	b := &out.Battery
	o := override.Battery
	if o.Min != 0 {
		b.Min = o.Min
	}
	if o.Max != 0 {
		b.Max = o.Max
	}
	if o.Init != 0 {
		b.Init = o.Init
	}
	if o.ChargeRateMax != 0 {
		b.ChargeRateMax = o.ChargeRateMax
	}
	if o.DischargeRateMax != 0 {
		b.DischargeRateMax = o.DischargeRateMax
	}
	if o.ChargeEfficiency != 0 {
		b.ChargeEfficiency = o.ChargeEfficiency
	}
	if o.DischargeEfficiency != 0 {
		b.DischargeEfficiency = o.DischargeEfficiency
	}
	if override.PricingPolicy != "" {
		out.PricingPolicy = override.PricingPolicy
	}
	if override.DemandPattern != "" {
		out.DemandPattern = override.DemandPattern
	}
	if override.CostType != "" {
		out.CostType = override.CostType
	}
	if override.UncertaintySigma != nil {
		out.UncertaintySigma = override.UncertaintySigma
	}
	if override.MaxSteps != 0 {
		out.MaxSteps = override.MaxSteps
	}
	if override.UseDispatch != nil {
		out.UseDispatch = override.UseDispatch
	}
	if override.DispatchRule != "" {
		out.DispatchRule = override.DispatchRule
	}
	return out
}

// newController builds a controller and attaches the configured unit policies.
func (d *Deps) newController(cfg *config.Config) (*controller.Controller, error) {
	cc, err := cfg.ToController()
	if err != nil {
		return nil, err
	}
	ctrl, err := controller.New(cc, d.logger())
	if err != nil {
		return nil, err
	}
	policies, err := cfg.UnitPolicies()
	if err != nil {
		return nil, model.NewConfigError("pcs.units", "%v", err)
	}
	for idx, p := range policies {
		ctrl.PCS().SetTrainedAgent(idx, p)
	}
	return ctrl, nil
}

func (d *Deps) lookupSpec(ref models.PolicyRef, side data.Side) (strategy.Spec, error) {
	if ref.Spec != nil {
		return *ref.Spec, nil
	}
	if ref.Name == "" {
		return strategy.Spec{}, model.NewConfigError(string(side), "policy name or spec is required")
	}
	e, ok := d.Catalog.Find(ref.Name)
	if !ok {
		return strategy.Spec{}, model.NewConfigError(string(side), "unknown policy %q", ref.Name)
	}
	if e.Side != side {
		return strategy.Spec{}, model.NewConfigError(string(side), "policy %q drives the %s side", ref.Name, e.Side)
	}
	return e.Spec, nil
}

// resolvePolicies builds both sides. A nil PCS ref leaves unit 0 to its own policy.
// A PCS oracle is planned on the prices the ISO policy produces in a dry run.
func (d *Deps) resolvePolicies(ctx context.Context, cfg *config.Config, isoRef models.PolicyRef, pcsRef *models.PolicyRef, seed *uint64) (iso, pcs strategy.Policy, err error) {
	cc, err := cfg.ToController()
	if err != nil {
		return nil, nil, err
	}
	env := strategy.Env{Battery: cc.PCS.Units[0].Battery, Horizon: cc.Time.MaxSteps}

	isoSpec, err := d.lookupSpec(isoRef, data.SideISO)
	if err != nil {
		return nil, nil, err
	}
	if iso, err = strategy.FromSpec(isoSpec, env); err != nil {
		return nil, nil, model.NewConfigError("iso", "%v", err)
	}
	if pcsRef == nil {
		return iso, nil, nil
	}

	pcsSpec, err := d.lookupSpec(*pcsRef, data.SidePCS)
	if err != nil {
		return nil, nil, err
	}
	if strategy.Kind(strings.ToLower(string(pcsSpec.Kind))) == strategy.KindOracle {
		ctrl, err := d.newController(cfg)
		if err != nil {
			return nil, nil, err
		}
		dry, err := d.Engine.Run(ctx, ctrl, iso, nil, seed, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("oracle dry run: %w", err)
		}
		env.Prices = episode.PricePath(dry.Ledger)
	}
	if pcs, err = strategy.FromSpec(pcsSpec, env); err != nil {
		return nil, nil, model.NewConfigError("pcs", "%v", err)
	}
	return iso, pcs, nil
}

func buildResponse(res *episode.Result, includeLedger bool) models.SimulateResponse {
	out := models.SimulateResponse{
		ID:      res.ID,
		Status:  "completed",
		Summary: buildSummary(res),
	}
	if includeLedger {
		out.Ledger = res.Ledger
	}
	return out
}

func buildSummary(res *episode.Result) models.Summary {
	return models.Summary{
		Steps:          res.Steps,
		TotalISOReward: res.TotalISOReward,
		TotalPCSReward: res.TotalPCSReward,
		EnergyBought:   res.EnergyBought,
		EnergySold:     res.EnergySold,
		FinalLevel:     res.FinalLevel,
		ISO:            res.ISO,
		PCS:            res.PCS,
		BuyPrices:      res.Prices,
		Windows:        buildWindows(res.Ledger),
	}
}

// buildWindows groups contiguous charging or discharging steps of unit 0.
func buildWindows(ledger []episode.LedgerRow) []models.Window {
	var out []models.Window
	var cur *models.Window
	var weighted float64

	flush := func() {
		if cur == nil {
			return
		}
		if cur.Energy != 0 {
			cur.AveragePrice = weighted / cur.Energy
		}
		out = append(out, *cur)
		cur = nil
		weighted = 0
	}

	for _, r := range ledger {
		if r.Action == model.ActionIdle || r.Action == "" {
			flush()
			continue
		}
		if cur != nil && cur.Action != r.Action {
			flush()
		}
		if cur == nil {
			cur = &models.Window{Action: r.Action, StartClock: r.Clock}
		}
		delta := r.LevelEnd - r.LevelStart
		price := r.BuyPrice
		if r.Action == model.ActionDischarging {
			delta = -delta
			price = r.SellPrice
		}
		cur.EndClock = r.Clock
		cur.Steps++
		cur.Energy += delta
		weighted += delta * price
	}
	flush()
	return out
}
