package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"energy-net/internal/api/models"
	"energy-net/internal/episode"
	"energy-net/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SimulationHandler handles episode runs, comparisons and stored ledgers
type SimulationHandler struct {
	deps *Deps
}

func NewSimulationHandler(deps *Deps) *SimulationHandler {
	return &SimulationHandler{deps: deps}
}

// RunSimulation handles POST /api/v1/simulate
func (h *SimulationHandler) RunSimulation(c *gin.Context) {
	var req models.SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if req.Options.Persist && h.deps.Store == nil {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_DISABLED", errors.New("no episode store is configured"))
		return
	}

	res, err := runEpisode(c, h.deps, req, "api", nil)
	if err != nil {
		respondError(c, configStatus(err), "SIMULATION_ERROR", err)
		return
	}

	if req.Options.Persist {
		if err := h.deps.Store.SaveEpisode(c.Request.Context(), res); err != nil {
			respondError(c, http.StatusInternalServerError, "STORAGE_ERROR", err)
			return
		}
	}
	c.JSON(http.StatusOK, buildResponse(res, req.Options.IncludeLedger))
}

// GetLedger handles GET /api/v1/simulate/:id/ledger. ?format=csv returns CSV.
func (h *SimulationHandler) GetLedger(c *gin.Context) {
	if h.deps.Store == nil {
		respondError(c, http.StatusNotImplemented, "STORAGE_DISABLED", errors.New("ledger retrieval needs an episode store; use include_ledger=true instead"))
		return
	}
	id := c.Param("id")
	res, err := h.deps.Store.LoadEpisode(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "STORAGE_ERROR", err)
		return
	}

	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, id))
		c.Status(http.StatusOK)
		if err := episode.WriteLedger(c.Writer, res.Ledger); err != nil {
			h.deps.logger().WithError(err).WithField("episode", id).Error("failed to write ledger csv")
		}
		return
	}
	c.JSON(http.StatusOK, buildResponse(res, true))
}

// ListEpisodes handles GET /api/v1/episodes
func (h *SimulationHandler) ListEpisodes(c *gin.Context) {
	if h.deps.Store == nil {
		c.JSON(http.StatusOK, gin.H{"episodes": []store.Summary{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.deps.Store.ListEpisodes(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "STORAGE_ERROR", err)
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"episodes": list})
}

// CompareSimulations handles POST /api/v1/compare
func (h *SimulationHandler) CompareSimulations(c *gin.Context) {
	var req models.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	objective := episode.Objective(req.Objective)
	switch objective {
	case "":
		objective = episode.ObjectivePCS
	case episode.ObjectivePCS, episode.ObjectiveISO:
	default:
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Errorf("unknown objective %q", req.Objective))
		return
	}

	ctx := c.Request.Context()
	seed := req.Seed
	variations := make([]episode.Variation, 0, len(req.Variations))
	for _, v := range req.Variations {
		merged := mergeConfig(req.BaseConfig, v.Config)
		cfg, err := h.deps.buildConfig(merged)
		if err != nil {
			respondError(c, configStatus(err), "INVALID_CONFIG", fmt.Errorf("variation %q: %w", v.Name, err))
			return
		}
		iso, pcs, err := h.deps.resolvePolicies(ctx, cfg, v.ISO, v.PCS, &seed)
		if err != nil {
			respondError(c, configStatus(err), "INVALID_POLICY", fmt.Errorf("variation %q: %w", v.Name, err))
			return
		}
		cc, err := cfg.ToController()
		if err != nil {
			respondError(c, configStatus(err), "INVALID_CONFIG", err)
			return
		}
		units, err := cfg.UnitPolicies()
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_CONFIG", fmt.Errorf("variation %q: %w", v.Name, err))
			return
		}
		variations = append(variations, episode.Variation{Name: v.Name, Config: cc, ISO: iso, PCS: pcs, UnitPolicies: units})
	}

	ranked, err := h.deps.Engine.Compare(ctx, variations, seed, objective)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "COMPARE_ERROR", err)
		return
	}

	out := models.CompareResponse{Objective: string(objective)}
	for _, r := range ranked {
		h.deps.observeEpisode("compare", r.Result)
		out.Comparison = append(out.Comparison, models.ComparisonResult{
			Rank:    r.Rank,
			Name:    r.Result.Name,
			Score:   r.Score,
			Summary: buildSummary(r.Result),
		})
	}
	h.deps.logger().WithFields(logrus.Fields{
		"variations": len(out.Comparison),
		"objective":  objective,
	}).Info("comparison served")
	c.JSON(http.StatusOK, out)
}

// runEpisode builds the config, both policies and a controller from req and plays one episode.
func runEpisode(c *gin.Context, deps *Deps, req models.SimulateRequest, source string, next episode.StepHook) (*episode.Result, error) {
	ctx := c.Request.Context()
	cfg, err := deps.buildConfig(req.Config)
	if err != nil {
		return nil, err
	}
	iso, pcs, err := deps.resolvePolicies(ctx, cfg, req.ISO, req.PCS, req.Seed)
	if err != nil {
		return nil, err
	}
	ctrl, err := deps.newController(cfg)
	if err != nil {
		return nil, err
	}

	hook := next
	if deps.Recorder != nil {
		hook = deps.Recorder.Hook(source, next)
	}
	res, err := deps.Engine.Run(ctx, ctrl, iso, pcs, req.Seed, hook)
	if err != nil {
		return nil, err
	}
	deps.observeEpisode(source, res)
	return res, nil
}
