package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"energy-net/internal/analysis"
	"energy-net/internal/api/models"
	"energy-net/internal/data"
	"energy-net/internal/episode"
	"energy-net/internal/strategy"

	"github.com/gin-gonic/gin"
)

// RankHandler ranks ISO pricing policies by the arbitrage room their prices leave a battery
type RankHandler struct {
	deps *Deps
}

func NewRankHandler(deps *Deps) *RankHandler {
	return &RankHandler{deps: deps}
}

// RankPolicies handles GET /api/v1/rank
func (h *RankHandler) RankPolicies(c *gin.Context) {
	var req models.RankRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	// Parse policy names if provided
	var entries []data.CatalogEntry
	if req.Names != "" {
		for _, name := range strings.Split(req.Names, ",") {
			name = strings.TrimSpace(name)
			e, ok := h.deps.Catalog.Find(name)
			if !ok || e.Side != data.SideISO {
				respondError(c, http.StatusBadRequest, "UNKNOWN_POLICY", fmt.Errorf("%q is not an ISO catalog policy", name))
				return
			}
			entries = append(entries, e)
		}
	} else {
		entries = h.deps.Catalog.BySide()[data.SideISO]
	}
	if len(entries) == 0 {
		respondError(c, http.StatusNotFound, "NO_POLICIES", fmt.Errorf("no ISO policies to rank"))
		return
	}

	cfg, err := h.deps.buildConfig(models.SimulationConfig{})
	if err != nil {
		respondError(c, configStatus(err), "INVALID_CONFIG", err)
		return
	}

	// Play each policy against the default PCS behavior and keep the price path.
	byPolicy := make(map[string][]strategy.PricePoint, len(entries))
	for _, e := range entries {
		spec := e.Spec
		iso, _, err := h.deps.resolvePolicies(c.Request.Context(), cfg, models.PolicyRef{Spec: &spec}, nil, nil)
		if err != nil {
			respondError(c, configStatus(err), "INVALID_POLICY", fmt.Errorf("%s: %w", e.Name, err))
			return
		}
		ctrl, err := h.deps.newController(cfg)
		if err != nil {
			respondError(c, configStatus(err), "INVALID_CONFIG", err)
			return
		}
		seed := req.Seed
		res, err := h.deps.Engine.Run(c.Request.Context(), ctrl, iso, nil, &seed, nil)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "SIMULATION_ERROR", fmt.Errorf("%s: %w", e.Name, err))
			return
		}
		byPolicy[e.Name] = episode.PricePath(res.Ledger)
	}

	ranked := analysis.RankByOracleProfit(byPolicy)
	if len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}

	out := models.RankResponse{Rankings: make([]models.Ranking, 0, len(ranked))}
	for _, r := range ranked {
		out.Rankings = append(out.Rankings, models.Ranking{
			Rank:         r.Rank,
			Policy:       r.Name,
			Count:        r.Count,
			SpreadP95P05: r.SpreadP95P05,
			MinBuy:       r.Buy.Min,
			MaxBuy:       r.Buy.Max,
			OracleProfit: r.OracleProfit,
		})
	}
	c.JSON(http.StatusOK, out)
}
