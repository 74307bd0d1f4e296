package handlers

import (
	"net/http"

	"energy-net/internal/api/models"
	"energy-net/internal/data"

	"github.com/gin-gonic/gin"
)

// StrategyHandler handles policy-related requests
type StrategyHandler struct {
	catalog *data.Catalog
}

func NewStrategyHandler(catalog *data.Catalog) *StrategyHandler {
	return &StrategyHandler{catalog: catalog}
}

// ListStrategies handles GET /api/v1/strategies
func (h *StrategyHandler) ListStrategies(c *gin.Context) {
	strategies := []models.StrategyInfo{
		{
			Kind:        "constant",
			Sides:       []string{"iso", "pcs"},
			Description: "Returns the same action every step. For the ISO this is [buy, sell] (+dispatch); for the PCS a battery action.",
			Parameters: []models.ParameterInfo{
				{Name: "action", Type: "[]float", Description: "The action to repeat"},
			},
		},
		{
			Kind:        "charge_max",
			Sides:       []string{"pcs"},
			Description: "Charges at a fixed rate every step; the battery trims it to what is feasible.",
			Parameters: []models.ParameterInfo{
				{Name: "rate", Type: "float", Description: "Charge rate; defaults to the battery's charge_rate_max"},
			},
		},
		{
			Kind:        "schedule",
			Sides:       []string{"pcs"},
			Description: "Time-based schedule. Charges and discharges in fixed windows each day.",
			Parameters: []models.ParameterInfo{
				{Name: "schedule.charge_start", Type: "string", Description: "Start time for charging (HH:MM format, e.g., '01:00')", Default: "01:00"},
				{Name: "schedule.charge_end", Type: "string", Description: "End time for charging (HH:MM format)", Default: "05:00"},
				{Name: "schedule.discharge_start", Type: "string", Description: "Start time for discharging (HH:MM format, e.g., '17:00')", Default: "17:00"},
				{Name: "schedule.discharge_end", Type: "string", Description: "End time for discharging (HH:MM format)", Default: "21:00"},
				{Name: "schedule.charge_rate", Type: "float", Description: "Energy requested per step while charging", Default: 0.0},
				{Name: "schedule.discharge_rate", Type: "float", Description: "Energy offered per step while discharging", Default: 0.0},
				{Name: "schedule.time_index", Type: "int", Description: "Observation index holding the time of day", Default: 1},
			},
		},
		{
			Kind:        "linear",
			Sides:       []string{"iso", "pcs"},
			Description: "Affine map of the observation, clipped to optional bounds. The form exported trained actors take.",
			Parameters: []models.ParameterInfo{
				{Name: "linear.weights", Type: "[][]float", Description: "One row per action dimension"},
				{Name: "linear.bias", Type: "[]float", Description: "One value per action dimension"},
				{Name: "linear.low", Type: "[]float", Description: "Optional lower clip"},
				{Name: "linear.high", Type: "[]float", Description: "Optional upper clip"},
			},
		},
		{
			Kind:        "oracle",
			Sides:       []string{"pcs"},
			Description: "Perfect foresight planner. Uses dynamic programming over the price path the ISO policy produces.",
			Parameters: []models.ParameterInfo{
				{Name: "oracle.level_steps", Type: "int", Description: "Number of level discretization steps (higher = more accurate but slower)", Default: 200},
				{Name: "oracle.action_steps", Type: "int", Description: "Number of action discretization steps on each side of zero", Default: 10},
				{Name: "oracle.steps_per_day", Type: "int", Description: "Steps per day; defaults to the episode length"},
			},
		},
	}
	c.JSON(http.StatusOK, gin.H{"strategies": strategies})
}

// ListPolicies handles GET /api/v1/policies. ?side=iso|pcs filters.
func (h *StrategyHandler) ListPolicies(c *gin.Context) {
	bySide := h.catalog.BySide()
	if side := c.Query("side"); side != "" {
		list := bySide[data.Side(side)]
		if list == nil {
			list = []data.CatalogEntry{}
		}
		c.JSON(http.StatusOK, gin.H{"policies": list})
		return
	}
	out := []data.CatalogEntry{}
	out = append(out, bySide[data.SideISO]...)
	out = append(out, bySide[data.SidePCS]...)
	c.JSON(http.StatusOK, gin.H{"policies": out})
}
