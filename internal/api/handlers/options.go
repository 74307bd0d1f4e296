package handlers

import (
	"net/http"

	"energy-net/internal/api/models"
	"energy-net/internal/market"
	"energy-net/internal/pricing"
	"energy-net/internal/reward"

	"github.com/gin-gonic/gin"
)

// ListOptions handles GET /api/v1/options
func ListOptions(c *gin.Context) {
	out := models.OptionsResponse{}
	for _, p := range market.DemandPatterns {
		out.DemandPatterns = append(out.DemandPatterns, string(p))
	}
	for _, t := range market.CostTypes {
		out.CostTypes = append(out.CostTypes, string(t))
	}
	for _, p := range pricing.Policies {
		out.PricingPolicies = append(out.PricingPolicies, string(p))
	}
	for _, r := range pricing.DispatchRules {
		out.DispatchRules = append(out.DispatchRules, string(r))
	}
	for _, k := range reward.Kinds {
		out.RewardKinds = append(out.RewardKinds, string(k))
	}
	c.JSON(http.StatusOK, out)
}
