package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/api/dto"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/pipeline"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/variant"
	"github.com/gin-gonic/gin"
)

// GenerateViews handles POST /api/v1/views/generate
// Maps an architectural analysis to base view specs without rendering
func (h *RenderHandler) GenerateViews(c *gin.Context) {
	var req pipeline.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	result := h.planner.Generator().Generate(req.Analysis, req.PageClassifications, req.SelectedPages, req.Options())

	h.logger.Debug("Views generated",
		slog.Int("views", len(result.Views)),
		slog.Int("selected_pages", len(req.SelectedPages)),
	)

	c.JSON(http.StatusOK, dto.ViewsResponse{
		Views:           result.Views,
		Count:           len(result.Views),
		GlobalSettings:  result.GlobalSettings,
		VariantSettings: result.VariantSettings,
	})
}

// ExpandVariants handles POST /api/v1/views/variants
// mode "expand" (default) applies the policy to every view, "smart" adds a
// light set of twins and "grid" crosses the first view with decoration
// styles and lighting modes. A max_cost_usd keeps the leading views a flat
// per-view cost can pay for; the cost defaults to the price of the first view.
func (h *RenderHandler) ExpandVariants(c *gin.Context) {
	var req dto.VariantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	expander := h.planner.Expander()

	var views []domain.ViewSpec
	switch req.Mode {
	case dto.VariantModeExpand, "":
		views = expander.ExpandAll(req.Views, req.Policy)
	case dto.VariantModeSmart:
		views = expander.Smart(req.Views, req.Policy)
	case dto.VariantModeGrid:
		views = expander.Grid(req.Views[0], req.DecorationStyles, req.LightingModes)
	default:
		badRequest(c, "Invalid variant mode", fmt.Errorf("unknown mode %q", req.Mode))
		return
	}

	if req.MaxCostUSD > 0 {
		perView := req.CostPerViewUSD
		if perView <= 0 {
			perView = h.planner.Guardrail().ViewCost(req.Views[0]).USD()
		}
		views = variant.FilterByBudget(views, req.MaxCostUSD, perView)
	}

	if views == nil {
		views = []domain.ViewSpec{}
	}

	c.JSON(http.StatusOK, dto.ViewsResponse{
		Views:           views,
		Count:           len(views),
		VariantSettings: req.Policy,
	})
}
