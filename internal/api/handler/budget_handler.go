package handler

import (
	"net/http"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/api/dto"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/budget"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/gin-gonic/gin"
)

func (h *RenderHandler) bindBudget(c *gin.Context) (dto.BudgetRequest, bool) {
	var req dto.BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return req, false
	}
	if req.Views == nil {
		req.Views = []domain.ViewSpec{}
	}
	return req, true
}

func (h *RenderHandler) estimateResponse(est budget.Estimate) dto.EstimateResponse {
	return dto.EstimateResponse{
		Estimate:          est,
		CostFormatted:     h.planner.Guardrail().FormatDisplay(est.CostUSD),
		DurationFormatted: budget.FormatDuration(est.DurationSeconds),
	}
}

// EstimateBudget handles POST /api/v1/budget/estimate
func (h *RenderHandler) EstimateBudget(c *gin.Context) {
	req, ok := h.bindBudget(c)
	if !ok {
		return
	}

	est := h.planner.Guardrail().EstimateBatch(req.Views)
	c.JSON(http.StatusOK, h.estimateResponse(est))
}

// CheckBudget handles POST /api/v1/budget/check
// A failed check is still a 200: the result is advisory.
func (h *RenderHandler) CheckBudget(c *gin.Context) {
	req, ok := h.bindBudget(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.planner.Guardrail().CheckLimits(req.Views, req.Limits))
}

// OptimizeBudget handles POST /api/v1/budget/optimize
func (h *RenderHandler) OptimizeBudget(c *gin.Context) {
	req, ok := h.bindBudget(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.planner.Guardrail().Optimize(req.Views, req.Limits))
}

// SuggestOptimizations handles POST /api/v1/budget/suggestions
func (h *RenderHandler) SuggestOptimizations(c *gin.Context) {
	req, ok := h.bindBudget(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.SuggestionsResponse{
		Suggestions: h.planner.Guardrail().SuggestOptimizations(req.Views),
	})
}
