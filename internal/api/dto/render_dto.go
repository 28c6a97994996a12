package dto

import (
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/budget"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/pipeline"
)

type ViewsResponse struct {
	Views           []domain.ViewSpec           `json:"views"`
	Count           int                         `json:"count"`
	GlobalSettings  domain.GlobalRenderSettings `json:"global_settings"`
	VariantSettings domain.VariantSettings      `json:"variant_settings"`
}

// Variant modes accepted by VariantsRequest
const (
	VariantModeExpand = "expand"
	VariantModeSmart  = "smart"
	VariantModeGrid   = "grid"
)

type VariantsRequest struct {
	Mode             string                   `json:"mode"`
	Views            []domain.ViewSpec        `json:"views" binding:"required,min=1"`
	Policy           domain.VariantSettings   `json:"policy"`
	DecorationStyles []domain.DecorationStyle `json:"decoration_styles"`
	LightingModes    []domain.LightingMode    `json:"lighting_modes"`
	MaxCostUSD       float64                  `json:"max_cost_usd,omitempty"`
	CostPerViewUSD   float64                  `json:"cost_per_view_usd,omitempty"`
}

type BudgetRequest struct {
	Views  []domain.ViewSpec `json:"views"`
	Limits budget.Limits     `json:"limits"`
}

type EstimateResponse struct {
	budget.Estimate
	CostFormatted     string `json:"cost_formatted"`
	DurationFormatted string `json:"duration_formatted"`
}

type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

type StartBatchRequest struct {
	Plan        pipeline.PlanRequest `json:"plan"`
	InputImages map[int]string       `json:"input_images"`
	Force       bool                 `json:"force"`
}

type StartBatchResponse struct {
	BatchID    string           `json:"batch_id"`
	Views      int              `json:"views"`
	BaseViews  int              `json:"base_views"`
	Removed    int              `json:"removed"`
	Skipped    int              `json:"skipped"`
	SavingsUSD float64          `json:"savings_usd,omitempty"`
	Estimate   EstimateResponse `json:"estimate"`
	Check      budget.Check     `json:"check"`
	Progress   ProgressDTO      `json:"progress"`
}

type EnqueueBatchResponse struct {
	RequestID string           `json:"request_id"`
	Views     int              `json:"views"`
	Skipped   int              `json:"skipped"`
	Estimate  EstimateResponse `json:"estimate"`
	Check     budget.Check     `json:"check"`
}

type ProgressDTO struct {
	BatchID      string `json:"batch_id"`
	State        string `json:"state"`
	Total        int    `json:"total"`
	Queued       int    `json:"queued"`
	Processing   int    `json:"processing"`
	Completed    int    `json:"completed"`
	Failed       int    `json:"failed"`
	Cancelled    int    `json:"cancelled"`
	Overall      int    `json:"overall"`
	ETASeconds   int    `json:"eta_seconds"`
	ETAFormatted string `json:"eta_formatted"`
	Done         bool   `json:"done"`
}

// NewProgressDTO flattens a progress snapshot for JSON
func NewProgressDTO(p domain.BatchProgress) ProgressDTO {
	eta := int(p.ETA.Seconds())
	return ProgressDTO{
		BatchID:      p.BatchID,
		State:        string(p.State),
		Total:        p.Total,
		Queued:       p.Queued,
		Processing:   p.Processing,
		Completed:    p.Completed,
		Failed:       p.Failed,
		Cancelled:    p.Cancelled,
		Overall:      p.Overall,
		ETASeconds:   eta,
		ETAFormatted: budget.FormatDuration(eta),
		Done:         p.Done(),
	}
}

type RetryJobRequest struct {
	Analysis *domain.Analysis             `json:"analysis"`
	Settings *domain.GlobalRenderSettings `json:"settings"`
}

type ListJobsRequest struct {
	BatchID  string `form:"batch_id"`
	Status   string `form:"status"`
	ViewType string `form:"view_type"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID       string  `json:"job_id"`
	BatchID     string  `json:"batch_id"`
	SpecID      string  `json:"spec_id"`
	ViewType    string  `json:"view_type"`
	Model       string  `json:"model"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	ImageURL    string  `json:"image_url,omitempty"`
	Error       string  `json:"error,omitempty"`
	FromCache   bool    `json:"from_cache"`
	CostUSD     float64 `json:"cost_usd"`
	StartedAt   string  `json:"started_at,omitempty"`
	CompletedAt string  `json:"completed_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type CacheCleanupResponse struct {
	Removed int `json:"removed"`
	Entries int `json:"entries"`
}
