package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/api/dto"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var errNoInputImages = errors.New("input_images must not be empty")

func (h *RenderHandler) bindStartBatch(c *gin.Context) (dto.StartBatchRequest, bool) {
	var req dto.StartBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return req, false
	}
	if len(req.InputImages) == 0 {
		badRequest(c, "Invalid request body", errNoInputImages)
		return req, false
	}
	return req, true
}

// rejectOverBudget answers 422 for plans that break the limits unless the
// caller forces them through
func (h *RenderHandler) rejectOverBudget(c *gin.Context, plan pipeline.Plan, force bool) bool {
	if plan.Check.Allowed || force {
		return false
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"error":    "Batch exceeds budget limits",
		"reasons":  plan.Check.Reasons,
		"estimate": h.estimateResponse(plan.Estimate),
	})
	return true
}

// StartBatch handles POST /api/v1/batches
// Plans the batch and starts it on the in-process orchestrator
func (h *RenderHandler) StartBatch(c *gin.Context) {
	req, ok := h.bindStartBatch(c)
	if !ok {
		return
	}

	plan := h.planner.Plan(req.Plan, req.InputImages)
	if h.rejectOverBudget(c, plan, req.Force) {
		return
	}

	batchID, err := h.orchestrator.StartBatch(plan.Views, req.InputImages, req.Plan.Analysis, plan.GlobalSettings, nil)
	if err != nil {
		h.fail(c, "Failed to start batch", err)
		return
	}

	progress, err := h.orchestrator.BatchProgress(batchID)
	if err != nil {
		h.fail(c, "Failed to read batch progress", err)
		return
	}

	h.logger.Info("Batch submitted",
		slog.String("batch_id", batchID),
		slog.Int("views", len(plan.Views)),
		slog.Bool("forced", req.Force && !plan.Check.Allowed),
	)

	c.JSON(http.StatusAccepted, dto.StartBatchResponse{
		BatchID:    batchID,
		Views:      len(plan.Views),
		BaseViews:  plan.BaseViews,
		Removed:    len(plan.Removed),
		Skipped:    len(plan.Skipped),
		SavingsUSD: plan.SavingsUSD,
		Estimate:   h.estimateResponse(plan.Estimate),
		Check:      plan.Check,
		Progress:   dto.NewProgressDTO(progress),
	})
}

// EnqueueBatch handles POST /api/v1/batches/enqueue
// Plans the batch and hands it to the worker service through RabbitMQ
func (h *RenderHandler) EnqueueBatch(c *gin.Context) {
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Batch queue is not configured"})
		return
	}

	req, ok := h.bindStartBatch(c)
	if !ok {
		return
	}

	plan := h.planner.Plan(req.Plan, req.InputImages)
	if h.rejectOverBudget(c, plan, req.Force) {
		return
	}

	msg := pipeline.BatchRequest{
		RequestID:   uuid.New().String(),
		Plan:        req.Plan,
		InputImages: req.InputImages,
		Force:       req.Force,
	}

	if err := h.publisher.PublishJSON(c.Request.Context(), msg.RequestID, msg); err != nil {
		h.logger.Error("Failed to enqueue batch",
			slog.String("request_id", msg.RequestID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to enqueue batch"})
		return
	}

	h.logger.Info("Batch enqueued",
		slog.String("request_id", msg.RequestID),
		slog.Int("views", len(plan.Views)),
	)

	c.JSON(http.StatusAccepted, dto.EnqueueBatchResponse{
		RequestID: msg.RequestID,
		Views:     len(plan.Views),
		Skipped:   len(plan.Skipped),
		Estimate:  h.estimateResponse(plan.Estimate),
		Check:     plan.Check,
	})
}

// ListBatches handles GET /api/v1/batches
func (h *RenderHandler) ListBatches(c *gin.Context) {
	ids := h.orchestrator.Batches()
	batches := make([]dto.ProgressDTO, 0, len(ids))
	for _, id := range ids {
		p, err := h.orchestrator.BatchProgress(id)
		if err != nil {
			// cleared between the two calls
			continue
		}
		batches = append(batches, dto.NewProgressDTO(p))
	}

	c.JSON(http.StatusOK, gin.H{
		"batches":         batches,
		"active_jobs":     h.orchestrator.ActiveCount(),
		"max_concurrency": h.orchestrator.MaxConcurrency(),
	})
}

// GetBatch handles GET /api/v1/batches/:batch_id
func (h *RenderHandler) GetBatch(c *gin.Context) {
	p, err := h.orchestrator.BatchProgress(c.Param("batch_id"))
	if err != nil {
		h.fail(c, "Failed to get batch", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewProgressDTO(p))
}

// GetBatchJobs handles GET /api/v1/batches/:batch_id/jobs
func (h *RenderHandler) GetBatchJobs(c *gin.Context) {
	jobs, err := h.orchestrator.BatchJobs(c.Param("batch_id"))
	if err != nil {
		h.fail(c, "Failed to get batch jobs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// GetBatchResults handles GET /api/v1/batches/:batch_id/results
func (h *RenderHandler) GetBatchResults(c *gin.Context) {
	results, err := h.orchestrator.CompletedResults(c.Param("batch_id"))
	if err != nil {
		h.fail(c, "Failed to get batch results", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// CancelBatch handles POST /api/v1/batches/:batch_id/cancel
func (h *RenderHandler) CancelBatch(c *gin.Context) {
	batchID := c.Param("batch_id")
	if err := h.orchestrator.CancelBatch(batchID); err != nil {
		h.fail(c, "Failed to cancel batch", err)
		return
	}

	p, err := h.orchestrator.BatchProgress(batchID)
	if err != nil {
		h.fail(c, "Failed to get batch", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewProgressDTO(p))
}

// DeleteBatch handles DELETE /api/v1/batches/:batch_id
// Cancels the batch if needed and forgets it
func (h *RenderHandler) DeleteBatch(c *gin.Context) {
	if err := h.orchestrator.ClearBatch(c.Param("batch_id")); err != nil {
		h.fail(c, "Failed to delete batch", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RetryJob handles POST /api/v1/jobs/:job_id/retry
// An empty body reuses the batch's analysis and settings.
func (h *RenderHandler) RetryJob(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.RetryJobRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body", err)
			return
		}
	}

	if err := h.orchestrator.RetryJob(jobID, req.Analysis, req.Settings); err != nil {
		h.fail(c, "Failed to retry job", err)
		return
	}

	job, err := h.orchestrator.Job(jobID)
	if err != nil {
		h.fail(c, "Failed to get job", err)
		return
	}

	h.logger.Info("Job retry requested", slog.String("job_id", jobID))
	c.JSON(http.StatusAccepted, job)
}
