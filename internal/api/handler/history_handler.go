package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/api/dto"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toJobDTO(rec storage.JobRecord) dto.JobDTO {
	return dto.JobDTO{
		JobID:       rec.JobID,
		BatchID:     rec.BatchID,
		SpecID:      rec.SpecID,
		ViewType:    rec.ViewType,
		Model:       rec.Model,
		Status:      rec.Status,
		Attempts:    rec.Attempts,
		ImageURL:    rec.ImageURL,
		Error:       rec.Error,
		FromCache:   rec.FromCache,
		CostUSD:     rec.CostUSD,
		StartedAt:   formatTime(rec.StartedAt),
		CompletedAt: formatTime(rec.CompletedAt),
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   rec.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *RenderHandler) requireStore(c *gin.Context) bool {
	if h.store != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Job history is not configured"})
	return false
}

// ListJobHistory handles GET /api/v1/history/jobs
// Lists recorded render jobs, newest first, with keyset pagination
func (h *RenderHandler) ListJobHistory(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		badRequest(c, "Invalid cursor", err)
		return
	}

	records, err := h.store.ListJobs(c.Request.Context(), storage.JobFilter{
		BatchID:  req.BatchID,
		Status:   req.Status,
		ViewType: req.ViewType,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list job history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	hasMore := len(records) > req.PageSize
	if hasMore {
		records = records[:req.PageSize]
	}

	jobs := make([]dto.JobDTO, len(records))
	for i, rec := range records {
		jobs[i] = toJobDTO(rec)
	}

	var nextCursor string
	if hasMore {
		last := records[len(records)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{CreatedAt: last.CreatedAt, JobID: last.JobID})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobs,
		NextCursor: nextCursor,
	})
}

// GetJobHistory handles GET /api/v1/history/jobs/:job_id
func (h *RenderHandler) GetJobHistory(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	rec, err := h.store.GetJobByID(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		h.fail(c, "Failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(*rec))
}
