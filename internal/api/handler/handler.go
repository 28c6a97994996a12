package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/cache"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/orchestrator"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/pipeline"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/storage"
	"github.com/gin-gonic/gin"
)

// JobStore reads the persisted job history
type JobStore interface {
	GetJobByID(ctx context.Context, jobID string) (*storage.JobRecord, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]storage.JobRecord, error)
}

// Publisher queues batch requests for the worker service
type Publisher interface {
	PublishJSON(ctx context.Context, messageID string, v any) error
}

// Dependencies holds all dependencies needed by handlers. Store and
// Publisher are optional; their routes answer 503 when unset.
type Dependencies struct {
	Logger       *slog.Logger
	Planner      *pipeline.Planner
	Orchestrator *orchestrator.Orchestrator
	Cache        *cache.Cache
	Store        JobStore
	Publisher    Publisher
}

// RenderHandler handles render-related HTTP requests
type RenderHandler struct {
	logger       *slog.Logger
	planner      *pipeline.Planner
	orchestrator *orchestrator.Orchestrator
	cache        *cache.Cache
	store        JobStore
	publisher    Publisher
}

// NewRenderHandler creates a new RenderHandler instance
func NewRenderHandler(deps *Dependencies) *RenderHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RenderHandler{
		logger:       logger,
		planner:      deps.Planner,
		orchestrator: deps.Orchestrator,
		cache:        deps.Cache,
		store:        deps.Store,
		publisher:    deps.Publisher,
	}
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBatchNotFound), errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrJobNotRetryable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOrchestratorClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *RenderHandler) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
