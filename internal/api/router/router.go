package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/api/handler"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options holds router-level settings. Zero values disable the feature.
type Options struct {
	ServiceName  string
	MaxBodyBytes int64
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Database     HealthChecker
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())
	if opts.Metrics != nil {
		r.Use(opts.Metrics.GinMiddleware())
	}
	if opts.MaxBodyBytes > 0 {
		r.Use(BodyLimitMiddleware(opts.MaxBodyBytes))
	}

	r.GET("/health", healthHandler(opts))

	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	h := handler.NewRenderHandler(deps)

	v1 := r.Group("/api/v1")
	{
		views := v1.Group("/views")
		{
			views.POST("/generate", h.GenerateViews)
			views.POST("/variants", h.ExpandVariants)
		}

		b := v1.Group("/budget")
		{
			b.POST("/estimate", h.EstimateBudget)
			b.POST("/check", h.CheckBudget)
			b.POST("/optimize", h.OptimizeBudget)
			b.POST("/suggestions", h.SuggestOptimizations)
		}

		batches := v1.Group("/batches")
		{
			batches.POST("", h.StartBatch)
			batches.POST("/enqueue", h.EnqueueBatch)
			batches.GET("", h.ListBatches)
			batches.GET("/:batch_id", h.GetBatch)
			batches.GET("/:batch_id/jobs", h.GetBatchJobs)
			batches.GET("/:batch_id/results", h.GetBatchResults)
			batches.POST("/:batch_id/cancel", h.CancelBatch)
			batches.DELETE("/:batch_id", h.DeleteBatch)
		}

		v1.POST("/jobs/:job_id/retry", h.RetryJob)

		history := v1.Group("/history")
		{
			history.GET("/jobs", h.ListJobHistory)
			history.GET("/jobs/:job_id", h.GetJobHistory)
		}

		c := v1.Group("/cache")
		{
			c.GET("/stats", h.CacheStats)
			c.POST("/stats/reset", h.ResetCacheStats)
			c.HEAD("/entries/:hash", h.CacheEntry)
			c.POST("/cleanup", h.CleanupCache)
			c.GET("/export", h.ExportCache)
			c.POST("/import", h.ImportCache)
			c.DELETE("", h.ClearCache)
		}
	}

	return r
}

func healthHandler(opts Options) gin.HandlerFunc {
	service := opts.ServiceName
	if service == "" {
		service = "render-api-service"
	}

	return func(c *gin.Context) {
		if opts.Database != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			defer cancel()
			if err := opts.Database.HealthCheck(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": service,
					"error":   err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": service,
		})
	}
}
