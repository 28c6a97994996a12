package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	renderdomain "github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/orchestrator"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/pipeline"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/worker/domain"
	"github.com/google/uuid"
)

// processBatch plans a queued request, runs it and waits for it to drain.
// Job-level failures do not fail the message. Failed views go back on the
// queue as a follow-up request until the attempt limit is reached.
func (w *Worker) processBatch(ctx context.Context, msg *domain.BatchMessage) error {
	req := msg.Request
	logger := w.logger.With(slog.String("request_id", req.RequestID))

	if err := ctx.Err(); err != nil {
		return domain.NewRetryableError(fmt.Errorf("worker shutting down: %w", err))
	}

	plan := w.planner.Plan(req.Plan, req.InputImages)
	views := plan.Views
	if len(req.Views) > 0 {
		views = req.Views
	} else if !plan.Check.Allowed && !req.Force {
		return fmt.Errorf("%w: %s", domain.ErrBudgetExceeded, strings.Join(plan.Check.Reasons, "; "))
	}
	if len(views) == 0 {
		return domain.ErrEmptyBatch
	}

	batchID, err := w.renderer.StartBatch(views, req.InputImages, req.Plan.Analysis, plan.GlobalSettings, w.progressLogger(logger))
	if err != nil {
		if errors.Is(err, renderdomain.ErrOrchestratorClosed) {
			return domain.NewRetryableError(fmt.Errorf("failed to start batch: %w", err))
		}
		return fmt.Errorf("failed to start batch: %w", err)
	}
	defer func() {
		if err := w.renderer.ClearBatch(batchID); err != nil {
			logger.Warn("Failed to clear batch", slog.String("batch_id", batchID), slog.String("error", err.Error()))
		}
	}()

	logger = logger.With(slog.String("batch_id", batchID))
	logger.Info("Batch running",
		slog.Int("views", len(views)),
		slog.Int("attempt", req.Attempt),
	)

	waitCtx, cancel := context.WithTimeout(ctx, w.batchTimeout)
	defer cancel()

	if err := w.renderer.Wait(waitCtx, batchID); err != nil {
		if cancelErr := w.renderer.CancelBatch(batchID); cancelErr != nil {
			logger.Warn("Failed to cancel batch", slog.String("error", cancelErr.Error()))
		}
		if ctx.Err() != nil {
			return domain.NewRetryableError(fmt.Errorf("batch %s interrupted: %w", batchID, ctx.Err()))
		}
		return fmt.Errorf("%w: %s after %s", domain.ErrBatchTimedOut, batchID, w.batchTimeout)
	}

	progress, err := w.renderer.BatchProgress(batchID)
	if err != nil {
		return fmt.Errorf("failed to read batch progress: %w", err)
	}
	if progress.Total == 0 {
		return fmt.Errorf("%w: no view resolved to an input image", domain.ErrEmptyBatch)
	}

	out := outcomeOf(progress)
	logger.Info("Batch finished",
		slog.Int("total", out.Total),
		slog.Int("completed", out.Completed),
		slog.Int("failed", out.Failed),
		slog.Int("cancelled", out.Cancelled),
	)

	if out.Failed > 0 {
		jobs, err := w.renderer.BatchJobs(batchID)
		if err != nil {
			return fmt.Errorf("failed to read batch jobs: %w", err)
		}
		w.requeueFailed(ctx, logger, req, failedViews(jobs))
	}
	return nil
}

// requeueFailed publishes the failed views as a follow-up request. Once the
// attempt limit is reached they are left as failed rows in the job history.
func (w *Worker) requeueFailed(ctx context.Context, logger *slog.Logger, req pipeline.BatchRequest, views []renderdomain.ViewSpec) {
	if w.publisher == nil || req.Attempt >= w.maxRetries {
		logger.Warn("Failed views not requeued",
			slog.Int("failed", len(views)),
			slog.Int("attempt", req.Attempt),
			slog.Int("max_retries", w.maxRetries),
		)
		return
	}

	next := pipeline.BatchRequest{
		RequestID:   uuid.New().String(),
		Plan:        req.Plan,
		InputImages: req.InputImages,
		Force:       req.Force,
		Views:       views,
		Attempt:     req.Attempt + 1,
	}
	if err := w.publisher.PublishJSON(ctx, next.RequestID, next); err != nil {
		logger.Error("Failed to requeue failed views",
			slog.Int("failed", len(views)),
			slog.String("error", err.Error()),
		)
		return
	}

	logger.Info("Failed views requeued",
		slog.String("retry_request_id", next.RequestID),
		slog.Int("views", len(views)),
		slog.Int("attempt", next.Attempt),
	)
}

func failedViews(jobs []renderdomain.BatchJob) []renderdomain.ViewSpec {
	var views []renderdomain.ViewSpec
	for _, j := range jobs {
		if j.Status == renderdomain.JobStatusFailed {
			views = append(views, j.Spec)
		}
	}
	return views
}

func (w *Worker) progressLogger(logger *slog.Logger) orchestrator.ProgressFunc {
	return func(p renderdomain.BatchProgress) {
		logger.Debug("Batch progress",
			slog.String("batch_id", p.BatchID),
			slog.Int("overall", p.Overall),
			slog.Int("remaining", p.Remaining()),
			slog.Duration("eta", p.ETA),
		)
	}
}

func outcomeOf(p renderdomain.BatchProgress) domain.Outcome {
	return domain.Outcome{
		BatchID:   p.BatchID,
		Total:     p.Total,
		Completed: p.Completed,
		Failed:    p.Failed,
		Cancelled: p.Cancelled,
	}
}
