package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/worker/domain"
	"golang.org/x/sync/errgroup"
)

// spawnWorkerPool starts one loop per configured concurrency slot
func (w *Worker) spawnWorkerPool(ctx context.Context, g *errgroup.Group) {
	for i := 0; i < w.concurrency; i++ {
		workerNum := i
		g.Go(func() error {
			w.workerLoop(ctx, workerNum)
			return nil
		})
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
		slog.String("worker_id", w.workerID),
	)
}

// workerLoop processes batch messages until the dispatcher closes jobsChan
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	logger := w.logger.With(slog.String("worker_name", workerName))

	for msg := range w.jobsChan {
		requestID := msg.Request.RequestID
		err := w.processBatch(ctx, msg)

		if err != nil {
			requeue := shouldRequeue(err)
			logger.Error("Batch processing failed",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
				slog.Bool("requeue", requeue),
			)
			if nackErr := msg.Delivery.Nack(false, requeue); nackErr != nil {
				logger.Error("Failed to NACK message",
					slog.String("request_id", requestID),
					slog.String("error", nackErr.Error()),
				)
			}
			continue
		}

		if ackErr := msg.Delivery.Ack(false); ackErr != nil {
			logger.Error("Failed to ACK message",
				slog.String("request_id", requestID),
				slog.String("error", ackErr.Error()),
			)
		}
	}

	logger.Debug("Worker goroutine stopping - jobsChan closed")
}

// shouldRequeue reports whether a failed batch should go back on the queue
func shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrInvalidPayload) ||
		errors.Is(err, domain.ErrBudgetExceeded) ||
		errors.Is(err, domain.ErrEmptyBatch) ||
		errors.Is(err, domain.ErrBatchTimedOut) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
