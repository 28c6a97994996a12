package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/pipeline"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer starts consuming with manual acks and the configured prefetch
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	if w.broker == nil {
		return nil, fmt.Errorf("rabbitmq broker is nil")
	}

	deliveries, err := w.broker.Consume(w.workerID, w.prefetchCount)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.Int("prefetch_count", w.prefetchCount),
	)

	return deliveries, nil
}

// parseBatchRequest decodes and validates a delivery body
func parseBatchRequest(body []byte) (pipeline.BatchRequest, error) {
	var req pipeline.BatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if _, err := uuid.Parse(req.RequestID); err != nil {
		return req, fmt.Errorf("%w: request_id %q is not a UUID", domain.ErrInvalidPayload, req.RequestID)
	}
	if len(req.InputImages) == 0 {
		return req, fmt.Errorf("%w: no input images", domain.ErrInvalidPayload)
	}
	return req, nil
}

// startMessageDispatcher hands parsed deliveries to the worker pool
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			req, err := parseBatchRequest(delivery.Body)
			if err != nil {
				w.logger.Error("Rejecting malformed batch request",
					slog.String("message_id", delivery.MessageId),
					slog.String("error", err.Error()),
				)
				// dead-letter, never requeue
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			msg := &domain.BatchMessage{Request: req, Delivery: delivery}

			select {
			case w.jobsChan <- msg:
				w.logger.Debug("Batch request dispatched to worker pool",
					slog.String("request_id", req.RequestID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching batch")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}
