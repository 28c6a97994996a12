package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/orchestrator"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/pipeline"
	workerdomain "github.com/HerbertGourout/IntuitionConcept-sub005/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchTimeout bounds a batch when the config leaves it unset
const DefaultBatchTimeout = time.Hour

// Broker delivers queued batch requests
type Broker interface {
	Consume(consumerTag string, prefetchCount int) (<-chan amqp.Delivery, error)
}

// Planner turns a request into a budget-checked list of view specs that can
// render from the given page images
type Planner interface {
	Plan(req pipeline.PlanRequest, images map[int]string) pipeline.Plan
}

// Renderer runs planned batches
type Renderer interface {
	StartBatch(specs []domain.ViewSpec, inputImages map[int]string, analysis domain.Analysis, settings domain.GlobalRenderSettings, onProgress orchestrator.ProgressFunc) (string, error)
	Wait(ctx context.Context, batchID string) error
	CancelBatch(batchID string) error
	BatchProgress(batchID string) (domain.BatchProgress, error)
	BatchJobs(batchID string) ([]domain.BatchJob, error)
	ClearBatch(batchID string) error
}

// Publisher puts requests back on the batch queue
type Publisher interface {
	PublishJSON(ctx context.Context, messageID string, v any) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Broker        Broker
	Planner       Planner
	Renderer      Renderer
	Publisher     Publisher
	Concurrency   int
	PrefetchCount int
	BatchTimeout  time.Duration
	MaxRetries    int
	WorkerID      string
}

// Worker consumes batch requests and runs each one to completion
type Worker struct {
	logger        *slog.Logger
	broker        Broker
	planner       Planner
	renderer      Renderer
	publisher     Publisher
	concurrency   int
	prefetchCount int
	batchTimeout  time.Duration
	maxRetries    int
	workerID      string
	jobsChan      chan *workerdomain.BatchMessage
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	return &Worker{
		logger:        logger,
		broker:        cfg.Broker,
		planner:       cfg.Planner,
		renderer:      cfg.Renderer,
		publisher:     cfg.Publisher,
		concurrency:   concurrency,
		prefetchCount: prefetch,
		batchTimeout:  batchTimeout,
		maxRetries:    max(cfg.MaxRetries, 0),
		workerID:      workerID,
		jobsChan:      make(chan *workerdomain.BatchMessage),
	}
}

// ID returns the consumer tag used by this worker
func (w *Worker) ID() string {
	return w.workerID
}

// Start consumes batch requests until ctx is cancelled or the delivery
// channel closes, then waits for in-flight batches to settle.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("batch_timeout", w.batchTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	w.spawnWorkerPool(gctx, g)
	g.Go(func() error {
		defer close(w.jobsChan)
		w.startMessageDispatcher(gctx, deliveries)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}

	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
	return nil
}
