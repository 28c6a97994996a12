package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/cache"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/provider"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxConcurrency     = 2
	DefaultJobTimeout         = 5 * time.Minute
	DefaultAssumedJobDuration = 60 * time.Second
)

// ProgressFunc receives batch snapshots. Calls for one batch are serialized.
type ProgressFunc func(domain.BatchProgress)

// JobRecorder receives a job snapshot on every status transition
type JobRecorder interface {
	RecordJob(ctx context.Context, job domain.BatchJob)
}

// Observer receives scheduling events; used for metrics
type Observer interface {
	BatchStarted(jobs int)
	JobStarted()
	JobFinished(status domain.JobStatus, d time.Duration, fromCache bool)
}

// Pricer prices a view for the result record
type Pricer interface {
	EstimateViewCost(view domain.ViewSpec) float64
}

type noopRecorder struct{}

func (noopRecorder) RecordJob(context.Context, domain.BatchJob) {}

type noopObserver struct{}

func (noopObserver) BatchStarted(int)                               {}
func (noopObserver) JobStarted()                                    {}
func (noopObserver) JobFinished(domain.JobStatus, time.Duration, bool) {}

// Config holds orchestrator dependencies and limits
type Config struct {
	Logger             *slog.Logger
	Provider           provider.Generator
	Cache              *cache.Cache
	Pricer             Pricer
	Recorder           JobRecorder
	Observer           Observer
	MaxConcurrency     int
	JobTimeout         time.Duration
	DefaultJobDuration time.Duration
	Now                func() time.Time
}

// Orchestrator owns batch and job state and dispatches jobs to the provider
// without ever holding more than MaxConcurrency provider slots.
type Orchestrator struct {
	logger          *slog.Logger
	provider        provider.Generator
	cache           *cache.Cache
	pricer          Pricer
	recorder        JobRecorder
	observer        Observer
	maxConcurrency  int
	jobTimeout      time.Duration
	defaultDuration time.Duration
	now             func() time.Time

	slots *semaphore.Weighted
	wg    sync.WaitGroup

	mu      sync.Mutex
	batches map[string]*batch
	jobs    map[string]*domain.BatchJob
	active  map[string]struct{}
	wake    chan struct{}
	closed  bool
}

type batch struct {
	id         string
	state      domain.BatchState
	jobIDs     []string
	analysis   domain.Analysis
	settings   domain.GlobalRenderSettings
	onProgress ProgressFunc
	ctx        context.Context
	cancel     context.CancelFunc
	cancelled  bool
	looping    bool
	done       chan struct{}
	emitMu     sync.Mutex
}

// New creates a new Orchestrator
func New(cfg *Config) *Orchestrator {
	o := &Orchestrator{
		logger:          cfg.Logger,
		provider:        cfg.Provider,
		cache:           cfg.Cache,
		pricer:          cfg.Pricer,
		recorder:        cfg.Recorder,
		observer:        cfg.Observer,
		maxConcurrency:  cfg.MaxConcurrency,
		jobTimeout:      cfg.JobTimeout,
		defaultDuration: cfg.DefaultJobDuration,
		now:             cfg.Now,
		batches:         make(map[string]*batch),
		jobs:            make(map[string]*domain.BatchJob),
		active:          make(map[string]struct{}),
		wake:            make(chan struct{}),
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.recorder == nil {
		o.recorder = noopRecorder{}
	}
	if o.observer == nil {
		o.observer = noopObserver{}
	}
	if o.maxConcurrency <= 0 {
		o.maxConcurrency = DefaultMaxConcurrency
	}
	if o.jobTimeout <= 0 {
		o.jobTimeout = DefaultJobTimeout
	}
	if o.defaultDuration <= 0 {
		o.defaultDuration = DefaultAssumedJobDuration
	}
	if o.now == nil {
		o.now = time.Now
	}
	o.slots = semaphore.NewWeighted(int64(o.maxConcurrency))
	return o
}

// MaxConcurrency returns the provider slot ceiling
func (o *Orchestrator) MaxConcurrency() int {
	return o.maxConcurrency
}

// ActiveCount returns how many jobs currently hold a provider slot
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// StartBatch registers one job per spec that resolves to an input image and
// starts scheduling in the background. It returns without waiting for any
// render.
func (o *Orchestrator) StartBatch(
	specs []domain.ViewSpec,
	inputImages map[int]string,
	analysis domain.Analysis,
	settings domain.GlobalRenderSettings,
	onProgress ProgressFunc,
) (string, error) {
	batchID := "batch-" + uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	b := &batch{
		id:         batchID,
		state:      domain.BatchStateCreated,
		analysis:   analysis,
		settings:   settings,
		onProgress: onProgress,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	jobs := make([]*domain.BatchJob, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.ID] {
			o.logger.Warn("Duplicate view spec skipped",
				slog.String("batch_id", batchID),
				slog.String("spec_id", spec.ID),
			)
			continue
		}
		image, ok := resolveImage(spec, inputImages)
		if !ok {
			o.logger.Warn("No input image for view spec, skipping",
				slog.String("batch_id", batchID),
				slog.String("spec_id", spec.ID),
			)
			continue
		}
		seen[spec.ID] = true
		jobs = append(jobs, &domain.BatchJob{
			ID:         JobID(batchID, spec.ID),
			BatchID:    batchID,
			Spec:       spec.Clone(),
			InputImage: image,
			Status:     domain.JobStatusQueued,
		})
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		cancel()
		return "", domain.ErrOrchestratorClosed
	}
	for _, j := range jobs {
		o.jobs[j.ID] = j
		b.jobIDs = append(b.jobIDs, j.ID)
	}
	b.state = domain.BatchStateRunning
	b.looping = true
	o.batches[batchID] = b
	o.wg.Add(1)
	o.mu.Unlock()

	o.observer.BatchStarted(len(jobs))
	o.logger.Info("Batch started",
		slog.String("batch_id", batchID),
		slog.Int("jobs", len(jobs)),
		slog.Int("dropped", len(specs)-len(jobs)),
		slog.Int("max_concurrency", o.maxConcurrency),
	)

	for _, j := range jobs {
		o.recorder.RecordJob(ctx, *j)
	}

	go o.run(b)
	return batchID, nil
}

// JobID derives the job id from its batch and spec
func JobID(batchID, specID string) string {
	return batchID + "_" + specID
}

func resolveImage(spec domain.ViewSpec, images map[int]string) (string, bool) {
	if spec.PageIndex == nil {
		return "", false
	}
	image, ok := images[*spec.PageIndex]
	if !ok || image == "" {
		return "", false
	}
	return image, true
}

// run is the scheduling loop of one batch. It dispatches while slots are
// free, then sleeps until a slot is released, a job is requeued or the batch
// is cancelled.
func (o *Orchestrator) run(b *batch) {
	defer o.wg.Done()

	for {
		o.mu.Lock()
		if b.cancelled {
			o.cancelPendingLocked(b)
		}
		if o.remainingLocked(b) == 0 {
			b.looping = false
			drained := o.markDrainedLocked(b)
			o.mu.Unlock()
			if drained {
				o.emit(b)
			}
			return
		}

		wake := o.wake
		ctx := b.ctx
		claimed := o.dispatchLocked(b)
		o.mu.Unlock()

		for _, snap := range claimed {
			o.recorder.RecordJob(ctx, snap)
		}
		if len(claimed) > 0 {
			o.emit(b)
		}

		select {
		case <-wake:
		case <-ctx.Done():
		}
	}
}

// dispatchLocked claims queued jobs while provider slots are available.
// It never blocks. Caller holds mu.
func (o *Orchestrator) dispatchLocked(b *batch) []domain.BatchJob {
	var claimed []domain.BatchJob
	for _, id := range b.jobIDs {
		j, ok := o.jobs[id]
		if !ok || j.Status != domain.JobStatusQueued {
			continue
		}
		if !o.slots.TryAcquire(1) {
			break
		}
		o.claimLocked(j)
		claimed = append(claimed, *j)

		o.wg.Add(1)
		go o.execute(b, j.ID)
	}
	return claimed
}

// claimLocked moves a queued job to processing. The caller holds a slot.
func (o *Orchestrator) claimLocked(j *domain.BatchJob) {
	now := o.now()
	j.Status = domain.JobStatusProcessing
	j.StartedAt = &now
	j.CompletedAt = nil
	j.Progress = 0
	j.Attempts++
	o.active[j.ID] = struct{}{}
	o.observer.JobStarted()
}

// execute runs one claimed job and always gives its slot back
func (o *Orchestrator) execute(b *batch, jobID string) {
	defer o.wg.Done()

	o.mu.Lock()
	j, ok := o.jobs[jobID]
	if !ok {
		o.releaseLocked(jobID)
		o.mu.Unlock()
		return
	}
	spec := j.Spec
	image := j.InputImage
	analysis, settings := b.analysis, b.settings
	ctx := b.ctx
	o.mu.Unlock()

	start := o.now()
	result, fromCache, err := o.render(ctx, b, jobID, spec, image, analysis, settings)
	o.complete(b, jobID, start, result, fromCache, err)
}

// render consults the cache, then the provider. Provider panics become
// job failures.
func (o *Orchestrator) render(
	ctx context.Context,
	b *batch,
	jobID string,
	spec domain.ViewSpec,
	image string,
	analysis domain.Analysis,
	settings domain.GlobalRenderSettings,
) (result *domain.GeneratedView, fromCache bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()

	req := BuildRequest(spec, image, analysis, settings)
	hash := cache.Hash(spec, req, "")

	if o.cache != nil {
		if cached, ok := o.cache.Get(hash); ok {
			cached.ID = jobID
			cached.Spec = spec
			cached.FromCache = true
			o.logger.Info("Render served from cache",
				slog.String("batch_id", b.id),
				slog.String("job_id", jobID),
			)
			return &cached, true, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.jobTimeout)
	defer cancel()

	start := o.now()
	outputs, err := o.provider.Generate(callCtx, req, func(p provider.Progress) {
		o.updateProgress(b, jobID, p)
	})
	if err != nil {
		return nil, false, err
	}
	if len(outputs) == 0 || outputs[0].ImageURL == "" {
		return nil, false, domain.ErrNoOutput
	}

	cost := outputs[0].CostUSD
	if cost == 0 && o.pricer != nil {
		cost = o.pricer.EstimateViewCost(spec)
	}

	view := domain.GeneratedView{
		ID:             jobID,
		Spec:           spec,
		ImageURL:       outputs[0].ImageURL,
		ThumbnailURL:   outputs[0].ThumbnailURL,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Model:          string(req.Model),
		GeneratedAt:    o.now(),
		ProcessingTime: o.now().Sub(start),
		CostUSD:        cost,
	}
	if o.cache != nil {
		o.cache.Set(hash, spec, req, view)
	}
	return &view, false, nil
}

// complete records the outcome, frees the slot and wakes the loop. A job
// that was relabelled cancelled while in flight stays cancelled.
func (o *Orchestrator) complete(b *batch, jobID string, start time.Time, result *domain.GeneratedView, fromCache bool, err error) {
	o.mu.Lock()
	o.releaseLocked(jobID)

	j, ok := o.jobs[jobID]
	if !ok {
		o.mu.Unlock()
		return
	}

	now := o.now()
	switch {
	case j.Status != domain.JobStatusProcessing:
		// cancelled while the provider call was running
	case err != nil:
		j.Status = domain.JobStatusFailed
		j.Error = err.Error()
		j.CompletedAt = &now
	default:
		j.Status = domain.JobStatusCompleted
		j.Result = result
		j.Progress = 100
		j.CompletedAt = &now
	}
	snap := *j

	drained := false
	if !b.looping {
		drained = o.markDrainedLocked(b)
	}
	o.mu.Unlock()

	o.observer.JobFinished(snap.Status, now.Sub(start), fromCache)
	if err != nil {
		o.logger.Warn("Render job failed",
			slog.String("batch_id", b.id),
			slog.String("job_id", jobID),
			slog.String("status", string(snap.Status)),
			slog.Any("error", err),
		)
	} else {
		o.logger.Info("Render job finished",
			slog.String("batch_id", b.id),
			slog.String("job_id", jobID),
			slog.String("status", string(snap.Status)),
			slog.Bool("from_cache", fromCache),
		)
	}

	o.recorder.RecordJob(context.Background(), snap)
	o.emit(b)
	if drained {
		o.emit(b)
	}
}

// releaseLocked frees the job's slot and wakes waiting loops. Caller holds mu.
func (o *Orchestrator) releaseLocked(jobID string) {
	if _, ok := o.active[jobID]; !ok {
		return
	}
	delete(o.active, jobID)
	o.slots.Release(1)
	o.notifyLocked()
}

// notifyLocked wakes every scheduling loop. Caller holds mu.
func (o *Orchestrator) notifyLocked() {
	close(o.wake)
	o.wake = make(chan struct{})
}

func (o *Orchestrator) updateProgress(b *batch, jobID string, p provider.Progress) {
	o.mu.Lock()
	j, ok := o.jobs[jobID]
	if !ok || j.Status != domain.JobStatusProcessing {
		o.mu.Unlock()
		return
	}
	percent := int(math.Round(p.Percent))
	// 100 is reserved for the completed transition
	j.Progress = min(max(percent, 0), 99)
	o.mu.Unlock()

	o.emit(b)
}

// cancelPendingLocked relabels every non-terminal job. Caller holds mu.
func (o *Orchestrator) cancelPendingLocked(b *batch) int {
	now := o.now()
	n := 0
	for _, id := range b.jobIDs {
		j, ok := o.jobs[id]
		if !ok || j.Status.IsTerminal() {
			continue
		}
		j.Status = domain.JobStatusCancelled
		j.CompletedAt = &now
		n++
	}
	return n
}

func (o *Orchestrator) remainingLocked(b *batch) int {
	n := 0
	for _, id := range b.jobIDs {
		if j, ok := o.jobs[id]; ok && !j.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// markDrainedLocked flips the batch to drained once nothing is pending.
// It reports whether this call made the transition.
func (o *Orchestrator) markDrainedLocked(b *batch) bool {
	if b.state == domain.BatchStateDrained || o.remainingLocked(b) > 0 {
		return false
	}
	b.state = domain.BatchStateDrained
	close(b.done)
	o.logger.Info("Batch drained",
		slog.String("batch_id", b.id),
		slog.Bool("cancelled", b.cancelled),
	)
	return true
}

// emit delivers a progress snapshot to the batch callback outside mu
func (o *Orchestrator) emit(b *batch) {
	if b.onProgress == nil {
		return
	}
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	o.mu.Lock()
	progress := o.progressLocked(b)
	o.mu.Unlock()

	b.onProgress(progress)
}

// Close cancels every batch and waits for all goroutines to return. Pending
// jobs are relabelled cancelled so no Wait is left hanging.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	var drained []*batch
	for _, b := range o.batches {
		b.cancelled = true
		o.cancelPendingLocked(b)
		b.cancel()
		if !b.looping && o.markDrainedLocked(b) {
			drained = append(drained, b)
		}
	}
	o.notifyLocked()
	o.mu.Unlock()

	for _, b := range drained {
		o.emit(b)
	}
	o.wg.Wait()
}
