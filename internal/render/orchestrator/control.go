package orchestrator

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/prompt"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/provider"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/viewspec"
)

// BuildRequest derives the provider request for a spec. The result is a pure
// function of its inputs, which keeps cache hashes stable across batches.
func BuildRequest(
	spec domain.ViewSpec,
	image string,
	analysis domain.Analysis,
	settings domain.GlobalRenderSettings,
) provider.Request {
	style := settings.Anchor.Style
	if style == "" {
		style = analysis.Project.Style
	}

	seed := settings.Anchor.SharedSeed
	if seed == 0 {
		seed = viewspec.SharedSeed(settings.Anchor)
	}

	model := spec.Model
	if model == "" {
		model = settings.DefaultModel
	}

	return provider.Request{
		InputImage:     image,
		Style:          provider.LegacyStyle(style),
		ViewAngle:      spec.ViewAngle,
		TimeOfDay:      spec.TimeOfDay,
		Quality:        provider.LegacyQuality(spec.Quality),
		VariationCount: 1,
		Model:          model,
		Prompt:         prompt.Build(spec, analysis, settings),
		NegativePrompt: prompt.Negative(spec),
		Seed:           seed,
	}
}

// CancelBatch stops dispatching for the batch, relabels every queued or
// processing job as cancelled and aborts in-flight provider calls. Calling it
// again is a no-op.
func (o *Orchestrator) CancelBatch(batchID string) error {
	o.mu.Lock()
	b, ok := o.batches[batchID]
	if !ok {
		o.mu.Unlock()
		return domain.ErrBatchNotFound
	}
	if b.cancelled && o.remainingLocked(b) == 0 {
		o.mu.Unlock()
		return nil
	}

	b.cancelled = true
	if b.state == domain.BatchStateRunning {
		b.state = domain.BatchStateCancelling
	}
	n := o.cancelPendingLocked(b)
	b.cancel()

	drained := false
	if b.looping {
		o.notifyLocked()
	} else {
		drained = o.markDrainedLocked(b)
	}
	snaps := o.snapshotsLocked(b)
	o.mu.Unlock()

	o.logger.Info("Batch cancelled",
		slog.String("batch_id", batchID),
		slog.Int("cancelled_jobs", n),
	)

	for _, snap := range snaps {
		if snap.Status == domain.JobStatusCancelled {
			o.recorder.RecordJob(context.Background(), snap)
		}
	}
	o.emit(b)
	if drained {
		o.emit(b)
	}
	return nil
}

// RetryJob requeues a failed job and runs it on a dedicated goroutine outside
// the batch loop, subject to the same concurrency ceiling. A nil analysis or
// settings reuses the batch values. Jobs in any other state return
// ErrJobNotRetryable and are left untouched.
func (o *Orchestrator) RetryJob(jobID string, analysis *domain.Analysis, settings *domain.GlobalRenderSettings) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return domain.ErrOrchestratorClosed
	}
	j, ok := o.jobs[jobID]
	if !ok {
		o.mu.Unlock()
		return domain.ErrJobNotFound
	}
	b, ok := o.batches[j.BatchID]
	if !ok {
		o.mu.Unlock()
		return domain.ErrJobNotFound
	}
	if j.Status != domain.JobStatusFailed {
		o.mu.Unlock()
		return domain.ErrJobNotRetryable
	}

	if analysis != nil {
		b.analysis = *analysis
	}
	if settings != nil {
		b.settings = *settings
	}

	// an explicit retry reopens a cancelled batch
	if b.cancelled {
		b.cancelled = false
		b.ctx, b.cancel = context.WithCancel(context.Background())
	}
	if b.state == domain.BatchStateDrained {
		b.done = make(chan struct{})
	}
	b.state = domain.BatchStateRunning

	j.Status = domain.JobStatusQueued
	j.Error = ""
	j.Progress = 0
	j.Result = nil
	j.StartedAt = nil
	j.CompletedAt = nil
	snap := *j
	ctx := b.ctx

	o.notifyLocked()
	o.wg.Add(1)
	o.mu.Unlock()

	o.logger.Info("Retrying render job",
		slog.String("batch_id", b.id),
		slog.String("job_id", jobID),
		slog.Int("attempts", snap.Attempts),
	)
	o.recorder.RecordJob(ctx, snap)
	o.emit(b)

	go o.runSingle(ctx, b, jobID)
	return nil
}

// runSingle waits for a slot and executes one job, unless the batch loop or
// a cancel got to it first.
func (o *Orchestrator) runSingle(ctx context.Context, b *batch, jobID string) {
	defer o.wg.Done()

	if err := o.slots.Acquire(ctx, 1); err != nil {
		// cancelled while waiting; CancelBatch already relabelled the job
		o.mu.Lock()
		drained := false
		if !b.looping {
			drained = o.markDrainedLocked(b)
		}
		o.mu.Unlock()
		if drained {
			o.emit(b)
		}
		return
	}

	o.mu.Lock()
	j, ok := o.jobs[jobID]
	if !ok || j.Status != domain.JobStatusQueued {
		o.slots.Release(1)
		o.notifyLocked()
		o.mu.Unlock()
		return
	}
	o.claimLocked(j)
	snap := *j
	o.wg.Add(1)
	o.mu.Unlock()

	o.recorder.RecordJob(ctx, snap)
	o.emit(b)
	o.execute(b, jobID)
}

// Wait blocks until the batch drains or ctx is done
func (o *Orchestrator) Wait(ctx context.Context, batchID string) error {
	o.mu.Lock()
	b, ok := o.batches[batchID]
	if !ok {
		o.mu.Unlock()
		return domain.ErrBatchNotFound
	}
	done := b.done
	o.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BatchProgress returns the progress snapshot of a batch
func (o *Orchestrator) BatchProgress(batchID string) (domain.BatchProgress, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.batches[batchID]
	if !ok {
		return domain.BatchProgress{}, domain.ErrBatchNotFound
	}
	return o.progressLocked(b), nil
}

// BatchJobs returns job snapshots in creation order
func (o *Orchestrator) BatchJobs(batchID string) ([]domain.BatchJob, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.batches[batchID]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	return o.snapshotsLocked(b), nil
}

// Job returns a snapshot of a single job
func (o *Orchestrator) Job(jobID string) (domain.BatchJob, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	j, ok := o.jobs[jobID]
	if !ok {
		return domain.BatchJob{}, domain.ErrJobNotFound
	}
	return *j, nil
}

// CompletedResults returns the generated views of completed jobs
func (o *Orchestrator) CompletedResults(batchID string) ([]domain.GeneratedView, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.batches[batchID]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}

	results := make([]domain.GeneratedView, 0, len(b.jobIDs))
	for _, id := range b.jobIDs {
		j, ok := o.jobs[id]
		if ok && j.Status == domain.JobStatusCompleted && j.Result != nil {
			results = append(results, *j.Result)
		}
	}
	return results, nil
}

// Batches returns the ids of every known batch
func (o *Orchestrator) Batches() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, 0, len(o.batches))
	for id := range o.batches {
		ids = append(ids, id)
	}
	return ids
}

// ClearBatch cancels the batch and forgets it and its jobs
func (o *Orchestrator) ClearBatch(batchID string) error {
	if err := o.CancelBatch(batchID); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.batches[batchID]
	if !ok {
		return nil
	}
	for _, id := range b.jobIDs {
		delete(o.jobs, id)
	}
	delete(o.batches, batchID)

	o.logger.Info("Batch cleared", slog.String("batch_id", batchID))
	return nil
}

func (o *Orchestrator) snapshotsLocked(b *batch) []domain.BatchJob {
	out := make([]domain.BatchJob, 0, len(b.jobIDs))
	for _, id := range b.jobIDs {
		if j, ok := o.jobs[id]; ok {
			out = append(out, *j)
		}
	}
	return out
}

// progressLocked aggregates job counters. ETA spreads the remaining jobs over
// the slot count using the mean duration of completed jobs. Caller holds mu.
func (o *Orchestrator) progressLocked(b *batch) domain.BatchProgress {
	p := domain.BatchProgress{
		BatchID: b.id,
		State:   b.state,
	}

	var spent time.Duration
	finished := 0
	for _, id := range b.jobIDs {
		j, ok := o.jobs[id]
		if !ok {
			continue
		}
		p.Total++
		switch j.Status {
		case domain.JobStatusQueued:
			p.Queued++
		case domain.JobStatusProcessing:
			p.Processing++
		case domain.JobStatusCompleted:
			p.Completed++
			if d := j.Duration(); d > 0 {
				spent += d
				finished++
			}
		case domain.JobStatusFailed:
			p.Failed++
		case domain.JobStatusCancelled:
			p.Cancelled++
		}
	}

	if p.Total > 0 {
		p.Overall = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}

	avg := o.defaultDuration
	if finished > 0 {
		avg = spent / time.Duration(finished)
	}
	p.ETA = avg * time.Duration(p.Remaining()) / time.Duration(o.maxConcurrency)

	return p
}
