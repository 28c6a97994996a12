package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/config"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/budget"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/cache"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/metrics"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/orchestrator"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/pipeline"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/provider"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/storage"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/variant"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/viewspec"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultSnapshotName    = "default"
	DefaultCleanupInterval = 10 * time.Minute
	snapshotTimeout        = 10 * time.Second
)

// SnapshotStore persists cache exports between restarts
type SnapshotStore interface {
	SaveCacheSnapshot(ctx context.Context, name string, data []byte) error
	LoadCacheSnapshot(ctx context.Context, name string) ([]byte, error)
}

// Options holds the runtime collaborators of an Engine. Provider defaults
// to a Replicate client built from the config.
type Options struct {
	Logger     *slog.Logger
	Provider   provider.Generator
	Recorder   orchestrator.JobRecorder
	Registerer prometheus.Registerer
	Now        func() time.Time
}

// Engine is the render stack shared by the API and worker services
type Engine struct {
	Cache        *cache.Cache
	Guardrail    *budget.Guardrail
	Planner      *pipeline.Planner
	Orchestrator *orchestrator.Orchestrator
	Metrics      *metrics.Metrics

	cfg    config.RenderConfig
	logger *slog.Logger
}

// New builds the render stack from config
func New(cfg config.RenderConfig, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.New(reg)

	renderCache := cache.New(cache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        cfg.Cache.TTL,
		Now:        opts.Now,
	}, logger.With(slog.String("component", "cache")))
	renderCache.SetObserver(m)

	guardrail := budget.NewGuardrail(
		cfg.Budget.GuardrailConfig(cfg.MaxConcurrency),
		logger.With(slog.String("component", "budget")),
	)

	planner := pipeline.NewPlanner(
		viewspec.NewGenerator(logger.With(slog.String("component", "viewspec"))),
		variant.NewExpander(cfg.Variants.MaxVariantsPerView),
		guardrail,
		logger.With(slog.String("component", "planner")),
	)

	gen := opts.Provider
	if gen == nil {
		gen = provider.NewReplicate(provider.ReplicateOptions{
			BaseURL:          cfg.Provider.BaseURL,
			APIToken:         cfg.Provider.APIToken,
			RequestTimeout:   cfg.Provider.RequestTimeout,
			PollInterval:     cfg.Provider.PollInterval,
			ExpectedDuration: cfg.Provider.ExpectedDuration,
			Logger:           logger.With(slog.String("component", "provider")),
		})
	}

	orch := orchestrator.New(&orchestrator.Config{
		Logger:             logger.With(slog.String("component", "orchestrator")),
		Provider:           gen,
		Cache:              renderCache,
		Pricer:             guardrail,
		Recorder:           opts.Recorder,
		Observer:           m,
		MaxConcurrency:     cfg.MaxConcurrency,
		JobTimeout:         cfg.JobTimeout,
		DefaultJobDuration: cfg.DefaultJobDuration,
		Now:                opts.Now,
	})

	return &Engine{
		Cache:        renderCache,
		Guardrail:    guardrail,
		Planner:      planner,
		Orchestrator: orch,
		Metrics:      m,
		cfg:          cfg,
		logger:       logger,
	}
}

func (e *Engine) snapshotName() string {
	if e.cfg.Cache.SnapshotName != "" {
		return e.cfg.Cache.SnapshotName
	}
	return DefaultSnapshotName
}

// RestoreCache loads the last snapshot when persistence is enabled. A
// missing or unreadable snapshot leaves the cache empty.
func (e *Engine) RestoreCache(ctx context.Context, store SnapshotStore) error {
	if !e.cfg.Cache.Persist || store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	data, err := store.LoadCacheSnapshot(ctx, e.snapshotName())
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		e.logger.Info("No render cache snapshot to restore", slog.String("snapshot", e.snapshotName()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load cache snapshot: %w", err)
	}

	if err := e.Cache.Import(data); err != nil {
		return err
	}

	e.logger.Info("Render cache restored",
		slog.String("snapshot", e.snapshotName()),
		slog.Int("entries", e.Cache.Len()),
	)
	return nil
}

// PersistCache saves a snapshot when persistence is enabled
func (e *Engine) PersistCache(ctx context.Context, store SnapshotStore) error {
	if !e.cfg.Cache.Persist || store == nil {
		return nil
	}

	data, err := e.Cache.Export()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	if err := store.SaveCacheSnapshot(ctx, e.snapshotName(), data); err != nil {
		return fmt.Errorf("failed to save cache snapshot: %w", err)
	}

	e.logger.Info("Render cache persisted",
		slog.String("snapshot", e.snapshotName()),
		slog.Int("entries", e.Cache.Len()),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// RunCacheCleanup drops expired entries on a ticker until ctx is done
func (e *Engine) RunCacheCleanup(ctx context.Context) {
	interval := e.cfg.Cache.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := e.Cache.Cleanup(); removed > 0 {
				e.logger.Debug("Expired render cache entries removed", slog.Int("removed", removed))
			}
		}
	}
}

// Close stops the orchestrator, cancelling any running batch
func (e *Engine) Close() {
	e.Orchestrator.Close()
}
