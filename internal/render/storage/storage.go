package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// ErrSnapshotNotFound is returned when no cache snapshot has been saved yet
var ErrSnapshotNotFound = errors.New("cache snapshot not found")

const recordTimeout = 5 * time.Second

const schema = `
	CREATE TABLE IF NOT EXISTS render_jobs (
		job_id       TEXT PRIMARY KEY,
		batch_id     TEXT NOT NULL,
		spec_id      TEXT NOT NULL,
		view_type    TEXT NOT NULL,
		model        TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		attempts     INTEGER NOT NULL DEFAULT 0,
		image_url    TEXT NOT NULL DEFAULT '',
		error        TEXT NOT NULL DEFAULT '',
		from_cache   BOOLEAN NOT NULL DEFAULT FALSE,
		cost_usd     DOUBLE PRECISION NOT NULL DEFAULT 0,
		started_at   TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS render_jobs_created_idx ON render_jobs (created_at DESC, job_id DESC);
	CREATE INDEX IF NOT EXISTS render_jobs_batch_idx ON render_jobs (batch_id);

	CREATE TABLE IF NOT EXISTS render_cache_snapshots (
		name       TEXT PRIMARY KEY,
		data       BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
`

type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// EnsureSchema creates the render tables when missing
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure render schema: %w", err)
	}
	return nil
}

// UpsertJob inserts a job row or refreshes its mutable columns
func (s *Storage) UpsertJob(ctx context.Context, rec *JobRecord) error {
	query := `
		INSERT INTO render_jobs (
			job_id, batch_id, spec_id, view_type, model,
			status, attempts, image_url, error, from_cache,
			cost_usd, started_at, completed_at, created_at, updated_at
		) VALUES (
			:job_id, :batch_id, :spec_id, :view_type, :model,
			:status, :attempts, :image_url, :error, :from_cache,
			:cost_usd, :started_at, :completed_at, :created_at, :updated_at
		)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			image_url = EXCLUDED.image_url,
			error = EXCLUDED.error,
			from_cache = EXCLUDED.from_cache,
			cost_usd = EXCLUDED.cost_usd,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to upsert render job: %w", err)
	}
	return nil
}

// RecordJob writes a job snapshot as history. Failures are logged and
// swallowed; history is a side record.
func (s *Storage) RecordJob(ctx context.Context, job domain.BatchJob) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	rec := RecordFromJob(job, time.Now())
	if err := s.UpsertJob(ctx, &rec); err != nil {
		s.logger.Warn("Failed to record render job",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
			slog.Any("error", err),
		)
	}
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*JobRecord, error) {
	var rec JobRecord
	query := `
		SELECT
			job_id, batch_id, spec_id, view_type, model,
			status, attempts, image_url, error, from_cache,
			cost_usd, started_at, completed_at, created_at, updated_at
		FROM render_jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &rec, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get render job: %w", err)
	}

	return &rec, nil
}

type JobFilter struct {
	BatchID  string
	Status   string
	ViewType string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 rows so callers can tell whether a next
// page exists
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]JobRecord, error) {
	query, args := buildListQuery(filter)

	var records []JobRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list render jobs: %w", err)
	}

	return records, nil
}

func buildListQuery(filter JobFilter) (string, []interface{}) {
	query := `
		SELECT
			job_id, batch_id, spec_id, view_type, model,
			status, attempts, image_url, error, from_cache,
			cost_usd, started_at, completed_at, created_at, updated_at
		FROM render_jobs
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.BatchID != "" {
		query += fmt.Sprintf(" AND batch_id = $%d", argIdx)
		args = append(args, filter.BatchID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.ViewType != "" {
		query += fmt.Sprintf(" AND view_type = $%d", argIdx)
		args = append(args, filter.ViewType)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	return query, args
}

// SaveCacheSnapshot stores an exported cache blob under name
func (s *Storage) SaveCacheSnapshot(ctx context.Context, name string, data []byte) error {
	query := `
		INSERT INTO render_cache_snapshots (name, data, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			data = EXCLUDED.data,
			created_at = EXCLUDED.created_at
	`

	if _, err := s.db.ExecContext(ctx, query, name, data, time.Now()); err != nil {
		return fmt.Errorf("failed to save cache snapshot: %w", err)
	}
	return nil
}

// LoadCacheSnapshot returns the blob saved under name
func (s *Storage) LoadCacheSnapshot(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	query := `SELECT data FROM render_cache_snapshots WHERE name = $1`

	err := s.db.GetContext(ctx, &data, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache snapshot: %w", err)
	}
	return data, nil
}
