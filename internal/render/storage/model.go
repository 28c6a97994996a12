package storage

import (
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
)

// JobRecord is one row of render_jobs
type JobRecord struct {
	JobID       string     `db:"job_id" json:"job_id"`
	BatchID     string     `db:"batch_id" json:"batch_id"`
	SpecID      string     `db:"spec_id" json:"spec_id"`
	ViewType    string     `db:"view_type" json:"view_type"`
	Model       string     `db:"model" json:"model"`
	Status      string     `db:"status" json:"status"`
	Attempts    int        `db:"attempts" json:"attempts"`
	ImageURL    string     `db:"image_url" json:"image_url,omitempty"`
	Error       string     `db:"error" json:"error,omitempty"`
	FromCache   bool       `db:"from_cache" json:"from_cache"`
	CostUSD     float64    `db:"cost_usd" json:"cost_usd"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// RecordFromJob flattens an orchestrator job snapshot into a row
func RecordFromJob(job domain.BatchJob, now time.Time) JobRecord {
	rec := JobRecord{
		JobID:       job.ID,
		BatchID:     job.BatchID,
		SpecID:      job.Spec.ID,
		ViewType:    string(job.Spec.Type),
		Model:       string(job.Spec.Model),
		Status:      string(job.Status),
		Attempts:    job.Attempts,
		Error:       job.Error,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if job.Result != nil {
		rec.ImageURL = job.Result.ImageURL
		rec.FromCache = job.Result.FromCache
		rec.CostUSD = job.Result.CostUSD
	}
	return rec
}
