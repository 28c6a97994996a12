package domain

import "time"

// JobStatus is the lifecycle state of a single render job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition happens without a retry.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// BatchState is the lifecycle state of a whole batch.
type BatchState string

const (
	BatchStateCreated    BatchState = "created"
	BatchStateRunning    BatchState = "running"
	BatchStateCancelling BatchState = "cancelling"
	BatchStateDrained    BatchState = "drained"
)

// GeneratedView is the outcome of a successful render.
type GeneratedView struct {
	ID             string        `json:"id"`
	Spec           ViewSpec      `json:"spec"`
	ImageURL       string        `json:"image_url"`
	ThumbnailURL   string        `json:"thumbnail_url,omitempty"`
	Prompt         string        `json:"prompt"`
	NegativePrompt string        `json:"negative_prompt,omitempty"`
	Model          string        `json:"model"`
	GeneratedAt    time.Time     `json:"generated_at"`
	ProcessingTime time.Duration `json:"processing_time"`
	CostUSD        float64       `json:"cost_usd"`
	FromCache      bool          `json:"from_cache"`
}

// BatchJob is the orchestrator's mutable record for one spec. Copies handed
// to callers are snapshots.
type BatchJob struct {
	ID          string         `json:"id"`
	BatchID     string         `json:"batch_id"`
	Spec        ViewSpec       `json:"spec"`
	InputImage  string         `json:"-"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress"`
	Result      *GeneratedView `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Attempts    int            `json:"attempts"`
}

// Duration returns how long the job ran, or zero while unfinished.
func (j BatchJob) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// BatchProgress aggregates the state of every job in a batch.
type BatchProgress struct {
	BatchID    string        `json:"batch_id"`
	State      BatchState    `json:"state"`
	Total      int           `json:"total"`
	Queued     int           `json:"queued"`
	Processing int           `json:"processing"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
	Cancelled  int           `json:"cancelled"`
	Overall    int           `json:"overall"`
	ETA        time.Duration `json:"eta"`
}

// Remaining is the number of jobs still queued or processing.
func (p BatchProgress) Remaining() int {
	return p.Queued + p.Processing
}

// Done reports whether every job has reached a terminal state.
func (p BatchProgress) Done() bool {
	return p.Remaining() == 0
}
