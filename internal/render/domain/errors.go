package domain

import "errors"

var (
	// ErrBatchNotFound is returned when a batch id is unknown to the orchestrator
	ErrBatchNotFound = errors.New("batch not found")

	// ErrJobNotFound is returned when a job id is unknown to the orchestrator
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotRetryable is returned when retrying a job that is not in failed status
	ErrJobNotRetryable = errors.New("job is not in failed status")

	// ErrOrchestratorClosed is returned when starting work on a closed orchestrator
	ErrOrchestratorClosed = errors.New("orchestrator closed")

	// ErrNoOutput is returned when the provider finishes without any image
	ErrNoOutput = errors.New("provider returned no output")
)
