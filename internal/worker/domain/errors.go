package domain

import "errors"

var (
	// ErrInvalidPayload is returned when a queued batch request cannot be used
	ErrInvalidPayload = errors.New("invalid batch payload")

	// ErrBudgetExceeded is returned when a planned batch breaks its limits
	ErrBudgetExceeded = errors.New("batch exceeds budget limits")

	// ErrEmptyBatch is returned when planning yields no renderable view
	ErrEmptyBatch = errors.New("batch has no renderable views")

	// ErrBatchTimedOut is returned when a batch does not drain within the batch timeout
	ErrBatchTimedOut = errors.New("batch timed out")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
