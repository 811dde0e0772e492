package domain

import "errors"

var (
	// ErrReportNotFound is returned when a report cannot be found in the database
	ErrReportNotFound = errors.New("report not found")

	// ErrReportAlreadyClaimed is returned when attempting to claim a report that's not PENDING
	ErrReportAlreadyClaimed = errors.New("report already claimed or not in PENDING status")

	// ErrInvalidParams is returned when stored report params cannot be run
	ErrInvalidParams = errors.New("invalid report params")

	// ErrMaxRetriesExceeded is returned when a report has exceeded its retry limit
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
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
