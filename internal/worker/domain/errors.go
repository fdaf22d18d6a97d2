package domain

import "errors"

var (
	// ErrInvalidMessage is returned when a retry request cannot be processed as received
	ErrInvalidMessage = errors.New("invalid retry request")

	// ErrMaxRetriesExceeded is returned when a redelivered request fails again with a temporary error
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrRequestCompleted is returned when a redelivered request was already settled successfully
	ErrRequestCompleted = errors.New("retry request already completed")
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
