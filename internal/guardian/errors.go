package guardian

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTimestamp is returned when a run carries no creation timestamp
	ErrEmptyTimestamp = errors.New("empty created_at timestamp")

	// ErrMissingRunID is returned when a run carries no identifier
	ErrMissingRunID = errors.New("missing run id")

	// ErrEmptyJobID is returned when an empty job identifier is evaluated
	ErrEmptyJobID = errors.New("empty job id")
)

// FetchError wraps a failure of the history provider for a job
type FetchError struct {
	JobID JobID
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch runs for job %s: %v", e.JobID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError wraps a malformed run payload
type ParseError struct {
	JobID JobID
	RunID string
	Err   error
}

func (e *ParseError) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("failed to parse run of job %s: %v", e.JobID, e.Err)
	}
	return fmt.Sprintf("failed to parse run %s of job %s: %v", e.RunID, e.JobID, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RetryError wraps a rejected or failed retry request
type RetryError struct {
	JobID JobID
	RunID string
	Err   error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed to retry run %s of job %s: %v", e.RunID, e.JobID, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}
