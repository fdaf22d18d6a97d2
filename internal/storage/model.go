package storage

import (
	"errors"
	"time"
)

var (
	// ErrRunNotFound is returned when a run cannot be found in the database
	ErrRunNotFound = errors.New("run not found")
)

// Run is a workflow run row
type Run struct {
	RunID      string    `db:"run_id"`
	JobID      string    `db:"job_id"`
	Status     string    `db:"status"`
	Conclusion string    `db:"conclusion"`
	HTMLURL    string    `db:"html_url"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Action is a remediation journal row
type Action struct {
	ActionID   string    `db:"action_id"`
	JobID      string    `db:"job_id"`
	RunID      string    `db:"run_id"`
	ActionType string    `db:"action_type"`
	Success    bool      `db:"success"`
	Detail     string    `db:"detail"`
	CreatedAt  time.Time `db:"created_at"`
}

// RunFilter narrows ListRuns
type RunFilter struct {
	JobID      string
	Conclusion string
	PageSize   int
	Cursor     *RunCursor
}

// RunCursor is a keyset pagination position
type RunCursor struct {
	CreatedAt time.Time
	RunID     string
}
