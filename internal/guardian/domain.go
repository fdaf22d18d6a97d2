package guardian

import (
	"context"
	"time"
)

// JobID identifies a monitored job (a workflow of the content pipeline)
type JobID string

// Conclusion is the terminal outcome of a run
type Conclusion string

// Run conclusion constants
const (
	ConclusionSuccess Conclusion = "success"
	ConclusionFailure Conclusion = "failure"
	ConclusionUnknown Conclusion = "unknown"
)

// Run status values reported by providers for runs that have not finished
const (
	RunStatusQueued     = "queued"
	RunStatusInProgress = "in_progress"
)

// Job outcome states
const (
	StateFetchFailed = "fetch_failed"
	StateHealthy     = "healthy"
	StateRetried     = "retried"
	StateRetryFailed = "retry_failed"
	StateWouldRetry  = "would_retry"
)

// RawRun is a run record as delivered by a history provider, before parsing
type RawRun struct {
	ID         string
	Status     string
	Conclusion string
	CreatedAt  string // RFC 3339
	URL        string
}

// RunRecord is a parsed run of a monitored job
type RunRecord struct {
	JobID      JobID      `json:"job_id"`
	RunID      string     `json:"run_id"`
	Status     string     `json:"status,omitempty"`
	Conclusion Conclusion `json:"conclusion"`
	CreatedAt  time.Time  `json:"created_at"`
	URL        string     `json:"url,omitempty"`
}

// RunHistorySource returns the most recent runs of a job, most recent first
type RunHistorySource interface {
	RecentRuns(ctx context.Context, job JobID) ([]RawRun, error)
}

// RetryTrigger requests that the job owning run be re-run
type RetryTrigger interface {
	Retry(ctx context.Context, run RunRecord) error
}

// Action is a remediation attempt taken by the guardian
type Action struct {
	JobID   JobID
	RunID   string
	Type    string
	Success bool
	Detail  string
}

// Journal action types
const (
	// ActionTypeRetry marks a rerun request sent to the CI provider
	ActionTypeRetry = "retry"
	// ActionTypeEnqueue marks a retry request handed to the queue; the worker journals the rerun itself
	ActionTypeEnqueue = "enqueue"
)

// ActionTyper is implemented by retry triggers whose journal entries are not plain retries
type ActionTyper interface {
	ActionType() string
}

// Journal records remediation attempts
type Journal interface {
	RecordAction(ctx context.Context, action Action) error
}

// JobOutcome summarizes what happened to a single job during an evaluation
type JobOutcome struct {
	JobID     JobID      `json:"job_id"`
	State     string     `json:"state"`
	RunsSeen  int        `json:"runs_seen"` // runs that parsed; malformed payloads are not counted
	FailedRun *RunRecord `json:"failed_run,omitempty"`
}

// Result is the aggregate outcome of one Evaluate call
type Result struct {
	Checked    int           `json:"checked"`
	Failed     int           `json:"failed"`
	Retried    int           `json:"retried"`
	Errors     []string      `json:"errors"`
	Window     time.Duration `json:"window"`
	DryRun     bool          `json:"dry_run"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Jobs       []JobOutcome  `json:"jobs"`
}

// OK reports whether the evaluation finished without unresolved errors
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

func (r *Result) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}
