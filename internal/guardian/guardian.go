package guardian

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/metrics"
)

const (
	// DefaultWindow is the trailing window in which a failure is actionable
	DefaultWindow = 2 * time.Hour

	// DefaultCallTimeout bounds each provider and trigger call
	DefaultCallTimeout = 30 * time.Second

	// DefaultHealthLookback is the span covered by a health summary
	DefaultHealthLookback = 24 * time.Hour
)

// Config holds guardian dependencies
type Config struct {
	Source      RunHistorySource
	Trigger     RetryTrigger
	Journal     Journal // optional
	Logger      *slog.Logger
	CallTimeout time.Duration
	Now         func() time.Time
	DryRun      bool
}

// Guardian evaluates monitored jobs and retries recent failures
type Guardian struct {
	source      RunHistorySource
	trigger     RetryTrigger
	journal     Journal
	logger      *slog.Logger
	callTimeout time.Duration
	now         func() time.Time
	dryRun      bool
}

// New creates a new Guardian instance
func New(cfg *Config) *Guardian {
	g := &Guardian{
		source:      cfg.Source,
		trigger:     cfg.Trigger,
		journal:     cfg.Journal,
		logger:      cfg.Logger,
		callTimeout: cfg.CallTimeout,
		now:         cfg.Now,
		dryRun:      cfg.DryRun,
	}

	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.callTimeout <= 0 {
		g.callTimeout = DefaultCallTimeout
	}
	if g.now == nil {
		g.now = func() time.Time { return time.Now().UTC() }
	}

	return g
}

// WithDryRun returns a copy of g that only reports what it would retry when dryRun is set
func (g *Guardian) WithDryRun(dryRun bool) *Guardian {
	clone := *g
	clone.dryRun = dryRun
	return &clone
}

// Evaluate inspects every job once and issues at most one retry per job.
// Per-job failures are captured in Result.Errors and never abort the pass.
func (g *Guardian) Evaluate(ctx context.Context, jobs []JobID, window time.Duration) Result {
	result := Result{
		Errors:    []string{},
		Window:    window,
		DryRun:    g.dryRun,
		StartedAt: g.now(),
		Jobs:      []JobOutcome{},
	}

	g.logger.Info("Starting evaluation",
		slog.Int("jobs", len(jobs)),
		slog.Duration("window", window),
		slog.Bool("dry_run", g.dryRun),
	)

	for _, job := range uniqueJobs(jobs) {
		outcome := g.evaluateJob(ctx, job, window, &result)
		result.Jobs = append(result.Jobs, outcome)
	}

	result.FinishedAt = g.now()
	metrics.EvaluationDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

	g.logger.Info("Evaluation finished",
		slog.Int("checked", result.Checked),
		slog.Int("failed", result.Failed),
		slog.Int("retried", result.Retried),
		slog.Int("errors", len(result.Errors)),
	)

	return result
}

func (g *Guardian) evaluateJob(ctx context.Context, job JobID, window time.Duration, result *Result) JobOutcome {
	outcome := JobOutcome{JobID: job, State: StateHealthy}

	runs, ok := g.fetchRuns(ctx, job, func(kind string, err error) {
		g.recordError(result, kind, err)
	})
	if !ok {
		outcome.State = StateFetchFailed
		return outcome
	}

	result.Checked++
	metrics.JobsChecked.WithLabelValues(string(job)).Inc()
	outcome.RunsSeen = len(runs)

	now := g.now()
	for _, run := range runs {
		if !qualifies(run, now, window) {
			continue
		}

		result.Failed++
		metrics.JobsFailed.WithLabelValues(string(job)).Inc()
		failed := run
		outcome.FailedRun = &failed

		g.logger.Warn("Failed run inside window",
			slog.String("job_id", string(job)),
			slog.String("run_id", run.RunID),
			slog.Time("created_at", run.CreatedAt),
		)

		if g.dryRun {
			outcome.State = StateWouldRetry
			metrics.Retries.WithLabelValues(string(job), metrics.OutcomeDryRun).Inc()
			break
		}

		if g.retry(ctx, run, result) {
			outcome.State = StateRetried
		} else {
			outcome.State = StateRetryFailed
		}
		// at most one retry per job per pass
		break
	}

	return outcome
}

// fetchRuns loads and parses the job's history, newest first.
// Fetch and parse errors go to report. Returns false when the provider call itself failed.
func (g *Guardian) fetchRuns(ctx context.Context, job JobID, report func(kind string, err error)) ([]RunRecord, bool) {
	if strings.TrimSpace(string(job)) == "" {
		report(metrics.KindFetch, &FetchError{JobID: job, Err: ErrEmptyJobID})
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	raws, err := g.source.RecentRuns(callCtx, job)
	if err != nil {
		g.logger.Error("Failed to fetch run history",
			slog.String("job_id", string(job)),
			slog.Any("error", err),
		)
		report(metrics.KindFetch, &FetchError{JobID: job, Err: err})
		return nil, false
	}

	runs := make([]RunRecord, 0, len(raws))
	for _, raw := range raws {
		run, err := ParseRun(job, raw)
		if err != nil {
			g.logger.Warn("Skipping malformed run",
				slog.String("job_id", string(job)),
				slog.Any("error", err),
			)
			report(metrics.KindParse, err)
			continue
		}
		runs = append(runs, run)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return runs, true
}

func (g *Guardian) retry(ctx context.Context, run RunRecord, result *Result) bool {
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	g.logger.Info("Retrying workflow run",
		slog.String("job_id", string(run.JobID)),
		slog.String("run_id", run.RunID),
	)

	err := g.trigger.Retry(callCtx, run)
	g.journalRetry(ctx, run, err)

	if err != nil {
		g.logger.Error("Retry request failed",
			slog.String("job_id", string(run.JobID)),
			slog.String("run_id", run.RunID),
			slog.Any("error", err),
		)
		metrics.Retries.WithLabelValues(string(run.JobID), metrics.OutcomeFailure).Inc()
		g.recordError(result, metrics.KindRetry, &RetryError{JobID: run.JobID, RunID: run.RunID, Err: err})
		return false
	}

	result.Retried++
	metrics.Retries.WithLabelValues(string(run.JobID), metrics.OutcomeSuccess).Inc()
	return true
}

func (g *Guardian) journalRetry(ctx context.Context, run RunRecord, retryErr error) {
	if g.journal == nil {
		return
	}

	action := Action{
		JobID:   run.JobID,
		RunID:   run.RunID,
		Type:    ActionTypeRetry,
		Success: retryErr == nil,
		Detail:  "Retried failed workflow run",
	}
	if typed, ok := g.trigger.(ActionTyper); ok {
		action.Type = typed.ActionType()
		if action.Type == ActionTypeEnqueue {
			action.Detail = "Queued retry request"
		}
	}
	if retryErr != nil {
		action.Detail = retryErr.Error()
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	if err := g.journal.RecordAction(callCtx, action); err != nil {
		g.logger.Warn("Failed to record remediation action",
			slog.String("job_id", string(run.JobID)),
			slog.String("run_id", run.RunID),
			slog.Any("error", err),
		)
	}
}

func (g *Guardian) recordError(result *Result, kind string, err error) {
	metrics.GuardErrors.WithLabelValues(kind).Inc()
	result.addError(err)
}

// uniqueJobs drops repeated ids, keeping first occurrence order
func uniqueJobs(jobs []JobID) []JobID {
	seen := make(map[JobID]struct{}, len(jobs))
	out := make([]JobID, 0, len(jobs))
	for _, job := range jobs {
		if _, ok := seen[job]; ok {
			continue
		}
		seen[job] = struct{}{}
		out = append(out, job)
	}
	return out
}
