package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	JobsChecked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_jobs_checked_total",
		Help: "The total number of jobs whose run history was fetched",
	}, []string{"job"})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_jobs_failed_total",
		Help: "The total number of jobs found with a failing run inside the window",
	}, []string{"job"})

	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_retries_total",
		Help: "Retry requests issued by the guardian by outcome",
	}, []string{"job", "outcome"})

	GuardErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_errors_total",
		Help: "Errors recorded during evaluation by kind",
	}, []string{"kind"})

	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guardian_evaluation_seconds",
		Help:    "Time taken by a full evaluation pass",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
	})

	// Retry worker metrics
	RetryRequestsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_worker_requests_total",
		Help: "Retry requests consumed by the worker by status",
	}, []string{"status"})

	RerunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guardian_worker_rerun_seconds",
		Help:    "Time taken by rerun calls issued by the worker",
		Buckets: prometheus.DefBuckets,
	})
)

// Error kinds used as label values for GuardErrors
const (
	KindFetch = "fetch"
	KindParse = "parse"
	KindRetry = "retry"
)

// Retry outcomes used as label values for Retries
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDryRun  = "dry_run"
)
