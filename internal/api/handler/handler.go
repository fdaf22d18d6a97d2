package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/guardian"
	"github.com/cuongbtq/workflow-guardian/internal/storage"
)

// RunStore is the persistence used by the run endpoints
type RunStore interface {
	UpsertRun(ctx context.Context, run *storage.Run) error
	GetRun(ctx context.Context, runID string) (*storage.Run, error)
	ListRuns(ctx context.Context, filter storage.RunFilter) ([]storage.Run, error)
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Runs     RunStore
	DB       HealthChecker
	Guardian *guardian.Guardian
	Jobs     []guardian.JobID
	Window   time.Duration
	Lookback time.Duration
}

// RunHandler handles workflow run ingestion and lookup
type RunHandler struct {
	logger *slog.Logger
	runs   RunStore
}

// NewRunHandler creates a new RunHandler instance
func NewRunHandler(deps *Dependencies) *RunHandler {
	return &RunHandler{
		logger: deps.Logger,
		runs:   deps.Runs,
	}
}

// GuardianHandler exposes evaluation and health summaries over HTTP
type GuardianHandler struct {
	logger   *slog.Logger
	guardian *guardian.Guardian
	jobs     []guardian.JobID
	window   time.Duration
	lookback time.Duration
}

// NewGuardianHandler creates a new GuardianHandler instance
func NewGuardianHandler(deps *Dependencies) *GuardianHandler {
	window := deps.Window
	if window <= 0 {
		window = guardian.DefaultWindow
	}
	lookback := deps.Lookback
	if lookback <= 0 {
		lookback = guardian.DefaultHealthLookback
	}
	return &GuardianHandler{
		logger:   deps.Logger,
		guardian: deps.Guardian,
		jobs:     deps.Jobs,
		window:   window,
		lookback: lookback,
	}
}
