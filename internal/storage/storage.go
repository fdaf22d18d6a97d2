package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/guardian"
	"github.com/cuongbtq/workflow-guardian/shared/postgresql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DefaultHistoryLimit is the number of runs returned by RecentRuns
const DefaultHistoryLimit = 10

// Storage handles all database operations for workflow runs and remediation actions
type Storage struct {
	db           *sqlx.DB
	logger       *slog.Logger
	historyLimit int
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client, logger *slog.Logger, historyLimit int) *Storage {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Storage{
		db:           pg.GetDB(),
		logger:       logger,
		historyLimit: historyLimit,
	}
}

// RecentRuns implements guardian.RunHistorySource
func (s *Storage) RecentRuns(ctx context.Context, job guardian.JobID) ([]guardian.RawRun, error) {
	query := `
		SELECT run_id, job_id, status, conclusion, html_url, created_at, updated_at
		FROM workflow_runs
		WHERE job_id = $1
		ORDER BY created_at DESC, run_id DESC
		LIMIT $2
	`

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, query, string(job), s.historyLimit); err != nil {
		return nil, fmt.Errorf("failed to select recent runs: %w", err)
	}

	raws := make([]guardian.RawRun, 0, len(runs))
	for _, run := range runs {
		raws = append(raws, toRawRun(run))
	}
	return raws, nil
}

// UpsertRun inserts a run or refreshes its status and conclusion
func (s *Storage) UpsertRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO workflow_runs (
			run_id, job_id, status, conclusion, html_url, created_at, updated_at
		) VALUES (
			:run_id, :job_id, :status, :conclusion, :html_url, :created_at, :updated_at
		)
		ON CONFLICT (run_id) DO UPDATE
		SET status = EXCLUDED.status,
			conclusion = EXCLUDED.conclusion,
			html_url = EXCLUDED.html_url,
			updated_at = EXCLUDED.updated_at
	`

	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = time.Now().UTC()
	}

	if _, err := s.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}

	s.logger.Info("Run stored",
		slog.String("run_id", run.RunID),
		slog.String("job_id", run.JobID),
		slog.String("conclusion", run.Conclusion),
	)
	return nil
}

// GetRun retrieves a run by its ID
func (s *Storage) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := `
		SELECT run_id, job_id, status, conclusion, html_url, created_at, updated_at
		FROM workflow_runs
		WHERE run_id = $1
	`

	var run Run
	if err := s.db.GetContext(ctx, &run, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns up to PageSize+1 runs so callers can detect a next page
func (s *Storage) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query, args := buildListQuery(filter)

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// RecordAction implements guardian.Journal
func (s *Storage) RecordAction(ctx context.Context, action guardian.Action) error {
	row := Action{
		ActionID:   uuid.New().String(),
		JobID:      string(action.JobID),
		RunID:      action.RunID,
		ActionType: action.Type,
		Success:    action.Success,
		Detail:     action.Detail,
		CreatedAt:  time.Now().UTC(),
	}

	query := `
		INSERT INTO guardian_actions (
			action_id, job_id, run_id, action_type, success, detail, created_at
		) VALUES (
			:action_id, :job_id, :run_id, :action_type, :success, :detail, :created_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}

	s.logger.Debug("Remediation action recorded",
		slog.String("action_id", row.ActionID),
		slog.String("job_id", row.JobID),
		slog.String("run_id", row.RunID),
		slog.Bool("success", row.Success),
	)
	return nil
}

func buildListQuery(filter RunFilter) (string, []interface{}) {
	query := `
        SELECT run_id, job_id, status, conclusion, html_url, created_at, updated_at
        FROM workflow_runs
        WHERE 1=1
    `
	args := []interface{}{}
	argIdx := 1

	if filter.JobID != "" {
		query += fmt.Sprintf(" AND job_id = $%d", argIdx)
		args = append(args, filter.JobID)
		argIdx++
	}

	if filter.Conclusion != "" {
		query += fmt.Sprintf(" AND conclusion = $%d", argIdx)
		args = append(args, filter.Conclusion)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, run_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.RunID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, run_id DESC"

	// one extra row signals a next page
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	return query, args
}

func toRawRun(run Run) guardian.RawRun {
	raw := guardian.RawRun{
		ID:         run.RunID,
		Status:     run.Status,
		Conclusion: run.Conclusion,
		URL:        run.HTMLURL,
	}
	if !run.CreatedAt.IsZero() {
		raw.CreatedAt = run.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return raw
}
