package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/workflow-guardian/internal/retryqueue"
	"github.com/cuongbtq/workflow-guardian/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage tracks which retry requests the worker fleet has claimed and settled
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimRequest records that workerID is processing req.
// A request that already completed cannot be claimed again and yields domain.ErrRequestCompleted.
func (s *Storage) ClaimRequest(ctx context.Context, req *retryqueue.RetryRequest, workerID string) error {
	query, args := buildClaimQuery(req, workerID)

	var attempts int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&attempts)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim retry request - already completed",
				slog.String("request_id", req.RequestID),
				slog.String("worker_id", workerID),
			)
			return domain.ErrRequestCompleted
		}
		return fmt.Errorf("failed to claim retry request: %w", err)
	}

	s.logger.Debug("Retry request claimed",
		slog.String("request_id", req.RequestID),
		slog.String("worker_id", workerID),
		slog.Int("attempts", attempts),
	)

	return nil
}

// buildClaimQuery upserts a running claim unless the stored claim already completed
func buildClaimQuery(req *retryqueue.RetryRequest, workerID string) (string, []interface{}) {
	query := `
		INSERT INTO retry_requests (request_id, job_id, run_id, status, worker_id, attempts, claimed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, NOW(), NOW())
		ON CONFLICT (request_id) DO UPDATE
		SET status = EXCLUDED.status,
		    worker_id = EXCLUDED.worker_id,
		    attempts = retry_requests.attempts + 1,
		    claimed_at = NOW(),
		    completed_at = NULL,
		    updated_at = NOW()
		WHERE retry_requests.status <> $6
		RETURNING attempts
	`

	args := []interface{}{
		req.RequestID, req.JobID, req.RunID, domain.ClaimStatusRunning, workerID, domain.ClaimStatusCompleted,
	}
	return query, args
}

// CompleteRequest settles a claimed request with its final status and an optional error detail
func (s *Storage) CompleteRequest(ctx context.Context, requestID, status, detail string) error {
	query, args := buildCompleteQuery(requestID, status, detail)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update retry request status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Retry request status update - no rows affected (request was never claimed)",
			slog.String("request_id", requestID),
		)
	}

	return nil
}

// buildCompleteQuery stamps completed_at only for terminal statuses
func buildCompleteQuery(requestID, status, detail string) (string, []interface{}) {
	query := `
		UPDATE retry_requests
		SET status = $1::text,
			detail = $2,
			completed_at = CASE
				WHEN $1::text IN ($3::text, $4::text) THEN NOW()
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE request_id = $5
	`

	return query, []interface{}{status, detail, domain.ClaimStatusCompleted, domain.ClaimStatusFailed, requestID}
}
