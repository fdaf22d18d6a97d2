package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/guardian"
	"github.com/cuongbtq/workflow-guardian/internal/metrics"
	"github.com/cuongbtq/workflow-guardian/internal/worker/domain"
)

// processMessage reruns the requested run and journals the attempt
func (w *Worker) processMessage(ctx context.Context, msg *domain.RetryMessage) error {
	req := msg.Request

	runID, err := strconv.ParseInt(req.RunID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: run id %q is not numeric", domain.ErrInvalidMessage, req.RunID)
	}

	if w.claims != nil {
		if err := w.claims.ClaimRequest(ctx, req, w.workerID); err != nil {
			if errors.Is(err, domain.ErrRequestCompleted) {
				return err
			}
			return domain.NewRetryableError(fmt.Errorf("failed to claim request %s: %w", req.RequestID, err))
		}
	}

	w.logger.Info("Processing retry request",
		slog.String("request_id", req.RequestID),
		slog.String("job_id", req.JobID),
		slog.String("run_id", req.RunID),
		slog.Bool("redelivered", msg.Delivery.Redelivered),
	)

	rerunCtx, cancel := context.WithTimeout(ctx, w.rerunTimeout)
	defer cancel()

	start := time.Now()
	err = w.rerunner.RerunFailedJobs(rerunCtx, runID)
	metrics.RerunDuration.Observe(time.Since(start).Seconds())

	w.recordAction(ctx, req.JobID, req.RunID, err)
	w.settleClaim(ctx, req.RequestID, err)

	if err == nil {
		w.logger.Info("Rerun requested",
			slog.String("request_id", req.RequestID),
			slog.String("run_id", req.RunID),
		)
		return nil
	}

	// shutdown interrupted the call, hand the request back to the broker
	if ctx.Err() != nil {
		return domain.NewRetryableError(fmt.Errorf("rerun of run %s interrupted: %w", req.RunID, err))
	}

	if !isTemporary(err) {
		return fmt.Errorf("failed to rerun run %s: %w", req.RunID, err)
	}

	if msg.Delivery.Redelivered {
		return fmt.Errorf("%w: run %s: %v", domain.ErrMaxRetriesExceeded, req.RunID, err)
	}

	return domain.NewRetryableError(fmt.Errorf("failed to rerun run %s: %w", req.RunID, err))
}

func (w *Worker) recordAction(ctx context.Context, jobID, runID string, rerunErr error) {
	if w.journal == nil {
		return
	}

	action := guardian.Action{
		JobID:   guardian.JobID(jobID),
		RunID:   runID,
		Type:    guardian.ActionTypeRetry,
		Success: rerunErr == nil,
		Detail:  "rerun requested by worker " + w.workerID,
	}
	if rerunErr != nil {
		action.Detail = rerunErr.Error()
	}

	if err := w.journal.RecordAction(ctx, action); err != nil {
		w.logger.Warn("Failed to record retry action",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
	}
}

// settleClaim marks the claim completed or failed; failed claims may be taken again on redelivery
func (w *Worker) settleClaim(ctx context.Context, requestID string, rerunErr error) {
	if w.claims == nil {
		return
	}

	status, detail := domain.ClaimStatusCompleted, ""
	if rerunErr != nil {
		status, detail = domain.ClaimStatusFailed, rerunErr.Error()
	}

	// still settle when shutdown canceled the rerun
	if err := w.claims.CompleteRequest(context.WithoutCancel(ctx), requestID, status, detail); err != nil {
		w.logger.Warn("Failed to settle retry request",
			slog.String("request_id", requestID),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
}

type temporary interface {
	Temporary() bool
}

// isTemporary reports whether a rerun failure is worth another attempt
func isTemporary(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var tempErr temporary
	if errors.As(err, &tempErr) {
		return tempErr.Temporary()
	}

	return false
}
