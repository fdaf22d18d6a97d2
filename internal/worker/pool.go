package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/workflow-guardian/internal/metrics"
	"github.com/cuongbtq/workflow-guardian/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.jobsChan:
			if !ok {
				return
			}
			w.handleMessage(ctx, workerName, msg)
		}
	}
}

// handleMessage processes one request and settles its delivery
func (w *Worker) handleMessage(ctx context.Context, workerName string, msg *domain.RetryMessage) {
	err := w.processMessage(ctx, msg)
	if errors.Is(err, domain.ErrRequestCompleted) {
		metrics.RetryRequestsProcessed.WithLabelValues(domain.StatusDuplicate).Inc()
		w.logger.Info("Skipping retry request that already completed",
			slog.String("worker_name", workerName),
			slog.String("request_id", msg.Request.RequestID),
		)
		err = nil
	} else if err == nil {
		metrics.RetryRequestsProcessed.WithLabelValues(domain.StatusRerun).Inc()
	}

	if err == nil {
		if ackErr := msg.Delivery.Ack(false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("request_id", msg.Request.RequestID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := shouldRequeue(err)
	metrics.RetryRequestsProcessed.WithLabelValues(requestStatus(err)).Inc()

	w.logger.Error("Retry request failed",
		slog.String("worker_name", workerName),
		slog.String("request_id", msg.Request.RequestID),
		slog.String("run_id", msg.Request.RunID),
		slog.Bool("requeue", requeue),
		slog.String("error", err.Error()),
	)

	if nackErr := msg.Delivery.Nack(false, requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.String("request_id", msg.Request.RequestID),
			slog.String("error", nackErr.Error()),
		)
	}
}

// shouldRequeue requeues transient failures only
func shouldRequeue(err error) bool {
	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}

func requestStatus(err error) string {
	var retryableErr *domain.RetryableError
	switch {
	case errors.As(err, &retryableErr):
		return domain.StatusRequeued
	case errors.Is(err, domain.ErrMaxRetriesExceeded):
		return domain.StatusExhausted
	case errors.Is(err, domain.ErrInvalidMessage):
		return domain.StatusInvalid
	default:
		return domain.StatusRejected
	}
}
