// Package retryqueue hands retry decisions to the retry worker through RabbitMQ.
package retryqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/guardian"
	"github.com/google/uuid"
)

// MessagePublisher is the subset of the RabbitMQ client used by Publisher
type MessagePublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Publisher implements guardian.RetryTrigger by enqueueing a RetryRequest
type Publisher struct {
	mq     MessagePublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher creates a new Publisher
func NewPublisher(mq MessagePublisher, logger *slog.Logger) *Publisher {
	return &Publisher{
		mq:     mq,
		logger: logger,
		now:    time.Now,
	}
}

// Retry publishes a retry request for the run
func (p *Publisher) Retry(ctx context.Context, run guardian.RunRecord) error {
	req := RetryRequest{
		RequestID:   uuid.New().String(),
		JobID:       string(run.JobID),
		RunID:       run.RunID,
		RequestedAt: p.now().UTC(),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal retry request: %w", err)
	}

	if err := p.mq.PublishWithRetry(ctx, body, ContentType); err != nil {
		return fmt.Errorf("failed to publish retry request: %w", err)
	}

	p.logger.Info("Retry request published",
		slog.String("request_id", req.RequestID),
		slog.String("job_id", req.JobID),
		slog.String("run_id", req.RunID),
	)
	return nil
}

// ActionType tags journal entries of queued retries; the worker records the rerun itself
func (p *Publisher) ActionType() string {
	return guardian.ActionTypeEnqueue
}
