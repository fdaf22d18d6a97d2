package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cuongbtq/workflow-guardian/internal/metrics"
	"github.com/cuongbtq/workflow-guardian/internal/retryqueue"
	"github.com/cuongbtq/workflow-guardian/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed is returned when the broker closes the delivery channel
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// startMessageDispatcher decodes deliveries and hands valid requests to the worker pool.
// Returns ErrDeliveriesClosed when the broker stops delivering.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return nil

		case <-w.stopChan:
			w.logger.Info("Message dispatcher stopped - stopChan closed")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Error("RabbitMQ delivery channel closed")
				return ErrDeliveriesClosed
			}

			req, err := retryqueue.Decode(delivery.Body)
			if err != nil {
				w.logger.Error("Rejecting malformed retry request",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				metrics.RetryRequestsProcessed.WithLabelValues(domain.StatusInvalid).Inc()
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			msg := &domain.RetryMessage{Request: req, Delivery: delivery}

			select {
			case w.jobsChan <- msg:
				w.logger.Debug("Retry request dispatched to worker pool",
					slog.String("request_id", req.RequestID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching request")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return nil
			}
		}
	}
}
