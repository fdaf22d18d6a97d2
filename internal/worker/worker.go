package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/guardian"
	"github.com/cuongbtq/workflow-guardian/internal/retryqueue"
	"github.com/cuongbtq/workflow-guardian/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultRerunTimeout bounds a single rerun call
const DefaultRerunTimeout = 30 * time.Second

// MessageSource delivers retry requests; manual ack is expected
type MessageSource interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Rerunner reruns the failed jobs of a workflow run
type Rerunner interface {
	RerunFailedJobs(ctx context.Context, runID int64) error
}

// ClaimStore records which retry requests have been processed so redeliveries are not rerun twice
type ClaimStore interface {
	ClaimRequest(ctx context.Context, req *retryqueue.RetryRequest, workerID string) error
	CompleteRequest(ctx context.Context, requestID, status, detail string) error
}

// Config holds worker configuration
type Config struct {
	Logger       *slog.Logger
	Source       MessageSource
	Rerunner     Rerunner
	Journal      guardian.Journal // optional
	Claims       ClaimStore       // optional
	WorkerID     string
	Concurrency  int
	RerunTimeout time.Duration
}

// Worker consumes retry requests and reruns the referenced workflow runs
type Worker struct {
	logger       *slog.Logger
	source       MessageSource
	rerunner     Rerunner
	journal      guardian.Journal
	claims       ClaimStore
	workerID     string
	concurrency  int
	rerunTimeout time.Duration
	jobsChan     chan *domain.RetryMessage
	wg           sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	rerunTimeout := cfg.RerunTimeout
	if rerunTimeout <= 0 {
		rerunTimeout = DefaultRerunTimeout
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "guardian-worker"
	}

	return &Worker{
		logger:       cfg.Logger,
		source:       cfg.Source,
		rerunner:     cfg.Rerunner,
		journal:      cfg.Journal,
		claims:       cfg.Claims,
		workerID:     workerID,
		concurrency:  concurrency,
		rerunTimeout: rerunTimeout,
		jobsChan:     make(chan *domain.RetryMessage, concurrency),
		stopChan:     make(chan struct{}),
	}
}

// Start consumes retry requests until ctx is canceled or Stop is called.
// A delivery channel closed by the broker is reported as ErrDeliveriesClosed.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("rerun_timeout", w.rerunTimeout),
	)

	deliveries, err := w.source.Consume(w.workerID)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.spawnWorkerPool(ctx)
	if err := w.startMessageDispatcher(ctx, deliveries); err != nil {
		return fmt.Errorf("worker %s stopped consuming: %w", w.workerID, err)
	}

	w.logger.Info("Worker dispatcher finished, waiting for pool")
	return nil
}

// Stop signals the pool to exit and waits for in-flight requests
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
