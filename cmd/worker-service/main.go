package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/bootstrap"
	"github.com/cuongbtq/workflow-guardian/internal/config"
	"github.com/cuongbtq/workflow-guardian/internal/guardian"
	"github.com/cuongbtq/workflow-guardian/internal/storage"
	"github.com/cuongbtq/workflow-guardian/internal/worker"
	workerstorage "github.com/cuongbtq/workflow-guardian/internal/worker/storage"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	workerID := cfg.Worker.ID
	if workerID == "" {
		hostname, _ := os.Hostname()
		workerID = fmt.Sprintf("worker-%s-%d", hostname, time.Now().Unix())
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("worker_id", workerID),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// journal and claims are optional for the worker
	var journal guardian.Journal
	var claims worker.ClaimStore
	if cfg.Database.Enabled() {
		dbClient, err := bootstrap.NewPostgreSQL(ctx, &cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer dbClient.Close()
		journal = storage.NewStorage(dbClient, appLogger.Logger, cfg.Guardian.HistoryLimit)
		claims = workerstorage.NewStorage(dbClient.GetDB(), appLogger.Logger)
	}

	rabbitClient, err := bootstrap.NewRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:       appLogger.Logger,
		Source:       rabbitClient,
		Rerunner:     bootstrap.NewGitHubClient(&cfg.GitHub, appLogger.Logger),
		Journal:      journal,
		Claims:       claims,
		WorkerID:     workerID,
		Concurrency:  cfg.Worker.Concurrency,
		RerunTimeout: cfg.Worker.RerunTimeout,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Worker error", slog.Any("error", err))
			runErr = err
		}
	case <-rabbitClient.NotifyClose():
		runErr = errors.New("rabbitmq connection closed")
		appLogger.Error("Worker lost broker connection")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return runErr
}
