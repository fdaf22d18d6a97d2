// Package bootstrap builds the clients and guardian wiring shared by the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/config"
	"github.com/cuongbtq/workflow-guardian/internal/github"
	"github.com/cuongbtq/workflow-guardian/internal/guardian"
	"github.com/cuongbtq/workflow-guardian/internal/retryqueue"
	"github.com/cuongbtq/workflow-guardian/internal/storage"
	"github.com/cuongbtq/workflow-guardian/migrations"
	"github.com/cuongbtq/workflow-guardian/shared/logger"
	"github.com/cuongbtq/workflow-guardian/shared/postgresql"
	"github.com/cuongbtq/workflow-guardian/shared/rabbitmq"
)

// NewLogger initializes and configures the application logger
func NewLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// NewPostgreSQL connects to PostgreSQL and applies the schema when configured to
func NewPostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, log *slog.Logger) (*postgresql.Client, error) {
	client, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnectAttempts: cfg.ConnectAttempts,
		ConnectInterval: cfg.ConnectInterval,
	}, log)
	if err != nil {
		return nil, err
	}

	if cfg.ApplySchema {
		if err := client.ApplySchema(ctx, migrations.Schema); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	return client, nil
}

// NewRabbitMQ connects to RabbitMQ and declares the retry request topology
func NewRabbitMQ(cfg *config.RabbitMQConfig, log *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		DeadLetterExchange: cfg.Queue.DeadLetterExchange,
		RoutingKey:         cfg.RoutingKey,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, log)
}

// NewGitHubClient creates the GitHub Actions client
func NewGitHubClient(cfg *config.GitHubConfig, log *slog.Logger) *github.Client {
	return github.NewClient(&github.Config{
		BaseURL:    cfg.BaseURL,
		Repository: cfg.Repository,
		Token:      cfg.Token,
		PerPage:    cfg.PerPage,
		Workflows:  cfg.Workflows,
		Timeout:    cfg.Timeout,
	}, log)
}

// Components is a ready-to-use guardian with the clients backing it
type Components struct {
	Guardian *guardian.Guardian
	Jobs     []guardian.JobID
	Window   time.Duration
	Lookback time.Duration

	// DB and Store are nil when no database is configured
	DB    *postgresql.Client
	Store *storage.Storage

	closers []func() error
}

// NewGuardian wires the configured history source, retry trigger and journal into a Guardian
func NewGuardian(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Components, error) {
	c := &Components{
		Jobs:     JobIDs(cfg.Guardian.JobIDs()),
		Window:   cfg.Guardian.Window,
		Lookback: cfg.Guardian.HealthLookback,
	}

	if cfg.Database.Enabled() {
		db, err := NewPostgreSQL(ctx, &cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		c.DB = db
		c.Store = storage.NewStorage(db, log, cfg.Guardian.HistoryLimit)
		c.closers = append(c.closers, db.Close)
	}

	var gh *github.Client
	if cfg.Guardian.Source == config.SourceGitHub || cfg.Guardian.Trigger == config.TriggerGitHub {
		gh = NewGitHubClient(&cfg.GitHub, log)
	}

	var source guardian.RunHistorySource
	switch cfg.Guardian.Source {
	case config.SourceGitHub:
		source = gh
	case config.SourcePostgres:
		if c.Store == nil {
			_ = c.Close()
			return nil, errors.New("postgres history source requires a database")
		}
		source = c.Store
	default:
		_ = c.Close()
		return nil, fmt.Errorf("unknown history source: %q", cfg.Guardian.Source)
	}

	var trigger guardian.RetryTrigger
	switch cfg.Guardian.Trigger {
	case config.TriggerGitHub:
		trigger = gh
	case config.TriggerQueue:
		mq, err := NewRabbitMQ(&cfg.RabbitMQ, log)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		c.closers = append(c.closers, mq.Close)
		trigger = retryqueue.NewPublisher(mq, log)
	default:
		_ = c.Close()
		return nil, fmt.Errorf("unknown retry trigger: %q", cfg.Guardian.Trigger)
	}

	gcfg := &guardian.Config{
		Source:      source,
		Trigger:     trigger,
		Logger:      log,
		CallTimeout: cfg.Guardian.CallTimeout,
		DryRun:      cfg.Guardian.DryRun,
	}
	if c.Store != nil {
		gcfg.Journal = c.Store
	}
	c.Guardian = guardian.New(gcfg)

	log.Info("Guardian initialized",
		slog.String("source", cfg.Guardian.Source),
		slog.String("trigger", cfg.Guardian.Trigger),
		slog.Int("jobs", len(c.Jobs)),
		slog.Bool("journal", c.Store != nil),
	)

	return c, nil
}

// Close releases the clients in reverse order of creation
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// JobIDs converts configured job names into guardian job ids
func JobIDs(names []string) []guardian.JobID {
	jobs := make([]guardian.JobID, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, guardian.JobID(name))
	}
	return jobs
}
