package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// History sources and retry triggers selectable under guardian.source / guardian.trigger
const (
	SourceGitHub   = "github"
	SourcePostgres = "postgres"
	TriggerGitHub  = "github"
	TriggerQueue   = "queue"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
	Guardian GuardianConfig `yaml:"guardian"`
	GitHub   GitHubConfig   `yaml:"github"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectInterval time.Duration `yaml:"connect_interval"`
	ApplySchema     bool          `yaml:"apply_schema"`
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name               string `yaml:"name"`
	Durable            bool   `yaml:"durable"`
	DeadLetterExchange string `yaml:"dead_letter_exchange"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds retry worker configuration
type WorkerConfig struct {
	ID              string        `yaml:"id"`
	Concurrency     int           `yaml:"concurrency"`
	RerunTimeout    time.Duration `yaml:"rerun_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GuardianConfig holds the retry guard settings
type GuardianConfig struct {
	Jobs           []string      `yaml:"jobs"`
	Window         time.Duration `yaml:"window"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	DryRun         bool          `yaml:"dry_run"`
	Source         string        `yaml:"source"`
	Trigger        string        `yaml:"trigger"`
	HistoryLimit   int           `yaml:"history_limit"`
	HealthLookback time.Duration `yaml:"health_lookback"`
}

// GitHubConfig holds GitHub Actions API settings
type GitHubConfig struct {
	BaseURL    string            `yaml:"base_url"`
	Repository string            `yaml:"repository"`
	Token      string            `yaml:"token"`
	PerPage    int               `yaml:"per_page"`
	Timeout    time.Duration     `yaml:"timeout"`
	Workflows  map[string]string `yaml:"workflows"`
}

// Load reads and parses the configuration file, then applies environment overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	return &config, nil
}

// applyEnv lets secrets and the target repository come from the environment
func (c *Config) applyEnv() {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv("GITHUB_REPOSITORY"); v != "" {
		c.GitHub.Repository = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("RABBITMQ_PASSWORD"); v != "" {
		c.RabbitMQ.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.Guardian.Source == "" {
		c.Guardian.Source = SourceGitHub
	}
	if c.Guardian.Trigger == "" {
		c.Guardian.Trigger = TriggerGitHub
	}
	if c.Guardian.Window == 0 {
		c.Guardian.Window = 2 * time.Hour
	}
	if c.Guardian.HealthLookback == 0 {
		c.Guardian.HealthLookback = 24 * time.Hour
	}
}

// ValidateAPIConfig checks the settings required by the API service
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	return c.ValidateGuardianConfig()
}

// ValidateWorkerConfig checks the settings required by the retry worker
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if err := c.validateGitHub(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.RerunTimeout <= 0 {
		return fmt.Errorf("worker rerun_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return nil
}

// ValidateGuardianConfig checks the guard settings and the backends they select
func (c *Config) ValidateGuardianConfig() error {
	g := c.Guardian

	if len(g.Jobs) == 0 {
		return fmt.Errorf("guardian jobs must not be empty")
	}

	for _, job := range g.Jobs {
		if strings.TrimSpace(job) == "" {
			return fmt.Errorf("guardian jobs must not contain empty names")
		}
	}

	if g.Window <= 0 {
		return fmt.Errorf("guardian window must be greater than 0")
	}

	if g.CallTimeout < 0 {
		return fmt.Errorf("guardian call_timeout must not be negative")
	}

	switch g.Source {
	case SourceGitHub:
		if err := c.validateGitHub(); err != nil {
			return err
		}
	case SourcePostgres:
		if err := c.validateDatabase(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid guardian source: %q (must be %q or %q)", g.Source, SourceGitHub, SourcePostgres)
	}

	switch g.Trigger {
	case TriggerGitHub:
		if err := c.validateGitHub(); err != nil {
			return err
		}
	case TriggerQueue:
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid guardian trigger: %q (must be %q or %q)", g.Trigger, TriggerGitHub, TriggerQueue)
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}

func (c *Config) validateGitHub() error {
	owner, repo, ok := strings.Cut(c.GitHub.Repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return fmt.Errorf("invalid github repository: %q (must be owner/repo)", c.GitHub.Repository)
	}

	return nil
}

// JobIDs returns the configured job names trimmed of whitespace
func (g GuardianConfig) JobIDs() []string {
	out := make([]string, 0, len(g.Jobs))
	for _, job := range g.Jobs {
		out = append(out, strings.TrimSpace(job))
	}
	return out
}
