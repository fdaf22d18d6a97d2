package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "localhost", cfg.Database.Host)
			assert.Equal(t, "guardian_db", cfg.Database.Database)
			assert.Equal(t, "guardian_exchange", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "guardian_retry_queue", cfg.RabbitMQ.Queue.Name)
			assert.Equal(t, 4, cfg.RabbitMQ.Consumer.PrefetchCount)
			assert.Equal(t, "workflow-guardian-api", cfg.App.Name)
			assert.Equal(t, []string{"content-engine", "weekly-discovery", "fitness-articles"}, cfg.Guardian.Jobs)
			assert.Equal(t, 2*time.Hour, cfg.Guardian.Window)
			assert.Equal(t, SourcePostgres, cfg.Guardian.Source)
			assert.Equal(t, TriggerQueue, cfg.Guardian.Trigger)
			assert.Equal(t, "trend-discovery.yml", cfg.GitHub.Workflows["weekly-discovery"])
			assert.Equal(t, 30*time.Second, cfg.Worker.RerunTimeout)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, SourceGitHub, cfg.Guardian.Source)
	assert.Equal(t, TriggerGitHub, cfg.Guardian.Trigger)
	assert.Equal(t, 2*time.Hour, cfg.Guardian.Window)
	assert.Equal(t, 24*time.Hour, cfg.Guardian.HealthLookback)
	assert.False(t, cfg.Database.Enabled())
	assert.NoError(t, cfg.ValidateGuardianConfig())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_from_env")
	t.Setenv("GITHUB_REPOSITORY", "acme/other")
	t.Setenv("DATABASE_PASSWORD", "db-secret")
	t.Setenv("RABBITMQ_PASSWORD", "mq-secret")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "ghp_from_env", cfg.GitHub.Token)
	assert.Equal(t, "acme/other", cfg.GitHub.Repository)
	assert.Equal(t, "db-secret", cfg.Database.Password)
	assert.Equal(t, "mq-secret", cfg.RabbitMQ.Password)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "guardian_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "guardian_exchange"},
			Queue:    QueueConfig{Name: "guardian_retry_queue"},
		},
		Guardian: GuardianConfig{
			Jobs:    []string{"content-engine"},
			Window:  2 * time.Hour,
			Source:  SourceGitHub,
			Trigger: TriggerGitHub,
		},
		GitHub: GitHubConfig{Repository: "acme/empire"},
		Worker: WorkerConfig{
			Concurrency:     2,
			RerunTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "invalid server port - too low", mutate: func(c *Config) { c.Server.Port = 0 }, errString: "invalid server port"},
		{name: "invalid server port - too high", mutate: func(c *Config) { c.Server.Port = 70000 }, errString: "invalid server port"},
		{name: "missing database host", mutate: func(c *Config) { c.Database.Host = "" }, errString: "database host is required"},
		{name: "invalid database port", mutate: func(c *Config) { c.Database.Port = -1 }, errString: "invalid database port"},
		{name: "missing database name", mutate: func(c *Config) { c.Database.Database = "" }, errString: "database name is required"},
		{name: "no jobs", mutate: func(c *Config) { c.Guardian.Jobs = nil }, errString: "guardian jobs must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing rabbitmq host", mutate: func(c *Config) { c.RabbitMQ.Host = "" }, errString: "rabbitmq host is required"},
		{name: "invalid rabbitmq port", mutate: func(c *Config) { c.RabbitMQ.Port = 0 }, errString: "invalid rabbitmq port"},
		{name: "missing exchange", mutate: func(c *Config) { c.RabbitMQ.Exchange.Name = "" }, errString: "rabbitmq exchange name is required"},
		{name: "missing queue", mutate: func(c *Config) { c.RabbitMQ.Queue.Name = "" }, errString: "rabbitmq queue name is required"},
		{name: "missing repository", mutate: func(c *Config) { c.GitHub.Repository = "" }, errString: "invalid github repository"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Worker.Concurrency = 0 }, errString: "worker concurrency must be greater than 0"},
		{name: "zero rerun timeout", mutate: func(c *Config) { c.Worker.RerunTimeout = 0 }, errString: "worker rerun_timeout must be greater than 0"},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.Worker.ShutdownTimeout = 0 }, errString: "worker shutdown_timeout must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateGuardianConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "github source and trigger", mutate: func(c *Config) {}},
		{
			name: "postgres source with queue trigger",
			mutate: func(c *Config) {
				c.Guardian.Source = SourcePostgres
				c.Guardian.Trigger = TriggerQueue
				c.GitHub.Repository = ""
			},
		},
		{name: "blank job name", mutate: func(c *Config) { c.Guardian.Jobs = []string{"content-engine", " "} }, errString: "must not contain empty names"},
		{name: "zero window", mutate: func(c *Config) { c.Guardian.Window = 0 }, errString: "guardian window must be greater than 0"},
		{name: "negative call timeout", mutate: func(c *Config) { c.Guardian.CallTimeout = -time.Second }, errString: "call_timeout must not be negative"},
		{name: "unknown source", mutate: func(c *Config) { c.Guardian.Source = "gitlab" }, errString: "invalid guardian source"},
		{name: "unknown trigger", mutate: func(c *Config) { c.Guardian.Trigger = "email" }, errString: "invalid guardian trigger"},
		{name: "bad repository", mutate: func(c *Config) { c.GitHub.Repository = "acme" }, errString: "invalid github repository"},
		{name: "nested repository", mutate: func(c *Config) { c.GitHub.Repository = "acme/empire/extra" }, errString: "invalid github repository"},
		{
			name: "postgres source without database",
			mutate: func(c *Config) {
				c.Guardian.Source = SourcePostgres
				c.Database.Host = ""
			},
			errString: "database host is required",
		},
		{
			name: "queue trigger without rabbitmq",
			mutate: func(c *Config) {
				c.Guardian.Trigger = TriggerQueue
				c.RabbitMQ.Host = ""
			},
			errString: "rabbitmq host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateGuardianConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestGuardianConfig_JobIDs(t *testing.T) {
	g := GuardianConfig{Jobs: []string{" content-engine ", "weekly-discovery"}}
	assert.Equal(t, []string{"content-engine", "weekly-discovery"}, g.JobIDs())
}
