package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cuongbtq/workflow-guardian/internal/bootstrap"
	"github.com/cuongbtq/workflow-guardian/internal/config"
	"github.com/cuongbtq/workflow-guardian/shared/logger"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/guardian/config.yaml"

// NewRootCmd creates the root guardian command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "guardian",
		Short:         "Retry recently failed CI workflow runs",
		Long:          "guardian inspects the recent runs of monitored workflows and retries any run that failed inside the configured window.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configPath := os.Getenv("GUARDIAN_CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	root.PersistentFlags().StringP("config", "c", configPath, "path to config file")

	root.AddCommand(
		newEvaluateCmd(),
		newHealthCmd(),
	)

	return root
}

// session bundles what a subcommand needs to talk to the configured backends
type session struct {
	cfg        *config.Config
	logger     *logger.Logger
	components *bootstrap.Components
}

func (s *session) Close() {
	if err := s.components.Close(); err != nil {
		s.logger.Warn("Failed to close clients", slog.Any("error", err))
	}
	_ = s.logger.Close()
}

func openSession(ctx context.Context, cmd *cobra.Command, override func(*config.Config)) (*session, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if override != nil {
		override(cfg)
	}

	if err := cfg.ValidateGuardianConfig(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// keep stdout free for command output
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	appLogger, err := bootstrap.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	components, err := bootstrap.NewGuardian(ctx, cfg, appLogger.Logger)
	if err != nil {
		_ = appLogger.Close()
		return nil, err
	}

	return &session{cfg: cfg, logger: appLogger, components: components}, nil
}
