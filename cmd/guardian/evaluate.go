package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/config"
	"github.com/spf13/cobra"
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Check monitored jobs and retry recent failures",
		Long: "Fetch the recent runs of every monitored job and retry the latest run that failed " +
			"inside the window. Exits non-zero when any job could not be checked or retried.",
		Args: cobra.NoArgs,
		RunE: runEvaluate,
	}

	cmd.Flags().Duration("window", 2*time.Hour, "only failures newer than this are retried")
	cmd.Flags().StringSlice("jobs", nil, "jobs to check instead of the configured list")
	cmd.Flags().Bool("dry-run", false, "report what would be retried without retrying")
	cmd.Flags().Bool("json", false, "print the result as JSON")

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	jobs, _ := flags.GetStringSlice("jobs")
	window, _ := flags.GetDuration("window")
	dryRun, _ := flags.GetBool("dry-run")
	asJSON, _ := flags.GetBool("json")

	s, err := openSession(cmd.Context(), cmd, func(cfg *config.Config) {
		if len(jobs) > 0 {
			cfg.Guardian.Jobs = jobs
		}
		if flags.Changed("window") {
			cfg.Guardian.Window = window
		}
		if dryRun {
			cfg.Guardian.DryRun = true
		}
	})
	if err != nil {
		return err
	}
	defer s.Close()

	c := s.components
	result := c.Guardian.Evaluate(cmd.Context(), c.Jobs, c.Window)

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else if err := result.WriteText(out); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if !result.OK() {
		return fmt.Errorf("evaluation finished with %d error(s): %s", len(result.Errors), strings.Join(result.Errors, "; "))
	}
	return nil
}
