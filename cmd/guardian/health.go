package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Summarize run health of monitored jobs",
		Args:  cobra.NoArgs,
		RunE:  runHealth,
	}

	cmd.Flags().Int("hours", 24, "lookback period in hours")
	cmd.Flags().Bool("json", false, "print the summary as JSON")

	return cmd
}

func runHealth(cmd *cobra.Command, _ []string) error {
	hours, _ := cmd.Flags().GetInt("hours")
	asJSON, _ := cmd.Flags().GetBool("json")

	if hours <= 0 {
		return fmt.Errorf("--hours must be positive, got %d", hours)
	}

	s, err := openSession(cmd.Context(), cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	lookback := s.components.Lookback
	if cmd.Flags().Changed("hours") || lookback <= 0 {
		lookback = time.Duration(hours) * time.Hour
	}

	summary := s.components.Guardian.Summarize(cmd.Context(), s.components.Jobs, lookback)

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		return nil
	}

	if err := summary.WriteText(out); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
