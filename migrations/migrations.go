// Package migrations embeds the guardian database schema.
package migrations

import (
	_ "embed"
)

// Schema creates the workflow_runs and guardian_actions tables
//
//go:embed 0001_init.sql
var Schema string
