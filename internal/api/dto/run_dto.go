package dto

type CreateRunRequest struct {
	JobID      string `json:"job_id" binding:"required"`
	RunID      string `json:"run_id" binding:"required"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion" binding:"required"`
	HTMLURL    string `json:"html_url"`
	CreatedAt  string `json:"created_at" binding:"required"`
}

type ListRunsRequest struct {
	JobID      string `form:"job_id"`
	Conclusion string `form:"conclusion"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

type ListRunsResponse struct {
	Runs       []RunDTO `json:"runs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type RunDTO struct {
	RunID      string `json:"run_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	HTMLURL    string `json:"html_url,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// EvaluateRequest overrides the configured jobs, window and dry-run mode for one pass
type EvaluateRequest struct {
	Jobs   []string `json:"jobs"`
	Window string   `json:"window"`
	DryRun *bool    `json:"dry_run"`
}

type HealthSummaryRequest struct {
	Hours int `form:"hours"`
}
