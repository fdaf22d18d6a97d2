// Package github provides a GitHub Actions client used as run-history
// provider and retry trigger for monitored workflows.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/guardian"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint
	DefaultBaseURL = "https://api.github.com"

	// DefaultPerPage is the number of runs fetched per job
	DefaultPerPage = 10

	apiVersion = "2022-11-28"

	maxErrorBody = 512
)

// Config holds GitHub client configuration
type Config struct {
	BaseURL    string
	Repository string // owner/repo
	Token      string
	PerPage    int
	Workflows  map[string]string // job id -> workflow file
	Timeout    time.Duration
}

// Client talks to the GitHub Actions REST API
type Client struct {
	baseURL    string
	repository string
	token      string
	perPage    int
	workflows  map[string]string
	httpClient *http.Client
	logger     *slog.Logger
}

// StatusError is returned for non-2xx API responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated later
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type workflowRunsResponse struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []workflowRun `json:"workflow_runs"`
}

type workflowRun struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Conclusion *string `json:"conclusion"`
	CreatedAt  string  `json:"created_at"`
	HeadBranch string  `json:"head_branch"`
	HTMLURL    string  `json:"html_url"`
}

// NewClient creates a new GitHub Actions client
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = guardian.DefaultCallTimeout
	}

	return &Client{
		baseURL:    baseURL,
		repository: cfg.Repository,
		token:      cfg.Token,
		perPage:    perPage,
		workflows:  cfg.Workflows,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WorkflowFile resolves the workflow file of a job
func (c *Client) WorkflowFile(job guardian.JobID) string {
	if wf, ok := c.workflows[string(job)]; ok && wf != "" {
		return wf
	}
	name := string(job)
	if strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml") {
		return name
	}
	return name + ".yml"
}

// RecentRuns lists the latest runs of the job's workflow, most recent first
func (c *Client) RecentRuns(ctx context.Context, job guardian.JobID) ([]guardian.RawRun, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/actions/workflows/%s/runs?per_page=%d",
		c.baseURL, c.repository, url.PathEscape(c.WorkflowFile(job)), c.perPage)

	body, err := c.do(ctx, http.MethodGet, endpoint, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var resp workflowRunsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode workflow runs: %w", err)
	}

	runs := make([]guardian.RawRun, 0, len(resp.WorkflowRuns))
	for _, r := range resp.WorkflowRuns {
		raw := guardian.RawRun{
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
			URL:       r.HTMLURL,
		}
		if r.ID != 0 {
			raw.ID = strconv.FormatInt(r.ID, 10)
		}
		if r.Conclusion != nil {
			raw.Conclusion = *r.Conclusion
		}
		runs = append(runs, raw)
	}

	c.logger.Debug("Fetched workflow runs",
		slog.String("job_id", string(job)),
		slog.Int("runs", len(runs)),
		slog.Int("total_count", resp.TotalCount),
	)

	return runs, nil
}

// RerunFailedJobs asks GitHub to re-run the failed jobs of a run
func (c *Client) RerunFailedJobs(ctx context.Context, runID int64) error {
	endpoint := fmt.Sprintf("%s/repos/%s/actions/runs/%d/rerun-failed-jobs", c.baseURL, c.repository, runID)

	if _, err := c.do(ctx, http.MethodPost, endpoint, http.StatusCreated); err != nil {
		return err
	}

	c.logger.Info("Requested rerun of failed jobs",
		slog.Int64("run_id", runID),
	)
	return nil
}

// Retry implements guardian.RetryTrigger by rerunning the failed run directly
func (c *Client) Retry(ctx context.Context, run guardian.RunRecord) error {
	runID, err := strconv.ParseInt(run.RunID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.RunID, err)
	}
	return c.RerunFailedJobs(ctx, runID)
}

func (c *Client) do(ctx context.Context, method, endpoint string, want int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s %s: %w", method, req.URL.Path, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("Failed to close response body", slog.Any("error", err))
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != want {
		excerpt := string(body)
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: excerpt}
	}

	return body, nil
}
