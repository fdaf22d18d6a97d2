package github

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/guardian"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runsPayload = `{
  "total_count": 3,
  "workflow_runs": [
    {"id": 9001, "name": "Content Engine", "status": "completed", "conclusion": "failure",
     "created_at": "2026-03-14T11:30:00Z", "head_branch": "main", "html_url": "https://github.com/acme/empire/actions/runs/9001"},
    {"id": 9000, "name": "Content Engine", "status": "in_progress", "conclusion": null,
     "created_at": "2026-03-14T10:00:00Z", "head_branch": "main", "html_url": "https://github.com/acme/empire/actions/runs/9000"},
    {"id": 8999, "name": "Content Engine", "status": "completed", "conclusion": "success",
     "created_at": "2026-03-14T09:00:00Z", "head_branch": "main", "html_url": "https://github.com/acme/empire/actions/runs/8999"}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&Config{
		BaseURL:    srv.URL,
		Repository: "acme/empire",
		Token:      "test-token",
		PerPage:    3,
		Workflows:  map[string]string{"weekly-discovery": "trend-discovery.yml"},
		Timeout:    2 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_RecentRuns(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotAccept, gotVersion string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotVersion = r.Header.Get("X-GitHub-Api-Version")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(runsPayload))
	})

	runs, err := client.RecentRuns(context.Background(), "content-engine")
	require.NoError(t, err)

	assert.Equal(t, "/repos/acme/empire/actions/workflows/content-engine.yml/runs", gotPath)
	assert.Equal(t, "per_page=3", gotQuery)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "application/vnd.github+json", gotAccept)
	assert.Equal(t, "2022-11-28", gotVersion)

	require.Len(t, runs, 3)
	assert.Equal(t, guardian.RawRun{
		ID:         "9001",
		Status:     "completed",
		Conclusion: "failure",
		CreatedAt:  "2026-03-14T11:30:00Z",
		URL:        "https://github.com/acme/empire/actions/runs/9001",
	}, runs[0])
	assert.Equal(t, "", runs[1].Conclusion)
	assert.Equal(t, "in_progress", runs[1].Status)
}

func TestClient_RecentRuns_WorkflowMapping(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"total_count":0,"workflow_runs":[]}`))
	})

	runs, err := client.RecentRuns(context.Background(), "weekly-discovery")
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Equal(t, "/repos/acme/empire/actions/workflows/trend-discovery.yml/runs", gotPath)
}

func TestClient_RecentRuns_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantStatus    int
		wantTemporary bool
		wantDecodeErr bool
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"message":"Not Found"}`, wantStatus: 404},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantStatus: 429, wantTemporary: true},
		{name: "bad gateway", status: http.StatusBadGateway, body: `oops`, wantStatus: 502, wantTemporary: true},
		{name: "malformed json", status: http.StatusOK, body: `{"workflow_runs": [`, wantDecodeErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			runs, err := client.RecentRuns(context.Background(), "content-engine")
			require.Error(t, err)
			assert.Nil(t, runs)

			if tt.wantDecodeErr {
				assert.Contains(t, err.Error(), "failed to decode workflow runs")
				return
			}

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.wantStatus, statusErr.StatusCode)
			assert.Equal(t, tt.wantTemporary, statusErr.Temporary())
		})
	}
}

func TestClient_Retry(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
	})

	err := client.Retry(context.Background(), guardian.RunRecord{JobID: "content-engine", RunID: "9001"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/repos/acme/empire/actions/runs/9001/rerun-failed-jobs", gotPath)
}

func TestClient_Retry_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Resource not accessible by integration"}`))
	})

	err := client.Retry(context.Background(), guardian.RunRecord{JobID: "content-engine", RunID: "9001"})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.False(t, statusErr.Temporary())
	assert.Contains(t, err.Error(), "Resource not accessible")
}

func TestClient_Retry_InvalidRunID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	err := client.Retry(context.Background(), guardian.RunRecord{RunID: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid run id "abc"`)
}

func TestClient_ContextTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.RecentRuns(ctx, "content-engine")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_WorkflowFile(t *testing.T) {
	client := NewClient(&Config{Workflows: map[string]string{"content-engine": "engine.yaml"}}, slog.Default())

	assert.Equal(t, "engine.yaml", client.WorkflowFile("content-engine"))
	assert.Equal(t, "fitness-articles.yml", client.WorkflowFile("fitness-articles"))
	assert.Equal(t, "video-factory.yaml", client.WorkflowFile("video-factory.yaml"))
}
