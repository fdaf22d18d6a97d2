package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/api/dto"
	"github.com/cuongbtq/workflow-guardian/internal/api/handler"
	"github.com/cuongbtq/workflow-guardian/internal/guardian"
	"github.com/cuongbtq/workflow-guardian/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// memoryStore keeps runs in memory and doubles as the guardian history source
type memoryStore struct {
	mu      sync.Mutex
	runs    map[string]storage.Run
	listErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: map[string]storage.Run{}}
}

func (m *memoryStore) UpsertRun(_ context.Context, run *storage.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.RunID] = *run
	return nil
}

func (m *memoryStore) GetRun(_ context.Context, runID string) (*storage.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, storage.ErrRunNotFound
	}
	return &run, nil
}

func (m *memoryStore) ListRuns(_ context.Context, filter storage.RunFilter) ([]storage.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}

	out := []storage.Run{}
	for _, run := range m.runs {
		if filter.JobID != "" && run.JobID != filter.JobID {
			continue
		}
		if filter.Conclusion != "" && run.Conclusion != filter.Conclusion {
			continue
		}
		if c := filter.Cursor; c != nil {
			if !run.CreatedAt.Before(c.CreatedAt) && !(run.CreatedAt.Equal(c.CreatedAt) && run.RunID < c.RunID) {
				continue
			}
		}
		out = append(out, run)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RunID > out[j].RunID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if len(out) > filter.PageSize+1 {
		out = out[:filter.PageSize+1]
	}
	return out, nil
}

func (m *memoryStore) RecentRuns(_ context.Context, job guardian.JobID) ([]guardian.RawRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var raws []guardian.RawRun
	for _, run := range m.runs {
		if run.JobID != string(job) {
			continue
		}
		raws = append(raws, guardian.RawRun{
			ID:         run.RunID,
			Status:     run.Status,
			Conclusion: run.Conclusion,
			CreatedAt:  run.CreatedAt.Format(time.RFC3339),
		})
	}
	return raws, nil
}

type recordingTrigger struct {
	mu    sync.Mutex
	calls []guardian.RunRecord
}

func (r *recordingTrigger) Retry(_ context.Context, run guardian.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, run)
	return nil
}

type fakeDB struct {
	err error
}

func (f fakeDB) HealthCheck(context.Context) error {
	return f.err
}

func newTestRouter(t *testing.T, store *memoryStore, trigger guardian.RetryTrigger, db handler.HealthChecker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := guardian.New(&guardian.Config{
		Source:  store,
		Trigger: trigger,
		Logger:  logger,
		Now:     func() time.Time { return testNow },
	})

	return SetupRouter(&handler.Dependencies{
		Logger:   logger,
		Runs:     store,
		DB:       db,
		Guardian: g,
		Jobs:     []guardian.JobID{"content-engine", "weekly-discovery"},
		Window:   2 * time.Hour,
	})
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedRun(store *memoryStore, jobID, runID, conclusion string, age time.Duration) {
	_ = store.UpsertRun(context.Background(), &storage.Run{
		RunID:      runID,
		JobID:      jobID,
		Status:     "completed",
		Conclusion: conclusion,
		CreatedAt:  testNow.Add(-age),
		UpdatedAt:  testNow,
	})
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		db         handler.HealthChecker
		wantStatus int
		wantBody   string
	}{
		{name: "no database", db: nil, wantStatus: http.StatusOK, wantBody: "healthy"},
		{name: "database up", db: fakeDB{}, wantStatus: http.StatusOK, wantBody: "healthy"},
		{name: "database down", db: fakeDB{err: errors.New("connection refused")}, wantStatus: http.StatusServiceUnavailable, wantBody: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, newMemoryStore(), &recordingTrigger{}, tt.db)

			w := doRequest(r, http.MethodGet, "/health", "")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, newMemoryStore(), &recordingTrigger{}, nil)

	w := doRequest(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCreateRun(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "valid",
			body:       `{"job_id":"content-engine","run_id":"9001","status":"completed","conclusion":"Failure","created_at":"2026-03-14T11:30:00Z"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing run id",
			body:       `{"job_id":"content-engine","conclusion":"failure","created_at":"2026-03-14T11:30:00Z"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad timestamp",
			body:       `{"job_id":"content-engine","run_id":"9001","conclusion":"failure","created_at":"yesterday"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"job_id":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			r := newTestRouter(t, store, &recordingTrigger{}, nil)

			w := doRequest(r, http.MethodPost, "/api/v1/runs", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusCreated {
				var run dto.RunDTO
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
				assert.Equal(t, "9001", run.RunID)
				assert.Equal(t, "failure", run.Conclusion)
				assert.Equal(t, "2026-03-14T11:30:00Z", run.CreatedAt)
				assert.Len(t, store.runs, 1)
			} else {
				assert.Empty(t, store.runs)
			}
		})
	}
}

func TestGetRun(t *testing.T) {
	store := newMemoryStore()
	seedRun(store, "content-engine", "9001", "failure", time.Hour)
	r := newTestRouter(t, store, &recordingTrigger{}, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/runs/9001", "")
	require.Equal(t, http.StatusOK, w.Code)
	var run dto.RunDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, "content-engine", run.JobID)

	w = doRequest(r, http.MethodGet, "/api/v1/runs/404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRuns_Pagination(t *testing.T) {
	store := newMemoryStore()
	seedRun(store, "content-engine", "1", "success", 3*time.Hour)
	seedRun(store, "content-engine", "2", "failure", 2*time.Hour)
	seedRun(store, "content-engine", "3", "success", time.Hour)
	seedRun(store, "weekly-discovery", "4", "failure", 30*time.Minute)
	r := newTestRouter(t, store, &recordingTrigger{}, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/runs?job_id=content-engine&page_size=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page dto.ListRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Runs, 2)
	assert.Equal(t, "3", page.Runs[0].RunID)
	assert.Equal(t, "2", page.Runs[1].RunID)
	require.NotEmpty(t, page.NextCursor)

	w = doRequest(r, http.MethodGet, "/api/v1/runs?job_id=content-engine&page_size=2&cursor="+page.NextCursor, "")
	require.Equal(t, http.StatusOK, w.Code)

	var next dto.ListRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &next))
	require.Len(t, next.Runs, 1)
	assert.Equal(t, "1", next.Runs[0].RunID)
	assert.Empty(t, next.NextCursor)
}

func TestListRuns_Errors(t *testing.T) {
	store := newMemoryStore()
	r := newTestRouter(t, store, &recordingTrigger{}, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/runs?cursor=%25%25", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/runs?page_size=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	store.listErr = errors.New("db down")
	w = doRequest(r, http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestEvaluate(t *testing.T) {
	store := newMemoryStore()
	seedRun(store, "content-engine", "9001", "failure", 30*time.Minute)
	seedRun(store, "weekly-discovery", "9002", "failure", 5*time.Hour)
	trigger := &recordingTrigger{}
	r := newTestRouter(t, store, trigger, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/evaluations", "")
	require.Equal(t, http.StatusOK, w.Code)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, float64(2), result["checked"])
	assert.Equal(t, float64(1), result["failed"])
	assert.Equal(t, float64(1), result["retried"])
	assert.Equal(t, "2h0m0s", result["window"])
	require.Len(t, trigger.calls, 1)
	assert.Equal(t, "9001", trigger.calls[0].RunID)
}

// cancelingSource cancels the request while the first job is being fetched
type cancelingSource struct {
	*memoryStore
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancelingSource) RecentRuns(ctx context.Context, job guardian.JobID) ([]guardian.RawRun, error) {
	c.once.Do(c.cancel)
	return c.memoryStore.RecentRuns(ctx, job)
}

func TestEvaluate_ClientDisconnectStillChecksEveryJob(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemoryStore()
	seedRun(store, "content-engine", "9001", "success", 30*time.Minute)
	seedRun(store, "weekly-discovery", "9002", "failure", 20*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trigger := &recordingTrigger{}
	r := SetupRouter(&handler.Dependencies{
		Logger: logger,
		Runs:   store,
		Guardian: guardian.New(&guardian.Config{
			Source:  &cancelingSource{memoryStore: store, cancel: cancel},
			Trigger: trigger,
			Logger:  logger,
			Now:     func() time.Time { return testNow },
		}),
		Jobs:   []guardian.JobID{"content-engine", "weekly-discovery"},
		Window: 2 * time.Hour,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluations", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, float64(2), result["checked"])
	assert.Equal(t, float64(1), result["retried"])
	assert.Empty(t, result["errors"])
	require.Len(t, trigger.calls, 1)
	assert.Equal(t, "9002", trigger.calls[0].RunID)
}

func TestEvaluate_Overrides(t *testing.T) {
	store := newMemoryStore()
	seedRun(store, "weekly-discovery", "9002", "failure", 5*time.Hour)
	trigger := &recordingTrigger{}
	r := newTestRouter(t, store, trigger, nil)

	body := `{"jobs":["weekly-discovery"],"window":"6h","dry_run":true}`
	w := doRequest(r, http.MethodPost, "/api/v1/evaluations", body)
	require.Equal(t, http.StatusOK, w.Code)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, float64(1), result["checked"])
	assert.Equal(t, float64(1), result["failed"])
	assert.Equal(t, true, result["dry_run"])
	assert.Empty(t, trigger.calls)
}

func TestEvaluate_BadRequests(t *testing.T) {
	r := newTestRouter(t, newMemoryStore(), &recordingTrigger{}, nil)

	for _, body := range []string{`{"window":"soon"}`, `{"window":"-1h"}`, `{"jobs":`} {
		w := doRequest(r, http.MethodPost, "/api/v1/evaluations", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestHealthSummary(t *testing.T) {
	store := newMemoryStore()
	seedRun(store, "content-engine", "1", "success", time.Hour)
	seedRun(store, "content-engine", "2", "failure", 2*time.Hour)
	seedRun(store, "weekly-discovery", "3", "success", 30*time.Hour)
	r := newTestRouter(t, store, &recordingTrigger{}, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/health-summary?hours=24", "")
	require.Equal(t, http.StatusOK, w.Code)

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, float64(2), summary["total"])
	assert.Equal(t, float64(50), summary["health_score"])
	assert.Equal(t, guardian.HealthStatusDegraded, summary["status"])

	w = doRequest(r, http.MethodGet, "/api/v1/health-summary?hours=48", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte(`"total":3`)))

	w = doRequest(r, http.MethodGet, "/api/v1/health-summary?hours=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, newMemoryStore(), &recordingTrigger{}, nil)

	w := doRequest(r, http.MethodOptions, "/api/v1/runs", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
