package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/api/dto"
	"github.com/cuongbtq/workflow-guardian/internal/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateRun handles POST /api/v1/runs
// Records a workflow run reported by CI so the guardian can evaluate it
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req dto.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	createdAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.CreatedAt))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "created_at must be an RFC 3339 timestamp",
		})
		return
	}

	now := time.Now().UTC()
	run := storage.Run{
		RunID:      strings.TrimSpace(req.RunID),
		JobID:      strings.TrimSpace(req.JobID),
		Status:     strings.TrimSpace(req.Status),
		Conclusion: strings.ToLower(strings.TrimSpace(req.Conclusion)),
		HTMLURL:    req.HTMLURL,
		CreatedAt:  createdAt.UTC(),
		UpdatedAt:  now,
	}

	if err := h.runs.UpsertRun(c.Request.Context(), &run); err != nil {
		h.logger.Error("Failed to store run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store run",
		})
		return
	}

	c.JSON(http.StatusCreated, toRunDTO(run))
}

// GetRun handles GET /api/v1/runs/:run_id
func (h *RunHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")

	run, err := h.runs.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Run not found",
			})
			return
		}
		h.logger.Error("Failed to get run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get run",
		})
		return
	}

	c.JSON(http.StatusOK, toRunDTO(*run))
}

// ListRuns handles GET /api/v1/runs
// Lists runs newest first with optional job and conclusion filters
func (h *RunHandler) ListRuns(c *gin.Context) {
	var req dto.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeRunCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.RunFilter{
		JobID:      req.JobID,
		Conclusion: strings.ToLower(req.Conclusion),
		PageSize:   req.PageSize,
		Cursor:     cursor,
	}

	runs, err := h.runs.ListRuns(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list runs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list runs",
		})
		return
	}

	hasMore := len(runs) > req.PageSize
	if hasMore {
		runs = runs[:req.PageSize]
	}

	resp := dto.ListRunsResponse{Runs: make([]dto.RunDTO, len(runs))}
	for i, run := range runs {
		resp.Runs[i] = toRunDTO(run)
	}

	if hasMore {
		last := runs[len(runs)-1]
		resp.NextCursor = EncodeRunCursor(&storage.RunCursor{
			CreatedAt: last.CreatedAt,
			RunID:     last.RunID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func toRunDTO(run storage.Run) dto.RunDTO {
	return dto.RunDTO{
		RunID:      run.RunID,
		JobID:      run.JobID,
		Status:     run.Status,
		Conclusion: run.Conclusion,
		HTMLURL:    run.HTMLURL,
		CreatedAt:  run.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  run.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
