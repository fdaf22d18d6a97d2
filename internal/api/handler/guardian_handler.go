package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/api/dto"
	"github.com/cuongbtq/workflow-guardian/internal/guardian"
	"github.com/gin-gonic/gin"
)

// Evaluate handles POST /api/v1/evaluations
// Runs one guard pass over the requested or configured jobs
func (h *GuardianHandler) Evaluate(c *gin.Context) {
	var req dto.EvaluateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Error("Invalid request body", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}
	}

	window := h.window
	if req.Window != "" {
		parsed, err := time.ParseDuration(req.Window)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "window must be a positive duration such as 2h",
			})
			return
		}
		window = parsed
	}

	jobs := h.jobs
	if len(req.Jobs) > 0 {
		jobs = make([]guardian.JobID, 0, len(req.Jobs))
		for _, job := range req.Jobs {
			jobs = append(jobs, guardian.JobID(strings.TrimSpace(job)))
		}
	}
	if len(jobs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "no jobs to evaluate",
		})
		return
	}

	g := h.guardian
	if req.DryRun != nil {
		g = g.WithDryRun(*req.DryRun)
	}

	// a disconnecting client must not cut the pass short; per-call timeouts still apply
	result := g.Evaluate(context.WithoutCancel(c.Request.Context()), jobs, window)
	c.JSON(http.StatusOK, result)
}

// HealthSummary handles GET /api/v1/health-summary
func (h *GuardianHandler) HealthSummary(c *gin.Context) {
	var req dto.HealthSummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil || req.Hours < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "hours must be a positive integer",
		})
		return
	}

	lookback := h.lookback
	if req.Hours > 0 {
		lookback = time.Duration(req.Hours) * time.Hour
	}

	summary := h.guardian.Summarize(context.WithoutCancel(c.Request.Context()), h.jobs, lookback)
	c.JSON(http.StatusOK, summary)
}
