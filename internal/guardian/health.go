package guardian

import (
	"context"
	"log/slog"
	"time"
)

// Health status thresholds on the 0-100 score
const (
	HealthyScore  = 80
	DegradedScore = 50

	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)

// JobHealth counts run conclusions of one job
type JobHealth struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Other   int `json:"other"`
}

// HealthSummary describes run health over a lookback period
type HealthSummary struct {
	Score       int                 `json:"health_score"`
	Status      string              `json:"status"`
	Lookback    time.Duration       `json:"-"`
	Total       int                 `json:"total"`
	Successful  int                 `json:"successful"`
	FailedRuns  int                 `json:"failed"`
	InProgress  int                 `json:"in_progress"`
	ByJob       map[JobID]JobHealth `json:"by_job"`
	Errors      []string            `json:"errors"`
	GeneratedAt time.Time           `json:"timestamp"`
}

// Summarize counts run outcomes of the jobs over lookback
func (g *Guardian) Summarize(ctx context.Context, jobs []JobID, lookback time.Duration) HealthSummary {
	if lookback <= 0 {
		lookback = DefaultHealthLookback
	}

	now := g.now()
	summary := HealthSummary{
		Lookback:    lookback,
		ByJob:       make(map[JobID]JobHealth),
		Errors:      []string{},
		GeneratedAt: now,
	}

	for _, job := range uniqueJobs(jobs) {
		// health reads are not evaluation errors, keep them out of the guard metrics
		runs, ok := g.fetchRuns(ctx, job, func(_ string, err error) {
			summary.Errors = append(summary.Errors, err.Error())
		})
		if !ok {
			continue
		}

		counts := JobHealth{}
		for _, run := range runs {
			if now.Sub(run.CreatedAt) >= lookback {
				continue
			}

			summary.Total++
			if run.Status == RunStatusInProgress || run.Status == RunStatusQueued {
				summary.InProgress++
			}

			switch run.Conclusion {
			case ConclusionSuccess:
				summary.Successful++
				counts.Success++
			case ConclusionFailure:
				summary.FailedRuns++
				counts.Failure++
			default:
				counts.Other++
			}
		}
		summary.ByJob[job] = counts
	}

	summary.Score = healthScore(summary.Successful, summary.Total)
	summary.Status = healthStatus(summary.Score)

	g.logger.Info("Health summary computed",
		slog.Int("score", summary.Score),
		slog.String("status", summary.Status),
		slog.Int("total", summary.Total),
	)

	return summary
}

func healthScore(successful, total int) int {
	if total == 0 {
		return 100
	}
	return successful * 100 / total
}

func healthStatus(score int) string {
	switch {
	case score >= HealthyScore:
		return HealthStatusHealthy
	case score >= DegradedScore:
		return HealthStatusDegraded
	default:
		return HealthStatusUnhealthy
	}
}
