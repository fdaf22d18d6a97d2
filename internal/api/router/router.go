package router

import (
	"net/http"

	"github.com/cuongbtq/workflow-guardian/internal/api/handler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "workflow-guardian-api"

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", healthHandler(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	runHandler := handler.NewRunHandler(deps)
	guardianHandler := handler.NewGuardianHandler(deps)

	v1 := r.Group("/api/v1")
	{
		runs := v1.Group("/runs")
		{
			// POST /api/v1/runs - Record a workflow run
			runs.POST("", runHandler.CreateRun)

			// GET /api/v1/runs - List runs with filtering and pagination
			runs.GET("", runHandler.ListRuns)

			// GET /api/v1/runs/:run_id - Get run details
			runs.GET("/:run_id", runHandler.GetRun)
		}

		// POST /api/v1/evaluations - Run one guard pass
		v1.POST("/evaluations", guardianHandler.Evaluate)

		// GET /api/v1/health-summary - Run health over a lookback period
		v1.GET("/health-summary", guardianHandler.HealthSummary)
	}

	return r
}

func healthHandler(db handler.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := db.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": serviceName,
					"error":   err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	}
}
