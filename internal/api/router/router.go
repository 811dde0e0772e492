package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/postings-report/internal/api/handler"
)

const serviceName = "postings-report-api"

// HealthChecker reports whether a backing service is usable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, health HealthChecker) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", healthHandler(deps.Logger, health))

	// Initialize report handler
	reportHandler := handler.NewReportHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		reports := v1.Group("/reports")
		{
			// POST /api/v1/reports - Queue a new report
			reports.POST("", reportHandler.CreateReport)

			// GET /api/v1/reports - List reports with filtering and pagination
			reports.GET("", reportHandler.ListReports)

			// GET /api/v1/reports/:report_id - Get report status and summary
			reports.GET("/:report_id", reportHandler.GetReport)

			// GET /api/v1/reports/:report_id/charts/:chart - Download a rendered chart
			reports.GET("/:report_id/charts/:chart", reportHandler.GetChart)
		}
	}

	return r
}

func healthHandler(logger *slog.Logger, health HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := health.HealthCheck(ctx); err != nil {
				logger.Warn("Health check failed", slog.String("error", err.Error()))
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
