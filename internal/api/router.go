package api

import (
	"github.com/gin-gonic/gin"
	"github.com/kweiss/applyflow/internal/api/handler"
	"github.com/kweiss/applyflow/internal/api/middleware"
	"github.com/kweiss/applyflow/internal/config"
	"github.com/kweiss/applyflow/internal/repository"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(repo *repository.JobRepository, cfg *config.ServerConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	jobHandler := handler.NewJobHandler(repo)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Jobs
		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/:id", jobHandler.GetJob)

		// Stats
		v1.GET("/stats", jobHandler.GetStats)
	}

	return r
}
