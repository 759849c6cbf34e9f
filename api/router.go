package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/sc-fetch-go/api/handlers"
	"github.com/yourusername/sc-fetch-go/api/middleware"
	"github.com/yourusername/sc-fetch-go/internal/app"
)

// SetupRouter sets up the HTTP router
func SetupRouter(jobMgr *app.JobManager, broadcaster *app.Broadcaster, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(jobMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		jobHandler := handlers.NewJobHandler(jobMgr, log)
		progressHandler := handlers.NewProgressWebSocketHandler(broadcaster, jobMgr, log)

		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.SubmitJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/stats", jobHandler.GetStats)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.GET("/:id/download", jobHandler.DownloadArtifact)
			jobs.GET("/:id/events", progressHandler.HandleProgress)
		}
	}

	return router
}
