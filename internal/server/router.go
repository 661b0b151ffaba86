package server

import (
	"github.com/gin-gonic/gin"

	"github.com/eioku/eioku-backend/internal/handlers"
)

type RouterConfig struct {
	HealthHandler    *handlers.HealthHandler
	VideosHandler    *handlers.VideosHandler
	TasksHandler     *handlers.TasksHandler
	ArtifactsHandler *handlers.ArtifactsHandler
	JumpHandler      *handlers.JumpHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", cfg.HealthHandler.Check)

	api := router.Group("/api")
	{
		api.POST("/videos", cfg.VideosHandler.Intake)
		api.GET("/videos/status-counts", cfg.VideosHandler.StatusCounts)
		api.GET("/videos/:id", cfg.VideosHandler.Get)
		api.DELETE("/videos/:id", cfg.VideosHandler.Delete)
		api.GET("/videos/:id/tasks", cfg.TasksHandler.ListForVideo)
		api.GET("/videos/:id/artifacts", cfg.ArtifactsHandler.ListForVideo)
		api.PUT("/videos/:id/selection", cfg.ArtifactsHandler.SetSelection)
		api.GET("/videos/:id/find/:direction", cfg.JumpHandler.FindWithin)

		api.GET("/tasks/:id", cfg.TasksHandler.Get)
		api.POST("/tasks/retry", cfg.TasksHandler.Retry)
		api.POST("/tasks/:id/cancel", cfg.TasksHandler.Cancel)

		api.GET("/artifacts/:id", cfg.ArtifactsHandler.Get)
		api.DELETE("/artifacts/:id", cfg.ArtifactsHandler.Delete)

		api.GET("/jump/next", cfg.JumpHandler.Next)
		api.GET("/jump/prev", cfg.JumpHandler.Prev)
		api.GET("/search/artifacts", cfg.JumpHandler.Search)
	}

	return router
}
