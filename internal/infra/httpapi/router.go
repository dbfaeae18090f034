package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the API engine. The queue-backed job routes are only
// registered when the handler has a jobs backend.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), cors())

	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		api.POST("/analyses", h.CreateAnalysis)

		sessions := api.Group("/sessions")
		{
			sessions.GET("/:id/dashboard", h.Dashboard)
			sessions.DELETE("/:id", h.DeleteSession)
		}

		if h.jobsEnabled() {
			jobs := api.Group("/jobs")
			{
				jobs.POST("", h.CreateJob)
				jobs.GET("/:id", h.GetJob)
			}
		}
	}

	return r
}
