package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yangshenhuai/skid-homework/api/handlers"
	"github.com/yangshenhuai/skid-homework/api/middleware"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

// SetupRoutes registers every API route on r
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, origins []string, log logger.Logger) {
	r.Use(middleware.RequestLogger(log.Named("http")))
	r.Use(middleware.CORS(origins))

	r.GET("/health", handlers.Health)

	v1 := r.Group("/api/v1")

	items := v1.Group("/items")
	{
		items.POST("", h.Items.Upload)
		items.GET("", h.Items.List)
		items.DELETE("", h.Items.Clear)
		items.GET("/:id/content", h.Items.Content)
		items.PATCH("/:id", h.Items.Rename)
		items.DELETE("/:id", h.Items.Remove)
	}

	scan := v1.Group("/scan")
	{
		scan.POST("", h.Scan.Start)
		scan.GET("", h.Scan.Status)
		scan.DELETE("", h.Scan.Cancel)
	}

	solutions := v1.Group("/solutions")
	{
		solutions.GET("/:id", h.Solutions.Get)
		solutions.PUT("/:id/problems/:index", h.Solutions.UpdateProblem)
	}
	v1.GET("/export", h.Solutions.Export)

	sources := v1.Group("/sources")
	{
		sources.GET("", h.Sources.List)
		sources.GET("/:id/models", h.Sources.Models)
	}

	v1.GET("/events", h.Events.Stream)
}
