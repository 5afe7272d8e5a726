package workflow

import (
	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/auth"
)

// RegisterRoutes registers workflow routes, scoped to a cluster.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/clusters/:clusterId/workflows/:name/executions")
	g.Use(authMiddleware.RequireClusterAuth())

	g.POST("", h.CreateExecution)
	g.GET("/:executionId", h.GetExecution)
}
