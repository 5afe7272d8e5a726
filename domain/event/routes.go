package event

import (
	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/auth"
)

// RegisterRoutes registers event-audit-log routes, scoped to a cluster.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/clusters/:clusterId/events")
	g.Use(authMiddleware.RequireClusterAuth())

	g.GET("", h.List)
}
