package machine

import (
	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/auth"
)

// RegisterRoutes registers machine routes, scoped to a cluster and guarded
// by that cluster's own credentials.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/clusters/:clusterId/machines")
	g.Use(authMiddleware.RequireClusterAuth())

	g.POST("", h.Register)
	g.GET("", h.List)
}
