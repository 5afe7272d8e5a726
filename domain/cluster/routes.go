package cluster

import (
	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/auth"
)

// RegisterRoutes registers cluster routes.
//
// Cluster creation and listing are platform-management operations: a
// cluster's own bearer key does not exist until creation succeeds, so
// there is nothing to authenticate creation against. Everything scoped
// to an existing cluster's data requires that cluster's own credentials.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/clusters")

	g.POST("", h.Create)
	g.GET("", h.List)

	scoped := g.Group("/:clusterId")
	scoped.Use(authMiddleware.RequireClusterAuth())
	scoped.GET("", h.Get)
}
