package memo

import (
	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/auth"
)

// RegisterRoutes registers MemoKV routes, scoped to a cluster.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/clusters/:clusterId/keys")
	g.Use(authMiddleware.RequireClusterAuth())

	g.PUT("/:key", h.Put)
	g.GET("/:key", h.Get)
	g.GET("/:key/value", h.GetValue)
}
