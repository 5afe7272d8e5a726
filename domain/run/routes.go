package run

import (
	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/auth"
)

// RegisterRoutes registers run routes, scoped to a cluster. The CORS setup
// (internal/server/server.go) carries a documented any-origin exception for
// this prefix, since a browser-hosted agent UI long-polls these endpoints
// directly.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/clusters/:clusterId/runs")
	g.Use(authMiddleware.RequireClusterAuth())

	g.POST("", h.Create)
	g.GET("/:runId", h.Get)
	g.POST("/:runId/messages", h.AppendMessage)
	g.GET("/:runId/messages", h.ListMessages)
	g.GET("/:runId/tool-calls", h.ListToolCalls)
}
