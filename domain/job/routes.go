package job

import (
	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/auth"
)

// RegisterRoutes registers job routes, scoped to a cluster.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/clusters/:clusterId/jobs")
	g.Use(authMiddleware.RequireClusterAuth())

	g.POST("", h.Create)
	g.GET("", h.Claim)
	g.GET("/:jobId", h.Get)
	g.POST("/:jobId/result", h.SubmitResult)
	g.POST("/:jobId/approval", h.Approval)
}
