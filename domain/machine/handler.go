package machine

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/apperror"
)

// Handler handles HTTP requests for machines and tool registration.
type Handler struct {
	svc *Service
}

// NewHandler creates a new machine handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register registers (or re-pings) a machine and its declared tools.
//
// @Summary      Register a machine
// @Description  Upserts a machine's heartbeat and refreshes its declared tools' liveness
// @Tags         machines
// @Accept       json
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        request body RegisterRequest true "Machine registration"
// @Success      204 "Registered"
// @Failure      400 {object} apperror.Error "Invalid request body"
// @Router       /clusters/{clusterId}/machines [post]
// @Security     bearerAuth
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	clusterID := c.Param("clusterId")
	if err := h.svc.Register(c.Request().Context(), clusterID, req); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// List returns all machines registered in a cluster.
//
// @Summary      List machines
// @Tags         machines
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Success      200 {array} Machine "List of machines"
// @Router       /clusters/{clusterId}/machines [get]
// @Security     bearerAuth
func (h *Handler) List(c echo.Context) error {
	clusterID := c.Param("clusterId")

	machines, err := h.svc.List(c.Request().Context(), clusterID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, machines)
}
