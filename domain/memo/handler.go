package memo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/apperror"
)

// Handler handles HTTP requests for MemoKV.
type Handler struct {
	svc *Service
}

// NewHandler creates a new memo handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Put upserts a MemoKV cell.
//
// @Summary      Put a MemoKV value
// @Tags         memo
// @Accept       json
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        key path string true "Key"
// @Param        request body PutRequest true "Value and conflict policy"
// @Success      200 {object} Cell "Cell as it now reads"
// @Router       /clusters/{clusterId}/keys/{key} [put]
// @Security     bearerAuth
func (h *Handler) Put(c echo.Context) error {
	var req PutRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	clusterID := c.Param("clusterId")
	key := c.Param("key")

	cell, err := h.svc.Put(c.Request().Context(), clusterID, key, req.Value, req.OnConflict)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cell)
}

// Get returns the full MemoKV cell.
//
// @Summary      Get a MemoKV cell
// @Tags         memo
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        key path string true "Key"
// @Success      200 {object} Cell
// @Failure      404 {object} apperror.Error "Key not found"
// @Router       /clusters/{clusterId}/keys/{key} [get]
// @Security     bearerAuth
func (h *Handler) Get(c echo.Context) error {
	cell, err := h.svc.Get(c.Request().Context(), c.Param("clusterId"), c.Param("key"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cell)
}

// GetValue returns only the cell's value, unwrapped.
//
// @Summary      Get a MemoKV value
// @Tags         memo
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        key path string true "Key"
// @Success      200
// @Failure      404 {object} apperror.Error "Key not found"
// @Router       /clusters/{clusterId}/keys/{key}/value [get]
// @Security     bearerAuth
func (h *Handler) GetValue(c echo.Context) error {
	cell, err := h.svc.Get(c.Request().Context(), c.Param("clusterId"), c.Param("key"))
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, cell.Value)
}
