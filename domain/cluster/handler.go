package cluster

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/apperror"
)

// Handler handles HTTP requests for clusters.
type Handler struct {
	svc *Service
}

// NewHandler creates a new cluster handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create creates a new cluster and returns its bearer API key.
//
// @Summary      Create a new cluster
// @Description  Creates a new cluster, returning the plaintext API key exactly once
// @Tags         clusters
// @Accept       json
// @Produce      json
// @Param        request body CreateRequest true "Cluster creation request"
// @Success      201 {object} CreateResponse "Cluster created"
// @Failure      400 {object} apperror.Error "Invalid request body"
// @Failure      500 {object} apperror.Error "Internal server error"
// @Router       /clusters [post]
func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, resp)
}

// Get returns a cluster by ID.
//
// @Summary      Get cluster by ID
// @Description  Returns cluster metadata; never includes the API key hash
// @Tags         clusters
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Success      200 {object} Cluster "Cluster details"
// @Failure      404 {object} apperror.Error "Cluster not found"
// @Router       /clusters/{clusterId} [get]
// @Security     bearerAuth
func (h *Handler) Get(c echo.Context) error {
	id := c.Param("clusterId")

	cl, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, cl)
}

// List returns all clusters.
//
// @Summary      List clusters
// @Description  Returns all clusters known to this control plane
// @Tags         clusters
// @Produce      json
// @Success      200 {array} Cluster "List of clusters"
// @Router       /clusters [get]
func (h *Handler) List(c echo.Context) error {
	clusters, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, clusters)
}
