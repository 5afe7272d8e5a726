package workflow

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/apperror"
)

// Handler handles HTTP requests for workflow executions.
type Handler struct {
	svc *Service
}

// NewHandler creates a new workflow handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateExecution creates (or, idempotently, re-returns) a workflow
// execution.
//
// @Summary      Create a workflow execution
// @Description  Idempotently starts a named, versioned workflow handler under an executionId
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        name path string true "Workflow name"
// @Param        version query int false "Workflow version (default 1)"
// @Param        request body CreateExecutionRequest true "Execution creation request"
// @Success      201 {object} CreateExecutionResponse "Execution created or already existed"
// @Failure      404 {object} apperror.Error "Workflow not registered"
// @Router       /clusters/{clusterId}/workflows/{name}/executions [post]
// @Security     bearerAuth
func (h *Handler) CreateExecution(c echo.Context) error {
	var req CreateExecutionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	clusterID := c.Param("clusterId")
	name := c.Param("name")
	version := parseVersion(c.QueryParam("version"))

	_, j, err := h.svc.CreateExecution(c.Request().Context(), clusterID, name, version, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, CreateExecutionResponse{JobID: j.ID})
}

// GetExecution returns a workflow execution's current job state.
//
// @Summary      Get a workflow execution
// @Tags         workflows
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        name path string true "Workflow name"
// @Param        executionId path string true "Execution ID"
// @Success      200 {object} Execution "Execution details"
// @Failure      404 {object} apperror.Error "Execution not found"
// @Router       /clusters/{clusterId}/workflows/{name}/executions/{executionId} [get]
// @Security     bearerAuth
func (h *Handler) GetExecution(c echo.Context) error {
	clusterID := c.Param("clusterId")
	name := c.Param("name")
	executionID := c.Param("executionId")

	exec, j, err := h.svc.GetExecution(c.Request().Context(), clusterID, name, executionID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"execution": exec,
		"job":       j,
	})
}

func parseVersion(raw string) int {
	if raw == "" {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}
