package run

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/apperror"
)

// Handler handles HTTP requests for runs.
type Handler struct {
	svc *Service
}

// NewHandler creates a new run handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create creates or fetches a run by id and drives the agent loop forward.
//
// @Summary      Create or get a run
// @Description  Idempotent create-by-id; starts or resumes the agent loop
// @Tags         runs
// @Accept       json
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        request body CreateRequest true "Run creation request"
// @Success      201 {object} Run "Run created or already existed"
// @Failure      400 {object} apperror.Error "Invalid run id or request body"
// @Router       /clusters/{clusterId}/runs [post]
// @Security     bearerAuth
func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	clusterID := c.Param("clusterId")
	r, err := h.svc.CreateRun(c.Request().Context(), clusterID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, r)
}

// Get returns a run's current status (non-blocking read).
//
// @Summary      Get run by ID
// @Tags         runs
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        runId path string true "Run ID"
// @Success      200 {object} Run "Run details"
// @Failure      404 {object} apperror.Error "Run not found"
// @Router       /clusters/{clusterId}/runs/{runId} [get]
// @Security     bearerAuth
func (h *Handler) Get(c echo.Context) error {
	r, err := h.svc.GetRun(c.Request().Context(), c.Param("clusterId"), c.Param("runId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// AppendMessage appends a human or supervisor message, waking the run.
//
// @Summary      Append a message to a run
// @Tags         runs
// @Accept       json
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        runId path string true "Run ID"
// @Param        request body AppendMessageRequest true "Message to append"
// @Success      201 "Message appended"
// @Router       /clusters/{clusterId}/runs/{runId}/messages [post]
// @Security     bearerAuth
func (h *Handler) AppendMessage(c echo.Context) error {
	var req AppendMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	clusterID, runID := c.Param("clusterId"), c.Param("runId")
	if err := h.svc.AppendMessage(c.Request().Context(), clusterID, runID, req); err != nil {
		return err
	}

	return c.NoContent(http.StatusCreated)
}

// ListMessages is the message-tail long-poll endpoint.
//
// @Summary      List run messages
// @Description  Long-polls for messages after the given cursor id
// @Tags         runs
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        runId path string true "Run ID"
// @Param        after query string false "Return messages after this message id"
// @Param        waitTime query int false "Seconds to wait for new messages"
// @Success      200 {array} Message "Messages"
// @Router       /clusters/{clusterId}/runs/{runId}/messages [get]
// @Security     bearerAuth
func (h *Handler) ListMessages(c echo.Context) error {
	clusterID, runID := c.Param("clusterId"), c.Param("runId")
	after := c.QueryParam("after")

	waitTime := time.Duration(0)
	if v := c.QueryParam("waitTime"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			waitTime = time.Duration(n) * time.Second
		}
	}

	msgs, err := h.svc.WaitForMessages(c.Request().Context(), clusterID, runID, after, waitTime)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

// ListToolCalls returns the tool-call audit trail for a run.
//
// @Summary      List a run's tool call audit trail
// @Tags         runs
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        runId path string true "Run ID"
// @Success      200 {array} ToolCallLog "Tool call log entries"
// @Router       /clusters/{clusterId}/runs/{runId}/tool-calls [get]
// @Security     bearerAuth
func (h *Handler) ListToolCalls(c echo.Context) error {
	logs, err := h.svc.ListToolCalls(c.Request().Context(), c.Param("runId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, logs)
}
