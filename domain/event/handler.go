package event

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for the event audit log.
type Handler struct {
	svc *Service
}

// NewHandler creates a new event handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List returns a cluster's audit events, newest first, filterable by
// jobId/machineId/runId/type/targetFn/status and a before cursor.
//
// @Summary      List cluster events
// @Description  Returns the append-only audit log for a cluster, filterable and paginated by a created-before cursor
// @Tags         events
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        jobId query string false "Filter by job ID"
// @Param        machineId query string false "Filter by machine ID"
// @Param        runId query string false "Filter by run ID"
// @Param        type query string false "Filter by event type"
// @Param        targetFn query string false "Filter by target function"
// @Param        status query string false "Filter by status"
// @Param        before query string false "RFC3339 timestamp cursor; returns events created before it"
// @Param        limit query int false "Max events to return (default 100, max 200)"
// @Success      200 {array} Event "Matching events"
// @Router       /clusters/{clusterId}/events [get]
// @Security     bearerAuth
func (h *Handler) List(c echo.Context) error {
	clusterID := c.Param("clusterId")

	filter := ListFilter{
		JobID:     c.QueryParam("jobId"),
		MachineID: c.QueryParam("machineId"),
		RunID:     c.QueryParam("runId"),
		Type:      c.QueryParam("type"),
		TargetFn:  c.QueryParam("targetFn"),
		Status:    c.QueryParam("status"),
	}
	if before := c.QueryParam("before"); before != "" {
		if t, err := time.Parse(time.RFC3339, before); err == nil {
			filter.Before = t
		}
	}
	if limit := c.QueryParam("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	events, err := h.svc.List(c.Request().Context(), clusterID, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, events)
}
