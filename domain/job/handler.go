package job

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/auth"
)

// Handler handles HTTP requests for jobs.
type Handler struct {
	svc *Service
}

// NewHandler creates a new job handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create creates a job.
//
// @Summary      Create a job
// @Description  Creates a job targeting a registered tool and returns immediately; a cache hit returns the earlier successful job instead of a new pending one
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        request body CreateRequest true "Job creation request"
// @Success      200 {object} Job "Job created or cache hit"
// @Failure      400 {object} apperror.Error "Invalid request body"
// @Failure      404 {object} apperror.Error "Tool not found or not callable"
// @Router       /clusters/{clusterId}/jobs [post]
// @Security     bearerAuth
func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	clusterID := c.Param("clusterId")
	j, err := h.svc.Create(c.Request().Context(), clusterID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, j)
}

// Claim is the worker claim endpoint. It makes one claim attempt and
// returns at once with whatever it claimed, possibly an empty list; it
// reads no waitTime and does not wait for new jobs to arrive.
//
// @Summary      Claim pending jobs
// @Description  Atomically claims pending jobs matching the caller's tool set
// @Tags         jobs
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        tools query string true "Comma-separated tool names"
// @Param        limit query int false "Max jobs to claim"
// @Success      200 {array} ClaimResponse "Claimed jobs"
// @Router       /clusters/{clusterId}/jobs [get]
// @Security     bearerAuth
func (h *Handler) Claim(c echo.Context) error {
	clusterID := c.Param("clusterId")

	ac := auth.GetAuthContext(c)
	machineID := c.Request().Header.Get("X-Machine-Id")
	if ac != nil && ac.MachineID != "" {
		machineID = ac.MachineID
	}

	tools := splitCSV(c.QueryParam("tools"))
	limit := 10
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	jobs, err := h.svc.Claim(c.Request().Context(), clusterID, machineID, tools, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jobs)
}

// SubmitResult is the leaseholder's result-submission endpoint.
//
// @Summary      Submit a job result
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        jobId path string true "Job ID"
// @Param        request body SubmitResultRequest true "Result submission"
// @Success      204 "Result accepted"
// @Failure      409 {object} apperror.Error "Lease lost or job not running"
// @Router       /clusters/{clusterId}/jobs/{jobId}/result [post]
// @Security     bearerAuth
func (h *Handler) SubmitResult(c echo.Context) error {
	var req SubmitResultRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	clusterID := c.Param("clusterId")
	jobID := c.Param("jobId")

	ac := auth.GetAuthContext(c)
	machineID := c.Request().Header.Get("X-Machine-Id")
	if ac != nil && ac.MachineID != "" {
		machineID = ac.MachineID
	}

	if _, err := h.svc.SubmitResult(c.Request().Context(), clusterID, jobID, machineID, req); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// Approval approves or rejects an interrupted approval job.
//
// @Summary      Approve or reject an interrupted job
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        jobId path string true "Job ID"
// @Param        request body ApprovalRequest true "Approval decision"
// @Success      204 "Decision recorded"
// @Router       /clusters/{clusterId}/jobs/{jobId}/approval [post]
// @Security     bearerAuth
func (h *Handler) Approval(c echo.Context) error {
	var req ApprovalRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	clusterID := c.Param("clusterId")
	jobID := c.Param("jobId")

	if _, err := h.svc.Approve(c.Request().Context(), clusterID, jobID, req.Approved); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// Get returns a job by id.
//
// @Summary      Get job by ID
// @Tags         jobs
// @Produce      json
// @Param        clusterId path string true "Cluster ID"
// @Param        jobId path string true "Job ID"
// @Success      200 {object} Job "Job details"
// @Failure      404 {object} apperror.Error "Job not found"
// @Router       /clusters/{clusterId}/jobs/{jobId} [get]
// @Security     bearerAuth
func (h *Handler) Get(c echo.Context) error {
	clusterID := c.Param("clusterId")
	jobID := c.Param("jobId")

	j, err := h.svc.GetByID(c.Request().Context(), clusterID, jobID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, j)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
