// Package workflow implements the workflow engine: named, versioned
// deterministic handlers with durable memoization (domain/memo) and
// agent-triggering (domain/run), executed as a special job (domain/job).
package workflow

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// Execution is one (name, executionId) workflow run. version is pinned at
// creation: a redeployed workflow version does not affect in-flight
// executions created under an earlier version (see DESIGN.md).
type Execution struct {
	bun.BaseModel `bun:"table:cp.workflow_executions,alias:wfe"`

	ClusterID   string    `bun:"cluster_id,pk" json:"clusterId"`
	Name        string    `bun:"name,pk" json:"name"`
	Version     int       `bun:"version,notnull" json:"version"`
	ExecutionID string    `bun:"execution_id,pk" json:"executionId"`
	JobID       string    `bun:"job_id,notnull" json:"jobId"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// CreateExecutionRequest is the body of
// POST /clusters/:c/workflows/:name/executions.
type CreateExecutionRequest struct {
	ExecutionID string          `json:"executionId" validate:"required"`
	Version     int             `json:"version,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
}

// CreateExecutionResponse is the response to a (re)create call.
type CreateExecutionResponse struct {
	JobID string `json:"jobId"`
}

// workflowToolName is the private tool name a workflow is registered under:
// workflows_<name>_<version>.
func workflowToolName(name string, version int) string {
	return "workflows_" + name + "_" + strconv.Itoa(version)
}
