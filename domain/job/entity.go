package job

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

const (
	StatusPending     = "pending"
	StatusRunning     = "running"
	StatusSuccess     = "success"
	StatusFailure     = "failure"
	StatusStalled     = "stalled"
	StatusInterrupted = "interrupted"
)

const (
	ResultTypeResolution = "resolution"
	ResultTypeRejection  = "rejection"
	ResultTypeInterrupt  = "interrupt"
)

// InterruptSentinelKey is the wire sentinel identifying an interrupt result
//  : a tool result is an interrupt iff it is an object
// containing this key.
const InterruptSentinelKey = "__inferable_interrupt"

const (
	InterruptTypeApproval = "approval"
	InterruptTypeGeneral  = "general"
)

// DefaultTimeoutSeconds is used when a tool declares no timeoutSeconds.
const DefaultTimeoutSeconds = 30

// Job is a unit of work dispatched to exactly one live machine that has
// registered its targetFn, within a bounded lease, with at-least-once
// retry. See Repository.Claim for the dispatch algorithm.
type Job struct {
	bun.BaseModel `bun:"table:cp.jobs,alias:j"`

	ID                  string          `bun:"id,pk" json:"id"`
	ClusterID           string          `bun:"cluster_id,notnull" json:"clusterId"`
	RunID               *string         `bun:"run_id" json:"runId,omitempty"`
	WorkflowExecutionID *string         `bun:"workflow_execution_id" json:"workflowExecutionId,omitempty"`
	TargetFn            string          `bun:"target_fn,notnull" json:"targetFn"`
	TargetArgs          json.RawMessage `bun:"target_args,type:jsonb,notnull" json:"targetArgs"`
	Status              string          `bun:"status,notnull" json:"status"`
	ResultType          *string         `bun:"result_type" json:"resultType,omitempty"`
	Result              json.RawMessage `bun:"result,type:jsonb" json:"result,omitempty"`
	Approved            *bool           `bun:"approved" json:"approved,omitempty"`
	ApprovalRequested   bool            `bun:"approval_requested,notnull" json:"approvalRequested"`
	CreatedAt           time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	ExecutingMachineID  *string         `bun:"executing_machine_id" json:"executingMachineId,omitempty"`
	Attempts            int             `bun:"attempts,notnull" json:"attempts"`
	MaxAttempts         int             `bun:"max_attempts,notnull" json:"maxAttempts"`
	CacheKey            *string         `bun:"cache_key" json:"cacheKey,omitempty"`
	TimeoutSeconds       int            `bun:"timeout_seconds,notnull" json:"timeoutSeconds"`
	LeaseExpiresAt      *time.Time      `bun:"lease_expires_at" json:"-"`
	AuthContext         json.RawMessage `bun:"auth_context,type:jsonb" json:"authContext,omitempty"`
	RunContext          json.RawMessage `bun:"run_context,type:jsonb" json:"runContext,omitempty"`
}

// IsTerminal reports whether status ∈ {success, failure, interrupted} — the
// point at which result/resultType are frozen Note:
// "interrupted" is terminal only with respect to worker-visible mutation;
// an approval decision still moves it onward (see Repository.Approve).
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case StatusSuccess, StatusFailure, StatusInterrupted:
		return true
	default:
		return false
	}
}

// CreateRequest is the body of POST /clusters/:c/jobs.
type CreateRequest struct {
	ID          string          `json:"id"`
	TargetFn    string          `json:"targetFn" validate:"required,max=30"`
	TargetArgs  json.RawMessage `json:"targetArgs"`
	RunID       *string         `json:"runId,omitempty"`
	AuthContext json.RawMessage `json:"authContext,omitempty"`
	RunContext  json.RawMessage `json:"runContext,omitempty"`
}

// ClaimResponse is one element of the worker long-poll response.
type ClaimResponse struct {
	ID          string          `json:"id"`
	Function    string          `json:"function"`
	Input       json.RawMessage `json:"input"`
	AuthContext json.RawMessage `json:"authContext,omitempty"`
	RunContext  json.RawMessage `json:"runContext,omitempty"`
	Approved    *bool           `json:"approved,omitempty"`
}

// SubmitResultRequest is the body of POST /clusters/:c/jobs/:j/result.
type SubmitResultRequest struct {
	Result     json.RawMessage `json:"result"`
	ResultType string          `json:"resultType" validate:"required,oneof=resolution rejection interrupt"`
}

// ApprovalRequest is the body of POST /clusters/:c/jobs/:j/approval.
type ApprovalRequest struct {
	Approved bool `json:"approved"`
}

// interruptPayload captures the sentinel shape inspected in SubmitResult.
type interruptPayload struct {
	Sentinel *struct {
		Type         string          `json:"type"`
		Notification json.RawMessage `json:"notification,omitempty"`
	} `json:"__inferable_interrupt"`
}
