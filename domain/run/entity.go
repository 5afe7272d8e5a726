package run

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

const (
	TypeSingleStep = "single-step"
	TypeMultiStep  = "multi-step"
)

const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusPaused  = "paused"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// OnStatusChange is a normalized tagged union describing how to notify on a
// terminal status transition.
type OnStatusChange struct {
	Type     string   `json:"type"` // function | tool | webhook | workflow
	Statuses []string `json:"statuses"`
	Target   string   `json:"target,omitempty"`
	URL      string   `json:"url,omitempty"`
	Workflow *struct {
		ExecutionID string `json:"executionId"`
	} `json:"workflow,omitempty"`
}

// Run is an agent-loop session: at most one active agent step at a time.
type Run struct {
	bun.BaseModel `bun:"table:cp.runs,alias:r"`

	ID                    string          `bun:"id,pk" json:"id"`
	ClusterID             string          `bun:"cluster_id,notnull" json:"clusterId"`
	Type                  string          `bun:"type,notnull" json:"type"`
	Status                string          `bun:"status,notnull" json:"status"`
	SystemPrompt          string          `bun:"system_prompt" json:"systemPrompt,omitempty"`
	InitialPrompt         string          `bun:"initial_prompt" json:"initialPrompt,omitempty"`
	ResultSchema          json.RawMessage `bun:"result_schema,type:jsonb" json:"resultSchema,omitempty"`
	Tools                 json.RawMessage `bun:"tools,type:jsonb" json:"tools,omitempty"`
	Context               json.RawMessage `bun:"context,type:jsonb" json:"context,omitempty"`
	AuthContext           json.RawMessage `bun:"auth_context,type:jsonb" json:"authContext,omitempty"`
	Tags                  json.RawMessage `bun:"tags,type:jsonb" json:"tags,omitempty"`
	Interactive           bool            `bun:"interactive,notnull" json:"interactive"`
	ReasoningTraces       bool            `bun:"reasoning_traces,notnull" json:"reasoningTraces"`
	EnableResultGrounding bool            `bun:"enable_result_grounding,notnull" json:"enableResultGrounding"`
	OnStatusChange        json.RawMessage `bun:"on_status_change,type:jsonb" json:"onStatusChange,omitempty"`
	WorkflowExecutionID   *string         `bun:"workflow_execution_id" json:"workflowExecutionId,omitempty"`
	FeedbackScore         *int            `bun:"feedback_score" json:"feedbackScore,omitempty"`
	FeedbackComment       string          `bun:"feedback_comment" json:"feedbackComment,omitempty"`
	FailureReason         string          `bun:"failure_reason" json:"failureReason,omitempty"`
	Result                json.RawMessage `bun:"result,type:jsonb" json:"result,omitempty"`
	CreatedAt             time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt             time.Time       `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

const (
	MessageTypeHuman            = "human"
	MessageTypeAgent            = "agent"
	MessageTypeInvocationResult = "invocation-result"
	MessageTypeTemplate         = "template"
	MessageTypeSupervisor       = "supervisor"
	MessageTypeAgentInvalid     = "agent-invalid"
)

// Invocation is one model-requested tool call within an `agent` message.
type Invocation struct {
	ID        string          `json:"id"`
	ToolName  string          `json:"toolName"`
	Input     json.RawMessage `json:"input"`
	Reasoning string          `json:"reasoning,omitempty"`
}

// AgentMessageData is the payload of an `agent` message.
type AgentMessageData struct {
	Invocations []Invocation    `json:"invocations,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Message     string          `json:"message,omitempty"`
	Issue       string          `json:"issue,omitempty"`
	Done        bool            `json:"done"`
}

// InvocationResultData is the payload of an `invocation-result` message.
type InvocationResultData struct {
	InvocationID string          `json:"invocationId"`
	ResultType   string          `json:"resultType"` // resolution | rejection
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Message is an append-only, per-run, typed-union entry. Data round-trips
// unknown future fields untouched since it's stored as raw JSON.
type Message struct {
	bun.BaseModel `bun:"table:cp.messages,alias:msg"`

	ID        string          `bun:"id,pk" json:"id"`
	RunID     string          `bun:"run_id,notnull" json:"runId"`
	ClusterID string          `bun:"cluster_id,notnull" json:"clusterId"`
	Type      string          `bun:"type,notnull" json:"type"`
	Data      json.RawMessage `bun:"data,type:jsonb,notnull" json:"data"`
	CreatedAt time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// ToolCallLog is a supplemental per-invocation audit record (not in
// the data model; see DESIGN.md), read-only via
// GET /clusters/:c/runs/:r/tool-calls.
type ToolCallLog struct {
	bun.BaseModel `bun:"table:cp.tool_call_logs,alias:tcl"`

	ID           string     `bun:"id,pk,default:gen_random_uuid()" json:"id"`
	RunID        string     `bun:"run_id,notnull" json:"runId"`
	InvocationID string     `bun:"invocation_id,notnull" json:"invocationId"`
	ToolName     string     `bun:"tool_name,notnull" json:"toolName"`
	JobID        string     `bun:"job_id" json:"jobId,omitempty"`
	StartedAt    time.Time  `bun:"started_at,notnull,default:now()" json:"startedAt"`
	CompletedAt  *time.Time `bun:"completed_at" json:"completedAt,omitempty"`
	ResultType   string     `bun:"result_type" json:"resultType,omitempty"`
}

// CreateRequest is the body of POST /clusters/:c/runs.
type CreateRequest struct {
	ID                    string          `json:"id,omitempty"`
	Type                  string          `json:"type,omitempty"`
	SystemPrompt          string          `json:"systemPrompt,omitempty"`
	InitialPrompt         string          `json:"initialPrompt,omitempty"`
	ResultSchema          json.RawMessage `json:"resultSchema,omitempty"`
	Tools                 []string        `json:"tools,omitempty"`
	Context               json.RawMessage `json:"context,omitempty"`
	AuthContext           json.RawMessage `json:"authContext,omitempty"`
	Tags                  json.RawMessage `json:"tags,omitempty"`
	Interactive           bool            `json:"interactive,omitempty"`
	ReasoningTraces       bool            `json:"reasoningTraces,omitempty"`
	EnableResultGrounding bool            `json:"enableResultGrounding,omitempty"`
	OnStatusChange        json.RawMessage `json:"onStatusChange,omitempty"`
}

// AppendMessageRequest is the body of POST /clusters/:c/runs/:r/messages.
type AppendMessageRequest struct {
	Type string          `json:"type" validate:"required,oneof=human supervisor"`
	Data json.RawMessage `json:"data"`
}
