package event

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Event types emitted by the job/run/status-change pipelines.
const (
	TypeJobResult             = "job.result"
	TypeRunStatusChanged      = "run.status_changed"
	TypeStatusChangeDelivered = "status_change.delivered"
)

// Event is an append-only audit log row scoped to a cluster, filterable by
// jobId/machineId/runId/type/targetFn/status. Never updated after insert.
type Event struct {
	bun.BaseModel `bun:"table:cp.events,alias:ev"`

	ID        string          `bun:"id,pk" json:"id"`
	ClusterID string          `bun:"cluster_id,notnull" json:"clusterId"`
	CreatedAt time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	JobID     *string         `bun:"job_id" json:"jobId,omitempty"`
	MachineID *string         `bun:"machine_id" json:"machineId,omitempty"`
	RunID     *string         `bun:"run_id" json:"runId,omitempty"`
	Type      string          `bun:"type,notnull" json:"type"`
	TargetFn  *string         `bun:"target_fn" json:"targetFn,omitempty"`
	Status    *string         `bun:"status" json:"status,omitempty"`
	Payload   json.RawMessage `bun:"payload,type:jsonb" json:"payload,omitempty"`
}

// ListFilter narrows a cluster's event scan. All fields are optional; the
// zero value lists everything for the cluster, most recent first.
type ListFilter struct {
	JobID     string
	MachineID string
	RunID     string
	Type      string
	TargetFn  string
	Status    string
	Before    time.Time
	Limit     int
}
