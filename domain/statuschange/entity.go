// Package statuschange implements the status-change dispatcher: at-least-once
// delivery of a run's terminal-status notification to whatever target its
// onStatusChange config names (function/tool, webhook, or workflow
// re-trigger), backed by the cp.status_change_outbox table.
package statuschange

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// OutboxEntry is one queued delivery attempt for a run's terminal status
// change.
type OutboxEntry struct {
	bun.BaseModel `bun:"table:cp.status_change_outbox,alias:sco"`

	ID            int64           `bun:"id,pk,autoincrement" json:"id"`
	ClusterID     string          `bun:"cluster_id,notnull" json:"clusterId"`
	RunID         string          `bun:"run_id,notnull" json:"runId"`
	Attempts      int             `bun:"attempts,notnull" json:"attempts"`
	NextAttemptAt time.Time       `bun:"next_attempt_at,notnull" json:"nextAttemptAt"`
	DeliveredAt   *time.Time      `bun:"delivered_at" json:"deliveredAt,omitempty"`
	Payload       json.RawMessage `bun:"payload,type:jsonb,notnull" json:"payload"`
	CreatedAt     time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// Summary is the run summary delivered to function/tool/webhook targets.
type Summary struct {
	RunID  string          `json:"runId"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
