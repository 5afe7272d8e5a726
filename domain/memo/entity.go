// Package memo implements MemoKV: a durable, per-cluster key/value cell
// used both as a directly addressable store (PUT/GET /clusters/:c/keys)
// and as the workflow engine's (domain/workflow) exactly-once memoization
// primitive.
package memo

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

const (
	// OnConflictReplace overwrites the existing value.
	OnConflictReplace = "replace"
	// OnConflictDoNothing keeps the first-written value; the write is
	// silently dropped if a cell already exists under the key.
	OnConflictDoNothing = "doNothing"
)

// Cell is one MemoKV row.
type Cell struct {
	bun.BaseModel `bun:"table:cp.memo_kv,alias:memo"`

	ClusterID string          `bun:"cluster_id,pk" json:"clusterId"`
	Key       string          `bun:"key,pk" json:"key"`
	Value     json.RawMessage `bun:"value,type:jsonb,notnull" json:"value"`
	CreatedAt time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// PutRequest is the body of PUT /clusters/:c/keys/:key.
type PutRequest struct {
	Value      json.RawMessage `json:"value"`
	OnConflict string          `json:"onConflict,omitempty"` // replace | doNothing, default replace
}
