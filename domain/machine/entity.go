package machine

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Machine is a worker process polling this control plane for jobs. It is
// identified by (clusterId, id) and upserted on every poll, throttled to at
// most one write per window (see Service.Register).
type Machine struct {
	bun.BaseModel `bun:"table:cp.machines,alias:m"`

	ClusterID   string    `bun:"cluster_id,pk" json:"clusterId"`
	ID          string    `bun:"id,pk" json:"id"`
	LastPingAt  time.Time `bun:"last_ping_at" json:"lastPingAt"`
	IP          string    `bun:"ip" json:"ip,omitempty"`
	SDKVersion  string    `bun:"sdk_version" json:"sdkVersion,omitempty"`
	SDKLanguage string    `bun:"sdk_language" json:"sdkLanguage,omitempty"`
	Status      string    `bun:"status,notnull" json:"status"`
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// ToolCacheConfig controls result caching for a tool.
type ToolCacheConfig struct {
	KeyPath    string `json:"keyPath,omitempty"`
	TTLSeconds int    `json:"ttlSeconds,omitempty"`
}

// ToolConfig is the opaque per-tool behavior configuration.
type ToolConfig struct {
	Cache             *ToolCacheConfig `json:"cache,omitempty"`
	RetryCountOnStall int              `json:"retryCountOnStall,omitempty"`
	TimeoutSeconds    int              `json:"timeoutSeconds,omitempty"`
	Private           bool             `json:"private,omitempty"`
}

// Tool is a named function a machine can execute; it has an input schema and
// config. Tool names are unique per cluster.
type Tool struct {
	bun.BaseModel `bun:"table:cp.tools,alias:t"`

	ClusterID      string          `bun:"cluster_id,pk" json:"clusterId"`
	Name           string          `bun:"name,pk" json:"name"`
	Description    string          `bun:"description" json:"description,omitempty"`
	Schema         json.RawMessage `bun:"schema,type:jsonb" json:"schema,omitempty"`
	Config         ToolConfig      `bun:"config,type:jsonb,notnull" json:"config"`
	ShouldExpire   bool            `bun:"should_expire,notnull" json:"shouldExpire"`
	CreatedAt      time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	LastPingAt     *time.Time      `bun:"last_ping_at" json:"lastPingAt,omitempty"`
	OwnerMachineID string          `bun:"owner_machine_id" json:"-"`
}

// ToolDeclaration is how a machine declares a tool when it registers.
type ToolDeclaration struct {
	Name        string          `json:"name" validate:"required,max=30"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
	Config      ToolConfig      `json:"config"`
}

// RegisterRequest is the body of POST /clusters/:clusterId/machines.
type RegisterRequest struct {
	ID          string            `json:"id" validate:"required"`
	IP          string            `json:"ip"`
	SDKVersion  string            `json:"sdkVersion"`
	SDKLanguage string            `json:"sdkLanguage"`
	Tools       []ToolDeclaration `json:"tools"`
}
