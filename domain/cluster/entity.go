package cluster

import (
	"time"

	"github.com/uptrace/bun"
)

// Cluster is the top-level tenant boundary. No entity references another
// cluster.
type Cluster struct {
	bun.BaseModel `bun:"table:cp.clusters,alias:cl"`

	ID                       string    `bun:"id,pk" json:"id"`
	Name                     string    `bun:"name,notnull" json:"name"`
	Description              string   `bun:"description" json:"description,omitempty"`
	AdditionalContext        string    `bun:"additional_context" json:"additionalContext,omitempty"`
	Debug                    bool      `bun:"debug,notnull" json:"debug"`
	EnableCustomAuth         bool      `bun:"enable_custom_auth,notnull" json:"enableCustomAuth"`
	HandleCustomAuthFunction string    `bun:"handle_custom_auth_function" json:"handleCustomAuthFunction,omitempty"`
	IsDemo                   bool      `bun:"is_demo,notnull" json:"isDemo"`
	APIKeyHash               string    `bun:"api_key_hash" json:"-"`
	CreatedAt                time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt                time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// CreateRequest is the request body for creating a cluster.
type CreateRequest struct {
	Name                     string `json:"name" validate:"required,min=1,max=120"`
	Description              string `json:"description"`
	AdditionalContext        string `json:"additionalContext"`
	Debug                    bool   `json:"debug"`
	EnableCustomAuth         bool   `json:"enableCustomAuth"`
	HandleCustomAuthFunction string `json:"handleCustomAuthFunction"`
	IsDemo                   bool   `json:"isDemo"`
}

// CreateResponse returns the cluster plus the plaintext API key, which is
// shown exactly once — only the hash is ever persisted.
type CreateResponse struct {
	Cluster
	APIKey string `json:"apiKey"`
}
