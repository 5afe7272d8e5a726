package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

// AuthContext is the authenticated identity attached to a cluster-scoped
// request: either a holder of the cluster's bearer API key, or a principal
// resolved by the cluster's custom auth function.
type AuthContext struct {
	ClusterID string `json:"clusterId"`

	// MachineID identifies a worker machine. RequireClusterAuth never sets
	// it, so it is empty on every AuthContext this package creates.
	MachineID string `json:"machineId,omitempty"`

	// Raw carries whatever a custom auth function returned, passed through
	// to jobs/runs as their authContext.
	Raw json.RawMessage `json:"-"`
}

type contextKey string

const authContextKey contextKey = "cluster_auth"

// GetAuthContext retrieves the authenticated cluster context from Echo.
func GetAuthContext(c echo.Context) *AuthContext {
	if ac, ok := c.Get(string(authContextKey)).(*AuthContext); ok {
		return ac
	}
	return nil
}

// CustomAuthVerifier resolves a `Authorization: Custom <token>` credential
// for a cluster that has enableCustomAuth set, by invoking the cluster's
// configured handleCustomAuthFunction as a tool call and waiting for its
// result. Authentication/identity policy itself is an external collaborator
// (spec §1 Non-goals); this interface is the narrow contract this control
// plane needs from it.
type CustomAuthVerifier interface {
	Verify(ctx context.Context, clusterID, handlerFn, token string) (json.RawMessage, error)
}

// clusterRow is the subset of cp.clusters this package needs; it is read
// directly rather than through domain/cluster to avoid an import cycle
// (domain/cluster registers routes guarded by this middleware).
type clusterRow struct {
	ID                      string `bun:"id"`
	APIKeyHash              string `bun:"api_key_hash"`
	EnableCustomAuth        bool   `bun:"enable_custom_auth"`
	HandleCustomAuthFunction string `bun:"handle_custom_auth_function"`
}

// Middleware authenticates cluster-scoped requests.
type Middleware struct {
	db       bun.IDB
	log      *slog.Logger
	verifier CustomAuthVerifier
}

// NewMiddleware creates the cluster-auth middleware. verifier may be nil;
// clusters with enableCustomAuth then always reject Custom-scheme tokens.
func NewMiddleware(db bun.IDB, log *slog.Logger, verifier CustomAuthVerifier) *Middleware {
	return &Middleware{
		db:       db,
		log:      log.With(logger.Scope("auth")),
		verifier: verifier,
	}
}

// RequireClusterAuth authenticates the `:clusterId` path param against
// either the cluster's bearer API key or, if enabled, its custom auth
// function, and stores the resulting *AuthContext on the Echo context.
func (m *Middleware) RequireClusterAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clusterID := c.Param("clusterId")
			if clusterID == "" {
				clusterID = c.Param("c")
			}
			if clusterID == "" {
				return apperror.ErrBadRequest.WithMessage("cluster id required")
			}

			header := c.Request().Header.Get("Authorization")
			scheme, credential, ok := splitAuthHeader(header)
			if !ok {
				return apperror.ErrMissingToken
			}

			row, err := m.lookupCluster(c.Request().Context(), clusterID)
			if err != nil {
				return err
			}

			ac, err := m.authenticate(c.Request().Context(), row, scheme, credential)
			if err != nil {
				m.log.Warn("authentication failed", logger.Error(err), slog.String("clusterId", clusterID))
				return err
			}

			c.Set(string(authContextKey), ac)
			return next(c)
		}
	}
}

func (m *Middleware) authenticate(ctx context.Context, row *clusterRow, scheme, credential string) (*AuthContext, error) {
	switch strings.ToLower(scheme) {
	case "bearer":
		if row.APIKeyHash == "" || hashKey(credential) != row.APIKeyHash {
			return nil, apperror.ErrInvalidToken
		}
		return &AuthContext{ClusterID: row.ID}, nil

	case "custom":
		if !row.EnableCustomAuth {
			return nil, apperror.ErrInvalidToken.WithMessage("cluster does not accept custom auth")
		}
		if m.verifier == nil {
			return nil, apperror.ErrInternal.WithMessage("custom auth verifier not configured")
		}
		raw, err := m.verifier.Verify(ctx, row.ID, row.HandleCustomAuthFunction, credential)
		if err != nil {
			return nil, apperror.ErrInvalidToken.WithInternal(err)
		}
		return &AuthContext{ClusterID: row.ID, Raw: raw}, nil

	default:
		return nil, apperror.ErrMissingToken
	}
}

func (m *Middleware) lookupCluster(ctx context.Context, clusterID string) (*clusterRow, error) {
	var row clusterRow
	err := m.db.NewSelect().
		TableExpr("cp.clusters").
		Column("id", "api_key_hash", "enable_custom_auth", "handle_custom_auth_function").
		Where("id = ?", clusterID).
		Scan(ctx, &row)
	if err != nil {
		return nil, apperror.ErrNotFound.WithMessage("cluster not found")
	}
	return &row, nil
}

func splitAuthHeader(header string) (scheme, credential string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// HashAPIKey hashes a plaintext cluster API key for storage/comparison.
func HashAPIKey(key string) string {
	return hashKey(key)
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
