package auth

import (
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
)

// Module provides the cluster-auth middleware.
//
// No CustomAuthVerifier is wired: resolving a cluster's own custom auth
// function (the `Authorization: Custom <token>` path) requires calling back
// into that cluster's registered machines, which belongs to whatever
// external identity system fronts this deployment, not the control plane
// itself. Clusters with enableCustomAuth set simply reject Custom-scheme
// tokens until a verifier is supplied here.
var Module = fx.Module("auth",
	fx.Provide(newMiddleware),
)

func newMiddleware(db bun.IDB, log *slog.Logger) *Middleware {
	return NewMiddleware(db, log, nil)
}
