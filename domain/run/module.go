package run

import (
	"go.uber.org/fx"
)

// Module provides the agent engine domain.
var Module = fx.Module("run",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
