package workflow

import (
	"go.uber.org/fx"
)

// Module provides the workflow engine domain.
var Module = fx.Module("workflow",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
