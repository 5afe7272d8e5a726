package machine

import (
	"go.uber.org/fx"
)

// Module provides the machine/tool-registry domain.
var Module = fx.Module("machine",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
