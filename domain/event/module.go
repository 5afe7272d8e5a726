package event

import (
	"go.uber.org/fx"
)

// Module provides the cluster event audit log.
var Module = fx.Module("event",
	fx.Provide(
		NewRepository,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
