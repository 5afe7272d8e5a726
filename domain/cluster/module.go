package cluster

import (
	"go.uber.org/fx"
)

// Module provides the cluster domain.
var Module = fx.Module("cluster",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
