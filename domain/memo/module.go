package memo

import (
	"go.uber.org/fx"
)

// Module provides the MemoKV domain.
var Module = fx.Module("memo",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
