package model

import (
	"go.uber.org/fx"

	"github.com/agentcp/controlplane/internal/config"
)

// Module provides the model capability.
var Module = fx.Module("model",
	fx.Provide(func(cfg *config.Config) Model {
		return NewAnthropicModel(&cfg.Model)
	}),
)
