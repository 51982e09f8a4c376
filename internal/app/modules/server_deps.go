package modules

import (
	"premium-freight.io/freight/internal/api/handlers"
	"premium-freight.io/freight/internal/api/middleware"
	"premium-freight.io/freight/internal/config"
)

// NewServerDeps builds base server deps then lets each module contribute
// explicit wiring.
func NewServerDeps(cfg *config.Config, infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{
		Pool: infra.Pool,
		JWTCfg: middleware.JWTConfig{
			SigningKey: []byte(cfg.Security.SessionSecret),
			Issuer:     "premium-freight",
			ExpiresIn:  cfg.Session.Lifetime,
		},
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}
