package main

import (
	"context"

	"github.com/heytom-labs/consul-registrar/internal/config"
	"github.com/heytom-labs/consul-registrar/internal/registrar"
	"go.uber.org/zap"
)

// App Application structure
type App struct {
	Config    *config.Config
	Logger    *zap.SugaredLogger
	Registrar *registrar.Registrar
}

// Run executes one command against the configured registry.
func (a *App) Run(ctx context.Context, settings *config.Settings) error {
	a.Logger.Infow("Connecting to Consul",
		"registry", a.Config.Registry.Type,
		"address", a.Config.Consul.Address(),
	)
	return a.Registrar.Run(ctx, settings)
}
