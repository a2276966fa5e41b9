//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/heytom-labs/consul-registrar/internal/config"
	"github.com/heytom-labs/consul-registrar/internal/identity"
	"github.com/heytom-labs/consul-registrar/internal/logger"
	"github.com/heytom-labs/consul-registrar/internal/registrar"
	"github.com/heytom-labs/consul-registrar/internal/registry"
	"github.com/heytom-labs/consul-registrar/internal/resource"
)

// InitializeApp 初始化应用程序
func InitializeApp() (*App, func(), error) {
	wire.Build(
		config.ProviderSet,
		logger.ProviderSet,
		registry.ProviderSet,
		identity.ProviderSet,
		resource.ProviderSet,
		registrar.ProviderSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
