package registry

import (
	"fmt"

	"github.com/google/wire"
	"github.com/heytom-labs/consul-registrar/internal/config"
	"go.uber.org/zap"
)

// ProviderSet 注册中心Provider集合
var ProviderSet = wire.NewSet(
	ProvideRegistry,
)

// RegistryFactory 注册中心工厂函数类型
type RegistryFactory func(*config.Config, *zap.SugaredLogger) (Registry, error)

// registryFactories 注册中心工厂映射
var registryFactories = make(map[string]RegistryFactory)

// RegisterFactory 注册注册中心工厂
func RegisterFactory(registryType string, factory RegistryFactory) {
	registryFactories[registryType] = factory
}

// ProvideRegistry 提供注册中心实例
func ProvideRegistry(cfg *config.Config, logger *zap.SugaredLogger) (Registry, error) {
	factory, ok := registryFactories[cfg.Registry.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported registry type: %s", cfg.Registry.Type)
	}

	return factory(cfg, logger)
}
