package consul

import (
	"github.com/heytom-labs/consul-registrar/internal/config"
	"github.com/heytom-labs/consul-registrar/internal/registry"
	"github.com/heytom-labs/consul-registrar/internal/retry"
	"go.uber.org/zap"
)

func init() {
	// 注册Consul工厂到注册中心
	registry.RegisterFactory("consul", NewConsulRegistry)
}

// NewConsulRegistry 创建Consul注册中心实例
func NewConsulRegistry(cfg *config.Config, logger *zap.SugaredLogger) (registry.Registry, error) {
	return NewRegistry(&Config{
		Address:    cfg.Consul.Address(),
		Scheme:     cfg.Consul.Scheme,
		Token:      cfg.Consul.Token,
		Datacenter: cfg.Consul.Datacenter,
		Timeout:    cfg.Consul.Timeout,
		Retry:      retry.PolicyFromConfig(cfg.Retry),
	}, logger)
}
