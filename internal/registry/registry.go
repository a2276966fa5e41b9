package registry

import "context"

// HealthCheck 健康检查配置
type HealthCheck struct {
	HTTP                           string // 已替换 HOST/PORT 的检查地址
	Method                         string
	Interval                       string
	Timeout                        string
	TLSSkipVerify                  bool
	DeregisterCriticalServiceAfter string
}

// Service 服务实例信息
type Service struct {
	ID                string            // 服务实例唯一ID
	Name              string            // 服务名称
	Address           string            // 服务地址
	Port              int               // 服务端口
	Tags              []string          // 标签
	EnableTagOverride bool              // 允许外部修改标签
	Meta              map[string]string // 元数据
	Check             *HealthCheck      // 可选健康检查
}

// Registry 服务注册接口
type Registry interface {
	// RegisterService 注册服务实例
	RegisterService(ctx context.Context, service *Service) error

	// DeregisterService 注销服务实例
	DeregisterService(ctx context.Context, serviceID string) error

	// RegisterResources stores every path under the resources prefix with
	// the service name as value. Fails unless every path is stored.
	RegisterResources(ctx context.Context, serviceName string, paths []string) error

	// DeregisterResources removes every path from the resources prefix.
	DeregisterResources(ctx context.Context, paths []string) error
}
