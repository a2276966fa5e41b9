package consul

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-multierror"
	"github.com/heytom-labs/consul-registrar/internal/registry"
	"github.com/heytom-labs/consul-registrar/internal/retry"
	"go.uber.org/zap"
)

const (
	endpointRegister   = "/v1/agent/service/register"
	endpointDeregister = "/v1/agent/service/deregister/"
	endpointKV         = "/v1/kv/"

	// ResourcePrefix is the KV prefix every resource path is stored under.
	ResourcePrefix = "resources"
)

// Config Consul配置
type Config struct {
	Address    string        // Consul地址 host:port
	Scheme     string        // http或https
	Token      string        // ACL Token
	Datacenter string        // 数据中心
	Timeout    time.Duration // 单次请求超时
	Retry      retry.Policy  // 重试策略
}

// Registry Consul注册中心实现
type Registry struct {
	client *api.Client
	config *Config
	logger *zap.SugaredLogger
}

var _ registry.Registry = (*Registry)(nil)

// NewRegistry 创建Consul注册中心
func NewRegistry(config *Config, logger *zap.SugaredLogger) (*Registry, error) {
	if config == nil {
		config = &Config{
			Address: "127.0.0.1:8500",
			Scheme:  "http",
			Timeout: 10 * time.Second,
			Retry:   retry.Policy{Attempts: 10, Delay: time.Second, Backoff: retry.BackoffConstant},
		}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = config.Timeout

	consulConfig := api.DefaultConfig()
	consulConfig.Address = config.Address
	consulConfig.Scheme = config.Scheme
	consulConfig.Token = config.Token
	consulConfig.Datacenter = config.Datacenter
	consulConfig.HttpClient = httpClient

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &Registry{
		client: client,
		config: config,
		logger: logger.Named("consul"),
	}, nil
}

// RegisterService 注册服务实例
func (r *Registry) RegisterService(ctx context.Context, service *registry.Service) error {
	if service == nil {
		return fmt.Errorf("service instance is nil")
	}
	if service.ID == "" {
		return fmt.Errorf("service %q has no ID", service.Name)
	}

	registration := &api.AgentServiceRegistration{
		ID:                service.ID,
		Name:              service.Name,
		Address:           service.Address,
		Port:              service.Port,
		Tags:              service.Tags,
		EnableTagOverride: service.EnableTagOverride,
		Meta:              service.Meta,
	}
	if c := service.Check; c != nil {
		registration.Check = &api.AgentServiceCheck{
			HTTP:                           c.HTTP,
			Method:                         c.Method,
			Interval:                       c.Interval,
			Timeout:                        c.Timeout,
			TLSSkipVerify:                  c.TLSSkipVerify,
			DeregisterCriticalServiceAfter: c.DeregisterCriticalServiceAfter,
		}
	}

	opts := api.ServiceRegisterOpts{}.WithContext(ctx)
	err := r.call(ctx, http.MethodPut, endpointRegister, func() error {
		return r.client.Agent().ServiceRegisterOpts(registration, opts)
	})
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	r.logger.Infow("Registered service with Consul",
		"service_id", service.ID,
		"service_name", service.Name,
		"address", service.Address,
		"port", service.Port,
	)
	return nil
}

// DeregisterService 注销服务实例
func (r *Registry) DeregisterService(ctx context.Context, serviceID string) error {
	if serviceID == "" {
		return fmt.Errorf("service ID is empty")
	}

	q := (&api.QueryOptions{}).WithContext(ctx)
	err := r.call(ctx, http.MethodPut, endpointDeregister+serviceID, func() error {
		return r.client.Agent().ServiceDeregisterOpts(serviceID, q)
	})
	if err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}

	r.logger.Infow("Deregistered service from Consul", "service_id", serviceID)
	return nil
}

// RegisterResources stores each path as resources{path} = serviceName.
func (r *Registry) RegisterResources(ctx context.Context, serviceName string, paths []string) error {
	w := (&api.WriteOptions{}).WithContext(ctx)
	err := r.batch(ctx, http.MethodPut, paths, func(key string) error {
		_, err := r.client.KV().Put(&api.KVPair{Key: key, Value: []byte(serviceName)}, w)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}

	r.logger.Infow("Registered resources", "service_name", serviceName, "count", len(paths))
	return nil
}

// DeregisterResources deletes resources{path} for each path.
func (r *Registry) DeregisterResources(ctx context.Context, paths []string) error {
	w := (&api.WriteOptions{}).WithContext(ctx)
	err := r.batch(ctx, http.MethodDelete, paths, func(key string) error {
		_, err := r.client.KV().Delete(key, w)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to deregister resources: %w", err)
	}

	r.logger.Infow("Deregistered resources", "count", len(paths))
	return nil
}

// ResourceKey returns the KV key a resource path is stored under.
func ResourceKey(path string) string {
	return ResourcePrefix + path
}

// call runs a single request inside the retry loop.
func (r *Registry) call(ctx context.Context, method, endpoint string, fn func() error) error {
	_, err := retry.Do(ctx, r.config.Retry, r.logger, func() error {
		return terminal(classifyError(method, endpoint, fn()))
	})
	return err
}

// batch issues one request per path concurrently. Every retry attempt
// re-sends the whole batch, so the backend must treat repeated writes of the
// same key as idempotent.
func (r *Registry) batch(ctx context.Context, method string, paths []string, fn func(key string) error) error {
	if len(paths) == 0 {
		return nil
	}

	_, err := retry.Do(ctx, r.config.Retry, r.logger, func() error {
		var g multierror.Group
		for _, path := range paths {
			key := ResourceKey(path)
			g.Go(func() error {
				return classifyError(method, endpointKV+key, fn(key))
			})
		}
		return terminal(g.Wait().ErrorOrNil())
	})
	return err
}

// terminal stops the retry loop when any part of err was rejected.
func terminal(err error) error {
	if err != nil && registry.IsRejected(err) {
		return retry.Permanent(err)
	}
	return err
}

// classifyError maps a consul client error onto the registry error taxonomy.
func classifyError(method, endpoint string, err error) error {
	if err == nil {
		return nil
	}

	code, body, ok := statusOf(err)
	switch {
	case !ok:
		return &registry.TransientBackendError{Method: method, Endpoint: endpoint, Err: err}
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500:
		return &registry.RejectedRequestError{Method: method, Endpoint: endpoint, StatusCode: code, Body: body}
	default:
		return &registry.TransientBackendError{Method: method, Endpoint: endpoint, StatusCode: code, Body: body, Err: err}
	}
}

func statusOf(err error) (int, string, bool) {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code, statusErr.Body, true
	}
	var statusErrPtr *api.StatusError
	if errors.As(err, &statusErrPtr) {
		return statusErrPtr.Code, statusErrPtr.Body, true
	}
	return 0, "", false
}
