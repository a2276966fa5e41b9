// Package registrar runs the register and deregister flows of a service and
// the resource paths it exposes.
package registrar

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/wire"
	"github.com/heytom-labs/consul-registrar/internal/config"
	"github.com/heytom-labs/consul-registrar/internal/identity"
	"github.com/heytom-labs/consul-registrar/internal/registry"
	"github.com/heytom-labs/consul-registrar/internal/resource"
	"go.uber.org/zap"
)

// ProviderSet 注册流程Provider集合
var ProviderSet = wire.NewSet(
	New,
	wire.Bind(new(DescriptionLoader), new(*resource.Loader)),
)

// DescriptionLoader yields the resource paths described by a source.
type DescriptionLoader interface {
	Load(ctx context.Context, source string) ([]string, error)
}

// Registrar coordinates identity, registry and resource extraction.
type Registrar struct {
	registry     registry.Registry
	store        *identity.Store
	loader       DescriptionLoader
	logger       *zap.SugaredLogger
	localAddress func() (string, error)
}

// New 创建注册流程
func New(reg registry.Registry, store *identity.Store, loader DescriptionLoader, logger *zap.SugaredLogger) *Registrar {
	return &Registrar{
		registry:     reg,
		store:        store,
		loader:       loader,
		logger:       logger.Named("registrar"),
		localAddress: LocalAddress,
	}
}

// Run validates settings and executes the requested command.
func (r *Registrar) Run(ctx context.Context, settings *config.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	switch settings.Command {
	case config.CommandRegister:
		return r.Register(ctx, settings)
	case config.CommandDeregister:
		return r.Deregister(ctx, settings)
	default:
		return &config.ConfigurationError{Field: "command", Message: fmt.Sprintf("invalid command %q", settings.Command)}
	}
}

// Register registers the service, then its RAML resources, then its
// explicit paths. Any failure aborts the flow; the identity file is kept so
// that a rerun reuses the same ID.
func (r *Registrar) Register(ctx context.Context, settings *config.Settings) error {
	r.logger.Info("Starting registration")

	service, err := r.describe(settings.Service)
	if err != nil {
		return err
	}

	id, err := r.store.Resolve(service)
	if err != nil {
		return err
	}
	service.ID = id

	if err := r.registry.RegisterService(ctx, service); err != nil {
		return err
	}
	r.logger.Infow("Service registered", "service_name", service.Name, "service_id", service.ID)

	if settings.RAML != "" {
		paths, err := r.loader.Load(ctx, settings.RAML)
		if err != nil {
			return err
		}
		if err := r.registry.RegisterResources(ctx, service.Name, paths); err != nil {
			return err
		}
	}

	if len(settings.Paths) > 0 {
		if err := r.registry.RegisterResources(ctx, service.Name, resource.Normalize(settings.Paths)); err != nil {
			return err
		}
	}

	r.logger.Info("Registration finished successfully")
	return nil
}

// Deregister removes the service and its resources and clears the identity
// file. A failure to deregister the service itself only logs a warning since
// the service may already be gone; resource failures are fatal.
func (r *Registrar) Deregister(ctx context.Context, settings *config.Settings) error {
	r.logger.Info("Starting deregistration")

	service := baseService(settings.Service)
	id, err := r.store.Resolve(service)
	if err != nil {
		return err
	}
	service.ID = id

	if err := r.registry.DeregisterService(ctx, service.ID); err != nil {
		r.logger.Warnw("Could not deregister service, it might not exist",
			"service_id", service.ID,
			"error", err,
		)
	} else {
		r.logger.Infow("Service deregistered", "service_id", service.ID)
	}

	if settings.RAML != "" {
		paths, err := r.loader.Load(ctx, settings.RAML)
		if err != nil {
			return err
		}
		if err := r.registry.DeregisterResources(ctx, paths); err != nil {
			return err
		}
	}

	if len(settings.Paths) > 0 {
		if err := r.registry.DeregisterResources(ctx, resource.Normalize(settings.Paths)); err != nil {
			return err
		}
	}

	if err := r.store.Clear(); err != nil {
		return err
	}
	r.logger.Info("Deregistration finished")
	return nil
}

// describe fills in the address and resolves the health check URL template.
func (r *Registrar) describe(cfg config.ServiceConfig) (*registry.Service, error) {
	service := baseService(cfg)

	if service.Address == "" {
		addr, err := r.localAddress()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve local address: %w", err)
		}
		service.Address = addr
	}

	if cfg.Check != nil {
		check := &registry.HealthCheck{
			HTTP:                           cfg.Check.HTTP,
			Method:                         cfg.Check.Method,
			Interval:                       cfg.Check.Interval,
			Timeout:                        cfg.Check.Timeout,
			TLSSkipVerify:                  cfg.Check.TLSSkipVerify,
			DeregisterCriticalServiceAfter: cfg.Check.DeregisterCriticalServiceAfter,
		}
		if check.HTTP != "" {
			check.HTTP = ResolveCheckURL(check.HTTP, service.Address, service.Port)
			r.logger.Infow("Configured health check URL", "url", check.HTTP)
		}
		service.Check = check
	}
	return service, nil
}

func baseService(cfg config.ServiceConfig) *registry.Service {
	tags := make([]string, len(cfg.Tags))
	copy(tags, cfg.Tags)

	var meta map[string]string
	if len(cfg.Meta) > 0 {
		meta = make(map[string]string, len(cfg.Meta))
		for k, v := range cfg.Meta {
			meta[k] = v
		}
	}

	return &registry.Service{
		ID:                cfg.ID,
		Name:              cfg.Name,
		Address:           cfg.Address,
		Port:              cfg.Port,
		Tags:              tags,
		EnableTagOverride: cfg.EnableTagOverride,
		Meta:              meta,
	}
}

// ResolveCheckURL replaces the HOST and PORT placeholders of a health check
// URL template with the service address and port.
func ResolveCheckURL(template, address string, port int) string {
	url := strings.Replace(template, "HOST", address, 1)
	return strings.Replace(url, "PORT", strconv.Itoa(port), 1)
}
