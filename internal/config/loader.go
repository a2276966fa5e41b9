package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DefaultIdentityFile is the hidden file holding the generated service ID.
const DefaultIdentityFile = ".consul_service_id~"

// envBindings maps configuration keys to the environment variables that
// override them.
var envBindings = map[string]string{
	"registry.type":     "REGISTRY_TYPE",
	"consul.host":       "CONSUL_HOST",
	"consul.port":       "CONSUL_PORT",
	"consul.scheme":     "CONSUL_SCHEME",
	"consul.token":      "CONSUL_TOKEN",
	"consul.datacenter": "CONSUL_DATACENTER",
	"consul.timeout":    "CONSUL_TIMEOUT",
	"retry.attempts":    "REGISTRAR_RETRY_ATTEMPTS",
	"retry.delay":       "REGISTRAR_RETRY_DELAY",
	"retry.backoff":     "REGISTRAR_RETRY_BACKOFF",
	"identity.file":     "REGISTRAR_IDENTITY_FILE",
	"log.level":         "REGISTRAR_LOG_LEVEL",
	"log.encoding":      "REGISTRAR_LOG_ENCODING",
}

// checkKeyAliases maps the snake_case check keys the Consul agent also
// accepts onto the service definition field names.
var checkKeyAliases = map[string]string{
	"service.check.tls_skip_verify":                   "service.check.tlsskipverify",
	"service.check.deregister_critical_service_after": "service.check.deregistercriticalserviceafter",
}

// GetDefaultConfig 返回默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			Type: "consul",
		},
		Consul: ConsulConfig{
			Host:    "consul",
			Port:    8500,
			Scheme:  "http",
			Timeout: 10 * time.Second,
		},
		Retry: RetryConfig{
			Attempts: 10,
			Delay:    time.Second,
			Backoff:  "constant",
		},
		Identity: IdentityConfig{
			File: DefaultIdentityFile,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// LoadConfig builds the configuration from defaults and the process environment.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v, GetDefaultConfig())
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("registry.type", cfg.Registry.Type)
	v.SetDefault("consul.host", cfg.Consul.Host)
	v.SetDefault("consul.port", cfg.Consul.Port)
	v.SetDefault("consul.scheme", cfg.Consul.Scheme)
	v.SetDefault("consul.token", cfg.Consul.Token)
	v.SetDefault("consul.datacenter", cfg.Consul.Datacenter)
	v.SetDefault("consul.timeout", cfg.Consul.Timeout)
	v.SetDefault("retry.attempts", cfg.Retry.Attempts)
	v.SetDefault("retry.delay", cfg.Retry.Delay)
	v.SetDefault("retry.backoff", cfg.Retry.Backoff)
	v.SetDefault("identity.file", cfg.Identity.File)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.encoding", cfg.Log.Encoding)
}

// DefaultSettings returns the service defaults applied before a config file
// or flags are read.
func DefaultSettings() *Settings {
	return &Settings{
		Service: ServiceConfig{
			Port: 80,
			Tags: []string{},
		},
	}
}

// LoadSettings reads invocation settings from a config file. Keys are matched
// case-insensitively, so "id" and "ID" both populate the service ID. An empty
// path yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	v.SetDefault("service.port", settings.Service.Port)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	for alias, key := range checkKeyAliases {
		if v.IsSet(alias) && !v.IsSet(key) {
			v.Set(key, v.Get(alias))
		}
	}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unable to decode config file %s: %w", path, err)
	}
	if settings.Service.Tags == nil {
		settings.Service.Tags = []string{}
	}
	return settings, nil
}
