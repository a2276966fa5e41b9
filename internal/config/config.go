package config

import (
	"fmt"
	"time"
)

// Config 应用配置结构
type Config struct {
	Registry RegistryConfig `mapstructure:"registry"`
	Consul   ConsulConfig   `mapstructure:"consul"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Identity IdentityConfig `mapstructure:"identity"`
	Log      LogConfig      `mapstructure:"log"`
}

// RegistryConfig 注册中心配置
type RegistryConfig struct {
	Type string `mapstructure:"type"` // 注册中心类型: consul
}

// ConsulConfig Consul agent connection settings
type ConsulConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Scheme     string        `mapstructure:"scheme"`     // http或https
	Token      string        `mapstructure:"token"`      // ACL Token
	Datacenter string        `mapstructure:"datacenter"` // 数据中心
	Timeout    time.Duration `mapstructure:"timeout"`    // per-request timeout
}

// Address returns host:port of the Consul agent.
func (c ConsulConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RetryConfig bounds every call made against the registry.
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
	Backoff  string        `mapstructure:"backoff"` // constant or exponential
}

// IdentityConfig 服务ID持久化配置
type IdentityConfig struct {
	File string `mapstructure:"file"`
}

// LogConfig logger settings
type LogConfig struct {
	Level    string `mapstructure:"level"`    // debug, info, warn, error
	Encoding string `mapstructure:"encoding"` // console or json
}

// Commands accepted by the registrar.
const (
	CommandRegister   = "register"
	CommandDeregister = "deregister"
)

// Settings describes a single register or deregister invocation.
type Settings struct {
	Command string        `mapstructure:"command"`
	Service ServiceConfig `mapstructure:"service"`
	RAML    string        `mapstructure:"raml"`
	Paths   []string      `mapstructure:"path"`
}

// ServiceConfig is the service descriptor as supplied by the operator.
type ServiceConfig struct {
	ID                string            `mapstructure:"ID"`
	Name              string            `mapstructure:"Name"`
	Address           string            `mapstructure:"Address"`
	Port              int               `mapstructure:"Port"`
	Tags              []string          `mapstructure:"Tags"`
	EnableTagOverride bool              `mapstructure:"EnableTagOverride"`
	Meta              map[string]string `mapstructure:"Meta"`
	Check             *CheckConfig      `mapstructure:"Check"`
}

// CheckConfig HTTP health check. HOST and PORT in HTTP are replaced with the
// resolved service address and port before registration.
type CheckConfig struct {
	HTTP                           string `mapstructure:"http"`
	Method                         string `mapstructure:"method"`
	Interval                       string `mapstructure:"interval"`
	Timeout                        string `mapstructure:"timeout"`
	TLSSkipVerify                  bool   `mapstructure:"TLSSkipVerify"`
	DeregisterCriticalServiceAfter string `mapstructure:"DeregisterCriticalServiceAfter"`
}

// ConfigurationError is returned before any network activity when the
// invocation is missing required fields.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Validate checks the settings required by both commands.
func (s *Settings) Validate() error {
	switch s.Command {
	case "":
		return &ConfigurationError{Field: "command", Message: "command parameter is missing"}
	case CommandRegister, CommandDeregister:
	default:
		return &ConfigurationError{
			Field:   "command",
			Message: fmt.Sprintf("invalid command %q, use '%s' or '%s'", s.Command, CommandRegister, CommandDeregister),
		}
	}
	if s.Service.Name == "" {
		return &ConfigurationError{Field: "name", Message: "service name is required"}
	}
	if s.Service.Port < 0 || s.Service.Port > 65535 {
		return &ConfigurationError{Field: "port", Message: fmt.Sprintf("port %d out of range", s.Service.Port)}
	}
	if s.RAML == "" && len(s.Paths) == 0 {
		return &ConfigurationError{Message: "you must provide either 'path' or 'raml' parameter"}
	}
	return nil
}

// Validate checks the environment-derived configuration.
func (c *Config) Validate() error {
	if c.Consul.Host == "" {
		return &ConfigurationError{Field: "consul.host", Message: "must not be empty"}
	}
	if c.Consul.Port <= 0 || c.Consul.Port > 65535 {
		return &ConfigurationError{Field: "consul.port", Message: fmt.Sprintf("port %d out of range", c.Consul.Port)}
	}
	if c.Retry.Attempts < 1 {
		return &ConfigurationError{Field: "retry.attempts", Message: "must be at least 1"}
	}
	if c.Retry.Delay < 0 {
		return &ConfigurationError{Field: "retry.delay", Message: "must not be negative"}
	}
	switch c.Retry.Backoff {
	case "constant", "exponential":
	default:
		return &ConfigurationError{Field: "retry.backoff", Message: fmt.Sprintf("unknown backoff %q", c.Retry.Backoff)}
	}
	if c.Identity.File == "" {
		return &ConfigurationError{Field: "identity.file", Message: "must not be empty"}
	}
	return nil
}
