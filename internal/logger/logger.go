package logger

import (
	"fmt"

	"github.com/google/wire"
	"github.com/heytom-labs/consul-registrar/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProviderSet 日志Provider集合
var ProviderSet = wire.NewSet(
	ProvideLogger,
)

// New builds a sugared zap logger writing to stderr.
func New(cfg config.LogConfig) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Sampling = nil
	zapCfg.DisableStacktrace = true
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch cfg.Encoding {
	case "", "console":
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zapCfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("unsupported log encoding %q", cfg.Encoding)
	}

	l, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l.Sugar(), nil
}

// ProvideLogger 提供日志实例, the cleanup flushes buffered entries.
func ProvideLogger(cfg *config.Config) (*zap.SugaredLogger, func(), error) {
	l, err := New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Sync() }, nil
}
