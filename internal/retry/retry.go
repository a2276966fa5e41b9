// Package retry runs registry calls inside a bounded retry loop.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/heytom-labs/consul-registrar/internal/config"
	"go.uber.org/zap"
)

// Backoff kinds.
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// Policy bounds a retry loop.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Backoff  string
}

// PolicyFromConfig converts the retry section of the configuration.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		Attempts: cfg.Attempts,
		Delay:    cfg.Delay,
		Backoff:  cfg.Backoff,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	switch p.Backoff {
	case BackoffExponential:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Delay
		eb.MaxElapsedTime = 0
		eb.Reset()
		b = eb
	default:
		b = backoff.NewConstantBackOff(p.Delay)
	}

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Permanent marks err as terminal so that Do returns it without retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a Permanent error, or the attempt
// budget is spent. It reports how many attempts were made. On exhaustion the
// error of the last attempt is returned.
func Do(ctx context.Context, p Policy, log *zap.SugaredLogger, op func() error) (int, error) {
	attempt := 0
	operation := func() error {
		attempt++
		return op()
	}
	notify := func(err error, next time.Duration) {
		log.Infow("Attempt connecting to Consul failed. Retrying...",
			"attempt", attempt,
			"attempts", p.Attempts,
			"retry_in", next,
			"error", err,
		)
	}

	err := backoff.RetryNotify(operation, p.backOff(ctx), notify)
	return attempt, err
}
