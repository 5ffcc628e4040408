package providers

import (
	"context"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/dotsetgreg/parley/pkg/logger"
)

// RetryConfig controls the fixed-attempt exponential backoff applied to
// completion calls.
type RetryConfig struct {
	Attempts   int
	BaseDelay  time.Duration
	Multiplier float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:   3,
		BaseDelay:  1000 * time.Millisecond,
		Multiplier: 2,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.Multiplier <= 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// RetryingCompleter decorates a Completer with retries. All failures,
// connectivity and malformed responses alike, are retried uniformly;
// exhausting the attempts surfaces one aggregated error embedding the
// last underlying cause.
type RetryingCompleter struct {
	delegate Completer
	cfg      RetryConfig
}

func NewRetryingCompleter(delegate Completer, cfg RetryConfig) *RetryingCompleter {
	return &RetryingCompleter{delegate: delegate, cfg: cfg.withDefaults()}
}

func (r *RetryingCompleter) Complete(ctx context.Context, messages []Message, opts Options) (Message, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.BaseDelay
	b.Multiplier = r.cfg.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	var out Message
	attempts := 0
	op := func() error {
		attempts++
		msg, err := r.delegate.Complete(ctx, messages, opts)
		if err != nil {
			logger.WarnCF("providers", "Completion attempt failed",
				map[string]interface{}{"attempt": attempts, "error": err.Error()})
			return err
		}
		out = msg
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.Attempts-1)), ctx))
	if err != nil {
		return Message{}, fmt.Errorf("completion failed after %d attempts: %w", attempts, err)
	}
	return out, nil
}
