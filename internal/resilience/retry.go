package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff. DefaultRetryConfig matches the
// webhook retry loop's backoff schedule: 1s, 2s, 4s, ... capped at 60s, three
// attempts after the first delivery.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		Jitter:       0,
	}
}

// Retry executes fn with exponential backoff up to cfg.MaxAttempts times.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(addJitter(delay, cfg.Jitter)):
			}
			delay = nextDelay(delay, cfg)
		}
	}
	return lastErr
}

// NextBackoff exposes the delay sequence so the retry loop can schedule a
// next-attempt timestamp without invoking fn directly.
func NextBackoff(previous time.Duration, cfg RetryConfig) time.Duration {
	if previous <= 0 {
		return cfg.InitialDelay
	}
	return nextDelay(previous, cfg)
}

func nextDelay(current time.Duration, cfg RetryConfig) time.Duration {
	next := time.Duration(float64(current) * cfg.Multiplier)
	if cfg.MaxDelay > 0 && next > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return next
}

func addJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	return d + time.Duration(rand.Float64()*delta*2-delta)
}
