package services

import (
	"context"
	"math"
	"time"

	"integration-sync-platform/internal/adapters"
	"integration-sync-platform/internal/config"
)

// RetryPolicy defines bounded retry with exponential backoff for adapter calls.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// RetryPolicyFromConfig builds the retry policy from sync configuration.
func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   cfg.Sync.MaxRetries + 1,
		InitialDelay:  time.Duration(cfg.Sync.InitialBackoffMillis) * time.Millisecond,
		MaxDelay:      time.Duration(cfg.Sync.MaxBackoffMillis) * time.Millisecond,
		BackoffFactor: cfg.Sync.BackoffFactor,
	}
}

// Delay returns the backoff delay before the given attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Execute runs fn up to MaxAttempts times, backing off between attempts.
// Non-retryable errors abort immediately; the last error is returned when
// attempts are exhausted.
func (p RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !adapters.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}

	return lastErr
}
