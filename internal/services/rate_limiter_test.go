package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integration-sync-platform/internal/config"
)

func TestProviderRateLimiter(t *testing.T) {
	cfg := &config.Config{RateLimit: config.RateLimitConfig{ConcurrentPerProvider: 1}}

	t.Run("blocks when the budget is exhausted", func(t *testing.T) {
		limiter := NewProviderRateLimiter(cfg)

		release, err := limiter.Acquire(context.Background(), "tenant-1", "hubspot")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = limiter.Acquire(ctx, "tenant-1", "hubspot")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		release()
		release2, err := limiter.Acquire(context.Background(), "tenant-1", "hubspot")
		require.NoError(t, err)
		release2()
	})

	t.Run("budgets are isolated per tenant and provider", func(t *testing.T) {
		limiter := NewProviderRateLimiter(cfg)

		r1, err := limiter.Acquire(context.Background(), "tenant-1", "hubspot")
		require.NoError(t, err)
		defer r1()

		// A different tenant on the same provider has its own slot.
		r2, err := limiter.Acquire(context.Background(), "tenant-2", "hubspot")
		require.NoError(t, err)
		defer r2()

		// As does the same tenant on a different provider.
		r3, err := limiter.Acquire(context.Background(), "tenant-1", "salesforce")
		require.NoError(t, err)
		defer r3()
	})

	t.Run("zero configured limit still grants one slot", func(t *testing.T) {
		limiter := NewProviderRateLimiter(&config.Config{})

		release, err := limiter.Acquire(context.Background(), "tenant-1", "hubspot")
		require.NoError(t, err)
		release()
	})
}
