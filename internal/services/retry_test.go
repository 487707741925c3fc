package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integration-sync-platform/internal/adapters"
)

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      4 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetryPolicy_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds without retrying", func(t *testing.T) {
		calls := 0
		err := testRetryPolicy().Execute(ctx, func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("permanent error aborts immediately", func(t *testing.T) {
		calls := 0
		permanent := adapters.NewPermanentError("hubspot", "fetch contacts", 401, errors.New("bad token"))
		err := testRetryPolicy().Execute(ctx, func() error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("retryable error retries until success", func(t *testing.T) {
		calls := 0
		err := testRetryPolicy().Execute(ctx, func() error {
			calls++
			if calls < 3 {
				return adapters.NewRetryableError("hubspot", "fetch contacts", 429, errors.New("rate limited"))
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausted attempts return the last error", func(t *testing.T) {
		calls := 0
		retryable := adapters.NewRetryableError("hubspot", "fetch contacts", 503, errors.New("unavailable"))
		err := testRetryPolicy().Execute(ctx, func() error {
			calls++
			return retryable
		})
		assert.ErrorIs(t, err, retryable)
		assert.Equal(t, 3, calls)
	})

	t.Run("cancelled context stops the backoff wait", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := testRetryPolicy().Execute(cancelled, func() error {
			return adapters.NewRetryableError("hubspot", "fetch contacts", 503, errors.New("unavailable"))
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetryPolicy_Delay(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:   5,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      300 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	assert.Equal(t, 100*time.Millisecond, policy.Delay(1))
	assert.Equal(t, 200*time.Millisecond, policy.Delay(2))
	// Capped by MaxDelay from here on.
	assert.Equal(t, 300*time.Millisecond, policy.Delay(3))
	assert.Equal(t, 300*time.Millisecond, policy.Delay(4))
}
