package services

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"integration-sync-platform/internal/config"
)

// ProviderRateLimiter bounds concurrent adapter calls per (tenant, provider).
// Each tenant gets its own budget; a noisy tenant can never starve another.
type ProviderRateLimiter struct {
	mu      sync.Mutex
	budgets map[string]*semaphore.Weighted
	limit   int64
}

// NewProviderRateLimiter creates a rate limiter from configuration.
func NewProviderRateLimiter(cfg *config.Config) *ProviderRateLimiter {
	limit := int64(cfg.RateLimit.ConcurrentPerProvider)
	if limit < 1 {
		limit = 1
	}
	return &ProviderRateLimiter{
		budgets: make(map[string]*semaphore.Weighted),
		limit:   limit,
	}
}

// Acquire blocks until a slot for the tenant's provider budget is available
// or the context is cancelled. The returned release function must be called
// exactly once.
func (l *ProviderRateLimiter) Acquire(ctx context.Context, tenantID, provider string) (func(), error) {
	sem := l.budget(tenantID + "|" + provider)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

func (l *ProviderRateLimiter) budget(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.budgets[key]
	if !ok {
		sem = semaphore.NewWeighted(l.limit)
		l.budgets[key] = sem
	}
	return sem
}
