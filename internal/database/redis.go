package database

import (
	"fmt"
	"time"

	"integration-sync-platform/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient creates a new Redis client. The trigger queue, the waiting
// lists and the event sink all share this client, so the pool is sized to the
// dispatcher worker count rather than a fixed number.
func NewRedisClient(config *config.Config) *redis.Client {
	poolSize := 2 * config.Sync.Workers
	if poolSize < 10 {
		poolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password:     config.Redis.Password,
		DB:           config.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     poolSize,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	return rdb
}
