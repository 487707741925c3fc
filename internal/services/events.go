package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/models"
)

// Event types consumed by monitoring and notification systems
const (
	EventExecutionCompleted = "sync.execution.completed"
	EventConflictDetected   = "sync.conflict.detected"
	EventConflictResolved   = "sync.conflict.resolved"
)

// syncEventsChannel is the redis pub/sub channel events are published on.
const syncEventsChannel = "sync.events"

// SyncEvent is a structured notification emitted by the sync engine.
type SyncEvent struct {
	Type        string         `json:"type"`
	TenantID    string         `json:"tenant_id"`
	TaskID      string         `json:"task_id,omitempty"`
	ExecutionID string         `json:"execution_id,omitempty"`
	ConflictID  string         `json:"conflict_id,omitempty"`
	Payload     models.JSONMap `json:"payload,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// redisEventSink publishes events to a redis channel. Publication is
// fire-and-forget: failures are logged and never propagated to the caller.
type redisEventSink struct {
	redis  *redis.Client
	logger *logger.Logger
}

// NewRedisEventSink creates a redis-backed event sink.
func NewRedisEventSink(redis *redis.Client, logger *logger.Logger) EventSink {
	return &redisEventSink{redis: redis, logger: logger}
}

// Publish emits one event without blocking the caller.
func (s *redisEventSink) Publish(_ context.Context, event SyncEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		data, err := json.Marshal(event)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to marshal sync event")
			return
		}
		if err := s.redis.Publish(ctx, syncEventsChannel, data).Err(); err != nil {
			s.logger.WithError(err).WithField("event_type", event.Type).Warn("Failed to publish sync event")
		}
	}()
}
