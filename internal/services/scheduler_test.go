package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/models"
)

func schedulerWithLastStart(t *testing.T, lastStart *time.Time) *Scheduler {
	t.Helper()

	executions := new(mockExecutionRepository)
	if lastStart == nil {
		executions.On("GetLatestByTask", mock.Anything, "task-1").Return(nil, gorm.ErrRecordNotFound)
	} else {
		executions.On("GetLatestByTask", mock.Anything, "task-1").
			Return(&models.SyncExecution{StartedAt: *lastStart}, nil)
	}

	cfg := &config.Config{Scheduler: config.SchedulerConfig{Enabled: true, PollIntervalSeconds: 15}}
	return NewScheduler(testLogger(), cfg, nil, executions, nil)
}

func TestScheduler_IsDue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 45, 0, 0, time.UTC)

	t.Run("a task that never ran is due immediately", func(t *testing.T) {
		s := schedulerWithLastStart(t, nil)
		due, err := s.isDue(ctx, &models.SyncTask{ID: "task-1", ScheduleType: models.ScheduleInterval, ScheduleExpr: "3600"}, now)
		require.NoError(t, err)
		assert.True(t, due)
	})

	t.Run("interval schedule", func(t *testing.T) {
		recent := now.Add(-5 * time.Minute)
		s := schedulerWithLastStart(t, &recent)

		task := &models.SyncTask{ID: "task-1", ScheduleType: models.ScheduleInterval, ScheduleExpr: "600"}
		due, err := s.isDue(ctx, task, now)
		require.NoError(t, err)
		assert.False(t, due)

		task.ScheduleExpr = "120"
		due, err = s.isDue(ctx, task, now)
		require.NoError(t, err)
		assert.True(t, due)
	})

	t.Run("cron schedule fires once the next slot passes", func(t *testing.T) {
		lastStart := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		s := schedulerWithLastStart(t, &lastStart)

		// Hourly on the hour; next slot after 10:00 is 11:00.
		task := &models.SyncTask{ID: "task-1", ScheduleType: models.ScheduleCron, ScheduleExpr: "0 * * * *"}
		due, err := s.isDue(ctx, task, now)
		require.NoError(t, err)
		assert.False(t, due)

		due, err = s.isDue(ctx, task, time.Date(2026, 3, 1, 11, 0, 1, 0, time.UTC))
		require.NoError(t, err)
		assert.True(t, due)
	})

	t.Run("manual tasks are never due after their first run", func(t *testing.T) {
		lastStart := now.Add(-24 * time.Hour)
		s := schedulerWithLastStart(t, &lastStart)

		due, err := s.isDue(ctx, &models.SyncTask{ID: "task-1", ScheduleType: models.ScheduleManual}, now)
		require.NoError(t, err)
		assert.False(t, due)
	})

	t.Run("an unusable cron expression reports an error", func(t *testing.T) {
		lastStart := now.Add(-time.Hour)
		s := schedulerWithLastStart(t, &lastStart)

		_, err := s.isDue(ctx, &models.SyncTask{ID: "task-1", ScheduleType: models.ScheduleCron, ScheduleExpr: "not cron"}, now)
		assert.Error(t, err)
	})
}
