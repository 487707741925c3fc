package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/models"
	"integration-sync-platform/internal/repositories"
)

// Scheduler polls for due interval and cron tasks and feeds them into the
// trigger pipeline. Triggering goes through the same admission gate as manual
// triggers, so a slow execution never stacks up behind itself.
type Scheduler struct {
	logger       *logger.Logger
	tasks        repositories.SyncTaskRepository
	executions   repositories.SyncExecutionRepository
	taskService  SyncTaskService
	pollInterval time.Duration
	enabled      bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler.
func NewScheduler(logger *logger.Logger, cfg *config.Config, tasks repositories.SyncTaskRepository, executions repositories.SyncExecutionRepository, taskService SyncTaskService) *Scheduler {
	interval := time.Duration(cfg.Scheduler.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Scheduler{
		logger:       logger,
		tasks:        tasks,
		executions:   executions,
		taskService:  taskService,
		pollInterval: interval,
		enabled:      cfg.Scheduler.Enabled,
	}
}

// Start launches the poll loop. A disabled scheduler starts nothing.
func (s *Scheduler) Start() {
	if !s.enabled {
		s.logger.Info("Scheduler disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.WithField("poll_interval", s.pollInterval.String()).Info("Scheduler started")
}

// Stop terminates the poll loop.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick triggers every schedulable task that is due. Overlap rejections are
// expected here and not treated as failures.
func (s *Scheduler) tick(ctx context.Context) {
	tasks, err := s.tasks.GetSchedulable(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list schedulable tasks")
		return
	}

	now := time.Now().UTC()
	for _, task := range tasks {
		due, err := s.isDue(ctx, task, now)
		if err != nil {
			s.logger.WithTask(task.ID).WithError(err).Warn("Skipping task with unusable schedule")
			continue
		}
		if !due {
			continue
		}

		result, err := s.taskService.TriggerTask(ctx, task.TenantID, task.ID, models.TriggerSchedule)
		if err != nil {
			s.logger.WithTask(task.ID).WithError(err).Error("Failed to trigger scheduled task")
			continue
		}
		if result.Accepted && !result.Queued {
			s.logger.WithTenant(task.TenantID).WithField("task_id", task.ID).Debug("Scheduled trigger accepted")
		}
	}
}

// isDue decides whether the task's schedule has elapsed since its last run.
// A task that never ran is due immediately.
func (s *Scheduler) isDue(ctx context.Context, task *models.SyncTask, now time.Time) (bool, error) {
	lastStart, err := s.lastStart(ctx, task.ID)
	if err != nil {
		return false, err
	}
	if lastStart.IsZero() {
		return true, nil
	}

	switch task.ScheduleType {
	case models.ScheduleInterval:
		seconds, err := strconv.Atoi(task.ScheduleExpr)
		if err != nil || seconds <= 0 {
			return false, err
		}
		return !now.Before(lastStart.Add(time.Duration(seconds) * time.Second)), nil

	case models.ScheduleCron:
		schedule, err := cronParser.Parse(task.ScheduleExpr)
		if err != nil {
			return false, err
		}
		return !now.Before(schedule.Next(lastStart)), nil

	default:
		return false, nil
	}
}

func (s *Scheduler) lastStart(ctx context.Context, taskID string) (time.Time, error) {
	latest, err := s.executions.GetLatestByTask(ctx, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return latest.StartedAt, nil
}
