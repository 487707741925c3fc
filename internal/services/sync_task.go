package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/models"
	"integration-sync-platform/internal/repositories"
)

// Service-level errors mapped to HTTP statuses by the handlers
var (
	ErrNotFound        = errors.New("resource not found")
	ErrForbidden       = errors.New("access to resource denied")
	ErrTaskDisabled    = errors.New("task is disabled")
	ErrTaskPaused      = errors.New("task is paused")
	ErrTaskRunning     = errors.New("task has a running execution")
	ErrAlreadyResolved = errors.New("conflict is already resolved")
)

// cronParser accepts standard five-field cron expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// TriggerResult reports how a trigger request was handled.
type TriggerResult struct {
	// Accepted is false when the overlap policy rejected the trigger.
	Accepted bool `json:"accepted"`
	// Queued is true when the trigger was parked behind a running execution.
	Queued bool `json:"queued"`
}

// syncTaskService implements SyncTaskService
type syncTaskService struct {
	logger     *logger.Logger
	validation *models.ValidationService
	queue      TriggerQueue
	events     EventSink
	metrics    *SyncMetrics

	// waitingLimit caps how many triggers may be parked per task under the
	// enqueue overlap policy; zero means unbounded.
	waitingLimit int

	tasks       repositories.SyncTaskRepository
	executions  repositories.SyncExecutionRepository
	conflicts   repositories.SyncConflictRepository
	schemas     repositories.ConversionSchemaRepository
	connections repositories.IntegrationConnectionRepository
	records     repositories.RecordRepository
}

// NewSyncTaskService creates a new sync task service
func NewSyncTaskService(
	logger *logger.Logger,
	validation *models.ValidationService,
	cfg *config.Config,
	queue TriggerQueue,
	events EventSink,
	metrics *SyncMetrics,
	tasks repositories.SyncTaskRepository,
	executions repositories.SyncExecutionRepository,
	conflicts repositories.SyncConflictRepository,
	schemas repositories.ConversionSchemaRepository,
	connections repositories.IntegrationConnectionRepository,
	records repositories.RecordRepository,
) SyncTaskService {
	return &syncTaskService{
		logger:       logger,
		validation:   validation,
		queue:        queue,
		events:       events,
		metrics:      metrics,
		waitingLimit: cfg.Sync.QueueSize,
		tasks:        tasks,
		executions:   executions,
		conflicts:    conflicts,
		schemas:      schemas,
		connections:  connections,
		records:      records,
	}
}

// CreateTask validates and stores a new task definition.
func (s *syncTaskService) CreateTask(ctx context.Context, task *models.SyncTask) (*models.SyncTask, error) {
	task.Status = models.TaskStatusIdle
	if task.OverlapPolicy == "" {
		task.OverlapPolicy = models.OverlapReject
	}
	if task.ConflictPolicy == "" {
		task.ConflictPolicy = models.ConflictPolicyLastWriteWins
	}

	if err := s.validateTask(ctx, task); err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create sync task: %w", err)
	}

	s.logger.WithTenant(task.TenantID).WithField("task_id", task.ID).Info("Sync task created")
	return task, nil
}

// GetTask returns one task scoped to the tenant.
func (s *syncTaskService) GetTask(ctx context.Context, tenantID, id string) (*models.SyncTask, error) {
	return s.ownedTask(ctx, tenantID, id)
}

// ListTasks returns the tenant's tasks.
func (s *syncTaskService) ListTasks(ctx context.Context, tenantID string, limit, offset int) ([]*models.SyncTask, error) {
	return s.tasks.GetByTenant(ctx, tenantID, limit, offset)
}

// UpdateTask applies definition changes. Lifecycle fields are owned by the
// engine and cannot be set through updates.
func (s *syncTaskService) UpdateTask(ctx context.Context, tenantID string, task *models.SyncTask) (*models.SyncTask, error) {
	existing, err := s.ownedTask(ctx, tenantID, task.ID)
	if err != nil {
		return nil, err
	}

	task.TenantID = existing.TenantID
	task.Status = existing.Status
	task.PausedAt = existing.PausedAt
	task.CreatedBy = existing.CreatedBy
	task.CreatedAt = existing.CreatedAt

	if err := s.validateTask(ctx, task); err != nil {
		return nil, err
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update sync task: %w", err)
	}
	return task, nil
}

// DeleteTask soft-deletes an idle task. Tasks with a running execution must
// finish or be paused first.
func (s *syncTaskService) DeleteTask(ctx context.Context, tenantID, id string) error {
	task, err := s.ownedTask(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if task.Status == models.TaskStatusRunning {
		return ErrTaskRunning
	}
	return s.tasks.Delete(ctx, id)
}

// PauseTask suspends scheduling and triggering. A running execution finishes
// normally; the task simply does not return to idle afterwards.
func (s *syncTaskService) PauseTask(ctx context.Context, tenantID, id string) (*models.SyncTask, error) {
	task, err := s.ownedTask(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskStatusPaused {
		return task, nil
	}

	now := time.Now().UTC()
	task.Status = models.TaskStatusPaused
	task.PausedAt = &now
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to pause task: %w", err)
	}

	s.logger.WithTenant(tenantID).WithField("task_id", id).Info("Sync task paused")
	return task, nil
}

// ResumeTask moves a paused task back to idle.
func (s *syncTaskService) ResumeTask(ctx context.Context, tenantID, id string) (*models.SyncTask, error) {
	task, err := s.ownedTask(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusPaused {
		return nil, fmt.Errorf("task %s is not paused", id)
	}

	task.Status = models.TaskStatusIdle
	task.PausedAt = nil
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to resume task: %w", err)
	}

	s.logger.WithTenant(tenantID).WithField("task_id", id).Info("Sync task resumed")
	return task, nil
}

// TriggerTask requests an execution. The idle-to-running transition is the
// admission gate: winning it reserves the task, losing it invokes the overlap
// policy.
func (s *syncTaskService) TriggerTask(ctx context.Context, tenantID, id, triggeredBy string) (*TriggerResult, error) {
	task, err := s.ownedTask(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !task.Enabled {
		return nil, ErrTaskDisabled
	}
	if task.Status == models.TaskStatusPaused {
		return nil, ErrTaskPaused
	}

	acquired, err := s.acquire(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		if task.OverlapPolicy == models.OverlapEnqueue {
			depth, err := s.queue.WaitingDepth(ctx, task.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to inspect waiting triggers: %w", err)
			}
			if s.waitingLimit > 0 && depth >= int64(s.waitingLimit) {
				return &TriggerResult{Accepted: false}, nil
			}
			if err := s.queue.PushWaiting(ctx, task.ID, triggeredBy); err != nil {
				return nil, fmt.Errorf("failed to park trigger: %w", err)
			}
			return &TriggerResult{Accepted: true, Queued: true}, nil
		}
		return &TriggerResult{Accepted: false}, nil
	}

	if err := s.queue.Push(ctx, TriggerJob{
		TaskID:      task.ID,
		TenantID:    task.TenantID,
		TriggeredBy: triggeredBy,
	}); err != nil {
		// Give the reservation back so the task is not stuck in running.
		if _, terr := s.tasks.TransitionStatus(ctx, task.ID, models.TaskStatusRunning, models.TaskStatusIdle); terr != nil {
			s.logger.WithTask(task.ID).WithError(terr).Error("Failed to roll back task reservation")
		}
		return nil, fmt.Errorf("failed to enqueue trigger: %w", err)
	}

	s.logger.WithTenant(tenantID).WithField("task_id", id).WithField("triggered_by", triggeredBy).Info("Sync task triggered")
	return &TriggerResult{Accepted: true}, nil
}

// acquire reserves the task for one execution. A task left in error by a
// previous failed start may be re-acquired directly.
func (s *syncTaskService) acquire(ctx context.Context, taskID string) (bool, error) {
	ok, err := s.tasks.TransitionStatus(ctx, taskID, models.TaskStatusIdle, models.TaskStatusRunning)
	if err != nil || ok {
		return ok, err
	}
	return s.tasks.TransitionStatus(ctx, taskID, models.TaskStatusError, models.TaskStatusRunning)
}

// GetExecutions lists the task's execution history, newest first.
func (s *syncTaskService) GetExecutions(ctx context.Context, tenantID, taskID string, limit, offset int) ([]*models.SyncExecution, error) {
	if _, err := s.ownedTask(ctx, tenantID, taskID); err != nil {
		return nil, err
	}
	return s.executions.GetByTask(ctx, taskID, limit, offset)
}

// GetExecution returns one execution scoped to the tenant.
func (s *syncTaskService) GetExecution(ctx context.Context, tenantID, executionID string) (*models.SyncExecution, error) {
	execution, err := s.executions.GetByID(ctx, executionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if execution.TenantID != tenantID {
		return nil, ErrForbidden
	}
	return execution, nil
}

// GetConflicts lists the task's conflict audit trail.
func (s *syncTaskService) GetConflicts(ctx context.Context, tenantID, taskID string, limit, offset int) ([]*models.SyncConflict, error) {
	if _, err := s.ownedTask(ctx, tenantID, taskID); err != nil {
		return nil, err
	}
	return s.conflicts.GetByTask(ctx, taskID, limit, offset)
}

// ResolveConflict applies a human decision to a pending conflict. The winning
// values are written through the same optimistic-concurrency path the runner
// uses, and the merge base advances so the conflict does not re-detect.
func (s *syncTaskService) ResolveConflict(ctx context.Context, tenantID, conflictID, resolution, resolvedBy string) (*models.SyncConflict, error) {
	conflict, err := s.conflicts.GetByID(ctx, conflictID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if conflict.TenantID != tenantID {
		return nil, ErrForbidden
	}
	if !conflict.Pending() {
		return nil, ErrAlreadyResolved
	}
	if resolution != models.ResolutionInternalWins && resolution != models.ResolutionExternalWins {
		return nil, fmt.Errorf("unsupported resolution %q", resolution)
	}

	fields, err := conflict.Fields()
	if err != nil {
		return nil, err
	}
	if err := s.applyResolution(ctx, conflict, fields, resolution); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conflict.Resolution = resolution
	conflict.ResolvedAt = &now
	conflict.ResolvedBy = resolvedBy
	if err := s.conflicts.Update(ctx, conflict); err != nil {
		return nil, fmt.Errorf("failed to update conflict: %w", err)
	}

	s.metrics.ConflictsResolved.WithLabelValues(conflict.Provider, "manual").Inc()
	s.events.Publish(ctx, SyncEvent{
		Type:       EventConflictResolved,
		TenantID:   tenantID,
		TaskID:     conflict.TaskID,
		ConflictID: conflict.ID,
		Payload:    models.JSONMap{"resolution": resolution, "resolved_by": resolvedBy},
	})
	return conflict, nil
}

// applyResolution writes the winning side's values for the conflicting fields
// and advances the external link's merge base to match.
func (s *syncTaskService) applyResolution(ctx context.Context, conflict *models.SyncConflict, fields []string, resolution string) error {
	record, err := s.records.GetByID(ctx, conflict.RecordID)
	if err != nil {
		return fmt.Errorf("failed to load conflicted record: %w", err)
	}

	winner := conflict.InternalSnapshot
	if resolution == models.ResolutionExternalWins {
		winner = conflict.ExternalSnapshot
	}

	if resolution == models.ResolutionExternalWins {
		merged := record.Fields.Clone()
		for _, field := range fields {
			if value, ok := winner[field]; ok {
				merged[field] = value
			}
		}
		record.Fields = merged
		if err := s.records.CreateOrUpdate(ctx, record, record.Version); err != nil {
			return fmt.Errorf("failed to write resolved fields: %w", err)
		}
	}

	link, err := s.records.GetLink(ctx, conflict.RecordID, conflict.Provider)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	snapshot := link.LastSyncedSnapshot.Clone()
	if snapshot == nil {
		snapshot = models.JSONMap{}
	}
	for _, field := range fields {
		if value, ok := record.Fields[field]; ok {
			snapshot[field] = value
		}
	}
	link.LastSyncedSnapshot = snapshot
	return s.records.UpsertLink(ctx, link)
}

// ownedTask loads a task and enforces tenant ownership.
func (s *syncTaskService) ownedTask(ctx context.Context, tenantID, id string) (*models.SyncTask, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if task.TenantID != tenantID {
		return nil, ErrForbidden
	}
	return task, nil
}

// validateTask checks the definition plus the referential and schedule rules
// struct tags cannot express.
func (s *syncTaskService) validateTask(ctx context.Context, task *models.SyncTask) error {
	if err := s.validation.ValidateStruct(task); err != nil {
		return err
	}
	if err := validateScheduleExpr(task.ScheduleType, task.ScheduleExpr); err != nil {
		return err
	}

	conn, err := s.connections.GetByID(ctx, task.ConnectionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("connection %s does not exist", task.ConnectionID)
	}
	if err != nil {
		return err
	}
	if conn.TenantID != task.TenantID {
		return ErrForbidden
	}

	schema, err := s.schemas.GetByID(ctx, task.SchemaID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("schema %s does not exist", task.SchemaID)
	}
	if err != nil {
		return err
	}
	if schema.TenantID != task.TenantID {
		return ErrForbidden
	}
	if schema.Provider != conn.Provider {
		return fmt.Errorf("schema %s targets provider %q but connection uses %q", schema.ID, schema.Provider, conn.Provider)
	}
	return nil
}

// validateScheduleExpr checks the expression against its schedule kind: a
// five-field cron expression, or a positive interval in seconds.
func validateScheduleExpr(scheduleType, expr string) error {
	switch scheduleType {
	case models.ScheduleManual:
		return nil
	case models.ScheduleCron:
		if _, err := cronParser.Parse(expr); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		return nil
	case models.ScheduleInterval:
		seconds, err := strconv.Atoi(expr)
		if err != nil || seconds <= 0 {
			return fmt.Errorf("interval schedule requires a positive number of seconds, got %q", expr)
		}
		return nil
	default:
		return fmt.Errorf("unknown schedule type %q", scheduleType)
	}
}
