package repositories

import (
	"context"

	"integration-sync-platform/internal/database"
	"integration-sync-platform/internal/models"
)

// syncExecutionRepository implements SyncExecutionRepository
type syncExecutionRepository struct {
	db *database.Connection
}

// NewSyncExecutionRepository creates a new sync execution repository
func NewSyncExecutionRepository(db *database.Connection) SyncExecutionRepository {
	return &syncExecutionRepository{db: db}
}

// Create creates a new sync execution
func (r *syncExecutionRepository) Create(ctx context.Context, execution *models.SyncExecution) error {
	return r.db.WithContext(ctx).Create(execution).Error
}

// GetByID retrieves a sync execution by ID
func (r *syncExecutionRepository) GetByID(ctx context.Context, id string) (*models.SyncExecution, error) {
	var execution models.SyncExecution
	err := r.db.WithContext(ctx).First(&execution, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &execution, nil
}

// GetByTask retrieves executions for a task, newest first
func (r *syncExecutionRepository) GetByTask(ctx context.Context, taskID string, limit, offset int) ([]*models.SyncExecution, error) {
	var executions []*models.SyncExecution
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&executions).Error
	return executions, err
}

// GetLatestByTask retrieves the most recent execution of a task
func (r *syncExecutionRepository) GetLatestByTask(ctx context.Context, taskID string) (*models.SyncExecution, error) {
	var execution models.SyncExecution
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("started_at DESC").
		First(&execution).Error
	if err != nil {
		return nil, err
	}
	return &execution, nil
}

// Update updates an existing sync execution
func (r *syncExecutionRepository) Update(ctx context.Context, execution *models.SyncExecution) error {
	return r.db.WithContext(ctx).Save(execution).Error
}
