package repositories

import (
	"context"

	"integration-sync-platform/internal/database"
	"integration-sync-platform/internal/models"
)

// syncTaskRepository implements SyncTaskRepository
type syncTaskRepository struct {
	db *database.Connection
}

// NewSyncTaskRepository creates a new sync task repository
func NewSyncTaskRepository(db *database.Connection) SyncTaskRepository {
	return &syncTaskRepository{db: db}
}

// Create creates a new sync task
func (r *syncTaskRepository) Create(ctx context.Context, task *models.SyncTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID retrieves a sync task by ID
func (r *syncTaskRepository) GetByID(ctx context.Context, id string) (*models.SyncTask, error) {
	var task models.SyncTask
	err := r.db.WithContext(ctx).
		Preload("Connection").
		Preload("Schema").
		First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// GetByTenant retrieves sync tasks for a tenant with pagination
func (r *syncTaskRepository) GetByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.SyncTask, error) {
	var tasks []*models.SyncTask
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tasks).Error
	return tasks, err
}

// GetByConnection retrieves all sync tasks referencing a connection
func (r *syncTaskRepository) GetByConnection(ctx context.Context, connectionID string) ([]*models.SyncTask, error) {
	var tasks []*models.SyncTask
	err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Find(&tasks).Error
	return tasks, err
}

// GetSchedulable retrieves enabled, non-paused tasks with a schedule
func (r *syncTaskRepository) GetSchedulable(ctx context.Context) ([]*models.SyncTask, error) {
	var tasks []*models.SyncTask
	err := r.db.WithContext(ctx).
		Where("enabled = ? AND status <> ? AND schedule_type IN ?",
			true, models.TaskStatusPaused, []string{models.ScheduleInterval, models.ScheduleCron}).
		Find(&tasks).Error
	return tasks, err
}

// Update updates an existing sync task
func (r *syncTaskRepository) Update(ctx context.Context, task *models.SyncTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// TransitionStatus atomically moves a task between lifecycle states
func (r *syncTaskRepository) TransitionStatus(ctx context.Context, id, from, to string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SyncTask{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete soft deletes a sync task
func (r *syncTaskRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.SyncTask{}, "id = ?", id).Error
}
