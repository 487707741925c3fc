package repositories

import (
	"context"

	"integration-sync-platform/internal/database"
	"integration-sync-platform/internal/models"
)

// syncConflictRepository implements SyncConflictRepository
type syncConflictRepository struct {
	db *database.Connection
}

// NewSyncConflictRepository creates a new sync conflict repository
func NewSyncConflictRepository(db *database.Connection) SyncConflictRepository {
	return &syncConflictRepository{db: db}
}

// Create creates a new sync conflict
func (r *syncConflictRepository) Create(ctx context.Context, conflict *models.SyncConflict) error {
	return r.db.WithContext(ctx).Create(conflict).Error
}

// GetByID retrieves a sync conflict by ID
func (r *syncConflictRepository) GetByID(ctx context.Context, id string) (*models.SyncConflict, error) {
	var conflict models.SyncConflict
	err := r.db.WithContext(ctx).First(&conflict, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &conflict, nil
}

// GetByTask retrieves conflicts for a task, newest first
func (r *syncConflictRepository) GetByTask(ctx context.Context, taskID string, limit, offset int) ([]*models.SyncConflict, error) {
	var conflicts []*models.SyncConflict
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&conflicts).Error
	return conflicts, err
}

// GetPendingByRecord retrieves unresolved conflicts for an internal record
func (r *syncConflictRepository) GetPendingByRecord(ctx context.Context, recordID string) ([]*models.SyncConflict, error) {
	var conflicts []*models.SyncConflict
	err := r.db.WithContext(ctx).
		Where("record_id = ? AND resolution = ?", recordID, models.ResolutionManualPending).
		Find(&conflicts).Error
	return conflicts, err
}

// Update updates an existing sync conflict
func (r *syncConflictRepository) Update(ctx context.Context, conflict *models.SyncConflict) error {
	return r.db.WithContext(ctx).Save(conflict).Error
}
