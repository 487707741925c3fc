package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"integration-sync-platform/internal/database"
	"integration-sync-platform/internal/models"
)

// recordRepository implements RecordRepository
type recordRepository struct {
	db *database.Connection
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *database.Connection) RecordRepository {
	return &recordRepository{db: db}
}

// GetByID retrieves an internal record by ID
func (r *recordRepository) GetByID(ctx context.Context, id string) (*models.InternalRecord, error) {
	var record models.InternalRecord
	err := r.db.WithContext(ctx).
		Preload("ExternalLinks").
		First(&record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByExternalID resolves an external key to its internal record
func (r *recordRepository) GetByExternalID(ctx context.Context, tenantID, provider, externalID string) (*models.InternalRecord, *models.ExternalLink, error) {
	var link models.ExternalLink
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider = ? AND external_id = ?", tenantID, provider, externalID).
		First(&link).Error
	if err != nil {
		return nil, nil, err
	}

	var record models.InternalRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", link.RecordID).Error; err != nil {
		return nil, nil, err
	}
	return &record, &link, nil
}

// QueryByFields finds records whose jsonb fields match the given values
func (r *recordRepository) QueryByFields(ctx context.Context, tenantID, typeID string, fields map[string]interface{}) ([]*models.InternalRecord, error) {
	query := r.db.WithContext(ctx).
		Preload("ExternalLinks").
		Where("tenant_id = ? AND type_id = ?", tenantID, typeID)

	for field, value := range fields {
		query = query.Where("fields ->> ? = ?", field, value)
	}

	var records []*models.InternalRecord
	err := query.Find(&records).Error
	return records, err
}

// CreateOrUpdate persists a record with optimistic concurrency. New records
// start at version 1; updates require the expected version and bump it.
func (r *recordRepository) CreateOrUpdate(ctx context.Context, record *models.InternalRecord, expectedVersion int) error {
	if record.ID == "" {
		record.Version = 1
		return r.db.WithContext(ctx).Create(record).Error
	}

	result := r.db.WithContext(ctx).
		Model(&models.InternalRecord{}).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]interface{}{
			"fields":  record.Fields,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	record.Version = expectedVersion + 1
	return nil
}

// GetLink retrieves the external link of a record for one provider
func (r *recordRepository) GetLink(ctx context.Context, recordID, provider string) (*models.ExternalLink, error) {
	var link models.ExternalLink
	err := r.db.WithContext(ctx).
		Where("record_id = ? AND provider = ?", recordID, provider).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// UpsertLink creates or refreshes the external link for a record. The
// (tenant, provider, external id) key makes repeated syncs idempotent.
func (r *recordRepository) UpsertLink(ctx context.Context, link *models.ExternalLink) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "provider"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"record_id", "last_synced_at", "last_synced_snapshot", "updated_at",
			}),
		}).
		Create(link).Error
}

// GetChangedSince lists records updated after the given time
func (r *recordRepository) GetChangedSince(ctx context.Context, tenantID, typeID string, since time.Time) ([]*models.InternalRecord, error) {
	var records []*models.InternalRecord
	err := r.db.WithContext(ctx).
		Preload("ExternalLinks").
		Where("tenant_id = ? AND type_id = ? AND updated_at > ?", tenantID, typeID, since).
		Order("updated_at ASC").
		Find(&records).Error
	return records, err
}
