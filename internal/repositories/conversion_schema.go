package repositories

import (
	"context"

	"integration-sync-platform/internal/database"
	"integration-sync-platform/internal/models"
)

// conversionSchemaRepository implements ConversionSchemaRepository
type conversionSchemaRepository struct {
	db *database.Connection
}

// NewConversionSchemaRepository creates a new conversion schema repository
func NewConversionSchemaRepository(db *database.Connection) ConversionSchemaRepository {
	return &conversionSchemaRepository{db: db}
}

// Create creates a new conversion schema
func (r *conversionSchemaRepository) Create(ctx context.Context, schema *models.ConversionSchema) error {
	return r.db.WithContext(ctx).Create(schema).Error
}

// GetByID retrieves a conversion schema by ID
func (r *conversionSchemaRepository) GetByID(ctx context.Context, id string) (*models.ConversionSchema, error) {
	var schema models.ConversionSchema
	err := r.db.WithContext(ctx).First(&schema, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

// GetByTenant retrieves all conversion schemas for a tenant
func (r *conversionSchemaRepository) GetByTenant(ctx context.Context, tenantID string) ([]*models.ConversionSchema, error) {
	var schemas []*models.ConversionSchema
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Find(&schemas).Error
	return schemas, err
}

// Update updates an existing conversion schema
func (r *conversionSchemaRepository) Update(ctx context.Context, schema *models.ConversionSchema) error {
	return r.db.WithContext(ctx).Save(schema).Error
}

// Delete soft deletes a conversion schema
func (r *conversionSchemaRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.ConversionSchema{}, "id = ?", id).Error
}
