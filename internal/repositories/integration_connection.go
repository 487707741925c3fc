package repositories

import (
	"context"

	"integration-sync-platform/internal/database"
	"integration-sync-platform/internal/models"
)

// integrationConnectionRepository implements IntegrationConnectionRepository
type integrationConnectionRepository struct {
	db *database.Connection
}

// NewIntegrationConnectionRepository creates a new integration connection repository
func NewIntegrationConnectionRepository(db *database.Connection) IntegrationConnectionRepository {
	return &integrationConnectionRepository{db: db}
}

// Create creates a new integration connection
func (r *integrationConnectionRepository) Create(ctx context.Context, conn *models.IntegrationConnection) error {
	return r.db.WithContext(ctx).Create(conn).Error
}

// GetByID retrieves an integration connection by ID
func (r *integrationConnectionRepository) GetByID(ctx context.Context, id string) (*models.IntegrationConnection, error) {
	var conn models.IntegrationConnection
	err := r.db.WithContext(ctx).First(&conn, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// GetByTenant retrieves all integration connections for a tenant
func (r *integrationConnectionRepository) GetByTenant(ctx context.Context, tenantID string) ([]*models.IntegrationConnection, error) {
	var conns []*models.IntegrationConnection
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Find(&conns).Error
	return conns, err
}

// Update updates an existing integration connection
func (r *integrationConnectionRepository) Update(ctx context.Context, conn *models.IntegrationConnection) error {
	return r.db.WithContext(ctx).Save(conn).Error
}
