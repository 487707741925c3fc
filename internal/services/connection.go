package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"integration-sync-platform/internal/adapters"
	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/models"
	"integration-sync-platform/internal/repositories"
)

// connectionService implements ConnectionService
type connectionService struct {
	logger      *logger.Logger
	validation  *models.ValidationService
	registry    *adapters.Registry
	connections repositories.IntegrationConnectionRepository
}

// NewConnectionService creates a new connection service
func NewConnectionService(
	logger *logger.Logger,
	validation *models.ValidationService,
	registry *adapters.Registry,
	connections repositories.IntegrationConnectionRepository,
) ConnectionService {
	return &connectionService{
		logger:      logger,
		validation:  validation,
		registry:    registry,
		connections: connections,
	}
}

// CreateConnection validates and stores a new connection.
func (s *connectionService) CreateConnection(ctx context.Context, conn *models.IntegrationConnection) (*models.IntegrationConnection, error) {
	if err := s.validation.ValidateStruct(conn); err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(conn.Provider); err != nil {
		return nil, err
	}

	if err := s.connections.Create(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	s.logger.WithTenant(conn.TenantID).WithField("provider", conn.Provider).Info("Integration connection created")
	return conn, nil
}

// GetConnection returns one connection scoped to the tenant.
func (s *connectionService) GetConnection(ctx context.Context, tenantID, id string) (*models.IntegrationConnection, error) {
	conn, err := s.connections.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if conn.TenantID != tenantID {
		return nil, ErrForbidden
	}
	return conn, nil
}

// ListConnections returns the tenant's connections.
func (s *connectionService) ListConnections(ctx context.Context, tenantID string) ([]*models.IntegrationConnection, error) {
	return s.connections.GetByTenant(ctx, tenantID)
}

// UpdateConnection applies changes to an existing connection.
func (s *connectionService) UpdateConnection(ctx context.Context, tenantID string, conn *models.IntegrationConnection) (*models.IntegrationConnection, error) {
	existing, err := s.GetConnection(ctx, tenantID, conn.ID)
	if err != nil {
		return nil, err
	}

	conn.TenantID = existing.TenantID
	conn.CreatedAt = existing.CreatedAt
	if err := s.validation.ValidateStruct(conn); err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(conn.Provider); err != nil {
		return nil, err
	}

	if err := s.connections.Update(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to update connection: %w", err)
	}
	return conn, nil
}
