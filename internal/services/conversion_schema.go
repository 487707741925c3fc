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

// conversionSchemaService implements ConversionSchemaService
type conversionSchemaService struct {
	logger     *logger.Logger
	validation *models.ValidationService
	conversion ConversionService
	registry   *adapters.Registry

	schemas repositories.ConversionSchemaRepository
	tasks   repositories.SyncTaskRepository
}

// NewConversionSchemaService creates a new conversion schema service
func NewConversionSchemaService(
	logger *logger.Logger,
	validation *models.ValidationService,
	conversion ConversionService,
	registry *adapters.Registry,
	schemas repositories.ConversionSchemaRepository,
	tasks repositories.SyncTaskRepository,
) ConversionSchemaService {
	return &conversionSchemaService{
		logger:     logger,
		validation: validation,
		conversion: conversion,
		registry:   registry,
		schemas:    schemas,
		tasks:      tasks,
	}
}

// CreateSchema validates and stores a new schema.
func (s *conversionSchemaService) CreateSchema(ctx context.Context, schema *models.ConversionSchema) (*models.ConversionSchema, error) {
	if err := s.validateSchema(schema); err != nil {
		return nil, err
	}
	if err := s.schemas.Create(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create conversion schema: %w", err)
	}

	s.logger.WithTenant(schema.TenantID).WithField("schema_id", schema.ID).Info("Conversion schema created")
	return schema, nil
}

// GetSchema returns one schema scoped to the tenant.
func (s *conversionSchemaService) GetSchema(ctx context.Context, tenantID, id string) (*models.ConversionSchema, error) {
	return s.ownedSchema(ctx, tenantID, id)
}

// ListSchemas returns the tenant's schemas.
func (s *conversionSchemaService) ListSchemas(ctx context.Context, tenantID string) ([]*models.ConversionSchema, error) {
	return s.schemas.GetByTenant(ctx, tenantID)
}

// UpdateSchema applies definition changes. Running tasks pick up the new
// mappings on their next execution; in-flight executions keep the version they
// loaded at start.
func (s *conversionSchemaService) UpdateSchema(ctx context.Context, tenantID string, schema *models.ConversionSchema) (*models.ConversionSchema, error) {
	existing, err := s.ownedSchema(ctx, tenantID, schema.ID)
	if err != nil {
		return nil, err
	}

	schema.TenantID = existing.TenantID
	schema.CreatedBy = existing.CreatedBy
	schema.CreatedAt = existing.CreatedAt

	if err := s.validateSchema(schema); err != nil {
		return nil, err
	}
	if err := s.schemas.Update(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to update conversion schema: %w", err)
	}
	return schema, nil
}

// DeleteSchema soft-deletes a schema no task references.
func (s *conversionSchemaService) DeleteSchema(ctx context.Context, tenantID, id string) error {
	if _, err := s.ownedSchema(ctx, tenantID, id); err != nil {
		return err
	}

	tasks, err := s.tasks.GetByTenant(ctx, tenantID, 1000, 0)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if task.SchemaID == id {
			return fmt.Errorf("schema %s is referenced by task %s", id, task.ID)
		}
	}
	return s.schemas.Delete(ctx, id)
}

// TestSchema runs the schema's mappings against a caller-supplied sample
// payload and returns the field-level outcomes. Nothing touches the store.
func (s *conversionSchemaService) TestSchema(ctx context.Context, tenantID, id string, sample map[string]interface{}) (*ConversionResult, error) {
	schema, err := s.ownedSchema(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	record := adapters.ExternalRecord{ID: "sample", Fields: sample}
	return s.conversion.Convert(schema, record), nil
}

func (s *conversionSchemaService) ownedSchema(ctx context.Context, tenantID, id string) (*models.ConversionSchema, error) {
	schema, err := s.schemas.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if schema.TenantID != tenantID {
		return nil, ErrForbidden
	}
	return schema, nil
}

// validateSchema checks struct tags, the mapping list and that the provider
// has a registered adapter.
func (s *conversionSchemaService) validateSchema(schema *models.ConversionSchema) error {
	if err := s.validation.ValidateStruct(schema); err != nil {
		return err
	}
	if err := schema.ValidateMappings(); err != nil {
		return err
	}
	if _, err := s.registry.Get(schema.Provider); err != nil {
		return err
	}
	if schema.DedupStrategy == models.DedupExactMatch {
		fields, err := schema.MatchFields()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return fmt.Errorf("exact_match deduplication requires at least one match field")
		}
	}
	return nil
}
