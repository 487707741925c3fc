package services

import (
	"context"
	"net/http"

	"integration-sync-platform/internal/adapters"
	"integration-sync-platform/internal/models"
)

// ConversionService maps external entity fields to internal record fields
// according to a conversion schema.
type ConversionService interface {
	// Convert executes the schema's mappings against one external record.
	// Individual mapping failures never abort the remaining fields.
	Convert(schema *models.ConversionSchema, record adapters.ExternalRecord) *ConversionResult
	// ConvertOutbound maps internal record fields back to the external shape
	// using the invertible subset of the schema's mappings.
	ConvertOutbound(schema *models.ConversionSchema, record *models.InternalRecord) (map[string]interface{}, error)
}

// DeduplicationService decides whether a converted record corresponds to an
// existing internal record or is new.
type DeduplicationService interface {
	Resolve(ctx context.Context, schema *models.ConversionSchema, externalID string, target models.JSONMap) (*DedupResult, error)
}

// RunnerService drives one sync execution end to end.
type RunnerService interface {
	Execute(ctx context.Context, task *models.SyncTask, triggeredBy string) (*models.SyncExecution, error)
}

// SyncTaskService owns task definitions, lifecycle transitions and triggers.
type SyncTaskService interface {
	CreateTask(ctx context.Context, task *models.SyncTask) (*models.SyncTask, error)
	GetTask(ctx context.Context, tenantID, id string) (*models.SyncTask, error)
	ListTasks(ctx context.Context, tenantID string, limit, offset int) ([]*models.SyncTask, error)
	UpdateTask(ctx context.Context, tenantID string, task *models.SyncTask) (*models.SyncTask, error)
	DeleteTask(ctx context.Context, tenantID, id string) error
	PauseTask(ctx context.Context, tenantID, id string) (*models.SyncTask, error)
	ResumeTask(ctx context.Context, tenantID, id string) (*models.SyncTask, error)
	// TriggerTask requests an execution. While another execution is running
	// the task's overlap policy decides between queueing and rejection.
	TriggerTask(ctx context.Context, tenantID, id, triggeredBy string) (*TriggerResult, error)

	GetExecutions(ctx context.Context, tenantID, taskID string, limit, offset int) ([]*models.SyncExecution, error)
	GetExecution(ctx context.Context, tenantID, executionID string) (*models.SyncExecution, error)
	GetConflicts(ctx context.Context, tenantID, taskID string, limit, offset int) ([]*models.SyncConflict, error)
	// ResolveConflict applies a human decision to a manual_pending conflict.
	ResolveConflict(ctx context.Context, tenantID, conflictID, resolution, resolvedBy string) (*models.SyncConflict, error)
}

// ConversionSchemaService owns conversion schema definitions.
type ConversionSchemaService interface {
	CreateSchema(ctx context.Context, schema *models.ConversionSchema) (*models.ConversionSchema, error)
	GetSchema(ctx context.Context, tenantID, id string) (*models.ConversionSchema, error)
	ListSchemas(ctx context.Context, tenantID string) ([]*models.ConversionSchema, error)
	UpdateSchema(ctx context.Context, tenantID string, schema *models.ConversionSchema) (*models.ConversionSchema, error)
	DeleteSchema(ctx context.Context, tenantID, id string) error
	// TestSchema previews a conversion against a sample external record
	// without persisting anything.
	TestSchema(ctx context.Context, tenantID, id string, sample map[string]interface{}) (*ConversionResult, error)
}

// ConnectionService owns integration connection definitions.
type ConnectionService interface {
	CreateConnection(ctx context.Context, conn *models.IntegrationConnection) (*models.IntegrationConnection, error)
	GetConnection(ctx context.Context, tenantID, id string) (*models.IntegrationConnection, error)
	ListConnections(ctx context.Context, tenantID string) ([]*models.IntegrationConnection, error)
	UpdateConnection(ctx context.Context, tenantID string, conn *models.IntegrationConnection) (*models.IntegrationConnection, error)
}

// WebhookService registers provider webhooks and resolves inbound deliveries
// to task triggers.
type WebhookService interface {
	RegisterWebhook(ctx context.Context, tenantID, connectionID string) (*models.WebhookRegistration, error)
	RotateSecret(ctx context.Context, tenantID, registrationID string) (*models.WebhookRegistration, error)
	// HandleInbound verifies, parses and maps a delivery to task triggers.
	// Unverifiable or unrecognised payloads are dropped without error so the
	// sender never retries them.
	HandleInbound(ctx context.Context, provider string, payload []byte, headers http.Header) ([]string, error)
}

// EventSink receives structured sync events. Delivery is fire-and-forget;
// the engine never blocks on it.
type EventSink interface {
	Publish(ctx context.Context, event SyncEvent)
}
