package repositories

import (
	"context"
	"errors"
	"time"

	"integration-sync-platform/internal/models"
)

// ErrVersionConflict is returned when an optimistic-concurrency write loses
// the race against a concurrent update.
var ErrVersionConflict = errors.New("record version conflict")

// SyncTaskRepository defines the interface for sync task data operations
type SyncTaskRepository interface {
	Create(ctx context.Context, task *models.SyncTask) error
	GetByID(ctx context.Context, id string) (*models.SyncTask, error)
	GetByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.SyncTask, error)
	GetByConnection(ctx context.Context, connectionID string) ([]*models.SyncTask, error)
	GetSchedulable(ctx context.Context) ([]*models.SyncTask, error)
	Update(ctx context.Context, task *models.SyncTask) error
	// TransitionStatus atomically moves a task from one status to another.
	// It reports false when the task was not in the expected status, which is
	// how single-active-execution is enforced without row locks.
	TransitionStatus(ctx context.Context, id, from, to string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// SyncExecutionRepository defines the interface for sync execution data operations
type SyncExecutionRepository interface {
	Create(ctx context.Context, execution *models.SyncExecution) error
	GetByID(ctx context.Context, id string) (*models.SyncExecution, error)
	GetByTask(ctx context.Context, taskID string, limit, offset int) ([]*models.SyncExecution, error)
	GetLatestByTask(ctx context.Context, taskID string) (*models.SyncExecution, error)
	Update(ctx context.Context, execution *models.SyncExecution) error
}

// SyncConflictRepository defines the interface for sync conflict data operations
type SyncConflictRepository interface {
	Create(ctx context.Context, conflict *models.SyncConflict) error
	GetByID(ctx context.Context, id string) (*models.SyncConflict, error)
	GetByTask(ctx context.Context, taskID string, limit, offset int) ([]*models.SyncConflict, error)
	// GetPendingByRecord returns unresolved conflicts for an internal record.
	// Fields named in these rows must not be overwritten by automatic passes.
	GetPendingByRecord(ctx context.Context, recordID string) ([]*models.SyncConflict, error)
	Update(ctx context.Context, conflict *models.SyncConflict) error
}

// ConversionSchemaRepository defines the interface for conversion schema data operations
type ConversionSchemaRepository interface {
	Create(ctx context.Context, schema *models.ConversionSchema) error
	GetByID(ctx context.Context, id string) (*models.ConversionSchema, error)
	GetByTenant(ctx context.Context, tenantID string) ([]*models.ConversionSchema, error)
	Update(ctx context.Context, schema *models.ConversionSchema) error
	Delete(ctx context.Context, id string) error
}

// RecordRepository is the keyed document store the sync engine persists into.
// It supports lookup by external key, query by field, and optimistic
// concurrency on writes.
type RecordRepository interface {
	GetByID(ctx context.Context, id string) (*models.InternalRecord, error)
	// GetByExternalID resolves the (tenant, provider, external id) key to the
	// linked internal record, or returns gorm.ErrRecordNotFound.
	GetByExternalID(ctx context.Context, tenantID, provider, externalID string) (*models.InternalRecord, *models.ExternalLink, error)
	// QueryByFields finds records whose stored fields equal the given values.
	QueryByFields(ctx context.Context, tenantID, typeID string, fields map[string]interface{}) ([]*models.InternalRecord, error)
	// CreateOrUpdate persists a record. For updates, expectedVersion guards the
	// write; ErrVersionConflict is returned when the stored version moved on.
	CreateOrUpdate(ctx context.Context, record *models.InternalRecord, expectedVersion int) error
	GetLink(ctx context.Context, recordID, provider string) (*models.ExternalLink, error)
	UpsertLink(ctx context.Context, link *models.ExternalLink) error
	// GetChangedSince lists records updated after the given time, for the push
	// direction of bidirectional sync.
	GetChangedSince(ctx context.Context, tenantID, typeID string, since time.Time) ([]*models.InternalRecord, error)
}

// IntegrationConnectionRepository defines the interface for connection data operations
type IntegrationConnectionRepository interface {
	Create(ctx context.Context, conn *models.IntegrationConnection) error
	GetByID(ctx context.Context, id string) (*models.IntegrationConnection, error)
	GetByTenant(ctx context.Context, tenantID string) ([]*models.IntegrationConnection, error)
	Update(ctx context.Context, conn *models.IntegrationConnection) error
}

// WebhookRegistrationRepository defines the interface for webhook registration data operations
type WebhookRegistrationRepository interface {
	Create(ctx context.Context, reg *models.WebhookRegistration) error
	GetByID(ctx context.Context, id string) (*models.WebhookRegistration, error)
	GetByConnection(ctx context.Context, connectionID string) (*models.WebhookRegistration, error)
	GetByProvider(ctx context.Context, provider string) ([]*models.WebhookRegistration, error)
	Update(ctx context.Context, reg *models.WebhookRegistration) error
}
