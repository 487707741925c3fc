package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"integration-sync-platform/internal/adapters"
	"integration-sync-platform/internal/models"
)

// mockRecordRepository mocks repositories.RecordRepository
type mockRecordRepository struct {
	mock.Mock
}

func (m *mockRecordRepository) GetByID(ctx context.Context, id string) (*models.InternalRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InternalRecord), args.Error(1)
}

func (m *mockRecordRepository) GetByExternalID(ctx context.Context, tenantID, provider, externalID string) (*models.InternalRecord, *models.ExternalLink, error) {
	args := m.Called(ctx, tenantID, provider, externalID)
	var record *models.InternalRecord
	var link *models.ExternalLink
	if args.Get(0) != nil {
		record = args.Get(0).(*models.InternalRecord)
	}
	if args.Get(1) != nil {
		link = args.Get(1).(*models.ExternalLink)
	}
	return record, link, args.Error(2)
}

func (m *mockRecordRepository) QueryByFields(ctx context.Context, tenantID, typeID string, fields map[string]interface{}) ([]*models.InternalRecord, error) {
	args := m.Called(ctx, tenantID, typeID, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.InternalRecord), args.Error(1)
}

func (m *mockRecordRepository) CreateOrUpdate(ctx context.Context, record *models.InternalRecord, expectedVersion int) error {
	args := m.Called(ctx, record, expectedVersion)
	return args.Error(0)
}

func (m *mockRecordRepository) GetLink(ctx context.Context, recordID, provider string) (*models.ExternalLink, error) {
	args := m.Called(ctx, recordID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExternalLink), args.Error(1)
}

func (m *mockRecordRepository) UpsertLink(ctx context.Context, link *models.ExternalLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *mockRecordRepository) GetChangedSince(ctx context.Context, tenantID, typeID string, since time.Time) ([]*models.InternalRecord, error) {
	args := m.Called(ctx, tenantID, typeID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.InternalRecord), args.Error(1)
}

// mockTaskRepository mocks repositories.SyncTaskRepository
type mockTaskRepository struct {
	mock.Mock
}

func (m *mockTaskRepository) Create(ctx context.Context, task *models.SyncTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepository) GetByID(ctx context.Context, id string) (*models.SyncTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncTask), args.Error(1)
}

func (m *mockTaskRepository) GetByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.SyncTask, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncTask), args.Error(1)
}

func (m *mockTaskRepository) GetByConnection(ctx context.Context, connectionID string) ([]*models.SyncTask, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncTask), args.Error(1)
}

func (m *mockTaskRepository) GetSchedulable(ctx context.Context) ([]*models.SyncTask, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncTask), args.Error(1)
}

func (m *mockTaskRepository) Update(ctx context.Context, task *models.SyncTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepository) TransitionStatus(ctx context.Context, id, from, to string) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockTaskRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// mockTriggerQueue mocks TriggerQueue
type mockTriggerQueue struct {
	mock.Mock
}

func (m *mockTriggerQueue) Push(ctx context.Context, job TriggerJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *mockTriggerQueue) Pop(ctx context.Context, timeout time.Duration) (*TriggerJob, error) {
	args := m.Called(ctx, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TriggerJob), args.Error(1)
}

func (m *mockTriggerQueue) PushWaiting(ctx context.Context, taskID, triggeredBy string) error {
	args := m.Called(ctx, taskID, triggeredBy)
	return args.Error(0)
}

func (m *mockTriggerQueue) PopWaiting(ctx context.Context, taskID string) (string, bool, error) {
	args := m.Called(ctx, taskID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockTriggerQueue) WaitingDepth(ctx context.Context, taskID string) (int64, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(int64), args.Error(1)
}

// stubRunner returns a scripted execution outcome.
type stubRunner struct {
	execution *models.SyncExecution
	err       error
}

func (r *stubRunner) Execute(context.Context, *models.SyncTask, string) (*models.SyncExecution, error) {
	return r.execution, r.err
}

// mockExecutionRepository mocks repositories.SyncExecutionRepository
type mockExecutionRepository struct {
	mock.Mock
}

func (m *mockExecutionRepository) Create(ctx context.Context, execution *models.SyncExecution) error {
	args := m.Called(ctx, execution)
	return args.Error(0)
}

func (m *mockExecutionRepository) GetByID(ctx context.Context, id string) (*models.SyncExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncExecution), args.Error(1)
}

func (m *mockExecutionRepository) GetByTask(ctx context.Context, taskID string, limit, offset int) ([]*models.SyncExecution, error) {
	args := m.Called(ctx, taskID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncExecution), args.Error(1)
}

func (m *mockExecutionRepository) GetLatestByTask(ctx context.Context, taskID string) (*models.SyncExecution, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncExecution), args.Error(1)
}

func (m *mockExecutionRepository) Update(ctx context.Context, execution *models.SyncExecution) error {
	args := m.Called(ctx, execution)
	return args.Error(0)
}

// mockConflictRepository mocks repositories.SyncConflictRepository
type mockConflictRepository struct {
	mock.Mock
}

func (m *mockConflictRepository) Create(ctx context.Context, conflict *models.SyncConflict) error {
	args := m.Called(ctx, conflict)
	return args.Error(0)
}

func (m *mockConflictRepository) GetByID(ctx context.Context, id string) (*models.SyncConflict, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncConflict), args.Error(1)
}

func (m *mockConflictRepository) GetByTask(ctx context.Context, taskID string, limit, offset int) ([]*models.SyncConflict, error) {
	args := m.Called(ctx, taskID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncConflict), args.Error(1)
}

func (m *mockConflictRepository) GetPendingByRecord(ctx context.Context, recordID string) ([]*models.SyncConflict, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncConflict), args.Error(1)
}

func (m *mockConflictRepository) Update(ctx context.Context, conflict *models.SyncConflict) error {
	args := m.Called(ctx, conflict)
	return args.Error(0)
}

// mockSchemaRepository mocks repositories.ConversionSchemaRepository
type mockSchemaRepository struct {
	mock.Mock
}

func (m *mockSchemaRepository) Create(ctx context.Context, schema *models.ConversionSchema) error {
	args := m.Called(ctx, schema)
	return args.Error(0)
}

func (m *mockSchemaRepository) GetByID(ctx context.Context, id string) (*models.ConversionSchema, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversionSchema), args.Error(1)
}

func (m *mockSchemaRepository) GetByTenant(ctx context.Context, tenantID string) ([]*models.ConversionSchema, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ConversionSchema), args.Error(1)
}

func (m *mockSchemaRepository) Update(ctx context.Context, schema *models.ConversionSchema) error {
	args := m.Called(ctx, schema)
	return args.Error(0)
}

func (m *mockSchemaRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// mockConnectionRepository mocks repositories.IntegrationConnectionRepository
type mockConnectionRepository struct {
	mock.Mock
}

func (m *mockConnectionRepository) Create(ctx context.Context, conn *models.IntegrationConnection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *mockConnectionRepository) GetByID(ctx context.Context, id string) (*models.IntegrationConnection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrationConnection), args.Error(1)
}

func (m *mockConnectionRepository) GetByTenant(ctx context.Context, tenantID string) ([]*models.IntegrationConnection, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.IntegrationConnection), args.Error(1)
}

func (m *mockConnectionRepository) Update(ctx context.Context, conn *models.IntegrationConnection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

// captureEventSink records published events for assertions.
type captureEventSink struct {
	mu     sync.Mutex
	events []SyncEvent
}

func (s *captureEventSink) Publish(_ context.Context, event SyncEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureEventSink) Events() []SyncEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SyncEvent, len(s.events))
	copy(out, s.events)
	return out
}

// fakeAdapter is a scripted adapter for runner tests.
type fakeAdapter struct {
	provider string
	pages    []*adapters.FetchResult
	fetchErr error
	pushFn   func(records []adapters.PushRecord) (*adapters.PushResult, error)

	mu      sync.Mutex
	fetches []adapters.FetchOptions
}

func (a *fakeAdapter) Provider() string {
	if a.provider == "" {
		return "hubspot"
	}
	return a.provider
}

func (a *fakeAdapter) FetchRecords(_ context.Context, _ *models.IntegrationConnection, opts adapters.FetchOptions) (*adapters.FetchResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.fetches = append(a.fetches, opts)
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	if len(a.pages) == 0 {
		return &adapters.FetchResult{}, nil
	}
	page := a.pages[0]
	a.pages = a.pages[1:]
	return page, nil
}

func (a *fakeAdapter) PushRecords(_ context.Context, _ *models.IntegrationConnection, records []adapters.PushRecord) (*adapters.PushResult, error) {
	if a.pushFn != nil {
		return a.pushFn(records)
	}
	return &adapters.PushResult{Success: true}, nil
}

func (a *fakeAdapter) ParseWebhook([]byte, http.Header) *adapters.WebhookEvent {
	return nil
}

func (a *fakeAdapter) VerifyWebhookSignature([]byte, http.Header, string) bool {
	return false
}
