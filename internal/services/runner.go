package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"integration-sync-platform/internal/adapters"
	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/models"
	"integration-sync-platform/internal/repositories"
)

// runnerService implements RunnerService. One call to Execute performs one
// full execution: paged pull, conversion, deduplication, conflict resolution,
// persistence and the optional push phase.
type runnerService struct {
	logger   *logger.Logger
	registry *adapters.Registry

	conversion ConversionService
	dedup      DeduplicationService
	engine     *ConflictEngine
	limiter    *ProviderRateLimiter
	metrics    *SyncMetrics
	events     EventSink
	retry      RetryPolicy

	executions  repositories.SyncExecutionRepository
	conflicts   repositories.SyncConflictRepository
	records     repositories.RecordRepository
	schemas     repositories.ConversionSchemaRepository
	connections repositories.IntegrationConnectionRepository

	pageSize       int
	adapterTimeout time.Duration
}

// NewRunnerService creates a new sync runner.
func NewRunnerService(
	logger *logger.Logger,
	cfg *config.Config,
	registry *adapters.Registry,
	conversion ConversionService,
	dedup DeduplicationService,
	engine *ConflictEngine,
	limiter *ProviderRateLimiter,
	metrics *SyncMetrics,
	events EventSink,
	executions repositories.SyncExecutionRepository,
	conflicts repositories.SyncConflictRepository,
	records repositories.RecordRepository,
	schemas repositories.ConversionSchemaRepository,
	connections repositories.IntegrationConnectionRepository,
) RunnerService {
	return &runnerService{
		logger:         logger,
		registry:       registry,
		conversion:     conversion,
		dedup:          dedup,
		engine:         engine,
		limiter:        limiter,
		metrics:        metrics,
		events:         events,
		retry:          RetryPolicyFromConfig(cfg),
		executions:     executions,
		conflicts:      conflicts,
		records:        records,
		schemas:        schemas,
		connections:    connections,
		pageSize:       cfg.Sync.PageSize,
		adapterTimeout: time.Duration(cfg.Sync.AdapterTimeoutSeconds) * time.Second,
	}
}

// executionContext carries the loaded dependencies of one execution so the
// per-page and per-record helpers do not re-resolve them.
type executionContext struct {
	task      *models.SyncTask
	conn      *models.IntegrationConnection
	schema    *models.ConversionSchema
	adapter   adapters.Adapter
	execution *models.SyncExecution

	recordErrors []models.RecordError
}

func (ec *executionContext) recordError(stage, externalID, recordID, message string) {
	ec.execution.Stats.Errors++
	ec.recordErrors = append(ec.recordErrors, models.RecordError{
		ExternalID: externalID,
		RecordID:   recordID,
		Stage:      stage,
		Message:    message,
	})
}

// Execute runs one sync execution for the task and returns the finished
// execution row. Runtime failures are reported on the row, not as an error;
// a non-nil error means the execution could not even be started.
func (s *runnerService) Execute(ctx context.Context, task *models.SyncTask, triggeredBy string) (*models.SyncExecution, error) {
	ec, err := s.prepare(ctx, task, triggeredBy)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithTenant(task.TenantID).WithField("task_id", task.ID).WithField("execution_id", ec.execution.ID)
	log.WithField("provider", ec.conn.Provider).WithField("direction", task.Direction).Info("Sync execution started")

	var fatal error
	if task.Pulls() {
		fatal = s.runPull(ctx, ec)
	}
	if fatal == nil && task.Pushes() {
		fatal = s.runPush(ctx, ec)
	}

	s.finalize(ctx, ec, fatal)
	return ec.execution, nil
}

// prepare loads the connection, schema and adapter, and opens the execution row.
func (s *runnerService) prepare(ctx context.Context, task *models.SyncTask, triggeredBy string) (*executionContext, error) {
	conn, err := s.connections.GetByID(ctx, task.ConnectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection %s: %w", task.ConnectionID, err)
	}
	schema, err := s.schemas.GetByID(ctx, task.SchemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", task.SchemaID, err)
	}
	if err := schema.ValidateMappings(); err != nil {
		return nil, fmt.Errorf("schema %s is not usable: %w", schema.ID, err)
	}
	adapter, err := s.registry.Get(conn.Provider)
	if err != nil {
		return nil, err
	}

	execution := &models.SyncExecution{
		TaskID:      task.ID,
		TenantID:    task.TenantID,
		Status:      models.ExecutionStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   time.Now().UTC(),
	}
	if task.SyncMode == models.SyncModeIncremental {
		execution.SyncToken = s.lastSyncToken(ctx, task.ID)
	}
	if err := s.executions.Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	return &executionContext{
		task:      task,
		conn:      conn,
		schema:    schema,
		adapter:   adapter,
		execution: execution,
	}, nil
}

// lastSyncToken resumes from the most recent execution that made progress.
func (s *runnerService) lastSyncToken(ctx context.Context, taskID string) string {
	latest, err := s.executions.GetLatestByTask(ctx, taskID)
	if err != nil || latest == nil {
		return ""
	}
	if latest.Status == models.ExecutionStatusFailed {
		return ""
	}
	return latest.SyncToken
}

// runPull drives the paged fetch loop. The sync token on the execution row is
// only advanced after a page's records have been persisted, so a crash mid-page
// re-fetches that page rather than skipping it.
func (s *runnerService) runPull(ctx context.Context, ec *executionContext) error {
	token := ec.execution.SyncToken

	for {
		page, err := s.fetchPage(ctx, ec, token)
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}

		ec.execution.Stats.RecordsFetched += len(page.Records)
		s.metrics.RecordsFetched.WithLabelValues(ec.conn.Provider).Add(float64(len(page.Records)))

		for i := range page.Records {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.processRecord(ctx, ec, page.Records[i])
		}

		// Page persisted; checkpoint the cursor.
		token = page.LastSyncToken
		ec.execution.SyncToken = token
		if err := s.executions.Update(ctx, ec.execution); err != nil {
			return fmt.Errorf("failed to checkpoint execution: %w", err)
		}

		if !page.HasMore {
			return nil
		}
	}
}

// fetchPage calls the adapter under the provider rate limit and retry policy.
func (s *runnerService) fetchPage(ctx context.Context, ec *executionContext, token string) (*adapters.FetchResult, error) {
	release, err := s.limiter.Acquire(ctx, ec.task.TenantID, ec.conn.Provider)
	if err != nil {
		return nil, err
	}
	defer release()

	opts := adapters.FetchOptions{
		Entity:    ec.schema.SourceEntity,
		PageSize:  s.pageSize,
		SyncToken: token,
	}

	var page *adapters.FetchResult
	err = s.retry.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.adapterTimeout)
		defer cancel()
		var ferr error
		page, ferr = ec.adapter.FetchRecords(callCtx, ec.conn, opts)
		return ferr
	})
	return page, err
}

// processRecord takes one fetched record through conversion, deduplication,
// conflict resolution and persistence. Failures are recorded on the execution
// and never abort the page.
func (s *runnerService) processRecord(ctx context.Context, ec *executionContext, external adapters.ExternalRecord) {
	conversion := s.conversion.Convert(ec.schema, external)
	if !conversion.Persistable {
		ec.execution.Stats.RecordsSkipped++
		for _, fr := range conversion.Errors() {
			ec.recordError("conversion", external.ID, "", fmt.Sprintf("field %s: %s", fr.TargetField, fr.Error))
		}
		return
	}
	ec.execution.Stats.RecordsConverted++

	dedup, err := s.dedup.Resolve(ctx, ec.schema, external.ID, conversion.Target)
	if err != nil {
		ec.recordError("deduplication", external.ID, "", err.Error())
		return
	}
	if dedup.Ambiguous {
		s.metrics.DedupAmbiguities.WithLabelValues(ec.conn.Provider).Inc()
	}

	if dedup.Action == DedupActionCreate {
		s.createRecord(ctx, ec, external, conversion.Target)
		return
	}
	s.updateRecord(ctx, ec, external, conversion.Target, dedup)
}

// createRecord persists a brand new internal record and its external link.
func (s *runnerService) createRecord(ctx context.Context, ec *executionContext, external adapters.ExternalRecord, target models.JSONMap) {
	record := &models.InternalRecord{
		TenantID: ec.task.TenantID,
		TypeID:   ec.schema.TargetTypeID,
		Fields:   target,
		Version:  1,
	}
	if err := s.records.CreateOrUpdate(ctx, record, 0); err != nil {
		ec.recordError("persistence", external.ID, "", err.Error())
		return
	}

	if err := s.upsertLink(ctx, ec, record.ID, external.ID, record.Fields); err != nil {
		ec.recordError("persistence", external.ID, record.ID, err.Error())
		return
	}

	ec.execution.Stats.RecordsCreated++
	s.metrics.RecordsPersisted.WithLabelValues(ec.conn.Provider, "create").Inc()
}

// updateRecord merges the converted values into an existing record under the
// task's conflict policy. A lost optimistic-concurrency race is replayed once
// against the fresh row.
func (s *runnerService) updateRecord(ctx context.Context, ec *executionContext, external adapters.ExternalRecord, target models.JSONMap, dedup *DedupResult) {
	for attempt := 0; attempt < 2; attempt++ {
		record, err := s.records.GetByID(ctx, dedup.ExistingRecordID)
		if err != nil {
			ec.recordError("persistence", external.ID, dedup.ExistingRecordID, err.Error())
			return
		}

		pending, err := s.pendingFields(ctx, record.ID)
		if err != nil {
			ec.recordError("persistence", external.ID, record.ID, err.Error())
			return
		}

		var base models.JSONMap
		link, _ := s.records.GetLink(ctx, record.ID, ec.conn.Provider)
		if link != nil {
			base = link.LastSyncedSnapshot
		}

		outcome := s.engine.Resolve(ConflictInput{
			External:           target,
			Internal:           record.Fields,
			LastSynced:         base,
			ExternalModifiedAt: external.ModifiedAt,
			InternalUpdatedAt:  record.UpdatedAt,
			Policy:             ec.task.ConflictPolicy,
			Direction:          ec.task.Direction,
			PendingFields:      pending,
		})

		s.accountConflicts(ctx, ec, record, external, link, outcome, pending)

		if len(outcome.Resolved) == 0 {
			// Nothing safe to write this pass; refresh the link timestamp only.
			if err := s.refreshLink(ctx, ec, record.ID, external.ID, link); err != nil {
				ec.recordError("persistence", external.ID, record.ID, err.Error())
			}
			ec.execution.Stats.RecordsSkipped++
			return
		}

		merged := record.Fields.Clone()
		for field, value := range outcome.Resolved {
			merged[field] = value
		}
		record.Fields = merged

		err = s.records.CreateOrUpdate(ctx, record, record.Version)
		if errors.Is(err, repositories.ErrVersionConflict) {
			continue
		}
		if err != nil {
			ec.recordError("persistence", external.ID, record.ID, err.Error())
			return
		}

		// The snapshot only advances for fields actually written; pending
		// fields keep their old base so the conflict stays visible next pass.
		snapshot := snapshotAfterWrite(base, outcome.Resolved)
		if err := s.upsertLink(ctx, ec, record.ID, external.ID, snapshot); err != nil {
			ec.recordError("persistence", external.ID, record.ID, err.Error())
			return
		}

		ec.execution.Stats.RecordsUpdated++
		s.metrics.RecordsPersisted.WithLabelValues(ec.conn.Provider, "update").Inc()
		return
	}

	ec.recordError("persistence", external.ID, dedup.ExistingRecordID, "record version conflict persisted across retries")
}

// accountConflicts updates counters and opens a conflict row when new fields
// went to manual review.
func (s *runnerService) accountConflicts(ctx context.Context, ec *executionContext, record *models.InternalRecord, external adapters.ExternalRecord, link *models.ExternalLink, outcome *ConflictOutcome, alreadyPending map[string]bool) {
	if len(outcome.ConflictFields) > 0 {
		ec.execution.Stats.ConflictsDetected += len(outcome.ConflictFields)
		s.metrics.ConflictsDetected.WithLabelValues(ec.conn.Provider).Add(float64(len(outcome.ConflictFields)))
	}
	if outcome.AutoResolved > 0 {
		ec.execution.Stats.ConflictsResolved += outcome.AutoResolved
		s.metrics.ConflictsResolved.WithLabelValues(ec.conn.Provider, "auto").Add(float64(outcome.AutoResolved))
	}

	var newPending []string
	for _, field := range outcome.PendingFields {
		if !alreadyPending[field] {
			newPending = append(newPending, field)
		}
	}
	if len(newPending) == 0 {
		return
	}

	var base models.JSONMap
	if link != nil {
		base = link.LastSyncedSnapshot.Clone()
	}

	fields, _ := json.Marshal(newPending)
	conflict := &models.SyncConflict{
		TaskID:             ec.task.ID,
		ExecutionID:        ec.execution.ID,
		TenantID:           ec.task.TenantID,
		RecordID:           record.ID,
		Provider:           ec.conn.Provider,
		ExternalID:         external.ID,
		ConflictingFields:  fields,
		InternalSnapshot:   record.Fields.Clone(),
		ExternalSnapshot:   models.JSONMap(external.Fields).Clone(),
		LastSyncedSnapshot: base,
		Resolution:         models.ResolutionManualPending,
	}
	if err := s.conflicts.Create(ctx, conflict); err != nil {
		s.logger.WithError(err).WithField("record_id", record.ID).Error("Failed to record sync conflict")
		return
	}

	s.events.Publish(ctx, SyncEvent{
		Type:        EventConflictDetected,
		TenantID:    ec.task.TenantID,
		TaskID:      ec.task.ID,
		ExecutionID: ec.execution.ID,
		ConflictID:  conflict.ID,
		Payload:     models.JSONMap{"fields": newPending, "record_id": record.ID},
	})
}

// pendingFields collects field names of unresolved conflicts for a record.
func (s *runnerService) pendingFields(ctx context.Context, recordID string) (map[string]bool, error) {
	rows, err := s.conflicts.GetPendingByRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	pending := make(map[string]bool)
	for _, row := range rows {
		var fields []string
		if err := json.Unmarshal(row.ConflictingFields, &fields); err != nil {
			continue
		}
		for _, field := range fields {
			pending[field] = true
		}
	}
	return pending, nil
}

// upsertLink stores the external key mapping and advances the merge base.
func (s *runnerService) upsertLink(ctx context.Context, ec *executionContext, recordID, externalID string, snapshot models.JSONMap) error {
	now := time.Now().UTC()
	return s.records.UpsertLink(ctx, &models.ExternalLink{
		RecordID:           recordID,
		TenantID:           ec.task.TenantID,
		Provider:           ec.conn.Provider,
		ExternalID:         externalID,
		LastSyncedAt:       &now,
		LastSyncedSnapshot: snapshot.Clone(),
	})
}

// refreshLink touches the synced-at timestamp without moving the merge base.
func (s *runnerService) refreshLink(ctx context.Context, ec *executionContext, recordID, externalID string, link *models.ExternalLink) error {
	var snapshot models.JSONMap
	if link != nil {
		snapshot = link.LastSyncedSnapshot
	}
	return s.upsertLink(ctx, ec, recordID, externalID, snapshot)
}

// snapshotAfterWrite advances the merge base for the fields written this pass
// while keeping the previous base for everything else.
func snapshotAfterWrite(base models.JSONMap, written models.JSONMap) models.JSONMap {
	snapshot := base.Clone()
	if snapshot == nil {
		snapshot = models.JSONMap{}
	}
	for field, value := range written {
		snapshot[field] = value
	}
	return snapshot
}

// runPush submits internal changes accumulated since the previous successful
// execution back to the provider.
func (s *runnerService) runPush(ctx context.Context, ec *executionContext) error {
	since := s.lastSuccessfulFinish(ctx, ec.task.ID)

	changed, err := s.records.GetChangedSince(ctx, ec.task.TenantID, ec.schema.TargetTypeID, since)
	if err != nil {
		return fmt.Errorf("failed to list changed records: %w", err)
	}
	if len(changed) == 0 {
		return nil
	}

	var batch []adapters.PushRecord
	for _, record := range changed {
		fields, err := s.conversion.ConvertOutbound(ec.schema, record)
		if err != nil {
			ec.recordError("push", "", record.ID, err.Error())
			continue
		}
		if len(fields) == 0 {
			continue
		}

		push := adapters.PushRecord{RecordID: record.ID, Entity: ec.schema.SourceEntity, Fields: fields}
		if link, err := s.records.GetLink(ctx, record.ID, ec.conn.Provider); err == nil && link != nil {
			push.ExternalID = link.ExternalID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) && err != nil {
			ec.recordError("push", "", record.ID, err.Error())
			continue
		}
		batch = append(batch, push)
	}
	if len(batch) == 0 {
		return nil
	}

	release, err := s.limiter.Acquire(ctx, ec.task.TenantID, ec.conn.Provider)
	if err != nil {
		return err
	}
	defer release()

	var result *adapters.PushResult
	err = s.retry.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.adapterTimeout)
		defer cancel()
		var perr error
		result, perr = ec.adapter.PushRecords(callCtx, ec.conn, batch)
		return perr
	})
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	for _, item := range result.Results {
		if !item.Success {
			ec.recordError("push", item.ExternalID, item.RecordID, item.Error)
			s.metrics.RecordsPushed.WithLabelValues(ec.conn.Provider, "failed").Inc()
			continue
		}

		ec.execution.Stats.RecordsPushed++
		s.metrics.RecordsPushed.WithLabelValues(ec.conn.Provider, "pushed").Inc()

		// A successful push makes the external side agree with the internal
		// record, so the merge base advances to the current fields.
		if record, err := s.records.GetByID(ctx, item.RecordID); err == nil {
			if err := s.upsertLink(ctx, ec, record.ID, item.ExternalID, record.Fields); err != nil {
				s.logger.WithError(err).WithField("record_id", record.ID).Warn("Failed to advance merge base after push")
			}
		}
	}
	return nil
}

// lastSuccessfulFinish returns the finish time of the last execution that
// completed without fatal failure, or the zero time for a first run.
func (s *runnerService) lastSuccessfulFinish(ctx context.Context, taskID string) time.Time {
	latest, err := s.executions.GetLatestByTask(ctx, taskID)
	if err != nil || latest == nil {
		return time.Time{}
	}
	if latest.Status == models.ExecutionStatusFailed || latest.FinishedAt == nil {
		return time.Time{}
	}
	return *latest.FinishedAt
}

// finalize closes the execution row, records metrics and publishes the
// completion event.
func (s *runnerService) finalize(ctx context.Context, ec *executionContext, fatal error) {
	now := time.Now().UTC()
	ec.execution.FinishedAt = &now

	switch {
	case fatal != nil:
		ec.execution.Status = models.ExecutionStatusFailed
		ec.execution.Error = fatal.Error()
	case ec.execution.Stats.Errors > 0:
		ec.execution.Status = models.ExecutionStatusPartial
	default:
		ec.execution.Status = models.ExecutionStatusSucceeded
	}

	if len(ec.recordErrors) > 0 {
		if data, err := json.Marshal(ec.recordErrors); err == nil {
			ec.execution.RecordErrors = data
		}
	}

	// Persist the terminal state even when the triggering context was
	// cancelled.
	updateCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		updateCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.executions.Update(updateCtx, ec.execution); err != nil {
		s.logger.WithExecution(ec.execution.ID).WithError(err).Error("Failed to finalize execution")
	}

	duration := now.Sub(ec.execution.StartedAt).Seconds()
	s.metrics.ExecutionsTotal.WithLabelValues(ec.conn.Provider, ec.execution.Status).Inc()
	s.metrics.ExecutionDuration.WithLabelValues(ec.conn.Provider).Observe(duration)

	s.events.Publish(updateCtx, SyncEvent{
		Type:        EventExecutionCompleted,
		TenantID:    ec.task.TenantID,
		TaskID:      ec.task.ID,
		ExecutionID: ec.execution.ID,
		Payload: models.JSONMap{
			"status":           ec.execution.Status,
			"records_fetched":  ec.execution.Stats.RecordsFetched,
			"records_created":  ec.execution.Stats.RecordsCreated,
			"records_updated":  ec.execution.Stats.RecordsUpdated,
			"records_skipped":  ec.execution.Stats.RecordsSkipped,
			"records_pushed":   ec.execution.Stats.RecordsPushed,
			"conflicts":        ec.execution.Stats.ConflictsDetected,
			"errors":           ec.execution.Stats.Errors,
			"duration_seconds": duration,
		},
	})

	s.logger.WithTenant(ec.task.TenantID).
		WithField("task_id", ec.task.ID).
		WithField("execution_id", ec.execution.ID).
		WithField("status", ec.execution.Status).
		WithField("duration_seconds", duration).
		Info("Sync execution finished")
}
