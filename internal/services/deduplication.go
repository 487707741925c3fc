package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/models"
	"integration-sync-platform/internal/repositories"
)

// Dedup actions
const (
	DedupActionCreate = "create"
	DedupActionUpdate = "update"
)

// DedupResult is the outcome of resolving one converted record against the store.
type DedupResult struct {
	Action           string
	ExistingRecordID string
	ExistingVersion  int
	Link             *models.ExternalLink
	// Ambiguous marks an exact_match that hit several candidates. The most
	// recently synced one was chosen; the ambiguity is surfaced in stats.
	Ambiguous bool
}

// deduplicationService implements DeduplicationService
type deduplicationService struct {
	logger  *logger.Logger
	records repositories.RecordRepository
}

// NewDeduplicationService creates a new deduplication service
func NewDeduplicationService(logger *logger.Logger, records repositories.RecordRepository) DeduplicationService {
	return &deduplicationService{logger: logger, records: records}
}

// Resolve decides create-vs-update for one converted record. The external id
// key is always consulted first; it is the fast path and keeps repeated syncs
// of the same record idempotent.
func (s *deduplicationService) Resolve(ctx context.Context, schema *models.ConversionSchema, externalID string, target models.JSONMap) (*DedupResult, error) {
	record, link, err := s.records.GetByExternalID(ctx, schema.TenantID, schema.Provider, externalID)
	if err == nil {
		return &DedupResult{
			Action:           DedupActionUpdate,
			ExistingRecordID: record.ID,
			ExistingVersion:  record.Version,
			Link:             link,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("external id lookup failed: %w", err)
	}

	if !schema.DedupEnabled || schema.DedupStrategy != models.DedupExactMatch {
		return &DedupResult{Action: DedupActionCreate}, nil
	}

	return s.resolveExactMatch(ctx, schema, target)
}

// resolveExactMatch compares the configured normalized fields against stored
// records. Multiple matches prefer the candidate most recently synced from the
// same provider, and the ambiguity is reported rather than swallowed.
func (s *deduplicationService) resolveExactMatch(ctx context.Context, schema *models.ConversionSchema, target models.JSONMap) (*DedupResult, error) {
	matchFields, err := schema.MatchFields()
	if err != nil {
		return nil, err
	}
	if len(matchFields) == 0 {
		return &DedupResult{Action: DedupActionCreate}, nil
	}

	filter := make(map[string]interface{}, len(matchFields))
	for _, field := range matchFields {
		value, ok := target[field]
		if !ok {
			// Cannot match on an absent field; treat the record as new.
			return &DedupResult{Action: DedupActionCreate}, nil
		}
		filter[field] = normalizeMatchValue(value)
	}

	candidates, err := s.records.QueryByFields(ctx, schema.TenantID, schema.TargetTypeID, filter)
	if err != nil {
		return nil, fmt.Errorf("exact match query failed: %w", err)
	}
	if len(candidates) == 0 {
		return &DedupResult{Action: DedupActionCreate}, nil
	}

	best := candidates[0]
	bestLink := providerLink(best, schema.Provider)
	for _, candidate := range candidates[1:] {
		link := providerLink(candidate, schema.Provider)
		if moreRecentlySynced(link, bestLink) {
			best, bestLink = candidate, link
		}
	}

	result := &DedupResult{
		Action:           DedupActionUpdate,
		ExistingRecordID: best.ID,
		ExistingVersion:  best.Version,
		Link:             bestLink,
	}
	if len(candidates) > 1 {
		result.Ambiguous = true
		s.logger.WithTenant(schema.TenantID).
			WithField("schema_id", schema.ID).
			WithField("candidates", len(candidates)).
			WithField("chosen_record_id", best.ID).
			Warn("Ambiguous exact match during deduplication")
	}
	return result, nil
}

func providerLink(record *models.InternalRecord, provider string) *models.ExternalLink {
	for i := range record.ExternalLinks {
		if record.ExternalLinks[i].Provider == provider {
			return &record.ExternalLinks[i]
		}
	}
	return nil
}

// moreRecentlySynced reports whether a beats b on last-synced time.
func moreRecentlySynced(a, b *models.ExternalLink) bool {
	if a == nil || a.LastSyncedAt == nil {
		return false
	}
	if b == nil || b.LastSyncedAt == nil {
		return true
	}
	return a.LastSyncedAt.After(*b.LastSyncedAt)
}

// normalizeMatchValue lower-cases and trims string values so matching is
// case-insensitive, e.g. for emails.
func normalizeMatchValue(value interface{}) interface{} {
	if s, ok := value.(string); ok {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return value
}
