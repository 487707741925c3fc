package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"integration-sync-platform/internal/adapters"
	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/models"
	"integration-sync-platform/internal/repositories"
)

// webhookService implements WebhookService
type webhookService struct {
	logger      *logger.Logger
	registry    *adapters.Registry
	taskService SyncTaskService
	metrics     *SyncMetrics

	registrations repositories.WebhookRegistrationRepository
	connections   repositories.IntegrationConnectionRepository
	tasks         repositories.SyncTaskRepository

	secretLength int
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	logger *logger.Logger,
	cfg *config.Config,
	registry *adapters.Registry,
	taskService SyncTaskService,
	metrics *SyncMetrics,
	registrations repositories.WebhookRegistrationRepository,
	connections repositories.IntegrationConnectionRepository,
	tasks repositories.SyncTaskRepository,
) WebhookService {
	length := cfg.Webhook.SecretLength
	if length < 16 {
		length = 16
	}
	return &webhookService{
		logger:        logger,
		registry:      registry,
		taskService:   taskService,
		metrics:       metrics,
		registrations: registrations,
		connections:   connections,
		tasks:         tasks,
		secretLength:  length,
	}
}

// RegisterWebhook creates a webhook registration for the connection. The
// secret is generated server-side and only ever returned through this call's
// registration row; it is excluded from all later reads.
func (s *webhookService) RegisterWebhook(ctx context.Context, tenantID, connectionID string) (*models.WebhookRegistration, error) {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if conn.TenantID != tenantID {
		return nil, ErrForbidden
	}
	if _, err := s.registry.Get(conn.Provider); err != nil {
		return nil, err
	}

	if existing, err := s.registrations.GetByConnection(ctx, connectionID); err == nil && existing != nil {
		return nil, fmt.Errorf("connection %s already has a webhook registration", connectionID)
	}

	secret, err := s.generateSecret()
	if err != nil {
		return nil, err
	}

	registration := &models.WebhookRegistration{
		TenantID:     tenantID,
		ConnectionID: connectionID,
		Provider:     conn.Provider,
		Secret:       secret,
		// Provider-side registration id; providers that echo it on delivery
		// allow exact registration matching instead of secret probing.
		ExternalWebhookID: uuid.NewString(),
	}
	if err := s.registrations.Create(ctx, registration); err != nil {
		return nil, fmt.Errorf("failed to create webhook registration: %w", err)
	}

	s.logger.WithTenant(tenantID).WithField("provider", conn.Provider).
		WithField("connection_id", connectionID).Info("Webhook registered")
	return registration, nil
}

// RotateSecret replaces the registration's signing secret. In-flight
// deliveries signed with the old secret will fail verification and be dropped;
// providers retry them signed with the new secret.
func (s *webhookService) RotateSecret(ctx context.Context, tenantID, registrationID string) (*models.WebhookRegistration, error) {
	registration, err := s.registrations.GetByID(ctx, registrationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if registration.TenantID != tenantID {
		return nil, ErrForbidden
	}

	secret, err := s.generateSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	registration.Secret = secret
	registration.RotatedAt = &now
	if err := s.registrations.Update(ctx, registration); err != nil {
		return nil, fmt.Errorf("failed to rotate webhook secret: %w", err)
	}

	s.logger.WithTenant(tenantID).WithField("provider", registration.Provider).
		WithField("registration_id", registrationID).Info("Webhook secret rotated")
	return registration, nil
}

// HandleInbound verifies and routes one delivery. The returned ids are the
// tasks whose triggers were accepted or parked. A delivery that fails
// verification or parses to nothing is dropped with a nil error, so callers
// can acknowledge it and stop provider retries.
func (s *webhookService) HandleInbound(ctx context.Context, provider string, payload []byte, headers http.Header) ([]string, error) {
	s.metrics.WebhooksReceived.WithLabelValues(provider).Inc()

	adapter, err := s.registry.Get(provider)
	if err != nil {
		s.drop(provider, "unknown_provider")
		return nil, nil
	}

	registration := s.verifiedRegistration(ctx, adapter, provider, payload, headers)
	if registration == nil {
		s.drop(provider, "signature")
		return nil, nil
	}

	event := adapter.ParseWebhook(payload, headers)
	if event == nil {
		s.drop(provider, "unparseable")
		return nil, nil
	}

	tasks, err := s.tasks.GetByConnection(ctx, registration.ConnectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks for connection %s: %w", registration.ConnectionID, err)
	}

	var triggered []string
	for _, task := range tasks {
		if !task.Enabled || !task.Pulls() {
			continue
		}

		result, err := s.taskService.TriggerTask(ctx, task.TenantID, task.ID, models.TriggerWebhook)
		if err != nil {
			// Paused or disabled tasks just skip the event.
			if errors.Is(err, ErrTaskPaused) || errors.Is(err, ErrTaskDisabled) {
				continue
			}
			return triggered, err
		}
		if result.Accepted {
			triggered = append(triggered, task.ID)
		}
	}

	s.logger.WithProvider(provider).
		WithField("event_type", event.EventType).
		WithField("external_id", event.ExternalID).
		WithField("triggered_tasks", len(triggered)).
		Info("Webhook delivery processed")
	return triggered, nil
}

// verifiedRegistration finds the registration whose secret validates the
// delivery. Providers do not identify the registration in the payload, so each
// candidate secret for the provider is tried.
func (s *webhookService) verifiedRegistration(ctx context.Context, adapter adapters.Adapter, provider string, payload []byte, headers http.Header) *models.WebhookRegistration {
	registrations, err := s.registrations.GetByProvider(ctx, provider)
	if err != nil {
		s.logger.WithProvider(provider).WithError(err).Error("Failed to load webhook registrations")
		return nil
	}

	for _, registration := range registrations {
		if adapter.VerifyWebhookSignature(payload, headers, registration.Secret) {
			return registration
		}
	}
	return nil
}

func (s *webhookService) drop(provider, reason string) {
	s.metrics.WebhooksDropped.WithLabelValues(provider, reason).Inc()
	s.logger.WithProvider(provider).WithField("reason", reason).Warn("Webhook delivery dropped")
}

func (s *webhookService) generateSecret() (string, error) {
	buf := make([]byte, s.secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
