package repositories

import (
	"context"

	"integration-sync-platform/internal/database"
	"integration-sync-platform/internal/models"
)

// webhookRegistrationRepository implements WebhookRegistrationRepository
type webhookRegistrationRepository struct {
	db *database.Connection
}

// NewWebhookRegistrationRepository creates a new webhook registration repository
func NewWebhookRegistrationRepository(db *database.Connection) WebhookRegistrationRepository {
	return &webhookRegistrationRepository{db: db}
}

// Create creates a new webhook registration
func (r *webhookRegistrationRepository) Create(ctx context.Context, reg *models.WebhookRegistration) error {
	return r.db.WithContext(ctx).Create(reg).Error
}

// GetByID retrieves a webhook registration by ID
func (r *webhookRegistrationRepository) GetByID(ctx context.Context, id string) (*models.WebhookRegistration, error) {
	var reg models.WebhookRegistration
	err := r.db.WithContext(ctx).First(&reg, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetByConnection retrieves the webhook registration for a connection
func (r *webhookRegistrationRepository) GetByConnection(ctx context.Context, connectionID string) (*models.WebhookRegistration, error) {
	var reg models.WebhookRegistration
	err := r.db.WithContext(ctx).First(&reg, "connection_id = ?", connectionID).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetByProvider retrieves all webhook registrations for a provider
func (r *webhookRegistrationRepository) GetByProvider(ctx context.Context, provider string) ([]*models.WebhookRegistration, error) {
	var regs []*models.WebhookRegistration
	err := r.db.WithContext(ctx).
		Where("provider = ?", provider).
		Find(&regs).Error
	return regs, err
}

// Update updates an existing webhook registration
func (r *webhookRegistrationRepository) Update(ctx context.Context, reg *models.WebhookRegistration) error {
	return r.db.WithContext(ctx).Save(reg).Error
}
