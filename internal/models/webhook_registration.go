package models

import (
	"time"

	"gorm.io/gorm"
)

// WebhookRegistration records a webhook registered with a provider for one
// integration connection. The secret signs inbound deliveries.
type WebhookRegistration struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID     string `json:"tenant_id" gorm:"type:uuid;not null;index" validate:"required"`
	ConnectionID string `json:"connection_id" gorm:"type:uuid;not null;index" validate:"required"`
	Provider     string `json:"provider" gorm:"not null;index" validate:"required"`

	Secret            string `json:"-" gorm:"not null"`
	ExternalWebhookID string `json:"external_webhook_id,omitempty"`

	RotatedAt *time.Time     `json:"rotated_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Connection *IntegrationConnection `json:"connection,omitempty" gorm:"foreignKey:ConnectionID"`
}

// TableName returns the table name for WebhookRegistration
func (WebhookRegistration) TableName() string {
	return "webhook_registrations"
}
