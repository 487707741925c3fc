package models

import (
	"time"

	"gorm.io/gorm"
)

// IntegrationConnection references one configured link to an external system.
// Credentials are never stored here; CredentialsRef points at the secret the
// token provider resolves on demand.
type IntegrationConnection struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID string `json:"tenant_id" gorm:"type:uuid;not null;index" validate:"required"`
	Provider string `json:"provider" gorm:"not null;index" validate:"required"`
	Name     string `json:"name" gorm:"not null" validate:"required,min=1,max=255"`

	BaseURL        string `json:"base_url,omitempty" validate:"omitempty,url"`
	CredentialsRef string `json:"credentials_ref" gorm:"not null" validate:"required"`

	IsActive  bool           `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for IntegrationConnection
func (IntegrationConnection) TableName() string {
	return "integration_connections"
}
