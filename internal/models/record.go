package models

import (
	"time"
)

// InternalRecord is a tenant-scoped document in the central store. Writes use
// optimistic concurrency on Version.
type InternalRecord struct {
	ID       string  `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID string  `json:"tenant_id" gorm:"type:uuid;not null;index" validate:"required"`
	TypeID   string  `json:"type_id" gorm:"not null;index" validate:"required"`
	Fields   JSONMap `json:"fields" gorm:"type:jsonb;not null"`
	Version  int     `json:"version" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	ExternalLinks []ExternalLink `json:"external_links,omitempty" gorm:"foreignKey:RecordID"`
}

// TableName returns the table name for InternalRecord
func (InternalRecord) TableName() string {
	return "internal_records"
}

// ExternalLink ties an internal record to its counterpart in one external
// system. The (tenant, provider, external id) tuple is the deduplication key;
// LastSyncedSnapshot is the three-way merge base for conflict detection.
type ExternalLink struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	RecordID   string `json:"record_id" gorm:"type:uuid;not null;index" validate:"required"`
	TenantID   string `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_external_key" validate:"required"`
	Provider   string `json:"provider" gorm:"not null;uniqueIndex:idx_external_key" validate:"required"`
	ExternalID string `json:"external_id" gorm:"not null;uniqueIndex:idx_external_key" validate:"required"`

	LastSyncedAt       *time.Time `json:"last_synced_at,omitempty"`
	LastSyncedSnapshot JSONMap    `json:"last_synced_snapshot,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for ExternalLink
func (ExternalLink) TableName() string {
	return "external_links"
}
