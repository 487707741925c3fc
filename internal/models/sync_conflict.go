package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Conflict resolutions
const (
	ResolutionInternalWins  = "internal_wins"
	ResolutionExternalWins  = "external_wins"
	ResolutionMerged        = "merged"
	ResolutionManualPending = "manual_pending"
)

// Conflict resolution policies configured on a task
const (
	ConflictPolicyLastWriteWins  = "last_write_wins"
	ConflictPolicySourcePriority = "source_priority"
	ConflictPolicyManual         = "manual"
)

// SyncConflict records a detected collision between an external change and the
// internal record. Rows are never deleted; they form the audit trail.
type SyncConflict struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TaskID      string `json:"task_id" gorm:"type:uuid;not null;index" validate:"required"`
	ExecutionID string `json:"execution_id" gorm:"type:uuid;not null;index" validate:"required"`
	TenantID    string `json:"tenant_id" gorm:"type:uuid;not null;index" validate:"required"`
	RecordID    string `json:"record_id" gorm:"type:uuid;not null;index" validate:"required"`
	Provider    string `json:"provider" gorm:"not null"`
	ExternalID  string `json:"external_id" gorm:"not null"`

	ConflictingFields  datatypes.JSON `json:"conflicting_fields" gorm:"type:jsonb"`
	InternalSnapshot   JSONMap        `json:"internal_snapshot" gorm:"type:jsonb"`
	ExternalSnapshot   JSONMap        `json:"external_snapshot" gorm:"type:jsonb"`
	LastSyncedSnapshot JSONMap        `json:"last_synced_snapshot" gorm:"type:jsonb"`

	Resolution string     `json:"resolution" gorm:"not null" validate:"required,oneof=internal_wins external_wins merged manual_pending"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty" gorm:"type:uuid"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Task      *SyncTask      `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	Execution *SyncExecution `json:"execution,omitempty" gorm:"foreignKey:ExecutionID"`
}

// TableName returns the table name for SyncConflict
func (SyncConflict) TableName() string {
	return "sync_conflicts"
}

// Pending reports whether the conflict still awaits a human decision.
func (c *SyncConflict) Pending() bool {
	return c.Resolution == ResolutionManualPending
}

// Fields decodes the conflicting field name list.
func (c *SyncConflict) Fields() ([]string, error) {
	if len(c.ConflictingFields) == 0 {
		return nil, nil
	}
	var fields []string
	if err := json.Unmarshal(c.ConflictingFields, &fields); err != nil {
		return nil, fmt.Errorf("invalid conflicting fields on conflict %s: %w", c.ID, err)
	}
	return fields, nil
}
