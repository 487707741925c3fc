package models

import (
	"time"

	"gorm.io/datatypes"
)

// Execution states
const (
	ExecutionStatusRunning   = "running"
	ExecutionStatusSucceeded = "succeeded"
	ExecutionStatusFailed    = "failed"
	ExecutionStatusPartial   = "partial"
)

// Trigger sources
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerWebhook  = "webhook"
)

// ExecutionStats holds per-execution record counters. Counters only ever
// increase while an execution is running.
type ExecutionStats struct {
	RecordsFetched    int `json:"records_fetched" gorm:"default:0"`
	RecordsConverted  int `json:"records_converted" gorm:"default:0"`
	RecordsCreated    int `json:"records_created" gorm:"default:0"`
	RecordsUpdated    int `json:"records_updated" gorm:"default:0"`
	RecordsSkipped    int `json:"records_skipped" gorm:"default:0"`
	RecordsPushed     int `json:"records_pushed" gorm:"default:0"`
	ConflictsDetected int `json:"conflicts_detected" gorm:"default:0"`
	ConflictsResolved int `json:"conflicts_resolved" gorm:"default:0"`
	Errors            int `json:"errors" gorm:"default:0"`
}

// RecordError describes a non-fatal per-record failure kept for operator visibility
type RecordError struct {
	ExternalID string `json:"external_id,omitempty"`
	RecordID   string `json:"record_id,omitempty"`
	Stage      string `json:"stage"` // conversion, deduplication, persistence, push
	Message    string `json:"message"`
}

// SyncExecution represents one run attempt of a SyncTask
type SyncExecution struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TaskID      string `json:"task_id" gorm:"type:uuid;not null;index" validate:"required"`
	TenantID    string `json:"tenant_id" gorm:"type:uuid;not null;index" validate:"required"`
	Status      string `json:"status" gorm:"not null;default:running"`
	TriggeredBy string `json:"triggered_by" gorm:"not null" validate:"required,oneof=manual schedule webhook"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Stats ExecutionStats `json:"stats" gorm:"embedded;embeddedPrefix:stat_"`

	// SyncToken is the incremental continuation cursor. It is only advanced
	// after a page's records are durably persisted.
	SyncToken string `json:"sync_token,omitempty"`

	Error        string         `json:"error,omitempty"`
	RecordErrors datatypes.JSON `json:"record_errors,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Task      *SyncTask      `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	Conflicts []SyncConflict `json:"conflicts,omitempty" gorm:"foreignKey:ExecutionID"`
}

// TableName returns the table name for SyncExecution
func (SyncExecution) TableName() string {
	return "sync_executions"
}
