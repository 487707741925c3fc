package models

import (
	"time"

	"gorm.io/gorm"
)

// Schedule kinds recognised by the scheduler
const (
	ScheduleManual   = "manual"
	ScheduleInterval = "interval"
	ScheduleCron     = "cron"
)

// Sync directions
const (
	DirectionPull          = "pull"
	DirectionPush          = "push"
	DirectionBidirectional = "bidirectional"
)

// Sync modes
const (
	SyncModeFull        = "full"
	SyncModeIncremental = "incremental"
)

// Task lifecycle states
const (
	TaskStatusIdle    = "idle"
	TaskStatusRunning = "running"
	TaskStatusPaused  = "paused"
	TaskStatusError   = "error"
)

// Overlap policies for triggers arriving while an execution is running
const (
	OverlapReject  = "reject"
	OverlapEnqueue = "enqueue"
)

// SyncTask represents a standing configuration for syncing one integration connection
type SyncTask struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID     string `json:"tenant_id" gorm:"type:uuid;not null;index" validate:"required"`
	ConnectionID string `json:"connection_id" gorm:"type:uuid;not null;index" validate:"required"`
	SchemaID     string `json:"schema_id" gorm:"type:uuid;not null" validate:"required"`
	Name         string `json:"name" gorm:"not null" validate:"required,min=1,max=255"`
	Enabled      bool   `json:"enabled" gorm:"default:true"`

	ScheduleType string `json:"schedule_type" gorm:"not null" validate:"required,oneof=manual interval cron"`
	// ScheduleExpr is a cron expression for cron schedules or a duration in
	// seconds for interval schedules; empty for manual.
	ScheduleExpr string `json:"schedule_expr,omitempty"`

	Direction     string `json:"direction" gorm:"not null" validate:"required,oneof=pull push bidirectional"`
	SyncMode      string `json:"sync_mode" gorm:"not null" validate:"required,oneof=full incremental"`
	OverlapPolicy string `json:"overlap_policy" gorm:"default:reject" validate:"omitempty,oneof=reject enqueue"`
	// ConflictPolicy decides true conflicts: last_write_wins, source_priority or manual
	ConflictPolicy string `json:"conflict_policy" gorm:"default:last_write_wins" validate:"omitempty,oneof=last_write_wins source_priority manual"`

	Status   string     `json:"status" gorm:"default:idle"`
	PausedAt *time.Time `json:"paused_at,omitempty"`

	CreatedBy string         `json:"created_by" gorm:"type:uuid"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Connection *IntegrationConnection `json:"connection,omitempty" gorm:"foreignKey:ConnectionID"`
	Schema     *ConversionSchema      `json:"schema,omitempty" gorm:"foreignKey:SchemaID"`
	Executions []SyncExecution        `json:"executions,omitempty" gorm:"foreignKey:TaskID"`
}

// TableName returns the table name for SyncTask
func (SyncTask) TableName() string {
	return "sync_tasks"
}

// Pulls reports whether the task fetches records from the external system.
func (t *SyncTask) Pulls() bool {
	return t.Direction == DirectionPull || t.Direction == DirectionBidirectional
}

// Pushes reports whether the task submits internal changes to the external system.
func (t *SyncTask) Pushes() bool {
	return t.Direction == DirectionPush || t.Direction == DirectionBidirectional
}
