package database

import (
	"integration-sync-platform/internal/models"
)

// Migrator handles database migrations
type Migrator struct {
	db *Connection
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *Connection) *Migrator {
	return &Migrator{db: db}
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	return m.db.AutoMigrate(
		&models.IntegrationConnection{},
		&models.ConversionSchema{},
		&models.SyncTask{},
		&models.SyncExecution{},
		&models.SyncConflict{},
		&models.InternalRecord{},
		&models.ExternalLink{},
		&models.WebhookRegistration{},
	)
}

// Down rolls back all migrations (for testing purposes)
func (m *Migrator) Down() error {
	return m.db.Migrator().DropTable(
		&models.WebhookRegistration{},
		&models.ExternalLink{},
		&models.InternalRecord{},
		&models.SyncConflict{},
		&models.SyncExecution{},
		&models.SyncTask{},
		&models.ConversionSchema{},
		&models.IntegrationConnection{},
	)
}
