package container

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"integration-sync-platform/internal/adapters"
	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/database"
	"integration-sync-platform/internal/handlers"
	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/middleware"
	"integration-sync-platform/internal/models"
	"integration-sync-platform/internal/repositories"
	"integration-sync-platform/internal/server"
	"integration-sync-platform/internal/services"
)

// Module provides dependency injection configuration
var Module = fx.Options(
	// Configuration
	fx.Provide(config.LoadConfig),

	// Logging
	fx.Provide(logger.NewLogger),

	// Database
	fx.Provide(database.NewConnection),
	fx.Provide(func(conn *database.Connection) *gorm.DB {
		return conn.DB
	}),
	fx.Provide(func(conn *database.Connection) (*sql.DB, error) {
		return conn.DB.DB()
	}),
	fx.Provide(database.NewMigrator),
	fx.Provide(database.NewRedisClient),

	// Metrics
	fx.Provide(prometheus.NewRegistry),
	fx.Provide(func(registry *prometheus.Registry) prometheus.Registerer {
		return registry
	}),
	fx.Provide(services.NewSyncMetrics),

	// Adapters
	fx.Provide(adapters.NewConfigTokenProvider),
	fx.Provide(func(tokens *adapters.ConfigTokenProvider) adapters.TokenProvider {
		return tokens
	}),
	fx.Provide(func(tokens adapters.TokenProvider) (*adapters.Registry, error) {
		return adapters.NewRegistry(
			adapters.NewHubSpotAdapter(tokens),
		)
	}),

	// Repositories
	fx.Provide(repositories.NewSyncTaskRepository),
	fx.Provide(repositories.NewSyncExecutionRepository),
	fx.Provide(repositories.NewSyncConflictRepository),
	fx.Provide(repositories.NewConversionSchemaRepository),
	fx.Provide(repositories.NewRecordRepository),
	fx.Provide(repositories.NewIntegrationConnectionRepository),
	fx.Provide(repositories.NewWebhookRegistrationRepository),

	// Services
	fx.Provide(services.NewConversionService),
	fx.Provide(services.NewDeduplicationService),
	fx.Provide(services.NewConflictEngine),
	fx.Provide(services.NewProviderRateLimiter),
	fx.Provide(services.NewTriggerQueue),
	fx.Provide(services.NewRedisEventSink),
	fx.Provide(services.NewRunnerService),
	fx.Provide(services.NewSyncTaskService),
	fx.Provide(services.NewConversionSchemaService),
	fx.Provide(services.NewConnectionService),
	fx.Provide(services.NewWebhookService),
	fx.Provide(services.NewDispatcher),
	fx.Provide(services.NewScheduler),

	// Handlers
	fx.Provide(handlers.NewSyncTaskHandler),
	fx.Provide(handlers.NewConversionSchemaHandler),
	fx.Provide(handlers.NewConnectionHandler),
	fx.Provide(handlers.NewWebhookHandler),
	fx.Provide(handlers.NewHealthHandler),

	// Middleware
	fx.Provide(middleware.NewAuthenticationMiddleware),

	// Server
	fx.Provide(server.NewServer),

	// Models (for validation and serialization)
	fx.Provide(models.NewValidationService),

	// Invoke migrations on startup
	fx.Invoke(func(migrator *database.Migrator) error {
		return migrator.Up()
	}),
)
