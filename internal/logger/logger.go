package logger

import (
	"integration-sync-platform/internal/config"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new structured logger instance
func NewLogger(cfg *config.Config) *Logger {
	log := logrus.New()

	// Set log level
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return &Logger{Logger: log}
}

// WithTenant adds tenant context to log entries
func (l *Logger) WithTenant(tenantID string) *logrus.Entry {
	return l.WithField("tenant_id", tenantID)
}

// WithTask adds sync task context to log entries
func (l *Logger) WithTask(taskID string) *logrus.Entry {
	return l.WithField("task_id", taskID)
}

// WithExecution adds sync execution context to log entries
func (l *Logger) WithExecution(executionID string) *logrus.Entry {
	return l.WithField("execution_id", executionID)
}

// WithProvider adds provider context to log entries
func (l *Logger) WithProvider(provider string) *logrus.Entry {
	return l.WithField("provider", provider)
}
