package config

import (
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	// ConnectionTokens maps a connection's credentials_ref to an access token.
	// Stands in for the external credential store in single-node deployments.
	ConnectionTokens map[string]string `mapstructure:"connection_tokens"`
}

// SyncConfig holds sync runner configuration
type SyncConfig struct {
	PageSize              int     `mapstructure:"page_size"`
	MaxRetries            int     `mapstructure:"max_retries"`
	InitialBackoffMillis  int     `mapstructure:"initial_backoff_millis"`
	MaxBackoffMillis      int     `mapstructure:"max_backoff_millis"`
	BackoffFactor         float64 `mapstructure:"backoff_factor"`
	AdapterTimeoutSeconds int     `mapstructure:"adapter_timeout_seconds"`
	Workers               int     `mapstructure:"workers"`
	QueueSize             int     `mapstructure:"queue_size"`
}

// SchedulerConfig holds schedule dispatch configuration
type SchedulerConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	PollIntervalSeconds int  `mapstructure:"poll_interval_seconds"`
}

// RateLimitConfig holds the per-tenant provider rate budget configuration
type RateLimitConfig struct {
	// ConcurrentPerProvider bounds in-flight adapter calls per (tenant, provider).
	ConcurrentPerProvider int `mapstructure:"concurrent_per_provider"`
}

// WebhookConfig holds webhook management configuration
type WebhookConfig struct {
	SecretLength int `mapstructure:"secret_length"`
}

// LoadConfig loads configuration from environment and config files
func LoadConfig() (*Config, error) {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("sync.page_size", 100)
	viper.SetDefault("sync.max_retries", 3)
	viper.SetDefault("sync.initial_backoff_millis", 500)
	viper.SetDefault("sync.max_backoff_millis", 30000)
	viper.SetDefault("sync.backoff_factor", 2.0)
	viper.SetDefault("sync.adapter_timeout_seconds", 30)
	viper.SetDefault("sync.workers", 4)
	viper.SetDefault("sync.queue_size", 1000)
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.poll_interval_seconds", 15)
	viper.SetDefault("rate_limit.concurrent_per_provider", 2)
	viper.SetDefault("webhook.secret_length", 32)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
