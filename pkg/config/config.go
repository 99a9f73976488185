package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	Audit       AuditConfig
	Invitations InvitationsConfig
	Metrics     MetricsConfig
	App         AppConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig holds Redis configuration. An empty host disables the query
// cache.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuditConfig holds event journal configuration
type AuditConfig struct {
	Dir           string
	BatchSize     int
	FlushInterval time.Duration
}

// InvitationsConfig holds invitation service configuration
type InvitationsConfig struct {
	CleanupInterval time.Duration
	CacheTTL        time.Duration
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Addr string
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Environment string
	LogLevel    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "invitations"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Audit: AuditConfig{
			Dir:           getEnv("AUDIT_DIR", "/var/lib/invite_manager/audit"),
			BatchSize:     getEnvAsInt("AUDIT_BATCH_SIZE", 100),
			FlushInterval: getEnvAsDuration("AUDIT_FLUSH_INTERVAL", 5*time.Second),
		},
		Invitations: InvitationsConfig{
			CleanupInterval: getEnvAsDuration("INVITATIONS_CLEANUP_INTERVAL", 1*time.Hour),
			CacheTTL:        getEnvAsDuration("INVITATIONS_CACHE_TTL", 30*time.Second),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "production"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
	}

	if cfg.Database.Host == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
