// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Price cache backends
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	DBPath   string // Ledger database file
	LogLevel string
	Port     int
	DevMode  bool

	AlphaVantageAPIKey     string
	AlphaVantageDailyLimit int
	PriceTimeout           time.Duration

	Cache     CacheConfig
	Backup    BackupConfig
	Schedules ScheduleConfig
}

// CacheConfig selects and configures the price cache
type CacheConfig struct {
	Backend       string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// BackupConfig configures ledger backups to an S3-compatible bucket
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// ScheduleConfig holds cron schedules (with a leading seconds field) for background jobs
type ScheduleConfig struct {
	Backup         string
	CacheCleanup   string
	WALCheckpoint  string
	IntegrityCheck string
	BudgetReset    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		DBPath:   getEnv("DB_PATH", filepath.Join(absDataDir, "ledger.db")),
		Port:     getEnvAsInt("PORT", 5000),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		AlphaVantageAPIKey:     getEnv("ALPHA_VANTAGE_API_KEY", ""),
		AlphaVantageDailyLimit: getEnvAsInt("ALPHA_VANTAGE_DAILY_LIMIT", 25),
		PriceTimeout:           getEnvAsDuration("PRICE_TIMEOUT", 10*time.Second),

		Cache: CacheConfig{
			Backend:       strings.ToLower(getEnv("PRICE_CACHE_BACKEND", CacheBackendSQLite)),
			TTL:           getEnvAsDuration("PRICE_CACHE_TTL", 15*time.Minute),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},

		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},

		Schedules: ScheduleConfig{
			Backup:         getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			CacheCleanup:   getEnv("CACHE_CLEANUP_SCHEDULE", "@hourly"),
			WALCheckpoint:  getEnv("WAL_CHECKPOINT_SCHEDULE", "0 */15 * * * *"),
			IntegrityCheck: getEnv("INTEGRITY_CHECK_SCHEDULE", "0 30 2 * * *"),
			BudgetReset:    getEnv("ALPHA_VANTAGE_RESET_SCHEDULE", "0 0 0 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.AlphaVantageAPIKey == "" {
		return fmt.Errorf("ALPHA_VANTAGE_API_KEY is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.AlphaVantageDailyLimit <= 0 {
		return fmt.Errorf("ALPHA_VANTAGE_DAILY_LIMIT must be positive, got %d", c.AlphaVantageDailyLimit)
	}
	if c.PriceTimeout <= 0 {
		return fmt.Errorf("PRICE_TIMEOUT must be positive, got %s", c.PriceTimeout)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}

	switch c.Cache.Backend {
	case CacheBackendSQLite, CacheBackendNone:
	case CacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis price cache")
		}
	default:
		return fmt.Errorf("PRICE_CACHE_BACKEND must be one of sqlite, redis, none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend != CacheBackendNone && c.Cache.TTL <= 0 {
		return fmt.Errorf("PRICE_CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}

	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_BUCKET is required when BACKUP_ENABLED is set")
	}

	return nil
}

// ClientDataPath returns the price cache database file
func (c *Config) ClientDataPath() string {
	return filepath.Join(c.DataDir, "client_data.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15m") or plain seconds ("900")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
