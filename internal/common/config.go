package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Extraction ExtractionConfig
	Storage    StorageConfig
	Batch      BatchConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ExtractionConfig holds configuration for the remote extraction service.
type ExtractionConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RetryAttempts  uint
	RetryBaseDelay time.Duration
}

// StorageConfig holds object-storage configuration for document images.
// An empty Endpoint disables uploads entirely.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// BatchConfig holds batch orchestration configuration.
type BatchConfig struct {
	InterItemDelay time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Extraction: ExtractionConfig{
			BaseURL:        getEnv("EXTRACTION_BASE_URL", ""),
			APIKey:         getEnv("EXTRACTION_API_KEY", ""),
			Timeout:        getEnvAsDuration("EXTRACTION_TIMEOUT", 45*time.Second),
			RetryAttempts:  getEnvAsAttempts("EXTRACTION_RETRY_ATTEMPTS", 1),
			RetryBaseDelay: getEnvAsDuration("EXTRACTION_RETRY_BASE_DELAY", 2*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", "docuscan-documents"),
			Region:    getEnv("S3_REGION", ""),
			UseSSL:    getEnvAsBool("S3_USE_SSL", false),
		},
		Batch: BatchConfig{
			InterItemDelay: getEnvAsDuration("BATCH_ITEM_DELAY", 500*time.Millisecond),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsAttempts parses a retry attempt count. Values below 1 make no
// sense as an attempt budget and fall back to the default.
func getEnvAsAttempts(key string, defaultValue uint) uint {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal >= 1 {
			return uint(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Extraction.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "EXTRACTION_BASE_URL is required", ErrInvalidInput)
	}
	if c.Extraction.RetryAttempts == 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACTION_RETRY_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	if c.Batch.InterItemDelay < 0 {
		return NewAppError("CONFIG_ERROR", "BATCH_ITEM_DELAY must not be negative", ErrInvalidInput)
	}
	return nil
}
