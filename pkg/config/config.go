package config

import (
	"os"
	"strconv"
	"time"
)

// Application settings
type Config struct {
	Logging  LoggingConfig
	Backfill BackfillConfig
	External ExternalConfig
	Storage  StorageConfig
}

type BackfillConfig struct {
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	PollInterval       time.Duration
	PollTimeout        time.Duration
	RequestTimeout     time.Duration
	RateLimitPerSecond int
}

type ExternalConfig struct {
	InsightsAPIURL string
	AccessToken    string
}

type StorageConfig struct {
	DSN       string
	BatchSize int
}

// Logging settings
type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	config := &Config{
		Backfill: BackfillConfig{
			MaxAttempts:        getIntEnv("MAX_ATTEMPTS", 5),
			RetryBaseDelay:     getDurationEnv("RETRY_BASE_DELAY", "2s"),
			PollInterval:       getDurationEnv("POLL_INTERVAL", "5s"),
			PollTimeout:        getDurationEnv("POLL_TIMEOUT", "10m"),
			RequestTimeout:     getDurationEnv("REQUEST_TIMEOUT", "30s"),
			RateLimitPerSecond: getIntEnv("RATE_LIMIT_PER_SECOND", 10),
		},
		External: ExternalConfig{
			InsightsAPIURL: getEnv("INSIGHTS_API_URL", ""),
			AccessToken:    getEnv("INSIGHTS_ACCESS_TOKEN", ""),
		},
		Storage: StorageConfig{
			DSN:       getEnv("DATABASE_DSN", ""),
			BatchSize: getIntEnv("UPSERT_BATCH_SIZE", 500),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
