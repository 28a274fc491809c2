package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	UnipileAPIKey  string
	UnipileBaseURL string

	NumWorkers int

	// Event processing retry policy: bounded attempts, exponential
	// growth from the base delay.
	MaxEventAttempts int
	RetryBaseDelay   time.Duration

	// Outbound provider call policy.
	ProviderTimeout      time.Duration
	ProviderRetryMax     int
	ProviderRetryWaitMin time.Duration
	ProviderRetryWaitMax time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		UnipileAPIKey:  getEnv("UNIPILE_API_KEY", ""),
		UnipileBaseURL: getEnv("UNIPILE_BASE_URL", "https://api10.unipile.com:14090/api/v1"),

		NumWorkers: getEnvInt("NUM_WORKERS", 20),

		MaxEventAttempts: getEnvInt("MAX_EVENT_ATTEMPTS", 5),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 2*time.Second),

		ProviderTimeout:      getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		ProviderRetryMax:     getEnvInt("PROVIDER_RETRY_MAX", 4),
		ProviderRetryWaitMin: getEnvDuration("PROVIDER_RETRY_WAIT_MIN", time.Second),
		ProviderRetryWaitMax: getEnvDuration("PROVIDER_RETRY_WAIT_MAX", 30*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.UnipileAPIKey == "" {
		return nil, fmt.Errorf("UNIPILE_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
