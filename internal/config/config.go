// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the serve command needs.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	Port          string
	LogLevel      string
	AuditDir      string
	CacheTTL      time.Duration
}

// Load reads configuration from the environment, picking up a local .env
// file when present. DATABASE_URL is required; Redis is optional and
// without REDIS_ADDR the rule cache is disabled.
func Load() (*Config, error) {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cacheTTL := 5 * time.Minute
	if raw := os.Getenv("RULE_CACHE_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid RULE_CACHE_TTL %q: %w", raw, err)
		}
		cacheTTL = parsed
	}

	return &Config{
		DatabaseURL:   databaseURL,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AuditDir:      getEnv("AUDIT_DIR", "audit"),
		CacheTTL:      cacheTTL,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
