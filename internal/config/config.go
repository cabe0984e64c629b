// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string

	// RedisURL enables the remote session backend when non-empty.
	RedisURL       string
	SessionBackend string // "redis" or "fs"; redis still mirrors to fs
	SessionsDir    string
	DocumentsDir   string
	SchemasDir     string
	ContractsDB    string

	TTL     TTLConfig
	Cleanup CleanupConfig
}

// TTLConfig holds the per-state session lifetimes.
type TTLConfig struct {
	Draft  time.Duration
	Filled time.Duration
	Signed time.Duration
}

// CleanupConfig controls the background cleanup worker.
type CleanupConfig struct {
	Interval       time.Duration
	AbandonedGrace time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", "redis")),
		SessionsDir:    getEnv("SESSIONS_DIR", "./data/sessions"),
		DocumentsDir:   getEnv("DOCUMENTS_DIR", "./data/documents"),
		SchemasDir:     getEnv("SCHEMAS_DIR", "./schemas"),
		ContractsDB:    getEnv("CONTRACTS_DB_PATH", "./data/contracts.db"),
		TTL: TTLConfig{
			Draft:  time.Duration(getEnvInt("DRAFT_TTL_HOURS", 24)) * time.Hour,
			Filled: time.Duration(getEnvInt("FILLED_TTL_HOURS", 72)) * time.Hour,
			Signed: time.Duration(getEnvInt("SIGNED_TTL_DAYS", 365)) * 24 * time.Hour,
		},
		Cleanup: CleanupConfig{
			Interval:       time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 60)) * time.Minute,
			AbandonedGrace: time.Duration(getEnvInt("ABANDONED_GRACE_MINUTES", 5)) * time.Minute,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.SessionBackend != "redis" && c.SessionBackend != "fs" {
		return fmt.Errorf("SESSION_BACKEND must be \"redis\" or \"fs\", got %q", c.SessionBackend)
	}
	if c.SessionBackend == "redis" && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when SESSION_BACKEND=redis")
	}
	if c.SessionsDir == "" {
		return fmt.Errorf("SESSIONS_DIR cannot be empty")
	}
	if c.DocumentsDir == "" {
		return fmt.Errorf("DOCUMENTS_DIR cannot be empty")
	}
	if c.SchemasDir == "" {
		return fmt.Errorf("SCHEMAS_DIR cannot be empty")
	}
	if c.ContractsDB == "" {
		return fmt.Errorf("CONTRACTS_DB_PATH cannot be empty")
	}
	if c.TTL.Draft <= 0 || c.TTL.Filled <= 0 || c.TTL.Signed <= 0 {
		return fmt.Errorf("session TTLs must be positive")
	}
	if c.Cleanup.Interval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL_MINUTES must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
