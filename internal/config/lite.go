// Package config provides configuration management for the dashboard services.
// This file contains the lightweight configuration for the standalone MCP binary.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the profile database and exports

	// Upstream FHIR proxy
	UpstreamURL     string        // Base URL of the FHIR proxy
	UpstreamTimeout time.Duration // Per-request timeout

	// HealthKit bridge
	HealthKitURL string
	WindowDays   int // Nights covered by the sleep summary

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Transport settings
	Transport string // Transport type: stdio

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".dhroxy-dashboard")

	return &LiteConfig{
		DataDir:         dataDir,
		UpstreamURL:     "http://localhost:8080/fhir",
		UpstreamTimeout: 30 * time.Second,
		HealthKitURL:    "http://localhost:8080",
		WindowDays:      7,
		CacheMaxItems:   256,
		CacheTTL:        5 * time.Minute,
		Transport:       "stdio",
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("DHROXY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("DHROXY_UPSTREAM_URL"); v != "" {
		cfg.UpstreamURL = v
	}
	if v := os.Getenv("DHROXY_UPSTREAM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.UpstreamTimeout = d
		}
	}

	if v := os.Getenv("DHROXY_HEALTHKIT_URL"); v != "" {
		cfg.HealthKitURL = v
	}
	if v := os.Getenv("DHROXY_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WindowDays = n
		}
	}

	// Cache settings
	if v := os.Getenv("DHROXY_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("DHROXY_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("DHROXY_TRANSPORT"); v != "" {
		cfg.Transport = v
	}

	// Logging
	if v := os.Getenv("DHROXY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DHROXY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// ProfileDBPath returns the path to the profile SQLite database.
func (c *LiteConfig) ProfileDBPath() string {
	return filepath.Join(c.DataDir, "profile.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// LoggingConfig returns the logging section the lite binary runs with. Output goes to
// stderr because stdout carries the MCP stream.
func (c *LiteConfig) LoggingConfig() domain.LoggingConfig {
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}

// UpstreamConfig adapts the lite settings to the FHIR client configuration.
func (c *LiteConfig) UpstreamConfig() domain.UpstreamConfig {
	return domain.UpstreamConfig{
		BaseURL:        c.UpstreamURL,
		Timeout:        c.UpstreamTimeout,
		RateLimit:      10,
		MaxConcurrency: 6,
		LabCount:       1000,
		LabSince:       "2015-01-01",
	}
}
