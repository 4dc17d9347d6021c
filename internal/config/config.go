package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/dhroxy-dashboard/")

	v.SetEnvPrefix("DHROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "45s")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.tls_enabled", false)

	// Upstream FHIR proxy defaults
	v.SetDefault("upstream.base_url", "http://localhost:8080/fhir")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.rate_limit", 10)
	v.SetDefault("upstream.max_concurrency", 6)
	v.SetDefault("upstream.use_transaction_bundle", false)
	v.SetDefault("upstream.lab_count", 1000)
	v.SetDefault("upstream.lab_since", "2015-01-01")

	// HealthKit bridge defaults
	v.SetDefault("healthkit.base_url", "http://localhost:8080")
	v.SetDefault("healthkit.timeout", "15s")
	v.SetDefault("healthkit.window_days", 7)

	// Chat defaults
	v.SetDefault("chat.endpoint", "https://api.anthropic.com/v1/messages")
	v.SetDefault("chat.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("chat.max_tokens", 1000)
	v.SetDefault("chat.api_key", "")
	v.SetDefault("chat.api_version", "2023-06-01")
	v.SetDefault("chat.timeout", "60s")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "5m")
	v.SetDefault("cache.memory_items", 256)
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Profile store defaults
	v.SetDefault("profile.backend", "sqlite")
	v.SetDefault("profile.sqlite_path", "./data/profile.db")
	v.SetDefault("profile.postgres_url", "")
	v.SetDefault("profile.redis_url", "")

	// Database defaults (chat archive)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "dhroxy_dashboard")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "./migrations")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "dhroxy-dashboard")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.transport_type", "stdio")
	v.SetDefault("mcp.request_timeout", "30s")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetUpstreamConfig returns the FHIR proxy configuration
func (m *Manager) GetUpstreamConfig() *domain.UpstreamConfig {
	return &m.config.Upstream
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return ValidateConfig(m.config)
}

// ValidateConfig checks a loaded configuration.
func ValidateConfig(config *domain.Config) error {
	if config == nil {
		return fmt.Errorf("configuration is not loaded")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base URL is required")
	}
	if _, err := url.Parse(config.Upstream.BaseURL); err != nil {
		return fmt.Errorf("invalid upstream base URL: %w", err)
	}
	if config.Upstream.MaxConcurrency <= 0 {
		return fmt.Errorf("upstream max concurrency must be positive: %d", config.Upstream.MaxConcurrency)
	}
	if config.HealthKit.WindowDays <= 0 {
		return fmt.Errorf("healthkit window days must be positive: %d", config.HealthKit.WindowDays)
	}

	switch config.Profile.Backend {
	case "sqlite":
		if config.Profile.SQLitePath == "" {
			return fmt.Errorf("profile sqlite path is required")
		}
	case "postgres":
		if config.Profile.PostgresURL == "" {
			return fmt.Errorf("profile postgres URL is required")
		}
	case "redis":
		if config.Profile.RedisURL == "" {
			return fmt.Errorf("profile redis URL is required")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid profile backend: %s", config.Profile.Backend)
	}

	if config.Database.Enabled {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}
