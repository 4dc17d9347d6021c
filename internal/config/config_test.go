package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	t.Setenv("DHROXY_UPSTREAM_BASE_URL", "")

	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080/fhir", cfg.Upstream.BaseURL)
	assert.Equal(t, 1000, cfg.Upstream.LabCount)
	assert.Equal(t, "2015-01-01", cfg.Upstream.LabSince)
	assert.Equal(t, 7, cfg.HealthKit.WindowDays)
	assert.Equal(t, 1000, cfg.Chat.MaxTokens)
	assert.Equal(t, "sqlite", cfg.Profile.Backend)
	assert.NoError(t, m.Validate())
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DHROXY_UPSTREAM_BASE_URL", "http://proxy.internal/fhir")
	t.Setenv("DHROXY_UPSTREAM_MAX_CONCURRENCY", "2")
	t.Setenv("DHROXY_PROFILE_BACKEND", "memory")

	m, err := NewManager()
	require.NoError(t, err)

	assert.Equal(t, "http://proxy.internal/fhir", m.GetUpstreamConfig().BaseURL)
	assert.Equal(t, 2, m.GetUpstreamConfig().MaxConcurrency)
	assert.Equal(t, "memory", m.GetConfig().Profile.Backend)
}

func validConfig() *domain.Config {
	return &domain.Config{
		Server:    domain.ServerConfig{Port: 3001},
		Upstream:  domain.UpstreamConfig{BaseURL: "http://localhost:8080/fhir", MaxConcurrency: 4},
		HealthKit: domain.HealthKitConfig{WindowDays: 7},
		Profile:   domain.ProfileConfig{Backend: "memory"},
		Logging:   domain.LoggingConfig{Level: "info"},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *domain.Config)
		wantErr string
	}{
		{"valid", func(c *domain.Config) {}, ""},
		{"bad port", func(c *domain.Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"no upstream", func(c *domain.Config) { c.Upstream.BaseURL = "" }, "upstream base URL is required"},
		{"no concurrency", func(c *domain.Config) { c.Upstream.MaxConcurrency = 0 }, "max concurrency"},
		{"no window", func(c *domain.Config) { c.HealthKit.WindowDays = 0 }, "window days"},
		{"unknown backend", func(c *domain.Config) { c.Profile.Backend = "etcd" }, "invalid profile backend"},
		{"sqlite without path", func(c *domain.Config) { c.Profile.Backend = "sqlite" }, "sqlite path"},
		{"postgres without url", func(c *domain.Config) { c.Profile.Backend = "postgres" }, "postgres URL"},
		{"redis without url", func(c *domain.Config) { c.Profile.Backend = "redis" }, "redis URL"},
		{"database enabled without host", func(c *domain.Config) {
			c.Database.Enabled = true
		}, "database host is required"},
		{"bad log level", func(c *domain.Config) { c.Logging.Level = "chatty" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(domain.LoggingConfig{Level: "debug", Format: "text", Output: "discard"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, isText := logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)

	logger = NewLogger(domain.LoggingConfig{Level: "nonsense", Format: "json"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}
