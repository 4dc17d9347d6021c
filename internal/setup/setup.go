// Package setup provides setup and configuration utilities for the dashboard MCP binary.
package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/config"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/profile"
	"github.com/c3po-initiative/dhroxy-frontend-example/pkg/external"
)

// ServerName is the key the binary is registered under in the desktop client config.
const ServerName = "dhroxy-dashboard"

// ClaudeDesktopConfig represents the Claude Desktop configuration file structure.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// GetClaudeDesktopConfigPath returns the path to Claude Desktop's config file.
func GetClaudeDesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClaudeDesktopConfig reads the client config. A missing file reads as empty.
func LoadClaudeDesktopConfig(configPath string) (*ClaudeDesktopConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &ClaudeDesktopConfig{MCPServers: map[string]MCPServerConfig{}}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg ClaudeDesktopConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]MCPServerConfig{}
	}
	return &cfg, nil
}

// SaveClaudeDesktopConfig writes the client config, creating its directory.
func SaveClaudeDesktopConfig(configPath string, cfg *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the dashboard entry in the client config at configPath.
// The entry carries the data directory and upstream URL the binary should run with.
func Register(configPath, binaryPath string, cfg *config.LiteConfig) error {
	if binaryPath == "" {
		return fmt.Errorf("binary path is required")
	}
	client, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return err
	}
	client.MCPServers[ServerName] = MCPServerConfig{
		Command: binaryPath,
		Env: map[string]string{
			"DHROXY_DATA_DIR":     cfg.DataDir,
			"DHROXY_UPSTREAM_URL": cfg.UpstreamURL,
		},
	}
	return SaveClaudeDesktopConfig(configPath, client)
}

// Status represents the current setup status.
type Status struct {
	ClientConfigPath string
	ClientConfigured bool
	ServerPath       string
	DataDir          string
	DataDirExists    bool
	ProfileDBExists  bool
	UpstreamURL      string
	StoredHeaders    []string
	Issues           []string
}

// GetStatus inspects the client config, the data directory and, when it exists,
// the profile database. It never creates anything.
func GetStatus(ctx context.Context, configPath string, cfg *config.LiteConfig, logger *logrus.Logger) (*Status, error) {
	status := &Status{
		ClientConfigPath: configPath,
		DataDir:          cfg.DataDir,
		UpstreamURL:      cfg.UpstreamURL,
		Issues:           []string{},
	}

	if configPath != "" {
		client, err := LoadClaudeDesktopConfig(configPath)
		if err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Could not load client config: %v", err))
		} else if entry, ok := client.MCPServers[ServerName]; ok {
			status.ClientConfigured = true
			status.ServerPath = entry.Command
			if _, err := os.Stat(entry.Command); os.IsNotExist(err) {
				status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found at: %s", entry.Command))
			}
		}
	}

	if _, err := os.Stat(cfg.DataDir); err == nil {
		status.DataDirExists = true
	}
	if _, err := os.Stat(cfg.ProfileDBPath()); err != nil {
		return status, nil
	}
	status.ProfileDBExists = true

	store, err := profile.NewSQLiteStore(cfg.ProfileDBPath())
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not open profile database: %v", err))
		return status, nil
	}
	defer store.Close()

	settings, err := profile.LoadSettings(ctx, store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	for name := range settings.AuthHeaders {
		status.StoredHeaders = append(status.StoredHeaders, name)
	}
	sort.Strings(status.StoredHeaders)
	return status, nil
}

// Validate checks cfg. Issues prefixed with "warning:" do not make it invalid.
func Validate(cfg *config.LiteConfig) (bool, []string) {
	var issues []string

	u, err := url.Parse(cfg.UpstreamURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		issues = append(issues, fmt.Sprintf("upstream URL must be an absolute http(s) URL: %q", cfg.UpstreamURL))
	}
	if cfg.HealthKitURL != "" {
		if u, err := url.Parse(cfg.HealthKitURL); err != nil || u.Host == "" {
			issues = append(issues, fmt.Sprintf("HealthKit URL is not an absolute URL: %q", cfg.HealthKitURL))
		}
	}
	if cfg.UpstreamTimeout <= 0 {
		issues = append(issues, "upstream timeout must be positive")
	}
	if cfg.WindowDays < 1 || cfg.WindowDays > 90 {
		issues = append(issues, fmt.Sprintf("window days must be between 1 and 90, got %d", cfg.WindowDays))
	}
	if cfg.Transport != "stdio" {
		issues = append(issues, fmt.Sprintf("unsupported transport: %s", cfg.Transport))
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		issues = append(issues, fmt.Sprintf("invalid log level: %s", cfg.LogLevel))
	}
	if _, err := os.Stat(cfg.DataDir); os.IsNotExist(err) {
		issues = append(issues, fmt.Sprintf("warning: data directory will be created on first run: %s", cfg.DataDir))
	}

	return allWarnings(issues), issues
}

func allWarnings(issues []string) bool {
	for _, issue := range issues {
		if !strings.HasPrefix(issue, "warning:") {
			return false
		}
	}
	return true
}

// StoreHeaders merges headers into the saved credential headers. Empty values
// remove a header; legacy names are renamed to the vendor names.
func StoreHeaders(ctx context.Context, store profile.Store, headers map[string]string, logger *logrus.Logger) (map[string]string, error) {
	settings, err := profile.LoadSettings(ctx, store, logger)
	if err != nil {
		return nil, err
	}
	for name, value := range headers {
		if renamed, ok := external.LegacyHeaderNames[name]; ok {
			name = renamed
		}
		if strings.TrimSpace(value) == "" {
			delete(settings.AuthHeaders, name)
			continue
		}
		settings.AuthHeaders[name] = value
	}
	settings.AuthHeaders, _ = external.MigrateHeaders(settings.AuthHeaders)

	if err := profile.SaveSettings(ctx, store, settings); err != nil {
		return nil, err
	}
	return settings.AuthHeaders, nil
}
