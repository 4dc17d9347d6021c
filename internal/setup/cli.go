package setup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/config"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/profile"
	"github.com/c3po-initiative/dhroxy-frontend-example/pkg/external"
)

// clearValue entered at a header prompt removes the saved header.
const clearValue = "-"

// CLI provides command-line interface for setup operations.
type CLI struct {
	config     *config.LiteConfig
	logger     *logrus.Logger
	reader     *bufio.Reader
	out        io.Writer
	configPath func() (string, error)
	openStore  func() (profile.Store, error)
}

// NewCLI creates a setup CLI reading answers from stdin and writing to stdout.
func NewCLI(cfg *config.LiteConfig, logger *logrus.Logger) *CLI {
	return newCLI(cfg, logger, os.Stdin, os.Stdout)
}

func newCLI(cfg *config.LiteConfig, logger *logrus.Logger, in io.Reader, out io.Writer) *CLI {
	c := &CLI{
		config:     cfg,
		logger:     logger,
		reader:     bufio.NewReader(in),
		out:        out,
		configPath: GetClaudeDesktopConfigPath,
	}
	c.openStore = func() (profile.Store, error) {
		if err := c.config.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return profile.NewSQLiteStore(c.config.ProfileDBPath())
	}
	return c
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "status":
		return c.showStatus(ctx)
	case "validate":
		return c.validate()
	case "headers":
		return c.storeHeaders(ctx)
	case "claude-desktop":
		return c.register(args[1:])
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

func (c *CLI) showHelp() error {
	fmt.Fprint(c.out, `
Dashboard MCP Server Setup

Usage:
  mcp-server setup <command> [options]

Commands:
  status          Show current setup status
  validate        Validate current configuration
  headers         Store the sundhed.dk credential headers in the profile
  claude-desktop  Register the server in Claude Desktop

Examples:
  mcp-server setup headers
  mcp-server setup claude-desktop --binary /usr/local/bin/mcp-server
`)
	return nil
}

func (c *CLI) showStatus(ctx context.Context) error {
	configPath, err := c.configPath()
	if err != nil {
		c.logger.WithError(err).Debug("No desktop client config path")
		configPath = ""
	}
	status, err := GetStatus(ctx, configPath, c.config, c.logger)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Dashboard MCP Server Status")
	fmt.Fprintln(c.out, "===========================")
	fmt.Fprintf(c.out, "Upstream: %s\n", status.UpstreamURL)
	fmt.Fprintf(c.out, "Data directory: %s (%s)\n", status.DataDir, mark(status.DataDirExists, "exists", "will be created on first run"))
	fmt.Fprintf(c.out, "Profile database: %s\n", mark(status.ProfileDBExists, "present", "not created yet"))
	if len(status.StoredHeaders) > 0 {
		fmt.Fprintf(c.out, "Stored headers: %s\n", strings.Join(status.StoredHeaders, ", "))
	} else {
		fmt.Fprintln(c.out, "Stored headers: none")
	}
	if status.ClientConfigPath != "" {
		fmt.Fprintf(c.out, "Claude Desktop: %s (%s)\n", status.ClientConfigPath, mark(status.ClientConfigured, "configured", "not configured"))
	}

	if len(status.Issues) > 0 {
		fmt.Fprintln(c.out, "\nIssues:")
		for _, issue := range status.Issues {
			fmt.Fprintf(c.out, "  ⚠ %s\n", issue)
		}
	}
	return nil
}

func (c *CLI) validate() error {
	valid, issues := Validate(c.config)
	if valid {
		fmt.Fprintln(c.out, "✓ Configuration is valid!")
	} else {
		fmt.Fprintln(c.out, "✗ Configuration has issues:")
	}
	for _, issue := range issues {
		fmt.Fprintf(c.out, "  - %s\n", issue)
	}
	if !valid {
		return fmt.Errorf("configuration is invalid")
	}
	return nil
}

// storeHeaders prompts for each credential header. Enter keeps the saved value
// and "-" removes it.
func (c *CLI) storeHeaders(ctx context.Context) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	settings, err := profile.LoadSettings(ctx, store, c.logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Enter the credential headers. Press Enter to keep the current value, %q to clear it.\n", clearValue)
	updates := map[string]string{}
	for _, name := range external.CredentialHeaders {
		current := settings.AuthHeaders[name]
		fmt.Fprintf(c.out, "%s [%s]: ", name, redact(current))

		line, err := c.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		switch value := strings.TrimSpace(line); value {
		case "":
		case clearValue:
			updates[name] = ""
		default:
			updates[name] = value
		}
		if err == io.EOF {
			break
		}
	}
	fmt.Fprintln(c.out)

	if len(updates) == 0 {
		fmt.Fprintln(c.out, "No changes.")
		return nil
	}
	saved, err := StoreHeaders(ctx, store, updates, c.logger)
	if err != nil {
		return fmt.Errorf("failed to store headers: %w", err)
	}
	fmt.Fprintf(c.out, "✓ Stored %d header(s) in %s\n", len(saved), c.config.ProfileDBPath())
	return nil
}

func (c *CLI) register(args []string) error {
	var binaryPath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--binary", "-b":
			if i+1 < len(args) {
				binaryPath = args[i+1]
				i++
			}
		case "--data-dir", "-d":
			if i+1 < len(args) {
				c.config.DataDir = args[i+1]
				i++
			}
		}
	}
	if binaryPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("could not determine binary path: %w", err)
		}
		binaryPath = execPath
	}

	configPath, err := c.configPath()
	if err != nil {
		return err
	}
	if err := Register(configPath, binaryPath, c.config); err != nil {
		return fmt.Errorf("failed to configure Claude Desktop: %w", err)
	}
	fmt.Fprintf(c.out, "✓ Registered %s in %s\n", ServerName, configPath)
	fmt.Fprintln(c.out, "Restart Claude Desktop to load the new configuration.")
	return nil
}

func mark(ok bool, yes, no string) string {
	if ok {
		return "✓ " + yes
	}
	return "✗ " + no
}

// redact shows only the head of a secret.
func redact(value string) string {
	switch {
	case value == "":
		return "unset"
	case len(value) <= 6:
		return "******"
	default:
		return value[:4] + "…"
	}
}
