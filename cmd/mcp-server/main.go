// Package main is the standalone MCP entry point. It needs no external databases:
// the profile lives in SQLite under the data directory and responses are cached in memory.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/config"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/mcp"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/profile"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/service"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/setup"
	"github.com/c3po-initiative/dhroxy-frontend-example/pkg/external"
)

func main() {
	cfg := config.LoadLiteConfig()
	logger := config.NewLogger(cfg.LoggingConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Check for setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.NewCLI(cfg, logger).Run(ctx, os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	logger.WithFields(logrus.Fields{
		"transport": cfg.Transport,
		"data_dir":  cfg.DataDir,
		"upstream":  cfg.UpstreamURL,
	}).Info("Starting dashboard MCP server")

	if err := cfg.EnsureDataDir(); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}

	store, err := profile.Open(domain.ProfileConfig{Backend: profile.BackendSQLite, SQLitePath: cfg.ProfileDBPath()})
	if err != nil {
		logger.WithError(err).Fatal("Failed to open profile store")
	}
	defer store.Close()

	cache, err := external.NewResponseCache(domain.CacheConfig{
		Enabled:     true,
		DefaultTTL:  cfg.CacheTTL,
		MemoryItems: cfg.CacheMaxItems,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create response cache")
	}
	defer cache.Close()

	fhir := external.NewFHIRClient(cfg.UpstreamConfig(), cache, logger)
	var healthkit external.HealthKitSource
	if cfg.HealthKitURL != "" {
		healthkit = external.NewHealthKitClient(domain.HealthKitConfig{
			BaseURL:    cfg.HealthKitURL,
			Timeout:    cfg.UpstreamTimeout,
			WindowDays: cfg.WindowDays,
		}, logger)
	}
	health := service.NewHealthService(fhir, healthkit, store, cfg.WindowDays, logger)
	if err := health.ApplySavedCredentials(ctx); err != nil {
		logger.WithError(err).Warn("Could not load saved credential headers")
	}

	server, err := mcp.NewServer(store, mcp.WithLogger(logger), mcp.WithObservationSource(health))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("MCP server failed")
	}

	logger.Info("Dashboard MCP server stopped")
}
