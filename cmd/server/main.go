package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/api"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/config"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/database"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/profile"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/repository"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/service"
	"github.com/c3po-initiative/dhroxy-frontend-example/pkg/external"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// server migrate [up|down|version]
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		command := "up"
		if len(os.Args) > 2 {
			command = os.Args[2]
		}
		dbConfig := database.ConfigFrom(cfg.Database)
		if err := database.RunMigrationCommand(ctx, dbConfig, cfg.Database.MigrationsPath, command, logger); err != nil {
			logger.WithError(err).Fatal("Migration failed")
		}
		return
	}

	logger.WithField("upstream", cfg.Upstream.BaseURL).Infof("Starting dashboard server on %s:%d", cfg.Server.Host, cfg.Server.Port)

	cache, err := external.NewResponseCache(cfg.Cache, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create response cache")
	}
	defer cache.Close()

	store, err := profile.Open(cfg.Profile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open profile store")
	}
	defer store.Close()

	fhir := external.NewFHIRClient(cfg.Upstream, cache, logger)
	chat := external.NewChatClient(cfg.Chat, logger)
	breakers := []func() external.BreakerState{fhir.BreakerState, chat.BreakerState}

	var healthkit external.HealthKitSource
	if cfg.HealthKit.BaseURL != "" {
		client := external.NewHealthKitClient(cfg.HealthKit, logger)
		healthkit = client
		breakers = append(breakers, client.BreakerState)
	}

	probes := map[string]api.Probe{
		"cache": cache.Ping,
		"profile": func(ctx context.Context) error {
			_, err := store.Keys(ctx)
			return err
		},
	}

	var archive service.ChatArchiver
	if cfg.Database.Enabled {
		dbConfig := database.ConfigFrom(cfg.Database)
		db, err := database.NewConnection(ctx, dbConfig, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		if err := database.Migrate(ctx, dbConfig, cfg.Database.MigrationsPath, logger); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		archive = repository.NewChatArchive(db.Pool, logger)
		probes["database"] = db.Health
	}

	health := service.NewHealthService(fhir, healthkit, store, cfg.HealthKit.WindowDays, logger)
	if err := health.ApplySavedCredentials(ctx); err != nil {
		logger.WithError(err).Warn("Could not load saved credential headers")
	}
	chatService := service.NewChatService(chat, health, store, archive, logger)

	server := api.NewServer(configManager, api.Dependencies{
		Health: health,
		Chat:   chatService,
		Probes: probes,
		Breakers: func() []external.BreakerState {
			states := make([]external.BreakerState, 0, len(breakers))
			for _, state := range breakers {
				states = append(states, state())
			}
			return states
		},
	}, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
