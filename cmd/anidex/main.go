package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/asakaze/anidex/internal/api"
	"github.com/asakaze/anidex/internal/config"
	"github.com/asakaze/anidex/internal/indexer"
	"github.com/asakaze/anidex/internal/models"
	"github.com/asakaze/anidex/internal/resolver"
	"github.com/asakaze/anidex/internal/scheduler"
	"github.com/asakaze/anidex/internal/services/anidb"
	"github.com/asakaze/anidex/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting anidex")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Persist credentials alongside the session key
	settings, err := db.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	settings.Username = cfg.AniDBUsername
	settings.Password = cfg.AniDBPassword
	if err := db.SaveSettings(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	// 5. Load ignore list
	ignore, err := utils.LoadIgnoreList(cfg.IgnoreFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load ignore list, continuing without it")
		ignore = &utils.IgnoreList{}
	} else {
		logger.Info("Ignore list loaded")
	}

	// 6. Initialize the metadata-service client
	client, err := anidb.NewClient(cfg, db, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize AniDB client: %w", err)
	}
	defer client.Close()
	logger.Info("AniDB client initialized")

	// 7. Initialize resolver and indexer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := resolver.NewResolver(db, client, logger)
	ix := indexer.NewIndexer(db, res, ignore, logger)
	runner := indexer.NewRunner(ctx, ix, cfg.MediaDir, logger)
	logger.Info("Resolver and indexer initialized")

	// 8. Initialize scheduler
	sched := scheduler.NewScheduler(runner, cfg.ScanSchedule, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 9. Initialize HTTP server
	server := api.NewServer(cfg, db, runner, logger)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 10. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("anidex is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("anidex stopped")
	return nil
}
