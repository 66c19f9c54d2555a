package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/asakaze/anidex/internal/api/handlers"
	"github.com/asakaze/anidex/internal/api/middleware"
	"github.com/asakaze/anidex/internal/config"
	"github.com/asakaze/anidex/internal/indexer"
	"github.com/asakaze/anidex/internal/models"
	"github.com/sirupsen/logrus"
)

// Server exposes the cached catalog over HTTP. It never resolves anything
// itself; all endpoints read the local store, except the scan trigger.
type Server struct {
	server *http.Server
	db     *models.Database
	runner *indexer.Runner
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *models.Database, runner *indexer.Runner, logger *logrus.Logger) *Server {
	s := &Server{
		db:     db,
		runner: runner,
		logger: logger,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	healthHandler := handlers.NewHealthHandler(s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	statusHandler := handlers.NewStatusHandler(s.db, s.runner, s.logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	filesHandler := handlers.NewFilesHandler(s.db, s.logger)
	mux.HandleFunc("/api/files", filesHandler.ServeHTTP)

	animeHandler := handlers.NewAnimeHandler(s.db, s.logger)
	mux.HandleFunc("/api/anime/", animeHandler.ServeHTTP)

	scanHandler := handlers.NewScanHandler(s.runner, s.logger)
	mux.HandleFunc("/api/scan", scanHandler.ServeHTTP)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
