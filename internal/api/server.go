// Package api provides the HTTP API server for the training platform.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/correlator-io/trainhub/internal/api/middleware"
	"github.com/correlator-io/trainhub/internal/experiments"
	"github.com/correlator-io/trainhub/internal/features"
	"github.com/correlator-io/trainhub/internal/hpo"
	"github.com/correlator-io/trainhub/internal/jobs"
	"github.com/correlator-io/trainhub/internal/objectstore"
	"github.com/correlator-io/trainhub/internal/registry"
)

// Server represents the HTTP API server for the training platform, exposing
// the Job Orchestrator, Model Registry, Feature Store, Experiment Tracker,
// and HPO Study Engine over JSON (spec §6).
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	config     *ServerConfig
	startTime  time.Time

	orchestrator *jobs.Orchestrator
	registry     *registry.Registry
	features     *features.Store
	objectStore  *objectstore.Gateway
	experiments  *experiments.Tracker
	hpo          *hpo.Engine
}

// NewServer creates a new HTTP server instance with structured logging and
// middleware stack.
//
// Dependencies are injected explicitly rather than being part of
// ServerConfig, separating configuration (what) from dependencies (how),
// following the teacher's composition-root pattern. orchestrator and
// registry are required (panics if nil); features, experiments, and hpo are
// optional (nil disables their endpoints, logged as degraded-mode at
// startup).
func NewServer(
	cfg *ServerConfig,
	orchestrator *jobs.Orchestrator,
	reg *registry.Registry,
	featureStore *features.Store,
	objectStore *objectstore.Gateway,
	tracker *experiments.Tracker,
	engine *hpo.Engine,
) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if orchestrator == nil || reg == nil {
		logger.Error("orchestrator and registry are required - cannot start server without core functionality")
		panic("api: orchestrator and registry cannot be nil - this indicates a configuration error")
	}

	mux := http.NewServeMux()

	server := &Server{
		logger:       logger,
		config:       cfg,
		orchestrator: orchestrator,
		registry:     reg,
		features:     featureStore,
		objectStore:  objectStore,
		experiments:  tracker,
		hpo:          engine,
	}

	server.setupRoutes(mux)

	if featureStore == nil {
		logger.Warn("feature store not configured - /features endpoints disabled")
	}

	if tracker == nil {
		logger.Warn("experiment tracker not configured - /experiments endpoints disabled")
	}

	if engine == nil {
		logger.Warn("hpo engine not configured - /hpo endpoints disabled")
	}

	// Middleware chain, applied top-to-bottom:
	//   1. CorrelationID - generate correlation ID for all responses
	//   2. Recovery - catch panics in all downstream middleware
	//   3. RequestLogger - structured access logging
	//   4. CORS - lightweight header manipulation
	// Auth/rate-limiting are dropped: spec §1 treats the authentication
	// layer as an external collaborator, out of scope for this service.
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	server.httpServer = httpServer

	return server
}

// Start starts the HTTP server and blocks until shutdown. It handles
// graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting training platform API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server and closes dependencies.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("initiating server shutdown", slog.Duration("shutdown_timeout", s.config.ShutdownTimeout))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown failed", slog.String("error", err.Error()))

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.orchestrator.Stop()

	s.logger.Info("server shutdown completed successfully")

	return nil
}
