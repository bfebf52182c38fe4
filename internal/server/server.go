// Package server sets up the executor service's HTTP server, router, and
// route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and
// routes. The engine arrives fully assembled from main; which sandbox
// backend it carries (docker or process) is not this package's business.
//
// ROUTE STRUCTURE:
//
//	POST /execute   → run code, answer with the canonical result
//	POST /validate  → syntax-check code without running it
//	GET  /health    → liveness probe for dispatchers and monitors
//	GET  /info      → service identity, ceilings, available libraries
//
// One deployed service serves one language; the four routes above are the
// whole wire contract a dispatch router relies on.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/execbox/internal/handler"
	"github.com/sakif/execbox/internal/middleware"
)

// Config holds the HTTP listener settings and the identity of the language
// this service executes.
type Config struct {
	Host             string
	Port             int
	Language         string
	MaxExecutionTime int // seconds; bounds how long a response may take
}

// Server represents the executor service's HTTP server.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New creates a Server with all routes wired to the given engine.
func New(cfg Config, engine handler.Engine, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(engine)
	return s
}

// setupRoutes configures middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
// RequestID must come first so the logger can annotate every line with it;
// Recoverer sits before the handlers so a panic in one request becomes a
// 500 instead of taking the whole service down mid-drain.
func (s *Server) setupRoutes(engine handler.Engine) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	executeHandler := handler.NewExecuteHandler(engine, s.config.Language, s.logger)
	validateHandler := handler.NewValidateHandler(engine, s.config.Language, s.logger)
	healthHandler := handler.NewHealthHandler(engine, s.config.Language, s.logger)

	s.router.Post("/execute", executeHandler.HandleExecute)
	s.router.Post("/validate", validateHandler.HandleValidate)
	s.router.Get("/health", healthHandler.HandleHealth)
	s.router.Get("/info", healthHandler.HandleInfo)
}

// Router exposes the assembled handler, used by tests to drive the full
// middleware-and-routing stack through httptest without opening a port.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// On SIGINT/SIGTERM the listener closes first, then in-flight executions get
// 30 seconds to finish. Sandbox teardown is owned per-request by the
// supervisor, so draining requests is all shutdown has to do — there is no
// shared execution state to flush.
func (s *Server) Start() error {
	// A request may lawfully hold its connection for the full execution
	// ceiling plus a compile phase, so the write timeout must outlast it.
	// 15 seconds there would cut off every long-running program at the knees.
	writeTimeout := time.Duration(s.config.MaxExecutionTime+30) * time.Second

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("executor service starting",
			slog.String("language", s.config.Language),
			slog.String("addr", srv.Addr),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
