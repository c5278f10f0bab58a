// Package api exposes the verification decision engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-identity/kestrel/internal/domain"
	"github.com/opensource-identity/kestrel/internal/engine"
	"github.com/opensource-identity/kestrel/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, eng *engine.Engine, repo domain.Repository, cache domain.Cache, bus domain.EventBus, ruleEngine *rules.Engine, version string) *Server {
	handler := NewHandler(eng, repo, cache, bus, ruleEngine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Verification evaluation
		r.Post("/evaluate", handler.Evaluate)

		// Decision retrieval
		r.Get("/decisions/{id}", handler.GetDecision)
		r.Get("/users/{userId}/decisions", handler.ListUserDecisions)

		// Fraud alerts
		r.Get("/alerts", handler.ListAlerts)

		// Audit ledger
		r.Get("/audit/{userId}/records", handler.ListAuditRecords)
		r.Get("/audit/{userId}/verify", handler.VerifyAuditChain)

		// Policy management
		r.Get("/policies", handler.ListPolicies)
		r.Get("/policies/{industry}", handler.GetPolicy)
		r.Put("/policies/{industry}", handler.PutPolicy)

		// Alert rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
