package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pricevault/tierkit/internal/domain"
	"github.com/pricevault/tierkit/internal/engine"
	"github.com/pricevault/tierkit/internal/stats"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, evaluator *engine.Evaluator, statsSvc *stats.Service, version string, mode domain.AuditMode) *Server {
	handler := NewHandler(repo, cache, bus, evaluator, statsSvc, version, mode)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for the embedded admin and storefront widget
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no shop required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (shop required)
	router.Route("/", func(r chi.Router) {
		r.Use(ShopMiddleware)

		// Cart evaluation
		r.Post("/evaluate", handler.Evaluate)

		// Evaluation audit retrieval
		r.Get("/evaluations/{id}", handler.GetEvaluation)

		// Discount configuration management
		r.Get("/discounts", handler.ListDiscounts)
		r.Post("/discounts", handler.SaveDiscount)
		r.Get("/discounts/{productId}", handler.GetDiscount)
		r.Put("/discounts/{productId}", handler.UpdateDiscount)
		r.Delete("/discounts/{productId}", handler.DeleteDiscount)

		// Widget settings management
		r.Get("/widgets", handler.ListWidgets)
		r.Post("/widgets", handler.SaveWidget)
		r.Get("/widgets/{productId}", handler.GetWidget)
		r.Put("/widgets/{productId}", handler.UpdateWidget)
		r.Delete("/widgets/{productId}", handler.DeleteWidget)

		// Storefront widget payload
		r.Get("/storefront/widget", handler.GetStorefrontWidget)

		// Evaluation stats
		r.Get("/stats", handler.Stats)
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
