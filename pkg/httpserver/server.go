// Package httpserver serves the engine's read-only operational surface:
// liveness/readiness probes, Prometheus metrics, and a JSON snapshot of
// the most recently detected opportunities and portfolio state (§9
// ambient stack). It never accepts a write — every mutating action goes
// through the CLI (cmd/*) or the orchestrator itself.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/pkg/types"
)

// OpportunitiesProvider supplies the orchestrator's most recent
// detection-cycle result for the read-only /opportunities endpoint.
type OpportunitiesProvider interface {
	Opportunities() []*detector.Opportunity
}

// PortfolioProvider supplies the current portfolio snapshot for the
// read-only /portfolio endpoint.
type PortfolioProvider interface {
	State() types.PortfolioState
}

// Server provides HTTP endpoints for metrics, health checks, and a
// read-only view of engine state.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker HealthChecker
}

// HealthChecker is the subset of healthprobe.HealthChecker the server
// depends on.
type HealthChecker interface {
	Health() http.HandlerFunc
	Ready() http.HandlerFunc
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker HealthChecker
	Opportunities OpportunitiesProvider
	Portfolio     PortfolioProvider
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", cfg.HealthChecker.Health())
	r.Get("/readyz", cfg.HealthChecker.Ready())

	if cfg.Opportunities != nil {
		r.Get("/opportunities", handleOpportunities(cfg.Opportunities, cfg.Logger))
	}
	if cfg.Portfolio != nil {
		r.Get("/portfolio", handlePortfolio(cfg.Portfolio, cfg.Logger))
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

func handleOpportunities(p OpportunitiesProvider, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(p.Opportunities()); err != nil {
			logger.Error("encode-opportunities-response-failed", zap.Error(err))
		}
	}
}

func handlePortfolio(p PortfolioProvider, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(p.State()); err != nil {
			logger.Error("encode-portfolio-response-failed", zap.Error(err))
		}
	}
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
