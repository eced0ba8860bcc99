// Package api serves the status endpoints of a live paper trading
// session: health, portfolio snapshots and Prometheus metrics. All
// endpoints are read-only; trading state is mutated only by the loop
// that owns it.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/northbeck/papertrade/internal/api/response"
	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/metrics"
	"github.com/northbeck/papertrade/internal/portfolio"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Source provides snapshots of the live trading state. Implementations
// must be safe for concurrent use; handlers call them from request
// goroutines while the trading loop keeps running.
type Source interface {
	Stats() portfolio.Stats
	Positions() []portfolio.Position
	Trades() []portfolio.Trade
}

// Dependencies holds everything the handlers need.
type Dependencies struct {
	Source  Source
	Metrics *metrics.Registry // nil disables /metrics
}

// Config holds server configuration.
type Config struct {
	Host string
	Port int
}

// Server is the HTTP status server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	deps       Dependencies
}

// NewServer creates a new HTTP server and registers its routes.
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("api: nil source")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()

	var handler http.Handler = mux
	handler = metrics.LoggingMiddleware(logger)(handler)
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
		deps:   deps,
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/portfolio", s.handlePortfolio)
	s.mux.HandleFunc("/api/positions", s.handlePositions)
	s.mux.HandleFunc("/api/trades", s.handleTrades)
	if s.deps.Metrics != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, s.deps.Source.Stats())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions := s.deps.Source.Positions()
	if positions == nil {
		// Encode as [] rather than null.
		positions = []portfolio.Position{}
	}
	response.JSON(w, http.StatusOK, positions)
}

// handleTrades returns closed trades in chronological order. The
// optional limit query parameter keeps only the most recent N.
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades := s.deps.Source.Trades()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrBadRequest, fmt.Errorf("limit %q must be a positive integer", raw)))
			return
		}
		if limit < len(trades) {
			trades = trades[len(trades)-limit:]
		}
	}

	if trades == nil {
		trades = []portfolio.Trade{}
	}
	response.JSON(w, http.StatusOK, trades)
}
