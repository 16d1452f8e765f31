// Package server hosts the dashboard HTTP API and websocket feed.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/server/handler"
	"github.com/alanyoungcy/polyedge/internal/server/middleware"
	"github.com/alanyoungcy/polyedge/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// RateLimit is the per-client request budget per RateWindow. Zero
	// disables rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the route handlers. Oracle may be nil when no AI
// provider is configured; its routes then answer 503. Traders, Archive and
// Metrics are optional.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Markets *handler.MarketHandler
	Oracle  *handler.OracleHandler
	Traders *handler.TraderHandler
	Archive *handler.ArchiveHandler
	Metrics http.Handler
}

// Options carries the optional collaborators of the server.
type Options struct {
	Hub      *ws.Hub
	Limiter  domain.RateLimiter
	Observer middleware.HTTPObserver
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in CORS, logging, rate
// limiting and auth, outermost first.
func NewServer(cfg Config, h Handlers, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", h.Status.GetStatus)

	mux.HandleFunc("GET /api/edges", h.Markets.ListEdges)
	mux.HandleFunc("GET /api/markets", h.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/intent", h.Markets.GetIntent)

	if h.Oracle != nil {
		mux.HandleFunc("POST /api/markets/{id}/consult", h.Oracle.Consult)
		mux.HandleFunc("GET /api/verdicts/recent", h.Oracle.ListRecent)
		mux.HandleFunc("GET /api/verdicts/stream", h.Oracle.Stream)
	} else {
		mux.HandleFunc("POST /api/markets/{id}/consult", unavailable)
		mux.HandleFunc("GET /api/verdicts/recent", unavailable)
		mux.HandleFunc("GET /api/verdicts/stream", unavailable)
	}

	if h.Traders != nil {
		mux.HandleFunc("GET /api/traders", h.Traders.ListTraders)
		mux.HandleFunc("POST /api/traders/{rank}/profile", h.Traders.Profile)
	}

	if h.Archive != nil {
		mux.HandleFunc("GET /api/archive", h.Archive.List)
		mux.HandleFunc("GET /api/archive/{path...}", h.Archive.Download)
	}

	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	if opts.Hub != nil {
		mux.HandleFunc("GET /ws", opts.Hub.HandleWS)
	}

	var root http.Handler = mux
	root = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(root)
	if opts.Limiter != nil && cfg.RateLimit > 0 {
		root = middleware.RateLimit(opts.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(root)
	}
	root = middleware.Logging(logger, opts.Observer)(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           root,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Consultations fan out to several providers.
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func unavailable(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte(`{"error":"oracle not configured"}`))
}
