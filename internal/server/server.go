// Package server implements the HTTP server that exposes the ragq query
// pipeline via a small JSON API, plus health, readiness and Prometheus
// endpoints. The server is started by the `ragq serve` CLI command.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/ragq-go/internal/logging"
)

const (
	defaultHost         = "127.0.0.1"
	defaultPort         = 8080
	defaultQueryTimeout = 5 * time.Minute
)

// Option configures optional Server collaborators.
type Option func(*Server)

// WithHistory enables GET /api/history backed by h.
func WithHistory(h HistoryReader) Option {
	return func(s *Server) { s.history = h }
}

// New constructs a Server from the provided querier and config.
func New(q Querier, cfg *Config, opts ...Option) (*Server, error) {
	if q == nil {
		return nil, fmt.Errorf("server: querier must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = cfg.QueryTimeout + 30*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New("info", "json")
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		querier: q,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: API key not set, authentication disabled",
			slog.String("hint", "set RAGQ_API_KEY to protect /api/query and /api/history"),
		)
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stop

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      requestLogger(s.log, s.routes(rl)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// routes builds the request multiplexer. Protected routes sit behind bearer
// auth; POST /api/query is additionally rate limited per client IP.
func (s *Server) routes(rl *rateLimiter) http.Handler {
	mux := http.NewServeMux()

	query := rl.middleware(http.HandlerFunc(s.handleQuery))
	mux.Handle("POST /api/query", s.instrument("query", authMiddleware(s.cfg.APIKey, query)))
	mux.Handle("GET /api/history", s.instrument("history", authMiddleware(s.cfg.APIKey, http.HandlerFunc(s.handleHistory))))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	return mux
}

// Handler returns the fully wrapped HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
