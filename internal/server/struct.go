package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragq-go/internal/pipeline"
	"github.com/54b3r/ragq-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed QueryTimeout so slow answers are not cut off mid-write.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// QueryTimeout bounds one POST /api/query from receipt to answer
	// (default: 5m).
	QueryTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on
	// POST /api/query (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus collectors.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics.
	// Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
	// TopK is reported by GET /api/health.
	TopK int
}

// Querier answers one question. *pipeline.Pipeline satisfies it; tests
// inject a fake.
type Querier interface {
	Answer(ctx context.Context, question string) (*pipeline.Answer, error)
}

// HistoryReader lists past answers. *store.SQLiteStore satisfies it.
type HistoryReader interface {
	RecentQueries(ctx context.Context, n int) ([]store.QueryRecord, error)
}

// Server is the HTTP server that exposes the query pipeline.
type Server struct {
	// querier answers POST /api/query.
	querier Querier
	// history serves GET /api/history. Nil disables the endpoint (404).
	history HistoryReader
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Question is the natural language question to answer.
	Question string `json:"question"`
}

// queryResponse is the JSON response for a successful POST /api/query.
type queryResponse struct {
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Sources    []pipeline.Source `json:"sources"`
	Dropped    int               `json:"dropped,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// errorResponse is the JSON body of every failed /api/query.
type errorResponse struct {
	// Error is a human-readable description of the failure.
	Error string `json:"error"`
	// Stage names the pipeline stage that failed, when known.
	Stage string `json:"stage,omitempty"`
}

// historyEntry is one record in the GET /api/history response.
type historyEntry struct {
	ID         int64     `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Sources    []string  `json:"sources"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// healthResponse is the JSON body returned by GET /api/health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	TopK    int    `json:"top_k,omitempty"`
}
