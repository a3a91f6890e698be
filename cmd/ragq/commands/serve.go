package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragq-go/internal/logging"
	"github.com/54b3r/ragq-go/internal/pipeline"
	"github.com/54b3r/ragq-go/internal/server"
)

// NewServeCmd constructs the `ragq serve` command, which exposes the query
// pipeline over HTTP.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragq HTTP API",
		Long: `Start the ragq HTTP API.

Endpoints:
  POST /api/query     {"question": "..."} -> answer and sources
  GET  /api/history   most recent answers (?limit=N)
  GET  /api/health    liveness
  GET  /api/ready     readiness of the vector store and model backends
  GET  /metrics       Prometheus metrics

When RAGQ_API_KEY is set, /api/query and /api/history require
"Authorization: Bearer <key>".

Examples:
  ragq serve
  ragq serve --port 9090
  RAGQ_API_KEY=secret MODEL_PROVIDER=azure ragq serve --host 0.0.0.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := appFrom(ctx)
			cfg := a.cfg
			log := a.log
			ctx = logging.WithLogger(ctx, log)

			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			log.Info("serve starting",
				slog.String("provider", cfg.Model.Provider),
				slog.String("store", cfg.Store.Backend),
			)

			flush := setupTracing(cfg, log)
			defer flush()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			qs, err := buildQueryStack(ctx, cfg, log, stackOptions{metrics: pipeline.NewMetrics(reg)})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer qs.Close()

			var opts []server.Option
			if qs.history != nil {
				opts = append(opts, server.WithHistory(qs.history))
			}

			srv, err := server.New(qs.pipeline, &server.Config{
				Host:            cfg.Server.Host,
				Port:            cfg.Server.Port,
				QueryTimeout:    cfg.Server.QueryTimeout,
				Logger:          log,
				Pingers:         buildPingers(cfg, qs.store),
				RateLimit:       cfg.Server.RateLimit,
				RateBurst:       cfg.Server.RateBurst,
				APIKey:          cfg.Server.APIKey,
				MetricsRegistry: reg,
				MetricsGatherer: reg,
				TopK:            qs.pipeline.TopK(),
			}, opts...)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
