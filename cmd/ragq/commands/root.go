// Package commands defines all Cobra CLI commands for the ragq binary.
package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragq-go/internal/audit"
	"github.com/54b3r/ragq-go/internal/config"
	"github.com/54b3r/ragq-go/internal/logging"
)

// app carries what PersistentPreRunE resolved for the running command.
type app struct {
	cfg        *config.Config
	configPath string
	log        *slog.Logger
}

type appKey struct{}

// appFrom returns the state stored by the root command, or defaults when a
// subcommand runs without it (tests that call RunE directly).
func appFrom(ctx context.Context) *app {
	if a, ok := ctx.Value(appKey{}).(*app); ok {
		return a
	}
	return &app{cfg: config.Default(), log: logging.FromContext(ctx)}
}

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "ragq",
		Short: "ragq answers questions from your documents with an LLM",
		Long: `ragq is a local-first retrieval-augmented question answering tool.

Ingest PDFs, text files and web pages into a vector store, then ask
questions: the most relevant chunks are retrieved, assembled into a prompt
and answered by the configured model, with every source listed.

Settings come from a YAML config file (~/.ragq/config.yaml, ./ragq.yaml or
--config) and environment variables, which always win.
See 'ragq --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := config.Load(configPath, logging.New("info", "json"))
			if err != nil {
				return err
			}
			log := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			ctx := logging.WithLogger(cmd.Context(), log)
			ctx = context.WithValue(ctx, appKey{}, &app{cfg: cfg, configPath: path, log: log})
			cmd.SetContext(ctx)

			audit.LogCommandStart(ctx, log, cmd.Name(), path, cfg.AuditEntries())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragq/config.yaml)")

	root.AddCommand(
		NewQueryCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewHistoryCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
