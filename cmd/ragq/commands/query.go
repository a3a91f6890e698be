package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragq-go/internal/config"
	"github.com/54b3r/ragq-go/internal/rag"
	"github.com/54b3r/ragq-go/internal/tracing"
)

var errNoQuestion = errors.New("query: a question is required")

// NewQueryCmd constructs the `ragq query` command, which answers one
// question against the knowledge base and prints the answer with its
// sources.
func NewQueryCmd() *cobra.Command {
	var topK int
	var asJSON bool
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from the ingested documents",
		Long: `Answer a question from the ingested documents.

The question is embedded, the closest chunks are retrieved from the vector
store and assembled into a prompt, and the configured model generates the
answer. Every retrieved chunk is listed with its id, distance and a preview.

Examples:
  ragq query "How much money does each player start with in Monopoly?"
  ragq query --top-k 5 "What happens when a player lands on Free Parking?"
  MODEL_PROVIDER=openai ragq query --json "What is a Ticket to Ride route?"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errNoQuestion
			}

			ctx := cmd.Context()
			a := appFrom(ctx)
			cfg := a.cfg
			if cmd.Flags().Changed("top-k") {
				if topK <= 0 {
					return fmt.Errorf("query: --top-k must be positive, got %d", topK)
				}
				cfg.Retrieval.TopK = topK
			}

			flush := setupTracing(cfg, a.log)
			defer flush()

			qs, err := buildQueryStack(ctx, cfg, a.log, stackOptions{noHistory: noHistory})
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer qs.Close()

			ans, err := qs.pipeline.Answer(ctx, question)
			if err != nil {
				a.log.Error("query failed", slog.String("stage", rag.StageOf(err)), slog.Any("error", err))
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), ans)
			}
			return writeAnswer(cmd.OutOrStdout(), ans)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default from config: 15)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer and sources as JSON")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this query in the history database")

	return cmd
}

// setupTracing registers the Langfuse handler when configured and returns
// the flush to defer. It is a no-op otherwise.
func setupTracing(cfg *config.Config, log *slog.Logger) func() {
	handler, flush, ok := tracing.Setup(tracing.Config{
		Host:      cfg.Tracing.Host,
		PublicKey: cfg.Tracing.PublicKey,
		SecretKey: cfg.Tracing.SecretKey,
	})
	if !ok {
		log.Debug("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("langfuse tracing enabled", slog.String("host", cfg.Tracing.Host))
	return flush
}
