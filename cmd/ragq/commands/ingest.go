package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragq-go/internal/embedder"
	"github.com/54b3r/ragq-go/internal/ingestion"
	"github.com/54b3r/ragq-go/internal/rag"
)

// NewIngestCmd constructs the `ragq ingest` command, which loads documents,
// splits them into chunks and adds the new chunks to the vector store.
func NewIngestCmd() *cobra.Command {
	var chunkSize int
	var chunkOverlap int

	cmd := &cobra.Command{
		Use:   "ingest <path|url>...",
		Short: "Ingest documents into the vector store",
		Long: `Load documents, split them into overlapping chunks, embed the chunks and
add them to the vector store.

Targets may be PDF files (one page at a time), text or markdown files,
directories (walked for .pdf, .txt and .md files) or http(s) URLs (PDF or
HTML). Chunk ids are "<source>:<page>:<index>", so re-running ingest skips
chunks that are already stored and only adds new ones.

Examples:
  ragq ingest data/
  ragq ingest data/monopoly.pdf data/ticket_to_ride.pdf
  ragq ingest --chunk-size 1200 https://example.com/rules.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := appFrom(ctx)
			log := a.log

			ingCfg := ingestionConfig(a.cfg)
			if cmd.Flags().Changed("chunk-size") {
				ingCfg.ChunkSize = chunkSize
			}
			if cmd.Flags().Changed("chunk-overlap") {
				ingCfg.ChunkOverlap = chunkOverlap
			}

			embCfg := embedderConfig(a.cfg)
			if err := embedder.Preflight(embCfg, log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			emb, err := embedder.New(embCfg)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("backend", embCfg.Backend))

			st, err := openStore(ctx, a.cfg, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = st.Close() }()

			p, err := ingestion.NewPipeline(emb, st, ingCfg)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("starting ingestion", slog.Int("targets", len(args)))
			report, err := p.Ingest(ctx, args, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			total, err := st.Len(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("ingestion complete",
				slog.Int("sources", report.Sources),
				slog.Int("pages", report.Pages),
				slog.Int("chunks", report.Chunks),
				slog.Int("added", report.Added),
				slog.Int("skipped", report.Skipped),
				slog.Int("store_total", total),
			)
			return writeIngestReport(cmd, report, total, st)
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Maximum characters per chunk (default from config: 800)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Characters shared by consecutive chunks (default from config: 80)")

	return cmd
}

func writeIngestReport(cmd *cobra.Command, r *ingestion.Report, total int, st rag.VectorStore) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(),
		"Ingested %d sources (%d pages, %d chunks): %d added, %d already present. Store now holds %d chunks of %d dimensions.\n",
		r.Sources, r.Pages, r.Chunks, r.Added, r.Skipped, total, st.Dimensions())
	return err
}
