// Package ingestion implements the knowledge-base population pipeline:
// load PDFs, text files, directories or URLs, split them into overlapping
// chunks, embed each new chunk and add it to the vector store. It is invoked
// by the `ragq ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/ragq-go/internal/logging"
	"github.com/54b3r/ragq-go/internal/rag"
)

const (
	// DefaultBatchSize is the number of chunks embedded per request.
	DefaultBatchSize = 32

	// DefaultMaxFetchBytes caps the body read from a URL source.
	DefaultMaxFetchBytes = 64 << 20
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk (default: 800).
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks
	// (default: 80).
	ChunkOverlap int

	// BatchSize is the number of chunks embedded and stored together
	// (default: 32).
	BatchSize int

	// HTTPTimeout bounds each URL fetch (default: 30s).
	HTTPTimeout time.Duration

	// UserAgent is sent with URL fetches.
	UserAgent string

	// MaxFetchBytes caps the body read from a URL source (default: 64 MiB).
	// A larger body fails the fetch rather than being truncated.
	MaxFetchBytes int64
}

// Report summarises one Ingest call.
type Report struct {
	// Sources is the number of files or URLs read.
	Sources int
	// Pages is the number of pages (or whole text files) read.
	Pages int
	// Chunks is the number of chunks produced.
	Chunks int
	// Added is the number of chunks embedded and stored.
	Added int
	// Skipped is the number of chunks whose id was already stored.
	Skipped int
}

// Pipeline orchestrates the load → split → embed → add flow.
type Pipeline struct {
	embedder rag.Embedder
	store    rag.VectorStore
	cfg      Config
	splitter splitter
	loader   *loader
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("ingestion: chunk overlap %d must be smaller than chunk size %d", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.MaxFetchBytes <= 0 {
		cfg.MaxFetchBytes = DefaultMaxFetchBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ragq-go (knowledge base ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		splitter: newSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		loader: &loader{
			client:    &http.Client{Timeout: cfg.HTTPTimeout},
			userAgent: cfg.UserAgent,
			maxBytes:  cfg.MaxFetchBytes,
		},
	}, nil
}

// Ingest loads every target, splits it into chunks and adds the chunks whose
// ids are not yet stored. Targets are processed in order and the first error
// stops the run; batches added before the error stay in the store, so a
// rerun resumes where it left off. Progress messages go to progress when it
// is non-nil.
func (p *Pipeline) Ingest(ctx context.Context, targets []string, progress func(msg string)) (*Report, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)
	report := &Report{}

	for _, target := range targets {
		progress(fmt.Sprintf("loading %s", target))
		pages, err := p.loader.load(ctx, target)
		if err != nil {
			return report, fmt.Errorf("ingestion: load %s: %w", target, err)
		}
		report.Sources += countSources(pages)
		report.Pages += len(pages)

		docs, err := p.chunk(pages)
		if err != nil {
			return report, fmt.Errorf("ingestion: %s: %w", target, err)
		}
		report.Chunks += len(docs)

		fresh, err := p.unseen(ctx, docs)
		if err != nil {
			return report, fmt.Errorf("ingestion: %s: %w", target, err)
		}
		report.Skipped += len(docs) - len(fresh)
		progress(fmt.Sprintf("%s: %d pages, %d chunks, %d new", target, len(pages), len(docs), len(fresh)))

		for start := 0; start < len(fresh); start += p.cfg.BatchSize {
			batch := fresh[start:min(start+p.cfg.BatchSize, len(fresh))]
			if err := p.addBatch(ctx, batch); err != nil {
				return report, fmt.Errorf("ingestion: %s: %w", target, err)
			}
			report.Added += len(batch)
			log.Debug("ingestion: batch stored",
				slog.String("target", target),
				slog.Int("batch", len(batch)),
				slog.Int("added", report.Added),
			)
		}
	}

	log.Info("ingestion: complete",
		slog.Int("sources", report.Sources),
		slog.Int("chunks", report.Chunks),
		slog.Int("added", report.Added),
		slog.Int("skipped", report.Skipped),
	)
	return report, nil
}

// chunk splits pages into documents carrying ids and metadata but no
// embeddings yet.
func (p *Pipeline) chunk(pages []Page) ([]rag.Document, error) {
	var docs []rag.Document
	for _, pg := range pages {
		parts, err := p.splitter.split(pg.Text)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pg.Page, err)
		}
		inferred := InferMetadata(pg.Source)
		for i, text := range parts {
			meta := map[string]any{
				"source": pg.Source,
				"page":   int64(pg.Page),
				"chunk":  int64(i),
			}
			inferred.apply(meta)
			docs = append(docs, rag.Document{
				ID:       ChunkID(pg.Source, pg.Page, i),
				Content:  text,
				Metadata: meta,
			})
		}
	}
	return docs, nil
}

// unseen returns the documents whose ids are neither stored nor repeated
// earlier in docs.
func (p *Pipeline) unseen(ctx context.Context, docs []rag.Document) ([]rag.Document, error) {
	seen := make(map[string]struct{}, len(docs))
	var out []rag.Document
	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		ok, err := p.store.Contains(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", d.ID, err)
		}
		if !ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// addBatch embeds batch and adds it to the store.
func (p *Pipeline) addBatch(ctx context.Context, batch []rag.Document) error {
	texts := make([]string, len(batch))
	for i, d := range batch {
		texts[i] = d.Content
	}
	vecs, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", rag.ErrEmbedding, err)
	}
	if len(vecs) != len(batch) {
		return fmt.Errorf("%w: expected %d embeddings, got %d", rag.ErrEmbedding, len(batch), len(vecs))
	}
	for i := range batch {
		batch[i].Embedding = vecs[i]
	}
	return p.store.AddBatch(ctx, batch)
}

// countSources returns the number of distinct sources in pages.
func countSources(pages []Page) int {
	seen := make(map[string]struct{})
	for _, pg := range pages {
		seen[pg.Source] = struct{}{}
	}
	return len(seen)
}
