package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/ragq-go/internal/rag"
)

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

// Config selects and configures a vector store backend.
type Config struct {
	// Backend is one of memory, sqlite, chromem, qdrant (default: sqlite).
	Backend string

	// Path is the SQLite file (sqlite) or DB directory (chromem).
	Path string

	// Metric is the distance metric (default: cosine). chromem supports
	// cosine only.
	Metric rag.Metric

	// Dimensions fixes the embedding length. Zero means learned from the
	// first stored document.
	Dimensions int

	// Collection names the chromem or Qdrant collection.
	Collection string

	// Compress enables gzip for chromem's persisted files.
	Compress bool

	// Qdrant holds connection settings for the qdrant backend.
	Qdrant QdrantConfig
}

// Open constructs the configured backend. The caller owns the returned store
// and must Close it.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (rag.VectorStore, error) {
	metric, err := rag.ParseMetric(string(cfg.Metric))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %w", err)
	}

	switch cfg.Backend {
	case BackendMemory:
		s, err := NewMemoryStore(MemoryOptions{Dimensions: cfg.Dimensions, Metric: metric})
		if err != nil {
			return nil, err
		}
		return s, nil

	case BackendSQLite, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("vectorstore: sqlite backend requires a path")
		}
		s, err := OpenDurable(ctx, cfg.Path, MemoryOptions{Dimensions: cfg.Dimensions, Metric: metric}, log)
		if err != nil {
			return nil, err
		}
		return s, nil

	case BackendChromem:
		if metric != rag.MetricCosine {
			return nil, fmt.Errorf("vectorstore: chromem backend supports cosine distance only, got %s", metric)
		}
		if cfg.Path == "" {
			return nil, fmt.Errorf("vectorstore: chromem backend requires a path")
		}
		s, err := NewChromemStore(ChromemConfig{
			Path:       cfg.Path,
			Collection: cfg.Collection,
			Compress:   cfg.Compress,
			Dimensions: cfg.Dimensions,
		}, log)
		if err != nil {
			return nil, err
		}
		return s, nil

	case BackendQdrant:
		q := cfg.Qdrant
		if q.Collection == "" {
			q.Collection = cfg.Collection
		}
		s, err := NewQdrantStore(ctx, q, metric, cfg.Dimensions, log)
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("vectorstore: unknown backend %q (valid values: memory, sqlite, chromem, qdrant)", cfg.Backend)
	}
}
