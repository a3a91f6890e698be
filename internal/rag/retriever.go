package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/ragq-go/internal/logging"
)

// DefaultRetriever implements the Retriever interface by combining an Embedder
// and a VectorStore. It embeds the query at retrieval time and delegates
// similarity search to the store. Nothing is cached: every call re-embeds and
// re-searches.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and VectorStore.
func NewRetriever(embedder Embedder, store VectorStore) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	return &DefaultRetriever{
		embedder: embedder,
		store:    store,
	}, nil
}

// Search embeds queryText and returns the top-k closest documents.
// Embedder failures are returned as ErrEmbedding wrapping the cause; there is
// no fallback, since a degraded embedding produces plausible but wrong
// rankings. Store errors (ErrInvalidK, ErrDimensionMismatch, backend errors)
// are returned as-is.
func (r *DefaultRetriever) Search(ctx context.Context, queryText string, k int) ([]SearchResult, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("rag: %w: %w", ErrEmbedding, err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("rag: %w: embedder returned empty result for query", ErrEmbedding)
	}

	results, err := r.store.Search(ctx, embeddings[0], k)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("rag: retrieved",
		slog.Int("k", k),
		slog.Int("results", len(results)),
	)
	return results, nil
}
