// Package rag defines the interfaces and data types shared by the
// retrieval-augmented generation components: document storage, embedding,
// retrieval, and generation.
// Concrete implementations (in-memory, SQLite, chromem, Qdrant, Ollama, etc.)
// satisfy these interfaces so the query pipeline never depends on a specific
// backend.
package rag

import (
	"context"
)

// Document is a unit of stored knowledge: a chunk of text together with its
// embedding. Documents are immutable once added to a VectorStore.
type Document struct {
	// ID is the unique identifier for this chunk within a store.
	ID string

	// Content is the raw UTF-8 text of the chunk.
	Content string

	// Embedding is the dense vector representation of Content. Its length
	// must match the dimensionality of the store it is added to.
	Embedding []float32

	// Metadata holds scalar key-value pairs (source, page, etc.).
	// Values are string, bool, int64, or float64.
	Metadata map[string]any
}

// Source returns the "source" metadata value, or empty string when absent.
func (d *Document) Source() string {
	if d == nil {
		return ""
	}
	if v, ok := d.Metadata["source"].(string); ok {
		return v
	}
	return ""
}

// SearchResult pairs a stored document with its distance to the query.
// The Document pointer is shared with the store and must be treated as
// read-only. A SearchResult lives only for the duration of one search call.
type SearchResult struct {
	// Document is the matched document.
	Document *Document

	// Score is the distance between the query and the document under the
	// store's Metric. Lower is closer for every metric and backend.
	Score float64
}

// VectorStore persists documents and answers nearest-neighbour queries.
// Implementations must be safe to call from multiple goroutines: Add and
// AddBatch are mutually exclusive with each other and with Search.
type VectorStore interface {
	// Add stores a single document. It fails with ErrDuplicateID when the id
	// is already present and ErrDimensionMismatch when the embedding length
	// differs from the store's dimensionality. A failed Add leaves the store
	// unchanged.
	Add(ctx context.Context, doc Document) error

	// AddBatch stores docs atomically: either every document is added or
	// none is.
	AddBatch(ctx context.Context, docs []Document) error

	// Search returns the min(k, n) documents closest to query, ordered by
	// ascending distance with ties broken by insertion order. It fails with
	// ErrInvalidK when k <= 0.
	Search(ctx context.Context, query []float32, k int) ([]SearchResult, error)

	// Contains reports whether a document with the given id is stored.
	Contains(ctx context.Context, id string) (bool, error)

	// Len returns the number of stored documents.
	Len(ctx context.Context) (int, error)

	// Dimensions returns the store's embedding dimensionality, or 0 when it
	// has not been established yet.
	Dimensions() int

	// Metric returns the distance metric fixed at construction.
	Metric() Metric

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces text from a fully rendered prompt.
// Output may be non-deterministic.
type Generator interface {
	// Generate returns the model's completion for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever combines embedding and vector search to fetch the chunks most
// relevant to a query string.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Search returns the top-k results for queryText in ranking order.
	Search(ctx context.Context, queryText string, k int) ([]SearchResult, error)
}
