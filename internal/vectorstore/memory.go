// Package vectorstore provides the rag.VectorStore backends: an exact
// brute-force in-memory store (optionally written through to SQLite), an
// embedded chromem-go store, and a remote Qdrant store. Every backend reports
// scores as distances, lower is closer, and breaks ties by insertion order.
package vectorstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/54b3r/ragq-go/internal/rag"
)

// Persister receives every batch of documents accepted by a MemoryStore
// before the batch becomes visible to readers. Returning an error rejects
// the batch and leaves the store unchanged.
type Persister interface {
	SaveDocuments(ctx context.Context, docs []rag.Document) error
}

// MemoryOptions configures a MemoryStore.
type MemoryOptions struct {
	// Dimensions fixes the embedding length. Zero means the first accepted
	// document establishes it.
	Dimensions int

	// Metric selects the distance function. Empty means cosine; aliases
	// accepted by rag.ParseMetric are normalized.
	Metric rag.Metric

	// Persister, when set, is called under the write lock for every add.
	Persister Persister
}

// MemoryStore is an exact nearest-neighbour store that scans every document
// on each search. Documents are kept in insertion order; the id index maps
// an id to its position in that order.
type MemoryStore struct {
	mu        sync.RWMutex
	docs      []*rag.Document
	index     map[string]int
	dims      int
	metric    rag.Metric
	distance  func(a, b []float32) float64
	persister Persister
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts MemoryOptions) (*MemoryStore, error) {
	if opts.Dimensions < 0 {
		return nil, fmt.Errorf("vectorstore: dimensions must not be negative, got %d", opts.Dimensions)
	}
	metric, err := rag.ParseMetric(string(opts.Metric))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %w", err)
	}
	distance, err := metric.DistanceFunc()
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %w", err)
	}
	return &MemoryStore{
		index:     make(map[string]int),
		dims:      opts.Dimensions,
		metric:    metric,
		distance:  distance,
		persister: opts.Persister,
	}, nil
}

// Add stores doc. See rag.VectorStore.
func (s *MemoryStore) Add(ctx context.Context, doc rag.Document) error {
	return s.AddBatch(ctx, []rag.Document{doc})
}

// AddBatch stores docs atomically. Every document is validated against the
// store and against the rest of the batch before anything is committed.
func (s *MemoryStore) AddBatch(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims, err := checkBatch(docs, s.dims, func(id string) bool {
		_, ok := s.index[id]
		return ok
	})
	if err != nil {
		return err
	}

	copies := make([]rag.Document, len(docs))
	for i := range docs {
		copies[i] = cloneDocument(docs[i])
	}

	if s.persister != nil {
		if err := s.persister.SaveDocuments(ctx, copies); err != nil {
			return fmt.Errorf("vectorstore: persist batch: %w", err)
		}
	}

	s.commit(copies, dims)
	return nil
}

// load appends already-validated documents without calling the persister.
// It is used to rehydrate a store from its own persisted state.
func (s *MemoryStore) load(docs []rag.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dims, err := checkBatch(docs, s.dims, func(id string) bool {
		_, ok := s.index[id]
		return ok
	})
	if err != nil {
		return err
	}
	s.commit(docs, dims)
	return nil
}

// commit appends docs and fixes dims. Caller holds the write lock.
func (s *MemoryStore) commit(docs []rag.Document, dims int) {
	for i := range docs {
		d := docs[i]
		s.index[d.ID] = len(s.docs)
		s.docs = append(s.docs, &d)
	}
	s.dims = dims
}

// Search returns the min(k, n) closest documents. The scan is exact.
func (s *MemoryStore) Search(ctx context.Context, query []float32, k int) ([]rag.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("vectorstore: %w: got %d", rag.ErrInvalidK, k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dims > 0 && len(query) != s.dims {
		return nil, fmt.Errorf("vectorstore: %w: query has %d dimensions, store has %d",
			rag.ErrDimensionMismatch, len(query), s.dims)
	}
	if len(s.docs) == 0 {
		return []rag.SearchResult{}, nil
	}

	results := make([]rag.SearchResult, len(s.docs))
	for i, d := range s.docs {
		results[i] = rag.SearchResult{Document: d, Score: s.distance(query, d.Embedding)}
	}
	// s.docs is in insertion order, so a stable sort keeps ties earliest-first.
	slices.SortStableFunc(results, func(a, b rag.SearchResult) int {
		return cmp.Compare(a.Score, b.Score)
	})

	return results[:min(k, len(results))], nil
}

// Contains reports whether id is stored.
func (s *MemoryStore) Contains(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok, nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Dimensions returns the established dimensionality, or 0.
func (s *MemoryStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Metric returns the store's distance metric.
func (s *MemoryStore) Metric() rag.Metric { return s.metric }

// Close is a no-op; persisters own their own lifecycle.
func (s *MemoryStore) Close() error { return nil }

// checkBatch validates docs against an existing dimensionality and id set.
// It returns the dimensionality the store will have after the batch.
func checkBatch(docs []rag.Document, dims int, exists func(string) bool) (int, error) {
	seen := make(map[string]struct{}, len(docs))
	for i := range docs {
		d := &docs[i]
		if d.ID == "" {
			return 0, fmt.Errorf("vectorstore: %w: document %d has an empty id", rag.ErrInvalidDocument, i)
		}
		if len(d.Embedding) == 0 {
			return 0, fmt.Errorf("vectorstore: %w: document %q has no embedding", rag.ErrInvalidDocument, d.ID)
		}
		if _, dup := seen[d.ID]; dup || exists(d.ID) {
			return 0, fmt.Errorf("vectorstore: %w: %q", rag.ErrDuplicateID, d.ID)
		}
		seen[d.ID] = struct{}{}

		if dims == 0 {
			dims = len(d.Embedding)
		}
		if len(d.Embedding) != dims {
			return 0, fmt.Errorf("vectorstore: %w: document %q has %d dimensions, store has %d",
				rag.ErrDimensionMismatch, d.ID, len(d.Embedding), dims)
		}
	}
	return dims, nil
}

// cloneDocument copies the embedding and metadata so later mutation of the
// caller's slices cannot affect stored documents.
func cloneDocument(d rag.Document) rag.Document {
	d.Embedding = slices.Clone(d.Embedding)
	d.Metadata = maps.Clone(d.Metadata)
	return d
}
