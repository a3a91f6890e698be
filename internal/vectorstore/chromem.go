package vectorstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/54b3r/ragq-go/internal/rag"
	"github.com/54b3r/ragq-go/internal/store"
)

// Reserved chromem metadata keys. User metadata is stored JSON-encoded under
// chromemMetaKey so its scalar types survive the string-only chromem map.
// chromem normalizes the vectors it indexes, so the embedding as added is
// kept under chromemVecKey and returned from searches.
const (
	chromemSeqKey  = "ragq_seq"
	chromemMetaKey = "ragq_meta"
	chromemVecKey  = "ragq_vec"
)

// errNoEmbeddingFunc is returned if chromem ever tries to embed on our
// behalf. Every document and query handed to chromem carries its embedding.
var errNoEmbeddingFunc = errors.New("vectorstore: chromem collection has no embedding function; embeddings must be precomputed")

// ChromemConfig holds settings for the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the directory the persistent DB lives in. "~" is expanded.
	Path string

	// Collection is the collection name (default: "ragq").
	Collection string

	// Compress gzip-compresses the persisted documents.
	Compress bool

	// Dimensions fixes the embedding length. Zero means learned from data.
	Dimensions int
}

// ChromemStore implements rag.VectorStore on a chromem-go persistent
// collection. chromem ranks by cosine similarity only, so the store reports
// 1 - similarity as the distance. The insertion sequence is kept in each
// document's metadata and used to break ties.
type ChromemStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	dims       int
	nextSeq    int
	log        *slog.Logger
}

// NewChromemStore opens (or creates) the persistent DB at cfg.Path and the
// configured collection within it.
func NewChromemStore(cfg ChromemConfig, log *slog.Logger) (*ChromemStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = "ragq"
	}
	path, err := expandHome(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: chromem: expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("vectorstore: chromem: creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: chromem: opening DB at %s: %w", path, err)
	}

	meta := map[string]string{"metric": string(rag.MetricCosine)}
	if cfg.Dimensions > 0 {
		meta["dimensions"] = strconv.Itoa(cfg.Dimensions)
	}
	col, err := db.GetOrCreateCollection(cfg.Collection, meta, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: chromem: collection %q: %w", cfg.Collection, err)
	}

	s := &ChromemStore{
		db:         db,
		collection: col,
		name:       cfg.Collection,
		dims:       cfg.Dimensions,
		nextSeq:    col.Count(),
		log:        log,
	}
	log.Info("vectorstore: chromem store opened",
		slog.String("path", path),
		slog.String("collection", cfg.Collection),
		slog.Int("documents", s.nextSeq),
		slog.Bool("compress", cfg.Compress),
	)
	return s, nil
}

// refuseEmbedding is the collection's embedding function.
func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// Add stores doc. See rag.VectorStore.
func (s *ChromemStore) Add(ctx context.Context, doc rag.Document) error {
	return s.AddBatch(ctx, []rag.Document{doc})
}

// AddBatch stores docs atomically. If chromem fails part-way the documents
// already written are deleted again.
func (s *ChromemStore) AddBatch(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.learnDimensions(ctx, firstEmbedding(docs)); err != nil {
		return err
	}
	dims, err := checkBatch(docs, s.dims, func(id string) bool {
		_, err := s.collection.GetByID(ctx, id)
		return err == nil
	})
	if err != nil {
		return err
	}

	cdocs := make([]chromem.Document, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		if zeroMagnitude(d.Embedding) {
			return fmt.Errorf("vectorstore: chromem: %w: document %q has a zero-magnitude embedding", rag.ErrInvalidDocument, d.ID)
		}
		meta, err := store.EncodeMetadata(d.Metadata)
		if err != nil {
			return err
		}
		ids[i] = d.ID
		cdocs[i] = chromem.Document{
			ID:      d.ID,
			Content: d.Content,
			Metadata: map[string]string{
				chromemSeqKey:  strconv.Itoa(s.nextSeq + i),
				chromemMetaKey: meta,
				chromemVecKey:  store.EncodeEmbeddingText(d.Embedding),
			},
			Embedding: slices.Clone(d.Embedding),
		}
	}

	if err := s.collection.AddDocuments(ctx, cdocs, 1); err != nil {
		if derr := s.collection.Delete(context.WithoutCancel(ctx), nil, nil, ids...); derr != nil {
			s.log.Error("vectorstore: chromem: rollback after failed add",
				slog.String("collection", s.name),
				slog.String("error", derr.Error()),
			)
		}
		return fmt.Errorf("vectorstore: chromem: adding documents: %w", err)
	}

	s.dims = dims
	s.nextSeq += len(docs)
	return nil
}

// Search returns the min(k, n) closest documents by cosine distance.
func (s *ChromemStore) Search(ctx context.Context, query []float32, k int) ([]rag.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("vectorstore: %w: got %d", rag.ErrInvalidK, k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) == 0 || (s.dims > 0 && len(query) != s.dims) {
		return nil, fmt.Errorf("vectorstore: %w: query has %d dimensions, store has %d",
			rag.ErrDimensionMismatch, len(query), s.dims)
	}
	n := s.collection.Count()
	if n == 0 {
		return []rag.SearchResult{}, nil
	}

	vec := query
	zero := zeroMagnitude(query)
	if zero {
		// chromem would normalise a zero vector to NaNs. Any unit vector
		// returns every document; all distances are then 1.
		vec = make([]float32, len(query))
		vec[0] = 1
	}

	// Every document is requested so ties at the k boundary resolve by
	// insertion order rather than by chromem's internal ordering.
	res, err := s.collection.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		if s.dims == 0 {
			return nil, fmt.Errorf("vectorstore: chromem: %w: %w", rag.ErrDimensionMismatch, err)
		}
		return nil, fmt.Errorf("vectorstore: chromem: query: %w", err)
	}

	results, seqs, err := chromemResults(res, zero)
	if err != nil {
		return nil, err
	}
	sortBySeq(results, seqs)
	return results[:min(k, len(results))], nil
}

// learnDimensions establishes s.dims from existing data when it is not yet
// known, by probing the collection with v. Caller holds the write lock.
func (s *ChromemStore) learnDimensions(ctx context.Context, v []float32) error {
	if s.dims > 0 || len(v) == 0 || s.collection.Count() == 0 {
		return nil
	}
	res, err := s.collection.QueryEmbedding(ctx, v, 1, nil, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: chromem: %w: %w", rag.ErrDimensionMismatch, err)
	}
	if len(res) > 0 {
		s.dims = len(res[0].Embedding)
	}
	return nil
}

// chromemResults converts chromem results to rag results and returns the
// parallel slice of insertion sequences.
func chromemResults(res []chromem.Result, zero bool) ([]rag.SearchResult, []int, error) {
	out := make([]rag.SearchResult, len(res))
	seqs := make([]int, len(res))
	for i, r := range res {
		meta, err := store.DecodeMetadata(r.Metadata[chromemMetaKey])
		if err != nil {
			return nil, nil, err
		}
		seq, err := strconv.Atoi(r.Metadata[chromemSeqKey])
		if err != nil {
			return nil, nil, fmt.Errorf("vectorstore: chromem: document %q has invalid sequence %q", r.ID, r.Metadata[chromemSeqKey])
		}
		emb := slices.Clone(r.Embedding)
		if v, ok := r.Metadata[chromemVecKey]; ok {
			if emb, err = store.DecodeEmbeddingText(v); err != nil {
				return nil, nil, fmt.Errorf("vectorstore: chromem: document %q: %w", r.ID, err)
			}
		}
		dist := 1 - float64(r.Similarity)
		if zero {
			dist = 1
		}
		out[i] = rag.SearchResult{
			Document: &rag.Document{
				ID:        r.ID,
				Content:   r.Content,
				Embedding: emb,
				Metadata:  meta,
			},
			Score: dist,
		}
		seqs[i] = seq
	}
	return out, seqs, nil
}

// sortBySeq orders results by ascending distance, then ascending sequence.
func sortBySeq(results []rag.SearchResult, seqs []int) {
	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) int {
		if c := cmp.Compare(results[a].Score, results[b].Score); c != 0 {
			return c
		}
		return cmp.Compare(seqs[a], seqs[b])
	})
	sorted := make([]rag.SearchResult, len(results))
	for i, j := range idx {
		sorted[i] = results[j]
	}
	copy(results, sorted)
}

// Contains reports whether id is stored.
func (s *ChromemStore) Contains(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.collection.GetByID(ctx, id)
	return err == nil, nil
}

// Len returns the number of stored documents.
func (s *ChromemStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count(), nil
}

// Dimensions returns the established dimensionality, or 0.
func (s *ChromemStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Metric always returns cosine.
func (s *ChromemStore) Metric() rag.Metric { return rag.MetricCosine }

// Close is a no-op: chromem persists each document as it is added.
func (s *ChromemStore) Close() error { return nil }

// firstEmbedding returns the first non-empty embedding in docs.
func firstEmbedding(docs []rag.Document) []float32 {
	for _, d := range docs {
		if len(d.Embedding) > 0 {
			return d.Embedding
		}
	}
	return nil
}

// zeroMagnitude reports whether every component of v is zero.
func zeroMagnitude(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// expandHome expands a leading "~" to the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}
