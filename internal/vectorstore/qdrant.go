package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragq-go/internal/rag"
	"github.com/54b3r/ragq-go/internal/store"
)

// Payload keys written alongside every Qdrant point.
const (
	payloadContent  = "content"
	payloadDocID    = "doc_id"
	payloadSeq      = "seq"
	payloadMetadata = "metadata"
	payloadSource   = "source"
	// payloadVector holds the embedding as added; Qdrant normalizes the
	// indexed vector under Cosine distance.
	payloadVector = "embedding"
)

// pointNamespace derives deterministic point UUIDs from document ids.
// Qdrant only accepts unsigned integers or UUIDs as point ids.
var pointNamespace = uuid.MustParse("6f1c5b0e-3d2a-5b8e-9c47-2a1e0d9f7b34")

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// qdrantAPI is the subset of *qdrant.Client used by QdrantStore.
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// QdrantStore implements rag.VectorStore backed by a Qdrant collection.
// Searches run with exact=true so results match a brute-force scan. Cosine
// scores are converted to distances (1 - score); Euclid scores already are.
type QdrantStore struct {
	mu      sync.RWMutex
	client  qdrantAPI
	cfg     QdrantConfig
	metric  rag.Metric
	dims    int
	exists  bool
	nextSeq int64
	log     *slog.Logger
}

// NewQdrantStore connects to Qdrant and inspects the target collection. When
// the collection does not exist yet it is created on the first add, once the
// embedding dimensionality is known (or immediately when dims > 0).
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, metric rag.Metric, dims int, log *slog.Logger) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "ragq"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	s, err := newQdrantStore(ctx, client, cfg, metric, dims, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// newQdrantStore wires a QdrantStore around an existing client.
func newQdrantStore(ctx context.Context, client qdrantAPI, cfg QdrantConfig, metric rag.Metric, dims int, log *slog.Logger) (*QdrantStore, error) {
	if metric == "" {
		metric = rag.MetricCosine
	}
	s := &QdrantStore{client: client, cfg: cfg, metric: metric, dims: dims, log: log}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		if err := s.adoptCollection(ctx); err != nil {
			return nil, err
		}
	} else if dims > 0 {
		if err := s.createCollection(ctx, dims); err != nil {
			return nil, err
		}
	}

	log.Info("vectorstore: qdrant store opened",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("collection", cfg.Collection),
		slog.Bool("exists", exists),
		slog.Int("dimensions", s.dims),
		slog.String("metric", string(s.metric)),
	)
	return s, nil
}

// adoptCollection reads the dimensionality, distance and point count of an
// existing collection and checks them against the configuration.
func (s *QdrantStore) adoptCollection(ctx context.Context) error {
	info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to read collection %q: %w", s.cfg.Collection, err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("qdrant: collection %q uses named vectors, which are not supported", s.cfg.Collection)
	}

	size := int(params.GetSize())
	if s.dims > 0 && s.dims != size {
		return fmt.Errorf("qdrant: %w: collection %q has %d dimensions, configured %d",
			rag.ErrDimensionMismatch, s.cfg.Collection, size, s.dims)
	}
	metric, err := metricFromDistance(params.GetDistance())
	if err != nil {
		return fmt.Errorf("qdrant: collection %q: %w", s.cfg.Collection, err)
	}
	if metric != s.metric {
		return fmt.Errorf("qdrant: %w: collection %q uses %s distance, configured %s",
			rag.ErrMetricMismatch, s.cfg.Collection, metric, s.metric)
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to count points: %w", err)
	}

	s.dims = size
	s.exists = true
	s.nextSeq = int64(count)
	return nil
}

// createCollection creates the Qdrant collection with the given size.
func (s *QdrantStore) createCollection(ctx context.Context, dims int) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: distanceFromMetric(s.metric),
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}
	s.dims = dims
	s.exists = true
	return nil
}

// Add stores doc. See rag.VectorStore.
func (s *QdrantStore) Add(ctx context.Context, doc rag.Document) error {
	return s.AddBatch(ctx, []rag.Document{doc})
}

// AddBatch validates docs against the collection and upserts them in one
// request with wait=true.
func (s *QdrantStore) AddBatch(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.existingIDs(ctx, docs)
	if err != nil {
		return err
	}
	dims, err := checkBatch(docs, s.dims, func(id string) bool {
		_, ok := existing[id]
		return ok
	})
	if err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, d := range docs {
		payload, err := qdrantPayload(d, s.nextSeq+int64(i))
		if err != nil {
			return err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(d.ID)),
			Vectors: qdrant.NewVectors(d.Embedding...),
			Payload: payload,
		})
	}

	if !s.exists {
		if err := s.createCollection(ctx, dims); err != nil {
			return err
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	s.dims = dims
	s.nextSeq += int64(len(docs))
	return nil
}

// existingIDs returns the subset of doc ids already present in the
// collection. Caller holds the lock.
func (s *QdrantStore) existingIDs(ctx context.Context, docs []rag.Document) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if !s.exists {
		return out, nil
	}
	ids := make([]*qdrant.PointId, 0, len(docs))
	for _, d := range docs {
		if d.ID != "" {
			ids = append(ids, qdrant.NewIDUUID(pointID(d.ID)))
		}
	}
	if len(ids) == 0 {
		return out, nil
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: lookup failed: %w", err)
	}
	for _, p := range points {
		out[p.GetPayload()[payloadDocID].GetStringValue()] = struct{}{}
	}
	return out, nil
}

// Search returns the min(k, n) closest documents.
func (s *QdrantStore) Search(ctx context.Context, query []float32, k int) ([]rag.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("vectorstore: %w: got %d", rag.ErrInvalidK, k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dims > 0 && len(query) != s.dims {
		return nil, fmt.Errorf("vectorstore: %w: query has %d dimensions, store has %d",
			rag.ErrDimensionMismatch, len(query), s.dims)
	}
	if !s.exists || s.nextSeq == 0 {
		return []rag.SearchResult{}, nil
	}

	points, err := s.queryPastTies(ctx, query, k)
	if err != nil {
		return nil, err
	}

	results := make([]rag.SearchResult, 0, len(points))
	seqs := make([]int, 0, len(points))
	for _, p := range points {
		doc, seq, err := documentFromPayload(p.GetPayload())
		if err != nil {
			return nil, err
		}
		results = append(results, rag.SearchResult{Document: doc, Score: s.distance(p.GetScore())})
		seqs = append(seqs, int(seq))
	}
	sortBySeq(results, seqs)
	return results[:min(k, len(results))], nil
}

// queryPastTies fetches at least k points, widening the limit until the
// point after the k-th scores differently from it (or the collection is
// exhausted). Qdrant orders equal scores arbitrarily, so without this a tie
// across the k boundary could drop an earlier-inserted document.
func (s *QdrantStore) queryPastTies(ctx context.Context, query []float32, k int) ([]*qdrant.ScoredPoint, error) {
	limit := uint64(k) + 1
	for {
		points, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.cfg.Collection,
			Query:          qdrant.NewQuery(query...),
			Limit:          qdrant.PtrOf(limit),
			Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: search failed: %w", err)
		}
		if uint64(len(points)) < limit || points[len(points)-1].GetScore() != points[k-1].GetScore() {
			return points, nil
		}
		limit *= 2
	}
}

// distance converts a Qdrant score into a distance, lower is closer.
func (s *QdrantStore) distance(score float32) float64 {
	if s.metric == rag.MetricL2 {
		return float64(score)
	}
	return 1 - float64(score)
}

// Contains reports whether id is stored.
func (s *QdrantStore) Contains(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, err := s.existingIDs(ctx, []rag.Document{{ID: id}})
	if err != nil {
		return false, err
	}
	_, ok := found[id]
	return ok, nil
}

// Len returns the number of points in the collection.
func (s *QdrantStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return 0, nil
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Dimensions returns the established dimensionality, or 0.
func (s *QdrantStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Metric returns the store's distance metric.
func (s *QdrantStore) Metric() rag.Metric { return s.metric }

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointID maps a document id onto a stable UUIDv5 string.
func pointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

// qdrantPayload builds the point payload for d.
func qdrantPayload(d rag.Document, seq int64) (map[string]*qdrant.Value, error) {
	meta, err := store.EncodeMetadata(d.Metadata)
	if err != nil {
		return nil, err
	}
	payload, err := qdrant.TryValueMap(map[string]any{
		payloadContent:  d.Content,
		payloadDocID:    d.ID,
		payloadSeq:      seq,
		payloadMetadata: meta,
		payloadSource:   d.Source(),
		payloadVector:   store.EncodeEmbeddingText(d.Embedding),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: payload for %q: %w", d.ID, err)
	}
	return payload, nil
}

// documentFromPayload rebuilds a document and its insertion sequence.
func documentFromPayload(p map[string]*qdrant.Value) (*rag.Document, int64, error) {
	meta, err := store.DecodeMetadata(p[payloadMetadata].GetStringValue())
	if err != nil {
		return nil, 0, err
	}
	doc := &rag.Document{
		ID:       p[payloadDocID].GetStringValue(),
		Content:  p[payloadContent].GetStringValue(),
		Metadata: meta,
	}
	if v, ok := p[payloadVector]; ok {
		if doc.Embedding, err = store.DecodeEmbeddingText(v.GetStringValue()); err != nil {
			return nil, 0, fmt.Errorf("qdrant: point %q: %w", doc.ID, err)
		}
	}
	return doc, p[payloadSeq].GetIntegerValue(), nil
}

// distanceFromMetric maps a rag.Metric to the Qdrant collection distance.
func distanceFromMetric(m rag.Metric) qdrant.Distance {
	if m == rag.MetricL2 {
		return qdrant.Distance_Euclid
	}
	return qdrant.Distance_Cosine
}

// metricFromDistance maps a Qdrant collection distance to a rag.Metric.
func metricFromDistance(d qdrant.Distance) (rag.Metric, error) {
	switch d {
	case qdrant.Distance_Cosine:
		return rag.MetricCosine, nil
	case qdrant.Distance_Euclid:
		return rag.MetricL2, nil
	default:
		return "", fmt.Errorf("unsupported distance %s", d)
	}
}

