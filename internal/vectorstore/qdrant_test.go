package vectorstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/ragq-go/internal/logging"
	"github.com/54b3r/ragq-go/internal/rag"
)

// fakeQdrant is an in-process stand-in for the Qdrant gRPC API covering the
// calls QdrantStore makes. Scores follow Qdrant semantics: cosine similarity
// (higher is better) or Euclidean distance (lower is better).
type fakeQdrant struct {
	mu       sync.Mutex
	created  bool
	size     uint64
	distance qdrant.Distance
	points   map[string]*qdrant.PointStruct
	order    []string
	queries  []*qdrant.QueryPoints
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{points: make(map[string]*qdrant.PointStruct)}
}

func (f *fakeQdrant) CollectionExists(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, nil
}

func (f *fakeQdrant) GetCollectionInfo(context.Context, string) (*qdrant.CollectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &qdrant.CollectionInfo{
		Config: &qdrant.CollectionConfig{
			Params: &qdrant.CollectionParams{
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: f.size, Distance: f.distance}),
			},
		},
	}, nil
}

func (f *fakeQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := req.GetVectorsConfig().GetParams()
	f.created = true
	f.size = p.GetSize()
	f.distance = p.GetDistance()
	return nil
}

func (f *fakeQdrant) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range req.GetPoints() {
		id := p.GetId().GetUuid()
		if _, ok := f.points[id]; !ok {
			f.order = append(f.order, id)
		}
		f.points[id] = p
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Get(_ context.Context, req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*qdrant.RetrievedPoint
	for _, id := range req.GetIds() {
		if p, ok := f.points[id.GetUuid()]; ok {
			out = append(out, &qdrant.RetrievedPoint{Id: p.GetId(), Payload: p.GetPayload()})
		}
	}
	return out, nil
}

func (f *fakeQdrant) Count(context.Context, *qdrant.CountPoints) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.points)), nil
}

func (f *fakeQdrant) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, req)

	q := req.GetQuery().GetNearest().GetDense().GetData()
	metric := rag.MetricCosine
	if f.distance == qdrant.Distance_Euclid {
		metric = rag.MetricL2
	}

	out := make([]*qdrant.ScoredPoint, 0, len(f.order))
	for _, id := range f.order {
		p := f.points[id]
		d := metric.Distance(q, p.GetVectors().GetVector().GetDense().GetData())
		score := float32(d)
		if metric == rag.MetricCosine {
			score = float32(1 - d)
		}
		out = append(out, &qdrant.ScoredPoint{Id: p.GetId(), Payload: p.GetPayload(), Score: score})
	}
	// Reverse insertion order among equal scores so the store's own tie
	// breaking is exercised.
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b *qdrant.ScoredPoint) int {
		if metric == rag.MetricCosine {
			return cmp.Compare(b.GetScore(), a.GetScore())
		}
		return cmp.Compare(a.GetScore(), b.GetScore())
	})
	return out[:min(int(req.GetLimit()), len(out))], nil
}

func (f *fakeQdrant) Close() error { return nil }

func Test_QdrantStore_CreatesCollectionOnFirstAdd(t *testing.T) {
	t.Parallel()

	fake := newFakeQdrant()
	s, err := newQdrantStore(context.Background(), fake, QdrantConfig{Collection: "docs"}, rag.MetricL2, 0, logging.Discard())
	require.NoError(t, err)
	assert.False(t, fake.created)

	require.NoError(t, s.Add(context.Background(), doc("a", 3, 4)))
	assert.True(t, fake.created)
	assert.Equal(t, uint64(2), fake.size)
	assert.Equal(t, qdrant.Distance_Euclid, fake.distance)

	res, err := s.Search(context.Background(), []float32{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.InDelta(t, 5, res[0].Score, 1e-5, "euclid scores are reported unchanged")

	require.Len(t, fake.queries, 1)
	assert.True(t, fake.queries[0].GetParams().GetExact(), "searches must be exact")
}

func Test_QdrantStore_AdoptsExistingCollection(t *testing.T) {
	t.Parallel()

	fake := newFakeQdrant()
	first, err := newQdrantStore(context.Background(), fake, QdrantConfig{Collection: "docs"}, rag.MetricCosine, 0, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, first.AddBatch(context.Background(), []rag.Document{doc("a", 1, 1), doc("b", 1, 1)}))

	reopened, err := newQdrantStore(context.Background(), fake, QdrantConfig{Collection: "docs"}, rag.MetricCosine, 0, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Dimensions())

	require.NoError(t, reopened.Add(context.Background(), doc("c", 1, 1)))
	res, err := reopened.Search(context.Background(), []float32{1, 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(res), "sequence continues across reopen")
}

func Test_QdrantStore_RejectsMismatchedCollection(t *testing.T) {
	t.Parallel()

	fake := newFakeQdrant()
	_, err := newQdrantStore(context.Background(), fake, QdrantConfig{Collection: "docs"}, rag.MetricCosine, 4, logging.Discard())
	require.NoError(t, err)

	_, err = newQdrantStore(context.Background(), fake, QdrantConfig{Collection: "docs"}, rag.MetricCosine, 8, logging.Discard())
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)

	_, err = newQdrantStore(context.Background(), fake, QdrantConfig{Collection: "docs"}, rag.MetricL2, 4, logging.Discard())
	assert.Error(t, err)
}

func Test_PointID_Deterministic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pointID("data/a.pdf:0:1"), pointID("data/a.pdf:0:1"))
	assert.NotEqual(t, pointID("data/a.pdf:0:1"), pointID("data/a.pdf:0:2"))
}

func Test_QdrantPayload_RoundTrip(t *testing.T) {
	t.Parallel()

	d := rag.Document{ID: "x:1:0", Content: "body", Metadata: map[string]any{"source": "x", "page": int64(1)}}
	payload, err := qdrantPayload(d, 42)
	require.NoError(t, err)

	got, seq, err := documentFromPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.Content, got.Content)
	assert.Equal(t, d.Metadata, got.Metadata)
}
