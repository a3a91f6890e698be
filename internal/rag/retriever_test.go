package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns a fixed vector or a fixed error.
type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

// fakeStore records the query it receives and returns canned results.
type fakeStore struct {
	gotQuery []float32
	gotK     int
	results  []SearchResult
	err      error
	searches int
}

func (s *fakeStore) Add(context.Context, Document) error        { return nil }
func (s *fakeStore) AddBatch(context.Context, []Document) error { return nil }
func (s *fakeStore) Contains(context.Context, string) (bool, error) {
	return false, nil
}
func (s *fakeStore) Len(context.Context) (int, error) { return len(s.results), nil }
func (s *fakeStore) Dimensions() int                  { return 2 }
func (s *fakeStore) Metric() Metric                   { return MetricCosine }
func (s *fakeStore) Close() error                     { return nil }

func (s *fakeStore) Search(_ context.Context, q []float32, k int) ([]SearchResult, error) {
	s.searches++
	s.gotQuery = q
	s.gotK = k
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func Test_NewRetriever_NilDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewRetriever(nil, &fakeStore{})
	require.Error(t, err)
	_, err = NewRetriever(&fakeEmbedder{}, nil)
	require.Error(t, err)
}

func Test_Retriever_Search_DelegatesToStore(t *testing.T) {
	t.Parallel()

	want := []SearchResult{{Document: &Document{ID: "b"}, Score: 0.1}}
	emb := &fakeEmbedder{vec: []float32{0.9, 0.1}}
	st := &fakeStore{results: want}
	r, err := NewRetriever(emb, st)
	require.NoError(t, err)

	got, err := r.Search(context.Background(), "what is b?", 7)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []float32{0.9, 0.1}, st.gotQuery)
	assert.Equal(t, 7, st.gotK)
	assert.Equal(t, 1, emb.calls)
}

func Test_Retriever_Search_EmbedderFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("model not loaded")
	st := &fakeStore{}
	r, err := NewRetriever(&fakeEmbedder{err: cause}, st)
	require.NoError(t, err)

	_, err = r.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, st.searches, "store must not be searched after an embedding failure")
}

func Test_Retriever_Search_EmptyEmbedding(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&fakeEmbedder{vec: nil}, &fakeStore{})
	require.NoError(t, err)

	_, err = r.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, ErrEmbedding)
}

func Test_Retriever_Search_PropagatesStoreError(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&fakeEmbedder{vec: []float32{1, 0}}, &fakeStore{err: ErrInvalidK})
	require.NoError(t, err)

	_, err = r.Search(context.Background(), "q", 0)
	assert.ErrorIs(t, err, ErrInvalidK)
	assert.NotErrorIs(t, err, ErrEmbedding)
}
