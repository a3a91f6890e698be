package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/54b3r/ragq-go/internal/rag"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_SaveAndLoadDocuments(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	docs := []rag.Document{
		{ID: "b", Content: "second", Embedding: []float32{0, 1}, Metadata: map[string]any{"source": "b.pdf", "page": int64(3)}},
		{ID: "a", Content: "first", Embedding: []float32{1, 0}},
	}
	if err := s.SaveDocuments(ctx, docs); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadDocuments(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 documents, got %d", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("want insertion order [b a], got [%s %s]", got[0].ID, got[1].ID)
	}
	if got[0].Metadata["source"] != "b.pdf" {
		t.Errorf("source: want b.pdf, got %v", got[0].Metadata["source"])
	}
	if got[0].Metadata["page"] != int64(3) {
		t.Errorf("page: want int64(3), got %#v", got[0].Metadata["page"])
	}
	if got[1].Embedding[0] != 1 || got[1].Embedding[1] != 0 {
		t.Errorf("embedding round-trip: got %v", got[1].Embedding)
	}

	n, err := s.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count: want 2, got %d", n)
	}
}

func Test_Store_SaveDocumentsDuplicateIsAtomic(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveDocuments(ctx, []rag.Document{{ID: "x", Content: "x", Embedding: []float32{1}}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	err := s.SaveDocuments(ctx, []rag.Document{
		{ID: "y", Content: "y", Embedding: []float32{1}},
		{ID: "x", Content: "dup", Embedding: []float32{1}},
	})
	if err == nil {
		t.Fatal("want error for duplicate id")
	}
	n, _ := s.CountDocuments(ctx)
	if n != 1 {
		t.Errorf("failed batch must not persist partial rows: want 1, got %d", n)
	}
}

func Test_Store_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "store.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SaveDocuments(ctx, []rag.Document{{ID: "p", Content: "kept", Embedding: []float32{0.5}}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })
	docs, err := s2.LoadDocuments(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 1 || docs[0].Content != "kept" {
		t.Errorf("want persisted document, got %+v", docs)
	}
}

func Test_Store_RecordAndRecentQueries(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for _, q := range []string{"q1", "q2", "q3"} {
		rec := QueryRecord{Question: q, Answer: "a-" + q, Sources: []string{q + ":0:0"}, Duration: 1500 * time.Millisecond}
		if err := s.RecordQuery(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	recs, err := s.RecentQueries(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("want 2 records, got %d", len(recs))
	}
	if recs[0].Question != "q3" || recs[1].Question != "q2" {
		t.Errorf("want newest first [q3 q2], got [%s %s]", recs[0].Question, recs[1].Question)
	}
	if len(recs[0].Sources) != 1 || recs[0].Sources[0] != "q3:0:0" {
		t.Errorf("sources: got %v", recs[0].Sources)
	}
	if recs[0].Duration != 1500*time.Millisecond {
		t.Errorf("duration: want 1.5s, got %s", recs[0].Duration)
	}
}

func Test_Store_RecentQueriesNonPositive(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	recs, err := s.RecentQueries(context.Background(), 0)
	if err != nil || recs != nil {
		t.Errorf("want nil, nil for n=0; got %v, %v", recs, err)
	}
}

func Test_Store_Settings(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Setting(ctx, SettingMetric); err != nil || ok {
		t.Fatalf("fresh store: want no metric setting, got ok=%v err=%v", ok, err)
	}

	got, err := s.InitSetting(ctx, SettingMetric, "cosine")
	if err != nil || got != "cosine" {
		t.Fatalf("first init: got %q, %v", got, err)
	}
	got, err = s.InitSetting(ctx, SettingMetric, "l2")
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if got != "cosine" {
		t.Errorf("InitSetting must not overwrite: got %q", got)
	}
}

func Test_Store_SaveDocumentsRecordsDimensions(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveDocuments(ctx, []rag.Document{{ID: "a", Content: "x", Embedding: []float32{1, 2, 3}}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveDocuments(ctx, []rag.Document{{ID: "b", Content: "y", Embedding: []float32{1, 2}}}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	v, ok, err := s.Setting(ctx, SettingDimensions)
	if err != nil || !ok {
		t.Fatalf("dimensions setting: ok=%v err=%v", ok, err)
	}
	if v != "3" {
		t.Errorf("dimensions: want the first batch's length 3, got %q", v)
	}
}
