package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/54b3r/ragq-go/internal/rag"
	"github.com/54b3r/ragq-go/internal/store"
)

// DurableMemoryStore is a MemoryStore whose contents are written through to
// a SQLite database and reloaded from it on open. Searches never touch the
// database.
type DurableMemoryStore struct {
	*MemoryStore
	db *store.SQLiteStore
}

// OpenDurable opens the SQLite database at path and loads every stored
// document, in insertion order, into a new MemoryStore. opts.Persister is
// replaced by the database.
//
// The metric, and the dimensionality once known, are recorded in the
// database. Reopening with a different metric fails with
// rag.ErrMetricMismatch and with different dimensions fails with
// rag.ErrDimensionMismatch.
func OpenDurable(ctx context.Context, path string, opts MemoryOptions, log *slog.Logger) (*DurableMemoryStore, error) {
	metric, err := rag.ParseMetric(string(opts.Metric))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %w", err)
	}

	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %w", err)
	}

	opts.Metric = metric
	if err := reconcileSettings(ctx, db, path, &opts); err != nil {
		_ = db.Close()
		return nil, err
	}

	opts.Persister = db
	mem, err := NewMemoryStore(opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	docs, err := db.LoadDocuments(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vectorstore: %w", err)
	}
	if err := mem.load(docs); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vectorstore: loading %s: %w", path, err)
	}

	log.Info("vectorstore: sqlite store loaded",
		slog.String("path", path),
		slog.Int("documents", len(docs)),
		slog.Int("dimensions", mem.Dimensions()),
		slog.String("metric", string(mem.Metric())),
	)
	return &DurableMemoryStore{MemoryStore: mem, db: db}, nil
}

// reconcileSettings checks opts against the settings recorded in db and
// records any that are missing. A recorded dimensionality fills in an
// unset opts.Dimensions.
func reconcileSettings(ctx context.Context, db *store.SQLiteStore, path string, opts *MemoryOptions) error {
	stored, err := db.InitSetting(ctx, store.SettingMetric, string(opts.Metric))
	if err != nil {
		return fmt.Errorf("vectorstore: %w", err)
	}
	if rag.Metric(stored) != opts.Metric {
		return fmt.Errorf("vectorstore: %w: %s was built with %s distance, configured %s",
			rag.ErrMetricMismatch, path, stored, opts.Metric)
	}

	v, ok, err := db.Setting(ctx, store.SettingDimensions)
	if err != nil {
		return fmt.Errorf("vectorstore: %w", err)
	}
	if !ok {
		if opts.Dimensions > 0 {
			if _, err := db.InitSetting(ctx, store.SettingDimensions, strconv.Itoa(opts.Dimensions)); err != nil {
				return fmt.Errorf("vectorstore: %w", err)
			}
		}
		return nil
	}
	dims, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("vectorstore: %s has a corrupt dimensions setting %q: %w", path, v, err)
	}
	if opts.Dimensions > 0 && opts.Dimensions != dims {
		return fmt.Errorf("vectorstore: %w: %s holds %d-dimension embeddings, configured %d",
			rag.ErrDimensionMismatch, path, dims, opts.Dimensions)
	}
	opts.Dimensions = dims
	return nil
}

// Persisted returns the number of documents stored in the database, which
// matches Len unless the file was changed behind the store's back.
func (s *DurableMemoryStore) Persisted(ctx context.Context) (int, error) {
	return s.db.CountDocuments(ctx)
}

// Close closes the underlying database.
func (s *DurableMemoryStore) Close() error {
	return s.db.Close()
}
