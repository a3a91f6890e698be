package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/54b3r/ragq-go/internal/rag"
)

// SaveDocuments inserts docs in a single transaction, in slice order. The
// autoincrement seq column preserves insertion order across restarts. A
// duplicate id aborts the whole batch. The first batch ever saved records
// the embedding length under SettingDimensions.
func (s *SQLiteStore) SaveDocuments(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO documents (id, content, metadata, embedding, created_at) VALUES (?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, d := range docs {
		meta, err := EncodeMetadata(d.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Content, meta, EncodeEmbedding(d.Embedding), now); err != nil {
			return fmt.Errorf("store: insert document %q: %w", d.ID, err)
		}
	}
	const dimsQ = `INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`
	if _, err := tx.ExecContext(ctx, dimsQ, SettingDimensions, strconv.Itoa(len(docs[0].Embedding))); err != nil {
		return fmt.Errorf("store: record dimensions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// LoadDocuments returns every stored document in insertion order.
func (s *SQLiteStore) LoadDocuments(ctx context.Context) ([]rag.Document, error) {
	const q = `SELECT id, content, metadata, embedding FROM documents ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: load documents: %w", err)
	}
	defer rows.Close()

	var docs []rag.Document
	for rows.Next() {
		var (
			d    rag.Document
			meta string
			blob []byte
		)
		if err := rows.Scan(&d.ID, &d.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("store: load documents scan: %w", err)
		}
		if d.Metadata, err = DecodeMetadata(meta); err != nil {
			return nil, err
		}
		if d.Embedding, err = DecodeEmbedding(blob); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load documents rows: %w", err)
	}
	return docs, nil
}

// CountDocuments returns the number of stored documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count documents: %w", err)
	}
	return n, nil
}
