package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueryRecord is one answered question in the history table.
type QueryRecord struct {
	// ID is the row id, assigned on insert.
	ID int64
	// Question is the user's question as submitted.
	Question string
	// Answer is the generated answer text.
	Answer string
	// Sources lists the ids of the chunks the answer was grounded on, in
	// ranking order.
	Sources []string
	// Duration is the end-to-end answer latency.
	Duration time.Duration
	// CreatedAt is when the record was persisted.
	CreatedAt time.Time
}

// RecordQuery persists a successful answer.
func (s *SQLiteStore) RecordQuery(ctx context.Context, rec QueryRecord) error {
	sources := rec.Sources
	if sources == nil {
		sources = []string{}
	}
	b, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("store: encode sources: %w", err)
	}
	const q = `INSERT INTO queries (question, answer, sources, duration_ms, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, rec.Question, rec.Answer, string(b), rec.Duration.Milliseconds(), time.Now().Unix()); err != nil {
		return fmt.Errorf("store: record query: %w", err)
	}
	return nil
}

// RecentQueries returns the most recent n history records, newest first.
func (s *SQLiteStore) RecentQueries(ctx context.Context, n int) ([]QueryRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	const q = `
SELECT id, question, answer, sources, duration_ms, created_at
FROM   queries
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent queries: %w", err)
	}
	defer rows.Close()

	var recs []QueryRecord
	for rows.Next() {
		var (
			r       QueryRecord
			sources string
			ms, ts  int64
		)
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &sources, &ms, &ts); err != nil {
			return nil, fmt.Errorf("store: recent queries scan: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
			return nil, fmt.Errorf("store: decode sources for query %d: %w", r.ID, err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		r.CreatedAt = time.Unix(ts, 0)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent queries rows: %w", err)
	}
	return recs, nil
}
