package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Keys of the settings table. A vector database records the parameters it
// was built with so a later open can refuse incompatible configuration.
const (
	SettingMetric     = "metric"
	SettingDimensions = "dimensions"
)

// Setting returns the value stored under key and whether one was present.
func (s *SQLiteStore) Setting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("store: read setting %q: %w", key, err)
	}
	return v, true, nil
}

// InitSetting stores value under key unless a value is already present, and
// returns whichever value is stored afterwards.
func (s *SQLiteStore) InitSetting(ctx context.Context, key, value string) (string, error) {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, value); err != nil {
		return "", fmt.Errorf("store: write setting %q: %w", key, err)
	}
	v, _, err := s.Setting(ctx, key)
	return v, err
}
