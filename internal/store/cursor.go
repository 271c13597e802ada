package store

import (
	"fmt"
	"time"
)

// SyncCursor is the singleton pull watermark.
type SyncCursor struct {
	LastPulledAt  int64 // unix millis; zero before the first successful pull
	SchemaVersion int
}

func (s *Store) ensureCursor() error {
	_, err := s.conn.Exec(`
		INSERT OR IGNORE INTO sync_cursor (id, last_pulled_at, schema_version)
		VALUES (1, 0, ?)`, SchemaVersion)
	if err != nil {
		return fmt.Errorf("init sync cursor: %w", err)
	}
	return nil
}

// Cursor returns the current sync cursor.
func (s *Store) Cursor() (SyncCursor, error) {
	var c SyncCursor
	err := s.conn.QueryRow(`
		SELECT last_pulled_at, schema_version FROM sync_cursor WHERE id = 1`,
	).Scan(&c.LastPulledAt, &c.SchemaVersion)
	if err != nil {
		return c, fmt.Errorf("get sync cursor: %w", err)
	}
	return c, nil
}

// ResetCursor zeroes the watermark (used for unlink/logout); the next sync
// pulls from scratch.
func (s *Store) ResetCursor() error {
	_, err := s.conn.Exec(`UPDATE sync_cursor SET last_pulled_at = 0 WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("reset sync cursor: %w", err)
	}
	return nil
}

// LastSync returns the cursor as wall-clock time, or the zero time before the
// first pull.
func (s *Store) LastSync() (time.Time, error) {
	c, err := s.Cursor()
	if err != nil {
		return time.Time{}, err
	}
	if c.LastPulledAt == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(c.LastPulledAt), nil
}
