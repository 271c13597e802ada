package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

// Shadow is a local edit that lost a conflict to the server copy. It is kept
// out of the records table so the discarded data stays recoverable for manual
// review without affecting reads.
type Shadow struct {
	ID            int64
	Collection    models.Collection
	LocalID       string
	LocalData     json.RawMessage
	ServerData    json.RawMessage
	OverwrittenAt time.Time
}

// SaveShadow retains a discarded local edit. Saving the same shadow twice is
// a no-op, so re-applying an identical resolution cannot double-count.
func (s *Store) SaveShadow(collection models.Collection, localID string, localData, serverData json.RawMessage) error {
	local := "null"
	if localData != nil {
		local = string(localData)
	}
	server := "null"
	if serverData != nil {
		server = string(serverData)
	}
	_, err := s.conn.Exec(`
		INSERT INTO sync_shadows (collection, local_id, local_data, server_data)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM sync_shadows
			WHERE collection = ? AND local_id = ? AND local_data = ?
		)`,
		collection, localID, local, server,
		collection, localID, local,
	)
	if err != nil {
		return fmt.Errorf("save shadow %s/%s: %w", collection, localID, err)
	}
	return nil
}

// ListShadows returns retained shadows, most recent first.
func (s *Store) ListShadows(limit int) ([]Shadow, error) {
	rows, err := s.conn.Query(`
		SELECT id, collection, local_id, local_data, server_data, overwritten_at
		FROM sync_shadows ORDER BY overwritten_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list shadows: %w", err)
	}
	defer rows.Close()

	var shadows []Shadow
	for rows.Next() {
		var sh Shadow
		var local, server, ts string
		if err := rows.Scan(&sh.ID, &sh.Collection, &sh.LocalID, &local, &server, &ts); err != nil {
			return nil, fmt.Errorf("scan shadow: %w", err)
		}
		sh.LocalData = json.RawMessage(local)
		sh.ServerData = json.RawMessage(server)
		if parsed, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
			sh.OverwrittenAt = parsed
		}
		shadows = append(shadows, sh)
	}
	return shadows, rows.Err()
}

// DeleteShadow discards a reviewed shadow.
func (s *Store) DeleteShadow(id int64) error {
	_, err := s.conn.Exec(`DELETE FROM sync_shadows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shadow %d: %w", id, err)
	}
	return nil
}

// CountShadows returns the number of retained shadows, for status badges.
func (s *Store) CountShadows() (int64, error) {
	var n int64
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM sync_shadows`).Scan(&n)
	return n, err
}
