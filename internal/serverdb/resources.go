package serverdb

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

// UpsertResource applies a replayed offline write, keyed idempotently by the
// client-generated local id. Returns the server identifier.
func (db *ServerDB) UpsertResource(coll models.Collection, localID string, data json.RawMessage) (string, error) {
	now := nowMillis()

	var serverID string
	err := db.conn.QueryRow(`
		SELECT server_id FROM server_records WHERE collection = ? AND local_id = ?`,
		coll, localID,
	).Scan(&serverID)

	switch {
	case err == sql.ErrNoRows:
		serverID = uuid.NewString()
		if _, err := db.conn.Exec(`
			INSERT INTO server_records (collection, server_id, local_id, data, created_at, updated_at, deleted)
			VALUES (?, ?, ?, ?, ?, ?, 0)`,
			coll, serverID, localID, string(data), now, now,
		); err != nil {
			return "", fmt.Errorf("insert resource %s/%s: %w", coll, localID, err)
		}
	case err != nil:
		return "", fmt.Errorf("lookup resource %s/%s: %w", coll, localID, err)
	default:
		if _, err := db.conn.Exec(`
			UPDATE server_records SET data = ?, updated_at = ?, deleted = 0
			WHERE collection = ? AND server_id = ?`,
			string(data), now, coll, serverID,
		); err != nil {
			return "", fmt.Errorf("update resource %s/%s: %w", coll, localID, err)
		}
	}
	return serverID, nil
}

// DeleteResource tombstones a record by server or local id. Deleting an
// unknown record is a no-op, so replays stay idempotent.
func (db *ServerDB) DeleteResource(coll models.Collection, id string) error {
	_, err := db.conn.Exec(`
		UPDATE server_records SET deleted = 1, data = '{}', updated_at = ?
		WHERE collection = ? AND (server_id = ? OR local_id = ?)`,
		nowMillis(), coll, id, id,
	)
	if err != nil {
		return fmt.Errorf("delete resource %s/%s: %w", coll, id, err)
	}
	return nil
}

// Resource is a single authoritative record.
type Resource struct {
	Collection models.Collection `json:"collection"`
	ServerID   string            `json:"server_id"`
	LocalID    string            `json:"local_id,omitempty"`
	Data       json.RawMessage   `json:"data"`
	UpdatedAt  int64             `json:"updated_at"`
	Deleted    bool              `json:"deleted,omitempty"`
}

// GetResource fetches a record by server or local id.
func (db *ServerDB) GetResource(coll models.Collection, id string) (*Resource, error) {
	var res Resource
	var data string
	var deleted int
	err := db.conn.QueryRow(`
		SELECT collection, server_id, local_id, data, updated_at, deleted
		FROM server_records WHERE collection = ? AND (server_id = ? OR local_id = ?)`,
		coll, id, id,
	).Scan(&res.Collection, &res.ServerID, &res.LocalID, &data, &res.UpdatedAt, &deleted)
	if err != nil {
		return nil, fmt.Errorf("get resource %s/%s: %w", coll, id, err)
	}
	res.Data = json.RawMessage(data)
	res.Deleted = deleted != 0
	return &res, nil
}
