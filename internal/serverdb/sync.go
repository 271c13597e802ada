package serverdb

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

// Accepted confirms one pushed change and carries its server identifier.
type Accepted struct {
	Collection models.Collection
	LocalID    string
	ServerID   string
}

// Rejected explains why one pushed change was refused.
type Rejected struct {
	Collection models.Collection
	LocalID    string
	Reason     string
	Code       string
}

// Conflicted reports a record changed on the server since the client's
// last pull.
type Conflicted struct {
	Collection models.Collection
	LocalID    string
	ServerID   string
	LocalData  json.RawMessage
	ServerData json.RawMessage
}

// PushOutcome partitions a push per-item.
type PushOutcome struct {
	Accepted  []Accepted
	Rejected  []Rejected
	Conflicts []Conflicted
}

// ChangesSince returns every change after the given watermark, partitioned
// into created/updated/deleted per collection, plus the server timestamp the
// client's cursor should advance to.
func (db *ServerDB) ChangesSince(since int64) (models.ChangeSet, int64, error) {
	now := nowMillis()
	rows, err := db.conn.Query(`
		SELECT collection, server_id, local_id, data, created_at, updated_at, deleted
		FROM server_records WHERE updated_at > ?
		ORDER BY updated_at ASC, server_id ASC`, since)
	if err != nil {
		return nil, 0, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	changes := models.ChangeSet{}
	for rows.Next() {
		var (
			coll                 models.Collection
			serverID, localID    string
			data                 string
			createdAt, updatedAt int64
			deleted              int
		)
		if err := rows.Scan(&coll, &serverID, &localID, &data, &createdAt, &updatedAt, &deleted); err != nil {
			return nil, 0, fmt.Errorf("scan change: %w", err)
		}

		delta := changes[coll]
		switch {
		case deleted != 0:
			delta.Deleted = append(delta.Deleted, serverID)
		case createdAt > since:
			delta.Created = append(delta.Created, models.RemoteRecord{
				LocalID: localID, ServerID: serverID, Data: []byte(data), LastModified: updatedAt,
			})
		default:
			delta.Updated = append(delta.Updated, models.RemoteRecord{
				LocalID: localID, ServerID: serverID, Data: []byte(data), LastModified: updatedAt,
			})
		}
		changes[coll] = delta
	}
	return changes, now, rows.Err()
}

// ApplyPush reconciles a client's change set against the authoritative copy.
// Application is idempotent: re-pushing an already-accepted create is
// accepted again with the same server identifier. A record the server
// modified after the client's lastPulledAt, with different content, is a
// conflict. Everything runs in one transaction; partial-batch outcomes are
// per-item, not per-batch.
func (db *ServerDB) ApplyPush(changes models.ChangeSet, lastPulledAt int64) (PushOutcome, error) {
	var out PushOutcome

	tx, err := db.conn.Begin()
	if err != nil {
		return out, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := nowMillis()
	for _, coll := range models.Collections {
		delta, ok := changes[coll]
		if !ok {
			continue
		}
		for _, rr := range delta.Created {
			db.applyUpsert(tx, coll, rr, lastPulledAt, now, &out)
		}
		for _, rr := range delta.Updated {
			db.applyUpsert(tx, coll, rr, lastPulledAt, now, &out)
		}
		for _, id := range delta.Deleted {
			if err := applyDelete(tx, coll, id, now, &out); err != nil {
				return out, err
			}
		}
	}

	// Unknown collections are rejected per-item, not dropped.
	for coll, delta := range changes {
		if models.KnownCollection(coll) {
			continue
		}
		for _, rr := range append(delta.Created, delta.Updated...) {
			out.Rejected = append(out.Rejected, Rejected{
				Collection: coll, LocalID: rr.LocalID,
				Reason: fmt.Sprintf("unknown collection %q", coll), Code: "unknown_collection",
			})
		}
		for _, id := range delta.Deleted {
			out.Rejected = append(out.Rejected, Rejected{
				Collection: coll, LocalID: id,
				Reason: fmt.Sprintf("unknown collection %q", coll), Code: "unknown_collection",
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return out, fmt.Errorf("commit push: %w", err)
	}
	return out, nil
}

func (db *ServerDB) applyUpsert(tx *sql.Tx, coll models.Collection, rr models.RemoteRecord, lastPulledAt, now int64, out *PushOutcome) {
	if rr.LocalID == "" {
		out.Rejected = append(out.Rejected, Rejected{
			Collection: coll, Reason: "missing local_id", Code: "bad_record",
		})
		return
	}
	if !json.Valid(rr.Data) || len(rr.Data) == 0 {
		out.Rejected = append(out.Rejected, Rejected{
			Collection: coll, LocalID: rr.LocalID, Reason: "malformed data payload", Code: "bad_record",
		})
		return
	}

	var (
		serverID  string
		data      string
		updatedAt int64
		deleted   int
	)
	err := tx.QueryRow(`
		SELECT server_id, data, updated_at, deleted FROM server_records
		WHERE collection = ? AND (local_id = ? OR server_id = ?)`,
		coll, rr.LocalID, rr.ServerID,
	).Scan(&serverID, &data, &updatedAt, &deleted)

	switch {
	case err == sql.ErrNoRows:
		serverID = uuid.NewString()
		if _, err := tx.Exec(`
			INSERT INTO server_records (collection, server_id, local_id, data, created_at, updated_at, deleted)
			VALUES (?, ?, ?, ?, ?, ?, 0)`,
			coll, serverID, rr.LocalID, string(rr.Data), now, now,
		); err != nil {
			out.Rejected = append(out.Rejected, Rejected{
				Collection: coll, LocalID: rr.LocalID, Reason: err.Error(), Code: "storage_error",
			})
			return
		}
		out.Accepted = append(out.Accepted, Accepted{Collection: coll, LocalID: rr.LocalID, ServerID: serverID})

	case err != nil:
		out.Rejected = append(out.Rejected, Rejected{
			Collection: coll, LocalID: rr.LocalID, Reason: err.Error(), Code: "storage_error",
		})

	case data == string(rr.Data) && deleted == 0:
		// Idempotent re-push: same content, same answer.
		out.Accepted = append(out.Accepted, Accepted{Collection: coll, LocalID: rr.LocalID, ServerID: serverID})

	case updatedAt > lastPulledAt:
		// Changed on the server since the client last pulled: both sides
		// diverged, the client resolves.
		out.Conflicts = append(out.Conflicts, Conflicted{
			Collection: coll, LocalID: rr.LocalID, ServerID: serverID,
			LocalData: rr.Data, ServerData: json.RawMessage(data),
		})

	default:
		if _, err := tx.Exec(`
			UPDATE server_records SET data = ?, local_id = ?, updated_at = ?, deleted = 0
			WHERE collection = ? AND server_id = ?`,
			string(rr.Data), rr.LocalID, now, coll, serverID,
		); err != nil {
			out.Rejected = append(out.Rejected, Rejected{
				Collection: coll, LocalID: rr.LocalID, Reason: err.Error(), Code: "storage_error",
			})
			return
		}
		out.Accepted = append(out.Accepted, Accepted{Collection: coll, LocalID: rr.LocalID, ServerID: serverID})
	}
}

// applyDelete tombstones a record. Deleting a record the server never saw is
// acknowledged as a no-op so the client can drop its tombstone.
func applyDelete(tx *sql.Tx, coll models.Collection, id string, now int64, out *PushOutcome) error {
	res, err := tx.Exec(`
		UPDATE server_records SET deleted = 1, data = '{}', updated_at = ?
		WHERE collection = ? AND (server_id = ? OR local_id = ?)`,
		now, coll, id, id,
	)
	if err != nil {
		return fmt.Errorf("apply delete %s/%s: %w", coll, id, err)
	}
	var serverID string
	if n, _ := res.RowsAffected(); n > 0 {
		tx.QueryRow(`SELECT server_id FROM server_records WHERE collection = ? AND (server_id = ? OR local_id = ?)`,
			coll, id, id).Scan(&serverID)
	}
	out.Accepted = append(out.Accepted, Accepted{Collection: coll, LocalID: id, ServerID: serverID})
	return nil
}

// Stats summarises the server store for the status endpoint.
type Stats struct {
	RecordCount int64
	LastUpdated int64
}

// GetStats returns record count and the newest update timestamp.
func (db *ServerDB) GetStats() (Stats, error) {
	var s Stats
	err := db.conn.QueryRow(`
		SELECT COUNT(*), COALESCE(MAX(updated_at), 0) FROM server_records WHERE deleted = 0`,
	).Scan(&s.RecordCount, &s.LastUpdated)
	if err != nil {
		return s, fmt.Errorf("server stats: %w", err)
	}
	return s, nil
}
