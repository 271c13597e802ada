package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Create inserts a new domain record. A missing LocalID is generated. The
// row starts pending and carries the local write timestamp.
func (s *Store) Create(rec *models.Record) error {
	if !models.KnownCollection(rec.Collection) {
		return fmt.Errorf("unknown collection %q", rec.Collection)
	}
	if rec.LocalID == "" {
		rec.LocalID = uuid.NewString()
	}
	if len(rec.Data) == 0 {
		rec.Data = []byte("{}")
	}
	rec.SyncStatus = models.SyncPending
	rec.LastModified = nowMillis()
	rec.IsDeleted = false

	_, err := s.conn.Exec(`
		INSERT INTO records (collection, local_id, server_id, data, sync_status, last_modified, is_deleted)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, 0)`,
		rec.Collection, rec.LocalID, rec.ServerID, string(rec.Data), rec.SyncStatus, rec.LastModified,
	)
	if err != nil {
		return fmt.Errorf("create record %s/%s: %w", rec.Collection, rec.LocalID, err)
	}
	return nil
}

// Update overwrites the data blob of an existing record and marks it pending.
func (s *Store) Update(rec *models.Record) error {
	rec.SyncStatus = models.SyncPending
	rec.LastModified = nowMillis()

	res, err := s.conn.Exec(`
		UPDATE records SET data = ?, sync_status = ?, last_modified = ?
		WHERE collection = ? AND local_id = ? AND is_deleted = 0`,
		string(rec.Data), rec.SyncStatus, rec.LastModified, rec.Collection, rec.LocalID,
	)
	if err != nil {
		return fmt.Errorf("update record %s/%s: %w", rec.Collection, rec.LocalID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %s/%s: %w", rec.Collection, rec.LocalID, ErrNotFound)
	}
	return nil
}

// MarkDelete sets the tombstone flag. The row is retained, and still returned
// by reads, until the server acknowledges the delete.
func (s *Store) MarkDelete(collection models.Collection, localID string) error {
	res, err := s.conn.Exec(`
		UPDATE records SET is_deleted = 1, sync_status = ?, last_modified = ?
		WHERE collection = ? AND local_id = ?`,
		models.SyncPending, nowMillis(), collection, localID,
	)
	if err != nil {
		return fmt.Errorf("mark delete %s/%s: %w", collection, localID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark delete %s/%s: %w", collection, localID, ErrNotFound)
	}
	return nil
}

// Get returns a record by local identifier, tombstones included.
func (s *Store) Get(collection models.Collection, localID string) (*models.Record, error) {
	row := s.conn.QueryRow(`
		SELECT collection, local_id, COALESCE(server_id, ''), data, sync_status, last_modified, is_deleted
		FROM records WHERE collection = ? AND local_id = ?`,
		collection, localID,
	)
	return scanRecord(row)
}

// GetByServerID returns a record by server identifier.
func (s *Store) GetByServerID(collection models.Collection, serverID string) (*models.Record, error) {
	row := s.conn.QueryRow(`
		SELECT collection, local_id, COALESCE(server_id, ''), data, sync_status, last_modified, is_deleted
		FROM records WHERE collection = ? AND server_id = ?`,
		collection, serverID,
	)
	return scanRecord(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var rec models.Record
	var data string
	var deleted int
	err := row.Scan(&rec.Collection, &rec.LocalID, &rec.ServerID, &data, &rec.SyncStatus, &rec.LastModified, &deleted)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	rec.Data = []byte(data)
	rec.IsDeleted = deleted != 0
	return &rec, nil
}

// List returns all records in a collection ordered by last_modified.
// Tombstones are included only when includeDeleted is set.
func (s *Store) List(collection models.Collection, includeDeleted bool) ([]models.Record, error) {
	q := `
		SELECT collection, local_id, COALESCE(server_id, ''), data, sync_status, last_modified, is_deleted
		FROM records WHERE collection = ?`
	if !includeDeleted {
		q += ` AND is_deleted = 0`
	}
	q += ` ORDER BY last_modified ASC, local_id ASC`

	rows, err := s.conn.Query(q, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var recs []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// MarkSynced transitions a pending record to synced and fills its server
// identifier. Idempotent: a second call with the same serverID is a no-op.
func (s *Store) MarkSynced(collection models.Collection, localID, serverID string) error {
	_, err := s.conn.Exec(`
		UPDATE records SET sync_status = ?, server_id = ?
		WHERE collection = ? AND local_id = ? AND (server_id IS NULL OR server_id = ?)`,
		models.SyncSynced, serverID, collection, localID, serverID,
	)
	if err != nil {
		return fmt.Errorf("mark synced %s/%s: %w", collection, localID, err)
	}
	return nil
}

// SetSyncStatus overwrites the sync status of a record. Used to park rejected
// records in the failed state and conflicted records in the conflict state.
func (s *Store) SetSyncStatus(collection models.Collection, localID string, status models.SyncStatus) error {
	_, err := s.conn.Exec(`
		UPDATE records SET sync_status = ? WHERE collection = ? AND local_id = ?`,
		status, collection, localID,
	)
	if err != nil {
		return fmt.Errorf("set status %s/%s: %w", collection, localID, err)
	}
	return nil
}

// Purge physically removes a record. Only valid once the server has
// acknowledged its deletion (or never knew it existed).
func (s *Store) Purge(collection models.Collection, localID string) error {
	_, err := s.conn.Exec(`DELETE FROM records WHERE collection = ? AND local_id = ?`, collection, localID)
	if err != nil {
		return fmt.Errorf("purge %s/%s: %w", collection, localID, err)
	}
	return nil
}

// PutResolved writes the outcome of a conflict resolution: final data, final
// status, and the server identifier when known. Idempotent by construction:
// it is a plain overwrite keyed by local_id.
func (s *Store) PutResolved(collection models.Collection, localID, serverID string, data []byte, status models.SyncStatus) error {
	_, err := s.conn.Exec(`
		UPDATE records SET data = ?, sync_status = ?, server_id = COALESCE(NULLIF(?, ''), server_id), last_modified = ?
		WHERE collection = ? AND local_id = ?`,
		string(data), status, serverID, nowMillis(), collection, localID,
	)
	if err != nil {
		return fmt.Errorf("put resolved %s/%s: %w", collection, localID, err)
	}
	return nil
}

// CountPending returns the number of records awaiting push.
func (s *Store) CountPending() (int64, error) {
	var n int64
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM records WHERE sync_status = ?`, models.SyncPending).Scan(&n)
	return n, err
}

// PendingChanges builds the collection-delta push payload from all pending
// rows. Rows created offline without a matching queue entry are picked up
// here, which is what makes the non-atomic write+enqueue pairing safe.
func (s *Store) PendingChanges() (models.ChangeSet, error) {
	rows, err := s.conn.Query(`
		SELECT collection, local_id, COALESCE(server_id, ''), data, last_modified, is_deleted
		FROM records WHERE sync_status = ? ORDER BY last_modified ASC, local_id ASC`,
		models.SyncPending,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	changes := models.ChangeSet{}
	for rows.Next() {
		var (
			coll     models.Collection
			localID  string
			serverID string
			data     string
			modified int64
			deleted  int
		)
		if err := rows.Scan(&coll, &localID, &serverID, &data, &modified, &deleted); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}

		delta := changes[coll]
		switch {
		case deleted != 0:
			// Tombstones are pushed by server id when the server knows the
			// row, by local id otherwise (the server acks unknown ids).
			id := serverID
			if id == "" {
				id = localID
			}
			delta.Deleted = append(delta.Deleted, id)
		case serverID == "":
			delta.Created = append(delta.Created, models.RemoteRecord{
				LocalID: localID, Data: []byte(data), LastModified: modified,
			})
		default:
			delta.Updated = append(delta.Updated, models.RemoteRecord{
				LocalID: localID, ServerID: serverID, Data: []byte(data), LastModified: modified,
			})
		}
		changes[coll] = delta
	}
	return changes, rows.Err()
}

// PendingTombstones maps pushed delete identifiers back to local ids, so an
// accepted delete can be matched to its tombstone row.
func (s *Store) PendingTombstones() (map[string]models.Record, error) {
	rows, err := s.conn.Query(`
		SELECT collection, local_id, COALESCE(server_id, ''), data, sync_status, last_modified, is_deleted
		FROM records WHERE sync_status = ? AND is_deleted = 1`,
		models.SyncPending,
	)
	if err != nil {
		return nil, fmt.Errorf("query tombstones: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.Record)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		id := rec.ServerID
		if id == "" {
			id = rec.LocalID
		}
		out[id] = *rec
	}
	return out, rows.Err()
}

// ApplyRemoteChanges applies a pull's change set and advances the cursor in
// one transaction. A failure anywhere rolls the whole pull back, leaving both
// the records and the cursor untouched so the pull can be retried from
// scratch.
//
// Rows with pending local edits are never overwritten here; the push
// reconciliation reports those as conflicts.
func (s *Store) ApplyRemoteChanges(changes models.ChangeSet, newLastPulledAt int64) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for coll, delta := range changes {
		if !models.KnownCollection(coll) {
			slog.Warn("pull: skipping unknown collection", "collection", coll)
			continue
		}
		for _, rr := range delta.Created {
			if err := upsertRemote(tx, coll, rr); err != nil {
				return err
			}
		}
		for _, rr := range delta.Updated {
			if err := upsertRemote(tx, coll, rr); err != nil {
				return err
			}
		}
		for _, serverID := range delta.Deleted {
			// Rows with pending local edits survive a remote delete, same
			// as the upsert path; push reconciliation reports the
			// divergence instead of dropping the edit on the floor.
			if _, err := tx.Exec(`
				DELETE FROM records WHERE collection = ? AND (server_id = ? OR local_id = ?)
				AND sync_status != ?`,
				coll, serverID, serverID, models.SyncPending,
			); err != nil {
				return fmt.Errorf("apply delete %s/%s: %w", coll, serverID, err)
			}
		}
	}

	// Monotonic: the cursor never moves backwards even if the server clock did.
	if _, err := tx.Exec(`
		UPDATE sync_cursor SET last_pulled_at = MAX(last_pulled_at, ?) WHERE id = 1`,
		newLastPulledAt,
	); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pull: %w", err)
	}
	return nil
}

// upsertRemote applies one remote record: match by server id, then by local
// id, else insert a fresh row. Pending rows are left alone.
func upsertRemote(tx *sql.Tx, coll models.Collection, rr models.RemoteRecord) error {
	if len(rr.Data) == 0 {
		return fmt.Errorf("apply %s/%s: empty data", coll, rr.ServerID)
	}

	var localID string
	var status models.SyncStatus
	err := tx.QueryRow(`
		SELECT local_id, sync_status FROM records
		WHERE collection = ? AND (server_id = ? OR local_id = ?)`,
		coll, rr.ServerID, rr.LocalID,
	).Scan(&localID, &status)

	switch {
	case err == sql.ErrNoRows:
		localID = rr.LocalID
		if localID == "" {
			localID = uuid.NewString()
		}
		if _, err := tx.Exec(`
			INSERT INTO records (collection, local_id, server_id, data, sync_status, last_modified, is_deleted)
			VALUES (?, ?, ?, ?, ?, ?, 0)`,
			coll, localID, rr.ServerID, string(rr.Data), models.SyncSynced, remoteModified(rr),
		); err != nil {
			return fmt.Errorf("insert remote %s/%s: %w", coll, rr.ServerID, err)
		}
	case err != nil:
		return fmt.Errorf("lookup remote %s/%s: %w", coll, rr.ServerID, err)
	case status == models.SyncPending:
		// Local edits outrank a pull; push reconciliation decides.
		slog.Debug("pull: skipping locally modified row", "collection", coll, "local_id", localID)
	default:
		if _, err := tx.Exec(`
			UPDATE records SET data = ?, server_id = ?, sync_status = ?, last_modified = ?, is_deleted = 0
			WHERE collection = ? AND local_id = ?`,
			string(rr.Data), rr.ServerID, models.SyncSynced, remoteModified(rr), coll, localID,
		); err != nil {
			return fmt.Errorf("update remote %s/%s: %w", coll, rr.ServerID, err)
		}
	}
	return nil
}

func remoteModified(rr models.RemoteRecord) int64 {
	if rr.LastModified > 0 {
		return rr.LastModified
	}
	return nowMillis()
}
