package store

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s, err := OpenConn(conn)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return s
}

func TestCreateGetUpdate(t *testing.T) {
	s := setupTestStore(t)

	rec := &models.Record{Collection: models.CollectionOrders, Data: []byte(`{"table":4}`)}
	if err := s.Create(rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.LocalID == "" {
		t.Fatal("create did not assign a local id")
	}
	if rec.SyncStatus != models.SyncPending {
		t.Fatalf("status: got %s, want pending", rec.SyncStatus)
	}

	got, err := s.Get(models.CollectionOrders, rec.LocalID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Data) != `{"table":4}` {
		t.Fatalf("data: got %s", got.Data)
	}

	got.Data = []byte(`{"table":7}`)
	if err := s.Update(got); err != nil {
		t.Fatalf("update: %v", err)
	}

	again, err := s.Get(models.CollectionOrders, rec.LocalID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if string(again.Data) != `{"table":7}` {
		t.Fatalf("data after update: got %s", again.Data)
	}
	if again.SyncStatus != models.SyncPending {
		t.Fatalf("status after update: got %s", again.SyncStatus)
	}
}

func TestCreateUnknownCollection(t *testing.T) {
	s := setupTestStore(t)
	err := s.Create(&models.Record{Collection: "invoices"})
	if err == nil {
		t.Fatal("expected error for unknown collection")
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	s := setupTestStore(t)
	err := s.Update(&models.Record{Collection: models.CollectionOrders, LocalID: "nope"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMarkDeleteKeepsTombstone(t *testing.T) {
	s := setupTestStore(t)

	rec := &models.Record{Collection: models.CollectionOrders, Data: []byte(`{"table":1}`)}
	if err := s.Create(rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkDelete(models.CollectionOrders, rec.LocalID); err != nil {
		t.Fatalf("mark delete: %v", err)
	}

	got, err := s.Get(models.CollectionOrders, rec.LocalID)
	if err != nil {
		t.Fatalf("get tombstone: %v", err)
	}
	if !got.IsDeleted {
		t.Fatal("tombstone flag not set")
	}
	if got.SyncStatus != models.SyncPending {
		t.Fatalf("tombstone status: got %s, want pending", got.SyncStatus)
	}

	// Tombstones are hidden from normal listing but kept in the table.
	visible, err := s.List(models.CollectionOrders, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("visible records: got %d, want 0", len(visible))
	}
	all, err := s.List(models.CollectionOrders, true)
	if err != nil {
		t.Fatalf("list deleted: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("all records: got %d, want 1", len(all))
	}
}

func TestMarkSyncedIdempotent(t *testing.T) {
	s := setupTestStore(t)

	rec := &models.Record{Collection: models.CollectionShifts, Data: []byte(`{"staff_id":"s1"}`)}
	if err := s.Create(rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.MarkSynced(models.CollectionShifts, rec.LocalID, "srv-1"); err != nil {
			t.Fatalf("mark synced #%d: %v", i+1, err)
		}
	}

	got, err := s.Get(models.CollectionShifts, rec.LocalID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SyncStatus != models.SyncSynced || got.ServerID != "srv-1" {
		t.Fatalf("got status=%s server_id=%s", got.SyncStatus, got.ServerID)
	}

	// A different server id for an already-assigned row changes nothing.
	if err := s.MarkSynced(models.CollectionShifts, rec.LocalID, "srv-2"); err != nil {
		t.Fatalf("mark synced with other id: %v", err)
	}
	got, _ = s.Get(models.CollectionShifts, rec.LocalID)
	if got.ServerID != "srv-1" {
		t.Fatalf("server id overwritten: got %s", got.ServerID)
	}
}

func TestPendingChangesPartition(t *testing.T) {
	s := setupTestStore(t)

	created := &models.Record{Collection: models.CollectionOrders, Data: []byte(`{"n":1}`)}
	if err := s.Create(created); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated := &models.Record{Collection: models.CollectionOrders, Data: []byte(`{"n":2}`)}
	if err := s.Create(updated); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkSynced(models.CollectionOrders, updated.LocalID, "srv-u"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	updated.Data = []byte(`{"n":3}`)
	if err := s.Update(updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	deleted := &models.Record{Collection: models.CollectionMenuItems, Data: []byte(`{"name":"soup"}`)}
	if err := s.Create(deleted); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkSynced(models.CollectionMenuItems, deleted.LocalID, "srv-d"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := s.MarkDelete(models.CollectionMenuItems, deleted.LocalID); err != nil {
		t.Fatalf("mark delete: %v", err)
	}

	changes, err := s.PendingChanges()
	if err != nil {
		t.Fatalf("pending changes: %v", err)
	}

	orders := changes[models.CollectionOrders]
	if len(orders.Created) != 1 || orders.Created[0].LocalID != created.LocalID {
		t.Fatalf("created delta: %+v", orders.Created)
	}
	if len(orders.Updated) != 1 || orders.Updated[0].ServerID != "srv-u" {
		t.Fatalf("updated delta: %+v", orders.Updated)
	}

	menu := changes[models.CollectionMenuItems]
	if len(menu.Deleted) != 1 || menu.Deleted[0] != "srv-d" {
		t.Fatalf("deleted delta: %+v", menu.Deleted)
	}

	tombs, err := s.PendingTombstones()
	if err != nil {
		t.Fatalf("tombstones: %v", err)
	}
	if _, ok := tombs["srv-d"]; !ok {
		t.Fatalf("tombstone map missing srv-d: %v", tombs)
	}
}

func TestApplyRemoteChanges(t *testing.T) {
	s := setupTestStore(t)

	changes := models.ChangeSet{
		models.CollectionOrders: {
			Created: []models.RemoteRecord{
				{ServerID: "srv-1", Data: []byte(`{"n":1}`), LastModified: 100},
			},
		},
	}
	if err := s.ApplyRemoteChanges(changes, 1000); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := s.GetByServerID(models.CollectionOrders, "srv-1")
	if err != nil {
		t.Fatalf("get pulled record: %v", err)
	}
	if got.SyncStatus != models.SyncSynced {
		t.Fatalf("pulled status: got %s", got.SyncStatus)
	}

	cursor, err := s.Cursor()
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor.LastPulledAt != 1000 {
		t.Fatalf("cursor: got %d, want 1000", cursor.LastPulledAt)
	}

	// Remote update for a synced row overwrites it.
	changes = models.ChangeSet{
		models.CollectionOrders: {
			Updated: []models.RemoteRecord{
				{ServerID: "srv-1", Data: []byte(`{"n":2}`), LastModified: 200},
			},
		},
	}
	if err := s.ApplyRemoteChanges(changes, 2000); err != nil {
		t.Fatalf("apply update: %v", err)
	}
	got, _ = s.GetByServerID(models.CollectionOrders, "srv-1")
	if string(got.Data) != `{"n":2}` {
		t.Fatalf("after remote update: %s", got.Data)
	}

	// Remote delete removes the row outright.
	changes = models.ChangeSet{
		models.CollectionOrders: {Deleted: []string{"srv-1"}},
	}
	if err := s.ApplyRemoteChanges(changes, 3000); err != nil {
		t.Fatalf("apply delete: %v", err)
	}
	if _, err := s.GetByServerID(models.CollectionOrders, "srv-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after remote delete: %v", err)
	}
}

func TestApplyRemoteDeleteSparesPendingEdit(t *testing.T) {
	s := setupTestStore(t)

	rec := &models.Record{Collection: models.CollectionOrders, Data: []byte(`{"n":1}`)}
	if err := s.Create(rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkSynced(models.CollectionOrders, rec.LocalID, "srv-1"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	// An offline edit lands before the pull carrying the remote delete.
	rec.Data = []byte(`{"n":2}`)
	if err := s.Update(rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	changes := models.ChangeSet{
		models.CollectionOrders: {Deleted: []string{"srv-1"}},
	}
	if err := s.ApplyRemoteChanges(changes, 4000); err != nil {
		t.Fatalf("apply delete: %v", err)
	}

	// The edit survives and stays pending for push reconciliation.
	got, err := s.Get(models.CollectionOrders, rec.LocalID)
	if err != nil {
		t.Fatalf("pending edit destroyed by remote delete: %v", err)
	}
	if got.SyncStatus != models.SyncPending {
		t.Fatalf("status: got %s, want pending", got.SyncStatus)
	}
	if string(got.Data) != `{"n":2}` {
		t.Fatalf("data: got %s", got.Data)
	}

	cursor, err := s.Cursor()
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor.LastPulledAt != 4000 {
		t.Fatalf("cursor: got %d, want 4000", cursor.LastPulledAt)
	}
}

func TestApplyRemoteRollsBackWholeBatch(t *testing.T) {
	s := setupTestStore(t)

	// The second record is malformed; the first must not survive either,
	// and the cursor must not move.
	changes := models.ChangeSet{
		models.CollectionOrders: {
			Created: []models.RemoteRecord{
				{ServerID: "srv-ok", Data: []byte(`{"n":1}`), LastModified: 100},
				{ServerID: "srv-bad", Data: nil, LastModified: 100},
			},
		},
	}
	if err := s.ApplyRemoteChanges(changes, 5000); err == nil {
		t.Fatal("expected error from poisoned batch")
	}

	if _, err := s.GetByServerID(models.CollectionOrders, "srv-ok"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("partial apply leaked a row: %v", err)
	}
	cursor, err := s.Cursor()
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor.LastPulledAt != 0 {
		t.Fatalf("cursor advanced on failed pull: %d", cursor.LastPulledAt)
	}
}

func TestApplyRemoteSkipsPendingRows(t *testing.T) {
	s := setupTestStore(t)

	rec := &models.Record{Collection: models.CollectionOrders, Data: []byte(`{"local":true}`)}
	if err := s.Create(rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkSynced(models.CollectionOrders, rec.LocalID, "srv-1"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	rec.Data = []byte(`{"local":"edit"}`)
	if err := s.Update(rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	changes := models.ChangeSet{
		models.CollectionOrders: {
			Updated: []models.RemoteRecord{
				{ServerID: "srv-1", Data: []byte(`{"remote":true}`), LastModified: 500},
			},
		},
	}
	if err := s.ApplyRemoteChanges(changes, 5000); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := s.Get(models.CollectionOrders, rec.LocalID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Data) != `{"local":"edit"}` {
		t.Fatalf("pending row was overwritten: %s", got.Data)
	}
	if got.SyncStatus != models.SyncPending {
		t.Fatalf("pending row status changed: %s", got.SyncStatus)
	}
}

func TestApplyRemoteSkipsUnknownCollection(t *testing.T) {
	s := setupTestStore(t)

	changes := models.ChangeSet{
		"invoices": {
			Created: []models.RemoteRecord{{ServerID: "x", Data: []byte(`{}`)}},
		},
		models.CollectionStaff: {
			Created: []models.RemoteRecord{{ServerID: "srv-s", Data: []byte(`{"name":"Ana"}`)}},
		},
	}
	if err := s.ApplyRemoteChanges(changes, 100); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := s.GetByServerID(models.CollectionStaff, "srv-s"); err != nil {
		t.Fatalf("known collection not applied: %v", err)
	}
}

func TestCursorMonotonic(t *testing.T) {
	s := setupTestStore(t)

	if err := s.ApplyRemoteChanges(models.ChangeSet{}, 5000); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := s.ApplyRemoteChanges(models.ChangeSet{}, 3000); err != nil {
		t.Fatalf("apply older timestamp: %v", err)
	}

	cursor, err := s.Cursor()
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor.LastPulledAt != 5000 {
		t.Fatalf("cursor moved backwards: got %d", cursor.LastPulledAt)
	}

	if err := s.ResetCursor(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	cursor, _ = s.Cursor()
	if cursor.LastPulledAt != 0 {
		t.Fatalf("cursor after reset: got %d", cursor.LastPulledAt)
	}
}

func TestShadowsIdempotent(t *testing.T) {
	s := setupTestStore(t)

	local := []byte(`{"mine":1}`)
	remote := []byte(`{"theirs":2}`)
	for i := 0; i < 2; i++ {
		if err := s.SaveShadow(models.CollectionOrders, "l1", local, remote); err != nil {
			t.Fatalf("save shadow #%d: %v", i+1, err)
		}
	}

	n, err := s.CountShadows()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("shadows: got %d, want 1", n)
	}

	shadows, err := s.ListShadows(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if string(shadows[0].LocalData) != `{"mine":1}` {
		t.Fatalf("shadow data: %s", shadows[0].LocalData)
	}

	if err := s.DeleteShadow(shadows[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, _ = s.CountShadows()
	if n != 0 {
		t.Fatalf("shadows after delete: got %d", n)
	}
}
