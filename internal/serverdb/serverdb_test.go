package serverdb

import (
	"database/sql"
	"encoding/json"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

func setupTestDB(t *testing.T) *ServerDB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db, err := OpenConn(conn)
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return db
}

// fixedClock pins the server clock and restores it afterwards.
func fixedClock(t *testing.T, millis int64) {
	t.Helper()
	prev := nowMillis
	nowMillis = func() int64 { return millis }
	t.Cleanup(func() { nowMillis = prev })
}

func pushOne(t *testing.T, db *ServerDB, coll models.Collection, localID, data string, lastPulledAt int64) PushOutcome {
	t.Helper()
	out, err := db.ApplyPush(models.ChangeSet{
		coll: {Created: []models.RemoteRecord{{LocalID: localID, Data: []byte(data)}}},
	}, lastPulledAt)
	if err != nil {
		t.Fatalf("apply push: %v", err)
	}
	return out
}

func TestApplyPushAssignsServerID(t *testing.T) {
	db := setupTestDB(t)

	out := pushOne(t, db, models.CollectionOrders, "l1", `{"n":1}`, 0)
	if len(out.Accepted) != 1 || out.Accepted[0].ServerID == "" {
		t.Fatalf("accepted: %+v", out.Accepted)
	}
	if len(out.Rejected)+len(out.Conflicts) != 0 {
		t.Fatalf("unexpected outcomes: %+v", out)
	}
}

func TestApplyPushIdempotent(t *testing.T) {
	db := setupTestDB(t)

	first := pushOne(t, db, models.CollectionOrders, "l1", `{"n":1}`, 0)
	again := pushOne(t, db, models.CollectionOrders, "l1", `{"n":1}`, 0)

	if len(again.Accepted) != 1 {
		t.Fatalf("re-push not accepted: %+v", again)
	}
	if again.Accepted[0].ServerID != first.Accepted[0].ServerID {
		t.Fatalf("server id changed on re-push: %s vs %s",
			again.Accepted[0].ServerID, first.Accepted[0].ServerID)
	}
}

func TestApplyPushConflictDetection(t *testing.T) {
	db := setupTestDB(t)

	fixedClock(t, 1000)
	pushOne(t, db, models.CollectionOrders, "l1", `{"status":"open"}`, 0)

	// Another device updates the record at t=2000.
	fixedClock(t, 2000)
	out, err := db.ApplyPush(models.ChangeSet{
		models.CollectionOrders: {Updated: []models.RemoteRecord{
			{LocalID: "l1", Data: []byte(`{"status":"cancelled"}`)},
		}},
	}, 1500)
	if err != nil {
		t.Fatalf("second device push: %v", err)
	}
	if len(out.Accepted) != 1 {
		t.Fatalf("second device: %+v", out)
	}

	// The first device pushes with a cursor older than that update.
	out, err = db.ApplyPush(models.ChangeSet{
		models.CollectionOrders: {Updated: []models.RemoteRecord{
			{LocalID: "l1", Data: []byte(`{"status":"served"}`)},
		}},
	}, 1500)
	if err != nil {
		t.Fatalf("stale push: %v", err)
	}
	if len(out.Conflicts) != 1 {
		t.Fatalf("expected conflict: %+v", out)
	}
	c := out.Conflicts[0]
	if string(c.ServerData) != `{"status":"cancelled"}` {
		t.Fatalf("conflict server data: %s", c.ServerData)
	}
	if string(c.LocalData) != `{"status":"served"}` {
		t.Fatalf("conflict local data: %s", c.LocalData)
	}

	// A push computed against a fresh cursor is a plain update.
	out, err = db.ApplyPush(models.ChangeSet{
		models.CollectionOrders: {Updated: []models.RemoteRecord{
			{LocalID: "l1", Data: []byte(`{"status":"served"}`)},
		}},
	}, 2500)
	if err != nil {
		t.Fatalf("fresh push: %v", err)
	}
	if len(out.Accepted) != 1 {
		t.Fatalf("fresh push not accepted: %+v", out)
	}
}

func TestApplyPushRejectsBadRecords(t *testing.T) {
	db := setupTestDB(t)

	out, err := db.ApplyPush(models.ChangeSet{
		models.CollectionOrders: {Created: []models.RemoteRecord{
			{LocalID: "", Data: []byte(`{}`)},
			{LocalID: "l2", Data: []byte(`not json`)},
		}},
		"invoices": {Created: []models.RemoteRecord{
			{LocalID: "l3", Data: []byte(`{}`)},
		}},
	}, 0)
	if err != nil {
		t.Fatalf("apply push: %v", err)
	}
	if len(out.Rejected) != 3 {
		t.Fatalf("rejected: %+v", out.Rejected)
	}
	if len(out.Accepted) != 0 {
		t.Fatalf("accepted: %+v", out.Accepted)
	}
}

func TestDeleteUnknownRecordAcked(t *testing.T) {
	db := setupTestDB(t)

	out, err := db.ApplyPush(models.ChangeSet{
		models.CollectionOrders: {Deleted: []string{"never-seen"}},
	}, 0)
	if err != nil {
		t.Fatalf("apply push: %v", err)
	}
	if len(out.Accepted) != 1 || out.Accepted[0].LocalID != "never-seen" {
		t.Fatalf("delete ack: %+v", out)
	}
}

func TestChangesSincePartition(t *testing.T) {
	db := setupTestDB(t)

	fixedClock(t, 1000)
	pushOne(t, db, models.CollectionOrders, "old", `{"n":0}`, 0)

	fixedClock(t, 2000)
	pushOne(t, db, models.CollectionOrders, "created", `{"n":1}`, 0)
	out, err := db.ApplyPush(models.ChangeSet{
		models.CollectionOrders: {Updated: []models.RemoteRecord{
			{LocalID: "old", Data: []byte(`{"n":9}`)},
		}},
	}, 1500)
	if err != nil || len(out.Accepted) != 1 {
		t.Fatalf("update old: %v %+v", err, out)
	}

	fixedClock(t, 2500)
	if _, err := db.ApplyPush(models.ChangeSet{
		models.CollectionOrders: {Deleted: []string{"created"}},
	}, 2200); err != nil {
		t.Fatalf("delete: %v", err)
	}

	fixedClock(t, 3000)
	changes, ts, err := db.ChangesSince(1500)
	if err != nil {
		t.Fatalf("changes since: %v", err)
	}
	if ts != 3000 {
		t.Fatalf("timestamp: %d", ts)
	}

	delta := changes[models.CollectionOrders]
	// "created" was inserted after the watermark but then tombstoned, so
	// it surfaces as a delete. "old" predates the watermark: an update.
	if len(delta.Updated) != 1 || delta.Updated[0].LocalID != "old" {
		t.Fatalf("updated: %+v", delta.Updated)
	}
	if len(delta.Deleted) != 1 {
		t.Fatalf("deleted: %+v", delta.Deleted)
	}
	if len(delta.Created) != 0 {
		t.Fatalf("created: %+v", delta.Created)
	}

	// A full pull (since 0) sees "old" as created and skips nothing.
	changes, _, err = db.ChangesSince(0)
	if err != nil {
		t.Fatalf("full pull: %v", err)
	}
	delta = changes[models.CollectionOrders]
	if len(delta.Created) != 1 || delta.Created[0].LocalID != "old" {
		t.Fatalf("full pull created: %+v", delta.Created)
	}
}

func TestUpsertResourceIdempotent(t *testing.T) {
	db := setupTestDB(t)

	id1, err := db.UpsertResource(models.CollectionMenuItems, "l1", json.RawMessage(`{"name":"soup"}`))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	id2, err := db.UpsertResource(models.CollectionMenuItems, "l1", json.RawMessage(`{"name":"stew"}`))
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("server id changed: %s vs %s", id1, id2)
	}

	res, err := db.GetResource(models.CollectionMenuItems, id1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(res.Data) != `{"name":"stew"}` {
		t.Fatalf("data: %s", res.Data)
	}
}

func TestDeleteResourceIdempotent(t *testing.T) {
	db := setupTestDB(t)

	id, err := db.UpsertResource(models.CollectionOrders, "l1", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := db.DeleteResource(models.CollectionOrders, id); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}
	if err := db.DeleteResource(models.CollectionOrders, "unknown"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}

	res, err := db.GetResource(models.CollectionOrders, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !res.Deleted {
		t.Fatal("tombstone flag not set")
	}
}

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)
	fixedClock(t, 4000)
	pushOne(t, db, models.CollectionOrders, "l1", `{}`, 0)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.RecordCount != 1 || stats.LastUpdated != 4000 {
		t.Fatalf("stats: %+v", stats)
	}
}
