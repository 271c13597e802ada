// Package syncharness runs multi-client end-to-end sync scenarios against a
// real in-process server. Each simulated client carries the full field-client
// stack (store, mutation queue, sync engine) over its own in-memory database;
// the server side is the real HTTP handler over a real server database.
package syncharness

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/api"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/queue"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/serverdb"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncclient"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncengine"
)

const harnessAPIKey = "harness-key"

// SimulatedClient is one field device: its local store, queue, engine and
// HTTP client, all backed by a private in-memory database.
type SimulatedClient struct {
	DeviceID string
	Store    *store.Store
	Queue    *queue.Queue
	Client   *syncclient.Client
	Engine   *syncengine.Engine
}

// Harness wires N simulated clients to one in-process sync server.
type Harness struct {
	t       *testing.T
	Server  *serverdb.ServerDB
	URL     string
	Clients map[string]*SimulatedClient
	names   []string
}

// NewHarness starts a server over an in-memory database and creates
// numClients clients named client-A, client-B, ...
func NewHarness(t *testing.T, numClients int) *Harness {
	t.Helper()

	serverConn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}
	sdb, err := serverdb.OpenConn(serverConn)
	if err != nil {
		t.Fatalf("init server db: %v", err)
	}
	t.Cleanup(func() { sdb.Close() })

	srv := api.NewServer(api.Config{APIKey: harnessAPIKey}, sdb)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	h := &Harness{
		t:       t,
		Server:  sdb,
		URL:     ts.URL,
		Clients: make(map[string]*SimulatedClient),
	}

	for i := 0; i < numClients; i++ {
		letter := string(rune('A' + i))
		name := "client-" + letter
		deviceID := fmt.Sprintf("device-%s", letter)

		conn, err := sql.Open("sqlite3", ":memory:")
		if err != nil {
			t.Fatalf("open %s db: %v", name, err)
		}
		st, err := store.OpenConn(conn)
		if err != nil {
			t.Fatalf("init %s store: %v", name, err)
		}
		t.Cleanup(func() { st.Close() })

		q := queue.New(st.Conn(), nil, queue.DefaultConfig())
		c := syncclient.New(ts.URL, harnessAPIKey, deviceID)
		eng := syncengine.New(st, q, c, syncengine.Config{
			BatchSize:     5,
			CycleAttempts: 2,
			BackoffMin:    time.Millisecond,
			BackoffMax:    5 * time.Millisecond,
		})
		t.Cleanup(eng.Close)

		h.Clients[name] = &SimulatedClient{
			DeviceID: deviceID,
			Store:    st,
			Queue:    q,
			Client:   c,
			Engine:   eng,
		}
		h.names = append(h.names, name)
	}

	return h
}

// Client returns a simulated client by name, failing the test if unknown.
func (h *Harness) Client(name string) *SimulatedClient {
	h.t.Helper()
	c, ok := h.Clients[name]
	if !ok {
		h.t.Fatalf("unknown client %q", name)
	}
	return c
}

// Create stores a new pending record on a client and returns its local id.
func (h *Harness) Create(clientID string, coll models.Collection, data map[string]any) string {
	h.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		h.t.Fatalf("marshal data: %v", err)
	}
	rec := &models.Record{Collection: coll, Data: raw}
	if err := h.Client(clientID).Store.Create(rec); err != nil {
		h.t.Fatalf("%s: create %s record: %v", clientID, coll, err)
	}
	h.settle()
	return rec.LocalID
}

// Update replaces a record's data on a client, marking it pending.
func (h *Harness) Update(clientID string, coll models.Collection, localID string, data map[string]any) {
	h.t.Helper()
	c := h.Client(clientID)
	rec, err := c.Store.Get(coll, localID)
	if err != nil {
		h.t.Fatalf("%s: get %s/%s: %v", clientID, coll, localID, err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		h.t.Fatalf("marshal data: %v", err)
	}
	rec.Data = raw
	if err := c.Store.Update(rec); err != nil {
		h.t.Fatalf("%s: update %s/%s: %v", clientID, coll, localID, err)
	}
	h.settle()
}

// Delete marks a record deleted on a client (tombstone until acknowledged).
func (h *Harness) Delete(clientID string, coll models.Collection, localID string) {
	h.t.Helper()
	if err := h.Client(clientID).Store.MarkDelete(coll, localID); err != nil {
		h.t.Fatalf("%s: delete %s/%s: %v", clientID, coll, localID, err)
	}
	h.settle()
}

// Sync runs a full pull-then-push cycle for a client and fails on error.
func (h *Harness) Sync(clientID string) syncengine.Result {
	h.t.Helper()
	res := h.Client(clientID).Engine.Sync(context.Background())
	if res.NoOp {
		h.t.Fatalf("%s: sync reported already in progress", clientID)
	}
	if !res.Success {
		h.t.Fatalf("%s: sync failed: %v", clientID, res.Err)
	}
	h.settle()
	return res
}

// Push runs a push-only cycle without refreshing the pull cursor first. This
// is how a stale client pushes over changes it has not seen yet.
func (h *Harness) Push(clientID string) syncengine.Result {
	h.t.Helper()
	res := h.Client(clientID).Engine.PushOnly(context.Background())
	if res.NoOp {
		h.t.Fatalf("%s: push reported already in progress", clientID)
	}
	if !res.Success {
		h.t.Fatalf("%s: push failed: %v", clientID, res.Err)
	}
	h.settle()
	return res
}

// Pull runs a pull-only cycle for a client.
func (h *Harness) Pull(clientID string) syncengine.Result {
	h.t.Helper()
	res := h.Client(clientID).Engine.PullOnly(context.Background())
	if res.NoOp {
		h.t.Fatalf("%s: pull reported already in progress", clientID)
	}
	if !res.Success {
		h.t.Fatalf("%s: pull failed: %v", clientID, res.Err)
	}
	h.settle()
	return res
}

// QueryData returns a record's decoded data on a client, or nil when the
// record is absent or tombstoned.
func (h *Harness) QueryData(clientID string, coll models.Collection, localID string) map[string]any {
	h.t.Helper()
	rec, err := h.Client(clientID).Store.Get(coll, localID)
	if err != nil {
		return nil
	}
	if rec.IsDeleted {
		return nil
	}
	var data map[string]any
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		h.t.Fatalf("%s: decode %s/%s data: %v", clientID, coll, localID, err)
	}
	return data
}

// ServerData returns a record's decoded data on the server, or nil when the
// record is absent or deleted.
func (h *Harness) ServerData(coll models.Collection, id string) map[string]any {
	h.t.Helper()
	res, err := h.Server.GetResource(coll, id)
	if err != nil || res == nil || res.Deleted {
		return nil
	}
	var data map[string]any
	if err := json.Unmarshal(res.Data, &data); err != nil {
		h.t.Fatalf("decode server %s/%s data: %v", coll, id, err)
	}
	return data
}

// AssertConverged verifies that every client holds the same live records as
// the server for the given collection, comparing by server id and data.
func (h *Harness) AssertConverged(coll models.Collection) {
	h.t.Helper()

	want := make(map[string]map[string]any)
	changes, _, err := h.Server.ChangesSince(0)
	if err != nil {
		h.t.Fatalf("server changes: %v", err)
	}
	for _, rr := range append(changes[coll].Created, changes[coll].Updated...) {
		var data map[string]any
		if err := json.Unmarshal(rr.Data, &data); err != nil {
			h.t.Fatalf("decode server record %s: %v", rr.ServerID, err)
		}
		want[rr.ServerID] = data
	}

	for _, name := range h.names {
		recs, err := h.Clients[name].Store.List(coll, false)
		if err != nil {
			h.t.Fatalf("%s: list %s: %v", name, coll, err)
		}
		got := make(map[string]map[string]any)
		for _, rec := range recs {
			if rec.SyncStatus != models.SyncSynced {
				h.t.Errorf("%s: %s/%s not synced (status %s)", name, coll, rec.LocalID, rec.SyncStatus)
			}
			var data map[string]any
			if err := json.Unmarshal(rec.Data, &data); err != nil {
				h.t.Fatalf("%s: decode %s/%s: %v", name, coll, rec.LocalID, err)
			}
			got[rec.ServerID] = data
		}
		if !reflect.DeepEqual(got, want) {
			h.t.Errorf("%s: %s diverged from server\n got: %v\nwant: %v", name, coll, got, want)
		}
	}
}

// settle sleeps past one millisecond so consecutive server writes get
// distinct timestamps. The wire cursor has millisecond resolution.
func (h *Harness) settle() {
	time.Sleep(2 * time.Millisecond)
}
