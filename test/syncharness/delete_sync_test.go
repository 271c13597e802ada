package syncharness

import (
	"errors"
	"testing"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
)

func TestDeletePropagates(t *testing.T) {
	h := NewHarness(t, 2)

	id := h.Create("client-A", models.CollectionOrders, map[string]any{"status": "cancelled", "total_cents": 0})
	h.Sync("client-A")
	h.Sync("client-B")

	if h.QueryData("client-B", models.CollectionOrders, id) == nil {
		t.Fatal("client-B: order missing before delete")
	}

	h.Delete("client-A", models.CollectionOrders, id)

	// The tombstone survives locally until the server acknowledges it.
	rec, err := h.Client("client-A").Store.Get(models.CollectionOrders, id)
	if err != nil {
		t.Fatalf("client-A: get tombstone: %v", err)
	}
	if !rec.IsDeleted {
		t.Fatal("client-A: record not marked deleted")
	}

	h.Sync("client-A")

	// Acknowledged delete purges the tombstone.
	if _, err := h.Client("client-A").Store.Get(models.CollectionOrders, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("client-A: tombstone still present after ack, err = %v", err)
	}

	h.Sync("client-B")
	if h.QueryData("client-B", models.CollectionOrders, id) != nil {
		t.Error("client-B: order still visible after delete synced")
	}
	if data := h.ServerData(models.CollectionOrders, id); data != nil {
		t.Error("server: order still live after delete")
	}
	h.AssertConverged(models.CollectionOrders)
}

func TestDeleteOfUnknownRecordIsAcked(t *testing.T) {
	h := NewHarness(t, 1)

	// A record that never reached the server: the delete has nothing to
	// undo remotely but must still clear the local tombstone.
	id := h.Create("client-A", models.CollectionOrders, map[string]any{"status": "open", "total_cents": 0})
	h.Delete("client-A", models.CollectionOrders, id)

	h.Sync("client-A")

	if _, err := h.Client("client-A").Store.Get(models.CollectionOrders, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("tombstone not purged, err = %v", err)
	}
}

func TestRemoteDeleteDoesNotDropPendingEdit(t *testing.T) {
	h := NewHarness(t, 2)
	id := seedSharedRecord(t, h, models.CollectionOrders, map[string]any{"status": "open", "total_cents": 0})

	// B edits offline while A deletes the record and syncs.
	h.Update("client-B", models.CollectionOrders, id, map[string]any{"status": "paid", "total_cents": 1800})
	h.Delete("client-A", models.CollectionOrders, id)
	h.Sync("client-A")

	// B's cycle pulls the delete, keeps the pending edit, and pushes it
	// back with a fresh cursor, resurrecting the record.
	h.Sync("client-B")

	data := h.QueryData("client-B", models.CollectionOrders, id)
	if data == nil {
		t.Fatal("client-B: pending edit destroyed by remote delete")
	}
	if v, _ := data["status"].(string); v != "paid" {
		t.Errorf("client-B: status = %q, want the offline edit", v)
	}
	if h.ServerData(models.CollectionOrders, id) == nil {
		t.Fatal("server: record not resurrected by the surviving edit")
	}

	h.Sync("client-A")
	data = h.QueryData("client-A", models.CollectionOrders, id)
	if data == nil {
		t.Fatal("client-A: resurrected record did not come back via pull")
	}
	if v, _ := data["total_cents"].(float64); v != 1800 {
		t.Errorf("client-A: total_cents = %v, want 1800", v)
	}
	h.AssertConverged(models.CollectionOrders)
}
