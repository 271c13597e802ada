package syncharness

import (
	"testing"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

// seedSharedRecord creates a record on client-A and syncs it to both clients,
// returning the local id both sides share.
func seedSharedRecord(t *testing.T, h *Harness, coll models.Collection, data map[string]any) string {
	t.Helper()
	id := h.Create("client-A", coll, data)
	h.Sync("client-A")
	h.Sync("client-B")
	if h.QueryData("client-B", coll, id) == nil {
		t.Fatalf("seed record did not reach client-B")
	}
	return id
}

func TestConflictServerWins(t *testing.T) {
	h := NewHarness(t, 2)
	id := seedSharedRecord(t, h, models.CollectionOrders, map[string]any{"status": "open", "total_cents": 0})

	// A and B edit the same field. A syncs first; B pushes without
	// pulling, so B's push runs against a stale cursor.
	h.Update("client-A", models.CollectionOrders, id, map[string]any{"status": "paid", "total_cents": 2500})
	h.Sync("client-A")

	h.Update("client-B", models.CollectionOrders, id, map[string]any{"status": "cancelled", "total_cents": 0})
	res := h.Push("client-B")
	if res.Stats.Conflicts != 1 {
		t.Fatalf("stale push reported %d conflicts, want 1", res.Stats.Conflicts)
	}

	// Server version wins: B now holds A's data, settled.
	data := h.QueryData("client-B", models.CollectionOrders, id)
	if v, _ := data["status"].(string); v != "paid" {
		t.Errorf("client-B: status = %q, want server version paid", v)
	}
	rec, err := h.Client("client-B").Store.Get(models.CollectionOrders, id)
	if err != nil {
		t.Fatalf("client-B: get: %v", err)
	}
	if rec.SyncStatus != models.SyncSynced {
		t.Errorf("client-B: status = %s, want synced", rec.SyncStatus)
	}

	// The losing edit is preserved as a conflict shadow for review.
	shadows, err := h.Client("client-B").Store.ListShadows(10)
	if err != nil {
		t.Fatalf("client-B: list shadows: %v", err)
	}
	if len(shadows) != 1 {
		t.Fatalf("client-B has %d shadows, want 1", len(shadows))
	}
	if shadows[0].LocalID != id {
		t.Errorf("shadow local id = %q, want %q", shadows[0].LocalID, id)
	}

	h.Sync("client-B")
	h.AssertConverged(models.CollectionOrders)
}

func TestShiftConflictClientWins(t *testing.T) {
	h := NewHarness(t, 2)
	id := seedSharedRecord(t, h, models.CollectionShifts, map[string]any{
		"staff_id": "st-1",
		"clock_in": "2026-08-31T08:00:00Z",
	})

	// The back office adjusts the shift; the device that captured the
	// clock times edits it too and pushes stale.
	h.Update("client-A", models.CollectionShifts, id, map[string]any{
		"staff_id": "st-1",
		"clock_in": "2026-08-31T08:15:00Z",
	})
	h.Sync("client-A")

	h.Update("client-B", models.CollectionShifts, id, map[string]any{
		"staff_id": "st-1",
		"clock_in": "2026-08-31T07:58:00Z",
	})
	res := h.Push("client-B")
	if res.Stats.Conflicts != 1 {
		t.Fatalf("stale push reported %d conflicts, want 1", res.Stats.Conflicts)
	}

	// Device-captured clock times win: B keeps its edit, still pending.
	rec, err := h.Client("client-B").Store.Get(models.CollectionShifts, id)
	if err != nil {
		t.Fatalf("client-B: get: %v", err)
	}
	if rec.SyncStatus != models.SyncPending {
		t.Fatalf("client-B: status = %s, want pending", rec.SyncStatus)
	}
	data := h.QueryData("client-B", models.CollectionShifts, id)
	if v, _ := data["clock_in"].(string); v != "2026-08-31T07:58:00Z" {
		t.Errorf("client-B: clock_in = %q, want local edit kept", v)
	}

	// No shadow: nothing was overwritten.
	if n, _ := h.Client("client-B").Store.CountShadows(); n != 0 {
		t.Errorf("client-B has %d shadows, want 0", n)
	}

	// The next full cycle lands B's version on the server; A pulls it.
	h.Sync("client-B")
	h.Sync("client-A")
	data = h.QueryData("client-A", models.CollectionShifts, id)
	if v, _ := data["clock_in"].(string); v != "2026-08-31T07:58:00Z" {
		t.Errorf("client-A: clock_in = %q, want device version", v)
	}
	h.AssertConverged(models.CollectionShifts)
}

func TestConflictFieldMerge(t *testing.T) {
	h := NewHarness(t, 2)
	id := seedSharedRecord(t, h, models.CollectionOrders, map[string]any{"status": "open"})

	// Each side adds a different field; the shared field is untouched.
	h.Update("client-A", models.CollectionOrders, id, map[string]any{"status": "open", "total_cents": 500})
	h.Sync("client-A")

	h.Update("client-B", models.CollectionOrders, id, map[string]any{"status": "open", "notes": "rush order"})
	res := h.Push("client-B")
	if res.Stats.Conflicts != 1 {
		t.Fatalf("stale push reported %d conflicts, want 1", res.Stats.Conflicts)
	}

	// Disjoint edits merge: B holds the union, pending for re-push.
	data := h.QueryData("client-B", models.CollectionOrders, id)
	if v, _ := data["total_cents"].(float64); v != 500 {
		t.Errorf("client-B: total_cents = %v, want 500 from server side", v)
	}
	if v, _ := data["notes"].(string); v != "rush order" {
		t.Errorf("client-B: notes = %q, want local side kept", v)
	}
	rec, err := h.Client("client-B").Store.Get(models.CollectionOrders, id)
	if err != nil {
		t.Fatalf("client-B: get: %v", err)
	}
	if rec.SyncStatus != models.SyncPending {
		t.Fatalf("client-B: status = %s, want pending", rec.SyncStatus)
	}

	// The merged record propagates everywhere on the next cycles.
	h.Sync("client-B")
	h.Sync("client-A")
	data = h.QueryData("client-A", models.CollectionOrders, id)
	if v, _ := data["total_cents"].(float64); v != 500 {
		t.Errorf("client-A: total_cents = %v after merge", v)
	}
	if v, _ := data["notes"].(string); v != "rush order" {
		t.Errorf("client-A: notes = %q after merge", v)
	}
	h.AssertConverged(models.CollectionOrders)
}
