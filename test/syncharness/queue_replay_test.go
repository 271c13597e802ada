package syncharness

import (
	"encoding/json"
	"testing"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/queue"
)

// enqueueResourceWrite queues an offline create/update against the generic
// resource endpoint, the shape the CLI's queue add command produces.
func enqueueResourceWrite(t *testing.T, h *Harness, clientID string, method queue.Method, coll models.Collection, localID string, data map[string]any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	payload, err := json.Marshal(map[string]any{"local_id": localID, "data": json.RawMessage(raw)})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	op := &queue.Operation{
		Method:   method,
		Resource: "/v1/resources/" + string(coll),
		Payload:  payload,
	}
	if err := h.Client(clientID).Queue.Enqueue(op); err != nil {
		t.Fatalf("%s: enqueue: %v", clientID, err)
	}
}

func TestQueuedOperationsReachTheServer(t *testing.T) {
	h := NewHarness(t, 2)

	enqueueResourceWrite(t, h, "client-A", queue.MethodCreate, models.CollectionOrders, "ord-q1", map[string]any{
		"status": "open", "total_cents": 900,
	})
	enqueueResourceWrite(t, h, "client-A", queue.MethodCreate, models.CollectionOrders, "ord-q2", map[string]any{
		"status": "open", "total_cents": 1400,
	})

	res := h.Sync("client-A")
	if res.Stats.Pushed != 2 {
		t.Fatalf("replayed %d operations, want 2", res.Stats.Pushed)
	}
	if n, _ := h.Client("client-A").Queue.Size(); n != 0 {
		t.Fatalf("queue not drained, %d operations left", n)
	}

	// The server applied both writes, keyed by the queued local ids.
	for _, id := range []string{"ord-q1", "ord-q2"} {
		if h.ServerData(models.CollectionOrders, id) == nil {
			t.Errorf("server: %s missing after replay", id)
		}
	}

	// Other clients pick the records up through a normal pull.
	h.Sync("client-B")
	if h.QueryData("client-B", models.CollectionOrders, "ord-q1") == nil {
		t.Error("client-B: replayed record did not arrive via pull")
	}

	// The replaying client itself gets its queue-created records on the
	// next pull; the cycle that replayed them pulled before pushing.
	h.Sync("client-A")
	if h.QueryData("client-A", models.CollectionOrders, "ord-q2") == nil {
		t.Error("client-A: replayed record did not come back via pull")
	}
}

func TestQueuedReplayIsIdempotent(t *testing.T) {
	h := NewHarness(t, 1)

	data := map[string]any{"status": "open", "total_cents": 700}
	enqueueResourceWrite(t, h, "client-A", queue.MethodCreate, models.CollectionOrders, "ord-dup", data)
	h.Sync("client-A")

	// The same write queued again, as after a crash between the network
	// call and the queue removal. The server must not duplicate the row.
	enqueueResourceWrite(t, h, "client-A", queue.MethodCreate, models.CollectionOrders, "ord-dup", data)
	h.Sync("client-A")

	changes, _, err := h.Server.ChangesSince(0)
	if err != nil {
		t.Fatalf("server changes: %v", err)
	}
	delta := changes[models.CollectionOrders]
	if n := len(delta.Created) + len(delta.Updated); n != 1 {
		t.Errorf("server holds %d order rows, want 1", n)
	}
}

func TestQueuedDeleteReplays(t *testing.T) {
	h := NewHarness(t, 1)

	enqueueResourceWrite(t, h, "client-A", queue.MethodCreate, models.CollectionOrders, "ord-del", map[string]any{
		"status": "open", "total_cents": 0,
	})
	h.Sync("client-A")
	if h.ServerData(models.CollectionOrders, "ord-del") == nil {
		t.Fatal("server: record missing before delete")
	}

	op := &queue.Operation{
		Method:   queue.MethodDelete,
		Resource: "/v1/resources/orders/ord-del",
	}
	if err := h.Client("client-A").Queue.Enqueue(op); err != nil {
		t.Fatalf("enqueue delete: %v", err)
	}
	h.Sync("client-A")

	if h.ServerData(models.CollectionOrders, "ord-del") != nil {
		t.Error("server: record still live after queued delete")
	}
}
