package queue

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/synccrypto"
)

func setupTestQueue(t *testing.T, cfg Config, cipher synccrypto.Cipher) *Queue {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := store.OpenConn(conn); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return New(conn, cipher, cfg)
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := setupTestQueue(t, Config{}, nil)

	for i := 0; i < 3; i++ {
		op := &Operation{
			Method:   MethodCreate,
			Resource: fmt.Sprintf("/v1/resources/orders?n=%d", i),
			Payload:  []byte(fmt.Sprintf(`{"n":%d}`, i)),
		}
		if err := q.Enqueue(op); err != nil {
			t.Fatalf("enqueue #%d: %v", i, err)
		}
	}

	ops, err := q.DequeueBatch(10)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("batch size: got %d, want 3", len(ops))
	}
	for i, op := range ops {
		want := fmt.Sprintf("/v1/resources/orders?n=%d", i)
		if op.Resource != want {
			t.Fatalf("order violated at %d: got %s", i, op.Resource)
		}
	}

	// Dequeue is non-destructive; entries leave only via Remove.
	size, _ := q.Size()
	if size != 3 {
		t.Fatalf("size after dequeue: got %d, want 3", size)
	}
	if err := q.Remove(ops[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	size, _ = q.Size()
	if size != 2 {
		t.Fatalf("size after remove: got %d, want 2", size)
	}
}

func TestEnqueueRejectsAtCapacity(t *testing.T) {
	q := setupTestQueue(t, Config{MaxSize: 2}, nil)

	var rejected []Operation
	q.OnFull = func(op Operation) { rejected = append(rejected, op) }

	for i := 0; i < 2; i++ {
		if err := q.Enqueue(&Operation{Method: MethodUpdate, Resource: "/r"}); err != nil {
			t.Fatalf("enqueue #%d: %v", i, err)
		}
	}

	err := q.Enqueue(&Operation{Method: MethodUpdate, Resource: "/overflow"})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("got %v, want ErrQueueFull", err)
	}
	if len(rejected) != 1 || rejected[0].Resource != "/overflow" {
		t.Fatalf("OnFull: %+v", rejected)
	}

	// The queue itself is untouched by the rejection.
	size, _ := q.Size()
	if size != 2 {
		t.Fatalf("size: got %d, want 2", size)
	}
}

func TestRetryBudget(t *testing.T) {
	q := setupTestQueue(t, Config{MaxRetries: 3}, nil)

	var dropped []Operation
	q.OnTerminal = func(op Operation) { dropped = append(dropped, op) }

	op := &Operation{Method: MethodDelete, Resource: "/v1/resources/orders/x"}
	if err := q.Enqueue(op); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for i := 1; i <= 2; i++ {
		terminal, err := q.RecordFailure(op.ID)
		if err != nil {
			t.Fatalf("failure #%d: %v", i, err)
		}
		if terminal {
			t.Fatalf("terminal after %d failures", i)
		}
	}

	terminal, err := q.RecordFailure(op.ID)
	if err != nil {
		t.Fatalf("final failure: %v", err)
	}
	if !terminal {
		t.Fatal("expected terminal outcome at retry budget")
	}
	if len(dropped) != 1 || dropped[0].ID != op.ID {
		t.Fatalf("OnTerminal: %+v", dropped)
	}

	size, _ := q.Size()
	if size != 0 {
		t.Fatalf("size after drop: got %d", size)
	}
}

func TestSensitivePayloadEncryptedAtRest(t *testing.T) {
	key, _, err := synccrypto.DeriveKey("test-passphrase")
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	cipher, err := synccrypto.NewAESCipher(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	q := setupTestQueue(t, Config{}, cipher)

	plaintext := []byte(`{"ssn":"000-11-2222"}`)
	op := &Operation{Method: MethodCreate, Resource: "/v1/resources/staff", Payload: plaintext, Sensitive: true}
	if err := q.Enqueue(op); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// The stored bytes must not contain the plaintext.
	var stored []byte
	if err := q.conn.QueryRow(`SELECT payload FROM mutation_queue WHERE id = ?`, op.ID).Scan(&stored); err != nil {
		t.Fatalf("read raw payload: %v", err)
	}
	if bytes.Contains(stored, []byte("ssn")) {
		t.Fatal("sensitive payload stored in plaintext")
	}

	// Dequeue decrypts transparently.
	ops, err := q.DequeueBatch(1)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if !bytes.Equal(ops[0].Payload, plaintext) {
		t.Fatalf("round trip: got %s", ops[0].Payload)
	}
}

func TestClear(t *testing.T) {
	q := setupTestQueue(t, Config{}, nil)
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(&Operation{Method: MethodCreate, Resource: "/r"}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if err := q.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	size, _ := q.Size()
	if size != 0 {
		t.Fatalf("size after clear: got %d", size)
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	// Same connection, fresh Queue value: entries persist because they
	// live in the database, not in memory.
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if _, err := store.OpenConn(conn); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	q1 := New(conn, nil, Config{})
	if err := q1.Enqueue(&Operation{Method: MethodCreate, Resource: "/persisted"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	q2 := New(conn, nil, Config{})
	ops, err := q2.DequeueBatch(1)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(ops) != 1 || ops[0].Resource != "/persisted" {
		t.Fatalf("persisted op: %+v", ops)
	}
}
