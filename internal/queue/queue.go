// Package queue implements the bounded, persisted mutation queue: network
// operations captured while offline, replayed in FIFO order by the sync
// engine. Entries survive process restarts; sensitive payloads are encrypted
// before they touch disk.
//
// The queue does not serialize its own callers. All access runs either under
// the sync engine's cycle lock or as a direct user action, matching the
// single-writer model of the rest of the engine.
package queue

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/synccrypto"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue is at capacity.
	// The write is rejected, never silently dropped.
	ErrQueueFull = errors.New("mutation queue full")
	// ErrNotFound is returned when an operation id does not exist.
	ErrNotFound = errors.New("operation not found")
)

// Operation is one replayable network request.
type Operation struct {
	ID         string
	Timestamp  time.Time
	Method     Method
	Resource   string
	Payload    []byte // plaintext; encrypted at rest when Sensitive
	Sensitive  bool
	RetryCount int
}

// Config tunes the queue bounds.
type Config struct {
	// MaxSize is the hard capacity; Enqueue rejects past it. This is the
	// engine's backpressure mechanism.
	MaxSize int
	// MaxRetries is the per-operation failure budget; an operation whose
	// retry count reaches it is removed instead of retried.
	MaxRetries int
}

// DefaultConfig matches the field-client defaults.
func DefaultConfig() Config {
	return Config{MaxSize: 100, MaxRetries: 3}
}

// Queue is the durable operation log. It shares the store's database.
type Queue struct {
	conn   *sql.DB
	cipher synccrypto.Cipher
	cfg    Config

	// OnFull is invoked when an enqueue is rejected at capacity, so the
	// caller can surface the rejection to the user. Never nil after New.
	OnFull func(op Operation)
	// OnTerminal is invoked when an operation exhausts its retry budget
	// and is dropped. Never nil after New.
	OnTerminal func(op Operation)
}

// New creates a queue over an open database connection. A nil cipher
// disables at-rest protection (synccrypto.NopCipher).
func New(conn *sql.DB, cipher synccrypto.Cipher, cfg Config) *Queue {
	if cipher == nil {
		cipher = synccrypto.NopCipher{}
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	return &Queue{
		conn:   conn,
		cipher: cipher,
		cfg:    cfg,
		OnFull: func(op Operation) {
			slog.Warn("mutation queue full, rejecting operation", "method", op.Method, "resource", op.Resource)
		},
		OnTerminal: func(op Operation) {
			slog.Warn("operation dropped after exhausting retries", "id", op.ID, "resource", op.Resource)
		},
	}
}

// Enqueue appends an operation. At capacity the operation is rejected with
// ErrQueueFull and OnFull fires; the queue is left unchanged. Sensitive
// payloads are encrypted before persistence.
func (q *Queue) Enqueue(op *Operation) error {
	size, err := q.Size()
	if err != nil {
		return err
	}
	if size >= q.cfg.MaxSize {
		q.OnFull(*op)
		return fmt.Errorf("enqueue %s %s: %w", op.Method, op.Resource, ErrQueueFull)
	}

	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now().UTC()
	}

	payload := op.Payload
	if op.Sensitive && len(payload) > 0 {
		payload, err = q.cipher.Encrypt(payload)
		if err != nil {
			return fmt.Errorf("encrypt payload: %w", err)
		}
	}

	sensitive := 0
	if op.Sensitive {
		sensitive = 1
	}
	_, err = q.conn.Exec(`
		INSERT INTO mutation_queue (id, created_at, method, resource, payload, sensitive, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		op.ID, op.Timestamp.UnixMilli(), op.Method.String(), op.Resource, payload, sensitive,
	)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// DequeueBatch returns up to n of the oldest operations without removing
// them. Removal happens via Remove once the caller has confirmed success.
func (q *Queue) DequeueBatch(n int) ([]Operation, error) {
	rows, err := q.conn.Query(`
		SELECT id, created_at, method, resource, payload, sensitive, retry_count
		FROM mutation_queue ORDER BY rowid ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var (
			op        Operation
			createdAt int64
			method    string
			sensitive int
		)
		if err := rows.Scan(&op.ID, &createdAt, &method, &op.Resource, &op.Payload, &sensitive, &op.RetryCount); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Timestamp = time.UnixMilli(createdAt).UTC()
		op.Sensitive = sensitive != 0

		m, err := ParseMethod(method)
		if err != nil {
			// Malformed row: drop it rather than poison every batch.
			slog.Warn("dropping malformed queue entry", "id", op.ID, "err", err)
			q.Remove(op.ID)
			continue
		}
		op.Method = m

		if op.Sensitive && len(op.Payload) > 0 {
			op.Payload, err = q.cipher.Decrypt(op.Payload)
			if err != nil {
				return nil, fmt.Errorf("decrypt payload %s: %w", op.ID, err)
			}
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Remove deletes an operation (the success path).
func (q *Queue) Remove(id string) error {
	res, err := q.conn.Exec(`DELETE FROM mutation_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordFailure increments an operation's retry count. When the count
// reaches the retry budget the entry is removed instead of retried and
// OnTerminal fires; the returned flag reports that terminal outcome.
func (q *Queue) RecordFailure(id string) (terminal bool, err error) {
	res, err := q.conn.Exec(`UPDATE mutation_queue SET retry_count = retry_count + 1 WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("record failure %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, fmt.Errorf("record failure %s: %w", id, ErrNotFound)
	}

	var count int
	if err := q.conn.QueryRow(`SELECT retry_count FROM mutation_queue WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("read retry count %s: %w", id, err)
	}
	if count < q.cfg.MaxRetries {
		return false, nil
	}

	op, err := q.get(id)
	if err == nil {
		q.OnTerminal(*op)
	}
	if err := q.Remove(id); err != nil {
		return true, err
	}
	return true, nil
}

// Clear empties the queue (logout/reset).
func (q *Queue) Clear() error {
	_, err := q.conn.Exec(`DELETE FROM mutation_queue`)
	if err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// Size returns the current queue length.
func (q *Queue) Size() (int, error) {
	var n int
	if err := q.conn.QueryRow(`SELECT COUNT(*) FROM mutation_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return n, nil
}

// MaxRetries exposes the configured retry budget.
func (q *Queue) MaxRetries() int {
	return q.cfg.MaxRetries
}

func (q *Queue) get(id string) (*Operation, error) {
	row := q.conn.QueryRow(`
		SELECT id, created_at, method, resource, retry_count
		FROM mutation_queue WHERE id = ?`, id)

	var op Operation
	var createdAt int64
	var method string
	err := row.Scan(&op.ID, &createdAt, &method, &op.Resource, &op.RetryCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	op.Timestamp = time.UnixMilli(createdAt).UTC()
	op.Method, _ = ParseMethod(method)
	return &op, nil
}
