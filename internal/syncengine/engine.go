// Package syncengine drives the pull-then-push sync cycle. At most one cycle
// runs at a time; a trigger while a cycle is active returns a no-op result
// without touching the network. The cycle lock also serializes all queue and
// cursor access, which is the engine's only mutual-exclusion requirement.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/netmon"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/queue"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/resolver"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncclient"
)

// Config tunes the sync cycle.
type Config struct {
	// BatchSize caps how many queued operations are replayed per chunk.
	BatchSize int
	// CycleAttempts is the transient-failure budget for the pull phase of
	// one cycle. Permanent errors never consume it.
	CycleAttempts int
	// BackoffMin/BackoffMax bound the jittered exponential backoff between
	// transient pull attempts.
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// DefaultConfig matches the field-client defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     50,
		CycleAttempts: 3,
		BackoffMin:    time.Second,
		BackoffMax:    30 * time.Second,
	}
}

// Engine owns one sync pipeline: local store, mutation queue, sync client.
// Construct it once at startup and pass it by reference; there is no
// package-level instance.
type Engine struct {
	store  *store.Store
	queue  *queue.Queue
	client *syncclient.Client
	cfg    Config

	// cycleMu is the single sync lock: TryLock on entry gives the
	// single-flight guarantee.
	cycleMu sync.Mutex

	// OnResult receives every completed cycle's result (UI indicator).
	// Never nil after New.
	OnResult func(Result)
	// OnItemFailure receives terminal per-item failures so they can be
	// surfaced rather than silently dropped. For rejected queue replays
	// the collection is empty and itemID is the operation's resource
	// path. Never nil after New.
	OnItemFailure func(collection models.Collection, itemID, reason string)

	unsubscribe func()
}

// New wires an engine. Zero-value config fields fall back to defaults.
func New(s *store.Store, q *queue.Queue, c *syncclient.Client, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.CycleAttempts <= 0 {
		cfg.CycleAttempts = def.CycleAttempts
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = def.BackoffMin
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	return &Engine{
		store:  s,
		queue:  q,
		client: c,
		cfg:    cfg,
		OnResult: func(r Result) {
			if r.NoOp {
				return
			}
			slog.Info("sync cycle finished",
				"success", r.Success, "pushed", r.Stats.Pushed, "pulled", r.Stats.Pulled,
				"conflicts", r.Stats.Conflicts, "errors", r.Stats.Errors, "duration", r.Stats.Duration)
		},
		OnItemFailure: func(collection models.Collection, itemID, reason string) {
			slog.Warn("item rejected by server", "collection", collection, "item", itemID, "reason", reason)
		},
	}
}

// BindMonitor subscribes the engine to connectivity transitions: each stable
// reconnect triggers one sync cycle.
func (e *Engine) BindMonitor(ctx context.Context, m *netmon.Monitor) {
	e.unsubscribe = m.Subscribe(func(online bool) {
		if !online {
			return
		}
		go e.Sync(ctx)
	})
}

// Close detaches the engine from its monitor.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// Sync runs one pull-then-push cycle. If a cycle is already running it
// returns immediately with a no-op result; concurrent triggers are never
// queued. Cancelling ctx aborts the cycle at the next phase boundary,
// leaving the last fully-applied state intact.
func (e *Engine) Sync(ctx context.Context) Result {
	if !e.cycleMu.TryLock() {
		return Result{Success: true, NoOp: true}
	}
	defer e.cycleMu.Unlock()

	start := time.Now()
	var stats Stats

	err := e.pullWithRetry(ctx, &stats)
	if err != nil {
		// A failed pull aborts the whole cycle: pushing against a stale
		// cursor is never safe. Cursor and queue are untouched.
		return e.finish(start, stats, err)
	}

	err = e.push(ctx, &stats)
	return e.finish(start, stats, err)
}

// PullOnly runs the pull phase by itself, for a manually triggered refresh.
// It holds the same cycle lock as Sync.
func (e *Engine) PullOnly(ctx context.Context) Result {
	if !e.cycleMu.TryLock() {
		return Result{Success: true, NoOp: true}
	}
	defer e.cycleMu.Unlock()

	start := time.Now()
	var stats Stats
	err := e.pullWithRetry(ctx, &stats)
	return e.finish(start, stats, err)
}

// PushOnly runs the push phase by itself. The server still detects conflicts
// against the current cursor, so a stale cursor surfaces as conflicts rather
// than silent overwrites.
func (e *Engine) PushOnly(ctx context.Context) Result {
	if !e.cycleMu.TryLock() {
		return Result{Success: true, NoOp: true}
	}
	defer e.cycleMu.Unlock()

	start := time.Now()
	var stats Stats
	err := e.push(ctx, &stats)
	return e.finish(start, stats, err)
}

func (e *Engine) finish(start time.Time, stats Stats, err error) Result {
	stats.Duration = time.Since(start)
	res := Result{Success: err == nil, Stats: stats, Err: err}
	e.OnResult(res)
	return res
}

// --- pull ---

func (e *Engine) pullWithRetry(ctx context.Context, stats *Stats) error {
	var err error
	for attempt := 0; attempt < e.cfg.CycleAttempts; attempt++ {
		if attempt > 0 {
			if werr := e.wait(ctx, e.backoff(attempt)); werr != nil {
				return werr
			}
		}
		err = e.pull(ctx, stats)
		if err == nil {
			return nil
		}
		if !syncclient.Retryable(err) {
			return err
		}
		stats.Errors++
		slog.Debug("pull attempt failed", "attempt", attempt+1, "err", err)
	}
	return fmt.Errorf("pull failed after %d attempts: %w", e.cfg.CycleAttempts, err)
}

func (e *Engine) pull(ctx context.Context, stats *Stats) error {
	cursor, err := e.store.Cursor()
	if err != nil {
		return err
	}

	resp, err := e.client.Pull(ctx, &syncclient.PullRequest{
		LastPulledAt:  cursor.LastPulledAt,
		SchemaVersion: cursor.SchemaVersion,
	})
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	// Apply and cursor advance share one transaction; a failure leaves
	// both exactly as they were, so the pull is retryable from scratch.
	if err := e.store.ApplyRemoteChanges(resp.Changes, resp.Timestamp); err != nil {
		return fmt.Errorf("apply remote changes: %w", err)
	}

	stats.Pulled += resp.Changes.Count()
	return nil
}

// --- push ---

func (e *Engine) push(ctx context.Context, stats *Stats) error {
	if err := e.replayQueue(ctx, stats); err != nil {
		if errors.Is(err, syncclient.ErrUnauthorized) || ctx.Err() != nil {
			return err
		}
		// Transient replay failures already incremented retry counts;
		// the rest of the queue waits for the next cycle. The
		// collection-delta push still gets its chance.
		slog.Debug("queue replay stopped early", "err", err)
		stats.Errors++
	}
	return e.pushChanges(ctx, stats)
}

// replayQueue drains the mutation queue in FIFO chunks. One operation equals
// one network call. A network-level failure records a failure on every
// not-yet-confirmed entry of the in-flight chunk and stops further chunks
// for this cycle.
func (e *Engine) replayQueue(ctx context.Context, stats *Stats) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := e.queue.DequeueBatch(e.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		for i, op := range batch {
			err := e.client.Replay(ctx, op.Method.HTTPVerb(), op.Resource, op.Payload)
			switch {
			case err == nil:
				if err := e.queue.Remove(op.ID); err != nil {
					return err
				}
				stats.Pushed++
			case errors.Is(err, syncclient.ErrRejected):
				// Permanent per-item failure: it will not resolve on
				// retry, so drop it and surface the reason.
				stats.Errors++
				e.OnItemFailure("", op.Resource, err.Error())
				if err := e.queue.Remove(op.ID); err != nil {
					return err
				}
			case errors.Is(err, syncclient.ErrUnauthorized):
				return err
			default:
				// Transient: fail the rest of the in-flight chunk and
				// stop for this cycle.
				stats.Errors++
				for _, pending := range batch[i:] {
					if _, ferr := e.queue.RecordFailure(pending.ID); ferr != nil {
						slog.Warn("record failure", "id", pending.ID, "err", ferr)
					}
				}
				return err
			}
		}
	}
}

// pushChanges sends pending collection deltas and applies the per-item
// partition: accepted, rejected, conflicts.
func (e *Engine) pushChanges(ctx context.Context, stats *Stats) error {
	changes, err := e.store.PendingChanges()
	if err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}

	cursor, err := e.store.Cursor()
	if err != nil {
		return err
	}
	tombstones, err := e.store.PendingTombstones()
	if err != nil {
		return err
	}

	resp, err := e.client.Push(ctx, &syncclient.PushRequest{
		Changes:      changes,
		LastPulledAt: cursor.LastPulledAt,
	})
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}

	for _, item := range resp.Accepted {
		if rec, ok := tombstones[item.LocalID]; ok {
			// Delete acknowledged: the tombstone can finally go.
			if err := e.store.Purge(rec.Collection, rec.LocalID); err != nil {
				return err
			}
		} else if err := e.store.MarkSynced(item.Collection, item.LocalID, item.ServerID); err != nil {
			return err
		}
		stats.Pushed++
	}

	for _, item := range resp.Rejected {
		// A rejection will not resolve itself on retry: park the record
		// in the failed state and tell the user.
		if err := e.store.SetSyncStatus(item.Collection, item.LocalID, models.SyncFailed); err != nil {
			return err
		}
		e.OnItemFailure(item.Collection, item.LocalID, item.Reason)
		stats.Errors++
	}

	for _, item := range resp.Conflicts {
		if err := e.resolveConflict(item); err != nil {
			return err
		}
		stats.Conflicts++
	}
	return nil
}

// resolveConflict applies the resolver's outcome to the local store.
func (e *Engine) resolveConflict(item syncclient.ConflictItem) error {
	outcome, err := resolver.Resolve(resolver.Conflict{
		Collection: item.Collection,
		LocalID:    item.LocalID,
		ServerID:   item.ServerID,
		LocalData:  item.LocalData,
		ServerData: item.ServerData,
		Suggested:  resolver.Resolution(item.SuggestedResolution),
	})
	if err != nil {
		return err
	}

	if outcome.Shadow != nil {
		if err := e.store.SaveShadow(item.Collection, item.LocalID, outcome.Shadow, item.ServerData); err != nil {
			return err
		}
	}

	// server_wins settles the record; client_wins and merge leave it
	// pending so the next cycle pushes the resolved copy.
	status := models.SyncPending
	if outcome.Resolution == resolver.ServerWins {
		status = models.SyncSynced
	}
	if err := e.store.PutResolved(item.Collection, item.LocalID, item.ServerID, outcome.Data, status); err != nil {
		return err
	}

	slog.Debug("conflict resolved",
		"collection", item.Collection, "local_id", item.LocalID, "resolution", outcome.Resolution)
	return nil
}

// --- backoff ---

// backoff returns a jittered exponential delay for the given attempt.
func (e *Engine) backoff(attempt int) time.Duration {
	d := e.cfg.BackoffMin << (attempt - 1)
	if d > e.cfg.BackoffMax || d <= 0 {
		d = e.cfg.BackoffMax
	}
	// Half fixed, half jitter, so concurrent clients spread out.
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func (e *Engine) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
