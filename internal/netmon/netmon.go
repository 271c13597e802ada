// Package netmon observes connectivity and fans out state changes to
// subscribers. It never runs sync logic itself; the sync engine subscribes
// and reacts to reconnects.
package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultDebounce is the settle time applied to an offline→online transition
// before subscribers are notified, so a flaky link does not thrash the sync
// engine.
const DefaultDebounce = 3 * time.Second

// Monitor tracks a boolean connectivity state.
type Monitor struct {
	mu       sync.Mutex
	online   bool
	debounce time.Duration
	timer    *time.Timer
	nextID   int
	subs     map[int]func(online bool)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithDebounce overrides the reconnect settle time. Zero disables debouncing
// (tests use this).
func WithDebounce(d time.Duration) Option {
	return func(m *Monitor) { m.debounce = d }
}

// New creates a Monitor that starts offline.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		debounce: DefaultDebounce,
		subs:     make(map[int]func(bool)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Online returns the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a callback for stable connectivity transitions and
// returns an unsubscribe handle that removes exactly this callback.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// SetOnline records a connectivity observation. Going offline notifies
// immediately and cancels any pending reconnect notification. Coming online
// notifies once after the debounce window, and only if the link stayed up.
// A flap back to offline within the window fires nothing.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if online == m.online {
		m.mu.Unlock()
		return
	}
	m.online = online

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	if !online {
		subs := m.snapshot()
		m.mu.Unlock()
		slog.Debug("connectivity lost")
		for _, fn := range subs {
			fn(false)
		}
		return
	}

	if m.debounce <= 0 {
		subs := m.snapshot()
		m.mu.Unlock()
		slog.Debug("connectivity restored")
		for _, fn := range subs {
			fn(true)
		}
		return
	}

	m.timer = time.AfterFunc(m.debounce, m.fireOnline)
	m.mu.Unlock()
}

func (m *Monitor) fireOnline() {
	m.mu.Lock()
	if !m.online {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	subs := m.snapshot()
	m.mu.Unlock()

	slog.Debug("connectivity restored")
	for _, fn := range subs {
		fn(true)
	}
}

// snapshot copies subscribers so callbacks run outside the lock. Callers
// must hold mu.
func (m *Monitor) snapshot() []func(bool) {
	out := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		out = append(out, fn)
	}
	return out
}

// Probe checks reachability of the sync server's health endpoint and feeds
// the result into the monitor.
func (m *Monitor) Probe(ctx context.Context, client *http.Client, healthURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		m.SetOnline(false)
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		m.SetOnline(false)
		return
	}
	resp.Body.Close()
	m.SetOnline(resp.StatusCode < 500)
}

// Watch probes on a fixed interval until the context is cancelled.
func (m *Monitor) Watch(ctx context.Context, client *http.Client, healthURL string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Probe(ctx, client, healthURL)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx, client, healthURL)
		}
	}
}
