package monitor

import (
	"log/slog"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

// refresh reloads panel data from the store and queue. Errors are shown in
// the footer instead of killing the TUI.
func (m *Model) refresh() {
	m.Err = nil

	pending := map[models.Collection]int{}
	for _, c := range models.Collections {
		recs, err := m.store.List(c, false)
		if err != nil {
			m.fail(err)
			return
		}
		n := 0
		for _, r := range recs {
			if r.SyncStatus == models.SyncPending || r.SyncStatus == models.SyncFailed {
				n++
			}
		}
		if n > 0 {
			pending[c] = n
		}
	}
	m.Pending = pending

	size, err := m.queue.Size()
	if err != nil {
		m.fail(err)
		return
	}
	m.QueueOps = nil
	if size > 0 {
		ops, err := m.queue.DequeueBatch(min(size, 10))
		if err != nil {
			m.fail(err)
			return
		}
		m.QueueOps = ops
	}

	shadows, err := m.store.ListShadows(5)
	if err != nil {
		m.fail(err)
		return
	}
	m.Shadows = shadows

	last, err := m.store.LastSync()
	if err != nil {
		m.fail(err)
		return
	}
	m.LastSync = last
	m.Online = m.monitor.Online()
}

func (m *Model) fail(err error) {
	m.Err = err
	slog.Debug("watch refresh failed", "err", err)
}
