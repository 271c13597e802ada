// Package monitor is the live sync dashboard TUI. It shows connectivity,
// pending work, queue depth, and recent conflicts, and triggers sync cycles
// on stable reconnect or on demand.
package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/netmon"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/queue"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncclient"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncengine"
)

const refreshInterval = 2 * time.Second

// Model is the main Bubble Tea model for the watch TUI
type Model struct {
	ctx     context.Context
	store   *store.Store
	queue   *queue.Queue
	client  *syncclient.Client
	engine  *syncengine.Engine
	monitor *netmon.Monitor

	probeInterval time.Duration

	// Window dimensions
	Width  int
	Height int

	// Panel data, refreshed on every tick
	Online     bool
	Pending    map[models.Collection]int
	QueueOps   []queue.Operation
	Shadows    []store.Shadow
	LastSync   time.Time
	LastResult *syncengine.Result

	Syncing bool
	Spinner spinner.Model
	Err     error

	// Connectivity bridge: one subscription for the life of the session,
	// torn down on quit.
	connCh      chan bool
	unsubscribe func()
}

type tickMsg time.Time
type probeMsg struct{}
type syncDoneMsg syncengine.Result
type connectivityMsg bool

// New builds the watch model. The engine's monitor binding is owned by the
// model: reconnects trigger sync cycles for as long as the TUI runs.
func New(ctx context.Context, s *store.Store, q *queue.Queue, c *syncclient.Client, e *syncengine.Engine, m *netmon.Monitor, probeInterval time.Duration) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	return &Model{
		ctx:           ctx,
		store:         s,
		queue:         q,
		client:        c,
		engine:        e,
		monitor:       m,
		probeInterval: probeInterval,
		Pending:       map[models.Collection]int{},
		Spinner:       sp,
	}
}

func (m *Model) Init() tea.Cmd {
	m.refresh()
	m.connCh = make(chan bool, 8)
	m.unsubscribe = m.monitor.Subscribe(func(online bool) {
		select {
		case m.connCh <- online:
		default:
		}
	})
	return tea.Batch(
		m.Spinner.Tick,
		tick(),
		m.probe(),
		m.readConnectivity(),
	)
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// probe checks the server health endpoint and feeds the result into the
// connectivity monitor, whose debounce decides when a sync fires.
func (m *Model) probe() tea.Cmd {
	return tea.Tick(m.probeInterval, func(time.Time) tea.Msg {
		m.monitor.Probe(m.ctx, m.client.HTTP, m.client.BaseURL+"/healthz")
		return probeMsg{}
	})
}

// readConnectivity waits for the next transition on the bridge channel the
// Init subscription feeds.
func (m *Model) readConnectivity() tea.Cmd {
	return func() tea.Msg {
		return connectivityMsg(<-m.connCh)
	}
}

func (m *Model) runSync() tea.Cmd {
	m.Syncing = true
	return func() tea.Msg {
		return syncDoneMsg(m.engine.Sync(m.ctx))
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.unsubscribe != nil {
				m.unsubscribe()
			}
			return m, tea.Quit
		case "s":
			if !m.Syncing {
				return m, m.runSync()
			}
		}
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case probeMsg:
		return m, m.probe()

	case connectivityMsg:
		m.Online = bool(msg)
		cmds := []tea.Cmd{m.readConnectivity()}
		if m.Online && !m.Syncing {
			cmds = append(cmds, m.runSync())
		}
		return m, tea.Batch(cmds...)

	case syncDoneMsg:
		m.Syncing = false
		res := syncengine.Result(msg)
		if !res.NoOp {
			m.LastResult = &res
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}
