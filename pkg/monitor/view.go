package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n")

	left := panelStyle.Render(m.pendingPanel())
	right := panelStyle.Render(m.queuePanel())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")

	if len(m.Shadows) > 0 {
		b.WriteString(panelStyle.Render(m.conflictsPanel()))
		b.WriteString("\n")
	}

	b.WriteString(m.footerView())
	return b.String()
}

func (m *Model) headerView() string {
	conn := offlineStyle.Render("OFFLINE")
	if m.Online {
		conn = onlineStyle.Render("ONLINE")
	}

	sync := subtleStyle.Render("idle")
	switch {
	case m.Syncing:
		sync = m.Spinner.View() + " syncing"
	case m.LastResult != nil && !m.LastResult.Success:
		sync = offlineStyle.Render(fmt.Sprintf("sync failed: %v", m.LastResult.Err))
	case m.LastResult != nil:
		sync = fmt.Sprintf("last cycle: %d pushed, %d pulled, %d conflicts",
			m.LastResult.Stats.Pushed, m.LastResult.Stats.Pulled, m.LastResult.Stats.Conflicts)
	}

	last := "never"
	if !m.LastSync.IsZero() {
		last = m.LastSync.Format("15:04:05")
	}

	return fmt.Sprintf("%s  %s  %s  %s",
		titleStyle.Render("aurasync"),
		conn,
		sync,
		timestampStyle.Render("last pull "+last),
	)
}

func (m *Model) pendingPanel() string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Pending"))
	b.WriteString("\n")
	if len(m.Pending) == 0 {
		b.WriteString(subtleStyle.Render("everything synced"))
		return b.String()
	}
	for _, c := range models.Collections {
		if n, ok := m.Pending[c]; ok {
			b.WriteString(fmt.Sprintf("%-12s %s\n", c,
				statusStyles[models.SyncPending].Render(fmt.Sprintf("%d", n))))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) queuePanel() string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Queue"))
	b.WriteString("\n")
	if len(m.QueueOps) == 0 {
		b.WriteString(subtleStyle.Render("empty"))
		return b.String()
	}
	for _, op := range m.QueueOps {
		line := fmt.Sprintf("%-6s %s", op.Method.HTTPVerb(), op.Resource)
		if op.RetryCount > 0 {
			line += subtleStyle.Render(fmt.Sprintf(" (retry %d)", op.RetryCount))
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) conflictsPanel() string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Conflicts"))
	b.WriteString("\n")
	for _, sh := range m.Shadows {
		b.WriteString(fmt.Sprintf("%s/%s %s\n",
			sh.Collection, sh.LocalID,
			timestampStyle.Render(sh.OverwrittenAt.Format("15:04:05"))))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) footerView() string {
	if m.Err != nil {
		return offlineStyle.Render(fmt.Sprintf("error: %v", m.Err))
	}
	return helpStyle.Render("s: sync now  q: quit")
}
