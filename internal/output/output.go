// Package output provides styled terminal output helpers (success, error,
// warning, record formatting) using lipgloss.
package output

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyles = map[models.SyncStatus]lipgloss.Style{
		models.SyncPending:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.SyncSynced:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.SyncConflict: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		models.SyncFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// Title prints a bold heading
func Title(format string, args ...interface{}) {
	fmt.Println(titleStyle.Render(fmt.Sprintf(format, args...)))
}

// Subtle prints a muted message
func Subtle(format string, args ...interface{}) {
	fmt.Println(subtleStyle.Render(fmt.Sprintf(format, args...)))
}

// Status renders a sync status with its color
func Status(s models.SyncStatus) string {
	if style, ok := statusStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

// RecordLine formats a record for list output: collection/local_id, status,
// and a relative modification time.
func RecordLine(r *models.Record) string {
	id := r.LocalID
	if len(id) > 8 {
		id = id[:8]
	}
	line := fmt.Sprintf("%s/%s  %s  %s",
		r.Collection, id, Status(r.SyncStatus), RelativeTime(r.LastModified))
	if r.IsDeleted {
		line += subtleStyle.Render("  (deleted)")
	}
	return line
}

// RelativeTime renders a unix-millis timestamp as a short relative duration.
func RelativeTime(millis int64) string {
	if millis == 0 {
		return "never"
	}
	d := time.Since(time.UnixMilli(millis))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
