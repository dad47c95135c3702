// Package debug provides a scrollable event log overlay.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/birdwatch/nodes/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

const maxEntries = 200

// Entry kinds.
const (
	KindWS     = "ws"
	KindHealth = "hlth"
	KindError  = "err"
	KindSearch = "srch"
)

// Entry is a single event log line.
type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Model holds debug log state.
type Model struct {
	Entries    []Entry
	Offset     int  // scroll offset from the bottom
	ErrorsOnly bool // hide everything but KindError
}

// New creates an empty debug model.
func New() Model {
	return Model{}
}

// Add appends a log entry, caps the buffer and scrolls to the bottom.
func (m *Model) Add(kind, message string) {
	m.Entries = append(m.Entries, Entry{
		Time:    time.Now(),
		Kind:    kind,
		Message: message,
	})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Addf is Add with formatting.
func (m *Model) Addf(kind, format string, args ...any) {
	m.Add(kind, fmt.Sprintf(format, args...))
}

// ToggleErrors switches between all entries and errors only.
func (m *Model) ToggleErrors() {
	m.ErrorsOnly = !m.ErrorsOnly
	m.Offset = 0
}

func (m Model) visible() []Entry {
	if !m.ErrorsOnly {
		return m.Entries
	}
	var out []Entry
	for _, e := range m.Entries {
		if e.Kind == KindError {
			out = append(out, e)
		}
	}
	return out
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.visible())-1, 0))
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visibleLines := max(height-6, 3)
	entries := m.visible()

	title := " DEBUG LOG "
	if m.ErrorsOnly {
		title = " DEBUG LOG (errors) "
	}
	header := theme.StyleHeader.Render(title)
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  e:errors only  esc:close  %d/%d entries", len(entries), len(m.Entries)))

	if len(entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", help))
	}

	end := max(len(entries)-m.Offset, 0)
	start := max(end-visibleLines, 0)

	lines := make([]string, 0, end-start)
	for _, e := range entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(e.Kind)
		msg := e.Message
		if innerW > 20 && len(msg) > innerW-20 {
			msg = msg[:innerW-23] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", ts, kind, msg))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(lines, "\n"), more, help))
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindWS:
		return theme.ColorInfo
	case KindError:
		return theme.ColorDanger
	case KindSearch:
		return theme.ColorAccent
	case KindHealth:
		return theme.ColorWarning
	default:
		return theme.ColorDimmed
	}
}
