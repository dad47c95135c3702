// Package feed renders the scrolling list of recent sightings and the
// results of a name search.
package feed

import (
	"fmt"
	"strings"

	"github.com/birdwatch/nodes/internal/tui/theme"
	"github.com/birdwatch/nodes/internal/ws"
	"github.com/charmbracelet/lipgloss"
)

const maxRecent = 100

// Model holds recent sightings, newest first.
type Model struct {
	Width int

	recent  []ws.Sighting
	seen    map[int64]bool
	query   string
	results []ws.Sighting
	err     error
}

// New creates an empty feed.
func New() Model {
	return Model{seen: make(map[int64]bool)}
}

// Reset replaces the feed with a snapshot's recent list, newest first.
func (m *Model) Reset(recent []ws.Sighting) {
	m.recent = m.recent[:0]
	m.seen = make(map[int64]bool, len(recent))
	for _, s := range recent {
		if m.seen[s.ID] {
			continue
		}
		m.seen[s.ID] = true
		m.recent = append(m.recent, s)
	}
	m.trim()
}

// Add prepends a live batch. The batch arrives oldest first; sightings
// already shown are dropped.
func (m *Model) Add(batch []ws.Sighting) {
	fresh := make([]ws.Sighting, 0, len(batch))
	for i := len(batch) - 1; i >= 0; i-- {
		s := batch[i]
		if m.seen[s.ID] {
			continue
		}
		m.seen[s.ID] = true
		fresh = append(fresh, s)
	}
	m.recent = append(fresh, m.recent...)
	m.trim()
}

func (m *Model) trim() {
	if len(m.recent) <= maxRecent {
		return
	}
	for _, s := range m.recent[maxRecent:] {
		delete(m.seen, s.ID)
	}
	m.recent = m.recent[:maxRecent]
}

// Recent returns the sightings currently shown, newest first.
func (m Model) Recent() []ws.Sighting {
	return m.recent
}

// SetResults switches the feed to search results.
func (m *Model) SetResults(query string, results []ws.Sighting, err error) {
	m.query = query
	m.results = results
	m.err = err
}

// ClearSearch returns the feed to live mode.
func (m *Model) ClearSearch() {
	m.query = ""
	m.results = nil
	m.err = nil
}

// Searching reports whether search results are shown.
func (m Model) Searching() bool {
	return m.query != ""
}

// View renders up to height lines.
func (m Model) View(height int) string {
	if height < 3 {
		height = 3
	}
	items := m.recent
	title := "  Recent sightings"
	if m.Searching() {
		items = m.results
		title = fmt.Sprintf("  Search %q (%d)", m.query, len(m.results))
	}
	lines := []string{theme.StyleHeader.Render(title)}

	switch {
	case m.Searching() && m.err != nil:
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("  "+m.err.Error()))
	case len(items) == 0 && m.Searching():
		lines = append(lines, theme.StyleDimmed.Render("  No matches"))
	case len(items) == 0:
		lines = append(lines, theme.StyleDimmed.Render("  Waiting for sightings..."))
	}

	for i, s := range items {
		if i >= height-1 {
			break
		}
		lines = append(lines, m.renderLine(s))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderLine(s ws.Sighting) string {
	ts := theme.StyleDimmed.Render(s.Timestamp.Local().Format("15:04:05"))
	species := lipgloss.NewStyle().Foreground(theme.SpeciesColor(s.Species)).Width(18).Render(s.Species)
	node := theme.StyleDimmed.Render(s.Node)
	name := s.Name
	if w := m.Width - 50; w > 10 && len(name) > w {
		name = name[:w-1] + "…"
	}
	return fmt.Sprintf("  %s %s %s  %s", ts, species, name, node)
}
