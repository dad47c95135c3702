// Package dashboard provides the per-node rate table and the species
// leaderboard for the watcher TUI.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/birdwatch/nodes/internal/catalog"
	"github.com/birdwatch/nodes/internal/tui/theme"
	"github.com/birdwatch/nodes/internal/tui/views/nodes"
	"github.com/birdwatch/nodes/internal/ws"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

const (
	fps        = 20
	rateWindow = 10 * time.Second
	topSpecies = 8
)

// TickMsg advances the rate bar animation.
type TickMsg time.Time

// Tick schedules the next animation frame.
func Tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg { return TickMsg(t) })
}

type nodeRow struct {
	id       int64
	name     string
	count    int
	arrivals []time.Time
	health   *ws.NodeHealthPayload

	rate     float64 // target, sightings per second
	shown    float64 // spring position
	velocity float64
}

// Model holds the dashboard state.
type Model struct {
	Width int

	spring  harmonica.Spring
	rows    map[int64]*nodeRow
	species map[int64]*catalog.Count
}

// New creates a dashboard model.
func New() Model {
	return Model{
		spring:  harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
		rows:    make(map[int64]*nodeRow),
		species: make(map[int64]*catalog.Count),
	}
}

// SetSnapshot replaces all counts with the server's summary. Rate
// history and animation state survive so bars do not jump on resync.
func (m *Model) SetSnapshot(p ws.SnapshotPayload) {
	seen := make(map[int64]bool, len(p.Summary.PerNode))
	for _, c := range p.Summary.PerNode {
		r := m.row(c.ID)
		r.name = c.Name
		r.count = c.Count
		seen[c.ID] = true
	}
	for id, r := range m.rows {
		if !seen[id] && r.health == nil {
			delete(m.rows, id)
		}
	}

	m.species = make(map[int64]*catalog.Count, len(p.Summary.PerSpecies))
	for _, c := range p.Summary.PerSpecies {
		c := c
		m.species[c.ID] = &c
	}

	for _, h := range p.Health {
		m.SetHealth(h)
	}
}

// AddSightings folds a live batch into the counts and rate windows.
func (m *Model) AddSightings(batch []ws.Sighting, now time.Time) {
	for _, s := range batch {
		r := m.row(s.NodeID)
		if s.Node != "" {
			r.name = s.Node
		}
		r.count++
		r.arrivals = append(r.arrivals, now)
		if r.health != nil && now.After(r.health.LastFrameAt) {
			r.health.LastFrameAt = now
		}

		c, ok := m.species[s.SpeciesID]
		if !ok {
			c = &catalog.Count{ID: s.SpeciesID, Name: s.Species}
			m.species[s.SpeciesID] = c
		}
		c.Count++
		if s.Timestamp.After(c.LastSeen) {
			c.LastSeen = s.Timestamp
		}
	}
}

// SetHealth attaches a target's health to its node row. Targets that
// never connected have no node yet and are skipped.
func (m *Model) SetHealth(h ws.NodeHealthPayload) {
	if h.NodeID == 0 {
		return
	}
	r := m.row(h.NodeID)
	hc := h
	r.health = &hc
}

// Update advances rates and spring positions for one animation frame.
func (m *Model) Update(now time.Time) {
	for _, r := range m.rows {
		cut := now.Add(-rateWindow)
		i := 0
		for i < len(r.arrivals) && r.arrivals[i].Before(cut) {
			i++
		}
		r.arrivals = r.arrivals[i:]
		r.rate = float64(len(r.arrivals)) / rateWindow.Seconds()
		r.shown, r.velocity = m.spring.Update(r.shown, r.velocity, r.rate)
		if r.shown < 0 {
			r.shown = 0
		}
	}
}

func (m *Model) row(id int64) *nodeRow {
	r, ok := m.rows[id]
	if !ok {
		r = &nodeRow{id: id, name: fmt.Sprintf("node %d", id)}
		m.rows[id] = r
	}
	return r
}

// Rate returns the current target rate for a node, in sightings per second.
func (m Model) Rate(nodeID int64) float64 {
	if r, ok := m.rows[nodeID]; ok {
		return r.rate
	}
	return 0
}

// Leaderboard returns species ordered by count, then name.
func (m Model) Leaderboard() []catalog.Count {
	out := make([]catalog.Count, 0, len(m.species))
	for _, c := range m.species {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (m Model) sortedRows() []*nodeRow {
	out := make([]*nodeRow, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].name != out[j].name {
			return out[i].name < out[j].name
		}
		return out[i].id < out[j].id
	})
	return out
}

// View renders the node table and species leaderboard.
func (m Model) View(now time.Time) string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderNodes(width, now),
		"",
		m.renderLeaderboard(width),
	)
}

func (m Model) renderNodes(width int, now time.Time) string {
	header := theme.StyleHeader.Render("  Nodes")
	rows := m.sortedRows()
	if len(rows) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("  No nodes reporting"))
	}

	colName := 16
	colState := 7
	colCount := 9
	colRate := 28

	dimStyle := lipgloss.NewStyle().Foreground(theme.ColorDimmed)
	brightStyle := lipgloss.NewStyle().Foreground(theme.ColorBright).Bold(true)

	tableHeader := fmt.Sprintf("  %-*s %-*s %*s  %-*s",
		colName, "Node",
		colState, "State",
		colCount, "Sightings",
		colRate, "Rate (/s)",
	)
	lines := []string{
		header,
		dimStyle.Render(tableHeader),
		dimStyle.Render("  " + strings.Repeat("─", min(width-4, colName+colState+colCount+colRate+5))),
	}

	peak := 1.0
	for _, r := range rows {
		peak = max(peak, r.rate, r.shown)
	}

	for _, r := range rows {
		name := r.name
		if len(name) > colName-1 {
			name = name[:colName-2] + "…"
		}
		nameStr := lipgloss.NewStyle().Width(colName).Render(name)

		stateStr := dimStyle.Width(colState).Render("-")
		if r.health != nil {
			st := nodes.Classify(*r.health, now)
			stateStr = lipgloss.NewStyle().Foreground(stateColor(st)).Width(colState).
				Render(nodes.Glyph(st) + " " + nodes.Name(st))
		}

		countStr := brightStyle.Width(colCount).Align(lipgloss.Right).Render(formatCount(r.count))
		bar := renderRateBar(r.shown, peak, colRate)

		lines = append(lines, fmt.Sprintf("  %s %s %s  %s", nameStr, stateStr, countStr, bar))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderLeaderboard(width int) string {
	header := theme.StyleHeader.Render("  Species")
	board := m.Leaderboard()
	if len(board) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("  No sightings yet"))
	}
	if len(board) > topSpecies {
		board = board[:topSpecies]
	}

	lines := []string{header}
	for i, c := range board {
		rank := fmt.Sprintf("%-3d", i+1)
		name := lipgloss.NewStyle().Foreground(theme.SpeciesColor(c.Name)).Width(min(24, width/2)).Render(c.Name)
		count := lipgloss.NewStyle().Foreground(theme.ColorBright).Width(8).Align(lipgloss.Right).Render(formatCount(c.Count))
		lines = append(lines, fmt.Sprintf("  %s %s %s", rank, name, count))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderRateBar draws a bar for rate scaled against peak.
func renderRateBar(rate, peak float64, barWidth int) string {
	if barWidth < 10 {
		barWidth = 10
	}
	labelWidth := 6
	fillWidth := barWidth - labelWidth

	frac := 0.0
	if peak > 0 {
		frac = rate / peak
	}
	filled := max(0, min(int(frac*float64(fillWidth)+0.5), fillWidth))
	empty := fillWidth - filled

	color := theme.RateBarColor(frac)
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	bar += lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("░", empty))
	label := fmt.Sprintf(" %5.2f", max(rate, 0))
	return bar + lipgloss.NewStyle().Foreground(color).Render(label)
}

func stateColor(s nodes.State) lipgloss.Color {
	switch s {
	case nodes.StateLive:
		return theme.ColorLive
	case nodes.StateQuiet:
		return theme.ColorQuiet
	default:
		return theme.ColorDown
	}
}

// formatCount formats large numbers with K/M suffixes.
func formatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
