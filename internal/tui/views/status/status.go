package status

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/birdwatch/nodes/internal/tui/theme"
	"github.com/birdwatch/nodes/internal/tui/views/nodes"
	"github.com/birdwatch/nodes/internal/ws"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Total     int
	Health    map[string]ws.NodeHealthPayload
	Width     int
	Now       func() time.Time
}

// New creates a status bar model.
func New() Model {
	return Model{
		Health: make(map[string]ws.NodeHealthPayload),
		Now:    time.Now,
	}
}

// SetHealth replaces the entry for one target.
func (m *Model) SetHealth(h ws.NodeHealthPayload) {
	m.Health[h.Target] = h
}

// Touch marks the target serving nodeID as having reported at. Health
// is only pushed on change, so live sightings keep it fresh in between.
func (m *Model) Touch(nodeID int64, at time.Time) {
	for t, h := range m.Health {
		if h.NodeID == nodeID && h.Connected && at.After(h.LastFrameAt) {
			h.LastFrameAt = at
			m.Health[t] = h
		}
	}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	live, quiet, down := nodes.Count(m.Health, m.Now())
	counts := fmt.Sprintf("%d live  %d quiet  %d down  %d sightings",
		live, quiet, down, m.Total)

	targets := make([]string, 0, len(m.Health))
	for t := range m.Health {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	var healthParts []string
	for _, t := range targets {
		h := m.Health[t]
		if h.Status == ws.StatusHealthy {
			continue
		}
		healthParts = append(healthParts, lipgloss.NewStyle().Foreground(theme.HealthColor(string(h.Status))).Render(
			fmt.Sprintf("%s: %s", t, h.Status),
		))
	}
	healthStr := strings.Join(healthParts, "  ")

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + counts
	if healthStr != "" {
		content += sep + healthStr
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
