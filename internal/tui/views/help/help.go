// Package help renders the key binding reference as markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/birdwatch/nodes/internal/tui/theme"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const intro = `# Birdwatch

Live view of the sightings recorded from the configured bird nodes.
Nodes are **live** when they reported in the last few seconds, **quiet**
when connected but silent, and **down** when the recorder cannot reach them.

## Keys
`

// Model renders a cached help page.
type Model struct {
	Style string // glamour standard style name

	bindings []key.Binding
	width    int
	rendered string
}

// New creates a help page for bindings.
func New(bindings []key.Binding) Model {
	return Model{Style: "dark", bindings: bindings}
}

// Markdown returns the unrendered help document.
func (m Model) Markdown() string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n| Key | Action |\n|---|---|\n")
	for _, kb := range m.bindings {
		h := kb.Help()
		if h.Key == "" {
			continue
		}
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	return b.String()
}

// View renders the help page inside a panel of the given width.
func (m *Model) View(width int) string {
	innerW := max(width-8, 30)
	if m.rendered == "" || m.width != innerW {
		m.width = innerW
		m.rendered = m.render(innerW)
	}
	return lipgloss.NewStyle().
		Width(innerW+4).
		Padding(0, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(m.rendered + "\n" + theme.StyleDimmed.Render("esc:close"))
}

func (m Model) render(width int) string {
	md := m.Markdown()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.Style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}
