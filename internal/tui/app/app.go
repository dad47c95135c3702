package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/birdwatch/nodes/internal/tui/client"
	"github.com/birdwatch/nodes/internal/tui/theme"
	"github.com/birdwatch/nodes/internal/tui/views/dashboard"
	"github.com/birdwatch/nodes/internal/tui/views/debug"
	"github.com/birdwatch/nodes/internal/tui/views/feed"
	"github.com/birdwatch/nodes/internal/tui/views/help"
	"github.com/birdwatch/nodes/internal/tui/views/status"
	"github.com/birdwatch/nodes/internal/ws"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const searchLimit = 100

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
)

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	keys    KeyMap
	width   int
	height  int
	overlay Overlay

	// Search prompt; active while typing.
	search    textinput.Model
	searching bool

	// Sub-views.
	statusBar status.Model
	dashboard dashboard.Model
	feed      feed.Model
	debugLog  debug.Model
	help      help.Model

	// Connection state.
	connected bool
	lastSeq   uint64
}

// New creates the root model.
func New(ws *client.WSClient, http *client.HTTPClient) Model {
	ctx, cancel := context.WithCancel(context.Background())
	keys := DefaultKeyMap()

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "name contains..."
	search.CharLimit = 64

	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
		keys:      keys,
		search:    search,
		statusBar: status.New(),
		dashboard: dashboard.New(),
		feed:      feed.New(),
		debugLog:  debug.New(),
		help:      help.New(keys.Bindings()),
	}
}

// Init starts the WebSocket connection and the animation clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.ws.Listen(m.ctx), dashboard.Tick())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.dashboard.Width = msg.Width
		m.feed.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case dashboard.TickMsg:
		m.dashboard.Update(time.Time(msg))
		return m, dashboard.Tick()

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.debugLog.Add(debug.KindWS, "connected")
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		if m.ws != nil {
			m.lastSeq = m.ws.Seq()
		}
		m.debugLog.Addf(debug.KindError, "disconnected: %v", msg.Err)
		return m, m.ws.Listen(m.ctx)

	case client.WSSnapshotMsg:
		p := msg.Payload
		m.statusBar.Total = p.Summary.Total
		for _, h := range p.Health {
			m.statusBar.SetHealth(h)
		}
		m.dashboard.SetSnapshot(p)
		m.feed.Reset(p.Recent)
		m.debugLog.Addf(debug.KindWS, "snapshot: %d sightings, %d targets", p.Summary.Total, len(p.Health))
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSSightingsMsg:
		batch := msg.Payload.Sightings
		now := m.now()
		m.statusBar.Total += len(batch)
		for _, s := range batch {
			m.statusBar.Touch(s.NodeID, now)
		}
		m.dashboard.AddSightings(batch, now)
		m.feed.Add(batch)
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSNodeHealthMsg:
		h := msg.Payload
		prev, known := m.statusBar.Health[h.Target]
		m.statusBar.SetHealth(h)
		m.dashboard.SetHealth(h)
		if !known || prev.Status != h.Status {
			if h.LastError != "" && h.Status != ws.StatusHealthy {
				m.debugLog.Addf(debug.KindError, "%s: %s", h.Target, h.LastError)
			}
			m.debugLog.Addf(debug.KindHealth, "%s -> %s", h.Target, h.Status)
		}
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSErrorMsg:
		m.debugLog.Addf(debug.KindError, "server: %s", string(msg.Raw))
		return m, m.ws.ReadLoop(m.ctx)

	case client.SearchResultMsg:
		if msg.Err != nil {
			m.debugLog.Addf(debug.KindError, "search %q: %v", msg.Query, msg.Err)
		} else {
			m.debugLog.Addf(debug.KindSearch, "search %q: %d results", msg.Query, len(msg.Sightings))
		}
		m.feed.SetResults(msg.Query, msg.Sightings, msg.Err)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.searching = false
			m.search.Blur()
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			m.searching = false
			m.search.Blur()
			q := strings.TrimSpace(m.search.Value())
			if q == "" {
				m.feed.ClearSearch()
				return m, nil
			}
			return m, m.http.Search(q, searchLimit)
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Quit):
			m.cancel()
			return m, tea.Quit
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.ErrorsOnly):
			m.debugLog.ToggleErrors()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue("")
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Escape):
		m.feed.ClearSearch()
		return m, nil

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil
	}

	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	now := m.now()
	switch m.overlay {
	case OverlayDebug:
		return m.debugLog.View(m.width, m.height)
	case OverlayHelp:
		return m.help.View(m.width)
	}

	top := lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		m.dashboard.View(now),
		"",
	)
	footer := theme.StyleDimmed.Render("  /:search  d:debug  ?:help  q:quit")
	if m.searching {
		footer = "  " + m.search.View()
	}

	feedHeight := m.height - lipgloss.Height(top) - lipgloss.Height(footer)
	screen := lipgloss.JoinVertical(lipgloss.Left, top, m.feed.View(feedHeight), footer)

	if !m.connected {
		return m.disconnectedOverlay(screen)
	}
	return screen
}

func (m Model) disconnectedOverlay(screen string) string {
	box := lipgloss.NewStyle().
		Padding(1, 4).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorDanger).
		Render(lipgloss.JoinVertical(lipgloss.Center,
			lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).Render("DISCONNECTED"),
			theme.StyleDimmed.Render(fmt.Sprintf("Reconnecting... (last seq %d)", m.lastSeq)),
		))
	return lipgloss.JoinVertical(lipgloss.Left, box, screen)
}
