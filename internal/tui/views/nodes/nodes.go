// Package nodes classifies watched nodes by how recently they reported.
package nodes

import (
	"time"

	"github.com/birdwatch/nodes/internal/ws"
)

// State is a node's display bucket.
type State int

const (
	StateLive State = iota
	StateQuiet
	StateDown
)

// QuietAfter is how long a connected node may go without a sighting
// before it is shown as quiet. Nodes emit at most every few seconds.
const QuietAfter = 10 * time.Second

// Classify returns the display state for a target's health at now.
func Classify(h ws.NodeHealthPayload, now time.Time) State {
	if !h.Connected || h.Status == ws.StatusFailed {
		return StateDown
	}
	if h.LastFrameAt.IsZero() || now.Sub(h.LastFrameAt) >= QuietAfter {
		return StateQuiet
	}
	return StateLive
}

// Name returns a display label.
func Name(s State) string {
	switch s {
	case StateLive:
		return "LIVE"
	case StateQuiet:
		return "QUIET"
	case StateDown:
		return "DOWN"
	default:
		return "?"
	}
}

// Glyph returns a single-cell marker for a state.
func Glyph(s State) string {
	switch s {
	case StateLive:
		return "●"
	case StateQuiet:
		return "◌"
	case StateDown:
		return "✗"
	default:
		return "·"
	}
}

// Count tallies targets per state.
func Count(health map[string]ws.NodeHealthPayload, now time.Time) (live, quiet, down int) {
	for _, h := range health {
		switch Classify(h, now) {
		case StateLive:
			live++
		case StateQuiet:
			quiet++
		default:
			down++
		}
	}
	return
}
