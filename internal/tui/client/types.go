// Package client provides WebSocket and HTTP clients for the watcher's
// observer API. Payload types are shared with the server package.
package client

import (
	"encoding/json"

	"github.com/birdwatch/nodes/internal/ws"
)

// WSMessage is the envelope for all WebSocket messages. The payload is
// decoded once the type is known.
type WSMessage struct {
	Type    ws.MessageType  `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSSnapshotMsg delivers the full catalog summary.
type WSSnapshotMsg struct{ Payload ws.SnapshotPayload }

// WSSightingsMsg delivers a batch of new sightings.
type WSSightingsMsg struct{ Payload ws.SightingsPayload }

// WSNodeHealthMsg reports a node health change.
type WSNodeHealthMsg struct{ Payload ws.NodeHealthPayload }

// WSErrorMsg wraps a server-side error.
type WSErrorMsg struct{ Raw json.RawMessage }

// SearchResultMsg carries the answer to an HTTP sightings search.
type SearchResultMsg struct {
	Query     string
	Sightings []ws.Sighting
	Err       error
}
