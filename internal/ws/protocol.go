package ws

import (
	"time"

	"github.com/birdwatch/nodes/internal/catalog"
)

type MessageType string

const (
	MsgSnapshot   MessageType = "snapshot"
	MsgSightings  MessageType = "sightings"
	MsgNodeHealth MessageType = "node_health"
	MsgError      MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

// Sighting is a catalog Bird with its species and node names resolved.
type Sighting struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	SpeciesID int64     `json:"speciesId"`
	Species   string    `json:"species"`
	NodeID    int64     `json:"nodeId"`
	Node      string    `json:"node"`
}

func NewSighting(b catalog.Bird, sp catalog.Species, n catalog.Node) Sighting {
	return Sighting{
		ID:        b.ID,
		Timestamp: b.Timestamp,
		Name:      b.Name,
		SpeciesID: sp.ID,
		Species:   sp.Name,
		NodeID:    n.ID,
		Node:      n.Name,
	}
}

type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusFailed   HealthStatus = "failed"
)

// NodeHealthPayload describes the recorder's view of one target.
type NodeHealthPayload struct {
	Target        string       `json:"target"`
	NodeID        int64        `json:"nodeId,omitempty"`
	Status        HealthStatus `json:"status"`
	Connected     bool         `json:"connected"`
	DialFailures  int          `json:"dialFailures"`
	ParseFailures int          `json:"parseFailures"`
	Frames        uint64       `json:"frames"`
	LastFrameAt   time.Time    `json:"lastFrameAt,omitempty"`
	LastError     string       `json:"lastError,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

type SnapshotPayload struct {
	Summary catalog.Summary     `json:"summary"`
	Recent  []Sighting          `json:"recent"`
	Health  []NodeHealthPayload `json:"health"`
}

type SightingsPayload struct {
	Sightings []Sighting `json:"sightings"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
