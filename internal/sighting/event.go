// Package sighting produces the synthetic bird sighting events emitted by
// every simulated node.
package sighting

import "time"

// Event is one synthetic telemetry record. It is created fresh for every
// emission and never mutated afterwards.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Species   string    `json:"species"`
	Name      string    `json:"name"`
}

// Equal reports whether two events carry the same content. Timestamps are
// compared as instants so that a decoded event equals the one encoded.
func (e Event) Equal(o Event) bool {
	return e.Timestamp.Equal(o.Timestamp) && e.Species == o.Species && e.Name == o.Name
}
