package catalog

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
)

const maxNameLen = 255

// Node is a sighting source, unique by address and port.
type Node struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// Species is unique by name.
type Species struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Bird is a single recorded sighting.
type Bird struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	SpeciesID int64     `json:"speciesId"`
	NodeID    int64     `json:"nodeId"`
}

// Query filters Birds. Zero values match everything; Limit 0 means no
// limit.
type Query struct {
	Search    string
	SpeciesID int64
	NodeID    int64
	Limit     int
}

// Count is one row of a Summary breakdown.
type Count struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"lastSeen"`
}

type Summary struct {
	Total      int       `json:"total"`
	LastSeen   time.Time `json:"lastSeen"`
	PerSpecies []Count   `json:"perSpecies"`
	PerNode    []Count   `json:"perNode"`
}
