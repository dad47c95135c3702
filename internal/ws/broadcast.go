package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/birdwatch/nodes/internal/catalog"
	"github.com/gorilla/websocket"
)

const (
	recentLimit  = 50
	writeTimeout = 10 * time.Second
	sendBuffer   = 64
)

var (
	ErrTooManyConnections = errors.New("too many websocket connections")
	ErrBroadcasterStopped = errors.New("broadcaster stopped")
)

// HealthSource reports the current health of every watched target.
type HealthSource interface {
	HealthSnapshot() []NodeHealthPayload
}

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	store    *catalog.Store
	health   HealthSource
	throttle time.Duration
	maxConns int

	snapshotTicker *time.Ticker
	stop           chan struct{}
	stopOnce       sync.Once

	flushMu    sync.Mutex
	pending    []Sighting
	flushTimer *time.Timer

	seqMu sync.Mutex
	seq   uint64
}

// NewBroadcaster fans catalog activity out to WebSocket clients. New
// sightings are batched for throttle; a full snapshot goes out every
// snapshotInterval. maxConns 0 means unlimited.
func NewBroadcaster(store *catalog.Store, throttle, snapshotInterval time.Duration, maxConns int) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		store:    store,
		throttle: throttle,
		maxConns: maxConns,
		stop:     make(chan struct{}),
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

// SetHealthSource must be called before clients connect.
func (b *Broadcaster) SetHealthSource(h HealthSource) {
	b.health = h
}

func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		b.snapshotTicker.Stop()
		close(b.stop)

		b.flushMu.Lock()
		if b.flushTimer != nil {
			b.flushTimer.Stop()
			b.flushTimer = nil
		}
		b.flushMu.Unlock()

		b.mu.Lock()
		for c := range b.clients {
			delete(b.clients, c)
			close(c.send)
		}
		b.mu.Unlock()
	})
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, sendBuffer),
	}

	b.mu.Lock()
	// Stop closes b.stop before taking b.mu, so a client added here is
	// either rejected or later closed by Stop.
	select {
	case <-b.stop:
		b.mu.Unlock()
		return nil, ErrBroadcasterStopped
	default:
	}
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()

	data, err := json.Marshal(b.envelope(MsgSnapshot, b.snapshot()))
	if err == nil {
		// A client too slow for its first snapshot catches the next one.
		b.trySend(c, data)
	}
	return c, nil
}

// trySend queues data without blocking. It reports false only when the
// client's buffer is full; removed clients are skipped silently.
func (b *Broadcaster) trySend(c *client, data []byte) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.clients[c] {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

// QueueSighting adds s to the next throttled batch.
func (b *Broadcaster) QueueSighting(s Sighting) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pending = append(b.pending, s)

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// QueueHealth sends a health change immediately.
func (b *Broadcaster) QueueHealth(h NodeHealthPayload) {
	b.broadcast(b.envelope(MsgNodeHealth, h))
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	batch := b.pending
	b.pending = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if len(batch) == 0 {
		return
	}
	b.broadcast(b.envelope(MsgSightings, SightingsPayload{Sightings: batch}))
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.stop:
			return
		case <-b.snapshotTicker.C:
			if b.ClientCount() == 0 {
				continue
			}
			b.broadcast(b.envelope(MsgSnapshot, b.snapshot()))
		}
	}
}

func (b *Broadcaster) snapshot() SnapshotPayload {
	p := SnapshotPayload{
		Summary: b.store.Summary(),
		Recent:  Resolve(b.store, b.store.Birds(catalog.Query{Limit: recentLimit})),
		Health:  []NodeHealthPayload{},
	}
	if b.health != nil {
		p.Health = b.health.HealthSnapshot()
	}
	return p
}

func (b *Broadcaster) envelope(t MessageType, payload interface{}) WSMessage {
	b.seqMu.Lock()
	b.seq++
	seq := b.seq
	b.seqMu.Unlock()
	return WSMessage{Type: t, Seq: seq, Payload: payload}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if !b.trySend(c, data) {
			log.Printf("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Resolve turns catalog birds into sightings, dropping any whose species
// or node has since been deleted.
func Resolve(store *catalog.Store, birds []catalog.Bird) []Sighting {
	out := make([]Sighting, 0, len(birds))
	species := make(map[int64]catalog.Species)
	nodes := make(map[int64]catalog.Node)
	for _, b := range birds {
		sp, ok := species[b.SpeciesID]
		if !ok {
			var err error
			if sp, err = store.Species(b.SpeciesID); err != nil {
				continue
			}
			species[b.SpeciesID] = sp
		}
		n, ok := nodes[b.NodeID]
		if !ok {
			var err error
			if n, err = store.Node(b.NodeID); err != nil {
				continue
			}
			nodes[b.NodeID] = n
		}
		out = append(out, NewSighting(b, sp, n))
	}
	return out
}
