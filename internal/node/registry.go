package node

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Registry is the arena of live sessions, keyed by a monotonically
// increasing id. Sessions never share state through it; it only exists so
// the service can count and describe what is running.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	nextID   uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uint64]*Session),
	}
}

// add assigns the next id to s and stores it.
func (r *Registry) add(s *Session) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	r.sessions[s.ID] = s
	return s.ID
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Get(id uint64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SessionInfo is a point-in-time description of one session.
type SessionInfo struct {
	ID        uint64
	Port      int
	Remote    string
	State     State
	Frames    uint64
	StartedAt time.Time
}

// Snapshot describes every live session, ordered by id.
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.RLock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByPort returns the number of live sessions per listener port.
func (r *Registry) ByPort() map[int]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[int]int)
	for _, s := range r.sessions {
		counts[s.Port]++
	}
	return counts
}

// Stats holds service-wide counters.
type Stats struct {
	accepted    atomic.Uint64
	disconnects atomic.Uint64
	frames      atomic.Uint64
	bytes       atomic.Uint64
}

type StatsSnapshot struct {
	Accepted    uint64
	Disconnects uint64
	Frames      uint64
	Bytes       uint64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Accepted:    s.accepted.Load(),
		Disconnects: s.disconnects.Load(),
		Frames:      s.frames.Load(),
		Bytes:       s.bytes.Load(),
	}
}
