package recorder

import (
	"sync"
	"time"

	"github.com/birdwatch/nodes/internal/ws"
)

// targetHealth tracks consecutive failures for one watched node. The
// watcher goroutine writes it while the broadcaster reads snapshots.
type targetHealth struct {
	mu            sync.Mutex
	target        string
	nodeID        int64
	connected     bool
	dialFailures  int
	parseFailures int
	frames        uint64
	lastFrameAt   time.Time
	lastErr       string

	lastEmittedStatus ws.HealthStatus
	lastEmittedConn   bool
}

func newTargetHealth(target string) *targetHealth {
	return &targetHealth{target: target, lastEmittedStatus: ws.StatusHealthy}
}

func (h *targetHealth) recordConnected(nodeID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = true
	h.nodeID = nodeID
	h.dialFailures = 0
}

func (h *targetHealth) recordDialFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = false
	h.dialFailures++
	h.lastErr = err.Error()
}

func (h *targetHealth) recordDisconnect(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = false
	if err != nil {
		h.lastErr = err.Error()
	}
}

func (h *targetHealth) recordFrame(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.parseFailures = 0
	h.frames++
	h.lastFrameAt = at
}

func (h *targetHealth) recordParseFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.parseFailures++
	h.lastErr = err.Error()
}

// statusLocked computes health status. Caller must hold h.mu.
func (h *targetHealth) statusLocked(threshold int) ws.HealthStatus {
	switch {
	case h.dialFailures >= threshold:
		return ws.StatusFailed
	case h.parseFailures >= threshold, h.dialFailures > 0:
		return ws.StatusDegraded
	}
	return ws.StatusHealthy
}

func (h *targetHealth) payloadLocked(threshold int) ws.NodeHealthPayload {
	return ws.NodeHealthPayload{
		Target:        h.target,
		NodeID:        h.nodeID,
		Status:        h.statusLocked(threshold),
		Connected:     h.connected,
		DialFailures:  h.dialFailures,
		ParseFailures: h.parseFailures,
		Frames:        h.frames,
		LastFrameAt:   h.lastFrameAt,
		LastError:     h.lastErr,
		Timestamp:     time.Now().UTC(),
	}
}

func (h *targetHealth) snapshot(threshold int) ws.NodeHealthPayload {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payloadLocked(threshold)
}

// snapshotAndEmit returns the current payload and whether the status or
// connection state changed since the last emission.
func (h *targetHealth) snapshotAndEmit(threshold int) (ws.NodeHealthPayload, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.payloadLocked(threshold)
	changed := p.Status != h.lastEmittedStatus || p.Connected != h.lastEmittedConn
	if changed {
		h.lastEmittedStatus = p.Status
		h.lastEmittedConn = p.Connected
	}
	return p, changed
}
