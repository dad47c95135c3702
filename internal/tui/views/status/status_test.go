package status

import (
	"strings"
	"testing"
	"time"

	"github.com/birdwatch/nodes/internal/ws"
)

func TestViewCountsAndUnhealthyTargets(t *testing.T) {
	now := time.Now()
	m := New()
	m.Now = func() time.Time { return now }
	m.Connected = true
	m.Total = 42
	m.Width = 160
	m.SetHealth(ws.NodeHealthPayload{Target: "127.0.0.1:9001", Status: ws.StatusHealthy, Connected: true, LastFrameAt: now})
	m.SetHealth(ws.NodeHealthPayload{Target: "127.0.0.1:9002", Status: ws.StatusFailed})

	v := m.View()
	for _, want := range []string{"Connected", "1 live", "1 down", "42 sightings", "127.0.0.1:9002: failed"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
	if strings.Contains(v, "127.0.0.1:9001") {
		t.Error("healthy target should not be listed")
	}
}

func TestViewDisconnected(t *testing.T) {
	m := New()
	if v := m.View(); !strings.Contains(v, "Connecting") {
		t.Errorf("view = %q, want Connecting", v)
	}
}

func TestTouchKeepsConnectedNodeLive(t *testing.T) {
	now := time.Now()
	m := New()
	m.Now = func() time.Time { return now }
	m.SetHealth(ws.NodeHealthPayload{Target: "a", NodeID: 1, Status: ws.StatusHealthy, Connected: true})
	m.SetHealth(ws.NodeHealthPayload{Target: "b", NodeID: 2, Status: ws.StatusFailed})

	m.Touch(1, now)
	m.Touch(2, now)
	if !m.Health["a"].LastFrameAt.Equal(now) {
		t.Error("connected target not touched")
	}
	if !m.Health["b"].LastFrameAt.IsZero() {
		t.Error("disconnected target was touched")
	}
}
