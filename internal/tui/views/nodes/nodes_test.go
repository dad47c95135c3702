package nodes

import (
	"testing"
	"time"

	"github.com/birdwatch/nodes/internal/ws"
)

func TestClassify(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		health   ws.NodeHealthPayload
		expected State
	}{
		{
			name:     "disconnected → down",
			health:   ws.NodeHealthPayload{Status: ws.StatusDegraded},
			expected: StateDown,
		},
		{
			name:     "failed → down",
			health:   ws.NodeHealthPayload{Status: ws.StatusFailed, Connected: true, LastFrameAt: now},
			expected: StateDown,
		},
		{
			name:     "fresh frame → live",
			health:   ws.NodeHealthPayload{Status: ws.StatusHealthy, Connected: true, LastFrameAt: now.Add(-time.Second)},
			expected: StateLive,
		},
		{
			name:     "stale frame → quiet",
			health:   ws.NodeHealthPayload{Status: ws.StatusHealthy, Connected: true, LastFrameAt: now.Add(-QuietAfter)},
			expected: StateQuiet,
		},
		{
			name:     "connected without frames → quiet",
			health:   ws.NodeHealthPayload{Status: ws.StatusHealthy, Connected: true},
			expected: StateQuiet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.health, now); got != tt.expected {
				t.Errorf("Classify() = %s, want %s", Name(got), Name(tt.expected))
			}
		})
	}
}

func TestCount(t *testing.T) {
	now := time.Now()
	health := map[string]ws.NodeHealthPayload{
		"a": {Connected: true, Status: ws.StatusHealthy, LastFrameAt: now},
		"b": {Connected: true, Status: ws.StatusHealthy, LastFrameAt: now},
		"c": {Connected: true, Status: ws.StatusHealthy},
		"d": {Status: ws.StatusFailed},
	}
	live, quiet, down := Count(health, now)
	if live != 2 || quiet != 1 || down != 1 {
		t.Errorf("Count() = %d/%d/%d, want 2/1/1", live, quiet, down)
	}
}
