package debug

import (
	"strings"
	"testing"
)

func TestAddEntry(t *testing.T) {
	m := New()
	m.Add(KindWS, "connected")
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if m.Entries[0].Kind != KindWS {
		t.Errorf("expected kind %q, got %q", KindWS, m.Entries[0].Kind)
	}
}

func TestAddf(t *testing.T) {
	m := New()
	m.Addf(KindHealth, "%s -> %s", "127.0.0.1:9001", "failed")
	if got := m.Entries[0].Message; got != "127.0.0.1:9001 -> failed" {
		t.Errorf("message = %q", got)
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Add(KindWS, "msg")
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
}

func TestScrollUpDown(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		m.Add(KindWS, "msg")
	}
	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("expected offset 5, got %d", m.Offset)
	}
	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("expected offset 2, got %d", m.Offset)
	}
	m.ScrollDown(10)
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}
}

func TestScrollUpCapped(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.Add(KindWS, "msg")
	}
	m.ScrollUp(100)
	if m.Offset != 4 {
		t.Errorf("expected offset 4, got %d", m.Offset)
	}
}

func TestErrorsOnly(t *testing.T) {
	m := New()
	m.Add(KindWS, "connected")
	m.Add(KindError, "dial refused")
	m.Add(KindSearch, "q=ada")

	m.ToggleErrors()
	v := m.View(80, 20)
	if !strings.Contains(v, "dial refused") {
		t.Error("error entry hidden")
	}
	if strings.Contains(v, "connected") || strings.Contains(v, "q=ada") {
		t.Error("non-error entries shown in errors-only mode")
	}
	m.ScrollUp(10)
	if m.Offset != 0 {
		t.Errorf("offset capped by filtered entries, got %d", m.Offset)
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	if v := m.View(80, 20); !strings.Contains(v, "No events") {
		t.Error("empty view should show 'No events' message")
	}
}

func TestViewWithEntries(t *testing.T) {
	m := New()
	m.Add(KindWS, "connected")
	m.Add(KindError, "timeout")
	v := m.View(80, 20)
	if !strings.Contains(v, "connected") || !strings.Contains(v, "timeout") {
		t.Errorf("view missing entries:\n%s", v)
	}
}

func TestAddResetsScroll(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.Add(KindWS, "msg")
	}
	m.ScrollUp(5)
	m.Add(KindWS, "new")
	if m.Offset != 0 {
		t.Error("adding entry should reset scroll to 0")
	}
}
