package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/birdwatch/nodes/internal/sighting"
)

func sampleEvent() sighting.Event {
	return sighting.Event{
		Timestamp: time.Date(2024, 5, 1, 10, 30, 0, 456789000, time.UTC),
		Species:   "Greater Albatross",
		Name:      "Baroness Olivia Hughes",
	}
}

func rawFrame(payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

func TestEncodeHeader(t *testing.T) {
	buf, err := Encode(sampleEvent())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	n := binary.LittleEndian.Uint32(buf[:HeaderSize])
	if int(n) != len(buf)-HeaderSize {
		t.Errorf("length prefix = %d, payload is %d bytes", n, len(buf)-HeaderSize)
	}
	if buf[HeaderSize] != '{' {
		t.Errorf("payload should start with a JSON object, got %q", buf[HeaderSize])
	}
}

func TestRoundTrip(t *testing.T) {
	g := sighting.NewSeededGenerator(3, nil)
	events := []sighting.Event{sampleEvent()}
	for i := 0; i < 50; i++ {
		events = append(events, g.Generate())
	}

	for _, ev := range events {
		buf, err := Encode(ev)
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		got, err := Decode(bytes.NewReader(buf))
		if err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if !got.Equal(ev) {
			t.Errorf("Decode(Encode(%+v)) = %+v", ev, got)
		}
	}
}

func TestReaderStream(t *testing.T) {
	g := sighting.NewSeededGenerator(9, nil)
	var stream bytes.Buffer
	var want []sighting.Event
	for i := 0; i < 5; i++ {
		ev := g.Generate()
		want = append(want, ev)
		if err := Write(&stream, ev); err != nil {
			t.Fatal(err)
		}
	}

	r := NewReader(&stream)
	for i, ev := range want {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("frame %d: Next() error: %v", i, err)
		}
		if !got.Equal(ev) {
			t.Errorf("frame %d = %+v, want %+v", i, got, ev)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() at end of stream = %v, want io.EOF", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	full, _ := Encode(sampleEvent())

	oversize := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(oversize, MaxPayload+1)

	tests := []struct {
		name    string
		input   []byte
		wantOp  string
		wantErr error
	}{
		{"partial header", []byte{0x10, 0x00}, "header", ErrTruncated},
		{"truncated payload", full[:len(full)-3], "payload", ErrTruncated},
		{"header only", full[:HeaderSize], "payload", ErrTruncated},
		{"oversize length", oversize, "header", ErrOversize},
		{"not json", rawFrame([]byte("not json")), "parse", nil},
		{"empty payload", rawFrame(nil), "parse", nil},
		{"missing key", rawFrame([]byte(`{"timestamp":"2024-05-01T10:00:00Z","species":"Blue Tit"}`)), "parse", ErrShape},
		{"unknown key", rawFrame([]byte(`{"timestamp":"2024-05-01T10:00:00Z","species":"Blue Tit","name":"Mr James Smith","node":1}`)), "parse", nil},
		{"bad timestamp", rawFrame([]byte(`{"timestamp":"yesterday","species":"Blue Tit","name":"Mr James Smith"}`)), "parse", nil},
		{"json array", rawFrame([]byte(`[1,2,3]`)), "parse", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.input))
			var fe *FramingError
			if !errors.As(err, &fe) {
				t.Fatalf("Decode() error = %v, want *FramingError", err)
			}
			if fe.Op != tt.wantOp {
				t.Errorf("FramingError.Op = %q, want %q", fe.Op, tt.wantOp)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want wrapping %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeEmptyStream(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil))
	if err != io.EOF {
		t.Errorf("Decode(empty) = %v, want io.EOF", err)
	}
}

func TestDecodeAcceptsOffsetTimestamp(t *testing.T) {
	payload := []byte(`{"timestamp":"2024-05-01T10:00:00.000001+00:00","species":"Common Gull","name":"Mr John Smith"}`)
	ev, err := Decode(bytes.NewReader(rawFrame(payload)))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 1000, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ev.Timestamp, want)
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestCorrupt(t *testing.T) {
	_, truncated := Decode(bytes.NewReader([]byte{5, 0}))
	_, garbage := Decode(bytes.NewReader(append([]byte{2, 0, 0, 0}, "{}"...)))
	_, transport := Decode(failingReader{errors.New("connection reset by peer")})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"truncated header", truncated, true},
		{"bad payload", garbage, true},
		{"transport failure", transport, false},
		{"clean end", io.EOF, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Corrupt(tt.err); got != tt.want {
				t.Errorf("Corrupt(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
