// Package frame implements the node wire framing: a 4-byte unsigned
// little-endian length followed by exactly that many bytes of UTF-8 JSON
// describing one sighting event.
package frame

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/birdwatch/nodes/internal/sighting"
)

const (
	// HeaderSize is the length of the little-endian length prefix.
	HeaderSize = 4

	// MaxPayload bounds the length a decoder accepts. Real payloads are a
	// few hundred bytes; anything larger is a corrupt or foreign stream.
	MaxPayload = 1 << 20
)

var (
	ErrTruncated = errors.New("stream closed before frame was complete")
	ErrOversize  = errors.New("frame length exceeds limit")
	ErrShape     = errors.New("payload is not a sighting object")
)

// FramingError reports a frame that could not be decoded.
type FramingError struct {
	Op  string // "header", "payload" or "parse"
	Len uint32
	Err error
}

func (e *FramingError) Error() string {
	if e.Op == "header" {
		return fmt.Sprintf("frame %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("frame %s (%d bytes): %v", e.Op, e.Len, e.Err)
}

func (e *FramingError) Unwrap() error { return e.Err }

// Encode serializes ev and prepends its length.
func Encode(ev sighting.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// Write encodes ev and writes the whole frame to w.
func Write(w io.Writer, ev sighting.Event) error {
	buf, err := Encode(ev)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// Decode reads exactly one frame from r. A stream that ends cleanly before
// the first header byte yields io.EOF; every other failure is a
// *FramingError.
func Decode(r io.Reader) (sighting.Event, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return sighting.Event{}, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			err = ErrTruncated
		}
		return sighting.Event{}, &FramingError{Op: "header", Err: err}
	}

	n := binary.LittleEndian.Uint32(header[:])
	if n > MaxPayload {
		return sighting.Event{}, &FramingError{Op: "header", Len: n, Err: fmt.Errorf("%w: %d > %d", ErrOversize, n, MaxPayload)}
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = ErrTruncated
		}
		return sighting.Event{}, &FramingError{Op: "payload", Len: n, Err: err}
	}

	ev, err := parse(payload)
	if err != nil {
		return sighting.Event{}, &FramingError{Op: "parse", Len: n, Err: err}
	}
	return ev, nil
}

// wireEvent uses pointers so missing keys can be told apart from empty ones.
type wireEvent struct {
	Timestamp *string `json:"timestamp"`
	Species   *string `json:"species"`
	Name      *string `json:"name"`
}

func parse(payload []byte) (sighting.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()

	var w wireEvent
	if err := dec.Decode(&w); err != nil {
		return sighting.Event{}, err
	}
	if dec.More() {
		return sighting.Event{}, fmt.Errorf("%w: trailing data", ErrShape)
	}
	if w.Timestamp == nil || w.Species == nil || w.Name == nil {
		return sighting.Event{}, fmt.Errorf("%w: missing key", ErrShape)
	}

	var ev sighting.Event
	if err := ev.Timestamp.UnmarshalText([]byte(*w.Timestamp)); err != nil {
		return sighting.Event{}, fmt.Errorf("timestamp: %w", err)
	}
	ev.Species = *w.Species
	ev.Name = *w.Name
	return ev, nil
}

// Reader decodes a stream of frames.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r with buffering sized for typical frames.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next event, io.EOF at a clean end of stream, or a
// *FramingError.
func (fr *Reader) Next() (sighting.Event, error) {
	return Decode(fr.r)
}

// Corrupt reports whether err means the stream itself was malformed, as
// opposed to the transport failing underneath it.
func Corrupt(err error) bool {
	var fe *FramingError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Op == "parse" || errors.Is(fe.Err, ErrTruncated) || errors.Is(fe.Err, ErrOversize)
}
