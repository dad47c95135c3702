package node

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/birdwatch/nodes/internal/frame"
	"github.com/birdwatch/nodes/internal/sighting"
)

// Jitter picks the pause before each emission: a whole number of Steps in
// [Min, Max], uniformly.
type Jitter struct {
	Min  time.Duration
	Max  time.Duration
	Step time.Duration
}

// DefaultJitter waits 1, 2 or 3 seconds.
var DefaultJitter = Jitter{Min: time.Second, Max: 3 * time.Second, Step: time.Second}

func (j Jitter) Next() time.Duration {
	if j.Step <= 0 || j.Max <= j.Min {
		return j.Min
	}
	steps := int((j.Max - j.Min) / j.Step)
	return j.Min + time.Duration(rand.Intn(steps+1))*j.Step
}

// Options configures every session a ListenerSet spawns.
type Options struct {
	Generator *sighting.Generator
	Jitter    Jitter
	Debug     bool
}

func (o Options) withDefaults() Options {
	if o.Generator == nil {
		o.Generator = sighting.NewGenerator()
	}
	if o.Jitter == (Jitter{}) {
		o.Jitter = DefaultJitter
	}
	return o
}

// Session owns one accepted connection and runs its emission loop until
// the peer goes away or the service is cancelled.
type Session struct {
	ID        uint64
	Port      int
	Remote    string
	StartedAt time.Time

	conn  net.Conn
	w     *bufio.Writer
	opts  Options
	stats *Stats

	mu     sync.Mutex
	state  State
	frames atomic.Uint64
}

func newSession(conn net.Conn, port int, opts Options, stats *Stats) *Session {
	return &Session{
		Port:      port,
		Remote:    conn.RemoteAddr().String(),
		StartedAt: time.Now(),
		conn:      conn,
		w:         bufio.NewWriter(conn),
		opts:      opts,
		stats:     stats,
		state:     Connected,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		Port:      s.Port,
		Remote:    s.Remote,
		State:     s.State(),
		Frames:    s.frames.Load(),
		StartedAt: s.StartedAt,
	}
}

// Run drives the wait, emit, flush cycle. It always closes the connection
// before returning and never reports transport errors to the caller.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reason := "cancelled"
	defer func() {
		s.setState(Terminating)
		s.conn.Close()
		s.setState(Closed)
		if s.stats != nil {
			s.stats.disconnects.Add(1)
		}
		log.Printf("Client %s disconnected from port %d (session %d, %d frames, %s)",
			s.Remote, s.Port, s.ID, s.frames.Load(), reason)
	}()

	// Nothing is expected from the peer. A clean EOF is only a half-close
	// and the peer may keep reading; a fully closed peer fails the next
	// write instead. A read error means the connection was reset.
	peerGone := make(chan struct{})
	go func() {
		if _, err := io.Copy(io.Discard, s.conn); err != nil {
			close(peerGone)
			cancel()
		}
	}()

	// A blocked flush only notices cancellation through its deadline.
	stopAbort := context.AfterFunc(ctx, func() {
		s.conn.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stopAbort()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		s.setState(Waiting)
		timer.Reset(s.opts.Jitter.Next())
		select {
		case <-ctx.Done():
			reason = s.cancelReason(peerGone)
			return
		case <-timer.C:
		}

		s.setState(Emitting)
		ev := s.opts.Generator.Generate()
		if err := frame.Write(s.w, ev); err != nil {
			reason = "write: " + err.Error()
			return
		}
		size := s.w.Buffered()

		s.setState(Flushing)
		if err := s.w.Flush(); err != nil {
			if ctx.Err() != nil {
				reason = s.cancelReason(peerGone)
			} else {
				reason = "flush: " + err.Error()
			}
			return
		}

		s.frames.Add(1)
		if s.stats != nil {
			s.stats.frames.Add(1)
			s.stats.bytes.Add(uint64(size))
		}
		if s.opts.Debug {
			log.Printf("Session %d sent %d bytes: %s / %s", s.ID, size, ev.Species, ev.Name)
		}
	}
}

func (s *Session) cancelReason(peerGone <-chan struct{}) string {
	select {
	case <-peerGone:
		return "peer reset"
	default:
		return "shutdown"
	}
}

// isClosedErr reports errors that mean the listener itself was closed.
func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
