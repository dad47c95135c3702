package node

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/birdwatch/nodes/internal/frame"
	"github.com/birdwatch/nodes/internal/sighting"
)

var fastJitter = Jitter{Min: 10 * time.Millisecond, Max: 30 * time.Millisecond, Step: 10 * time.Millisecond}

// freePorts reserves n distinct loopback ports and releases them for reuse.
func freePorts(t *testing.T, n int) []int {
	t.Helper()
	var lns []net.Listener
	var ports []int
	for i := 0; i < n; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("reserving port: %v", err)
		}
		lns = append(lns, ln)
		ports = append(ports, ln.Addr().(*net.TCPAddr).Port)
	}
	for _, ln := range lns {
		ln.Close()
	}
	return ports
}

func dial(t *testing.T, port int) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 2*time.Second)
	if err != nil {
		t.Fatalf("dial port %d: %v", port, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrames(t *testing.T, conn net.Conn, n int) ([]sighting.Event, []time.Time) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	r := frame.NewReader(conn)
	var events []sighting.Event
	var arrivals []time.Time
	for i := 0; i < n; i++ {
		ev, err := r.Next()
		if err != nil {
			t.Fatalf("reading frame %d: %v", i, err)
		}
		events = append(events, ev)
		arrivals = append(arrivals, time.Now())
	}
	return events, arrivals
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startSet(t *testing.T, opts Options, ports ...int) (*ListenerSet, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ls := NewListenerSet("127.0.0.1", opts)
	if err := ls.Start(ctx, ports); err != nil {
		cancel()
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		ls.Stop()
		ls.Wait()
	})
	return ls, cancel
}

func TestJitterRange(t *testing.T) {
	j := Jitter{Min: time.Second, Max: 3 * time.Second, Step: time.Second}
	seen := make(map[time.Duration]bool)
	for i := 0; i < 500; i++ {
		d := j.Next()
		if d < j.Min || d > j.Max {
			t.Fatalf("Next() = %v, outside [%v, %v]", d, j.Min, j.Max)
		}
		if d%time.Second != 0 {
			t.Fatalf("Next() = %v, not a whole number of seconds", d)
		}
		seen[d] = true
	}
	if len(seen) != 3 {
		t.Errorf("saw %d distinct waits, want 3 (1s, 2s, 3s)", len(seen))
	}

	fixed := Jitter{Min: time.Second, Max: time.Second, Step: time.Second}
	if got := fixed.Next(); got != time.Second {
		t.Errorf("degenerate jitter Next() = %v, want 1s", got)
	}
}

func TestRegistryAssignsIncreasingIDs(t *testing.T) {
	r := NewRegistry()
	a, b := &Session{}, &Session{}
	idA := r.add(a)
	idB := r.add(b)
	if idA == 0 || idB <= idA {
		t.Errorf("ids = %d, %d; want positive and increasing", idA, idB)
	}
	r.remove(idA)
	c := &Session{}
	if idC := r.add(c); idC <= idB {
		t.Errorf("id after removal = %d, want > %d (ids are never reused)", idC, idB)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if _, ok := r.Get(idA); ok {
		t.Error("removed session still present")
	}
}

func TestListenerSetTwoPortsIndependentStreams(t *testing.T) {
	ports := freePorts(t, 2)
	ls, _ := startSet(t, Options{Jitter: fastJitter}, ports...)

	if got := len(ls.Addrs()); got != 2 {
		t.Fatalf("Addrs() = %d listeners, want 2", got)
	}

	c1 := dial(t, ports[0])
	c2 := dial(t, ports[1])

	ev1, _ := readFrames(t, c1, 5)
	ev2, _ := readFrames(t, c2, 5)

	for _, a := range ev1 {
		for _, b := range ev2 {
			if a.Equal(b) {
				t.Errorf("frame %+v appeared on both connections", a)
			}
		}
	}

	byPort := ls.Sessions().ByPort()
	if byPort[ports[0]] != 1 || byPort[ports[1]] != 1 {
		t.Errorf("sessions by port = %v, want one on each of %v", byPort, ports)
	}
}

func TestListenerSetFramesAreValidSightings(t *testing.T) {
	ports := freePorts(t, 1)
	startSet(t, Options{Jitter: fastJitter}, ports...)

	before := time.Now().Add(-time.Second)
	events, _ := readFrames(t, dial(t, ports[0]), 5)
	for _, ev := range events {
		if !sighting.IsSpecies(ev.Species) {
			t.Errorf("species %q is not a known combination", ev.Species)
		}
		if !sighting.IsName(ev.Name) {
			t.Errorf("name %q is not a known combination", ev.Name)
		}
		if ev.Timestamp.Before(before) {
			t.Errorf("timestamp %v is stale", ev.Timestamp)
		}
	}
}

func TestSessionInterFrameGap(t *testing.T) {
	j := Jitter{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond, Step: 50 * time.Millisecond}
	ports := freePorts(t, 1)
	startSet(t, Options{Jitter: j}, ports...)

	_, arrivals := readFrames(t, dial(t, ports[0]), 6)
	const slack = 40 * time.Millisecond
	for i := 1; i < len(arrivals); i++ {
		gap := arrivals[i].Sub(arrivals[i-1])
		if gap < j.Min-slack || gap > j.Max+slack {
			t.Errorf("gap %d = %v, want within [%v, %v] (+/- %v)", i, gap, j.Min, j.Max, slack)
		}
	}
}

func TestPeerResetEndsOnlyThatSession(t *testing.T) {
	ports := freePorts(t, 2)
	ls, _ := startSet(t, Options{Jitter: fastJitter}, ports...)

	victim := dial(t, ports[0])
	sibling := dial(t, ports[0])
	other := dial(t, ports[1])
	waitFor(t, "three sessions", func() bool { return ls.Sessions().Len() == 3 })

	readFrames(t, victim, 1)
	victim.(*net.TCPConn).SetLinger(0)
	victim.Close()

	waitFor(t, "victim session to end", func() bool { return ls.Sessions().Len() == 2 })

	readFrames(t, sibling, 3)
	readFrames(t, other, 3)
	if got := ls.Stats().Snapshot().Disconnects; got != 1 {
		t.Errorf("Disconnects = %d, want 1", got)
	}
}

func TestListenerSetBindFailureIsFatal(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port
	freePort := freePorts(t, 1)[0]

	ls := NewListenerSet("127.0.0.1", Options{Jitter: fastJitter})
	err = ls.Start(context.Background(), []int{freePort, busyPort})

	var be *BindError
	if !errors.As(err, &be) {
		t.Fatalf("Start() error = %v, want *BindError", err)
	}
	if be.Port != busyPort {
		t.Errorf("BindError.Port = %d, want %d", be.Port, busyPort)
	}
	if len(ls.Addrs()) != 0 {
		t.Errorf("Addrs() = %v after failed Start, want none", ls.Addrs())
	}

	// The listener bound before the failure must have been released.
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(freePort)))
	if err != nil {
		t.Fatalf("port %d still held after failed Start: %v", freePort, err)
	}
	ln.Close()
}

func TestListenerSetDedupesPorts(t *testing.T) {
	port := freePorts(t, 1)[0]
	ls, _ := startSet(t, Options{Jitter: fastJitter}, port, port, port)
	if got := len(ls.Addrs()); got != 1 {
		t.Errorf("Addrs() = %d listeners, want 1", got)
	}
}

func TestListenerSetStopIsIdempotent(t *testing.T) {
	port := freePorts(t, 1)[0]
	ls, cancel := startSet(t, Options{Jitter: fastJitter}, port)
	conn := dial(t, port)
	readFrames(t, conn, 1)

	if err := ls.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if err := ls.Stop(); err != nil {
		t.Fatalf("second Stop() error: %v", err)
	}

	// Stop alone leaves the running session alone.
	readFrames(t, conn, 1)

	cancel()
	ls.Wait()
	if ls.Sessions().Len() != 0 {
		t.Errorf("%d sessions left after cancel and Wait", ls.Sessions().Len())
	}
}

func TestSessionCancelWhileWaiting(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := newSession(server, 0, Options{
		Generator: sighting.NewGenerator(),
		Jitter:    Jitter{Min: time.Hour, Max: time.Hour, Step: time.Hour},
	}, &Stats{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitFor(t, "waiting state", func() bool { return s.State() == Waiting })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation while waiting")
	}
	if s.State() != Closed {
		t.Errorf("State() = %v, want closed", s.State())
	}
	client.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := client.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("peer read after close = %v, want io.EOF", err)
	}
}

func TestSessionCancelDuringBlockedFlush(t *testing.T) {
	// net.Pipe has no buffering, so an unread flush blocks like a full
	// socket buffer.
	server, client := net.Pipe()
	defer client.Close()

	stats := &Stats{}
	s := newSession(server, 0, Options{Generator: sighting.NewGenerator(), Jitter: fastJitter}, stats)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitFor(t, "flushing state", func() bool { return s.State() == Flushing })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation during a blocked flush")
	}
	if got := stats.Snapshot().Frames; got != 0 {
		t.Errorf("Frames = %d, want 0 (flush never completed)", got)
	}
	if got := stats.Snapshot().Disconnects; got != 1 {
		t.Errorf("Disconnects = %d, want 1", got)
	}
}

func TestSessionStopsWhenPeerCloses(t *testing.T) {
	server, client := net.Pipe()
	s := newSession(server, 0, Options{
		Generator: sighting.NewGenerator(),
		Jitter:    fastJitter,
	}, nil)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	waitFor(t, "waiting state", func() bool { return s.State() == Waiting })
	client.Close()

	// The next write fails on the closed pipe.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the peer closed")
	}
	if got := s.State(); got != Closed {
		t.Errorf("State() = %s, want %s", got, Closed)
	}
}

func TestHalfClosedPeerKeepsReceiving(t *testing.T) {
	ports := freePorts(t, 1)
	ls, _ := startSet(t, Options{Jitter: fastJitter}, ports...)

	conn := dial(t, ports[0])
	readFrames(t, conn, 1)
	if err := conn.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatalf("CloseWrite() error: %v", err)
	}

	events, _ := readFrames(t, conn, 3)
	for _, ev := range events {
		if !sighting.IsSpecies(ev.Species) {
			t.Errorf("unexpected species %q after half-close", ev.Species)
		}
	}
	if got := ls.Sessions().Len(); got != 1 {
		t.Errorf("sessions after half-close = %d, want 1", got)
	}
	if got := ls.Stats().Snapshot().Disconnects; got != 0 {
		t.Errorf("Disconnects = %d, want 0", got)
	}
}

func TestCoordinatorShutdownOnSignal(t *testing.T) {
	ports := freePorts(t, 2)
	signals := make(chan os.Signal, 2)
	ready := make(chan struct{})
	ls := NewListenerSet("127.0.0.1", Options{Jitter: fastJitter})
	c := &Coordinator{Set: ls, Ports: ports, Signals: signals, Ready: ready}

	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(context.Background()) }()

	select {
	case <-ready:
	case err := <-errCh:
		t.Fatalf("Run() returned early: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("listeners never became ready")
	}

	conns := []net.Conn{dial(t, ports[0]), dial(t, ports[0]), dial(t, ports[1])}
	for _, conn := range conns {
		readFrames(t, conn, 1)
	}

	signals <- syscall.SIGTERM
	signals <- syscall.SIGINT

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() = %v, want nil after orderly shutdown", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after SIGTERM")
	}

	if n := ls.Sessions().Len(); n != 0 {
		t.Errorf("%d sessions still registered after shutdown", n)
	}
	for _, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, err := io.Copy(io.Discard, conn); err != nil {
			t.Errorf("connection not closed cleanly: %v", err)
		}
	}
	for _, p := range ports {
		if conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)), 200*time.Millisecond); err == nil {
			conn.Close()
			t.Errorf("port %d still accepting after shutdown", p)
		}
	}
}

func TestCoordinatorBindFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	c := &Coordinator{
		Set:   NewListenerSet("127.0.0.1", Options{}),
		Ports: []int{busy.Addr().(*net.TCPAddr).Port},
	}
	err = c.Run(context.Background())
	var be *BindError
	if !errors.As(err, &be) {
		t.Fatalf("Run() = %v, want *BindError", err)
	}
}

func TestCoordinatorParentCancel(t *testing.T) {
	ports := freePorts(t, 1)
	ready := make(chan struct{})
	ls := NewListenerSet("127.0.0.1", Options{Jitter: fastJitter})
	c := &Coordinator{Set: ls, Ports: ports, Ready: ready}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()
	<-ready

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after parent cancellation")
	}
}

func TestDiagnosticsSample(t *testing.T) {
	port := freePorts(t, 1)[0]
	ls, _ := startSet(t, Options{Jitter: fastJitter}, port)
	readFrames(t, dial(t, port), 2)

	d := NewDiagnostics(time.Minute, ls)
	s := d.Sample()
	if s.Goroutines == 0 {
		t.Error("Goroutines = 0")
	}
	if s.Listeners != 1 || s.Sessions != 1 {
		t.Errorf("Listeners = %d, Sessions = %d; want 1, 1", s.Listeners, s.Sessions)
	}
	if s.Stats.Frames < 2 || s.Stats.Accepted != 1 {
		t.Errorf("Stats = %+v, want >=2 frames and 1 accepted", s.Stats)
	}
}

func TestStateString(t *testing.T) {
	if Flushing.String() != "flushing" {
		t.Errorf("Flushing.String() = %q", Flushing.String())
	}
	if State(99).String() != "unknown" {
		t.Errorf("State(99).String() = %q, want unknown", State(99).String())
	}
	if !Closed.IsTerminal() || Waiting.IsTerminal() {
		t.Error("IsTerminal() wrong for closed/waiting")
	}
}
