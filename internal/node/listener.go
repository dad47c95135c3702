package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"
)

// BindError means a listener could not be created. It is fatal for the
// whole service.
type BindError struct {
	Port int
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("binding port %d: %v", e.Port, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

type listener struct {
	port int
	ln   net.Listener
}

// ListenerSet owns one listener per distinct port and spawns a Session
// for every connection accepted on any of them.
type ListenerSet struct {
	host     string
	opts     Options
	registry *Registry
	stats    *Stats

	mu        sync.Mutex
	listeners []*listener
	acceptWG  sync.WaitGroup
	sessionWG sync.WaitGroup
}

// NewListenerSet binds on host, which is normally the loopback address.
func NewListenerSet(host string, opts Options) *ListenerSet {
	return &ListenerSet{
		host:     host,
		opts:     opts.withDefaults(),
		registry: NewRegistry(),
		stats:    &Stats{},
	}
}

func (ls *ListenerSet) Sessions() *Registry { return ls.registry }

func (ls *ListenerSet) Stats() *Stats { return ls.stats }

// Start binds every distinct port and begins accepting. If any bind fails,
// the listeners bound so far are closed and a *BindError is returned.
func (ls *ListenerSet) Start(ctx context.Context, ports []int) error {
	var lc net.ListenConfig
	seen := make(map[int]bool, len(ports))
	var bound []*listener

	for _, port := range ports {
		if seen[port] {
			continue
		}
		seen[port] = true

		ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(ls.host, strconv.Itoa(port)))
		if err != nil {
			for _, l := range bound {
				l.ln.Close()
			}
			return &BindError{Port: port, Err: err}
		}
		bound = append(bound, &listener{port: port, ln: ln})
		log.Printf("Started server on %s", ln.Addr())
	}

	ls.mu.Lock()
	ls.listeners = append(ls.listeners, bound...)
	ls.mu.Unlock()

	for _, l := range bound {
		ls.acceptWG.Add(1)
		go ls.acceptLoop(ctx, l)
	}
	return nil
}

// Addrs returns the bound address of every active listener.
func (ls *ListenerSet) Addrs() []net.Addr {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	addrs := make([]net.Addr, 0, len(ls.listeners))
	for _, l := range ls.listeners {
		addrs = append(addrs, l.ln.Addr())
	}
	return addrs
}

func (ls *ListenerSet) acceptLoop(ctx context.Context, l *listener) {
	defer ls.acceptWG.Done()

	var delay time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if isClosedErr(err) {
				return
			}
			// Same backoff net/http uses for temporary accept failures.
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(delay*2, time.Second)
			}
			log.Printf("Accept error on port %d: %v (retry in %v)", l.port, err, delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		if ctx.Err() != nil {
			conn.Close()
			continue
		}

		s := newSession(conn, l.port, ls.opts, ls.stats)
		id := ls.registry.add(s)
		ls.stats.accepted.Add(1)
		log.Printf("Client %s connected to port %d (session %d)", s.Remote, l.port, id)

		ls.sessionWG.Add(1)
		go func() {
			defer ls.sessionWG.Done()
			defer ls.registry.remove(id)
			s.Run(ctx)
		}()
	}
}

// Stop closes every listener and waits for the accept loops to exit. It
// does not end running sessions; cancel their context for that. Calling
// Stop more than once is harmless.
func (ls *ListenerSet) Stop() error {
	ls.mu.Lock()
	lst := ls.listeners
	ls.listeners = nil
	ls.mu.Unlock()

	var errs []error
	for _, l := range lst {
		if err := l.ln.Close(); err != nil && !isClosedErr(err) {
			errs = append(errs, fmt.Errorf("closing listener on port %d: %w", l.port, err))
			continue
		}
		log.Printf("Stopped server on port %d", l.port)
	}
	ls.acceptWG.Wait()
	return errors.Join(errs...)
}

// Wait blocks until every session has released its connection.
func (ls *ListenerSet) Wait() {
	ls.sessionWG.Wait()
}
