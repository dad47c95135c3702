package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/birdwatch/nodes/internal/catalog"
	"github.com/birdwatch/nodes/internal/config"
	"github.com/birdwatch/nodes/internal/frame"
	"github.com/birdwatch/nodes/internal/sighting"
	"github.com/birdwatch/nodes/internal/ws"
	"golang.org/x/sync/errgroup"
)

// Publisher receives recorded sightings and health changes. The observer
// broadcaster implements it.
type Publisher interface {
	QueueSighting(ws.Sighting)
	QueueHealth(ws.NodeHealthPayload)
}

type Options struct {
	ReconnectBase    time.Duration
	ReconnectMax     time.Duration
	FailureThreshold int
	DialTimeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = time.Second
	}
	if o.ReconnectMax < o.ReconnectBase {
		o.ReconnectMax = max(30*time.Second, o.ReconnectBase)
	}
	if o.FailureThreshold < 1 {
		o.FailureThreshold = 3
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	return o
}

type target struct {
	addr   string
	port   int
	health *targetHealth
}

// Recorder connects to every node target, decodes its frames and records
// each sighting in the catalog.
type Recorder struct {
	store   *catalog.Store
	pub     Publisher
	opts    Options
	targets []*target
	dialer  net.Dialer
}

// New validates targets (host:port) up front. pub may be nil.
func New(store *catalog.Store, pub Publisher, targets []string, opts Options) (*Recorder, error) {
	opts = opts.withDefaults()
	r := &Recorder{
		store:  store,
		pub:    pub,
		opts:   opts,
		dialer: net.Dialer{Timeout: opts.DialTimeout},
	}
	seen := make(map[string]bool, len(targets))
	for _, addr := range targets {
		_, port, err := config.SplitTarget(addr)
		if err != nil {
			return nil, err
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		r.targets = append(r.targets, &target{addr: addr, port: port, health: newTargetHealth(addr)})
	}
	return r, nil
}

// Run watches every target until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range r.targets {
		g.Go(func() error {
			r.watch(ctx, t)
			return nil
		})
	}
	return g.Wait()
}

// HealthSnapshot reports every target, in configuration order.
func (r *Recorder) HealthSnapshot() []ws.NodeHealthPayload {
	out := make([]ws.NodeHealthPayload, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t.health.snapshot(r.opts.FailureThreshold))
	}
	return out
}

func (r *Recorder) emitHealth(t *target) {
	p, changed := t.health.snapshotAndEmit(r.opts.FailureThreshold)
	if !changed {
		return
	}
	log.Printf("Node %s is %s (connected=%v)", t.addr, p.Status, p.Connected)
	if r.pub != nil {
		r.pub.QueueHealth(p)
	}
}

func (r *Recorder) watch(ctx context.Context, t *target) {
	delay := r.opts.ReconnectBase
	for {
		conn, err := r.dialer.DialContext(ctx, "tcp", t.addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.health.recordDialFailure(err)
			r.emitHealth(t)
			log.Printf("Dial %s failed: %v (retry in %v)", t.addr, err, delay)
			if !sleep(ctx, delay) {
				return
			}
			delay = min(delay*2, r.opts.ReconnectMax)
			continue
		}
		delay = r.opts.ReconnectBase

		err = r.ingest(ctx, t, conn)
		if ctx.Err() != nil {
			t.health.recordDisconnect(nil)
			return
		}
		t.health.recordDisconnect(err)
		r.emitHealth(t)
		log.Printf("Node %s disconnected: %v", t.addr, errOrEOF(err))
		if !sleep(ctx, delay) {
			return
		}
	}
}

func errOrEOF(err error) error {
	if err == nil {
		return io.EOF
	}
	return err
}

// ingest reads frames from conn until it fails. A clean end of stream
// returns nil.
func (r *Recorder) ingest(ctx context.Context, t *target, conn net.Conn) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	node, err := r.registerNode(conn, t.port)
	if err != nil {
		return err
	}
	t.health.recordConnected(node.ID)
	r.emitHealth(t)
	log.Printf("Recording node %s as %q", t.addr, node.Name)

	fr := frame.NewReader(conn)
	for {
		ev, err := fr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if frame.Corrupt(err) {
				t.health.recordParseFailure(err)
				r.emitHealth(t)
			}
			return err
		}
		if err := r.record(ev, node); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				// The cached node no longer resolves; only a fresh
				// registration can record further sightings.
				return err
			}
			t.health.recordParseFailure(err)
			r.emitHealth(t)
			log.Printf("Dropping sighting from %s: %v", t.addr, err)
			continue
		}
		t.health.recordFrame(time.Now())
		r.emitHealth(t)
	}
}

// registerNode names the node after the port it serves on, keyed by the
// address it answered from.
func (r *Recorder) registerNode(conn net.Conn, port int) (catalog.Node, error) {
	remote, err := netip.ParseAddrPort(conn.RemoteAddr().String())
	if err != nil {
		return catalog.Node{}, fmt.Errorf("remote address: %w", err)
	}
	return r.store.EnsureNode(remote.Addr().Unmap().String(), port, "node-"+strconv.Itoa(port))
}

func (r *Recorder) record(ev sighting.Event, node catalog.Node) error {
	sp, err := r.store.EnsureSpecies(ev.Species)
	if err != nil {
		return err
	}
	bird, err := r.store.AddBird(ev.Timestamp, ev.Name, sp.ID, node.ID)
	if err != nil {
		return err
	}
	if r.pub != nil {
		r.pub.QueueSighting(ws.NewSighting(bird, sp, node))
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
