package node

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
)

// Coordinator turns termination signals into a single cancellation of the
// whole service and waits for every listener and session to let go.
type Coordinator struct {
	Set         *ListenerSet
	Ports       []int
	Signals     <-chan os.Signal
	Diagnostics *Diagnostics

	// Ready, if set, is closed once every listener is bound.
	Ready chan<- struct{}
}

// Run blocks until a signal arrives or ctx is cancelled, then shuts the
// service down. A bind failure is returned as a *BindError before any
// connection is accepted; a failure to release listeners is returned after
// all sessions have ended.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	shutdown := func() { once.Do(cancel) }
	defer shutdown()

	if err := c.Set.Start(ctx, c.Ports); err != nil {
		return err
	}
	if c.Ready != nil {
		close(c.Ready)
	}

	if c.Diagnostics != nil {
		go c.Diagnostics.Run(ctx)
	}

	select {
	case sig := <-c.Signals:
		log.Printf("Received %v, shutting down...", sig)
	case <-ctx.Done():
		log.Println("Shutting down...")
	}
	shutdown()

	done := make(chan struct{})
	defer close(done)
	go c.ignoreRepeats(done)

	err := c.Set.Stop()
	c.Set.Wait()
	if err != nil {
		return fmt.Errorf("releasing listeners: %w", err)
	}
	log.Println("All listeners and sessions released")
	return nil
}

// ignoreRepeats swallows further signals while shutdown is in progress.
func (c *Coordinator) ignoreRepeats(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case sig, ok := <-c.Signals:
			if !ok {
				return
			}
			log.Printf("Received %v, shutdown already in progress", sig)
		}
	}
}
