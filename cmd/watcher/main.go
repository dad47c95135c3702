package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/birdwatch/nodes/internal/catalog"
	"github.com/birdwatch/nodes/internal/config"
	"github.com/birdwatch/nodes/internal/recorder"
	"github.com/birdwatch/nodes/internal/ws"
	"golang.org/x/sync/errgroup"
)

const (
	exitOK = iota
	exitFailure
	exitUsage
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// run records from the configured nodes and serves the observer API until
// ctx is cancelled.
func run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("watcher", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "Path to config file")
	port := fs.Int("port", 0, "Override observer API port")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return exitUsage
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	// Positional arguments are extra host:port targets.
	cfg.Watcher.Targets = append(cfg.Watcher.Targets, fs.Args()...)
	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid config: %v", err)
		return exitUsage
	}
	if len(cfg.Watcher.Targets) == 0 {
		log.Printf("No node targets configured (watcher.targets or arguments)")
		return exitUsage
	}

	store := catalog.NewStore()
	files := catalog.NewFileStore(cfg.Catalog.Dir)
	snap, err := files.Load()
	if err != nil {
		log.Printf("Failed to load catalog: %v", err)
		return exitFailure
	}
	if err := store.Restore(snap); err != nil {
		log.Printf("Failed to restore catalog from %s: %v", files.Path(), err)
		return exitFailure
	}
	log.Printf("Catalog %s: %d sightings", files.Path(), store.Summary().Total)

	broadcaster := ws.NewBroadcaster(store, cfg.Broadcast.Throttle, cfg.Broadcast.SnapshotInterval, cfg.Server.MaxConnections)
	defer broadcaster.Stop()

	rec, err := recorder.New(store, broadcaster, cfg.Watcher.Targets, recorder.Options{
		ReconnectBase:    cfg.Watcher.ReconnectBase,
		ReconnectMax:     cfg.Watcher.ReconnectMax,
		FailureThreshold: cfg.Watcher.FailureThreshold,
	})
	if err != nil {
		log.Printf("Invalid targets: %v", err)
		return exitUsage
	}
	broadcaster.SetHealthSource(rec)

	server := ws.NewServer(store, broadcaster, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)
	persister := catalog.NewPersister(store, files, cfg.Catalog.SaveInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rec.Run(ctx) })
	g.Go(func() error { return persister.Run(ctx) })
	g.Go(func() error {
		return ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, server.Handler())
	})

	log.Printf("Watching %d node(s)", len(cfg.Watcher.Targets))
	if err := g.Wait(); err != nil {
		log.Printf("Watcher stopped: %v", err)
		return exitFailure
	}
	log.Println("Watcher stopped")
	return exitOK
}
