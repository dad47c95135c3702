package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/birdwatch/nodes/internal/config"
	"github.com/birdwatch/nodes/internal/node"
	"github.com/birdwatch/nodes/internal/sighting"
)

const (
	exitOK = iota
	_
	exitUsage
	exitBind
	exitShutdown
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	code := run(os.Args[1:], os.LookupEnv, sigCh, nil)
	signal.Stop(sigCh)
	os.Exit(code)
}

// run starts the node service for args and blocks until a signal arrives on
// signals. ready, if non-nil, is closed once every port is bound.
func run(args []string, lookupEnv func(string) (string, bool), signals <-chan os.Signal, ready chan<- struct{}) int {
	fs := flag.NewFlagSet("runnodes", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file (optional)")
	debug := fs.Bool("debug", false, "Log scheduler diagnostics")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: runnodes [flags] PORT [PORT...]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	ports, err := config.ParsePorts(fs.Args())
	if err != nil {
		log.Printf("Invalid arguments: %v", err)
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return exitUsage
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		log.Printf("Invalid environment: %v", err)
		return exitUsage
	}
	if *debug {
		cfg.Nodes.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid config: %v", err)
		return exitUsage
	}

	set := node.NewListenerSet(cfg.Nodes.Host, node.Options{
		Generator: sighting.NewGenerator(),
		Jitter: node.Jitter{
			Min:  cfg.Nodes.MinInterval,
			Max:  cfg.Nodes.MaxInterval,
			Step: cfg.Nodes.IntervalStep,
		},
		Debug: cfg.Nodes.Debug,
	})

	coord := &node.Coordinator{
		Set:     set,
		Ports:   ports,
		Signals: signals,
		Ready:   ready,
	}
	if cfg.Nodes.Debug {
		log.Println("Debug diagnostics enabled")
		coord.Diagnostics = node.NewDiagnostics(cfg.Nodes.DiagnosticsInterval, set)
	}

	if err := coord.Run(context.Background()); err != nil {
		var be *node.BindError
		if errors.As(err, &be) {
			log.Printf("Failed to start: %v", err)
			return exitBind
		}
		log.Printf("Shutdown error: %v", err)
		return exitShutdown
	}
	return exitOK
}
