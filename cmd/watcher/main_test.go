package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	p := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return p
}

func writeFile(t *testing.T, path, data string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunExitCodes(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	busyPort := strconv.Itoa(busy.Addr().(*net.TCPAddr).Port)

	dir := t.TempDir()
	cfgPath := writeFile(t, filepath.Join(dir, "config.yaml"), fmt.Sprintf("catalog:\n  dir: %s\n", dir))
	badYAML := writeFile(t, filepath.Join(dir, "bad.yaml"), "watcher: [unclosed")

	corruptDir := t.TempDir()
	writeFile(t, filepath.Join(corruptDir, "catalog.json"), "{not json")
	corruptCfg := writeFile(t, filepath.Join(dir, "corrupt.yaml"), fmt.Sprintf("catalog:\n  dir: %s\n", corruptDir))

	target := net.JoinHostPort("127.0.0.1", strconv.Itoa(freePort(t)))
	servePort := strconv.Itoa(freePort(t))

	tests := []struct {
		name   string
		args   []string
		cancel bool
		want   int
	}{
		{name: "unknown flag", args: []string{"-bogus"}, want: exitUsage},
		{name: "invalid config file", args: []string{"-config", badYAML, target}, want: exitUsage},
		{name: "no targets", args: []string{"-config", cfgPath}, want: exitUsage},
		{name: "malformed target", args: []string{"-config", cfgPath, "nope"}, want: exitUsage},
		{name: "corrupt catalog", args: []string{"-config", corruptCfg, target}, want: exitFailure},
		{name: "api port in use", args: []string{"-config", cfgPath, "-port", busyPort, target}, want: exitFailure},
		{name: "clean shutdown", args: []string{"-config", cfgPath, "-port", servePort, target}, cancel: true, want: exitOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			got := make(chan int, 1)
			go func() { got <- run(ctx, tt.args) }()

			if tt.cancel {
				addr := net.JoinHostPort("127.0.0.1", servePort)
				deadline := time.Now().Add(3 * time.Second)
				for {
					conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
					if err == nil {
						conn.Close()
						break
					}
					if time.Now().After(deadline) {
						t.Fatalf("observer API never listened on %s", addr)
					}
					time.Sleep(20 * time.Millisecond)
				}
				cancel()
			}

			select {
			case code := <-got:
				if code != tt.want {
					t.Errorf("run(%q) = %d, want %d", tt.args, code, tt.want)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("run(%q) did not return", tt.args)
			}
		})
	}
}
