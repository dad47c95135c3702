package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/birdwatch/nodes/internal/tui/app"
	"github.com/birdwatch/nodes/internal/tui/client"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL of the watcher")
	token := flag.String("token", os.Getenv("BIRDWATCH_TOKEN"), "Auth token (if the watcher requires it)")
	logFile := flag.String("log", "", "Write client logs to this file")
	flag.Parse()

	// The alt screen owns stdout and stderr.
	if *logFile != "" {
		f, err := tea.LogToFile(*logFile, "watcher-tui")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	ws := client.NewWSClient(*wsURL, *token)
	defer ws.Close()
	httpClient := client.NewHTTPClient(deriveHTTPBase(*wsURL), *token)

	p := tea.NewProgram(app.New(ws, httpClient), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// deriveHTTPBase converts ws://host:port/ws to http://host:port.
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://127.0.0.1:8080"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
