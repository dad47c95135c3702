package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/birdwatch/nodes/internal/catalog"
	"github.com/birdwatch/nodes/internal/ws"
	tea "github.com/charmbracelet/bubbletea"
)

// HTTPClient makes read-only REST calls to the watcher.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8080").
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Sightings fetches /api/sightings. Zero ids and limit are omitted.
func (c *HTTPClient) Sightings(q string, speciesID, nodeID int64, limit int) ([]ws.Sighting, error) {
	v := url.Values{}
	if q != "" {
		v.Set("q", q)
	}
	if speciesID != 0 {
		v.Set("species", strconv.FormatInt(speciesID, 10))
	}
	if nodeID != 0 {
		v.Set("node", strconv.FormatInt(nodeID, 10))
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/sightings"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out []ws.Sighting
	if err := c.get(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Nodes fetches /api/nodes.
func (c *HTTPClient) Nodes() ([]catalog.Node, error) {
	var out []catalog.Node
	if err := c.get("/api/nodes", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary fetches /api/summary.
func (c *HTTPClient) Summary() (*catalog.Summary, error) {
	var s catalog.Summary
	if err := c.get("/api/summary", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Search returns a command that runs a name search and reports a
// SearchResultMsg.
func (c *HTTPClient) Search(q string, limit int) tea.Cmd {
	return func() tea.Msg {
		res, err := c.Sightings(q, 0, 0, limit)
		return SearchResultMsg{Query: q, Sightings: res, Err: err}
	}
}

func (c *HTTPClient) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
