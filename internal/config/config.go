package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DebugEnv enables verbose scheduler diagnostics when set to a truthy value.
const DebugEnv = "NODES_DEBUG"

type Config struct {
	Nodes     NodesConfig     `yaml:"nodes"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Server    ServerConfig    `yaml:"server"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

// NodesConfig drives the emitter. Host stays on loopback unless a config
// file says otherwise; there is no flag for it.
type NodesConfig struct {
	Host                string        `yaml:"host"`
	MinInterval         time.Duration `yaml:"min_interval"`
	MaxInterval         time.Duration `yaml:"max_interval"`
	IntervalStep        time.Duration `yaml:"interval_step"`
	Debug               bool          `yaml:"debug"`
	DiagnosticsInterval time.Duration `yaml:"diagnostics_interval"`
}

type WatcherConfig struct {
	Targets          []string      `yaml:"targets"`
	ReconnectBase    time.Duration `yaml:"reconnect_base"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

type CatalogConfig struct {
	Dir          string        `yaml:"dir"`
	SaveInterval time.Duration `yaml:"save_interval"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	MaxConnections int      `yaml:"max_connections"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type BroadcastConfig struct {
	Throttle         time.Duration `yaml:"throttle"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

func defaultConfig() *Config {
	return &Config{
		Nodes: NodesConfig{
			Host:                "127.0.0.1",
			MinInterval:         time.Second,
			MaxInterval:         3 * time.Second,
			IntervalStep:        time.Second,
			DiagnosticsInterval: 10 * time.Second,
		},
		Watcher: WatcherConfig{
			ReconnectBase:    time.Second,
			ReconnectMax:     30 * time.Second,
			FailureThreshold: 3,
		},
		Catalog: CatalogConfig{
			SaveInterval: 30 * time.Second,
		},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			MaxConnections: 64,
		},
		Broadcast: BroadcastConfig{
			Throttle:         250 * time.Millisecond,
			SnapshotInterval: 10 * time.Second,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when path does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// ApplyEnv overlays environment settings. lookup is os.LookupEnv outside
// tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(DebugEnv); ok && v != "" {
		debug, err := ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", DebugEnv, err)
		}
		c.Nodes.Debug = debug
	}
	return nil
}

// ParseBool accepts the usual spellings of a boolean switch.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	n := c.Nodes
	if n.Host == "" {
		return errors.New("nodes.host must not be empty")
	}
	if n.MinInterval <= 0 {
		return fmt.Errorf("nodes.min_interval must be positive, got %v", n.MinInterval)
	}
	if n.MaxInterval < n.MinInterval {
		return fmt.Errorf("nodes.max_interval %v is below nodes.min_interval %v", n.MaxInterval, n.MinInterval)
	}
	if n.IntervalStep <= 0 {
		return fmt.Errorf("nodes.interval_step must be positive, got %v", n.IntervalStep)
	}
	if c.Watcher.FailureThreshold < 1 {
		return fmt.Errorf("watcher.failure_threshold must be at least 1, got %d", c.Watcher.FailureThreshold)
	}
	if c.Watcher.ReconnectBase <= 0 || c.Watcher.ReconnectMax < c.Watcher.ReconnectBase {
		return fmt.Errorf("watcher reconnect window [%v, %v] is invalid", c.Watcher.ReconnectBase, c.Watcher.ReconnectMax)
	}
	for _, t := range c.Watcher.Targets {
		if _, _, err := SplitTarget(t); err != nil {
			return err
		}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// ValidPort reports whether p can be bound by a node listener.
func ValidPort(p int) bool {
	return p >= 1 && p <= 65535
}
