package config

import (
	"fmt"
	"net"
	"sort"
	"strconv"
)

// ParsePorts converts positional arguments into a sorted, de-duplicated
// port list. At least one port is required.
func ParsePorts(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one port is required")
	}
	seen := make(map[int]bool, len(args))
	ports := make([]int, 0, len(args))
	for _, a := range args {
		p, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", a, err)
		}
		if !ValidPort(p) {
			return nil, fmt.Errorf("port %d out of range 1-65535", p)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

// SplitTarget parses a watcher target of the form host:port.
func SplitTarget(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("watcher target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || !ValidPort(port) {
		return "", 0, fmt.Errorf("watcher target %q: invalid port", target)
	}
	if host == "" {
		return "", 0, fmt.Errorf("watcher target %q: missing host", target)
	}
	return host, port, nil
}
