package graphstore

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// splitHostPort parses a graph_uri of the form "host:port", tolerating an
// optional "scheme://" prefix ("qdrant://", or a legacy "bolt://" value
// carried over from config fixtures predating the Qdrant-backed Graph
// Store), the value's most natural spelling in a YAML/env config per
// SPEC_FULL.md §6.4.
func splitHostPort(uri string) (string, int, error) {
	if i := strings.Index(uri, "://"); i >= 0 {
		uri = uri[i+len("://"):]
	}
	host, portStr, err := net.SplitHostPort(uri)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}
