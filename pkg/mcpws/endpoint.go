package mcpws

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidEndpoint is returned when an endpoint URL cannot be parsed.
// It is fatal to initialization; the client never retries a bad endpoint.
var ErrInvalidEndpoint = errors.New("invalid websocket endpoint")

// DefaultPath is used when the endpoint URL carries no path component.
const DefaultPath = "/mcp/"

// Endpoint is the parsed form of a WebSocket URL. The path is preserved
// verbatim, including any query string, because callers may embed an
// authentication token there.
type Endpoint struct {
	Scheme string // "ws" or "wss"
	Host   string
	Port   int
	Path   string
}

// UseTLS reports whether the endpoint requires a TLS connection.
func (e Endpoint) UseTLS() bool {
	return e.Scheme == "wss"
}

// URL reassembles the endpoint into a dialable URL string.
func (e Endpoint) URL() string {
	return fmt.Sprintf("%s://%s:%d%s", e.Scheme, e.Host, e.Port, e.Path)
}

// ParseEndpoint parses a ws:// or wss:// URL into an Endpoint.
//
// The scheme implies the default port (80 for ws, 443 for wss); an explicit
// host:port overrides it and must be in the range 1-65535. Everything from
// the first "/" after the scheme to the end of the string is kept as the
// path, untouched. URLs without a path get DefaultPath.
//
// The parse is deliberately literal rather than delegated to net/url: query
// strings and any percent-encoding in the path must round-trip byte for byte.
func ParseEndpoint(rawURL string) (Endpoint, error) {
	var ep Endpoint

	switch {
	case strings.HasPrefix(rawURL, "wss://"):
		ep.Scheme = "wss"
		ep.Port = 443
		rawURL = rawURL[len("wss://"):]
	case strings.HasPrefix(rawURL, "ws://"):
		ep.Scheme = "ws"
		ep.Port = 80
		rawURL = rawURL[len("ws://"):]
	default:
		return Endpoint{}, fmt.Errorf("%w: scheme must be ws or wss", ErrInvalidEndpoint)
	}

	hostPort := rawURL
	ep.Path = DefaultPath
	if slash := strings.Index(rawURL, "/"); slash >= 0 {
		hostPort = rawURL[:slash]
		ep.Path = rawURL[slash:]
	}

	ep.Host = hostPort
	if colon := strings.LastIndex(hostPort, ":"); colon >= 0 {
		ep.Host = hostPort[:colon]
		port, err := strconv.Atoi(hostPort[colon+1:])
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: malformed port %q", ErrInvalidEndpoint, hostPort[colon+1:])
		}
		if port < 1 || port > 65535 {
			return Endpoint{}, fmt.Errorf("%w: port %d out of range", ErrInvalidEndpoint, port)
		}
		ep.Port = port
	}

	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("%w: empty host", ErrInvalidEndpoint)
	}

	return ep, nil
}
