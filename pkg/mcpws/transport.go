package mcpws

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReceiveTimeout indicates that no frame arrived within the read
	// timeout. The connection is still healthy; the control loop uses the
	// bounded read to stay responsive to the send queue and stop requests.
	ErrReceiveTimeout = errors.New("receive timed out")

	// ErrSessionClosed is returned by Send and Receive after Close.
	ErrSessionClosed = errors.New("session is closed")
)

// HandshakeError reports a WebSocket upgrade that did not complete with
// status 101. It carries the HTTP status the server answered with (for
// example 400 or 401). The transport never retries; whether to reconnect is
// the state machine's decision.
type HandshakeError struct {
	Status int
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("websocket handshake failed with status %d", e.Status)
}

// Transport opens transport sessions. The production implementation dials
// TCP (plus TLS for wss) and performs the WebSocket upgrade; tests substitute
// their own to script connection attempts.
type Transport interface {
	// Open establishes one connection to the endpoint. A server response
	// other than 101 yields a *HandshakeError.
	Open(ctx context.Context, ep Endpoint) (Session, error)
}

// Session is a single connect/read/write/close cycle against the remote
// endpoint. It is exclusively owned by the client's control loop for the
// duration of one connection attempt and is never shared.
type Session interface {
	// ID identifies the session in logs.
	ID() string

	// Send writes one frame, blocking at most timeout.
	Send(f Frame, timeout time.Duration) error

	// Receive returns the next inbound frame, opcode-tagged, in arrival
	// order. Control frames (ping, pong, close) are surfaced like data
	// frames. Returns ErrReceiveTimeout when nothing arrived within
	// timeout.
	Receive(timeout time.Duration) (Frame, error)

	// Close tears the connection down. It is idempotent and safe to call
	// on an already-failed session.
	Close() error
}
