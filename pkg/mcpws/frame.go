package mcpws

import "time"

// Opcode identifies the WebSocket frame type of an inbound or outbound Frame.
type Opcode int

const (
	OpText Opcode = iota
	OpBinary
	OpPing
	OpPong
	OpClose
)

// String returns the opcode name as used in logs and metric labels.
func (o Opcode) String() string {
	switch o {
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	case OpClose:
		return "close"
	default:
		return "unknown"
	}
}

// Frame is one discrete unit of data exchanged over the connection.
// Outbound frames are created by a producer and owned by the send queue
// until the control loop writes them to the transport.
type Frame struct {
	Opcode     Opcode
	Payload    []byte
	EnqueuedAt time.Time
}
