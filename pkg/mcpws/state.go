package mcpws

// ConnState is the client's connection state. Exactly one instance exists per
// Client; it is mutated only by the control loop and may be read concurrently
// through Client.State.
type ConnState int32

const (
	StateIdle ConnState = iota
	StateInitializing
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
	StateReconnecting
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
