package mcpws

import "sync/atomic"

// Stats holds the client's monotonic counters. They are mutated only by the
// control loop and safe to read from any goroutine at any time.
type Stats struct {
	sent       atomic.Uint64
	received   atomic.Uint64
	reconnects atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Sent       uint64 // frames successfully written to the transport
	Received   uint64 // text/binary frames delivered to the event sink
	Reconnects uint64 // reconnect decisions taken, ever
}

// Snapshot reads all counters without blocking the control loop.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Sent:       s.sent.Load(),
		Received:   s.received.Load(),
		Reconnects: s.reconnects.Load(),
	}
}

func (s *Stats) addSent()      { s.sent.Add(1) }
func (s *Stats) addReceived()  { s.received.Add(1) }
func (s *Stats) addReconnect() { s.reconnects.Add(1) }
