package mcpws

import (
	"context"
	"strconv"
	"time"

	"github.com/edgelink/mcpws/pkg/mcpws/o11y"
)

// ClientMetrics holds the metric instruments the client records against.
// All record methods are nil-safe: a client built without a metrics provider
// carries a nil *ClientMetrics and pays only for the nil checks.
type ClientMetrics struct {
	// Connection metrics
	connectAttempts    o11y.Counter   // Connection attempts, successful or not
	connectErrors      o11y.Counter   // Failed attempts by error type (dial, handshake status)
	connectionDuration o11y.Histogram // How long each established connection lasted
	reconnects         o11y.Counter   // Reconnect decisions taken

	// Frame metrics
	framesSent     o11y.Counter   // Frames written to the transport, by opcode
	framesReceived o11y.Counter   // Frames read from the transport, by opcode
	framesDropped  o11y.Counter   // Frames rejected by the full send queue, by opcode
	frameSize      o11y.Histogram // Payload size distribution, by direction

	// Health metrics
	pingsSent  o11y.Counter // Keepalive pings written
	queueDepth o11y.Gauge   // Send queue depth sampled at drain time
}

// NewClientMetrics creates the client's metric instruments using the given
// provider. Returns nil if the provider is nil.
func NewClientMetrics(provider o11y.MetricsProvider) *ClientMetrics {
	if provider == nil {
		return nil
	}

	return &ClientMetrics{
		connectAttempts:    provider.Counter("mcpws_connect_attempts_total"),
		connectErrors:      provider.Counter("mcpws_connect_errors_total"),
		connectionDuration: provider.Histogram("mcpws_connection_duration_seconds"),
		reconnects:         provider.Counter("mcpws_reconnects_total"),

		framesSent:     provider.Counter("mcpws_frames_sent_total"),
		framesReceived: provider.Counter("mcpws_frames_received_total"),
		framesDropped:  provider.Counter("mcpws_frames_dropped_total"),
		frameSize:      provider.Histogram("mcpws_frame_size_bytes"),

		pingsSent:  provider.Counter("mcpws_pings_sent_total"),
		queueDepth: provider.Gauge("mcpws_send_queue_depth"),
	}
}

// RecordConnectAttempt records the start of a connection attempt.
func (m *ClientMetrics) RecordConnectAttempt(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectAttempts.Add(ctx, 1)
}

// RecordConnectError records a failed connection attempt. For handshake
// rejections status carries the HTTP status; for dial failures it is zero.
func (m *ClientMetrics) RecordConnectError(ctx context.Context, status int) {
	if m == nil {
		return
	}
	errorType := "dial"
	if status != 0 {
		errorType = "handshake_" + strconv.Itoa(status)
	}
	m.connectErrors.Add(ctx, 1, o11y.Label{Key: "error_type", Value: errorType})
}

// RecordConnectionEnd records the lifetime of a connection that is being
// torn down.
func (m *ClientMetrics) RecordConnectionEnd(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.connectionDuration.Record(ctx, duration.Seconds())
}

// RecordReconnect records a reconnect decision.
func (m *ClientMetrics) RecordReconnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.reconnects.Add(ctx, 1)
}

// RecordFrameSent records a frame successfully written to the transport.
func (m *ClientMetrics) RecordFrameSent(ctx context.Context, opcode Opcode, sizeBytes int) {
	if m == nil {
		return
	}
	m.framesSent.Add(ctx, 1, o11y.Label{Key: "opcode", Value: opcode.String()})
	m.frameSize.Record(ctx, float64(sizeBytes), o11y.Label{Key: "direction", Value: "sent"})
	if opcode == OpPing {
		m.pingsSent.Add(ctx, 1)
	}
}

// RecordFrameReceived records a frame read from the transport.
func (m *ClientMetrics) RecordFrameReceived(ctx context.Context, opcode Opcode, sizeBytes int) {
	if m == nil {
		return
	}
	m.framesReceived.Add(ctx, 1, o11y.Label{Key: "opcode", Value: opcode.String()})
	m.frameSize.Record(ctx, float64(sizeBytes), o11y.Label{Key: "direction", Value: "received"})
}

// RecordFrameDropped records a frame rejected by the full send queue.
func (m *ClientMetrics) RecordFrameDropped(ctx context.Context, opcode Opcode) {
	if m == nil {
		return
	}
	m.framesDropped.Add(ctx, 1, o11y.Label{Key: "opcode", Value: opcode.String()})
}

// RecordQueueDepth samples the send queue depth.
func (m *ClientMetrics) RecordQueueDepth(ctx context.Context, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(ctx, float64(depth))
}
