package mcpws

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edgelink/mcpws/pkg/mcpws/o11y"
)

const (
	// DefaultReconnectDelay is the base delay between reconnect attempts.
	DefaultReconnectDelay = 5 * time.Second

	// DefaultPingInterval is the period of the keepalive timer.
	DefaultPingInterval = 20 * time.Second

	// DefaultQueueCapacity bounds the outbound send queue. Deliberately
	// small: outbound frames are best-effort and a slow connection should
	// push back on producers quickly.
	DefaultQueueCapacity = 10

	// DefaultEnqueueTimeout is how long a producer blocks on a full send
	// queue before the frame is dropped.
	DefaultEnqueueTimeout = time.Second

	// DefaultConnectTimeout bounds one dial-plus-handshake attempt.
	DefaultConnectTimeout = 15 * time.Second

	// DefaultReadTimeout bounds each transport read so the control loop
	// can service the send queue and observe stop requests promptly.
	DefaultReadTimeout = 500 * time.Millisecond

	// DefaultWriteTimeout bounds each transport write.
	DefaultWriteTimeout = time.Second
)

// ClientBuilder provides a fluent interface for building clients. The
// configuration is immutable once Build is called.
type ClientBuilder struct {
	endpoint        string
	logger          *zap.Logger
	sink            EventSink
	transport       Transport
	metricsProvider o11y.MetricsProvider
	tracingProvider o11y.TracingProvider

	autoReconnect  bool
	reconnectDelay time.Duration
	pingInterval   time.Duration
	queueCapacity  int
	enqueueTimeout time.Duration
	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
}

// NewClient creates a new client builder with auto-reconnect enabled and
// all intervals at their defaults.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		logger:         zap.NewNop(),
		autoReconnect:  true,
		reconnectDelay: DefaultReconnectDelay,
		pingInterval:   DefaultPingInterval,
		queueCapacity:  DefaultQueueCapacity,
		enqueueTimeout: DefaultEnqueueTimeout,
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
		writeTimeout:   DefaultWriteTimeout,
	}
}

// WithEndpoint sets the ws:// or wss:// URL to connect to. The path,
// including any query string (which may carry an authentication token), is
// passed to the server verbatim.
func (b *ClientBuilder) WithEndpoint(url string) *ClientBuilder {
	b.endpoint = url
	return b
}

// WithLogger sets the logger for the client.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithEventSink sets the sink that receives lifecycle and message events.
// Optional; without one, events are discarded.
func (b *ClientBuilder) WithEventSink(sink EventSink) *ClientBuilder {
	b.sink = sink
	return b
}

// WithTransport overrides the production WebSocket transport. Mainly for
// tests that script connection attempts.
func (b *ClientBuilder) WithTransport(transport Transport) *ClientBuilder {
	b.transport = transport
	return b
}

// WithMetricsProvider enables metrics collection through the given provider.
func (b *ClientBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *ClientBuilder {
	b.metricsProvider = provider
	return b
}

// WithTracingProvider enables a span around each connection attempt.
func (b *ClientBuilder) WithTracingProvider(provider o11y.TracingProvider) *ClientBuilder {
	b.tracingProvider = provider
	return b
}

// WithAutoReconnect controls whether the client re-establishes a failed
// connection on its own. Default true.
func (b *ClientBuilder) WithAutoReconnect(enabled bool) *ClientBuilder {
	b.autoReconnect = enabled
	return b
}

// WithReconnectDelay sets the base delay between reconnect attempts. The
// delay doubles for every attempt beyond the third, capped at 60 seconds.
func (b *ClientBuilder) WithReconnectDelay(delay time.Duration) *ClientBuilder {
	if delay > 0 {
		b.reconnectDelay = delay
	}
	return b
}

// WithPingInterval sets the keepalive period.
func (b *ClientBuilder) WithPingInterval(interval time.Duration) *ClientBuilder {
	if interval > 0 {
		b.pingInterval = interval
	}
	return b
}

// WithQueueCapacity bounds the outbound send queue. Once full, enqueue
// attempts fail after the enqueue timeout rather than growing the queue.
func (b *ClientBuilder) WithQueueCapacity(capacity int) *ClientBuilder {
	if capacity > 0 {
		b.queueCapacity = capacity
	}
	return b
}

// WithEnqueueTimeout sets how long producers block on a full queue.
func (b *ClientBuilder) WithEnqueueTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.enqueueTimeout = timeout
	}
	return b
}

// WithConnectTimeout bounds each dial-plus-handshake attempt.
func (b *ClientBuilder) WithConnectTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.connectTimeout = timeout
	}
	return b
}

// WithReadTimeout bounds each transport read.
func (b *ClientBuilder) WithReadTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.readTimeout = timeout
	}
	return b
}

// WithWriteTimeout bounds each transport write.
func (b *ClientBuilder) WithWriteTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.writeTimeout = timeout
	}
	return b
}

// IsValid checks that all required configuration is present.
func (b *ClientBuilder) IsValid() error {
	if b.endpoint == "" {
		return fmt.Errorf("endpoint URL is required")
	}
	return nil
}

// Build parses the endpoint and returns a ready-to-start Client. A
// malformed endpoint fails here with ErrInvalidEndpoint; it is never
// retried.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	ep, err := ParseEndpoint(b.endpoint)
	if err != nil {
		return nil, err
	}

	sink := b.sink
	if sink == nil {
		sink = BaseSink{}
	}

	transport := b.transport
	if transport == nil {
		transport = NewTransport(b.logger)
	}

	c := &Client{
		endpoint:       ep,
		logger:         b.logger,
		sink:           sink,
		transport:      transport,
		metrics:        NewClientMetrics(b.metricsProvider),
		tracing:        b.tracingProvider,
		autoReconnect:  b.autoReconnect,
		reconnectDelay: b.reconnectDelay,
		pingInterval:   b.pingInterval,
		enqueueTimeout: b.enqueueTimeout,
		connectTimeout: b.connectTimeout,
		readTimeout:    b.readTimeout,
		writeTimeout:   b.writeTimeout,
		queue:          newSendQueue(b.queueCapacity),
	}

	c.logger.Info("Client configured",
		zap.String("scheme", ep.Scheme),
		zap.String("host", ep.Host),
		zap.Int("port", ep.Port),
		zap.String("path", ep.Path),
		zap.Bool("auto_reconnect", b.autoReconnect),
	)

	return c, nil
}
