package mcpws

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/edgelink/mcpws/pkg/mcpws/o11y"
)

var (
	// ErrAlreadyStarted is returned by Start on a running client.
	ErrAlreadyStarted = errors.New("client is already started")

	// ErrNoTransport indicates the client has no transport to connect
	// with. Unreachable for clients built through ClientBuilder.
	ErrNoTransport = errors.New("no transport available")

	// ErrConnectionLost is passed to the event sink when the connection
	// drops and auto-reconnect is disabled.
	ErrConnectionLost = errors.New("connection lost")
)

const (
	// maxReconnectDelay caps the exponential reconnect backoff.
	maxReconnectDelay = 60 * time.Second

	// closeGracePeriod is observed after writing a CLOSE frame during an
	// orderly shutdown, giving the peer a moment to see it.
	closeGracePeriod = 100 * time.Millisecond

	// idlePollInterval paces the control loop while nothing is happening.
	idlePollInterval = 100 * time.Millisecond
)

// Client is a reconnecting WebSocket client. It owns a single background
// control loop that drives the connection state machine: opening transport
// sessions, draining the send queue, pumping inbound frames to the event
// sink, and deciding reconnect versus idle.
//
// Construct clients through NewClient().…(…).Build(); multiple independent
// instances may coexist. All exported methods are safe for concurrent use.
type Client struct {
	endpoint  Endpoint
	logger    *zap.Logger
	sink      EventSink
	transport Transport
	metrics   *ClientMetrics
	tracing   o11y.TracingProvider

	autoReconnect  bool
	reconnectDelay time.Duration
	pingInterval   time.Duration
	enqueueTimeout time.Duration
	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration

	queue *sendQueue
	stats Stats
	state atomic.Int32

	// Owned exclusively by the control loop.
	session     Session
	ka          *keepalive
	attempt     int // consecutive failed connections, reset on a 101 handshake
	connectedAt time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	started int32
	stop    chan struct{}
	stopMu  sync.Mutex
	done    chan struct{}
}

// Start launches the control loop. The client begins in Initializing and
// works toward Connected. The context bounds the client's lifetime;
// cancelling it is equivalent to calling Stop.
func (c *Client) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.started, 0, 1) {
		return ErrAlreadyStarted
	}

	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	c.transition(StateInitializing)
	go c.run()

	c.logger.Info("Client started", zap.String("url", c.endpoint.URL()))
	return nil
}

// Stop requests an orderly shutdown and blocks until the control loop has
// exited. If the client is connected, a CLOSE frame is enqueued and a short
// grace period observed before the session is torn down. Safe to call more
// than once and on a never-started client.
func (c *Client) Stop() error {
	if atomic.LoadInt32(&c.started) == 0 {
		return nil
	}

	if c.IsConnected() {
		if err := c.queue.Enqueue(Frame{Opcode: OpClose}, c.enqueueTimeout); err != nil {
			c.logger.Warn("Could not enqueue close frame", zap.Error(err))
		}
	}

	c.stopMu.Lock()
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	c.stopMu.Unlock()

	<-c.done
	c.cancel()
	atomic.StoreInt32(&c.started, 0)

	c.logger.Info("Client stopped")
	return nil
}

// SendText enqueues a TEXT frame. This is the call the upper protocol layer
// makes during normal operation. The frame is written once the client is
// connected and the queue ahead of it has drained; if the queue stays full
// for the enqueue timeout, the frame is dropped and ErrQueueFull returned.
func (c *Client) SendText(message string) error {
	return c.enqueueFrame(Frame{Opcode: OpText, Payload: []byte(message)})
}

// Send enqueues a TEXT frame with a raw payload.
func (c *Client) Send(payload []byte) error {
	return c.enqueueFrame(Frame{Opcode: OpText, Payload: payload})
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// IsConnected reports whether a transport session is currently established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// Endpoint returns the parsed endpoint the client connects to.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

func (c *Client) enqueueFrame(f Frame) error {
	err := c.queue.Enqueue(f, c.enqueueTimeout)
	if errors.Is(err, ErrQueueFull) {
		c.logger.Warn("Send queue full, dropping frame",
			zap.Stringer("opcode", f.Opcode),
			zap.Int("size", len(f.Payload)),
		)
		c.metrics.RecordFrameDropped(context.Background(), f.Opcode)
	}
	return err
}

// transition publishes the new state. It runs only on the control loop;
// the atomic store makes the change visible to readers before any event
// derived from it is dispatched.
func (c *Client) transition(next ConnState) {
	prev := ConnState(c.state.Swap(int32(next)))
	if prev != next {
		c.logger.Debug("State change",
			zap.Stringer("from", prev),
			zap.Stringer("to", next),
		)
	}
}

func (c *Client) stopping() bool {
	select {
	case <-c.stop:
		return true
	default:
	}
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// run is the control loop. All state transitions happen here; each step
// method handles one state and moves the machine onward.
func (c *Client) run() {
	defer close(c.done)

	c.logger.Debug("Control loop started")

	for {
		switch c.State() {
		case StateIdle:
			if c.stopping() {
				c.logger.Debug("Control loop exiting")
				return
			}
			c.sleep(idlePollInterval)
		case StateInitializing:
			c.stepInitializing()
		case StateConnecting:
			c.stepConnecting()
		case StateConnected:
			c.stepConnected()
		case StateDisconnecting:
			c.stepDisconnecting()
		case StateDisconnected:
			c.stepDisconnected()
		case StateReconnecting:
			c.stepReconnecting()
		case StateError:
			c.stepError()
		}
	}
}

func (c *Client) stepInitializing() {
	if c.stopping() {
		c.transition(StateIdle)
		return
	}

	if c.transport == nil {
		c.logger.Error("No transport available")
		c.transition(StateError)
		c.sink.OnError(c.ctx, ErrNoTransport)
		return
	}

	c.transition(StateConnecting)
}

func (c *Client) stepConnecting() {
	if c.stopping() {
		c.transition(StateIdle)
		return
	}

	ctx := c.ctx
	var span o11y.Span
	if c.tracing != nil {
		ctx, span = c.tracing.StartSpan(ctx, "mcpws.connect")
	}

	c.logger.Info("Connecting", zap.String("url", c.endpoint.URL()))
	c.metrics.RecordConnectAttempt(ctx)

	openCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	sess, err := c.transport.Open(openCtx, c.endpoint)
	cancel()

	if err != nil {
		var he *HandshakeError
		switch {
		case errors.As(err, &he):
			switch he.Status {
			case http.StatusBadRequest:
				c.logger.Error("Handshake rejected, check URL and token parameters",
					zap.Int("status", he.Status))
			case http.StatusUnauthorized:
				c.logger.Error("Handshake rejected, invalid token",
					zap.Int("status", he.Status))
			default:
				c.logger.Error("Handshake failed", zap.Int("status", he.Status))
			}
			c.metrics.RecordConnectError(ctx, he.Status)
		default:
			c.logger.Error("Connect failed", zap.Error(err))
			c.metrics.RecordConnectError(ctx, 0)
		}

		if span != nil {
			span.SetStatus(o11y.SpanStatusError, err.Error())
			span.End()
		}

		c.transition(StateDisconnected)
		return
	}

	if span != nil {
		span.SetStatus(o11y.SpanStatusOK, "")
		span.End()
	}

	c.session = sess
	c.attempt = 0
	c.connectedAt = time.Now()
	c.transition(StateConnected)

	c.logger.Info("Connected",
		zap.String("session", sess.ID()),
		zap.String("url", c.endpoint.URL()),
	)

	c.ka = newKeepalive(c.queue, c.logger, c.pingInterval, c.enqueueTimeout)
	c.ka.start()

	c.sink.OnConnected(c.ctx)
}

func (c *Client) stepConnected() {
	if c.stopping() {
		c.transition(StateDisconnecting)
		return
	}

	c.metrics.RecordQueueDepth(c.ctx, c.queue.Len())

	if err := c.writePending(); err != nil {
		c.logger.Warn("Write failed, tearing down session", zap.Error(err))
		c.transition(StateDisconnected)
		return
	}

	f, err := c.session.Receive(c.readTimeout)
	if err != nil {
		if errors.Is(err, ErrReceiveTimeout) {
			return
		}
		c.logger.Warn("Read failed, tearing down session", zap.Error(err))
		c.transition(StateDisconnected)
		return
	}

	c.handleFrame(f)
}

// writePending drains whatever is currently buffered in the send queue into
// the transport, in FIFO order, without blocking for more.
func (c *Client) writePending() error {
	return c.queue.Drain(func(f Frame) error {
		if err := c.session.Send(f, c.writeTimeout); err != nil {
			return fmt.Errorf("send %s frame: %w", f.Opcode, err)
		}

		c.stats.addSent()
		c.metrics.RecordFrameSent(c.ctx, f.Opcode, len(f.Payload))
		c.logger.Debug("Frame sent",
			zap.Stringer("opcode", f.Opcode),
			zap.Int("size", len(f.Payload)),
		)

		if f.Opcode == OpText {
			c.sink.OnMessageSent(c.ctx, f.Payload)
		}
		return nil
	})
}

func (c *Client) handleFrame(f Frame) {
	c.metrics.RecordFrameReceived(c.ctx, f.Opcode, len(f.Payload))

	switch f.Opcode {
	case OpText, OpBinary:
		c.stats.addReceived()
		c.logger.Debug("Message received",
			zap.Stringer("opcode", f.Opcode),
			zap.Int("size", len(f.Payload)),
		)
		c.sink.OnMessage(c.ctx, f.Payload)
	case OpPing:
		c.logger.Debug("Ping received, enqueueing pong")
		if err := c.queue.Enqueue(Frame{Opcode: OpPong, Payload: f.Payload}, c.enqueueTimeout); err != nil {
			c.logger.Warn("Send queue full, dropping pong")
			c.metrics.RecordFrameDropped(c.ctx, OpPong)
		}
	case OpPong:
		c.logger.Debug("Pong received")
	case OpClose:
		c.logger.Info("Close frame received", zap.Int("code", closeCode(f.Payload)))
		c.transition(StateDisconnected)
	}
}

// stepDisconnecting handles an orderly, requested shutdown of a live
// connection: push out what is queued (including the CLOSE frame Stop
// enqueued), give the peer a moment, then tear down.
func (c *Client) stepDisconnecting() {
	if c.ka != nil {
		c.ka.stop()
		c.ka = nil
	}

	if err := c.writePending(); err != nil {
		c.logger.Debug("Write during shutdown failed", zap.Error(err))
	}
	time.Sleep(closeGracePeriod)
	c.transition(StateDisconnected)
}

func (c *Client) stepDisconnected() {
	if c.ka != nil {
		c.ka.stop()
		c.ka = nil
	}

	if c.session != nil {
		c.metrics.RecordConnectionEnd(c.ctx, time.Since(c.connectedAt))
		c.session.Close()
		c.session = nil
		c.logger.Info("Disconnected", zap.String("url", c.endpoint.URL()))
	}

	// Pending frames do not carry over to the next connection.
	if n := c.queue.Flush(); n > 0 {
		c.logger.Debug("Flushed send queue", zap.Int("frames", n))
	}

	c.sink.OnDisconnected(c.ctx)

	if c.autoReconnect && !c.stopping() {
		c.attempt++
		c.stats.addReconnect()
		c.metrics.RecordReconnect(c.ctx)
		c.transition(StateReconnecting)
		return
	}

	c.transition(StateIdle)
	if !c.stopping() {
		c.sink.OnError(c.ctx, ErrConnectionLost)
	}
}

func (c *Client) stepReconnecting() {
	delay := backoffDelay(c.reconnectDelay, c.attempt)
	c.logger.Info("Reconnecting",
		zap.Int("attempt", c.attempt),
		zap.Duration("delay", delay),
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		c.transition(StateInitializing)
	case <-c.stop:
		c.transition(StateIdle)
	case <-c.ctx.Done():
		c.transition(StateIdle)
	}
}

// stepError parks the machine until an external stop; the Error state does
// not auto-transition.
func (c *Client) stepError() {
	select {
	case <-c.stop:
	case <-c.ctx.Done():
	}
	c.transition(StateIdle)
}

func (c *Client) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-c.stop:
	case <-c.ctx.Done():
	}
}

// backoffDelay returns the wait before reconnect attempt number attempt
// (1-based): the base delay for the first three attempts, doubling for each
// attempt beyond the third, capped at maxReconnectDelay.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 3; i < attempt; i++ {
		delay *= 2
		if delay >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}

// closeCode extracts the status code from a close frame payload, or 0 if
// the payload carries none.
func closeCode(payload []byte) int {
	if len(payload) < 2 {
		return 0
	}
	return int(binary.BigEndian.Uint16(payload))
}
