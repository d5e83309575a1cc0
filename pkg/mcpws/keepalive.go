package mcpws

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// pingPayload is the fixed payload carried by keepalive PING frames.
var pingPayload = []byte{0x12, 0x34, 0x56, 0x78}

// keepaliveInitialDelay is how soon after connection establishment the first
// ping fires, independent of the configured interval. An implementation
// decision, not a documented guarantee.
const keepaliveInitialDelay = 5 * time.Second

// keepalive enqueues periodic PING frames while a connection is up. One
// instance lives per connection: the control loop starts it on entering
// Connected and stops it when the state leaves Connected. It only produces
// into the send queue; it never touches the transport or the state.
type keepalive struct {
	queue          *sendQueue
	logger         *zap.Logger
	interval       time.Duration
	initialDelay   time.Duration
	enqueueTimeout time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

func newKeepalive(queue *sendQueue, logger *zap.Logger, interval, enqueueTimeout time.Duration) *keepalive {
	return &keepalive{
		queue:          queue,
		logger:         logger,
		interval:       interval,
		initialDelay:   keepaliveInitialDelay,
		enqueueTimeout: enqueueTimeout,
		done:           make(chan struct{}),
	}
}

func (k *keepalive) start() {
	k.wg.Add(1)
	go k.run()
}

// stop halts the timer. No pings are enqueued after stop returns.
func (k *keepalive) stop() {
	close(k.done)
	k.wg.Wait()
}

func (k *keepalive) run() {
	defer k.wg.Done()

	timer := time.NewTimer(k.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			k.ping()
			timer.Reset(k.interval)
		case <-k.done:
			return
		}
	}
}

func (k *keepalive) ping() {
	k.logger.Debug("Keepalive timer fired, enqueueing ping")

	err := k.queue.Enqueue(Frame{Opcode: OpPing, Payload: pingPayload}, k.enqueueTimeout)
	if errors.Is(err, ErrQueueFull) {
		k.logger.Warn("Send queue full, dropping keepalive ping")
	}
}
