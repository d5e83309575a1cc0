package mcpws

import (
	"context"
	"sync"
	"sync/atomic"
)

type asyncEventKind int

const (
	asyncConnected asyncEventKind = iota
	asyncDisconnected
	asyncMessage
	asyncMessageSent
	asyncError
)

type asyncEvent struct {
	ctx     context.Context
	kind    asyncEventKind
	payload []byte
	err     error
}

// AsyncSink wraps another EventSink and delivers events from a background
// goroutine through a bounded queue, so the client's control loop is never
// delayed by a slow callback. When the queue is full, events are dropped and
// counted rather than buffered without bound — the same backpressure policy
// the send queue applies to outbound frames.
//
// Call Start before handing the sink to a client, and Close when done:
//
//	sink := mcpws.NewAsyncSink(mySink, 64).Start()
//	defer sink.Close()
type AsyncSink struct {
	wrapped EventSink
	queue   chan asyncEvent
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewAsyncSink creates an AsyncSink delivering to wrapped through a queue of
// the given size. A non-positive size gets a default of 64.
func NewAsyncSink(wrapped EventSink, queueSize int) *AsyncSink {
	if queueSize <= 0 {
		queueSize = 64
	}

	return &AsyncSink{
		wrapped: wrapped,
		queue:   make(chan asyncEvent, queueSize),
		done:    make(chan struct{}),
	}
}

// Start begins delivering events in a background goroutine. Returns the same
// AsyncSink for chaining.
func (a *AsyncSink) Start() *AsyncSink {
	a.wg.Add(1)
	go a.deliverLoop()
	return a
}

// Close stops delivery after draining whatever is already queued. Events
// arriving after Close are dropped.
func (a *AsyncSink) Close() error {
	a.closeOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
	})
	return nil
}

// Dropped returns how many events have been discarded because the queue was
// full or the sink was closed.
func (a *AsyncSink) Dropped() uint64 {
	return a.dropped.Load()
}

// QueueSize returns the current number of queued events.
func (a *AsyncSink) QueueSize() int {
	return len(a.queue)
}

// QueueCapacity returns the maximum capacity of the queue.
func (a *AsyncSink) QueueCapacity() int {
	return cap(a.queue)
}

// IsClosed returns true if the sink has been closed.
func (a *AsyncSink) IsClosed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func (a *AsyncSink) OnConnected(ctx context.Context) {
	a.enqueue(asyncEvent{ctx: ctx, kind: asyncConnected})
}

func (a *AsyncSink) OnDisconnected(ctx context.Context) {
	a.enqueue(asyncEvent{ctx: ctx, kind: asyncDisconnected})
}

func (a *AsyncSink) OnMessage(ctx context.Context, payload []byte) {
	a.enqueue(asyncEvent{ctx: ctx, kind: asyncMessage, payload: payload})
}

func (a *AsyncSink) OnMessageSent(ctx context.Context, payload []byte) {
	a.enqueue(asyncEvent{ctx: ctx, kind: asyncMessageSent, payload: payload})
}

func (a *AsyncSink) OnError(ctx context.Context, err error) {
	a.enqueue(asyncEvent{ctx: ctx, kind: asyncError, err: err})
}

func (a *AsyncSink) enqueue(ev asyncEvent) {
	if a.IsClosed() {
		a.dropped.Add(1)
		return
	}

	select {
	case a.queue <- ev:
	default:
		a.dropped.Add(1)
	}
}

func (a *AsyncSink) deliverLoop() {
	defer a.wg.Done()

	for {
		select {
		case ev := <-a.queue:
			a.deliver(ev)
		case <-a.done:
			a.drainQueue()
			return
		}
	}
}

// drainQueue delivers any remaining events during shutdown.
func (a *AsyncSink) drainQueue() {
	for {
		select {
		case ev := <-a.queue:
			a.deliver(ev)
		default:
			return
		}
	}
}

func (a *AsyncSink) deliver(ev asyncEvent) {
	switch ev.kind {
	case asyncConnected:
		a.wrapped.OnConnected(ev.ctx)
	case asyncDisconnected:
		a.wrapped.OnDisconnected(ev.ctx)
	case asyncMessage:
		a.wrapped.OnMessage(ev.ctx, ev.payload)
	case asyncMessageSent:
		a.wrapped.OnMessageSent(ev.ctx, ev.payload)
	case asyncError:
		a.wrapped.OnError(ev.ctx, ev.err)
	}
}
