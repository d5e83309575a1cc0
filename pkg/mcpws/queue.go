package mcpws

import (
	"errors"
	"time"
)

// ErrQueueFull is returned when a frame could not be enqueued within the
// enqueue timeout. The frame is discarded; outbound sends are best-effort
// and are never buffered without bound.
var ErrQueueFull = errors.New("send queue is full")

// sendQueue is the bounded FIFO of outbound frames. Any number of producers
// (the caller, the keepalive timer) enqueue concurrently; only the control
// loop drains.
type sendQueue struct {
	frames chan Frame
}

func newSendQueue(capacity int) *sendQueue {
	return &sendQueue{
		frames: make(chan Frame, capacity),
	}
}

// Enqueue appends a frame, blocking the caller for at most timeout when the
// queue is full. Returns ErrQueueFull if no slot opened up in time.
func (q *sendQueue) Enqueue(f Frame, timeout time.Duration) error {
	if f.EnqueuedAt.IsZero() {
		f.EnqueuedAt = time.Now()
	}

	select {
	case q.frames <- f:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.frames <- f:
		return nil
	case <-timer.C:
		return ErrQueueFull
	}
}

// Drain passes each currently buffered frame to fn in FIFO order without
// blocking; frames enqueued after Drain starts may or may not be seen. If fn
// returns an error the drain stops and the error is returned; the failed
// frame is considered consumed.
func (q *sendQueue) Drain(fn func(Frame) error) error {
	for {
		select {
		case f := <-q.frames:
			if err := fn(f); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// Flush discards everything currently buffered. Called when a transport
// session is torn down; pending frames are not carried across connections.
func (q *sendQueue) Flush() int {
	dropped := 0
	for {
		select {
		case <-q.frames:
			dropped++
		default:
			return dropped
		}
	}
}

// Len returns the number of frames currently buffered.
func (q *sendQueue) Len() int {
	return len(q.frames)
}

// Cap returns the queue capacity.
func (q *sendQueue) Cap() int {
	return cap(q.frames)
}
