// Package queue implements a bounded async message queue: a
// fixed-capacity ring that blocks producers while full and consumers while
// empty, and drains cleanly on shutdown. Reworked from a byte-oriented
// memcpy ring design into a generic typed message queue using Go channel
// semantics plus an explicit closed flag for the shutdown broadcast, in
// place of raw head/tail indices and memory barriers.
package queue

import (
	"sync"
	"sync/atomic"

	"github.com/sentinel/edr/internal/shielderr"
)

// Envelope wraps a queued message with a monotonic sequence number,
// assigned at Push time.
type Envelope[T any] struct {
	Seq     uint64
	Payload T
}

// Queue is a bounded, single-type MPSC-capable message ring. Push blocks
// while the ring is full; Pop blocks while it is empty; both return
// promptly once Shutdown is called. After Shutdown, Push always errors;
// Pop continues to drain whatever was already buffered, then errors once
// empty.
type Queue[T any] struct {
	ch   chan Envelope[T]
	seq  atomic.Uint64
	once sync.Once
	done chan struct{}
}

// New creates a Queue whose capacity is rounded up to the next power of 2,
// matching the source ring buffer's sizing rule (fast modulo via a bitmask
// — preserved here as a size convention even though Go channels do not
// need the bitmask trick themselves).
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		ch:   make(chan Envelope[T], nextPowerOf2(capacity)),
		done: make(chan struct{}),
	}
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Push enqueues payload, blocking while the queue is full. Returns a
// shielderr KindUnsupported error ("queue.Push: closed") if Shutdown has
// already been called or is called while Push is blocked.
func (q *Queue[T]) Push(payload T) error {
	env := Envelope[T]{Seq: q.seq.Add(1), Payload: payload}
	select {
	case <-q.done:
		return shielderr.New(shielderr.KindUnsupported, "queue.Push: closed")
	default:
	}
	select {
	case q.ch <- env:
		return nil
	case <-q.done:
		return shielderr.New(shielderr.KindUnsupported, "queue.Push: closed")
	}
}

// ErrQueueClosed is returned by Pop once Shutdown has been called and the
// queue has fully drained — the consumer-side mirror of the error Push
// already returns immediately on a shut-down queue.
var ErrQueueClosed = shielderr.New(shielderr.KindUnsupported, "queue.Pop: closed")

// Pop dequeues the next message, blocking while the queue is empty. Once
// Shutdown has been called and the queue has drained, Pop returns
// (zero-value, false, ErrQueueClosed), so callers get a real terminal
// error instead of having to infer end-of-stream from a bare false. The
// data channel itself is never closed (concurrent Push calls may still be
// in flight when Shutdown runs), so draining is done by racing a
// non-blocking receive against done rather than relying on a
// close-triggered zero-value read.
func (q *Queue[T]) Pop() (T, bool, error) {
	select {
	case env := <-q.ch:
		return env.Payload, true, nil
	default:
	}

	select {
	case env := <-q.ch:
		return env.Payload, true, nil
	case <-q.done:
		select {
		case env := <-q.ch:
			return env.Payload, true, nil
		default:
			var zero T
			return zero, false, ErrQueueClosed
		}
	}
}

// Shutdown signals all blocked and future Push calls to unblock. Buffered
// messages remain poppable until the queue drains. Idempotent.
func (q *Queue[T]) Shutdown() {
	q.once.Do(func() {
		close(q.done)
	})
}

// Len returns the number of messages currently buffered.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the queue's rounded capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }
