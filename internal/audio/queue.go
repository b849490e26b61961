package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"parley/agent/internal/types"
)

const DefaultCapacity = 32

// ErrClosed is returned by Pop once the queue has been closed.
var ErrClosed = errors.New("audio: queue closed")

// Queue is a bounded FIFO of frames between one producer and one consumer.
// Push never blocks: when the queue is full the oldest frame is discarded.
type Queue struct {
	mu     sync.Mutex
	buf    []types.AudioFrame
	head   int
	n      int
	closed bool

	ready   chan struct{}
	done    chan struct{}
	dropped atomic.Uint64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		buf:   make([]types.AudioFrame, capacity),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push enqueues f and reports whether an older frame had to be dropped to
// make room. Frames pushed after Close are discarded.
func (q *Queue) Push(f types.AudioFrame) (dropped bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if q.n == len(q.buf) {
		q.buf[q.head] = types.AudioFrame{}
		q.head = (q.head + 1) % len(q.buf)
		q.n--
		dropped = true
	}
	q.buf[(q.head+q.n)%len(q.buf)] = f
	q.n++
	depth := q.n
	q.mu.Unlock()

	if dropped {
		q.dropped.Add(1)
		metricQueueDrops.Inc()
	}
	metricFramesIn.Inc()
	gaugeQueueDepth.Set(float64(depth))
	q.signal()
	return dropped
}

// TryPop dequeues a frame without waiting.
func (q *Queue) TryPop() (types.AudioFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.n == 0 {
		return types.AudioFrame{}, false
	}
	f := q.buf[q.head]
	q.buf[q.head] = types.AudioFrame{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return f, true
}

// Pop waits for the next frame. It returns ErrClosed when the queue is
// closed and ctx.Err() when ctx ends first.
func (q *Queue) Pop(ctx context.Context) (types.AudioFrame, error) {
	for {
		if f, ok := q.TryPop(); ok {
			return f, nil
		}
		if q.isClosed() {
			return types.AudioFrame{}, ErrClosed
		}
		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return types.AudioFrame{}, ctx.Err()
		}
	}
}

// Ready is signalled after every Push. A receive may be spurious; callers
// drain with TryPop.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

// Done is closed by Close.
func (q *Queue) Done() <-chan struct{} { return q.done }

// Close marks the queue closed and discards anything still buffered.
// Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.drainLocked()
	q.mu.Unlock()
	close(q.done)
	gaugeQueueDepth.Set(0)
}

// Drain discards buffered frames and returns how many there were.
func (q *Queue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drainLocked()
}

func (q *Queue) drainLocked() int {
	n := q.n
	for i := range q.buf {
		q.buf[i] = types.AudioFrame{}
	}
	q.head, q.n = 0, 0
	return n
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *Queue) Cap() int { return len(q.buf) }

// Dropped is the number of frames discarded because the queue was full.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
