// Package tts runs cancellable speech synthesis. A Task produces audio on
// its own goroutine; the consumer ranges over Chunks and may Cancel at any
// time without blocking.
package tts

import (
    "context"
    "errors"
    "iter"
    "sync"
    "sync/atomic"
    "time"

    "github.com/google/uuid"
)

var (
    ErrTransport     = errors.New("tts: transport failure")
    ErrConfiguration = errors.New("tts: configuration")
)

type State int32

const (
    Running State = iota
    Completed
    Cancelled
    Failed
)

func (s State) String() string {
    switch s {
    case Running:
        return "running"
    case Completed:
        return "completed"
    case Cancelled:
        return "cancelled"
    case Failed:
        return "failed"
    }
    return "unknown"
}

// Terminal reports whether the task can no longer produce audio.
func (s State) Terminal() bool { return s != Running }

// StreamFunc synthesises text and hands audio to emit in order. It must
// return promptly once ctx is done; emit returns ctx.Err() in that case.
type StreamFunc func(ctx context.Context, text, voice string, emit func([]byte) error) error

type Task struct {
    ID        string
    Text      string
    Voice     string
    StartedAt time.Time

    ctx    context.Context
    cancel context.CancelFunc
    chunks chan []byte
    done   chan struct{}

    state     atomic.Int32
    cancelled atomic.Bool
    requests  atomic.Int32
    consumed  atomic.Bool
    once      sync.Once
    err       error
}

// NewTask starts fn on its own goroutine.
func NewTask(parent context.Context, text, voice string, fn StreamFunc) *Task {
    ctx, cancel := context.WithCancel(parent)
    t := &Task{
        ID:        uuid.NewString(),
        Text:      text,
        Voice:     voice,
        StartedAt: time.Now(),
        ctx:       ctx,
        cancel:    cancel,
        chunks:    make(chan []byte, 8),
        done:      make(chan struct{}),
    }
    gaugeActive.Inc()
    go t.run(fn)
    return t
}

func (t *Task) run(fn StreamFunc) {
    defer close(t.done)
    defer close(t.chunks)
    defer gaugeActive.Dec()

    err := fn(t.ctx, t.Text, t.Voice, t.emit)
    switch {
    case t.cancelled.Load():
        t.state.CompareAndSwap(int32(Running), int32(Cancelled))
        ttsSynthesisTotal.WithLabelValues("cancelled").Inc()
    case err != nil:
        t.err = err
        t.state.CompareAndSwap(int32(Running), int32(Failed))
        ttsSynthesisTotal.WithLabelValues("failed").Inc()
    default:
        t.state.CompareAndSwap(int32(Running), int32(Completed))
        ttsSynthesisTotal.WithLabelValues("completed").Inc()
    }
}

func (t *Task) emit(b []byte) error {
    if len(b) == 0 {
        return nil
    }
    select {
    case t.chunks <- b:
        return nil
    case <-t.ctx.Done():
        return t.ctx.Err()
    }
}

// Chunks yields audio in production order. It can be ranged over once;
// later calls yield nothing. Nothing is yielded after Cancel returns.
func (t *Task) Chunks() iter.Seq[[]byte] {
    return func(yield func([]byte) bool) {
        if !t.consumed.CompareAndSwap(false, true) {
            return
        }
        for {
            if t.cancelled.Load() {
                return
            }
            select {
            case b, ok := <-t.chunks:
                // Chunks still buffered when the producer finished are
                // dropped once Cancel has run.
                if !ok || t.cancelled.Load() {
                    return
                }
                if !yield(b) {
                    return
                }
            case <-t.ctx.Done():
                return
            }
        }
    }
}

// Cancel stops the producer and any audio not yet yielded, including chunks
// buffered after the producer completed. The terminal state of a producer
// that already returned is left as is. Calling it again is a no-op.
func (t *Task) Cancel() {
    t.requests.Add(1)
    t.once.Do(func() {
        t.cancelled.Store(true)
        t.cancel()
    })
}

// Cancelled is closed once Cancel has run or the parent context is done.
func (t *Task) Cancelled() <-chan struct{} { return t.ctx.Done() }

// CancelRequests counts Cancel calls, including no-op repeats.
func (t *Task) CancelRequests() int { return int(t.requests.Load()) }

// Done is closed when the producer has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err is the producer's failure, valid after Done. Cancelled tasks report nil.
func (t *Task) Err() error {
    select {
    case <-t.done:
        return t.err
    default:
        return nil
    }
}

func (t *Task) State() State { return State(t.state.Load()) }
