package queue

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrEndOfStream = errors.New("end of stream")
)

// Queue is a bounded FIFO with blocking Push and Pop.
// It expects exactly one producer and one consumer.
// Only the producer may call Close.
type Queue[T any] struct {
	items chan T

	closed chan struct{}
	once   sync.Once // making sure not to close closed channel.
}

// New creates a queue holding at most capacity items.
// Capacity must be more than 0.
func New[T any](capacity uint) *Queue[T] {
	if capacity == 0 {
		panic("queue capacity cannot be 0")
	}

	return &Queue[T]{
		items:  make(chan T, capacity),
		closed: make(chan struct{}),
	}
}

// Push appends v, blocking while the queue is full.
// It never drops v: it either enqueues it or returns an error.
func (q *Queue[T]) Push(ctx context.Context, v T) error {
	if isClosed(q.closed) {
		return ErrQueueClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrQueueClosed
	case q.items <- v:
		return nil
	}
}

// Pop removes and returns the oldest item, blocking while the queue is empty.
// Once the queue is closed and drained, it returns [ErrEndOfStream].
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T

	// Items pushed before Close must still come out.
	select {
	case v := <-q.items:
		return v, nil
	default:
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case v := <-q.items:
		return v, nil
	case <-q.closed:
		select {
		case v := <-q.items:
			return v, nil
		default:
			return zero, ErrEndOfStream
		}
	}
}

// Close marks the end of the stream. Calling it more than once is a no-op.
func (q *Queue[T]) Close() {
	q.once.Do(func() { close(q.closed) })
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() uint { return uint(len(q.items)) }

// Cap returns the capacity given to [New].
func (q *Queue[T]) Cap() uint { return uint(cap(q.items)) }

func isClosed(c <-chan struct{}) bool {
	select {
	case <-c: // c will only fire at closed state.
		return true
	default:
		return false
	}
}
