// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import (
	"context"
	"sync"
)

// Blocking is a bounded multi-producer multi-consumer queue guarded by a
// mutex and two condition variables (not-full, not-empty), as spec'd for
// the runtime's "blocking" queue mode. It is safe under arbitrary
// producer and consumer counts — unlike the lock-free variants in this
// package, Blocking makes no SPSC/MPSC/SPMC distinction.
//
// FIFO is guaranteed across the combined stream of Push calls (unlike
// the lock-free variants, where interleaving across producers is
// arbitrary and only the caller-carried sequence number is canonical).
type Blocking[T any] struct {
	mu       sync.Mutex
	notFull  sync.Cond
	notEmpty sync.Cond
	buf      []T
	head     int
	count    int
	closed   bool
}

// NewBlocking creates a new mutex/cond-var bounded queue of the given
// capacity (no power-of-2 rounding is needed for this implementation).
func NewBlocking[T any](capacity int) *Blocking[T] {
	if capacity < 1 {
		panic("queue: capacity must be >= 1")
	}
	q := &Blocking[T]{buf: make([]T, capacity)}
	q.notFull.L = &q.mu
	q.notEmpty.L = &q.mu
	return q
}

// Push adds elem to the queue, blocking while the queue is full.
func (q *Blocking[T]) Push(ctx context.Context, elem T) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notFull.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == len(q.buf) && !q.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}

	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = elem
	q.count++
	q.notEmpty.Signal()
	return nil
}

// Pop removes and returns the oldest element, blocking while the queue is
// empty. Once Close has been called and the queue drained, Pop returns
// ErrClosed.
func (q *Blocking[T]) Pop(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		q.notEmpty.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, ErrClosed
	}

	elem := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.notFull.Signal()
	return elem, nil
}

// Close marks the queue closed and wakes every blocked Push/Pop call. See
// [Queue.Close].
func (q *Blocking[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Cap returns the queue capacity.
func (q *Blocking[T]) Cap() int {
	return len(q.buf)
}
