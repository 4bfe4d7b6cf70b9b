// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package queue provides bounded FIFO queues for stage-to-stage hand-off
// inside a compiled pipeline graph.
//
// Two independent axes select a concrete implementation:
//
//   - producer/consumer cardinality: SPSC, MPSC, SPMC or MPMC.
//   - waiting strategy: Blocking (mutex + condition variables) or
//     LockFree (FAA-based SCQ ring, ported from code.hybscloud.com/lfq).
//
// Every queue in this package carries a [Queue] element of the caller's
// choosing — in practice the pipeline engine instantiates these with its
// own tagged slot type, never a bare payload, so that the sequence number
// and end-of-stream markers travel with the value across every edge of
// the graph.
package queue

import "context"

// Producer is the blocking enqueue half of a bounded queue.
//
// Push blocks (or, in lock-free mode, spins) until capacity allows the
// element to be stored, ctx is done, or the queue is closed.
type Producer[T any] interface {
	// Push adds elem to the queue. It blocks until space is available,
	// returns ctx.Err() if ctx is cancelled first, and returns
	// ErrClosed if the queue has been closed.
	Push(ctx context.Context, elem T) error
}

// Consumer is the blocking dequeue half of a bounded queue.
type Consumer[T any] interface {
	// Pop removes and returns the oldest available element. It blocks
	// until an element is available, ctx is done, or the queue is
	// closed and drained.
	Pop(ctx context.Context) (T, error)
}

// Queue is the combined producer/consumer interface every variant in this
// package satisfies.
//
// The interface intentionally excludes a length method: accurate counts
// in the lock-free variants require expensive cross-core synchronization,
// and the engine never needs one — backpressure is observed entirely
// through Push/Pop blocking.
type Queue[T any] interface {
	Producer[T]
	Consumer[T]
	// Cap returns the queue's usable capacity.
	Cap() int
	// Close marks the queue as closed. Blocked or future Push calls
	// return ErrClosed; Pop continues to drain any buffered elements
	// and then also returns ErrClosed.
	Close()
}

// pad is cache line padding to prevent false sharing between
// hot atomic fields in the lock-free variants.
type pad [64]byte

// padShort pads a slot to a full cache line after an 8-byte cycle field.
type padShort [64 - 8]byte

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
