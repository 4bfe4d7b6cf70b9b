// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import (
	"context"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// LockFreeMPSC is an FAA-based multi-producer single-consumer bounded
// queue. Producers use FAA to blindly claim positions (SCQ-style),
// requiring 2n physical slots for capacity n.
//
// Use this variant for the edge between a farm/filter stage's N workers
// and a single-worker stage (or the reorder buffer) downstream of them.
type LockFreeMPSC[T any] struct {
	_        pad
	head     atomix.Uint64 // Consumer index (single consumer writes, but producers read)
	_        pad
	tail     atomix.Uint64 // Producer index (FAA)
	_        pad
	closed   atomix.Bool
	_        pad
	draining atomix.Bool
	_        pad
	buffer   []mpscSlot[T]
	capacity uint64
	size     uint64
	mask     uint64
}

type mpscSlot[T any] struct {
	cycle atomix.Uint64
	data  T
	_     padShort
}

// NewLockFreeMPSC creates a new FAA-based MPSC queue.
// Capacity rounds up to the next power of 2.
func NewLockFreeMPSC[T any](capacity int) *LockFreeMPSC[T] {
	if capacity < 2 {
		panic("queue: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	size := n * 2

	q := &LockFreeMPSC[T]{
		buffer:   make([]mpscSlot[T], size),
		capacity: n,
		size:     size,
		mask:     size - 1,
	}
	for i := uint64(0); i < size; i++ {
		q.buffer[i].cycle.StoreRelaxed(i / n)
	}
	return q
}

func (q *LockFreeMPSC[T]) tryPush(elem T) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		head := q.head.LoadRelaxed()
		if tail >= head+q.capacity {
			return errWouldBlock
		}

		myTail := q.tail.AddAcqRel(1) - 1

		slot := &q.buffer[myTail&q.mask]
		expectedCycle := myTail / q.capacity

		slotCycle := slot.cycle.LoadAcquire()
		if slotCycle == expectedCycle {
			slot.data = elem
			slot.cycle.StoreRelease(expectedCycle + 1)
			return nil
		}
		if int64(slotCycle) < int64(expectedCycle) {
			return errWouldBlock
		}
		sw.Once()
	}
}

// tryPop is single-consumer only: the caller must guarantee at most one
// goroutine calls Pop/tryPop concurrently.
func (q *LockFreeMPSC[T]) tryPop() (T, error) {
	head := q.head.LoadRelaxed()
	cycle := head / q.capacity
	slot := &q.buffer[head&q.mask]

	slotCycle := slot.cycle.LoadAcquire()
	if slotCycle != cycle+1 {
		var zero T
		return zero, errWouldBlock
	}

	elem := slot.data
	var zero T
	slot.data = zero
	nextEnqCycle := (head + q.size) / q.capacity
	slot.cycle.StoreRelease(nextEnqCycle)
	q.head.StoreRelaxed(head + 1)
	return elem, nil
}

// Push adds elem to the queue (safe for any number of producers).
func (q *LockFreeMPSC[T]) Push(ctx context.Context, elem T) error {
	if q.closed.LoadAcquire() {
		return ErrClosed
	}
	backoff := iox.Backoff{}
	for {
		err := q.tryPush(elem)
		if err == nil {
			return nil
		}
		if !isWouldBlock(err) {
			return err
		}
		if q.closed.LoadAcquire() {
			return ErrClosed
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		backoff.Wait()
	}
}

// Pop removes and returns the oldest element. Must be called by a single
// consumer goroutine at a time.
func (q *LockFreeMPSC[T]) Pop(ctx context.Context) (T, error) {
	backoff := iox.Backoff{}
	for {
		elem, err := q.tryPop()
		if err == nil {
			return elem, nil
		}
		if q.closed.LoadAcquire() {
			if elem, err = q.tryPop(); err == nil {
				return elem, nil
			}
			var zero T
			return zero, ErrClosed
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			var zero T
			return zero, ctxErr
		}
		backoff.Wait()
	}
}

// Drain signals that no more pushes will occur.
func (q *LockFreeMPSC[T]) Drain() {
	q.draining.StoreRelease(true)
}

// Close marks the queue closed. See [Queue.Close].
func (q *LockFreeMPSC[T]) Close() {
	q.closed.StoreRelease(true)
	q.draining.StoreRelease(true)
}

// Cap returns the queue capacity.
func (q *LockFreeMPSC[T]) Cap() int {
	return int(q.capacity)
}
