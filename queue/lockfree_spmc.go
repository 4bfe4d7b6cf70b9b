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

// LockFreeSPMC is an FAA-based single-producer multi-consumer bounded
// queue. Consumers use FAA to blindly claim positions (SCQ-style),
// requiring 2n physical slots for capacity n.
//
// Use this variant for the edge feeding a farm/filter stage's shared
// input queue from a single upstream producer (the generator, or any
// other single-worker stage).
type LockFreeSPMC[T any] struct {
	_         pad
	head      atomix.Uint64 // Consumer index (FAA)
	_         pad
	tail      atomix.Uint64 // Producer index (single producer writes, but consumers read)
	_         pad
	threshold atomix.Int64
	_         pad
	closed    atomix.Bool
	_         pad
	buffer    []spmcSlot[T]
	capacity  uint64
	size      uint64
	mask      uint64
}


type spmcSlot[T any] struct {
	cycle atomix.Uint64
	data  T
	_     padShort
}

// NewLockFreeSPMC creates a new FAA-based SPMC queue.
// Capacity rounds up to the next power of 2.
func NewLockFreeSPMC[T any](capacity int) *LockFreeSPMC[T] {
	if capacity < 2 {
		panic("queue: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	size := n * 2

	q := &LockFreeSPMC[T]{
		buffer:   make([]spmcSlot[T], size),
		capacity: n,
		size:     size,
		mask:     size - 1,
	}
	q.threshold.StoreRelaxed(3*int64(n) - 1)
	for i := uint64(0); i < size; i++ {
		q.buffer[i].cycle.StoreRelaxed(i / n)
	}
	return q
}

// tryPush is single-producer only: the caller must guarantee at most one
// goroutine calls Push/tryPush concurrently.
func (q *LockFreeSPMC[T]) tryPush(elem T) error {
	tail := q.tail.LoadRelaxed()
	head := q.head.LoadAcquire()
	if tail >= head+q.capacity {
		return errWouldBlock
	}

	cycle := tail / q.capacity
	slot := &q.buffer[tail&q.mask]

	slotCycle := slot.cycle.LoadAcquire()
	if slotCycle != cycle {
		return errWouldBlock
	}

	slot.data = elem
	slot.cycle.StoreRelease(cycle + 1)
	q.tail.StoreRelaxed(tail + 1)
	q.threshold.StoreRelaxed(3*int64(q.capacity) - 1)
	return nil
}

func (q *LockFreeSPMC[T]) tryPop() (T, error) {
	if q.threshold.LoadRelaxed() < 0 {
		var zero T
		return zero, errWouldBlock
	}

	sw := spin.Wait{}
	for {
		myHead := q.head.AddAcqRel(1) - 1

		slot := &q.buffer[myHead&q.mask]
		expectedCycle := myHead/q.capacity + 1
		slotCycle := slot.cycle.LoadAcquire()

		if slotCycle == expectedCycle {
			elem := slot.data
			var zero T
			slot.data = zero
			nextEnqCycle := (myHead + q.size) / q.capacity
			slot.cycle.StoreRelease(nextEnqCycle)
			return elem, nil
		}

		if int64(slotCycle) < int64(expectedCycle) {
			nextEnqCycle := (myHead + q.size) / q.capacity
			slot.cycle.CompareAndSwapAcqRel(slotCycle, nextEnqCycle)

			tail := q.tail.LoadRelaxed()
			if tail <= myHead+1 {
				q.catchup(tail, myHead+1)
				q.threshold.AddAcqRel(-1)
				var zero T
				return zero, errWouldBlock
			}
			if q.threshold.AddAcqRel(-1) <= 0 {
				var zero T
				return zero, errWouldBlock
			}
		}
		sw.Once()
	}
}

func (q *LockFreeSPMC[T]) catchup(tail, head uint64) {
	for tail < head {
		if q.tail.CompareAndSwapRelaxed(tail, head) {
			break
		}
		tail = q.tail.LoadRelaxed()
		head = q.head.LoadRelaxed()
	}
}

// Push adds elem to the queue. Must be called by a single producer
// goroutine at a time.
func (q *LockFreeSPMC[T]) Push(ctx context.Context, elem T) error {
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

// Pop removes and returns the oldest element (safe for any number of
// consumers).
func (q *LockFreeSPMC[T]) Pop(ctx context.Context) (T, error) {
	backoff := iox.Backoff{}
	for {
		elem, err := q.tryPop()
		if err == nil {
			return elem, nil
		}
		if !isWouldBlock(err) {
			var zero T
			return zero, err
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

// Close marks the queue closed. See [Queue.Close].
func (q *LockFreeSPMC[T]) Close() {
	q.closed.StoreRelease(true)
}

// Cap returns the queue capacity.
func (q *LockFreeSPMC[T]) Cap() int {
	return int(q.capacity)
}
