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

// LockFreeMPMC is an FAA-based multi-producer multi-consumer bounded queue.
//
// Based on the SCQ (Scalable Circular Queue) algorithm by Nikolaev (DISC
// 2019). Uses Fetch-And-Add to blindly increment position counters,
// requiring 2n physical slots for capacity n. This approach scales better
// under high contention than CAS-based alternatives.
//
// Cycle-based slot validation provides ABA safety: each slot tracks which
// "cycle" (round) it belongs to via cycle = position / capacity.
type LockFreeMPMC[T any] struct {
	_         pad
	tail      atomix.Uint64 // Producer index (FAA)
	_         pad
	head      atomix.Uint64 // Consumer index (FAA)
	_         pad
	threshold atomix.Int64 // Livelock prevention for dequeue
	_         pad
	closed    atomix.Bool
	_         pad
	draining  atomix.Bool // Drain mode: skip threshold check
	_         pad
	buffer    []mpmcSlot[T]
	capacity  uint64 // n (usable capacity)
	size      uint64 // 2n (physical slots)
	mask      uint64 // 2n - 1
}

type mpmcSlot[T any] struct {
	cycle atomix.Uint64 // Round number for this slot
	data  T
	_     padShort
}

// NewLockFreeMPMC creates a new FAA-based MPMC queue.
// Capacity rounds up to the next power of 2.
func NewLockFreeMPMC[T any](capacity int) *LockFreeMPMC[T] {
	if capacity < 2 {
		panic("queue: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	size := n * 2

	q := &LockFreeMPMC[T]{
		buffer:   make([]mpmcSlot[T], size),
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

// tryPush is the non-blocking enqueue primitive. Returns errWouldBlock if
// the queue is full.
func (q *LockFreeMPMC[T]) tryPush(elem T) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		head := q.head.LoadAcquire()
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
			q.threshold.StoreRelaxed(3*int64(q.capacity) - 1)
			return nil
		}
		if int64(slotCycle) < int64(expectedCycle) {
			return errWouldBlock
		}
		sw.Once()
	}
}

// tryPop is the non-blocking dequeue primitive. Returns (zero, errWouldBlock)
// if the queue is empty.
func (q *LockFreeMPMC[T]) tryPop() (T, error) {
	if !q.draining.LoadAcquire() && q.threshold.LoadRelaxed() < 0 {
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

			tail := q.tail.LoadAcquire()
			if tail <= myHead+1 {
				q.catchup(tail, myHead+1)
				q.threshold.AddAcqRel(-1)
				var zero T
				return zero, errWouldBlock
			}
			if q.threshold.AddAcqRel(-1) <= 0 && !q.draining.LoadAcquire() {
				var zero T
				return zero, errWouldBlock
			}
		}
		sw.Once()
	}
}

func (q *LockFreeMPMC[T]) catchup(tail, head uint64) {
	for tail < head {
		if q.tail.CompareAndSwapRelaxed(tail, head) {
			break
		}
		tail = q.tail.LoadRelaxed()
		head = q.head.LoadRelaxed()
	}
}

// Push adds elem to the queue, spinning with an adaptive backoff until
// space is available, ctx is done, or the queue is closed.
func (q *LockFreeMPMC[T]) Push(ctx context.Context, elem T) error {
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

// Pop removes and returns the oldest element, spinning with an adaptive
// backoff until an element is available. Once Close has been called and
// the queue is drained, Pop returns ErrClosed.
func (q *LockFreeMPMC[T]) Pop(ctx context.Context) (T, error) {
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
			// One last attempt: a producer may have published between
			// our failed tryPop and observing closed.
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

// Drain signals that no more pushes will occur, letting Pop skip the
// livelock-prevention threshold check so consumers can drain remaining
// items without producer activity resetting it.
func (q *LockFreeMPMC[T]) Drain() {
	q.draining.StoreRelease(true)
}

// Close marks the queue closed. See [Queue.Close].
func (q *LockFreeMPMC[T]) Close() {
	q.closed.StoreRelease(true)
	q.draining.StoreRelease(true)
}

// Cap returns the queue capacity.
func (q *LockFreeMPMC[T]) Cap() int {
	return int(q.capacity)
}
