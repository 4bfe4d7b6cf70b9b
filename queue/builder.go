// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

// Mode selects the waiting strategy backing a queue.
type Mode int

const (
	// LockFree spins with an adaptive backoff (code.hybscloud.com/iox)
	// around a non-blocking FAA ring (code.hybscloud.com/atomix,
	// code.hybscloud.com/spin). Matches spec's "lock-free" queue mode.
	LockFree Mode = iota
	// Blocking parks on a mutex + condition variable pair. Matches
	// spec's "blocking" queue mode.
	Blocking
)

// Options configures queue construction and algorithm selection.
type Options struct {
	singleProducer bool
	singleConsumer bool
	mode           Mode
	capacity       int
}

// Builder creates queues with fluent configuration, mirroring the
// producer/consumer-cardinality selection code.hybscloud.com/lfq exposes,
// extended with a Mode axis for the blocking/lock-free choice the
// pipeline engine's [Policy] surfaces to callers.
//
// Example:
//
//	// Edge feeding a farm's shared input from a single upstream stage.
//	q := queue.Build[slot[int]](queue.New(1024).SingleProducer())
//
//	// Edge between two single-worker stages, blocking mode.
//	q := queue.Build[slot[int]](queue.New(1024).SingleProducer().SingleConsumer().WithMode(queue.Blocking))
type Builder struct {
	opts Options
}

// New creates a queue builder with the given capacity. Defaults to
// LockFree mode and the general MPMC algorithm (no cardinality
// constraint) until narrowed by SingleProducer/SingleConsumer/WithMode.
func New(capacity int) *Builder {
	if capacity < 1 {
		panic("queue: capacity must be >= 1")
	}
	return &Builder{opts: Options{capacity: capacity}}
}

// SingleProducer declares that only one goroutine will call Push.
func (b *Builder) SingleProducer() *Builder {
	b.opts.singleProducer = true
	return b
}

// SingleConsumer declares that only one goroutine will call Pop.
func (b *Builder) SingleConsumer() *Builder {
	b.opts.singleConsumer = true
	return b
}

// WithMode selects the waiting strategy. Default is LockFree.
func (b *Builder) WithMode(m Mode) *Builder {
	b.opts.mode = m
	return b
}

// Build constructs a Queue[T] with automatic algorithm selection.
//
// In Blocking mode, cardinality hints are ignored: [Blocking] is already
// safe for any producer/consumer count. In LockFree mode, the algorithm
// is chosen by cardinality:
//
//	SingleProducer + SingleConsumer -> LockFreeSPSC (Lamport ring)
//	SingleProducer only             -> LockFreeSPMC
//	SingleConsumer only             -> LockFreeMPSC
//	Neither                         -> LockFreeMPMC
//
// A LockFree capacity of 1 is rounded up to 2, the smallest ring the
// lock-free variants support.
func Build[T any](b *Builder) Queue[T] {
	if b.opts.mode == Blocking {
		return NewBlocking[T](b.opts.capacity)
	}
	capacity := b.opts.capacity
	if capacity < 2 {
		capacity = 2
	}
	switch {
	case b.opts.singleProducer && b.opts.singleConsumer:
		return NewLockFreeSPSC[T](capacity)
	case b.opts.singleProducer:
		return NewLockFreeSPMC[T](capacity)
	case b.opts.singleConsumer:
		return NewLockFreeMPSC[T](capacity)
	default:
		return NewLockFreeMPMC[T](capacity)
	}
}
