// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package queue provides the bounded FIFO queues that sit on every edge
// of a compiled pipeline graph.
//
// # Quick Start
//
//	// Lock-free, algorithm chosen by cardinality:
//	q := queue.Build[int](queue.New(1024).SingleProducer().SingleConsumer())
//
//	// Blocking mode, safe for any cardinality:
//	q := queue.Build[int](queue.New(1024).WithMode(queue.Blocking))
//
// Direct constructors are also available when the algorithm is known
// ahead of time: [NewLockFreeSPSC], [NewLockFreeMPSC], [NewLockFreeSPMC],
// [NewLockFreeMPMC], [NewBlocking].
//
// # Blocking vs. LockFree
//
// Both modes present the same blocking [Queue] interface — Push blocks
// until space is available, Pop blocks until an element is available —
// but differ in how they wait:
//
//	Blocking: mutex + sync.Cond, OS-scheduled parking.
//	LockFree: Lamport ring (SPSC) or FAA/CAS ring (SCQ algorithm, other
//	          cardinalities) plus an iox.Backoff-driven wait loop around
//	          the non-blocking primitive.
//
// LockFree scales better under contention; Blocking has no busy-wait
// footprint and is preferable for low-throughput edges.
//
// # Capacity
//
// LockFree variants round capacity up to the next power of 2 (SCQ
// requires this for its cycle arithmetic); [Build] rounds a capacity of 1
// up to 2. Blocking uses the exact requested capacity.
//
// # Closing
//
// Close wakes every blocked Push/Pop call. After Close, Push always
// returns [ErrClosed]; Pop continues to drain any buffered elements and
// only then returns ErrClosed. The pipeline engine calls Close on a
// stage's output queue only after that stage's EOS protocol (all
// producers accounted for) has completed, so no element is ever lost to
// a premature Close. The one exception is an Iteration stage whose body
// fails: it forwards EOS and closes its output at once, and results its
// workers push after that are refused.
package queue
