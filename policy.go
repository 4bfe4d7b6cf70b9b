// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import "code.hybscloud.com/spipe/queue"

// QueueMode selects the waiting strategy for every queue edge a Policy
// governs, mirroring [queue.Mode].
type QueueMode int

const (
	// LockFree backs every edge with a lock-free ring: Lamport SPSC for a
	// single-producer single-consumer edge, an FAA-based SCQ ring otherwise.
	LockFree QueueMode = iota
	// Blocking backs every edge with a mutex + condition-variable queue.
	Blocking
)

func (m QueueMode) toQueueMode() queue.Mode {
	if m == Blocking {
		return queue.Blocking
	}
	return queue.LockFree
}

// Ordering selects whether parallel stages preserve generator order at
// their output.
type Ordering int

const (
	// Unordered lets farm/filter/iteration workers deliver out of order.
	Unordered Ordering = iota
	// Ordered inserts a reorder buffer after every parallel stage.
	Ordered
)

// Policy is an execution-policy value object: thread count, queue size,
// queue waiting strategy, and ordering mode. A Policy is copied by value
// into every compiled stage, so mutating the original after construction
// has begun never affects a running pipeline — this is how "immutable
// once construction starts" is enforced without a lock.
type Policy struct {
	NumThreads int
	QueueSize  int
	QueueMode  QueueMode
	Ordering   Ordering

	// RegisterThread and DeregisterThread are invoked by each worker on
	// entry/exit with its zero-based worker index. Both default to
	// no-ops; reserved for future NUMA/affinity instrumentation.
	RegisterThread   func(workerID int)
	DeregisterThread func(workerID int)
}

// NewPolicy returns a Policy with one worker thread, queue size 64,
// lock-free queues, and unordered delivery.
func NewPolicy() Policy {
	return Policy{
		NumThreads: 1,
		QueueSize:  64,
		QueueMode:  LockFree,
		Ordering:   Unordered,
	}
}

// SetConcurrencyDegree sets the number of worker threads a parallel stage
// built from this Policy will run.
func (p *Policy) SetConcurrencyDegree(n int) *Policy {
	p.NumThreads = n
	return p
}

// SetQueueSize sets the bounded capacity of every queue edge built from
// this Policy.
func (p *Policy) SetQueueSize(q int) *Policy {
	p.QueueSize = q
	return p
}

// EnableOrdering makes parallel stages built from this Policy restore
// generator order at their output via a reorder buffer.
func (p *Policy) EnableOrdering() *Policy {
	p.Ordering = Ordered
	return p
}

// DisableOrdering lets parallel stages built from this Policy deliver out
// of generator order.
func (p *Policy) DisableOrdering() *Policy {
	p.Ordering = Unordered
	return p
}

// SetQueueMode selects the waiting strategy for every queue edge built
// from this Policy.
func (p *Policy) SetQueueMode(m QueueMode) *Policy {
	p.QueueMode = m
	return p
}

func (p Policy) validate() error {
	if p.NumThreads < 1 {
		return ErrInvalidThreadCount
	}
	if p.QueueSize < 1 {
		return ErrInvalidQueueSize
	}
	return nil
}

func (p Policy) registerThread(workerID int) {
	if p.RegisterThread != nil {
		p.RegisterThread(workerID)
	}
}

func (p Policy) deregisterThread(workerID int) {
	if p.DeregisterThread != nil {
		p.DeregisterThread(workerID)
	}
}
