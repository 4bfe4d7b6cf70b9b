// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import "code.hybscloud.com/spipe/queue"

// buildQueue constructs the output queue a stage owns, sized and moded by
// that stage's own Policy. producers/consumers are cardinality hints —
// the number of goroutines that will Push (this stage's own worker
// count) and Pop (the next stage's worker count, or 1 for a terminal
// consumer) — letting the builder pick the cheapest correct lock-free
// algorithm instead of always falling back to the general MPMC ring.
func buildQueue[T any](p Policy, producers, consumers int) queue.Queue[T] {
	b := queue.New(p.QueueSize).WithMode(p.QueueMode.toQueueMode())
	if producers == 1 {
		b = b.SingleProducer()
	}
	if consumers == 1 {
		b = b.SingleConsumer()
	}
	return queue.Build[T](b)
}
