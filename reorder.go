// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import "container/heap"

// reorderItem is one pending slot held by a [reorderBuffer], keyed by its
// original sequence for heap ordering.
type reorderItem[T any] struct {
	val  T
	seq  int64
	hole bool
}

// reorderHeap is a container/heap min-heap over reorderItem keyed by seq,
// replacing a linear-scan holding vector with an O(log n) insert/pop
// structure.
type reorderHeap[T any] []reorderItem[T]

func (h reorderHeap[T]) Len() int            { return len(h) }
func (h reorderHeap[T]) Less(i, j int) bool  { return h[i].seq < h[j].seq }
func (h reorderHeap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *reorderHeap[T]) Push(x any)         { *h = append(*h, x.(reorderItem[T])) }
func (h *reorderHeap[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// reorderBuffer restores generator order after a parallel stage. It holds
// out-of-order items in a min-heap keyed by their original sequence and
// releases a contiguous prefix, renumbering output sequences through
// order as it goes — a no-op renumbering when no holes occur (farm,
// iteration), and a gap-closing renumbering when a dropped item leaves a
// hole behind (filter).
//
// Memory bound: the heap never holds more than the upstream worker count
// times the queue capacity feeding it, since a worker can be at most one
// queue-capacity's worth of items ahead of current before it blocks on a
// full output queue.
type reorderBuffer[T any] struct {
	h       reorderHeap[T]
	current int64 // next input sequence expected
	order   int64 // next output sequence to assign
}

func newReorderBuffer[T any]() *reorderBuffer[T] {
	return &reorderBuffer[T]{}
}

// push inserts a newly arrived (possibly out-of-order) item and returns
// every slot[T] the insertion makes emittable, in emission order.
func (r *reorderBuffer[T]) push(seq int64, val T, hole bool) []slot[T] {
	heap.Push(&r.h, reorderItem[T]{val: val, seq: seq, hole: hole})
	return r.drain()
}

func (r *reorderBuffer[T]) drain() []slot[T] {
	var out []slot[T]
	for len(r.h) > 0 && r.h[0].seq == r.current {
		it := heap.Pop(&r.h).(reorderItem[T])
		r.current++
		if !it.hole {
			out = append(out, itemSlot(it.val, r.order))
			r.order++
		}
	}
	return out
}

// flush releases the whole holding set in sequence order — called once
// EOS arrives. Sequences that never arrived (an upstream that drops items
// without leaving a hole, such as an unordered filter) are skipped rather
// than waited for.
func (r *reorderBuffer[T]) flush() []slot[T] {
	var out []slot[T]
	for len(r.h) > 0 {
		it := heap.Pop(&r.h).(reorderItem[T])
		r.current = it.seq + 1
		if !it.hole {
			out = append(out, itemSlot(it.val, r.order))
			r.order++
		}
	}
	return out
}

// pending reports the current holding-set size, for the memory-bound
// property.
func (r *reorderBuffer[T]) pending() int {
	return len(r.h)
}
