// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"code.hybscloud.com/spipe/queue"
)

type farmStage[S, T any] struct {
	policy Policy
	f      func(S) T
}

// Farm builds an N-worker stage (N = policy.NumThreads) sharing one input
// queue. Each worker pops an item, applies f, and pushes the result to a
// shared output queue; workers race, so output order is not guaranteed
// unless policy.Ordering is Ordered, in which case a reorder buffer is
// spliced in before the stage's output queue is exposed to its neighbour.
func Farm[S, T any](policy Policy, f func(S) T) Stage {
	return &farmStage[S, T]{policy: policy, f: f}
}

func (s *farmStage[S, T]) workerCount() int {
	if s.policy.NumThreads < 1 {
		return 1
	}
	return s.policy.NumThreads
}

func (s *farmStage[S, T]) inputType() reflect.Type  { return reflect.TypeFor[S]() }
func (s *farmStage[S, T]) outputType() reflect.Type { return reflect.TypeFor[T]() }

func (s *farmStage[S, T]) validate() error { return s.policy.validate() }

func (s *farmStage[S, T]) compile(ctx context.Context, wg *sync.WaitGroup, _ *errCollector, in any, consumers int) any {
	n := s.workerCount()
	inQ := in.(queue.Queue[slot[S]])
	// Unordered workers push straight to outQ; ordered ones push to rawQ
	// and only the reorderer pushes to outQ.
	producers := 1
	if s.policy.Ordering == Unordered {
		producers = n
	}
	outQ := buildQueue[slot[T]](s.policy, producers, consumers)

	transform := func(item slot[S]) (slot[T], bool) {
		return itemSlot(s.f(item.val), item.seq), true
	}

	if s.policy.Ordering == Unordered {
		spawnFarmWorkers(ctx, wg, s.policy, n, inQ, outQ, transform)
		return outQ
	}

	rawQ := buildQueue[slot[T]](s.policy, n, 1)
	spawnFarmWorkers(ctx, wg, s.policy, n, inQ, rawQ, transform)
	spawnReorderer(ctx, wg, rawQ, outQ)
	return outQ
}

// spawnFarmWorkers runs the shared N-worker farm/filter/iteration EOS
// protocol: n goroutines pop from in, apply transform to each real item
// and push the result to out when transform's second return is true, and
// cooperate over a shared nend counter on EOS so exactly one of them
// re-emits EOS downstream. transform returning false drops the item
// (unordered Filter); it otherwise always returns true (Farm, Iteration,
// and ordered Filter, which turns a drop into an explicit hole instead).
func spawnFarmWorkers[S, T any](ctx context.Context, wg *sync.WaitGroup, policy Policy, n int, in queue.Queue[slot[S]], out queue.Queue[slot[T]], transform func(slot[S]) (slot[T], bool)) {
	eos := newFarmEOS(n)
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			policy.registerThread(workerID)
			defer policy.deregisterThread(workerID)
			for {
				item, err := in.Pop(ctx)
				closed := errors.Is(err, queue.ErrClosed)
				if err != nil && !closed {
					return
				}
				if closed || item.isEOS() {
					// The upstream closes in right after pushing EOS, so the
					// echo can be refused and a sibling can find in closed
					// and drained instead: that counts as its observation.
					if !closed {
						_ = in.Push(ctx, item)
					}
					if _, isLast := eos.observe(); isLast {
						_ = out.Push(ctx, eosSlot[T]())
						out.Close()
					}
					return
				}
				if result, push := transform(item); push {
					_ = out.Push(ctx, result)
				}
			}
		}(w)
	}
}

// spawnReorderer runs a dedicated single-goroutine reorder-buffer loop:
// pop from in, feed each item to a [reorderBuffer], and push every slot
// it makes emittable to out; on EOS, flush the holding set, push EOS, and
// exit.
func spawnReorderer[T any](ctx context.Context, wg *sync.WaitGroup, in, out queue.Queue[slot[T]]) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := newReorderBuffer[T]()
		for {
			item, err := in.Pop(ctx)
			if err != nil {
				return
			}
			if item.isEOS() {
				for _, ready := range buf.flush() {
					_ = out.Push(ctx, ready)
				}
				_ = out.Push(ctx, eosSlot[T]())
				out.Close()
				return
			}
			for _, ready := range buf.push(item.seq, item.val, item.isHole()) {
				_ = out.Push(ctx, ready)
			}
		}
	}()
}
