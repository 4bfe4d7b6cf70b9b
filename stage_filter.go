// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import (
	"context"
	"reflect"
	"sync"

	"code.hybscloud.com/spipe/queue"
)

type filterStage[T any] struct {
	policy Policy
	pred   func(T) bool
}

// Keep builds an N-worker predicate stage (N = policy.NumThreads). In
// Unordered mode a worker simply drops items the predicate rejects,
// exactly like Farm but conditionally pushing. In Ordered mode a worker
// instead emits an explicit hole at the item's sequence for a rejected
// item, and a reorder buffer suppresses holes while restoring order,
// renumbering output sequences to stay contiguous across the gaps.
func Keep[T any](policy Policy, pred func(T) bool) Stage {
	return &filterStage[T]{policy: policy, pred: pred}
}

func (s *filterStage[T]) workerCount() int {
	if s.policy.NumThreads < 1 {
		return 1
	}
	return s.policy.NumThreads
}

func (s *filterStage[T]) inputType() reflect.Type  { return reflect.TypeFor[T]() }
func (s *filterStage[T]) outputType() reflect.Type { return reflect.TypeFor[T]() }

func (s *filterStage[T]) validate() error { return s.policy.validate() }

func (s *filterStage[T]) compile(ctx context.Context, wg *sync.WaitGroup, _ *errCollector, in any, consumers int) any {
	n := s.workerCount()
	inQ := in.(queue.Queue[slot[T]])
	// Unordered workers push straight to outQ; ordered ones push to rawQ
	// and only the reorderer pushes to outQ.
	producers := 1
	if s.policy.Ordering == Unordered {
		producers = n
	}
	outQ := buildQueue[slot[T]](s.policy, producers, consumers)

	if s.policy.Ordering == Unordered {
		transform := func(item slot[T]) (slot[T], bool) {
			if !s.pred(item.val) {
				return slot[T]{}, false
			}
			return itemSlot(item.val, item.seq), true
		}
		spawnFarmWorkers(ctx, wg, s.policy, n, inQ, outQ, transform)
		return outQ
	}

	rawQ := buildQueue[slot[T]](s.policy, n, 1)
	transform := func(item slot[T]) (slot[T], bool) {
		if s.pred(item.val) {
			return itemSlot(item.val, item.seq), true
		}
		return holeSlot[T](item.seq), true
	}
	spawnFarmWorkers(ctx, wg, s.policy, n, inQ, rawQ, transform)
	spawnReorderer(ctx, wg, rawQ, outQ)
	return outQ
}
