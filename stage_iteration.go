// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/spipe/queue"
)

type iterationStage[T any] struct {
	policy Policy
	body   func(T) (T, error)
	pred   func(T) bool
}

// Iteration builds an N-worker stage (N = policy.NumThreads, farm-style)
// that repeatedly applies body to a value until pred holds, then emits
// it at the item's original sequence. body may return an error; unlike
// Map/Farm/Filter/Reduce, whose user functions cannot fail, a worker that
// receives one stores it in the shared error slot and forwards EOS
// downstream immediately rather than waiting for the normal nend count to
// reach N. Two or more workers can hit an error on different in-flight
// items at the same time, so the forward itself is guarded by a CAS'd
// once-only flag shared across the stage's workers: whichever of the
// normal nend-complete path or an erroring worker gets there first is the
// only one that ever pushes the downstream EOS and closes the output
// queue.
func Iteration[T any](policy Policy, body func(T) (T, error), pred func(T) bool) Stage {
	return &iterationStage[T]{policy: policy, body: body, pred: pred}
}

func (s *iterationStage[T]) workerCount() int {
	if s.policy.NumThreads < 1 {
		return 1
	}
	return s.policy.NumThreads
}

func (s *iterationStage[T]) inputType() reflect.Type  { return reflect.TypeFor[T]() }
func (s *iterationStage[T]) outputType() reflect.Type { return reflect.TypeFor[T]() }

func (s *iterationStage[T]) validate() error { return s.policy.validate() }

func (s *iterationStage[T]) compile(ctx context.Context, wg *sync.WaitGroup, ec *errCollector, in any, consumers int) any {
	n := s.workerCount()
	inQ := in.(queue.Queue[slot[T]])
	// Unordered workers push straight to outQ; ordered ones push to rawQ
	// and only the reorderer pushes to outQ.
	producers := 1
	if s.policy.Ordering == Unordered {
		producers = n
	}
	outQ := buildQueue[slot[T]](s.policy, producers, consumers)
	errSlot := ec.newSlot()

	run := func(item slot[T]) (slot[T], bool) {
		val := item.val
		for !s.pred(val) {
			next, err := s.body(val)
			if err != nil {
				errSlot.trySet(err)
				return slot[T]{}, false
			}
			val = next
		}
		return itemSlot(val, item.seq), true
	}

	if s.policy.Ordering == Unordered {
		spawnIterationWorkers(ctx, wg, s.policy, n, inQ, outQ, run, errSlot)
		return outQ
	}

	rawQ := buildQueue[slot[T]](s.policy, n, 1)
	spawnIterationWorkers(ctx, wg, s.policy, n, inQ, rawQ, run, errSlot)
	spawnReorderer(ctx, wg, rawQ, outQ)
	return outQ
}

// spawnIterationWorkers mirrors spawnFarmWorkers but also short-circuits
// to a direct downstream EOS push when run signals a stage-function
// error (reported by run returning push=false with errSlot already set).
// forwarded guards that push (and the following Close) so that exactly
// one of the N workers performs it, whether it is the worker that drives
// the normal nend count to N or the first of possibly several workers to
// hit a concurrent body error. A worker that hits an error keeps popping
// its input until the upstream EOS, so upstream producers are never left
// blocked on a full queue; results pushed after the forward are refused
// by the closed output queue.
func spawnIterationWorkers[T any](ctx context.Context, wg *sync.WaitGroup, policy Policy, n int, in, out queue.Queue[slot[T]], run func(slot[T]) (slot[T], bool), errs *errSlot) {
	eos := newFarmEOS(n)
	var forwarded atomic.Bool
	forwardEOS := func() {
		if forwarded.CompareAndSwap(false, true) {
			_ = out.Push(ctx, eosSlot[T]())
			out.Close()
		}
	}
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
					// As in spawnFarmWorkers: a closed, drained input counts
					// as this worker's EOS observation.
					if !closed {
						_ = in.Push(ctx, item)
					}
					if _, isLast := eos.observe(); isLast {
						forwardEOS()
					}
					return
				}
				result, push := run(item)
				if !push {
					if errs.load() != nil {
						forwardEOS()
					}
					continue
				}
				_ = out.Push(ctx, result)
			}
		}(w)
	}
}
