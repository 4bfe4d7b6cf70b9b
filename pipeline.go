// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package spipe implements a composable stream-parallel pipeline runtime:
// generator, transform, filter, farm, reduce and sink stages wired by
// bounded queues, with an execution Policy governing thread count, queue
// size, queue waiting strategy, and output ordering per stage.
package spipe

import (
	"context"
	"reflect"
	"sync"

	"code.hybscloud.com/spipe/queue"
)

// Run drives a pipeline to completion: generator is called repeatedly from
// a dedicated goroutine, its (value, true) results pushed downstream at
// increasing sequence numbers, and a single EOS pushed once it returns
// (_, false). stages is the pipeline body; the last stage must be built by
// [Sink] — nothing pops the last stage's output otherwise, and the
// pipeline deadlocks once that queue fills.
//
// Run blocks until every worker goroutine it spawned, directly or via a
// stage's compile, has exited. It returns the first configuration error
// found (before any goroutine is spawned) or the join of every
// stage-function error recorded during the run.
func Run[S any](ctx context.Context, policy Policy, generator func() (S, bool), stages ...Stage) error {
	stages = flattenStages(stages)
	if err := policy.validate(); err != nil {
		return err
	}
	if err := validateChain(reflect.TypeFor[S](), 1, stages); err != nil {
		return err
	}

	var wg sync.WaitGroup
	ec := &errCollector{}

	headConsumers := 1
	if len(stages) > 0 {
		headConsumers = stages[0].workerCount()
	}
	headQ := buildQueue[slot[S]](policy, 1, headConsumers)
	spawnGenerator(ctx, &wg, policy, headQ, generator)

	compileChain(ctx, &wg, ec, reflect.TypeFor[S](), headQ, 1, stages)
	wg.Wait()

	return ec.join()
}

// RunReduce drives a pipeline whose last stage is built by [Reduce] and
// returns its final accumulator instead of requiring a [Sink]. If the
// Reduce stage has a finite window and therefore emits more than one
// chunk, RunReduce returns the last chunk emitted before EOS — the fold
// result for the common window<=0 case, and a defined (if partial) answer
// for the windowed case.
func RunReduce[S, A any](ctx context.Context, policy Policy, generator func() (S, bool), stages ...Stage) (A, error) {
	var zero A
	stages = flattenStages(stages)
	if err := policy.validate(); err != nil {
		return zero, err
	}
	if len(stages) == 0 {
		return zero, ErrDanglingStage
	}
	if err := validateChain(reflect.TypeFor[S](), 1, stages); err != nil {
		return zero, err
	}
	switch last := stages[len(stages)-1].outputType(); {
	case last == nil:
		return zero, ErrDanglingStage
	case last != reflect.TypeFor[A]():
		return zero, ErrStageTypeMismatch
	}

	var wg sync.WaitGroup
	ec := &errCollector{}

	headQ := buildQueue[slot[S]](policy, 1, stages[0].workerCount())
	spawnGenerator(ctx, &wg, policy, headQ, generator)

	out, outType := compileChain(ctx, &wg, ec, reflect.TypeFor[S](), headQ, 1, stages)
	if outType == nil {
		invariantViolation("RunReduce's stage list must end in a non-terminal stage (e.g. Reduce)")
	}

	outQ, ok := out.(queue.Queue[slot[A]])
	if !ok {
		invariantViolation("RunReduce's final stage output type does not match its type parameter A")
	}

	result := zero
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			item, err := outQ.Pop(ctx)
			if err != nil {
				return
			}
			if item.isEOS() {
				return
			}
			if item.isItem() {
				result = item.val
			}
		}
	}()

	wg.Wait()
	if err := ec.join(); err != nil {
		return zero, err
	}
	return result, nil
}

// spawnGenerator runs generator on its own goroutine, assigning each
// produced value the next sequence number and pushing a single EOS once
// generator reports exhaustion.
func spawnGenerator[S any](ctx context.Context, wg *sync.WaitGroup, policy Policy, out queue.Queue[slot[S]], generator func() (S, bool)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		policy.registerThread(0)
		defer policy.deregisterThread(0)
		var seq int64
		for {
			val, ok := generator()
			if !ok {
				_ = out.Push(ctx, eosSlot[S]())
				out.Close()
				return
			}
			_ = out.Push(ctx, itemSlot(val, seq))
			seq++
		}
	}()
}
