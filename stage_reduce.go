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

type reduceStage[T, A any] struct {
	policy   Policy
	window   int
	identity A
	combine  func(A, T) A
}

// Reduce builds a single-worker fold stage: the worker accumulates input
// values starting from identity via combine and, every window inputs (or
// at EOS with a non-empty accumulator), emits the accumulator at the
// window's last input sequence and resets to identity. window <= 0 means
// no chunk boundary — fold the entire stream to one output at EOS, the
// Go rendering of the "window=∞" scenario.
//
// combine must be associative for the result to match sequential
// execution when fed by an Ordering-Unordered upstream farm; this is not
// checked at runtime. A finite window additionally assumes its input
// arrives in generator order — feed Reduce from a single-worker stage or
// an Ordered parallel stage when window > 0 matters.
func Reduce[T, A any](policy Policy, window int, identity A, combine func(A, T) A) Stage {
	return &reduceStage[T, A]{policy: policy, window: window, identity: identity, combine: combine}
}

func (s *reduceStage[T, A]) workerCount() int { return 1 }

func (s *reduceStage[T, A]) inputType() reflect.Type  { return reflect.TypeFor[T]() }
func (s *reduceStage[T, A]) outputType() reflect.Type { return reflect.TypeFor[A]() }

func (s *reduceStage[T, A]) validate() error { return s.policy.validate() }

func (s *reduceStage[T, A]) compile(ctx context.Context, wg *sync.WaitGroup, _ *errCollector, in any, consumers int) any {
	inQ := in.(queue.Queue[slot[T]])
	outQ := buildQueue[slot[A]](s.policy, 1, consumers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.policy.registerThread(0)
		defer s.policy.deregisterThread(0)

		acc := s.identity
		count := 0
		empty := true
		var lastSeq int64

		emit := func() {
			_ = outQ.Push(ctx, itemSlot(acc, lastSeq))
			acc = s.identity
			count = 0
			empty = true
		}

		for {
			item, err := inQ.Pop(ctx)
			if err != nil {
				return
			}
			if item.isEOS() {
				if !empty {
					emit()
				}
				_ = outQ.Push(ctx, eosSlot[A]())
				outQ.Close()
				return
			}
			acc = s.combine(acc, item.val)
			count++
			empty = false
			lastSeq = item.seq
			if s.window > 0 && count == s.window {
				emit()
			}
		}
	}()
	return outQ
}
