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

type sinkStage[T any] struct {
	policy Policy
	f      func(T)
}

// Sink builds the terminal consumer: a single goroutine that pops until
// EOS and applies f to every delivered value. When policy.Ordering is
// Ordered, it runs a reorder-buffer pass inline against its own input
// before calling f, restoring generator order at the very end of the
// pipeline even if no upstream stage already did.
//
// A Sink must be the last element of a Run call's stage list; nothing
// may follow it.
func Sink[T any](policy Policy, f func(T)) Stage {
	return &sinkStage[T]{policy: policy, f: f}
}

func (s *sinkStage[T]) workerCount() int { return 1 }

func (s *sinkStage[T]) inputType() reflect.Type  { return reflect.TypeFor[T]() }
func (s *sinkStage[T]) outputType() reflect.Type { return nil }

func (s *sinkStage[T]) validate() error { return s.policy.validate() }

func (s *sinkStage[T]) compile(ctx context.Context, wg *sync.WaitGroup, _ *errCollector, in any, _ int) any {
	inQ := in.(queue.Queue[slot[T]])

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.policy.registerThread(0)
		defer s.policy.deregisterThread(0)

		if s.policy.Ordering == Unordered {
			for {
				item, err := inQ.Pop(ctx)
				if err != nil {
					return
				}
				if item.isEOS() {
					return
				}
				if item.isItem() {
					s.f(item.val)
				}
			}
		}

		buf := newReorderBuffer[T]()
		for {
			item, err := inQ.Pop(ctx)
			if err != nil {
				return
			}
			if item.isEOS() {
				for _, ready := range buf.flush() {
					s.f(ready.val)
				}
				return
			}
			for _, ready := range buf.push(item.seq, item.val, item.isHole()) {
				s.f(ready.val)
			}
		}
	}()
	return nil
}
