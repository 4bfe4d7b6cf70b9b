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

type mapStage[S, T any] struct {
	policy Policy
	f      func(S) T
}

// Map builds a single-worker transform stage. One goroutine pops each
// input item, applies f, and pushes the result downstream at the same
// sequence — the simplest stage kind and the one every other worker-owning
// stage's single-threaded path (Reduce) mirrors.
func Map[S, T any](policy Policy, f func(S) T) Stage {
	return &mapStage[S, T]{policy: policy, f: f}
}

func (s *mapStage[S, T]) workerCount() int { return 1 }

func (s *mapStage[S, T]) inputType() reflect.Type  { return reflect.TypeFor[S]() }
func (s *mapStage[S, T]) outputType() reflect.Type { return reflect.TypeFor[T]() }

func (s *mapStage[S, T]) validate() error { return s.policy.validate() }

func (s *mapStage[S, T]) compile(ctx context.Context, wg *sync.WaitGroup, _ *errCollector, in any, consumers int) any {
	inQ := in.(queue.Queue[slot[S]])
	outQ := buildQueue[slot[T]](s.policy, 1, consumers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.policy.registerThread(0)
		defer s.policy.deregisterThread(0)
		for {
			item, err := inQ.Pop(ctx)
			if err != nil {
				return
			}
			if item.isEOS() {
				_ = outQ.Push(ctx, eosSlot[T]())
				outQ.Close()
				return
			}
			_ = outQ.Push(ctx, itemSlot(s.f(item.val), item.seq))
		}
	}()
	return outQ
}
