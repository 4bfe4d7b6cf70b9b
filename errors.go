// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrInvalidThreadCount is returned by Run/RunReduce when a Policy or a
// stage's per-stage override specifies NumThreads < 1. Detected by
// compile before any worker goroutine is spawned.
var ErrInvalidThreadCount = errors.New("spipe: num threads must be >= 1")

// ErrInvalidQueueSize is returned by Run/RunReduce when a Policy specifies
// QueueSize < 1. Detected by compile before any worker goroutine is
// spawned.
var ErrInvalidQueueSize = errors.New("spipe: queue size must be >= 1")

// ErrStageTypeMismatch is returned when a stage's declared input type
// does not match the previous stage's (or the generator's) output type.
// Go's type system cannot catch this across the closed [Stage] interface
// at compile time — the ...Stage variadic erases each stage's own type
// parameters — so it is checked explicitly in a type-only pass over the
// whole chain before any worker goroutine is spawned. [RunReduce] also
// returns it when its last stage's output type is not its type parameter A.
var ErrStageTypeMismatch = errors.New("spipe: stage input type does not match previous stage's output type")

// ErrDanglingStage is returned when a terminal stage (built by [Sink]) is
// followed by further stages, and by [RunReduce] when its stage list is
// empty or ends in a terminal stage.
var ErrDanglingStage = errors.New("spipe: stage follows a terminal stage")

// invariantViolation panics with a formatted diagnostic. Reserved for
// conditions the compiler and EOS protocol guarantee can never occur —
// e.g. an EOS token observed on an edge before every producer has been
// accounted for. Never used for configuration or stage-function errors,
// which have their own non-panicking paths.
func invariantViolation(format string, args ...any) {
	panic(fmt.Sprintf("spipe: "+format, args...))
}

// errSlot is a CAS-guarded first-error-wins slot shared by every worker of
// a compiled graph. Stage-function errors (currently only Iteration's
// body) are captured here rather than propagated synchronously; the
// stage still forwards EOS downstream at once, and its workers keep
// draining their input until the upstream EOS, so no goroutine is left
// blocked on a queue.
type errSlot struct {
	err atomic.Pointer[error]
}

// trySet stores err if no error has been recorded yet. Only the first
// caller wins; later calls are no-ops.
func (s *errSlot) trySet(err error) {
	if err == nil {
		return
	}
	s.err.CompareAndSwap(nil, &err)
}

// load returns the recorded error, or nil if none was set.
func (s *errSlot) load() error {
	p := s.err.Load()
	if p == nil {
		return nil
	}
	return *p
}

// errCollector gathers one errSlot per worker-owning stage and joins them
// once every worker has been waited on.
type errCollector struct {
	slots []*errSlot
}

func (c *errCollector) newSlot() *errSlot {
	s := &errSlot{}
	c.slots = append(c.slots, s)
	return s
}

func (c *errCollector) join() error {
	var errs []error
	for _, s := range c.slots {
		if err := s.load(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
