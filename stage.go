// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import (
	"context"
	"reflect"
	"sync"
)

// Stage is a compiled unit of a pipeline: Map, Filter, Farm, Reduce,
// Iteration, a terminal Sink, or a Nested splice of any of these. Stage
// is a closed interface — every implementation lives in this package —
// so the only way to obtain one is through the constructors below.
//
// Replaces the source's tagged-variant descriptor enum with interface
// dispatch: each concrete stage type knows how to compile and run
// itself, which sidesteps the need for a type switch that would
// otherwise have to name every possible generic instantiation.
type Stage interface {
	// workerCount reports how many goroutines this stage will run, used
	// by the previous stage to size its output queue's consumer-side
	// cardinality hint.
	workerCount() int

	// inputType and outputType identify this stage's element type for
	// the chain type-check in compileChain, without requiring every
	// Stage to know its neighbours' type parameters. outputType returns
	// nil for a terminal stage (Sink).
	inputType() reflect.Type
	outputType() reflect.Type

	// validate reports this stage's own Policy errors (ErrInvalidThreadCount,
	// ErrInvalidQueueSize). Checked for every stage before any of them
	// spawns a worker goroutine.
	validate() error

	// compile wires this stage between the upstream queue in (holding
	// queue.Queue[slot[S]] for this stage's own S) and a freshly built
	// output queue (holding queue.Queue[slot[T]], or nil if this stage
	// is terminal), spawning its worker goroutines onto wg and routing
	// any captured stage-function error into ec. consumers is the
	// cardinality hint for the output queue (the next stage's worker
	// count, or 1 for a terminal consumer).
	compile(ctx context.Context, wg *sync.WaitGroup, ec *errCollector, in any, consumers int) any
}

// validateChain checks every stage's own Policy and the full input/output
// type chain against startType, with no side effects — no queue is built
// and no goroutine is spawned. Callers must call this (and get a nil
// error) before calling compileChain, so that a configuration or type
// error anywhere in the chain, including its very first stage, is
// reported without a single worker goroutine — generator included —
// ever starting.
func validateChain(startType reflect.Type, trailingConsumers int, stages []Stage) error {
	for _, st := range stages {
		if err := st.validate(); err != nil {
			return err
		}
	}

	expect := startType
	for _, st := range stages {
		if expect == nil {
			return ErrDanglingStage
		}
		if st.inputType() != expect {
			return ErrStageTypeMismatch
		}
		expect = st.outputType()
	}
	return nil
}

// compileChain spawns every stage's workers in order, threading the queue
// handle from one to the next, and returns the final output queue (nil if
// the chain ends in a terminal stage) and the element type downstream of
// it (nil alongside a nil queue). Callers must have already run
// validateChain successfully — compileChain does not re-check and will
// panic via an invalid type assertion inside a stage's own compile if fed
// a chain that would have failed validation.
func compileChain(ctx context.Context, wg *sync.WaitGroup, ec *errCollector, startType reflect.Type, in any, trailingConsumers int, stages []Stage) (any, reflect.Type) {
	expect := startType
	for i, st := range stages {
		consumers := trailingConsumers
		if i+1 < len(stages) {
			consumers = stages[i+1].workerCount()
		}
		in = st.compile(ctx, wg, ec, in, consumers)
		expect = st.outputType()
	}
	return in, expect
}
