// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import (
	"context"
	"reflect"
	"sync"
)

// nestedStage is a marker for an inline composition of stages. It is
// never itself compiled: flattenStages splices its children into the
// surrounding stage list in place, with no queue boundary at the splice
// point, before compileChain ever runs. This is what makes
// Run(ctx, p, gen, Nested(s1, s2)) structurally identical to
// Run(ctx, p, gen, s1, s2) — composing stages inline must behave exactly
// like listing them flat.
type nestedStage struct {
	stages []Stage
}

// Nested builds an inline composition of stages with no queue boundary
// between them and their surroundings — splicing, not a sub-pipeline.
func Nested(stages ...Stage) Stage {
	return &nestedStage{stages: flattenStages(stages)}
}

// flattenStages recursively inlines every nestedStage in stages so
// compileChain only ever sees leaf stages.
func flattenStages(stages []Stage) []Stage {
	flat := make([]Stage, 0, len(stages))
	for _, st := range stages {
		if n, ok := st.(*nestedStage); ok {
			flat = append(flat, n.stages...)
			continue
		}
		flat = append(flat, st)
	}
	return flat
}

func (s *nestedStage) workerCount() int {
	if len(s.stages) == 0 {
		return 1
	}
	return s.stages[0].workerCount()
}

func (s *nestedStage) inputType() reflect.Type {
	if len(s.stages) == 0 {
		return nil
	}
	return s.stages[0].inputType()
}

func (s *nestedStage) outputType() reflect.Type {
	if len(s.stages) == 0 {
		return nil
	}
	return s.stages[len(s.stages)-1].outputType()
}

// validate is never reached for the same reason compile is not: see the
// note on compile below.
func (s *nestedStage) validate() error {
	for _, st := range s.stages {
		if err := st.validate(); err != nil {
			return err
		}
	}
	return nil
}

// compile is never reached: every nestedStage is eliminated by
// flattenStages before compileChain walks the stage list. Kept so
// *nestedStage satisfies Stage (Nested's own return type) and to fail
// loudly if that invariant is ever broken.
func (s *nestedStage) compile(context.Context, *sync.WaitGroup, *errCollector, any, int) any {
	invariantViolation("nestedStage reached compile; flattenStages should have spliced it away")
	return nil
}
