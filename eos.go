// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import "code.hybscloud.com/atomix"

// farmEOS coordinates end-of-stream delivery across the N workers sharing
// a farm/filter/iteration stage's input queue. Exactly one shared nend
// counter is used per stage instance, named after the source protocol's
// own atomic<int> nend ("TODO: find better name" there) — kept here
// because N-workers-race-to-the-threshold really is what it counts.
//
// Protocol: every worker that pops EOS from the shared input queue
// re-pushes it onto that same input queue (so a sibling still blocked in
// Pop also observes it) and calls observe to count itself. observe only
// does the counting, since re-pushing requires the caller's own
// statically-typed queue handle. Because the upstream closes the input
// right after pushing EOS, the re-push can be refused; a worker whose Pop
// finds the input closed and drained counts itself the same way. The
// worker for which observe returns
// isLast=true is the one that drove the count to N, and it alone also
// pushes a single EOS token downstream before exiting; every worker
// exits as soon as it has handled its own EOS observation.
type farmEOS struct {
	nend atomix.Int64
	n    int64
}

func newFarmEOS(workers int) *farmEOS {
	return &farmEOS{n: int64(workers)}
}

// observe increments nend and reports whether this call drove it to n.
func (e *farmEOS) observe() (count int64, isLast bool) {
	count = e.nend.AddAcqRel(1)
	return count, count == e.n
}
