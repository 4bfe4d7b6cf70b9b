// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import "testing"

func TestReorderBufferInOrderPassthrough(t *testing.T) {
	buf := newReorderBuffer[string]()
	for i, v := range []string{"a", "b", "c"} {
		ready := buf.push(int64(i), v, false)
		if len(ready) != 1 || ready[0].val != v {
			t.Fatalf("push(%d, %q): got %v, want single item %q", i, v, ready, v)
		}
	}
	if buf.pending() != 0 {
		t.Fatalf("pending() = %d, want 0", buf.pending())
	}
}

func TestReorderBufferOutOfOrderHolds(t *testing.T) {
	buf := newReorderBuffer[string]()

	if ready := buf.push(2, "c", false); len(ready) != 0 {
		t.Fatalf("push(2): got %v, want none yet", ready)
	}
	if ready := buf.push(1, "b", false); len(ready) != 0 {
		t.Fatalf("push(1): got %v, want none yet", ready)
	}
	if buf.pending() != 2 {
		t.Fatalf("pending() = %d, want 2", buf.pending())
	}

	ready := buf.push(0, "a", false)
	if len(ready) != 3 {
		t.Fatalf("push(0): got %d items, want 3 (the whole held prefix)", len(ready))
	}
	want := []string{"a", "b", "c"}
	for i, r := range ready {
		if r.val != want[i] {
			t.Fatalf("ready[%d] = %q, want %q", i, r.val, want[i])
		}
	}
	if buf.pending() != 0 {
		t.Fatalf("pending() = %d, want 0", buf.pending())
	}
}

func TestReorderBufferSuppressesHoles(t *testing.T) {
	buf := newReorderBuffer[int]()

	ready := buf.push(0, 0, false)
	ready = append(ready, buf.push(1, 0, true)...) // hole at seq 1
	ready = append(ready, buf.push(2, 20, false)...)

	if len(ready) != 2 {
		t.Fatalf("got %d emitted items, want 2 (hole suppressed): %v", len(ready), ready)
	}
	// Output sequences are renumbered contiguously, skipping the hole.
	if ready[0].seq != 0 || ready[1].seq != 1 {
		t.Fatalf("output sequences = [%d, %d], want [0, 1]", ready[0].seq, ready[1].seq)
	}
	if ready[0].val != 0 || ready[1].val != 20 {
		t.Fatalf("output values = [%d, %d], want [0, 20]", ready[0].val, ready[1].val)
	}
}

func TestReorderBufferFlushOnEOS(t *testing.T) {
	buf := newReorderBuffer[int]()
	buf.push(0, 100, false)
	ready := buf.push(1, 200, false)
	if len(ready) != 2 {
		t.Fatalf("got %d, want 2", len(ready))
	}

	flushed := buf.flush()
	if len(flushed) != 0 {
		t.Fatalf("flush() after a fully-drained buffer returned %v, want none", flushed)
	}
}

// TestReorderBufferMemoryBound exercises the holding-set size bound: the
// buffer never holds more out-of-order arrivals than it has actually
// received — here a worst-case reverse-order arrival of N items, which
// must hold at most N-1 pending at any point before the final in-order
// arrival drains it all.
func TestReorderBufferMemoryBound(t *testing.T) {
	const n = 64
	buf := newReorderBuffer[int]()
	highWater := 0

	for seq := n - 1; seq >= 1; seq-- {
		buf.push(int64(seq), seq, false)
		if buf.pending() > highWater {
			highWater = buf.pending()
		}
	}
	if highWater != n-1 {
		t.Fatalf("high-water pending = %d, want %d", highWater, n-1)
	}

	ready := buf.push(0, 0, false)
	if len(ready) != n {
		t.Fatalf("final push released %d items, want %d", len(ready), n)
	}
	if buf.pending() != 0 {
		t.Fatalf("pending() after full drain = %d, want 0", buf.pending())
	}
}
