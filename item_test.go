// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import "testing"

func TestSlotConstructors(t *testing.T) {
	it := itemSlot(42, 7)
	if !it.isItem() || it.isHole() || it.isEOS() {
		t.Fatalf("itemSlot: unexpected tag %+v", it)
	}
	if it.val != 42 || it.seq != 7 {
		t.Fatalf("itemSlot: val=%d seq=%d", it.val, it.seq)
	}

	h := holeSlot[int](3)
	if !h.isHole() || h.isItem() || h.isEOS() {
		t.Fatalf("holeSlot: unexpected tag %+v", h)
	}
	if h.seq != 3 {
		t.Fatalf("holeSlot: seq=%d, want 3", h.seq)
	}

	e := eosSlot[int]()
	if !e.isEOS() || e.isItem() || e.isHole() {
		t.Fatalf("eosSlot: unexpected tag %+v", e)
	}
}
