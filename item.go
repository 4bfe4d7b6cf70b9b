// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

// slotKind tags the three states an item travelling a queue edge can be
// in, replacing an absent-value-overloads-sequence-(-1) convention with an
// explicit third state.
type slotKind uint8

const (
	// slotItem carries a real payload at a real sequence.
	slotItem slotKind = iota
	// slotHole marks a sequence an ordered Filter dropped. It carries no
	// payload but still occupies its sequence so the reorder buffer can
	// advance its cursor past it.
	slotHole
	// slotEOS marks end-of-stream. It carries no payload and no sequence;
	// the reorder buffer treats it as sorting after every real sequence.
	slotEOS
)

// slot is the tagged item that actually travels every queue edge in a
// compiled graph — stages never exchange a bare T.
type slot[T any] struct {
	kind slotKind
	val  T
	seq  int64
}

func itemSlot[T any](val T, seq int64) slot[T] {
	return slot[T]{kind: slotItem, val: val, seq: seq}
}

func holeSlot[T any](seq int64) slot[T] {
	return slot[T]{kind: slotHole, seq: seq}
}

func eosSlot[T any]() slot[T] {
	return slot[T]{kind: slotEOS}
}

func (s slot[T]) isEOS() bool  { return s.kind == slotEOS }
func (s slot[T]) isHole() bool { return s.kind == slotHole }
func (s slot[T]) isItem() bool { return s.kind == slotItem }
