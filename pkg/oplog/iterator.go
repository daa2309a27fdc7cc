package oplog

import "math"

// iterator walks an op slice, allowing ops to be consumed in fragments so
// that two logs can be zipped together position by position during Compose.
type iterator struct {
	ops    []Op
	index  int
	offset int // rune offset into ops[index]
}

func newIterator(ops []Op) *iterator {
	return &iterator{ops: ops}
}

func (it *iterator) hasNext() bool {
	return it.index < len(it.ops)
}

// peekLength returns the remaining length of the current op, or an
// effectively infinite length when the iterator is exhausted. The infinite
// retain lets Compose run both iterators to completion; trailing plain
// retains are chopped afterwards.
func (it *iterator) peekLength() int {
	if !it.hasNext() {
		return math.MaxInt
	}
	return it.ops[it.index].Length() - it.offset
}

func (it *iterator) peekIsInsert() bool {
	return it.hasNext() && it.ops[it.index].IsInsert()
}

func (it *iterator) peekIsDelete() bool {
	return it.hasNext() && it.ops[it.index].IsDelete()
}

// next consumes up to length positions of the current op and returns the
// consumed fragment. A negative length consumes the whole remaining op.
// When the iterator is exhausted it synthesizes a plain retain.
func (it *iterator) next(length int) Op {
	if !it.hasNext() {
		if length < 0 {
			length = math.MaxInt
		}
		return Op{Retain: length}
	}

	op := it.ops[it.index]
	remaining := op.Length() - it.offset
	if length < 0 || length >= remaining {
		length = remaining
		it.index++
		offset := it.offset
		it.offset = 0
		return sliceOp(op, offset, length)
	}

	offset := it.offset
	it.offset += length
	return sliceOp(op, offset, length)
}

// sliceOp cuts [offset, offset+length) out of op. Text inserts are sliced by
// rune; embeds are atomic (length 1) and returned whole.
func sliceOp(op Op, offset, length int) Op {
	switch {
	case op.IsDelete():
		return Op{Delete: length}
	case op.IsRetain():
		return Op{Retain: length, Attributes: op.Attributes}
	default:
		if s, ok := op.Insert.(string); ok {
			runes := []rune(s)
			return Op{Insert: string(runes[offset : offset+length]), Attributes: op.Attributes}
		}
		return op
	}
}
