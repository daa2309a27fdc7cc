// Package oplog implements the operation-log representation of rich text
// content: an ordered sequence of insert/retain/delete operations.
//
// Composing one op-log onto another replays the second log's operations over
// the first in order. Operations are never reordered or deduplicated, so two
// clients that apply the same delta stream in the same order converge to the
// same content. No merge algorithm is applied for concurrent edits; ordering
// is whatever the transport delivered.
package oplog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Op is a single rich text operation.
//
// Exactly one of Insert, Retain or Delete is set:
//   - Insert carries a string of text, or a map describing an embedded object
//     (image, divider, custom block).
//   - Retain skips over existing content, optionally re-formatting it via
//     Attributes.
//   - Delete removes existing content.
type Op struct {
	Insert     any            `json:"insert,omitempty" cbor:"insert,omitempty"`
	Retain     int            `json:"retain,omitempty" cbor:"retain,omitempty"`
	Delete     int            `json:"delete,omitempty" cbor:"delete,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" cbor:"attributes,omitempty"`
}

// IsInsert reports whether the op inserts content.
func (op Op) IsInsert() bool { return op.Insert != nil }

// IsDelete reports whether the op deletes content.
func (op Op) IsDelete() bool { return op.Delete > 0 }

// IsRetain reports whether the op retains content.
func (op Op) IsRetain() bool { return op.Retain > 0 }

// Length returns the length of the op in content positions.
// Text inserts count runes; embed inserts count as a single position.
func (op Op) Length() int {
	switch {
	case op.IsDelete():
		return op.Delete
	case op.IsRetain():
		return op.Retain
	default:
		if s, ok := op.Insert.(string); ok {
			return len([]rune(s))
		}
		return 1
	}
}

// Delta is an ordered op-log. The zero value is an empty log.
type Delta struct {
	Ops []Op `json:"ops" cbor:"ops"`
}

// New builds a Delta from the given ops.
func New(ops ...Op) Delta {
	return Delta{Ops: ops}
}

// Insert appends a text insert and returns the delta for chaining.
func (d Delta) Insert(text string, attributes map[string]any) Delta {
	d.Ops = append(d.Ops, Op{Insert: text, Attributes: attributes})
	return d
}

// InsertEmbed appends an embed insert.
func (d Delta) InsertEmbed(embed map[string]any, attributes map[string]any) Delta {
	d.Ops = append(d.Ops, Op{Insert: embed, Attributes: attributes})
	return d
}

// Retain appends a retain op.
func (d Delta) Retain(n int, attributes map[string]any) Delta {
	d.Ops = append(d.Ops, Op{Retain: n, Attributes: attributes})
	return d
}

// Delete appends a delete op.
func (d Delta) Delete(n int) Delta {
	d.Ops = append(d.Ops, Op{Delete: n})
	return d
}

// Length returns the total length of all ops.
func (d Delta) Length() int {
	total := 0
	for _, op := range d.Ops {
		total += op.Length()
	}
	return total
}

// PlainText returns the concatenated text of all string inserts.
// Embeds are skipped.
func (d Delta) PlainText() string {
	var sb strings.Builder
	for _, op := range d.Ops {
		if s, ok := op.Insert.(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String()
}

// FromPlainText wraps raw text in a single-insert op-log. It is the fallback
// for stored content that parses as neither an op-log nor a markdown payload.
func FromPlainText(text string) Delta {
	if text == "" {
		return Delta{}
	}
	return Delta{Ops: []Op{{Insert: text}}}
}

// Marshal serializes the delta as the canonical {"ops":[...]} JSON document.
func (d Delta) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// Unmarshal parses either the canonical {"ops":[...]} document or a bare op
// array into a Delta.
func Unmarshal(data []byte) (Delta, error) {
	var d Delta
	if err := json.Unmarshal(data, &d); err == nil && d.Ops != nil {
		return d, nil
	}

	var ops []Op
	if err := json.Unmarshal(data, &ops); err != nil {
		return Delta{}, fmt.Errorf("oplog: content is not an op-log: %w", err)
	}
	return Delta{Ops: ops}, nil
}

// Compose replays other onto d in order and returns the resulting op-log.
//
// This is the only convergence mechanism in the module: every client applies
// the same deltas through Compose in arrival order. Compose must therefore be
// strictly order-preserving; it never inspects content to reorder or drop ops.
func (d Delta) Compose(other Delta) Delta {
	a := newIterator(d.Ops)
	b := newIterator(other.Ops)

	var ops []Op
	for a.hasNext() || b.hasNext() {
		switch {
		case b.peekIsInsert():
			// New content goes in front of whatever base content remains.
			ops = pushOp(ops, b.next(-1))
		case a.peekIsDelete():
			// Deletes already present in the base pass through untouched.
			ops = pushOp(ops, a.next(-1))
		default:
			length := minInt(a.peekLength(), b.peekLength())
			aOp := a.next(length)
			bOp := b.next(length)

			switch {
			case bOp.IsRetain():
				newOp := Op{}
				if aOp.IsRetain() {
					newOp.Retain = length
				} else {
					newOp.Insert = aOp.Insert
				}
				newOp.Attributes = composeAttributes(aOp.Attributes, bOp.Attributes, aOp.IsRetain())
				ops = pushOp(ops, newOp)
			case bOp.IsDelete() && aOp.IsRetain():
				ops = pushOp(ops, bOp)
				// bOp delete over aOp insert: both vanish.
			}
		}
	}

	return Delta{Ops: chop(ops)}
}

// pushOp appends an op, merging it into the previous op when both are
// mergeable (same kind, same attributes). Merging keeps composed logs compact
// but never changes their meaning.
func pushOp(ops []Op, op Op) []Op {
	if op.Length() == 0 && !op.IsInsert() {
		return ops
	}
	if len(ops) == 0 {
		return append(ops, op)
	}

	last := &ops[len(ops)-1]
	switch {
	case op.IsDelete() && last.IsDelete():
		last.Delete += op.Delete
		return ops
	case op.IsRetain() && last.IsRetain() && attributesEqual(op.Attributes, last.Attributes):
		last.Retain += op.Retain
		return ops
	case op.IsInsert() && last.IsInsert() && attributesEqual(op.Attributes, last.Attributes):
		s1, ok1 := last.Insert.(string)
		s2, ok2 := op.Insert.(string)
		if ok1 && ok2 {
			last.Insert = s1 + s2
			return ops
		}
	}
	return append(ops, op)
}

// chop drops a trailing attribute-less retain, which is a no-op.
func chop(ops []Op) []Op {
	if n := len(ops); n > 0 {
		last := ops[n-1]
		if last.IsRetain() && last.Attributes == nil {
			return ops[:n-1]
		}
	}
	return ops
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
