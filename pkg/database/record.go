package database

import (
	"fmt"

	"github.com/sdp-stack/sdp-go/pkg/wire"
)

// Attribute is a read-only view of one attribute in a record. Value
// aliases the record's pad buffer and is only valid until the next
// mutation of the record.
type Attribute struct {
	ID    uint16
	Type  wire.ElementType
	Value []byte
}

type attrSlot struct {
	id  uint16
	typ wire.ElementType
	off int
	n   int
}

// Record is one service record. Its attributes stay sorted by ascending
// ID and their values live contiguously in the pad buffer, so deleting
// an attribute compacts the pad and repoints the slots behind it.
type Record struct {
	handle uint32
	attrs  []attrSlot
	pad    []byte

	maxAttrs   int
	maxAttrLen int
}

// Handle returns the record's 32-bit handle.
func (r *Record) Handle() uint32 { return r.handle }

// NumAttributes returns the number of attributes in the record,
// including the automatic service record handle attribute.
func (r *Record) NumAttributes() int { return len(r.attrs) }

// PadFree returns the number of unused bytes in the record's pad buffer.
func (r *Record) PadFree() int { return cap(r.pad) - len(r.pad) }

func (r *Record) view(i int) Attribute {
	s := r.attrs[i]
	return Attribute{ID: s.id, Type: s.typ, Value: r.pad[s.off : s.off+s.n : s.off+s.n]}
}

// Attribute returns the attribute with the given ID.
func (r *Record) Attribute(id uint16) (Attribute, bool) {
	return r.FindAttributeInRange(id, id)
}

// FindAttributeInRange returns the first attribute whose ID falls in
// [low, high]. Attributes are held in ascending ID order, so "first"
// is also "lowest".
func (r *Record) FindAttributeInRange(low, high uint16) (Attribute, bool) {
	for i, s := range r.attrs {
		if s.id > high {
			break
		}
		if s.id >= low {
			return r.view(i), true
		}
	}
	return Attribute{}, false
}

// AddAttribute adds an attribute to the record, replacing any existing
// attribute with the same ID. The value is copied into the pad buffer.
//
// Capacity is checked against the post-replace budget before anything
// is mutated, so a failed call leaves the record unchanged. A text
// value that does not fit is truncated to the remaining budget with a
// NUL in its last byte; any other type fails with ErrValueTooLong.
func (r *Record) AddAttribute(id uint16, typ wire.ElementType, val []byte) error {
	if val == nil {
		return ErrNilValue
	}
	if r.PadFree() == 0 {
		return fmt.Errorf("record 0x%X attribute 0x%04X: %w", r.handle, id, ErrPadExhausted)
	}

	existing := -1
	for i, s := range r.attrs {
		if s.id == id {
			existing = i
			break
		}
	}
	if existing < 0 && len(r.attrs) >= r.maxAttrs {
		return fmt.Errorf("record 0x%X attribute 0x%04X: %w", r.handle, id, ErrTooManyAttributes)
	}

	budget := r.PadFree()
	if existing >= 0 {
		budget += r.attrs[existing].n
	}
	n := len(val)
	truncate := false
	if n > budget {
		if typ != wire.TypeText || budget == 0 {
			return fmt.Errorf("record 0x%X attribute 0x%04X: %d bytes, %d free: %w",
				r.handle, id, n, budget, ErrValueTooLong)
		}
		n = budget
		truncate = true
	}

	if existing >= 0 {
		r.DeleteAttribute(id)
	}
	off := len(r.pad)
	r.pad = append(r.pad, val[:n]...)
	if truncate {
		r.pad[off+n-1] = 0
	}

	slot := attrSlot{id: id, typ: typ, off: off, n: n}
	at := len(r.attrs)
	for i, s := range r.attrs {
		if s.id > id {
			at = i
			break
		}
	}
	r.attrs = append(r.attrs, attrSlot{})
	copy(r.attrs[at+1:], r.attrs[at:])
	r.attrs[at] = slot
	return nil
}

// DeleteAttribute removes the attribute with the given ID, compacting
// the pad buffer so the freed bytes become available again.
func (r *Record) DeleteAttribute(id uint16) bool {
	for i, s := range r.attrs {
		if s.id != id {
			continue
		}
		r.attrs = append(r.attrs[:i], r.attrs[i+1:]...)
		if s.n > 0 {
			r.pad = append(r.pad[:s.off], r.pad[s.off+s.n:]...)
			for j := range r.attrs {
				if r.attrs[j].off > s.off {
					r.attrs[j].off -= s.n
				}
			}
		}
		return true
	}
	return false
}
