package database

import (
	"fmt"

	"github.com/sdp-stack/sdp-go/pkg/wire"
)

// SequenceElement is one element of a generic data element sequence.
type SequenceElement struct {
	Type  wire.ElementType
	Value []byte
}

// ProtocolElem is one protocol descriptor: a 16-bit protocol UUID plus
// its parameters. RFCOMM parameters are encoded as 1-byte uints, all
// other parameters as 2-byte uints.
type ProtocolElem struct {
	UUID   uint16
	Params []uint16
}

func appendElement(buf []byte, typ wire.ElementType, val []byte) []byte {
	switch len(val) {
	case 1:
		buf = append(buf, wire.Tag(typ, wire.SizeOne))
	case 2:
		buf = append(buf, wire.Tag(typ, wire.SizeTwo))
	case 4:
		buf = append(buf, wire.Tag(typ, wire.SizeFour))
	case 8:
		buf = append(buf, wire.Tag(typ, wire.SizeEight))
	case 16:
		buf = append(buf, wire.Tag(typ, wire.SizeSixteen))
	default:
		buf = append(buf, wire.Tag(typ, wire.SizeInNextByte), byte(len(val)))
	}
	return append(buf, val...)
}

// AddSequence composes a data element sequence from the given elements
// and stores it under attrID. An element that would push the sequence
// past the maximum attribute length is rolled back: if it is the first
// element the call fails, otherwise the sequence is silently truncated
// to the elements that fit. Elements longer than 255 bytes are not
// encodable and fail the call.
func (r *Record) AddSequence(attrID uint16, elems []SequenceElement) error {
	buf := make([]byte, 0, r.maxAttrLen)
	for i, e := range elems {
		if len(e.Value) > 0xFF {
			return fmt.Errorf("element %d is %d bytes: %w", i, len(e.Value), ErrSequenceTooLong)
		}
		mark := len(buf)
		buf = appendElement(buf, e.Type, e.Value)
		if len(buf) > r.maxAttrLen {
			buf = buf[:mark]
			if i == 0 {
				return fmt.Errorf("attribute 0x%04X: %w", attrID, ErrSequenceTooLong)
			}
			break
		}
	}
	return r.AddAttribute(attrID, wire.TypeSequence, buf)
}

// AddUUIDSequence stores a sequence of 16-bit UUIDs under attrID,
// silently truncated to the UUIDs that fit the maximum attribute
// length.
func (r *Record) AddUUIDSequence(attrID uint16, uuids []uint16) error {
	buf := make([]byte, 0, 3*len(uuids))
	for _, u := range uuids {
		buf = append(buf, wire.Tag(wire.TypeUUID, wire.SizeTwo))
		buf = wire.AppendUint16(buf, u)
		if len(buf) > r.maxAttrLen-3 {
			break
		}
	}
	return r.AddAttribute(attrID, wire.TypeSequence, buf)
}

// AddServiceClassIDList stores the service class ID list (attribute
// 0x0001) as a sequence of 16-bit UUIDs.
func (r *Record) AddServiceClassIDList(uuids []uint16) error {
	buf := make([]byte, 0, 3*len(uuids))
	for _, u := range uuids {
		buf = append(buf, wire.Tag(wire.TypeUUID, wire.SizeTwo))
		buf = wire.AppendUint16(buf, u)
	}
	return r.AddAttribute(wire.AttrServiceClassIDList, wire.TypeSequence, buf)
}

// composeProtoList serializes one protocol descriptor list: one inner
// sequence per protocol element holding the UUID and its parameters.
func composeProtoList(buf []byte, elems []ProtocolElem) []byte {
	for _, e := range elems {
		buf = append(buf, wire.Tag(wire.TypeSequence, wire.SizeInNextByte))
		lenIdx := len(buf)
		buf = append(buf, byte(3+3*len(e.Params)))
		buf = append(buf, wire.Tag(wire.TypeUUID, wire.SizeTwo))
		buf = wire.AppendUint16(buf, e.UUID)
		for _, p := range e.Params {
			if e.UUID == wire.ProtocolRFCOMM {
				// RFCOMM carries a 1-byte server channel.
				buf = append(buf, wire.Tag(wire.TypeUint, wire.SizeOne), byte(p))
				buf[lenIdx]--
			} else {
				buf = append(buf, wire.Tag(wire.TypeUint, wire.SizeTwo))
				buf = wire.AppendUint16(buf, p)
			}
		}
	}
	return buf
}

// AddProtocolList stores the protocol descriptor list (attribute
// 0x0004).
func (r *Record) AddProtocolList(elems []ProtocolElem) error {
	buf := composeProtoList(make([]byte, 0, 32), elems)
	if len(buf) > r.maxAttrLen {
		return fmt.Errorf("protocol descriptor list is %d bytes: %w", len(buf), ErrSequenceTooLong)
	}
	return r.AddAttribute(wire.AttrProtocolDescList, wire.TypeSequence, buf)
}

// AddAdditionalProtocolLists stores the additional protocol descriptor
// lists (attribute 0x000D): each list is wrapped in its own sequence
// header. Unlike the permissive builders this fails outright when the
// composed value exceeds the maximum attribute length.
func (r *Record) AddAdditionalProtocolLists(lists [][]ProtocolElem) error {
	buf := make([]byte, 0, 64)
	for _, elems := range lists {
		buf = append(buf, wire.Tag(wire.TypeSequence, wire.SizeInNextByte))
		lenIdx := len(buf)
		buf = append(buf, 0)
		buf = composeProtoList(buf, elems)
		inner := len(buf) - lenIdx - 1
		if inner > 0xFF {
			return fmt.Errorf("protocol list is %d bytes: %w", inner, ErrSequenceTooLong)
		}
		buf[lenIdx] = byte(inner)
	}
	if len(buf) > r.maxAttrLen {
		return fmt.Errorf("additional protocol lists are %d bytes: %w", len(buf), ErrSequenceTooLong)
	}
	return r.AddAttribute(wire.AttrAdditionalProtoDescLists, wire.TypeSequence, buf)
}

// AddProfileDescriptorList stores the Bluetooth profile descriptor list
// (attribute 0x0009) for a single profile UUID and version.
func (r *Record) AddProfileDescriptorList(profile, version uint16) error {
	buf := make([]byte, 0, 8)
	buf = append(buf, wire.Tag(wire.TypeSequence, wire.SizeInNextByte), 6)
	buf = append(buf, wire.Tag(wire.TypeUUID, wire.SizeTwo))
	buf = wire.AppendUint16(buf, profile)
	buf = append(buf, wire.Tag(wire.TypeUint, wire.SizeTwo))
	buf = wire.AppendUint16(buf, version)
	return r.AddAttribute(wire.AttrProfileDescList, wire.TypeSequence, buf)
}

// AddLanguageBaseAttrIDList stores the language base attribute ID list
// (attribute 0x0006): language code, character encoding and attribute
// ID base as three 2-byte uints.
func (r *Record) AddLanguageBaseAttrIDList(lang, encoding, base uint16) error {
	buf := make([]byte, 0, 9)
	for _, v := range [3]uint16{lang, encoding, base} {
		buf = append(buf, wire.Tag(wire.TypeUint, wire.SizeTwo))
		buf = wire.AppendUint16(buf, v)
	}
	return r.AddAttribute(wire.AttrLanguageBaseAttrIDList, wire.TypeSequence, buf)
}

// Handle-keyed variants of the sequence builders.

func (d *Database) withRecord(handle uint32, fn func(*Record) error) error {
	rec, ok := d.Record(handle)
	if !ok {
		return fmt.Errorf("handle 0x%X: %w", handle, ErrRecordNotFound)
	}
	return fn(rec)
}

// AddSequence composes a data element sequence on the record with the
// given handle. See Record.AddSequence.
func (d *Database) AddSequence(handle uint32, attrID uint16, elems []SequenceElement) error {
	return d.withRecord(handle, func(r *Record) error { return r.AddSequence(attrID, elems) })
}

// AddUUIDSequence stores a 16-bit UUID sequence on the record with the
// given handle. See Record.AddUUIDSequence.
func (d *Database) AddUUIDSequence(handle uint32, attrID uint16, uuids []uint16) error {
	return d.withRecord(handle, func(r *Record) error { return r.AddUUIDSequence(attrID, uuids) })
}

// AddServiceClassIDList stores the service class ID list on the record
// with the given handle.
func (d *Database) AddServiceClassIDList(handle uint32, uuids []uint16) error {
	return d.withRecord(handle, func(r *Record) error { return r.AddServiceClassIDList(uuids) })
}

// AddProtocolList stores the protocol descriptor list on the record
// with the given handle.
func (d *Database) AddProtocolList(handle uint32, elems []ProtocolElem) error {
	return d.withRecord(handle, func(r *Record) error { return r.AddProtocolList(elems) })
}

// AddAdditionalProtocolLists stores the additional protocol descriptor
// lists on the record with the given handle.
func (d *Database) AddAdditionalProtocolLists(handle uint32, lists [][]ProtocolElem) error {
	return d.withRecord(handle, func(r *Record) error { return r.AddAdditionalProtocolLists(lists) })
}

// AddProfileDescriptorList stores the profile descriptor list on the
// record with the given handle.
func (d *Database) AddProfileDescriptorList(handle uint32, profile, version uint16) error {
	return d.withRecord(handle, func(r *Record) error { return r.AddProfileDescriptorList(profile, version) })
}

// AddLanguageBaseAttrIDList stores the language base attribute ID list
// on the record with the given handle.
func (d *Database) AddLanguageBaseAttrIDList(handle uint32, lang, encoding, base uint16) error {
	return d.withRecord(handle, func(r *Record) error { return r.AddLanguageBaseAttrIDList(lang, encoding, base) })
}
