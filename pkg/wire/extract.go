package wire

import "errors"

const (
	// MaxUUIDsPerSequence bounds the UUIDs accepted in one search request.
	MaxUUIDsPerSequence = 16

	// MaxRangesPerSequence bounds the attribute ID ranges accepted in one
	// attribute request.
	MaxRangesPerSequence = 16
)

// Extraction errors.
var (
	ErrBadUUIDSequence = errors.New("malformed uuid sequence")
	ErrBadAttrSequence = errors.New("malformed attribute id sequence")
)

// AttrRange is one requested attribute ID range, inclusive on both ends.
// A single requested ID is a range with Start == End.
type AttrRange struct {
	Start uint16
	End   uint16
}

// ExtractUUIDSequence extracts the UUID search pattern at the start of p:
// a data element sequence of UUID elements, each 2, 4 or 16 bytes. It
// returns the UUIDs in their big-endian wire encoding and the remainder of
// the buffer after the sequence.
func ExtractUUIDSequence(p []byte) (uuids [][]byte, rest []byte, err error) {
	typ, seqLen, consumed, ok := ReadElementHeader(p)
	if !ok || typ != TypeSequence {
		return nil, nil, ErrBadUUIDSequence
	}
	// Fixed-width size codes are tolerated as literal sequence lengths.
	switch SizeCode(p[0] & 7) {
	case SizeTwo, SizeFour, SizeSixteen, SizeInNextByte, SizeInNextWord, SizeInNextLong:
	default:
		return nil, nil, ErrBadUUIDSequence
	}
	p = p[consumed:]
	if seqLen > len(p) {
		return nil, nil, ErrBadUUIDSequence
	}
	seq := p[:seqLen]
	rest = p[seqLen:]

	for len(seq) > 0 {
		typ, uuidLen, consumed, ok := ReadElementHeader(seq)
		if !ok || typ != TypeUUID {
			return nil, nil, ErrBadUUIDSequence
		}
		seq = seq[consumed:]
		if uuidLen != 2 && uuidLen != 4 && uuidLen != 16 {
			return nil, nil, ErrBadUUIDSequence
		}
		if uuidLen > len(seq) {
			return nil, nil, ErrBadUUIDSequence
		}
		if len(uuids) >= MaxUUIDsPerSequence {
			return nil, nil, ErrBadUUIDSequence
		}
		uuids = append(uuids, seq[:uuidLen])
		seq = seq[uuidLen:]
	}

	return uuids, rest, nil
}

// ExtractAttrSequence extracts the requested attribute ID list at the
// start of p: a data element sequence of uint elements, each either a
// single 2-byte attribute ID or a 4-byte inclusive ID range. It returns
// the ranges and the remainder of the buffer after the sequence.
func ExtractAttrSequence(p []byte) (ranges []AttrRange, rest []byte, err error) {
	typ, seqLen, consumed, ok := ReadElementHeader(p)
	if !ok || typ != TypeSequence {
		return nil, nil, ErrBadAttrSequence
	}
	switch SizeCode(p[0] & 7) {
	case SizeInNextByte, SizeInNextWord, SizeInNextLong:
	default:
		return nil, nil, ErrBadAttrSequence
	}
	p = p[consumed:]
	if seqLen > len(p) {
		return nil, nil, ErrBadAttrSequence
	}
	seq := p[:seqLen]
	rest = p[seqLen:]

	for len(seq) > 0 {
		typ, attrLen, consumed, ok := ReadElementHeader(seq)
		if !ok || typ != TypeUint {
			return nil, nil, ErrBadAttrSequence
		}
		seq = seq[consumed:]
		if attrLen > len(seq) {
			return nil, nil, ErrBadAttrSequence
		}
		var r AttrRange
		switch attrLen {
		case 2:
			r.Start = Uint16(seq)
			r.End = r.Start
		case 4:
			r.Start = Uint16(seq)
			r.End = Uint16(seq[2:])
		default:
			return nil, nil, ErrBadAttrSequence
		}
		if len(ranges) >= MaxRangesPerSequence {
			return nil, nil, ErrBadAttrSequence
		}
		ranges = append(ranges, r)
		seq = seq[attrLen:]
	}

	return ranges, rest, nil
}
