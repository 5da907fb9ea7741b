package wire

import "encoding/binary"

// AppendUint16 appends v to dst in big-endian order.
func AppendUint16(dst []byte, v uint16) []byte {
	return append(dst, byte(v>>8), byte(v))
}

// AppendUint32 appends v to dst in big-endian order.
func AppendUint32(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// Uint16 reads a big-endian uint16 from the start of p.
// The caller must have checked that p holds at least two bytes.
func Uint16(p []byte) uint16 {
	return binary.BigEndian.Uint16(p)
}

// Uint32 reads a big-endian uint32 from the start of p.
// The caller must have checked that p holds at least four bytes.
func Uint32(p []byte) uint32 {
	return binary.BigEndian.Uint32(p)
}

// PutUint16 writes v at the start of p in big-endian order.
func PutUint16(p []byte, v uint16) {
	binary.BigEndian.PutUint16(p, v)
}

// ReadElementHeader reads the TLV tag at the start of p and resolves the
// value length. It returns the element type, the value length, the number
// of header bytes consumed and whether the header was well formed. The
// value bytes follow at p[consumed:]; the caller still has to check that
// the value fits in the remaining buffer.
//
// A tag byte of zero is the null element and has length zero.
func ReadElementHeader(p []byte) (typ ElementType, length int, consumed int, ok bool) {
	if len(p) == 0 {
		return 0, 0, 0, false
	}
	tag := p[0]
	typ, size := SplitTag(tag)

	switch size {
	case SizeOne:
		if tag == 0 {
			return typ, 0, 1, true
		}
		return typ, 1, 1, true
	case SizeTwo:
		return typ, 2, 1, true
	case SizeFour:
		return typ, 4, 1, true
	case SizeEight:
		return typ, 8, 1, true
	case SizeSixteen:
		return typ, 16, 1, true
	case SizeInNextByte:
		if len(p) < 2 {
			return 0, 0, 0, false
		}
		return typ, int(p[1]), 2, true
	case SizeInNextWord:
		if len(p) < 3 {
			return 0, 0, 0, false
		}
		return typ, int(Uint16(p[1:])), 3, true
	case SizeInNextLong:
		if len(p) < 5 {
			return 0, 0, 0, false
		}
		return typ, int(Uint32(p[1:])), 5, true
	default:
		return 0, 0, 0, false
	}
}
