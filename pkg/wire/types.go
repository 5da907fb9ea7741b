package wire

// ElementType is the data element type descriptor carried in the upper
// five bits of a TLV tag byte.
type ElementType uint8

const (
	// TypeNil is the null type; it carries no data.
	TypeNil ElementType = 0

	// TypeUint is an unsigned integer.
	TypeUint ElementType = 1

	// TypeInt is a two's complement signed integer.
	TypeInt ElementType = 2

	// TypeUUID is a 16-, 32- or 128-bit UUID.
	TypeUUID ElementType = 3

	// TypeText is a text string.
	TypeText ElementType = 4

	// TypeBoolean is a single-byte boolean.
	TypeBoolean ElementType = 5

	// TypeSequence is a data element sequence.
	TypeSequence ElementType = 6

	// TypeAlternative is a data element alternative.
	TypeAlternative ElementType = 7

	// TypeURL is a URL string.
	TypeURL ElementType = 8
)

// String returns the element type name.
func (t ElementType) String() string {
	switch t {
	case TypeNil:
		return "NIL"
	case TypeUint:
		return "UINT"
	case TypeInt:
		return "INT"
	case TypeUUID:
		return "UUID"
	case TypeText:
		return "TEXT"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeSequence:
		return "SEQUENCE"
	case TypeAlternative:
		return "ALTERNATIVE"
	case TypeURL:
		return "URL"
	default:
		return "UNKNOWN"
	}
}

// Variable reports whether the type carries an explicit length on the wire
// rather than one of the fixed widths.
func (t ElementType) Variable() bool {
	switch t {
	case TypeText, TypeSequence, TypeAlternative, TypeURL:
		return true
	default:
		return false
	}
}

// SizeCode is the size descriptor carried in the lower three bits of a TLV
// tag byte.
type SizeCode uint8

const (
	// SizeOne is a one byte value.
	SizeOne SizeCode = 0

	// SizeTwo is a two byte value.
	SizeTwo SizeCode = 1

	// SizeFour is a four byte value.
	SizeFour SizeCode = 2

	// SizeEight is an eight byte value.
	SizeEight SizeCode = 3

	// SizeSixteen is a sixteen byte value.
	SizeSixteen SizeCode = 4

	// SizeInNextByte means the length follows in the next byte.
	SizeInNextByte SizeCode = 5

	// SizeInNextWord means the length follows in the next two bytes.
	SizeInNextWord SizeCode = 6

	// SizeInNextLong means the length follows in the next four bytes.
	SizeInNextLong SizeCode = 7
)

// Tag composes a TLV tag byte from an element type and a size code.
func Tag(t ElementType, s SizeCode) byte {
	return byte(t)<<3 | byte(s)
}

// SplitTag decomposes a TLV tag byte.
func SplitTag(b byte) (ElementType, SizeCode) {
	return ElementType(b >> 3), SizeCode(b & 7)
}

// Well-known service attribute IDs.
const (
	// AttrServiceRecordHandle is present on every record; added implicitly
	// when the record is created.
	AttrServiceRecordHandle uint16 = 0x0000

	// AttrServiceClassIDList lists the service class UUIDs of a record.
	AttrServiceClassIDList uint16 = 0x0001

	// AttrServiceID is the single service UUID of a record.
	AttrServiceID uint16 = 0x0003

	// AttrProtocolDescList is the protocol descriptor list.
	AttrProtocolDescList uint16 = 0x0004

	// AttrLanguageBaseAttrIDList is the language base attribute ID list.
	AttrLanguageBaseAttrIDList uint16 = 0x0006

	// AttrProfileDescList is the Bluetooth profile descriptor list.
	AttrProfileDescList uint16 = 0x0009

	// AttrAdditionalProtoDescLists holds additional protocol descriptor
	// lists beyond AttrProtocolDescList.
	AttrAdditionalProtoDescLists uint16 = 0x000D
)

// Well-known protocol UUIDs used in protocol descriptor lists.
const (
	// ProtocolRFCOMM identifies the RFCOMM protocol. Its parameters (the
	// server channel number) are encoded as one byte uints.
	ProtocolRFCOMM uint16 = 0x0003

	// ProtocolL2CAP identifies the L2CAP protocol.
	ProtocolL2CAP uint16 = 0x0100
)
