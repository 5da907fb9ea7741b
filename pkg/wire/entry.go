package wire

// AttributeEntryLen returns the number of bytes AppendAttributeEntry will
// produce for an attribute of the given type and value length: the 3-byte
// attribute ID element, the value's tag (plus explicit length where one is
// carried) and the value itself.
func AttributeEntryLen(typ ElementType, valLen int) int {
	n := 3

	if typ.Variable() {
		if valLen > 0xFF {
			n += 3
		} else {
			n += 2
		}
		return n + valLen
	}

	switch valLen {
	case 1, 2, 4, 8, 16:
		n++
	default:
		n += 2
	}
	return n + valLen
}

// AppendAttributeEntry serializes one attribute as it appears in an
// attribute list response: the attribute ID as a 2-byte uint element
// followed by the value element.
func AppendAttributeEntry(dst []byte, id uint16, typ ElementType, val []byte) []byte {
	dst = append(dst, Tag(TypeUint, SizeTwo))
	dst = AppendUint16(dst, id)

	if typ.Variable() {
		if len(val) > 0xFF {
			dst = append(dst, Tag(typ, SizeInNextWord))
			dst = AppendUint16(dst, uint16(len(val)))
		} else {
			dst = append(dst, Tag(typ, SizeInNextByte), byte(len(val)))
		}
		return append(dst, val...)
	}

	switch len(val) {
	case 1:
		dst = append(dst, Tag(typ, SizeOne))
	case 2:
		dst = append(dst, Tag(typ, SizeTwo))
	case 4:
		dst = append(dst, Tag(typ, SizeFour))
	case 8:
		dst = append(dst, Tag(typ, SizeEight))
	case 16:
		dst = append(dst, Tag(typ, SizeSixteen))
	default:
		dst = append(dst, Tag(typ, SizeInNextByte), byte(len(val)))
	}
	return append(dst, val...)
}

// AppendPartialAttributeEntry appends at most limit bytes of the entry's
// serialized form, starting at offset. It returns the extended buffer and
// the new offset, which equals AttributeEntryLen when the entry has been
// emitted in full.
func AppendPartialAttributeEntry(dst []byte, id uint16, typ ElementType, val []byte, limit int, offset uint16) ([]byte, uint16) {
	full := AppendAttributeEntry(nil, id, typ, val)

	n := len(full) - int(offset)
	if n > limit {
		n = limit
	}
	if n <= 0 {
		return dst, offset
	}
	dst = append(dst, full[offset:int(offset)+n]...)
	return dst, offset + uint16(n)
}
