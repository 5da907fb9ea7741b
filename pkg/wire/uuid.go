package wire

import "github.com/google/uuid"

// BaseUUID is the Bluetooth base UUID. 16- and 32-bit UUIDs are shorthand
// for a 128-bit UUID built on this base.
var BaseUUID = uuid.MustParse("00000000-0000-1000-8000-00805F9B34FB")

// Expand128 expands a big-endian encoded UUID of 2, 4 or 16 bytes to its
// 128-bit form. It returns false for any other input length.
func Expand128(b []byte) (uuid.UUID, bool) {
	var u uuid.UUID
	switch len(b) {
	case 2:
		u = BaseUUID
		u[2] = b[0]
		u[3] = b[1]
	case 4:
		u = BaseUUID
		copy(u[0:4], b)
	case 16:
		copy(u[:], b)
	default:
		return uuid.UUID{}, false
	}
	return u, true
}

// EqualUUID compares two big-endian encoded UUIDs, expanding each to its
// 128-bit form first. UUIDs of invalid length never compare equal.
func EqualUUID(a, b []byte) bool {
	ua, ok := Expand128(a)
	if !ok {
		return false
	}
	ub, ok := Expand128(b)
	if !ok {
		return false
	}
	return ua == ub
}

// IsBaseUUID reports whether the 128-bit UUID u is built on the Bluetooth
// base, i.e. whether it differs from BaseUUID only in the first four bytes.
func IsBaseUUID(u uuid.UUID) bool {
	for i := 4; i < len(u); i++ {
		if u[i] != BaseUUID[i] {
			return false
		}
	}
	return true
}
