package database

import "github.com/sdp-stack/sdp-go/pkg/wire"

// maxSearchNesting bounds recursion into nested sequences when looking
// for a UUID inside an attribute value.
const maxSearchNesting = 3

// ServiceSearch returns the first record past the given handle that
// contains every UUID in the pattern. Handle zero starts from the
// beginning. A non-zero handle that no longer names a live record ends
// the search, so a caller resuming a paged search over a record that
// was deleted in the meantime gets a clean miss instead of a rescan.
func (d *Database) ServiceSearch(after uint32, uuids [][]byte) (*Record, bool) {
	start := 0
	if after != 0 {
		i := d.indexOf(after)
		if i < 0 {
			return nil, false
		}
		start = i + 1
	}
	for _, rec := range d.records[start:] {
		if matchRecord(rec, uuids) {
			return rec, true
		}
	}
	return nil, false
}

// matchRecord reports whether the record contains every UUID in the
// pattern. UUID-typed attributes are compared directly; sequence-typed
// attributes are searched recursively.
func matchRecord(rec *Record, uuids [][]byte) bool {
	for _, u := range uuids {
		found := false
		for i := range rec.attrs {
			a := rec.view(i)
			switch a.Type {
			case wire.TypeUUID:
				found = wire.EqualUUID(a.Value, u)
			case wire.TypeSequence:
				found = uuidInSequence(a.Value, u, 0)
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func uuidInSequence(seq, u []byte, nest int) bool {
	if nest > maxSearchNesting {
		return false
	}
	for len(seq) > 0 {
		typ, n, consumed, ok := wire.ReadElementHeader(seq)
		if !ok || consumed+n > len(seq) {
			return false
		}
		val := seq[consumed : consumed+n]
		switch typ {
		case wire.TypeUUID:
			if wire.EqualUUID(val, u) {
				return true
			}
		case wire.TypeSequence:
			if uuidInSequence(val, u, nest+1) {
				return true
			}
		}
		seq = seq[consumed+n:]
	}
	return false
}
