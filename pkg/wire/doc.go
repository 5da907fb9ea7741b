// Package wire implements the SDP wire format: big-endian primitives,
// data element TLV tags, UUID normalization, PDU headers, continuation
// tokens, request field extraction and attribute entry serialization.
//
// All multi-byte integers on the wire are big-endian. A data element is
// introduced by a single tag byte combining the element type (upper five
// bits) and a size code (lower three bits); variable-length types carry
// their length in the following byte, word or long.
//
// Functions in this package never panic on peer-supplied input: every
// length and offset is validated against the remaining buffer before use.
package wire
