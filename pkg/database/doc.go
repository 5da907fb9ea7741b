// Package database implements the SDP service record database: a bounded
// table of records, each holding its attributes in ascending ID order with
// the value bytes bump-allocated from a per-record pad buffer.
//
// The database is not safe for concurrent use. The server stack serializes
// request handling, timer callbacks and its own database reads on a single
// lock; applications that mutate records while the stack is live must
// arrange the same serialization (most register their records up front).
package database
