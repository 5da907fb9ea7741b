package database

import "errors"

var (
	// ErrDatabaseFull is returned when the record table has reached its
	// configured capacity.
	ErrDatabaseFull = errors.New("record database is full")

	// ErrRecordNotFound is returned for operations on a handle that does
	// not name a live record.
	ErrRecordNotFound = errors.New("record not found")

	// ErrTooManyAttributes is returned when a record's attribute table
	// has reached its configured capacity.
	ErrTooManyAttributes = errors.New("attribute table is full")

	// ErrPadExhausted is returned when a record's pad buffer has no free
	// space left for another value.
	ErrPadExhausted = errors.New("record pad buffer is exhausted")

	// ErrValueTooLong is returned when an attribute value does not fit
	// the remaining pad budget and cannot be truncated.
	ErrValueTooLong = errors.New("attribute value exceeds pad budget")

	// ErrSequenceTooLong is returned by the sequence builders when even a
	// single element exceeds the maximum attribute length.
	ErrSequenceTooLong = errors.New("sequence exceeds maximum attribute length")

	// ErrNilValue is returned when AddAttribute is called without a value.
	ErrNilValue = errors.New("attribute value must not be nil")
)
