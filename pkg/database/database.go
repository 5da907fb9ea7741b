package database

import (
	"fmt"

	"github.com/sdp-stack/sdp-go/pkg/wire"
)

// HandleBase is the handle assigned to the first record ever created.
const HandleBase uint32 = 0x10000

// Default capacity limits.
const (
	DefaultMaxRecords         = 30
	DefaultMaxAttributes      = 25
	DefaultPadLength          = 600
	DefaultMaxAttributeLength = 400
)

// Config bounds the database. Zero fields take the defaults above.
type Config struct {
	MaxRecords         int
	MaxAttributes      int
	PadLength          int
	MaxAttributeLength int
}

func (c Config) withDefaults() Config {
	if c.MaxRecords <= 0 {
		c.MaxRecords = DefaultMaxRecords
	}
	if c.MaxAttributes <= 0 {
		c.MaxAttributes = DefaultMaxAttributes
	}
	if c.PadLength <= 0 {
		c.PadLength = DefaultPadLength
	}
	if c.MaxAttributeLength <= 0 {
		c.MaxAttributeLength = DefaultMaxAttributeLength
	}
	return c
}

// Database is a bounded table of service records kept in ascending
// handle order. See the package documentation for the concurrency
// contract.
type Database struct {
	cfg       Config
	records   []*Record
	diPrimary uint32
}

// New creates an empty database with the given limits.
func New(cfg Config) *Database {
	return &Database{cfg: cfg.withDefaults()}
}

// RecordCount returns the number of live records.
func (d *Database) RecordCount() int { return len(d.records) }

// MaxAttributeLength returns the configured serialized-value cap used
// by the sequence builders and the response fragmenter.
func (d *Database) MaxAttributeLength() int { return d.cfg.MaxAttributeLength }

// CreateRecord allocates a new record. Handles grow monotonically: the
// new handle is one past the highest live handle, or HandleBase when
// the table is empty. The service record handle attribute (ID 0x0000)
// is added automatically.
func (d *Database) CreateRecord() (*Record, error) {
	if len(d.records) >= d.cfg.MaxRecords {
		return nil, ErrDatabaseFull
	}
	handle := HandleBase
	if n := len(d.records); n > 0 {
		handle = d.records[n-1].handle + 1
	}
	rec := &Record{
		handle:     handle,
		pad:        make([]byte, 0, d.cfg.PadLength),
		maxAttrs:   d.cfg.MaxAttributes,
		maxAttrLen: d.cfg.MaxAttributeLength,
	}
	d.records = append(d.records, rec)

	var hv [4]byte
	wire.PutUint16(hv[:2], uint16(handle>>16))
	wire.PutUint16(hv[2:], uint16(handle))
	if err := rec.AddAttribute(wire.AttrServiceRecordHandle, wire.TypeUint, hv[:]); err != nil {
		d.records = d.records[:len(d.records)-1]
		return nil, err
	}
	return rec, nil
}

func (d *Database) indexOf(handle uint32) int {
	for i, rec := range d.records {
		if rec.handle == handle {
			return i
		}
	}
	return -1
}

// Record returns the record with the given handle.
func (d *Database) Record(handle uint32) (*Record, bool) {
	if i := d.indexOf(handle); i >= 0 {
		return d.records[i], true
	}
	return nil, false
}

// DeleteRecord removes the record with the given handle. Handle zero
// removes every record. Either way the Device ID primary handle is
// cleared when its record goes away.
func (d *Database) DeleteRecord(handle uint32) bool {
	if handle == 0 || len(d.records) == 0 {
		deleted := len(d.records) > 0
		d.records = d.records[:0]
		d.diPrimary = 0
		return deleted
	}
	i := d.indexOf(handle)
	if i < 0 {
		return false
	}
	d.records = append(d.records[:i], d.records[i+1:]...)
	if d.diPrimary == handle {
		d.diPrimary = 0
	}
	return true
}

// AddAttribute adds an attribute to the record with the given handle.
// See Record.AddAttribute for the replace and truncation semantics.
func (d *Database) AddAttribute(handle uint32, id uint16, typ wire.ElementType, val []byte) error {
	rec, ok := d.Record(handle)
	if !ok {
		return fmt.Errorf("handle 0x%X: %w", handle, ErrRecordNotFound)
	}
	return rec.AddAttribute(id, typ, val)
}

// DeleteAttribute removes an attribute from the record with the given
// handle.
func (d *Database) DeleteAttribute(handle uint32, id uint16) bool {
	rec, ok := d.Record(handle)
	if !ok {
		return false
	}
	return rec.DeleteAttribute(id)
}

// SetDeviceIDPrimaryHandle marks the record holding the primary Device
// ID service. The record must exist.
func (d *Database) SetDeviceIDPrimaryHandle(handle uint32) error {
	if _, ok := d.Record(handle); !ok {
		return fmt.Errorf("handle 0x%X: %w", handle, ErrRecordNotFound)
	}
	d.diPrimary = handle
	return nil
}

// DeviceIDPrimaryHandle returns the primary Device ID record handle, or
// zero when none is set.
func (d *Database) DeviceIDPrimaryHandle() uint32 { return d.diPrimary }
