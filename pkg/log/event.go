package log

import (
	"time"

	"github.com/sdp-stack/sdp-go/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether the local endpoint is serving or
	// originating on this connection.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// Peer is the remote device address.
	Peer string `cbor:"7,keyasint,omitempty"`

	// CID is the transport channel id.
	CID uint16 `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	PDU         *PDUEvent         `cbor:"11,keyasint,omitempty"` // Wire layer (decoded header)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the channel layer (raw PDU bytes).
	LayerTransport Layer = 0
	// LayerWire is the PDU encoding layer (decoded headers).
	LayerWire Layer = 1
	// LayerServer is the request handling layer.
	LayerServer Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol PDU (request/response).
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which end of the connection the local endpoint is.
type Role uint8

const (
	// RoleServer indicates the local endpoint accepted the connection.
	RoleServer Role = 0
	// RoleClient indicates the local endpoint originated the connection.
	RoleClient Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleServer:
		return "SERVER"
	case RoleClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw PDU bytes at the transport layer.
type FrameEvent struct {
	// Size is the PDU size in bytes (including the header).
	Size int `cbor:"1,keyasint"`

	// Data is the raw bytes (may be truncated for large PDUs).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// PDUEvent captures a decoded PDU header at the wire layer.
type PDUEvent struct {
	// ID is the PDU identifier.
	ID wire.PDUID `cbor:"1,keyasint"`

	// Transaction correlates request/response pairs.
	Transaction uint16 `cbor:"2,keyasint"`

	// ParamLen is the parameter length from the header.
	ParamLen uint16 `cbor:"3,keyasint"`

	// For error responses: the status code.
	Status *wire.Status `cbor:"4,keyasint,omitempty"`

	// Continued marks a response that carries a continuation token.
	Continued bool `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures connection lifecycle events.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
