package wire

// Status is an SDP status code. Codes below StatusNoRecordsMatch travel on
// the wire in error responses; codes at or above it are local-only reasons
// reported to the API caller and are never sent to a peer.
type Status uint16

const (
	// StatusSuccess indicates the operation completed successfully.
	StatusSuccess Status = 0x0000

	// StatusInvalidVersion indicates an unsupported protocol version.
	StatusInvalidVersion Status = 0x0001

	// StatusInvalidRecordHandle indicates the request named a service
	// record handle that does not exist.
	StatusInvalidRecordHandle Status = 0x0002

	// StatusInvalidRequestSyntax indicates a malformed request.
	StatusInvalidRequestSyntax Status = 0x0003

	// StatusInvalidPDUSize indicates the parameter length did not match
	// the actual request size.
	StatusInvalidPDUSize Status = 0x0004

	// StatusInvalidContinuationState indicates a continuation token that
	// does not match the server's stored state.
	StatusInvalidContinuationState Status = 0x0005

	// StatusNoResources indicates the server could not satisfy the
	// request within its resource limits.
	StatusNoResources Status = 0x0006

	// StatusIllegalParameter indicates a parameter value out of range.
	StatusIllegalParameter Status = 0x000B
)

// Local-only status codes, never placed on the wire.
const (
	// StatusNoRecordsMatch indicates a search matched nothing.
	StatusNoRecordsMatch Status = 0xFFF0

	// StatusConnFailed indicates the connection failed or timed out.
	StatusConnFailed Status = 0xFFF1

	// StatusCfgFailed indicates connection configuration failed.
	StatusCfgFailed Status = 0xFFF2

	// StatusDBFull indicates the record database is at capacity.
	StatusDBFull Status = 0xFFF4

	// StatusCancelled indicates the operation was cancelled locally.
	StatusCancelled Status = 0xFFF8
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusInvalidVersion:
		return "INVALID_VERSION"
	case StatusInvalidRecordHandle:
		return "INVALID_RECORD_HANDLE"
	case StatusInvalidRequestSyntax:
		return "INVALID_REQUEST_SYNTAX"
	case StatusInvalidPDUSize:
		return "INVALID_PDU_SIZE"
	case StatusInvalidContinuationState:
		return "INVALID_CONTINUATION_STATE"
	case StatusNoResources:
		return "NO_RESOURCES"
	case StatusIllegalParameter:
		return "ILLEGAL_PARAMETER"
	case StatusNoRecordsMatch:
		return "NO_RECORDS_MATCH"
	case StatusConnFailed:
		return "CONN_FAILED"
	case StatusCfgFailed:
		return "CFG_FAILED"
	case StatusDBFull:
		return "DB_FULL"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsLocal returns true for status codes that must never be sent to a peer.
func (s Status) IsLocal() bool {
	return s >= StatusNoRecordsMatch
}
