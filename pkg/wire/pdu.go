package wire

import "errors"

// PDUID identifies an SDP protocol data unit.
type PDUID uint8

const (
	// PDUErrorResponse is sent by the server when a request fails.
	PDUErrorResponse PDUID = 0x01

	// PDUServiceSearchRequest asks for the handles of matching records.
	PDUServiceSearchRequest PDUID = 0x02

	// PDUServiceSearchResponse carries matching record handles.
	PDUServiceSearchResponse PDUID = 0x03

	// PDUServiceAttrRequest asks for attributes of one record.
	PDUServiceAttrRequest PDUID = 0x04

	// PDUServiceAttrResponse carries the requested attribute list.
	PDUServiceAttrResponse PDUID = 0x05

	// PDUServiceSearchAttrRequest combines a search with attribute
	// retrieval over all matching records.
	PDUServiceSearchAttrRequest PDUID = 0x06

	// PDUServiceSearchAttrResponse carries per-record attribute lists.
	PDUServiceSearchAttrResponse PDUID = 0x07
)

// String returns the PDU name.
func (p PDUID) String() string {
	switch p {
	case PDUErrorResponse:
		return "ERROR_RESPONSE"
	case PDUServiceSearchRequest:
		return "SERVICE_SEARCH_REQ"
	case PDUServiceSearchResponse:
		return "SERVICE_SEARCH_RSP"
	case PDUServiceAttrRequest:
		return "SERVICE_ATTR_REQ"
	case PDUServiceAttrResponse:
		return "SERVICE_ATTR_RSP"
	case PDUServiceSearchAttrRequest:
		return "SERVICE_SEARCH_ATTR_REQ"
	case PDUServiceSearchAttrResponse:
		return "SERVICE_SEARCH_ATTR_RSP"
	default:
		return "UNKNOWN"
	}
}

const (
	// HeaderLen is the length of a PDU header: id, transaction number and
	// parameter length.
	HeaderLen = 5

	// ContinuationTokenLen is the length of a continuation token: the
	// fixed value of the token length byte when a token is present.
	ContinuationTokenLen = 2
)

// ErrBadContinuation reports a malformed continuation field.
var ErrBadContinuation = errors.New("malformed continuation field")

// AppendHeader appends a PDU header to dst.
func AppendHeader(dst []byte, id PDUID, transaction, paramLen uint16) []byte {
	dst = append(dst, byte(id))
	dst = AppendUint16(dst, transaction)
	return AppendUint16(dst, paramLen)
}

// AppendContinuation appends a continuation field to dst: a single zero
// byte when there is nothing to resume, else the token length followed by
// the big-endian offset.
func AppendContinuation(dst []byte, present bool, offset uint16) []byte {
	if !present {
		return append(dst, 0)
	}
	dst = append(dst, ContinuationTokenLen)
	return AppendUint16(dst, offset)
}

// ParseContinuation parses the continuation field at the start of p. The
// field is a length byte that must be zero or ContinuationTokenLen,
// followed by the big-endian offset when nonzero.
func ParseContinuation(p []byte) (present bool, offset uint16, err error) {
	if len(p) < 1 {
		return false, 0, ErrBadContinuation
	}
	if p[0] == 0 {
		return false, 0, nil
	}
	if p[0] != ContinuationTokenLen || len(p) < 1+ContinuationTokenLen {
		return false, 0, ErrBadContinuation
	}
	return true, Uint16(p[1:]), nil
}

// ErrorResponse builds a complete error response PDU. The optional text is
// placed after the status code; most deployments send none.
func ErrorResponse(transaction uint16, status Status, text string) []byte {
	paramLen := 2 + len(text)
	rsp := make([]byte, 0, HeaderLen+paramLen)
	rsp = AppendHeader(rsp, PDUErrorResponse, transaction, uint16(paramLen))
	rsp = AppendUint16(rsp, uint16(status))
	return append(rsp, text...)
}
