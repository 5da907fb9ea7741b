package server

import (
	"github.com/sdp-stack/sdp-go/pkg/log"
	"github.com/sdp-stack/sdp-go/pkg/wire"
)

// handleRequest validates the PDU framing and routes to a handler.
// Called with the stack mutex held.
func (s *Stack) handleRequest(c *conn, data []byte) {
	s.restartTimer(c)

	// Need at least the pdu id and transaction number to answer with a
	// meaningful error; below that the transaction number is zero.
	if len(data) < 3 {
		s.sendError(c, 0, wire.StatusInvalidRequestSyntax)
		return
	}
	id := wire.PDUID(data[0])
	trans := wire.Uint16(data[1:])

	if len(data) < wire.HeaderLen {
		s.sendError(c, trans, wire.StatusInvalidRequestSyntax)
		return
	}
	paramLen := wire.Uint16(data[3:])
	if wire.HeaderLen+int(paramLen) != len(data) {
		s.sendError(c, trans, wire.StatusInvalidPDUSize)
		return
	}
	params := data[wire.HeaderLen:]

	s.logEvent(c, log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		PDU: &log.PDUEvent{
			ID:          id,
			Transaction: trans,
			ParamLen:    paramLen,
		},
	})

	switch id {
	case wire.PDUServiceSearchRequest:
		s.handleServiceSearch(c, trans, params)
	case wire.PDUServiceAttrRequest:
		s.handleServiceAttr(c, trans, params)
	case wire.PDUServiceSearchAttrRequest:
		s.handleServiceSearchAttr(c, trans, params)
	default:
		s.sendError(c, trans, wire.StatusInvalidRequestSyntax)
	}
}

// sendError builds and sends an error response. Local-only status codes
// never reach this path.
func (s *Stack) sendError(c *conn, trans uint16, status wire.Status) {
	text := ""
	if s.cfg.ErrorText {
		text = status.String()
	}
	s.logEvent(c, log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerWire,
		Category:  log.CategoryError,
		PDU: &log.PDUEvent{
			ID:          wire.PDUErrorResponse,
			Transaction: trans,
			ParamLen:    uint16(2 + len(text)),
			Status:      &status,
		},
	})
	s.send(c, wire.ErrorResponse(trans, status, text))
}
