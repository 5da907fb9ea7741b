package server

import (
	"github.com/sdp-stack/sdp-go/pkg/database"
	"github.com/sdp-stack/sdp-go/pkg/wire"
)

// handleServiceSearch answers a ServiceSearchRequest: the handles of
// every matching record, paged by the continuation offset.
func (s *Stack) handleServiceSearch(c *conn, trans uint16, params []byte) {
	uuids, rest, err := wire.ExtractUUIDSequence(params)
	if err != nil || len(uuids) == 0 {
		s.sendError(c, trans, wire.StatusInvalidRequestSyntax)
		return
	}
	// Max replies plus at least the continuation length byte.
	if len(rest) < 3 {
		s.sendError(c, trans, wire.StatusInvalidRequestSyntax)
		return
	}
	maxReplies := int(wire.Uint16(rest))
	rest = rest[2:]

	// Collect every match up to the absolute cap; max_replies bounds how
	// many handles one response may carry, the rest page out through the
	// continuation offset.
	var handles []uint32
	cursor := uint32(0)
	for len(handles) < s.cfg.MaxSearchRecords {
		rec, ok := s.db.ServiceSearch(cursor, uuids)
		if !ok {
			break
		}
		handles = append(handles, rec.Handle())
		cursor = rec.Handle()
	}

	present, contOffset, err := wire.ParseContinuation(rest)
	if err != nil {
		s.sendError(c, trans, wire.StatusInvalidContinuationState)
		return
	}
	var rem int
	if present {
		if contOffset != c.contOffset || len(handles) < int(contOffset) {
			s.sendError(c, trans, wire.StatusInvalidContinuationState)
			return
		}
		rem = len(handles) - int(contOffset)
	} else {
		contOffset = 0
		c.contOffset = 0
		rem = len(handles)
	}

	cur := (int(c.mtu) - searchRspHeaderLen) / 4
	if maxReplies < cur {
		cur = maxReplies
	}
	isCont := false
	switch {
	case rem <= cur:
		cur = rem
	case cur == 0:
		// A zero max replies cap can never page forward; report the
		// total and close out the exchange rather than hand back a
		// token that makes no progress.
	default:
		c.contOffset += uint16(cur)
		isCont = true
	}

	contLen := 1
	if isCont {
		contLen += wire.ContinuationTokenLen
	}
	paramLen := 4 + 4*cur + contLen
	rsp := make([]byte, 0, wire.HeaderLen+paramLen)
	rsp = wire.AppendHeader(rsp, wire.PDUServiceSearchResponse, trans, uint16(paramLen))
	rsp = wire.AppendUint16(rsp, uint16(len(handles)))
	rsp = wire.AppendUint16(rsp, uint16(cur))
	for _, h := range handles[contOffset : int(contOffset)+cur] {
		rsp = wire.AppendUint32(rsp, h)
	}
	rsp = wire.AppendContinuation(rsp, isCont, c.contOffset)
	s.send(c, rsp)
}

// handleServiceAttr answers a ServiceAttributeRequest for one record,
// fragmenting the attribute list across responses when it exceeds the
// peer's maximum list length.
func (s *Stack) handleServiceAttr(c *conn, trans uint16, params []byte) {
	if len(params) < 6 {
		s.sendError(c, trans, wire.StatusInvalidRecordHandle)
		return
	}
	handle := wire.Uint32(params)
	maxList := int(wire.Uint16(params[4:]))
	if maxList > int(c.mtu)-attrRspHeaderLen {
		maxList = int(c.mtu) - attrRspHeaderLen
	}

	ranges, rest, err := wire.ExtractAttrSequence(params[6:])
	if err != nil || len(rest) < 1 {
		s.sendError(c, trans, wire.StatusInvalidRequestSyntax)
		return
	}
	saved := append([]wire.AttrRange(nil), ranges...)

	rec, ok := s.db.Record(handle)
	if !ok {
		s.sendError(c, trans, wire.StatusInvalidRecordHandle)
		return
	}
	if maxList < 4 {
		s.sendError(c, trans, wire.StatusIllegalParameter)
		return
	}

	present, contOffset, err := wire.ParseContinuation(rest)
	if err != nil {
		s.sendError(c, trans, wire.StatusInvalidContinuationState)
		return
	}
	buf := make([]byte, 0, maxList)
	if present {
		if contOffset != c.contOffset || c.cont.nextAttrIndex >= len(ranges) {
			s.sendError(c, trans, wire.StatusInvalidContinuationState)
			return
		}
		ranges[c.cont.nextAttrIndex].Start = c.cont.nextAttrStartID
	} else {
		c.contOffset = 0
		c.cont = continuation{}
		buf = append(buf, 0, 0, 0) // room for the list sequence header
	}

	buf, _, status := s.appendAttributes(c, rec, ranges, buf, maxList)
	if status != wire.StatusSuccess {
		s.sendError(c, trans, status)
		return
	}

	lenToSend := len(buf)

	// A continued request that adds nothing means the record changed
	// under the continuation (the resumed attribute is gone). Error out
	// instead of bouncing the same token back and forth forever.
	if present && lenToSend == 0 {
		s.sendError(c, trans, wire.StatusInvalidContinuationState)
		return
	}

	skip := 0
	if !present {
		seqLen := attributeSeqLen(rec, saved)
		c.listLen = seqLen + 3
		if c.listLen > 255 {
			buf[0] = wire.Tag(wire.TypeSequence, wire.SizeInNextWord)
			wire.PutUint16(buf[1:], uint16(seqLen))
		} else {
			skip = 1
			buf[1] = wire.Tag(wire.TypeSequence, wire.SizeInNextByte)
			buf[2] = byte(seqLen)
			c.listLen--
			lenToSend--
		}
	}

	s.sendAttrResponse(c, wire.PDUServiceAttrResponse, trans, buf[skip:skip+lenToSend])
}

// handleServiceSearchAttr answers a ServiceSearchAttributeRequest: the
// attribute lists of every matching record, each wrapped in its own
// sequence header, all inside one outer sequence.
func (s *Stack) handleServiceSearchAttr(c *conn, trans uint16, params []byte) {
	uuids, rest, err := wire.ExtractUUIDSequence(params)
	if err != nil || len(uuids) == 0 || len(rest) < 2 {
		s.sendError(c, trans, wire.StatusInvalidRequestSyntax)
		return
	}
	maxList := int(wire.Uint16(rest))
	if maxList > int(c.mtu)-attrRspHeaderLen {
		maxList = int(c.mtu) - attrRspHeaderLen
	}

	ranges, rest, err := wire.ExtractAttrSequence(rest[2:])
	if err != nil || len(rest) < 1 {
		s.sendError(c, trans, wire.StatusInvalidRequestSyntax)
		return
	}
	saved := append([]wire.AttrRange(nil), ranges...)

	if maxList < 4 {
		s.sendError(c, trans, wire.StatusIllegalParameter)
		return
	}

	present, contOffset, err := wire.ParseContinuation(rest)
	if err != nil {
		s.sendError(c, trans, wire.StatusInvalidContinuationState)
		return
	}
	buf := make([]byte, 0, maxList)
	if present {
		if contOffset != c.contOffset || c.cont.nextAttrIndex >= len(ranges) {
			s.sendError(c, trans, wire.StatusInvalidContinuationState)
			return
		}
		ranges[c.cont.nextAttrIndex].Start = c.cont.nextAttrStartID
	} else {
		c.contOffset = 0
		c.cont = continuation{}
		buf = append(buf, 0, 0, 0) // room for the outer sequence header
	}

	maxxed := false
	prev := c.cont.prevRecordHandle
	for {
		rec, ok := s.db.ServiceSearch(prev, uuids)
		if !ok {
			break
		}
		seqStart := len(buf)
		if !c.cont.seqHeaderSent {
			if maxList-len(buf) < 3 {
				c.cont.nextAttrIndex = 0
				c.cont.nextAttrStartID = ranges[0].Start
				break
			}
			buf = append(buf, 0, 0, 0) // room for this record's header
		}

		var status wire.Status
		buf, maxxed, status = s.appendAttributes(c, rec, ranges, buf, maxList)
		if status != wire.StatusSuccess {
			s.sendError(c, trans, status)
			return
		}

		if !c.cont.seqHeaderSent {
			seqLen := attributeSeqLen(rec, saved)
			if seqLen != 0 {
				buf[seqStart] = wire.Tag(wire.TypeSequence, wire.SizeInNextWord)
				wire.PutUint16(buf[seqStart+1:], uint16(seqLen))
				if maxxed {
					c.cont.seqHeaderSent = true
				}
			} else {
				// Nothing from this record; drop its reserved header.
				buf = buf[:seqStart]
			}
		}
		if maxxed {
			break
		}

		copy(ranges, saved)
		c.cont.nextAttrIndex = 0
		c.cont.prevRecordHandle = rec.Handle()
		c.cont.seqHeaderSent = false
		prev = rec.Handle()
	}

	lenToSend := len(buf)

	// A continued request that adds nothing means the database changed
	// under the continuation (a matched record is gone). Error out
	// instead of bouncing the same token back and forth forever.
	if present && lenToSend == 0 {
		s.sendError(c, trans, wire.StatusInvalidContinuationState)
		return
	}

	skip := 0
	if !present {
		c.listLen = s.searchAttrListLen(uuids, saved) + 3
		if c.listLen > 255 {
			buf[0] = wire.Tag(wire.TypeSequence, wire.SizeInNextWord)
			wire.PutUint16(buf[1:], uint16(c.listLen-3))
		} else {
			skip = 1
			buf[1] = wire.Tag(wire.TypeSequence, wire.SizeInNextByte)
			buf[2] = byte(c.listLen - 3)
			c.listLen--
			lenToSend--
		}
	}

	s.sendAttrResponse(c, wire.PDUServiceSearchAttrResponse, trans, buf[skip:skip+lenToSend])
}

// sendAttrResponse frames an attribute list fragment: byte count,
// payload, continuation field derived from how much of the list has
// been sent so far.
func (s *Stack) sendAttrResponse(c *conn, id wire.PDUID, trans uint16, payload []byte) {
	c.contOffset += uint16(len(payload))
	isCont := int(c.contOffset) < c.listLen

	contLen := 1
	if isCont {
		contLen += wire.ContinuationTokenLen
	}
	paramLen := 2 + len(payload) + contLen
	rsp := make([]byte, 0, wire.HeaderLen+paramLen)
	rsp = wire.AppendHeader(rsp, id, trans, uint16(paramLen))
	rsp = wire.AppendUint16(rsp, uint16(len(payload)))
	rsp = append(rsp, payload...)
	rsp = wire.AppendContinuation(rsp, isCont, c.contOffset)
	s.send(c, rsp)
}

// appendAttributes serializes the attributes of one record that fall in
// the requested ranges, stopping when the list length budget runs out.
// It resumes from and updates the block's continuation cursor. The
// returned bool reports whether the budget was exhausted mid-record.
func (s *Stack) appendAttributes(c *conn, rec *database.Record, ranges []wire.AttrRange, buf []byte, maxList int) ([]byte, bool, wire.Status) {
	maxxed := false
	xx := c.cont.nextAttrIndex
	for ; xx < len(ranges); xx++ {
		attr, ok := rec.FindAttributeInRange(ranges[xx].Start, ranges[xx].End)
		if !ok {
			continue
		}
		rem := maxList - len(buf)
		if rem <= 0 {
			c.cont.nextAttrIndex = xx
			c.cont.nextAttrStartID = attr.ID
			maxxed = true
			break
		}
		entryLen := wire.AttributeEntryLen(attr.Type, len(attr.Value))

		if c.cont.attrOffset != 0 {
			// A partial entry is pending from the previous fragment.
			if entryLen < int(c.cont.attrOffset) {
				return buf, false, wire.StatusInvalidContinuationState
			}
			var off uint16
			buf, off = wire.AppendPartialAttributeEntry(buf, attr.ID, attr.Type, attr.Value, rem, c.cont.attrOffset)
			c.cont.attrOffset = off
			if int(off) != entryLen {
				maxxed = true
				break
			}
			c.cont.attrOffset = 0
		} else if rem < entryLen {
			if entryLen >= s.cfg.MaxAttributeLength {
				return buf, false, wire.StatusNoResources
			}
			var off uint16
			buf, off = wire.AppendPartialAttributeEntry(buf, attr.ID, attr.Type, attr.Value, rem, 0)
			c.cont.attrOffset = off
			c.cont.nextAttrIndex = xx
			c.cont.nextAttrStartID = attr.ID
			maxxed = true
			break
		} else {
			buf = wire.AppendAttributeEntry(buf, attr.ID, attr.Type, attr.Value)
		}

		// A range sticks until it yields no more attributes.
		if ranges[xx].Start != ranges[xx].End {
			ranges[xx].Start = attr.ID + 1
			xx--
		}
	}
	if xx == len(ranges) {
		c.cont.nextAttrIndex = 0
	}
	return buf, maxxed, wire.StatusSuccess
}

// attributeSeqLen returns the serialized length of every attribute of
// the record falling in the requested ranges, without a budget.
func attributeSeqLen(rec *database.Record, ranges []wire.AttrRange) int {
	seq := append([]wire.AttrRange(nil), ranges...)
	total := 0
	for xx := 0; xx < len(seq); xx++ {
		attr, ok := rec.FindAttributeInRange(seq[xx].Start, seq[xx].End)
		if !ok {
			continue
		}
		total += wire.AttributeEntryLen(attr.Type, len(attr.Value))
		if seq[xx].Start != seq[xx].End {
			seq[xx].Start = attr.ID + 1
			xx--
		}
	}
	return total
}

// searchAttrListLen returns the full body length of a search-attribute
// response: each matching record's attribute list plus its 3-byte
// header, records with nothing in range skipped.
func (s *Stack) searchAttrListLen(uuids [][]byte, ranges []wire.AttrRange) int {
	total := 0
	cursor := uint32(0)
	for {
		rec, ok := s.db.ServiceSearch(cursor, uuids)
		if !ok {
			break
		}
		cursor = rec.Handle()
		if l := attributeSeqLen(rec, ranges); l != 0 {
			total += 3 + l
		}
	}
	return total
}
