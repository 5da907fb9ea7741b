package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdp-stack/sdp-go/pkg/wire"
)

// searchRequest builds the parameters of a ServiceSearchRequest: UUID
// pattern, maximum replies and continuation field.
func searchRequest(maxReplies uint16, cont []byte, uuids ...uint16) []byte {
	p := uuidSeqParam(uuids...)
	p = wire.AppendUint16(p, maxReplies)
	if cont == nil {
		return append(p, 0)
	}
	return append(p, cont...)
}

// attrRequest builds the parameters of a ServiceAttributeRequest.
func attrRequest(handle uint32, maxList uint16, attrSeq, cont []byte) []byte {
	p := wire.AppendUint32(nil, handle)
	p = wire.AppendUint16(p, maxList)
	p = append(p, attrSeq...)
	if cont == nil {
		return append(p, 0)
	}
	return append(p, cont...)
}

// searchAttrRequest builds the parameters of a
// ServiceSearchAttributeRequest.
func searchAttrRequest(maxList uint16, attrSeq, cont []byte, uuids ...uint16) []byte {
	p := uuidSeqParam(uuids...)
	p = wire.AppendUint16(p, maxList)
	p = append(p, attrSeq...)
	if cont == nil {
		return append(p, 0)
	}
	return append(p, cont...)
}

// splitAttrResponse takes an attribute response apart: the payload
// fragment and the trailing continuation field.
func splitAttrResponse(t *testing.T, params []byte) (payload, cont []byte) {
	t.Helper()
	require.GreaterOrEqual(t, len(params), 3)
	count := int(wire.Uint16(params))
	require.GreaterOrEqual(t, len(params), 2+count+1)
	return params[2 : 2+count], params[2+count:]
}

// handleValue returns the wire form of the automatic record handle
// attribute value.
func handleValue(handle uint32) []byte {
	return wire.AppendUint32(nil, handle)
}

// classValue returns the stored value of a single-UUID service class
// list.
func classValue(class uint16) []byte {
	v := []byte{wire.Tag(wire.TypeUUID, wire.SizeTwo)}
	return wire.AppendUint16(v, class)
}

func TestServiceSearchSinglePage(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	db := s.Database()
	want := []uint32{
		addClassRecord(t, db, 0x1101),
		addClassRecord(t, db, 0x1101),
	}
	addClassRecord(t, db, 0x110A) // different class, must not match

	acceptConnection(s, 0x50, 0)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchRequest, 1, searchRequest(10, nil, 0x1101)))

	id, trans, body := parseResponse(t, tr.lastWrite(t))
	require.Equal(t, wire.PDUServiceSearchResponse, id)
	require.Equal(t, uint16(1), trans)

	require.Equal(t, uint16(2), wire.Uint16(body))
	require.Equal(t, uint16(2), wire.Uint16(body[2:]))
	got := []uint32{wire.Uint32(body[4:]), wire.Uint32(body[8:])}
	assert.Equal(t, want, got)
	assert.Equal(t, []byte{0}, body[12:])
}

func TestServiceSearchNoMatches(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	addClassRecord(t, s.Database(), 0x1101)

	acceptConnection(s, 0x50, 0)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchRequest, 1, searchRequest(10, nil, 0x1200)))

	_, _, body := parseResponse(t, tr.lastWrite(t))
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, body)
}

// A small maximum reply count bounds each response while the remaining
// handles page out through the continuation offset.
func TestServiceSearchPagingByMaxReplies(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	db := s.Database()
	var want []uint32
	for i := 0; i < 5; i++ {
		want = append(want, addClassRecord(t, db, 0x1101))
	}

	acceptConnection(s, 0x50, 0)

	s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchRequest, 1, searchRequest(2, nil, 0x1101)))
	_, _, body := parseResponse(t, tr.lastWrite(t))
	require.Equal(t, uint16(5), wire.Uint16(body))
	require.Equal(t, uint16(2), wire.Uint16(body[2:]))
	got := []uint32{wire.Uint32(body[4:]), wire.Uint32(body[8:])}
	cont := body[12:]
	require.Equal(t, []byte{wire.ContinuationTokenLen, 0, 2}, cont)

	s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchRequest, 2, searchRequest(5, cont, 0x1101)))
	_, _, body = parseResponse(t, tr.lastWrite(t))
	require.Equal(t, uint16(5), wire.Uint16(body))
	require.Equal(t, uint16(3), wire.Uint16(body[2:]))
	got = append(got, wire.Uint32(body[4:]), wire.Uint32(body[8:]), wire.Uint32(body[12:]))
	assert.Equal(t, []byte{0}, body[16:])

	assert.Equal(t, want, got)
}

func TestServiceSearchZeroMaxReplies(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	db := s.Database()
	for i := 0; i < 2; i++ {
		addClassRecord(t, db, 0x1101)
	}

	acceptConnection(s, 0x50, 0)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchRequest, 1, searchRequest(0, nil, 0x1101)))

	// Total count still reported, but the exchange completes: an empty
	// page must not come with a continuation token.
	_, _, body := parseResponse(t, tr.lastWrite(t))
	require.Equal(t, uint16(2), wire.Uint16(body))
	require.Equal(t, uint16(0), wire.Uint16(body[2:]))
	assert.Equal(t, []byte{0}, body[4:])
}

func TestServiceSearchRecordCap(t *testing.T) {
	s, tr := newTestStack(t, Config{MaxRecords: 10, MaxSearchRecords: 3})
	db := s.Database()
	for i := 0; i < 5; i++ {
		addClassRecord(t, db, 0x1101)
	}

	acceptConnection(s, 0x50, 0)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchRequest, 1, searchRequest(10, nil, 0x1101)))

	_, _, body := parseResponse(t, tr.lastWrite(t))
	assert.Equal(t, uint16(3), wire.Uint16(body))
	assert.Equal(t, uint16(3), wire.Uint16(body[2:]))
}

func TestServiceSearchBadRequests(t *testing.T) {
	cases := []struct {
		name   string
		params []byte
		want   wire.Status
	}{
		{
			name:   "empty uuid sequence",
			params: searchRequest(10, nil),
			want:   wire.StatusInvalidRequestSyntax,
		},
		{
			name:   "not a sequence",
			params: []byte{wire.Tag(wire.TypeUint, wire.SizeTwo), 0x11, 0x01, 0, 10, 0},
			want:   wire.StatusInvalidRequestSyntax,
		},
		{
			name:   "missing max replies",
			params: append(uuidSeqParam(0x1101), 0),
			want:   wire.StatusInvalidRequestSyntax,
		},
		{
			name:   "bad continuation length byte",
			params: append(wire.AppendUint16(uuidSeqParam(0x1101), 10), 3, 0, 0, 0),
			want:   wire.StatusInvalidContinuationState,
		},
		{
			name:   "stale continuation offset",
			params: searchRequest(10, []byte{wire.ContinuationTokenLen, 0, 9}, 0x1101),
			want:   wire.StatusInvalidContinuationState,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, tr := newTestStack(t, Config{})
			addClassRecord(t, s.Database(), 0x1101)
			acceptConnection(s, 0x50, 0)

			s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchRequest, 5, tc.params))
			assert.Equal(t, tc.want, requireError(t, tr.lastWrite(t), 5))
		})
	}
}

func TestServiceAttrFullList(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	handle := addClassRecord(t, s.Database(), 0x1101)

	acceptConnection(s, 0x50, 0)
	req := attrRequest(handle, 512, attrRangeParam(0x0000, 0xFFFF), nil)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceAttrRequest, 3, req))

	id, trans, params := parseResponse(t, tr.lastWrite(t))
	require.Equal(t, wire.PDUServiceAttrResponse, id)
	require.Equal(t, uint16(3), trans)
	payload, cont := splitAttrResponse(t, params)
	require.Equal(t, []byte{0}, cont)

	want := []byte{wire.Tag(wire.TypeSequence, wire.SizeInNextByte), 16}
	want = wire.AppendAttributeEntry(want, wire.AttrServiceRecordHandle, wire.TypeUint, handleValue(handle))
	want = wire.AppendAttributeEntry(want, wire.AttrServiceClassIDList, wire.TypeSequence, classValue(0x1101))
	assert.Equal(t, want, payload)
}

func TestServiceAttrSubsetRange(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	handle := addClassRecord(t, s.Database(), 0x1101)

	acceptConnection(s, 0x50, 0)
	req := attrRequest(handle, 512, attrRangeParam(wire.AttrServiceClassIDList, wire.AttrServiceClassIDList), nil)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceAttrRequest, 3, req))

	_, _, params := parseResponse(t, tr.lastWrite(t))
	payload, _ := splitAttrResponse(t, params)

	want := []byte{wire.Tag(wire.TypeSequence, wire.SizeInNextByte), 8}
	want = wire.AppendAttributeEntry(want, wire.AttrServiceClassIDList, wire.TypeSequence, classValue(0x1101))
	assert.Equal(t, want, payload)
}

// A list longer than the client's maximum fragments across responses;
// the reassembled fragments must equal the single-shot encoding.
func TestServiceAttrFragmentation(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	handle := addClassRecord(t, s.Database(), 0x1101)
	text := make([]byte, 40)
	for i := range text {
		text[i] = byte('a' + i%26)
	}
	require.NoError(t, s.Database().AddAttribute(handle, 0x0100, wire.TypeText, text))

	acceptConnection(s, 0x50, 0)

	var got []byte
	var cont []byte
	frags := 0
	for {
		req := attrRequest(handle, 24, attrRangeParam(0x0000, 0xFFFF), cont)
		s.OnDataInd(0x50, buildFrame(wire.PDUServiceAttrRequest, uint16(frags+1), req))
		id, _, params := parseResponse(t, tr.lastWrite(t))
		require.Equal(t, wire.PDUServiceAttrResponse, id)

		var payload []byte
		payload, cont = splitAttrResponse(t, params)
		got = append(got, payload...)
		frags++
		require.Less(t, frags, 10, "continuation never completed")
		if cont[0] == 0 {
			break
		}
	}
	require.Equal(t, 3, frags)

	want := []byte{wire.Tag(wire.TypeSequence, wire.SizeInNextByte), 61}
	want = wire.AppendAttributeEntry(want, wire.AttrServiceRecordHandle, wire.TypeUint, handleValue(handle))
	want = wire.AppendAttributeEntry(want, wire.AttrServiceClassIDList, wire.TypeSequence, classValue(0x1101))
	want = wire.AppendAttributeEntry(want, 0x0100, wire.TypeText, text)
	assert.Equal(t, want, got)
}

func TestServiceAttrBadRequests(t *testing.T) {
	attrAll := attrRangeParam(0x0000, 0xFFFF)
	cases := []struct {
		name   string
		params func(handle uint32) []byte
		want   wire.Status
	}{
		{
			name:   "parameters too short",
			params: func(uint32) []byte { return []byte{0, 1, 0, 0, 0} },
			want:   wire.StatusInvalidRecordHandle,
		},
		{
			name:   "unknown handle",
			params: func(h uint32) []byte { return attrRequest(h+99, 512, attrAll, nil) },
			want:   wire.StatusInvalidRecordHandle,
		},
		{
			name:   "list budget below minimum",
			params: func(h uint32) []byte { return attrRequest(h, 3, attrAll, nil) },
			want:   wire.StatusIllegalParameter,
		},
		{
			name: "malformed attribute sequence",
			params: func(h uint32) []byte {
				bad := []byte{wire.Tag(wire.TypeSequence, wire.SizeInNextByte), 3, wire.Tag(wire.TypeUUID, wire.SizeTwo), 0, 0}
				return attrRequest(h, 512, bad, nil)
			},
			want: wire.StatusInvalidRequestSyntax,
		},
		{
			name: "missing continuation field",
			params: func(h uint32) []byte {
				p := wire.AppendUint32(nil, h)
				p = wire.AppendUint16(p, 512)
				return append(p, attrAll...)
			},
			want: wire.StatusInvalidRequestSyntax,
		},
		{
			name:   "unsolicited continuation token",
			params: func(h uint32) []byte { return attrRequest(h, 512, attrAll, []byte{wire.ContinuationTokenLen, 0, 7}) },
			want:   wire.StatusInvalidContinuationState,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, tr := newTestStack(t, Config{})
			handle := addClassRecord(t, s.Database(), 0x1101)
			acceptConnection(s, 0x50, 0)

			s.OnDataInd(0x50, buildFrame(wire.PDUServiceAttrRequest, 9, tc.params(handle)))
			assert.Equal(t, tc.want, requireError(t, tr.lastWrite(t), 9))
		})
	}
}

// An attribute that can never fit a response fragment is a hard error,
// not an endless continuation.
func TestServiceAttrOversizeAttribute(t *testing.T) {
	s, tr := newTestStack(t, Config{MaxAttributeLength: 30})
	handle := addClassRecord(t, s.Database(), 0x1101)
	require.NoError(t, s.Database().AddAttribute(handle, 0x0100, wire.TypeText, make([]byte, 30)))

	acceptConnection(s, 0x50, 0)
	req := attrRequest(handle, 20, attrRangeParam(0x0100, 0x0100), nil)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceAttrRequest, 4, req))

	assert.Equal(t, wire.StatusNoResources, requireError(t, tr.lastWrite(t), 4))
}

func TestServiceAttrContinuationAfterAttributeDelete(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	db := s.Database()
	handle := addClassRecord(t, db, 0x1101)
	require.NoError(t, db.AddAttribute(handle, 0x0100, wire.TypeText, make([]byte, 40)))

	acceptConnection(s, 0x50, 0)
	req := attrRequest(handle, 24, attrRangeParam(0x0000, 0xFFFF), nil)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceAttrRequest, 1, req))
	_, _, params := parseResponse(t, tr.lastWrite(t))
	_, cont := splitAttrResponse(t, params)
	require.Equal(t, byte(wire.ContinuationTokenLen), cont[0])

	require.True(t, db.DeleteAttribute(handle, 0x0100))

	req = attrRequest(handle, 24, attrRangeParam(0x0000, 0xFFFF), cont)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceAttrRequest, 2, req))
	assert.Equal(t, wire.StatusInvalidContinuationState, requireError(t, tr.lastWrite(t), 2))
}

func TestServiceSearchAttrTwoRecords(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	db := s.Database()
	h1 := addClassRecord(t, db, 0x1101)
	h2 := addClassRecord(t, db, 0x1101)
	addClassRecord(t, db, 0x110A)

	acceptConnection(s, 0x50, 0)
	req := searchAttrRequest(512, attrRangeParam(0x0000, 0xFFFF), nil, 0x1101)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchAttrRequest, 2, req))

	id, trans, params := parseResponse(t, tr.lastWrite(t))
	require.Equal(t, wire.PDUServiceSearchAttrResponse, id)
	require.Equal(t, uint16(2), trans)
	payload, cont := splitAttrResponse(t, params)
	require.Equal(t, []byte{0}, cont)

	inner := func(h uint32) []byte {
		p := []byte{wire.Tag(wire.TypeSequence, wire.SizeInNextWord), 0, 16}
		p = wire.AppendAttributeEntry(p, wire.AttrServiceRecordHandle, wire.TypeUint, handleValue(h))
		return wire.AppendAttributeEntry(p, wire.AttrServiceClassIDList, wire.TypeSequence, classValue(0x1101))
	}
	want := []byte{wire.Tag(wire.TypeSequence, wire.SizeInNextByte), 38}
	want = append(want, inner(h1)...)
	want = append(want, inner(h2)...)
	assert.Equal(t, want, payload)
}

// A record that matches the search but has nothing in the requested
// range contributes no list, not an empty one.
func TestServiceSearchAttrSkipsEmptyList(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	db := s.Database()
	addClassRecord(t, db, 0x1101)
	h2 := addClassRecord(t, db, 0x1101)
	require.NoError(t, db.AddAttribute(h2, 0x0100, wire.TypeText, []byte("srv")))

	acceptConnection(s, 0x50, 0)
	req := searchAttrRequest(512, attrRangeParam(0x0100, 0x01FF), nil, 0x1101)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchAttrRequest, 2, req))

	_, _, params := parseResponse(t, tr.lastWrite(t))
	payload, _ := splitAttrResponse(t, params)

	inner := wire.AppendAttributeEntry([]byte{wire.Tag(wire.TypeSequence, wire.SizeInNextWord), 0, 8}, 0x0100, wire.TypeText, []byte("srv"))
	want := append([]byte{wire.Tag(wire.TypeSequence, wire.SizeInNextByte), byte(len(inner))}, inner...)
	assert.Equal(t, want, payload)
}

func TestServiceSearchAttrFragmentation(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	db := s.Database()
	handles := []uint32{
		addClassRecord(t, db, 0x1101),
		addClassRecord(t, db, 0x1101),
	}
	for _, h := range handles {
		require.NoError(t, db.AddAttribute(h, 0x0100, wire.TypeText, []byte("0123456789abcdef")))
	}

	acceptConnection(s, 0x50, 0)

	var got []byte
	var cont []byte
	frags := 0
	for {
		req := searchAttrRequest(24, attrRangeParam(0x0000, 0xFFFF), cont, 0x1101)
		s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchAttrRequest, uint16(frags+1), req))
		id, _, params := parseResponse(t, tr.lastWrite(t))
		require.Equal(t, wire.PDUServiceSearchAttrResponse, id)

		var payload []byte
		payload, cont = splitAttrResponse(t, params)
		require.LessOrEqual(t, len(payload), 24)
		got = append(got, payload...)
		frags++
		require.Less(t, frags, 20, "continuation never completed")
		if cont[0] == 0 {
			break
		}
	}
	require.Greater(t, frags, 1)

	inner := func(h uint32) []byte {
		p := []byte{wire.Tag(wire.TypeSequence, wire.SizeInNextWord), 0, 37}
		p = wire.AppendAttributeEntry(p, wire.AttrServiceRecordHandle, wire.TypeUint, handleValue(h))
		p = wire.AppendAttributeEntry(p, wire.AttrServiceClassIDList, wire.TypeSequence, classValue(0x1101))
		return wire.AppendAttributeEntry(p, 0x0100, wire.TypeText, []byte("0123456789abcdef"))
	}
	want := []byte{wire.Tag(wire.TypeSequence, wire.SizeInNextByte), 80}
	want = append(want, inner(handles[0])...)
	want = append(want, inner(handles[1])...)
	assert.Equal(t, want, got)
}

// When the records behind an in-flight continuation disappear, the
// server must reject the token instead of replaying empty fragments.
func TestServiceSearchAttrContinuationAfterDelete(t *testing.T) {
	s, tr := newTestStack(t, Config{})
	db := s.Database()
	h := addClassRecord(t, db, 0x1101)
	require.NoError(t, db.AddAttribute(h, 0x0100, wire.TypeText, make([]byte, 60)))

	acceptConnection(s, 0x50, 0)
	req := searchAttrRequest(24, attrRangeParam(0x0000, 0xFFFF), nil, 0x1101)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchAttrRequest, 1, req))
	_, _, params := parseResponse(t, tr.lastWrite(t))
	_, cont := splitAttrResponse(t, params)
	require.Equal(t, byte(wire.ContinuationTokenLen), cont[0])

	require.True(t, db.DeleteRecord(0))

	req = searchAttrRequest(24, attrRangeParam(0x0000, 0xFFFF), cont, 0x1101)
	s.OnDataInd(0x50, buildFrame(wire.PDUServiceSearchAttrRequest, 2, req))
	assert.Equal(t, wire.StatusInvalidContinuationState, requireError(t, tr.lastWrite(t), 2))
}

func TestDispatcherFraming(t *testing.T) {
	valid := searchRequest(10, nil, 0x1101)
	cases := []struct {
		name      string
		frame     []byte
		wantTrans uint16
		want      wire.Status
	}{
		{
			name:      "truncated before transaction",
			frame:     []byte{0x02, 0x00},
			wantTrans: 0,
			want:      wire.StatusInvalidRequestSyntax,
		},
		{
			name:      "truncated header",
			frame:     []byte{0x02, 0x12, 0x34, 0x00},
			wantTrans: 0x1234,
			want:      wire.StatusInvalidRequestSyntax,
		},
		{
			name:      "parameter length overruns frame",
			frame:     append(wire.AppendHeader(nil, wire.PDUServiceSearchRequest, 0x0001, 10), valid[:6]...),
			wantTrans: 1,
			want:      wire.StatusInvalidPDUSize,
		},
		{
			name:      "parameter length short of frame",
			frame:     append(wire.AppendHeader(nil, wire.PDUServiceSearchRequest, 0x0001, uint16(len(valid)-1)), valid...),
			wantTrans: 1,
			want:      wire.StatusInvalidPDUSize,
		},
		{
			name:      "unknown pdu id",
			frame:     wire.AppendHeader(nil, 0x09, 0x0002, 0),
			wantTrans: 2,
			want:      wire.StatusInvalidRequestSyntax,
		},
		{
			name:      "response pdu id",
			frame:     wire.AppendHeader(nil, wire.PDUServiceSearchResponse, 0x0002, 0),
			wantTrans: 2,
			want:      wire.StatusInvalidRequestSyntax,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, tr := newTestStack(t, Config{})
			acceptConnection(s, 0x50, 0)

			s.OnDataInd(0x50, tc.frame)
			assert.Equal(t, tc.want, requireError(t, tr.lastWrite(t), tc.wantTrans))
		})
	}
}

func TestErrorTextAppended(t *testing.T) {
	s, tr := newTestStack(t, Config{ErrorText: true})
	acceptConnection(s, 0x50, 0)

	s.OnDataInd(0x50, wire.AppendHeader(nil, 0x09, 1, 0))

	status := requireError(t, tr.lastWrite(t), 1)
	require.Equal(t, wire.StatusInvalidRequestSyntax, status)
	_, _, params := parseResponse(t, tr.lastWrite(t))
	assert.Equal(t, status.String(), string(params[2:]))
}
