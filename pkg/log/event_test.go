package log

import (
	"testing"
	"time"

	"github.com/sdp-stack/sdp-go/pkg/wire"
)

func TestEncodeDecodeEvent(t *testing.T) {
	status := wire.StatusInvalidContinuationState
	event := Event{
		Timestamp:    time.Now().UTC(),
		ConnectionID: "0c6a7c5d-7b0f-4c5e-9d34-1f2a3b4c5d6e",
		Direction:    DirectionOut,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		LocalRole:    RoleServer,
		Peer:         "00:11:22:33:44:55",
		CID:          0x0041,
		PDU: &PDUEvent{
			ID:          wire.PDUErrorResponse,
			Transaction: 0x1234,
			ParamLen:    2,
			Status:      &status,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}

	if got.ConnectionID != event.ConnectionID {
		t.Errorf("connection id = %q", got.ConnectionID)
	}
	if got.Direction != DirectionOut || got.Layer != LayerWire || got.Category != CategoryMessage {
		t.Errorf("classification fields = %v/%v/%v", got.Direction, got.Layer, got.Category)
	}
	if got.Peer != event.Peer || got.CID != event.CID {
		t.Errorf("peer/cid = %q/%d", got.Peer, got.CID)
	}
	if got.PDU == nil {
		t.Fatal("pdu payload missing")
	}
	if got.PDU.ID != wire.PDUErrorResponse || got.PDU.Transaction != 0x1234 {
		t.Errorf("pdu = %v transaction %d", got.PDU.ID, got.PDU.Transaction)
	}
	if got.PDU.Status == nil || *got.PDU.Status != status {
		t.Errorf("status = %v", got.PDU.Status)
	}
	if !got.Timestamp.Equal(event.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, event.Timestamp)
	}
}

func TestEncodeDecodeStateChange(t *testing.T) {
	event := Event{
		Timestamp:    time.Now().UTC(),
		ConnectionID: "test",
		Category:     CategoryState,
		Layer:        LayerServer,
		StateChange: &StateChangeEvent{
			OldState: "CfgSetup",
			NewState: "Connected",
			Reason:   "config confirmed",
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if got.StateChange == nil || got.StateChange.NewState != "Connected" {
		t.Errorf("state change = %+v", got.StateChange)
	}
	if got.PDU != nil || got.Frame != nil || got.Error != nil {
		t.Error("unset payloads decoded as non-nil")
	}
}

func TestEnumStrings(t *testing.T) {
	if DirectionIn.String() != "IN" || DirectionOut.String() != "OUT" {
		t.Error("direction strings")
	}
	if LayerTransport.String() != "TRANSPORT" || LayerServer.String() != "SERVER" {
		t.Error("layer strings")
	}
	if RoleServer.String() != "SERVER" || RoleClient.String() != "CLIENT" {
		t.Error("role strings")
	}
	if Category(99).String() != "UNKNOWN" {
		t.Error("unknown category string")
	}
}
