// Package transport defines the interface between the SDP engine and
// the underlying connection-oriented transport (L2CAP in a full stack).
// The engine drives the transport through Provider and receives its
// events through Handler; both sides identify a connection by the
// transport's channel id (CID).
package transport

import "fmt"

// Address is a 6-byte device address.
type Address [6]byte

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// WriteResult reports the outcome of a Provider.Write.
type WriteResult uint8

const (
	WriteSuccess WriteResult = iota
	WriteCongested
	WriteFailed
)

func (w WriteResult) String() string {
	switch w {
	case WriteSuccess:
		return "success"
	case WriteCongested:
		return "congested"
	case WriteFailed:
		return "failed"
	}
	return fmt.Sprintf("WriteResult(%d)", uint8(w))
}

// Provider is the outbound half of the transport. Connect returns the
// local CID for the new channel, or zero when the connection could not
// even be started.
type Provider interface {
	Connect(peer Address) uint16
	Disconnect(cid uint16) bool
	Write(cid uint16, data []byte) WriteResult
}

// Handler is the inbound half: the transport delivers its events here.
// A zero mtu on OnConfigInd means the peer did not propose one.
type Handler interface {
	OnConnectInd(peer Address, cid uint16)
	OnConnectCfm(cid uint16, ok bool)
	OnConfigInd(cid uint16, mtu uint16)
	OnConfigCfm(cid uint16, mtu uint16)
	OnDisconnectInd(cid uint16, ackNeeded bool)
	OnDisconnectCfm(cid uint16)
	OnDataInd(cid uint16, data []byte)
	OnError(cid uint16, result uint16)
}
