package server

import (
	"fmt"
	"time"

	"github.com/sdp-stack/sdp-go/pkg/transport"
	"github.com/sdp-stack/sdp-go/pkg/wire"
)

// State is the connection control block state.
type State uint8

const (
	// StateIdle marks a free control block.
	StateIdle State = iota

	// StateConnSetup is an outbound connect waiting for confirmation.
	StateConnSetup

	// StateConnPend is an outbound request queued behind an existing
	// channel to the same peer.
	StateConnPend

	// StateCfgSetup is a channel negotiating its configuration.
	StateCfgSetup

	// StateConnected is a fully configured channel.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnSetup:
		return "ConnSetup"
	case StateConnPend:
		return "ConnPend"
	case StateCfgSetup:
		return "CfgSetup"
	case StateConnected:
		return "Connected"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// CompletionFunc is called once when a connection originated through
// Originate finishes, with the peer address and the reason.
type CompletionFunc func(peer transport.Address, reason wire.Status)

// continuation is the per-connection resume state of an in-flight
// multi-fragment response.
type continuation struct {
	nextAttrIndex    int
	nextAttrStartID  uint16
	prevRecordHandle uint32
	attrOffset       uint16
	seqHeaderSent    bool
}

// conn is one connection control block. All fields are guarded by the
// stack mutex.
type conn struct {
	id         string // uuid correlating log events
	state      State
	originator bool
	peer       transport.Address
	cid        uint16
	mtu        uint16

	// reason stored by a local disconnect, reported on the confirm.
	reason wire.Status

	complete CompletionFunc

	timer    *time.Timer
	timerGen uint64

	cont       continuation
	contOffset uint16 // bytes of the current response already sent
	listLen    int    // total byte length of the current response list
}

// reset returns the block to its idle state, keeping the timer
// generation so a stale timer callback cannot touch the next user of
// the slot.
func (c *conn) reset() {
	gen := c.timerGen
	timer := c.timer
	*c = conn{timerGen: gen, timer: timer}
}
