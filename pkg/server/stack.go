package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sdp-stack/sdp-go/pkg/database"
	"github.com/sdp-stack/sdp-go/pkg/log"
	"github.com/sdp-stack/sdp-go/pkg/transport"
	"github.com/sdp-stack/sdp-go/pkg/wire"
)

// DiscoveryHandler receives originator-side events: the connected
// notification once an originated channel is usable, and every response
// PDU arriving on it. The discovery sequencing itself lives outside the
// stack.
type DiscoveryHandler interface {
	Connected(peer transport.Address, cid uint16)
	Response(cid uint16, data []byte)
}

var (
	// ErrNoResources is returned when the connection table is full.
	ErrNoResources = errors.New("connection table is full")

	// ErrConnectFailed is returned when the transport could not start an
	// outbound connection.
	ErrConnectFailed = errors.New("transport connect failed")
)

// Stack is the SDP engine: record database, connection table and
// request handlers over one transport provider.
type Stack struct {
	mu     sync.Mutex
	cfg    Config
	db     *database.Database
	tr     transport.Provider
	disc   DiscoveryHandler
	logger log.Logger
	conns  []conn
}

// New creates a stack over the given transport. The config is
// defaulted and validated.
func New(cfg Config, tr transport.Provider) (*Stack, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Stack{
		cfg:    cfg,
		db:     database.New(cfg.databaseConfig()),
		tr:     tr,
		logger: log.NoopLogger{},
		conns:  make([]conn, cfg.MaxConnections),
	}, nil
}

// Database returns the service record database. Mutations must not run
// concurrently with transport events; see the database package doc.
func (s *Stack) Database() *database.Database { return s.db }

// SetLogger installs a protocol logger. Pass nil to disable.
func (s *Stack) SetLogger(l log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil {
		l = log.NoopLogger{}
	}
	s.logger = l
}

// SetDiscoveryHandler installs the consumer of originator-side events.
func (s *Stack) SetDiscoveryHandler(h DiscoveryHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disc = h
}

// Compile-time interface satisfaction check.
var _ transport.Handler = (*Stack)(nil)

// findByCID returns the block owning the cid. Idle blocks have no cid
// and pending blocks share one with their active sibling, so both are
// skipped.
func (s *Stack) findByCID(cid uint16) *conn {
	for i := range s.conns {
		c := &s.conns[i]
		if c.state != StateIdle && c.state != StateConnPend && c.cid == cid {
			return c
		}
	}
	return nil
}

// allocate claims an idle block. On exhaustion it logs a snapshot of
// every block and returns nil.
func (s *Stack) allocate() *conn {
	for i := range s.conns {
		c := &s.conns[i]
		if c.state == StateIdle {
			c.reset()
			c.id = uuid.NewString()
			return c
		}
	}
	for i := range s.conns {
		c := &s.conns[i]
		s.logEvent(c, log.Event{
			Category: log.CategoryError,
			Layer:    log.LayerServer,
			Error: &log.ErrorEventData{
				Layer:   log.LayerServer,
				Message: "connection table exhausted",
				Context: fmt.Sprintf("slot %d state %s cid 0x%04X", i, c.state, c.cid),
			},
		})
	}
	return nil
}

// release frees a block. Safe to call once per allocation; the caller
// ensures every event path funnels through exactly one release.
func (s *Stack) release(c *conn) {
	s.stopTimer(c)
	s.logState(c, c.state, StateIdle, "")
	c.reset()
}

func (s *Stack) stopTimer(c *conn) {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
	}
}

// restartTimer arms the inactivity timer. A generation counter makes
// callbacks from a previously armed timer harmless.
func (s *Stack) restartTimer(c *conn) {
	c.timerGen++
	gen := c.timerGen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(s.cfg.InactivityTimeout, func() {
		s.onInactivity(c, gen)
	})
}

func (s *Stack) onInactivity(c *conn, gen uint64) {
	s.mu.Lock()
	if c.timerGen != gen || c.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.tr.Disconnect(c.cid)
	notify := s.completion(c, wire.StatusConnFailed)
	more := s.clearPending(c.cid)
	s.release(c)
	s.mu.Unlock()

	notify()
	for _, f := range more {
		f()
	}
}

// completion captures the block's completion callback as a deferred
// invocation, or a no-op when none is registered.
func (s *Stack) completion(c *conn, reason wire.Status) func() {
	cb, peer := c.complete, c.peer
	c.complete = nil
	if cb == nil {
		return func() {}
	}
	return func() { cb(peer, reason) }
}

// findActiveOriginatorCID returns the cid of a live originated channel
// to the peer, or zero.
func (s *Stack) findActiveOriginatorCID(peer transport.Address) uint16 {
	for i := range s.conns {
		c := &s.conns[i]
		switch c.state {
		case StateConnSetup, StateCfgSetup, StateConnected:
			if c.originator && c.peer == peer {
				return c.cid
			}
		}
	}
	return 0
}

// promotePendingSameCID hands the still-open channel to a queued block
// waiting on the same cid. Returns the deferred connected notification
// and whether a promotion happened.
func (s *Stack) promotePendingSameCID(cid uint16) (func(), bool) {
	for i := range s.conns {
		c := &s.conns[i]
		if c.state == StateConnPend && c.originator && c.cid == cid {
			old := c.state
			c.state = StateConnected
			s.logState(c, old, c.state, "reusing channel")
			disc, peer := s.disc, c.peer
			if disc == nil {
				return func() {}, true
			}
			return func() { disc.Connected(peer, cid) }, true
		}
	}
	return nil, false
}

// processPendingNewCID reacts to a channel going away: the first queued
// block for that cid gets a fresh outbound connection and every queued
// sibling moves to the new cid. If the transport cannot start one, all
// of them fail.
func (s *Stack) processPendingNewCID(cid uint16) []func() {
	var first *conn
	for i := range s.conns {
		c := &s.conns[i]
		if c.state == StateConnPend && c.cid == cid {
			first = c
			break
		}
	}
	if first == nil {
		return nil
	}
	newCID := s.tr.Connect(first.peer)
	if newCID == 0 {
		return s.clearPending(cid)
	}
	for i := range s.conns {
		c := &s.conns[i]
		if c.state == StateConnPend && c.cid == cid {
			c.cid = newCID
			if c == first {
				old := c.state
				c.state = StateConnSetup
				s.logState(c, old, c.state, "new channel for pending request")
			}
		}
	}
	return nil
}

// clearPending fails every queued block that was waiting on the cid.
func (s *Stack) clearPending(cid uint16) []func() {
	var notes []func()
	for i := range s.conns {
		c := &s.conns[i]
		if c.state == StateConnPend && c.cid == cid {
			notes = append(notes, s.completion(c, wire.StatusConnFailed))
			s.release(c)
		}
	}
	return notes
}

// Originate opens (or queues onto) a channel to the peer for a
// discovery exchange. The returned cid identifies the channel to the
// DiscoveryHandler; done fires once when the connection ends.
func (s *Stack) Originate(peer transport.Address, done CompletionFunc) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.allocate()
	if c == nil {
		return 0, ErrNoResources
	}
	c.originator = true
	c.peer = peer
	c.complete = done
	c.mtu = s.cfg.MTU

	if cid := s.findActiveOriginatorCID(peer); cid != 0 {
		c.cid = cid
		c.state = StateConnPend
		s.logState(c, StateIdle, c.state, "queued behind existing channel")
		return cid, nil
	}

	cid := s.tr.Connect(peer)
	if cid == 0 {
		s.release(c)
		return 0, ErrConnectFailed
	}
	c.cid = cid
	c.state = StateConnSetup
	s.logState(c, StateIdle, c.state, "")
	return cid, nil
}

// Cancel aborts the connection with the given cid, reporting
// StatusCancelled to its completion callback. Returns false when no
// block owns the cid.
func (s *Stack) Cancel(cid uint16) bool {
	s.mu.Lock()
	var target *conn
	for i := range s.conns {
		c := &s.conns[i]
		if c.state != StateIdle && c.cid == cid {
			target = c
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return false
	}
	notes := s.disconnect(target, wire.StatusCancelled)
	s.mu.Unlock()

	for _, f := range notes {
		f()
	}
	return true
}

// Close ends the exchange on a channel with a successful reason, as a
// discovery consumer does once it has all its responses. When another
// originated request is queued on the same channel, the channel stays
// open and is handed over to it. Returns false when no block owns the
// cid.
func (s *Stack) Close(cid uint16) bool {
	s.mu.Lock()
	c := s.findByCID(cid)
	if c == nil {
		s.mu.Unlock()
		return false
	}
	notes := s.disconnect(c, wire.StatusSuccess)
	s.mu.Unlock()

	for _, f := range notes {
		f()
	}
	return true
}

// disconnect tears a block down with the given reason. A queued block
// never owned the channel, so it is just failed; otherwise the reason
// is stored for the disconnect confirm, unless a successful teardown
// can hand its channel straight to a queued sibling.
func (s *Stack) disconnect(c *conn, reason wire.Status) []func() {
	if c.state == StateConnPend {
		notes := []func(){s.completion(c, reason)}
		s.release(c)
		return notes
	}
	if c.state == StateConnSetup {
		// No confirm will arrive for a channel still being set up.
		s.tr.Disconnect(c.cid)
		notes := []func(){s.completion(c, reason)}
		notes = append(notes, s.clearPending(c.cid)...)
		s.release(c)
		return notes
	}
	if reason == wire.StatusSuccess {
		if note, ok := s.promotePendingSameCID(c.cid); ok {
			notes := []func(){s.completion(c, reason), note}
			s.release(c)
			return notes
		}
	}
	c.reason = reason
	s.tr.Disconnect(c.cid)
	return nil
}

// OnConnectInd accepts an inbound channel.
func (s *Stack) OnConnectInd(peer transport.Address, cid uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.allocate()
	if c == nil {
		return
	}
	c.state = StateCfgSetup
	c.peer = peer
	c.cid = cid
	c.mtu = s.cfg.MTU
	s.logState(c, StateIdle, c.state, "inbound connection")
}

// OnConnectCfm completes an outbound connect.
func (s *Stack) OnConnectCfm(cid uint16, ok bool) {
	s.mu.Lock()
	c := s.findByCID(cid)
	if c == nil {
		s.logUnknownCID("connect confirm", cid)
		s.mu.Unlock()
		return
	}
	var notes []func()
	if ok && c.state == StateConnSetup {
		c.state = StateCfgSetup
		s.logState(c, StateConnSetup, c.state, "")
	} else if !ok {
		notes = append(notes, s.completion(c, wire.StatusConnFailed))
		notes = append(notes, s.clearPending(c.cid)...)
		s.release(c)
	}
	s.mu.Unlock()

	for _, f := range notes {
		f()
	}
}

func (c *conn) applyMTU(proposed, localMax uint16) {
	switch {
	case proposed == 0 || proposed > localMax:
		c.mtu = localMax
	case proposed < minMTU:
		// The handlers reserve response header room out of the MTU; a
		// channel below the floor could never carry a response.
		c.mtu = minMTU
	default:
		c.mtu = proposed
	}
}

// OnConfigInd records the peer's proposed MTU.
func (s *Stack) OnConfigInd(cid uint16, mtu uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findByCID(cid)
	if c == nil {
		s.logUnknownCID("config indication", cid)
		return
	}
	c.applyMTU(mtu, s.cfg.MTU)
}

// OnConfigCfm finishes configuration: the channel becomes usable, the
// originator is told, the acceptor arms its inactivity timer.
func (s *Stack) OnConfigCfm(cid uint16, mtu uint16) {
	s.mu.Lock()
	c := s.findByCID(cid)
	if c == nil {
		s.logUnknownCID("config confirm", cid)
		s.mu.Unlock()
		return
	}
	c.applyMTU(mtu, s.cfg.MTU)
	old := c.state
	c.state = StateConnected
	s.logState(c, old, c.state, "config confirmed")

	var notify func()
	if c.originator {
		if disc := s.disc; disc != nil {
			peer := c.peer
			notify = func() { disc.Connected(peer, cid) }
		}
	} else {
		s.restartTimer(c)
	}
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// OnDisconnectInd handles a peer-initiated teardown.
func (s *Stack) OnDisconnectInd(cid uint16, ackNeeded bool) {
	s.mu.Lock()
	c := s.findByCID(cid)
	if c == nil {
		s.logUnknownCID("disconnect indication", cid)
		s.mu.Unlock()
		return
	}
	reason := wire.StatusConnFailed
	if c.state == StateConnected {
		reason = wire.StatusSuccess
	}
	notes := []func(){s.completion(c, reason)}
	if ackNeeded {
		notes = append(notes, s.processPendingNewCID(c.cid)...)
	} else {
		notes = append(notes, s.clearPending(c.cid)...)
	}
	s.release(c)
	s.mu.Unlock()

	for _, f := range notes {
		f()
	}
}

// OnDisconnectCfm completes a locally requested teardown with the
// stored reason.
func (s *Stack) OnDisconnectCfm(cid uint16) {
	s.mu.Lock()
	c := s.findByCID(cid)
	if c == nil {
		s.logUnknownCID("disconnect confirm", cid)
		s.mu.Unlock()
		return
	}
	notes := []func(){s.completion(c, c.reason)}
	notes = append(notes, s.processPendingNewCID(c.cid)...)
	s.release(c)
	s.mu.Unlock()

	for _, f := range notes {
		f()
	}
}

// OnError surfaces a transport-level failure for a channel. The channel
// teardown itself still arrives through the disconnect events.
func (s *Stack) OnError(cid uint16, result uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := int(result)
	s.logEvent(s.findByCID(cid), log.Event{
		Category: log.CategoryError,
		Layer:    log.LayerTransport,
		CID:      cid,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: "transport error",
			Code:    &code,
		},
	})
}

// OnDataInd routes inbound bytes: server role to the request
// dispatcher, originator role to the discovery handler.
func (s *Stack) OnDataInd(cid uint16, data []byte) {
	s.mu.Lock()
	c := s.findByCID(cid)
	if c == nil || c.state != StateConnected {
		s.logEvent(c, log.Event{
			Category: log.CategoryError,
			Layer:    log.LayerTransport,
			CID:      cid,
			Error: &log.ErrorEventData{
				Layer:   log.LayerTransport,
				Message: "data on channel not in connected state, ignored",
			},
		})
		s.mu.Unlock()
		return
	}
	s.logFrame(c, log.DirectionIn, data)

	if c.originator {
		disc := s.disc
		s.mu.Unlock()
		if disc != nil {
			disc.Response(cid, data)
		}
		return
	}
	s.handleRequest(c, data)
	s.mu.Unlock()
}

// send writes a response PDU on the block's channel.
func (s *Stack) send(c *conn, data []byte) {
	s.logFrame(c, log.DirectionOut, data)
	if res := s.tr.Write(c.cid, data); res == transport.WriteFailed {
		s.logEvent(c, log.Event{
			Category: log.CategoryError,
			Layer:    log.LayerTransport,
			Error: &log.ErrorEventData{
				Layer:   log.LayerTransport,
				Message: "transport write failed",
				Context: fmt.Sprintf("len %d", len(data)),
			},
		})
	}
}

const maxLoggedFrame = 64

func (s *Stack) logFrame(c *conn, dir log.Direction, data []byte) {
	captured := data
	truncated := false
	if len(captured) > maxLoggedFrame {
		captured = captured[:maxLoggedFrame]
		truncated = true
	}
	s.logEvent(c, log.Event{
		Direction: dir,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      append([]byte(nil), captured...),
			Truncated: truncated,
		},
	})
}

func (s *Stack) logState(c *conn, old, next State, reason string) {
	s.logEvent(c, log.Event{
		Layer:    log.LayerServer,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: old.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

func (s *Stack) logUnknownCID(context string, cid uint16) {
	s.logEvent(nil, log.Event{
		Category: log.CategoryError,
		Layer:    log.LayerTransport,
		CID:      cid,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: "event for unknown cid",
			Context: context,
		},
	})
}

func (s *Stack) logEvent(c *conn, e log.Event) {
	e.Timestamp = time.Now()
	if c != nil {
		e.ConnectionID = c.id
		e.Peer = c.peer.String()
		if e.CID == 0 {
			e.CID = c.cid
		}
		if c.originator {
			e.LocalRole = log.RoleClient
		} else {
			e.LocalRole = log.RoleServer
		}
	}
	s.logger.Log(e)
}
