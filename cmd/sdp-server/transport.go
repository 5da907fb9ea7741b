package main

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/sdp-stack/sdp-go/pkg/transport"
)

// tcpTransport bridges the stack's transport interface onto TCP for the
// reference daemon. Each PDU is framed with a 2-byte big-endian length.
// Handler callbacks are always delivered from transport goroutines,
// never from within a Provider call.
type tcpTransport struct {
	mu      sync.Mutex
	nextCID uint16
	conns   map[uint16]net.Conn
	handler transport.Handler
	mtu     uint16
}

func newTCPTransport(mtu uint16) *tcpTransport {
	return &tcpTransport{
		nextCID: 0x40,
		conns:   make(map[uint16]net.Conn),
		mtu:     mtu,
	}
}

// bind attaches the event handler. Must be called before Serve.
func (t *tcpTransport) bind(h transport.Handler) {
	t.handler = h
}

// Serve accepts inbound connections until the listener is closed.
func (t *tcpTransport) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		cid := t.register(conn)
		go func() {
			t.handler.OnConnectInd(peerAddress(conn.RemoteAddr()), cid)
			t.handler.OnConfigInd(cid, t.mtu)
			t.handler.OnConfigCfm(cid, t.mtu)
			t.readLoop(cid, conn)
		}()
	}
}

func (t *tcpTransport) register(conn net.Conn) uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextCID++
	t.conns[t.nextCID] = conn
	return t.nextCID
}

func (t *tcpTransport) remove(cid uint16) net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn := t.conns[cid]
	delete(t.conns, cid)
	return conn
}

func (t *tcpTransport) readLoop(cid uint16, conn net.Conn) {
	var hdr [2]byte
	for {
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			break
		}
		frame := make([]byte, binary.BigEndian.Uint16(hdr[:]))
		if _, err := io.ReadFull(conn, frame); err != nil {
			break
		}
		t.handler.OnDataInd(cid, frame)
	}
	if c := t.remove(cid); c != nil {
		c.Close()
		t.handler.OnDisconnectInd(cid, true)
	}
}

// Connect dials the peer's pseudo-address. Confirmation events arrive
// asynchronously, as they would from a real channel setup.
func (t *tcpTransport) Connect(peer transport.Address) uint16 {
	conn, err := net.Dial("tcp", peerDialTarget(peer))
	if err != nil {
		return 0
	}
	cid := t.register(conn)
	go func() {
		t.handler.OnConnectCfm(cid, true)
		t.handler.OnConfigCfm(cid, t.mtu)
		t.readLoop(cid, conn)
	}()
	return cid
}

func (t *tcpTransport) Disconnect(cid uint16) bool {
	conn := t.remove(cid)
	if conn == nil {
		return false
	}
	conn.Close()
	go t.handler.OnDisconnectCfm(cid)
	return true
}

func (t *tcpTransport) Write(cid uint16, data []byte) transport.WriteResult {
	t.mu.Lock()
	conn := t.conns[cid]
	t.mu.Unlock()
	if conn == nil {
		return transport.WriteFailed
	}

	frame := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(frame, uint16(len(data)))
	copy(frame[2:], data)
	if _, err := conn.Write(frame); err != nil {
		return transport.WriteFailed
	}
	return transport.WriteSuccess
}

var _ transport.Provider = (*tcpTransport)(nil)

// peerAddress derives a 6-byte pseudo device address from a TCP remote
// address: the IPv4 octets followed by the port.
func peerAddress(addr net.Addr) transport.Address {
	var a transport.Address
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return a
	}
	if ip4 := tcp.IP.To4(); ip4 != nil {
		copy(a[:4], ip4)
	}
	binary.BigEndian.PutUint16(a[4:], uint16(tcp.Port))
	return a
}

// peerDialTarget is the inverse of peerAddress.
func peerDialTarget(a transport.Address) string {
	ip := net.IPv4(a[0], a[1], a[2], a[3])
	port := binary.BigEndian.Uint16(a[4:])
	return net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))
}
