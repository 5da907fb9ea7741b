// Package server implements the SDP connection state machine and the
// server-side request handlers over an abstract transport.
//
// A Stack owns a fixed table of connection control blocks, the service
// record database and the transport provider. Transport events enter
// through the transport.Handler methods; on connected acceptor channels
// inbound bytes are dispatched to the three request handlers, which
// answer with MTU-bounded response fragments resumed via continuation
// tokens. Originator channels hand their traffic to the registered
// DiscoveryHandler.
//
// All event entry points serialize on one mutex. Transport providers
// must deliver events from outside that lock: a Provider must not call
// back into the Handler from within Connect, Disconnect or Write.
package server
