// Package log provides structured protocol logging for the SDP stack.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, server).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	stack.SetLogger(log.NewSlogAdapter(slog.Default()))
//
//	// For production: write to binary file
//	l, _ := log.NewFileLogger("/var/log/sdp/server.sdplog")
//	stack.SetLogger(l)
//
//	// Both: use MultiLogger
//	stack.SetLogger(log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	))
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: raw PDU bytes (FrameEvent)
//   - Wire: decoded PDU headers (PDUEvent)
//   - Server: connection state changes (StateChangeEvent)
//
// Errors have a dedicated event type usable at any layer.
//
// # File Format
//
// Log files use CBOR encoding with .sdplog extension.
package log
