// Command sdp-server is a reference SDP server daemon.
//
// It runs the discovery stack over a TCP transport that frames each PDU
// with a 2-byte length prefix, registers a couple of demonstration
// service records, and answers service search and attribute requests
// from connecting peers.
//
// Usage:
//
//	sdp-server [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-listen string        TCP listen address (default ":40100")
//	-protocol-log string  Write protocol events to this file (CBOR)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Start with defaults and a protocol trace
//	sdp-server -protocol-log trace.sdplog
//
//	# Start with a config file on a custom port
//	sdp-server -config /etc/sdp/server.yaml -listen :40200
package main

import (
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sdp-stack/sdp-go/pkg/database"
	"github.com/sdp-stack/sdp-go/pkg/log"
	"github.com/sdp-stack/sdp-go/pkg/server"
	"github.com/sdp-stack/sdp-go/pkg/wire"
)

var (
	configPath  string
	listenAddr  string
	protocolLog string
	logLevel    string
)

func init() {
	flag.StringVar(&configPath, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&listenAddr, "listen", ":40100", "TCP listen address")
	flag.StringVar(&protocolLog, "protocol-log", "", "Write protocol events to this file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		stdlog.Fatalf("sdp-server: %v", err)
	}
}

func run() error {
	cfg := server.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = server.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	slogger, err := newSlogger(logLevel)
	if err != nil {
		return err
	}

	tr := newTCPTransport(cfg.MTU)
	stack, err := server.New(cfg, tr)
	if err != nil {
		return fmt.Errorf("creating stack: %w", err)
	}
	tr.bind(stack)

	logger, closeLogger, err := buildLogger(slogger)
	if err != nil {
		return err
	}
	defer closeLogger()
	stack.SetLogger(logger)

	if err := registerDemoRecords(stack.Database()); err != nil {
		return fmt.Errorf("registering records: %w", err)
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listenAddr, err)
	}

	slogger.Info("sdp-server started",
		"listen", ln.Addr().String(),
		"mtu", cfg.MTU,
		"records", stack.Database().RecordCount())

	errCh := make(chan error, 1)
	go func() { errCh <- tr.Serve(ln) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slogger.Info("shutting down", "signal", sig.String())
		ln.Close()
		<-errCh
		return nil
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	}
}

func newSlogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(h), nil
}

// buildLogger combines the console adapter with an optional CBOR
// protocol trace file.
func buildLogger(slogger *slog.Logger) (log.Logger, func(), error) {
	adapter := log.NewSlogAdapter(slogger)
	if protocolLog == "" {
		return adapter, func() {}, nil
	}
	fl, err := log.NewFileLogger(protocolLog)
	if err != nil {
		return nil, nil, fmt.Errorf("opening protocol log: %w", err)
	}
	return log.NewMultiLogger(fl, adapter), func() { fl.Close() }, nil
}

// registerDemoRecords publishes a serial port service and an OBEX push
// service so connecting peers have something to discover.
func registerDemoRecords(db *database.Database) error {
	const (
		serialPortClass = 0x1101
		obexPushClass   = 0x1105
		attrServiceName = 0x0100
	)

	sp, err := db.CreateRecord()
	if err != nil {
		return err
	}
	h := sp.Handle()
	if err := db.AddServiceClassIDList(h, []uint16{serialPortClass}); err != nil {
		return err
	}
	if err := db.AddProtocolList(h, []database.ProtocolElem{
		{UUID: wire.ProtocolL2CAP},
		{UUID: wire.ProtocolRFCOMM, Params: []uint16{1}},
	}); err != nil {
		return err
	}
	if err := db.AddProfileDescriptorList(h, serialPortClass, 0x0102); err != nil {
		return err
	}
	if err := db.AddLanguageBaseAttrIDList(h, 0x656E, 0x006A, 0x0100); err != nil {
		return err
	}
	if err := db.AddAttribute(h, attrServiceName, wire.TypeText, []byte("Serial Port")); err != nil {
		return err
	}

	op, err := db.CreateRecord()
	if err != nil {
		return err
	}
	h = op.Handle()
	if err := db.AddServiceClassIDList(h, []uint16{obexPushClass}); err != nil {
		return err
	}
	if err := db.AddProtocolList(h, []database.ProtocolElem{
		{UUID: wire.ProtocolL2CAP},
		{UUID: wire.ProtocolRFCOMM, Params: []uint16{2}},
		{UUID: 0x0008}, // OBEX
	}); err != nil {
		return err
	}
	if err := db.AddProfileDescriptorList(h, obexPushClass, 0x0102); err != nil {
		return err
	}
	return db.AddAttribute(h, attrServiceName, wire.TypeText, []byte("OBEX Object Push"))
}
