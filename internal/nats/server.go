package nats

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// readyTimeout bounds how long Start waits for the broker to accept
// connections.
const readyTimeout = 5 * time.Second

// ingestPayloadLimit caps message size on the embedded broker. Ingest
// and sync messages carry tags only, never frame payloads, so a small
// limit catches producers publishing the wrong thing.
const ingestPayloadLimit = 64 * 1024

// ServerOptions configures the embedded NATS broker.
type ServerOptions struct {
	Host   string // defaults to loopback
	Port   int    // defaults to 4222
	Logger *slog.Logger
}

// Server runs a NATS broker inside the service process so producers on
// the same host can publish tagged messages without operating a separate
// broker.
type Server struct {
	host   string
	port   int
	logger *slog.Logger
	ns     *server.Server
}

// NewServer creates an embedded broker. Call Start to run it.
func NewServer(opts ServerOptions) *Server {
	host := opts.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port == 0 {
		port = 4222
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		host:   host,
		port:   port,
		logger: logger.With("component", "nats-server"),
	}
}

// Start launches the broker and waits until it accepts connections.
func (s *Server) Start() error {
	ns, err := server.NewServer(&server.Options{
		Host:       s.host,
		Port:       s.port,
		ServerName: "framesync",
		MaxPayload: ingestPayloadLimit,
		NoLog:      true, // broker output goes through our slog handlers or not at all
		NoSigs:     true, // the service process owns signal handling
	})
	if err != nil {
		return fmt.Errorf("failed to create embedded NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return fmt.Errorf("embedded NATS server not ready after %s", readyTimeout)
	}

	s.ns = ns
	s.logger.Info("Embedded NATS server ready", "url", s.ClientURL())
	return nil
}

// Stop shuts the broker down and waits for it to finish.
func (s *Server) Stop() {
	if s.ns == nil {
		return
	}
	s.logger.Info("Stopping embedded NATS server")
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.ns = nil
}

// ClientURL returns the URL the bridge and publisher connect to.
func (s *Server) ClientURL() string {
	if s.ns == nil {
		return fmt.Sprintf("nats://%s:%d", s.host, s.port)
	}
	return s.ns.ClientURL()
}

// IsRunning reports whether the broker is accepting connections.
func (s *Server) IsRunning() bool {
	return s.ns != nil && s.ns.Running()
}
