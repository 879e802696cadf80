package nats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/visiona/framesync/internal/hostsync"
)

// Ingestor accepts messages for a named pipeline. Satisfied by
// pipelines.Manager.
type Ingestor interface {
	Ingest(pipeline string, msg hostsync.Message) error
}

// Bridge subscribes to ingest subjects and forwards producer messages
// into the pipeline manager.
type Bridge struct {
	url      string
	ingestor Ingestor
	conn     *nats.Conn
	sub      *nats.Subscription
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewBridge creates a new NATS-to-pipeline bridge.
func NewBridge(url string, ingestor Ingestor, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		url:      url,
		ingestor: ingestor,
		logger:   logger.With("component", "nats-bridge"),
	}
}

// Start connects to NATS and subscribes to the ingest subjects.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := nats.Connect(b.url,
		nats.Name("framesync-bridge"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS bridge disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS bridge reconnected")
		}),
	)
	if err != nil {
		return err
	}

	b.conn = conn
	b.logger.Info("NATS bridge connected", "url", b.url)

	// One wildcard subscription covers every pipeline and stream
	sub, err := conn.Subscribe(SubjectIngestPrefix+".>", b.handleIngest)
	if err != nil {
		conn.Close()
		b.conn = nil
		return err
	}
	b.sub = sub

	b.logger.Info("NATS bridge subscribed to ingest subjects")
	return nil
}

// handleIngest processes one producer message.
func (b *Bridge) handleIngest(msg *nats.Msg) {
	pipeline, stream, err := ParseIngestSubject(msg.Subject)
	if err != nil {
		b.logger.Warn("Ignoring message on malformed subject", "subject", msg.Subject)
		return
	}

	m, err := UnmarshalIngest(msg.Data)
	if err != nil {
		b.logger.Warn("Failed to unmarshal ingest message", "error", err, "subject", msg.Subject)
		return
	}

	hostMsg := hostsync.Message{
		StreamID:  stream,
		Sequence:  m.Sequence,
		Timestamp: time.Duration(m.TimestampMs * float64(time.Millisecond)),
	}
	if err := b.ingestor.Ingest(pipeline, hostMsg); err != nil {
		b.logger.Warn("Ingest rejected",
			"pipeline", pipeline, "stream", stream, "sequence", m.Sequence, "error", err)
		return
	}
	b.logger.Debug("Ingested message",
		"pipeline", pipeline, "stream", stream, "sequence", m.Sequence)
}

// Stop closes the bridge connection.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub != nil {
		_ = b.sub.Unsubscribe()
		b.sub = nil
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.logger.Info("NATS bridge stopped")
}

// IsConnected returns true if the bridge is connected to NATS.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}
