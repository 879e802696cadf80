package nats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/visiona/framesync/internal/events"
)

// Publisher forwards synchronization events from the event bus to NATS
// so downstream consumers can subscribe to groups and drops.
// Gracefully degrades when NATS is unavailable.
type Publisher struct {
	url       string
	bus       *events.Bus
	conn      *nats.Conn
	unsubs    []func()
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
}

// NewPublisher creates a new event-bus-to-NATS publisher.
func NewPublisher(url string, bus *events.Bus, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		url:    url,
		bus:    bus,
		logger: logger.With("component", "nats-publisher"),
	}
}

// Start connects to NATS and subscribes to the event bus.
// Returns an error if connection fails; callers may treat it as
// non-fatal and run without NATS output.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := nats.Connect(p.url,
		nats.Name("framesync-publisher"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.mu.Lock()
			p.connected = false
			p.mu.Unlock()
			if err != nil {
				p.logger.Warn("NATS publisher disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.mu.Lock()
			p.connected = true
			p.mu.Unlock()
			p.logger.Info("NATS publisher reconnected")
		}),
	)
	if err != nil {
		p.logger.Warn("Failed to connect to NATS, sync output disabled", "error", err)
		return err
	}

	p.conn = conn
	p.connected = true
	p.logger.Info("NATS publisher connected", "url", p.url)

	p.unsubs = append(p.unsubs,
		p.bus.Subscribe(p.handleGroup),
		p.bus.Subscribe(p.handleDrop),
	)
	return nil
}

func (p *Publisher) handleGroup(e events.GroupSyncedEvent) {
	members := make(map[string]GroupMemberMessage, len(e.Members))
	for id, m := range e.Members {
		members[id] = GroupMemberMessage{Sequence: m.Sequence, TimestampMs: m.TimestampMs}
	}
	p.publish(SubjectSyncGroups(e.Pipeline), GroupMessage{
		Pipeline:  e.Pipeline,
		GroupID:   e.GroupID,
		Members:   members,
		SpreadMs:  e.SpreadMs,
		Timestamp: e.Timestamp,
	})
}

func (p *Publisher) handleDrop(e events.MessageDroppedEvent) {
	p.publish(SubjectSyncDrops(e.Pipeline), DropMessage{
		Pipeline:    e.Pipeline,
		StreamID:    e.StreamID,
		Sequence:    e.Sequence,
		TimestampMs: e.TimestampMs,
		Reason:      e.Reason,
		Timestamp:   e.Timestamp,
	})
}

type marshaler interface {
	Marshal() ([]byte, error)
}

// publish sends one message. No-op if not connected.
func (p *Publisher) publish(subject string, msg marshaler) {
	p.mu.RLock()
	conn := p.conn
	connected := p.connected
	p.mu.RUnlock()

	if conn == nil || !connected {
		return
	}

	data, err := msg.Marshal()
	if err != nil {
		p.logger.Warn("Failed to marshal sync message", "error", err, "subject", subject)
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish sync message", "error", err, "subject", subject)
	}
}

// IsConnected returns true if connected to NATS.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.conn != nil
}

// Stop unsubscribes from the bus and closes the connection.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, unsub := range p.unsubs {
		unsub()
	}
	p.unsubs = nil

	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.connected = false
	p.logger.Info("NATS publisher stopped")
}
