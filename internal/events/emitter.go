package events

import (
	"time"

	"github.com/visiona/framesync/internal/hostsync"
)

// Emitter publishes synchronizer output onto the event bus. It implements
// hostsync.Emitter so it can be attached alongside other observers.
type Emitter struct {
	bus      *Bus
	pipeline string
}

// NewEmitter creates an event bus emitter for the named pipeline.
func NewEmitter(bus *Bus, pipeline string) *Emitter {
	return &Emitter{bus: bus, pipeline: pipeline}
}

// OnGroup implements hostsync.Emitter.
func (e *Emitter) OnGroup(g hostsync.Group) {
	members := make(map[string]GroupMember, len(g.Messages))
	for id, msg := range g.Messages {
		members[id] = GroupMember{
			Sequence:    msg.Sequence,
			TimestampMs: durationMs(msg.Timestamp),
		}
	}
	e.bus.Publish(GroupSyncedEvent{
		Pipeline:  e.pipeline,
		GroupID:   g.ID,
		Members:   members,
		SpreadMs:  durationMs(g.Spread),
		Timestamp: g.MatchedAt.UTC().Format(time.RFC3339),
	})
}

// OnDrop implements hostsync.Emitter.
func (e *Emitter) OnDrop(d hostsync.Drop) {
	e.bus.Publish(MessageDroppedEvent{
		Pipeline:    e.pipeline,
		StreamID:    d.Message.StreamID,
		Sequence:    d.Message.Sequence,
		TimestampMs: durationMs(d.Message.Timestamp),
		Reason:      string(d.Reason),
		Timestamp:   d.At.UTC().Format(time.RFC3339),
	})
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
