package hostsync

import (
	"sync/atomic"
	"time"
)

// Message is one tagged unit of data produced by a stream. The payload is
// opaque to the engine; only the tags participate in matching.
type Message struct {
	// StreamID identifies the producing source, e.g. "color", "depth",
	// "nn", or device-qualified like "oak1/left".
	StreamID string

	// Sequence is a per-stream monotonically increasing counter assigned
	// by the producer. Comparable only between streams of one device.
	Sequence int64

	// Timestamp is the device-synchronized capture time expressed as a
	// duration since the shared clock epoch. Comparable across streams
	// and devices.
	Timestamp time.Duration

	// Payload carries the actual data (frame, detection list, IMU
	// sample). Never inspected or mutated by the engine.
	Payload any
}

// Group is a fully matched tuple holding exactly one message per
// configured stream. Immutable once emitted; ownership passes to the
// consumer.
type Group struct {
	ID        string
	Messages  map[string]Message
	MatchedAt time.Time

	// Spread is the largest pairwise timestamp difference inside the
	// group. Zero for sequence-matched groups.
	Spread time.Duration
}

// DropReason explains why a message left its buffer unmatched.
type DropReason string

// Drop reasons.
const (
	DropTimeout    DropReason = "timeout"
	DropSuperseded DropReason = "superseded"
	DropOverflow   DropReason = "overflow"
	DropShutdown   DropReason = "shutdown"
)

// Drop records a message that aged out of its buffer without being
// matched.
type Drop struct {
	Message Message
	Reason  DropReason
	At      time.Time
}

// Emitter receives synchronized groups and drop records as they are
// produced. Implementations must not block: emission happens inside the
// synchronizer's critical section.
type Emitter interface {
	OnGroup(Group)
	OnDrop(Drop)
}

// ChannelEmitter delivers groups and drops over buffered channels,
// decoupling engine throughput from consumer speed. When a channel is
// full the event is discarded and counted as lost instead of blocking
// the engine; the lost counters let consumers audit the accounting.
type ChannelEmitter struct {
	Groups chan Group
	Drops  chan Drop

	lostGroups atomic.Uint64
	lostDrops  atomic.Uint64
}

// NewChannelEmitter creates a channel-backed emitter with the given
// buffer capacity per channel.
func NewChannelEmitter(buffer int) *ChannelEmitter {
	return &ChannelEmitter{
		Groups: make(chan Group, buffer),
		Drops:  make(chan Drop, buffer),
	}
}

// OnGroup forwards a group without blocking.
func (e *ChannelEmitter) OnGroup(g Group) {
	select {
	case e.Groups <- g:
	default:
		e.lostGroups.Add(1)
	}
}

// OnDrop forwards a drop record without blocking.
func (e *ChannelEmitter) OnDrop(d Drop) {
	select {
	case e.Drops <- d:
	default:
		e.lostDrops.Add(1)
	}
}

// LostGroups reports how many groups were discarded on a full channel.
func (e *ChannelEmitter) LostGroups() uint64 {
	return e.lostGroups.Load()
}

// LostDrops reports how many drop records were discarded on a full
// channel.
func (e *ChannelEmitter) LostDrops() uint64 {
	return e.lostDrops.Load()
}
