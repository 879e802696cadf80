package hostsync

import (
	"fmt"
	"time"
)

// entry pairs a buffered message with its host arrival time. Arrival time
// drives retention eviction and breaks ties between equally close
// timestamp candidates.
type entry struct {
	msg     Message
	arrived time.Time
}

// streamBuffer is the ordered holding area for one stream's not-yet-matched
// messages, oldest first. It owns its messages until they are matched into
// a group or evicted as drops.
type streamBuffer struct {
	streamID    string
	entries     []entry
	maxBuffered int // 0 means unbounded
}

func newStreamBuffer(streamID string, maxBuffered int) *streamBuffer {
	return &streamBuffer{
		streamID:    streamID,
		maxBuffered: maxBuffered,
	}
}

// push appends a message at the tail, enforcing the per-stream ordering
// invariant: strictly increasing sequence, non-decreasing timestamp.
// A violation signals a producer bug upstream and is surfaced immediately.
// When the buffer exceeds its configured capacity, the oldest message is
// forcibly evicted and returned as an overflow drop.
func (b *streamBuffer) push(msg Message, now time.Time) (*Drop, error) {
	if n := len(b.entries); n > 0 {
		last := b.entries[n-1].msg
		if msg.Sequence <= last.Sequence {
			return nil, NewSyncError(ErrCodeOutOfOrder,
				fmt.Sprintf("stream %s: sequence %d arrived after %d",
					b.streamID, msg.Sequence, last.Sequence), nil)
		}
		if msg.Timestamp < last.Timestamp {
			return nil, NewSyncError(ErrCodeOutOfOrder,
				fmt.Sprintf("stream %s: timestamp %s arrived after %s",
					b.streamID, msg.Timestamp, last.Timestamp), nil)
		}
	}

	b.entries = append(b.entries, entry{msg: msg, arrived: now})

	if b.maxBuffered > 0 && len(b.entries) > b.maxBuffered {
		oldest := b.entries[0]
		b.removeAt(0)
		return &Drop{Message: oldest.msg, Reason: DropOverflow, At: now}, nil
	}
	return nil, nil
}

// oldest returns the head entry without removing it.
func (b *streamBuffer) oldest() (entry, bool) {
	if len(b.entries) == 0 {
		return entry{}, false
	}
	return b.entries[0], true
}

// removeAt removes and returns the entry at index i, shifting the rest
// forward. Clears the vacated slot so payloads are not retained.
func (b *streamBuffer) removeAt(i int) entry {
	e := b.entries[i]
	copy(b.entries[i:], b.entries[i+1:])
	b.entries[len(b.entries)-1] = entry{}
	b.entries = b.entries[:len(b.entries)-1]
	return e
}

// evictOlderThan removes every message whose host age exceeds the
// retention bound and returns them as timeout drops. Called on every tick
// so a stalled stream cannot hold matching hostage.
func (b *streamBuffer) evictOlderThan(now time.Time, retention time.Duration) []Drop {
	var drops []Drop
	for len(b.entries) > 0 && now.Sub(b.entries[0].arrived) > retention {
		e := b.removeAt(0)
		drops = append(drops, Drop{Message: e.msg, Reason: DropTimeout, At: now})
	}
	return drops
}

func (b *streamBuffer) len() int {
	return len(b.entries)
}
