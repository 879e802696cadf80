package hostsync

import "time"

// Kind selects the matching policy applied by a synchronizer.
type Kind string

// Supported matching strategies.
const (
	// StrategySequence matches messages by exact sequence number
	// equality. Correct for streams produced in lockstep on one device,
	// where a shared tick assigns the same sequence to related outputs.
	StrategySequence Kind = "sequence"

	// StrategyTimestamp matches messages whose device timestamps all lie
	// within a configured tolerance of each other. Required whenever
	// streams come from independently clocked (but synchronized)
	// sources, where exact equality would almost never occur.
	StrategyTimestamp Kind = "timestamp"
)

// decision is the outcome of one match attempt for an arriving message.
// Exactly one of the fields is meaningful: matched picks one buffered
// entry per stream (the arriving message included), dropArriving evicts
// the arriving message, and the zero decision leaves everything buffered.
type decision struct {
	matched      map[string]int // stream id -> entry index
	dropArriving bool
	dropReason   DropReason
}

// strategy decides whether the message that just arrived completes a
// group. Buffers are only read; the synchronizer applies the decision.
type strategy interface {
	match(buffers map[string]*streamBuffer, arrived Message) decision
}

// sequenceStrategy requires the exact same sequence number in every
// stream. Buffers are scanned from the front; because sequences are
// strictly increasing the scan can stop at the first greater value.
type sequenceStrategy struct{}

func (sequenceStrategy) match(buffers map[string]*streamBuffer, arrived Message) decision {
	picks := map[string]int{
		arrived.StreamID: buffers[arrived.StreamID].len() - 1,
	}

	for id, buf := range buffers {
		if id == arrived.StreamID {
			continue
		}

		idx := -1
		for i, e := range buf.entries {
			if e.msg.Sequence == arrived.Sequence {
				idx = i
				break
			}
			if e.msg.Sequence > arrived.Sequence {
				break
			}
		}

		if idx == -1 {
			// If the oldest buffered message already has a greater
			// sequence, the partner for this tick has passed and the
			// arriving message can never be matched.
			if oldest, ok := buf.oldest(); ok && oldest.msg.Sequence > arrived.Sequence {
				return decision{dropArriving: true, dropReason: DropSuperseded}
			}
			// The lagging stream simply hasn't delivered yet.
			return decision{}
		}
		picks[id] = idx
	}

	return decision{matched: picks}
}

// timestampStrategy picks, per stream, the buffered message closest to the
// arriving one and emits a group only if every pairwise difference is
// within tolerance (inclusive at exactly the tolerance).
type timestampStrategy struct {
	tolerance time.Duration
}

func (st timestampStrategy) match(buffers map[string]*streamBuffer, arrived Message) decision {
	picks := map[string]int{
		arrived.StreamID: buffers[arrived.StreamID].len() - 1,
	}
	chosen := []Message{arrived}

	for id, buf := range buffers {
		if id == arrived.StreamID {
			continue
		}

		if buf.len() == 0 {
			// Nothing buffered yet; a candidate may still arrive.
			return decision{}
		}

		// Nearest neighbor by absolute timestamp difference. Entries are
		// ordered by arrival, so a strict comparison keeps the earliest
		// of equally close candidates.
		best := -1
		var bestDiff time.Duration
		for i, e := range buf.entries {
			d := absDuration(e.msg.Timestamp - arrived.Timestamp)
			if best == -1 || d < bestDiff {
				best = i
				bestDiff = d
			}
		}

		if bestDiff > st.tolerance {
			// The match window has passed if even the oldest buffered
			// message is already newer than the far edge of the window.
			if oldest, _ := buf.oldest(); oldest.msg.Timestamp > arrived.Timestamp+st.tolerance {
				return decision{dropArriving: true, dropReason: DropTimeout}
			}
			return decision{}
		}

		picks[id] = best
		chosen = append(chosen, buf.entries[best].msg)
	}

	// Every candidate is within tolerance of the arriving message; the
	// group is only valid if they are also within tolerance of each other.
	for i := 0; i < len(chosen); i++ {
		for j := i + 1; j < len(chosen); j++ {
			if absDuration(chosen[i].Timestamp-chosen[j].Timestamp) > st.tolerance {
				return decision{}
			}
		}
	}

	return decision{matched: picks}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
