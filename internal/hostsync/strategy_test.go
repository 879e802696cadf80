package hostsync

import (
	"testing"
	"time"
)

func TestTimestamp_ToleranceBoundary(t *testing.T) {
	// The boundary is inclusive at exactly the tolerance and exclusive
	// beyond it.
	tests := []struct {
		name      string
		offset    time.Duration
		wantMatch bool
	}{
		{"well inside", 5 * time.Millisecond, true},
		{"just inside", 16 * time.Millisecond, true},
		{"exactly at tolerance", 16600 * time.Microsecond, true},
		{"just beyond", 17 * time.Millisecond, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec capture
			s, _ := newTestSync(t, Config{
				Streams:   []string{"a", "b"},
				Strategy:  StrategyTimestamp,
				Tolerance: 16600 * time.Microsecond,
			}, &rec)

			_ = s.Ingest(Message{StreamID: "a", Sequence: 1, Timestamp: 0})
			_ = s.Ingest(Message{StreamID: "b", Sequence: 1, Timestamp: tt.offset})

			if got := len(rec.groups) == 1; got != tt.wantMatch {
				t.Errorf("offset %s: match = %v, want %v", tt.offset, got, tt.wantMatch)
			}
		})
	}
}

func TestTimestamp_PicksNearestCandidate(t *testing.T) {
	var rec capture
	s, _ := newTestSync(t, Config{
		Streams:   []string{"a", "b"},
		Strategy:  StrategyTimestamp,
		Tolerance: 20 * time.Millisecond,
	}, &rec)

	// Two candidates inside tolerance; the closer one must win.
	_ = s.Ingest(Message{StreamID: "a", Sequence: 1, Timestamp: 10 * time.Millisecond})
	_ = s.Ingest(Message{StreamID: "a", Sequence: 2, Timestamp: 28 * time.Millisecond})
	_ = s.Ingest(Message{StreamID: "b", Sequence: 1, Timestamp: 25 * time.Millisecond})

	if len(rec.groups) != 1 {
		t.Fatalf("expected one group, got %d", len(rec.groups))
	}
	if got := rec.groups[0].Messages["a"].Sequence; got != 2 {
		t.Errorf("expected nearest candidate (seq 2), got seq %d", got)
	}
}

func TestTimestamp_DropsWhenWindowPassed(t *testing.T) {
	var rec capture
	s, _ := newTestSync(t, Config{
		Streams:   []string{"a", "b"},
		Strategy:  StrategyTimestamp,
		Tolerance: 10 * time.Millisecond,
	}, &rec)

	// b's oldest buffered message is far newer than a's window: the
	// arriving message on a can never be matched.
	_ = s.Ingest(Message{StreamID: "b", Sequence: 1, Timestamp: 100 * time.Millisecond})
	_ = s.Ingest(Message{StreamID: "a", Sequence: 1, Timestamp: 10 * time.Millisecond})

	timeouts := rec.dropped(DropTimeout)
	if len(timeouts) != 1 {
		t.Fatalf("expected one timeout drop, got %d", len(timeouts))
	}
	if timeouts[0].Message.StreamID != "a" {
		t.Errorf("wrong message dropped: %+v", timeouts[0].Message)
	}
	if len(rec.groups) != 0 {
		t.Errorf("no group expected, got %d", len(rec.groups))
	}
}

func TestTimestamp_WaitsForLaggingStream(t *testing.T) {
	var rec capture
	s, _ := newTestSync(t, Config{
		Streams:   []string{"a", "b"},
		Strategy:  StrategyTimestamp,
		Tolerance: 10 * time.Millisecond,
	}, &rec)

	// b's newest buffered message is older than a's window: b simply
	// hasn't delivered the partner yet, so a stays buffered.
	_ = s.Ingest(Message{StreamID: "b", Sequence: 1, Timestamp: 10 * time.Millisecond})
	_ = s.Ingest(Message{StreamID: "a", Sequence: 1, Timestamp: 100 * time.Millisecond})

	if len(rec.drops) != 0 || len(rec.groups) != 0 {
		t.Fatalf("expected everything buffered, got %d groups, %d drops",
			len(rec.groups), len(rec.drops))
	}
	if depths := s.Depths(); depths["a"] != 1 || depths["b"] != 1 {
		t.Errorf("unexpected depths: %v", depths)
	}

	// The partner arrives and completes the pair.
	_ = s.Ingest(Message{StreamID: "b", Sequence: 2, Timestamp: 95 * time.Millisecond})
	if len(rec.groups) != 1 {
		t.Fatalf("expected one group after partner arrived, got %d", len(rec.groups))
	}

	// b's stale seq 1 was skipped over by the match and is superseded.
	superseded := rec.dropped(DropSuperseded)
	if len(superseded) != 1 || superseded[0].Message.Sequence != 1 {
		t.Errorf("expected b seq 1 superseded, got %+v", superseded)
	}
}

func TestTimestamp_PairwiseCheckBlocksSkewedTriple(t *testing.T) {
	var rec capture
	s, _ := newTestSync(t, Config{
		Streams:   []string{"a", "b", "c"},
		Strategy:  StrategyTimestamp,
		Tolerance: 10 * time.Millisecond,
	}, &rec)

	// b and c are each within tolerance of a's arrival but not of each
	// other: no group may be emitted.
	_ = s.Ingest(Message{StreamID: "b", Sequence: 1, Timestamp: 0})
	_ = s.Ingest(Message{StreamID: "c", Sequence: 1, Timestamp: 16 * time.Millisecond})
	_ = s.Ingest(Message{StreamID: "a", Sequence: 1, Timestamp: 8 * time.Millisecond})

	if len(rec.groups) != 0 {
		t.Fatalf("pairwise-violating group emitted: %+v", rec.groups[0].Messages)
	}
}

func TestSequence_WaitsForLaggingStream(t *testing.T) {
	var rec capture
	s, _ := newTestSync(t, Config{
		Streams:  []string{"a", "b", "c"},
		Strategy: StrategySequence,
	}, &rec)

	_ = s.Ingest(Message{StreamID: "a", Sequence: 4, Timestamp: 4 * time.Millisecond})
	_ = s.Ingest(Message{StreamID: "b", Sequence: 4, Timestamp: 4 * time.Millisecond})

	if len(rec.groups) != 0 {
		t.Fatal("group emitted before all streams delivered")
	}

	_ = s.Ingest(Message{StreamID: "c", Sequence: 4, Timestamp: 4 * time.Millisecond})
	if len(rec.groups) != 1 {
		t.Fatalf("expected group after third stream delivered, got %d", len(rec.groups))
	}
	if len(rec.groups[0].Messages) != 3 {
		t.Errorf("incomplete group: %+v", rec.groups[0].Messages)
	}
}

func TestSequence_GroupSpreadIsZeroForIdenticalTimestamps(t *testing.T) {
	var rec capture
	s, _ := newTestSync(t, Config{Streams: []string{"a", "b"}, Strategy: StrategySequence}, &rec)

	_ = s.Ingest(Message{StreamID: "a", Sequence: 1, Timestamp: 33 * time.Millisecond})
	_ = s.Ingest(Message{StreamID: "b", Sequence: 1, Timestamp: 33 * time.Millisecond})

	if len(rec.groups) != 1 {
		t.Fatalf("expected one group, got %d", len(rec.groups))
	}
	if rec.groups[0].Spread != 0 {
		t.Errorf("expected zero spread, got %s", rec.groups[0].Spread)
	}
}
