package hostsync

import (
	"testing"
	"time"
)

func newCascadeFixture(t *testing.T, recFirst, recSecond *capture) *Cascade {
	t.Helper()

	// Stage one matches detections to frames; stage two matches the
	// resulting pairs to recognition results.
	first, err := New(Config{
		Streams:  []string{"frames", "detections"},
		Strategy: StrategySequence,
	}, WithEmitter(recFirst))
	if err != nil {
		t.Fatalf("first stage: %v", err)
	}

	second, err := New(Config{
		Streams:  []string{"pairs", "recognitions"},
		Strategy: StrategySequence,
	}, WithEmitter(recSecond))
	if err != nil {
		t.Fatalf("second stage: %v", err)
	}

	c, err := NewCascade(first, second, "frames", "pairs", nil)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	return c
}

func TestCascade_ForwardsFirstStageGroups(t *testing.T) {
	var recFirst, recSecond capture
	c := newCascadeFixture(t, &recFirst, &recSecond)

	feed := func(stream string, seq int64) {
		t.Helper()
		if err := c.Ingest(Message{StreamID: stream, Sequence: seq, Timestamp: time.Duration(seq) * 33 * time.Millisecond}); err != nil {
			t.Fatalf("ingest %s/%d: %v", stream, seq, err)
		}
	}

	feed("frames", 1)
	feed("detections", 1)
	if len(recFirst.groups) != 1 {
		t.Fatalf("first stage did not match: %d groups", len(recFirst.groups))
	}
	if len(recSecond.groups) != 0 {
		t.Fatal("second stage matched before recognition arrived")
	}

	feed("recognitions", 1)
	if len(recSecond.groups) != 1 {
		t.Fatalf("expected one second-stage group, got %d", len(recSecond.groups))
	}

	g := recSecond.groups[0]
	inner, ok := g.Messages["pairs"].Payload.(Group)
	if !ok {
		t.Fatalf("pairs payload is not a first-stage group: %T", g.Messages["pairs"].Payload)
	}
	if inner.Messages["frames"].Sequence != 1 || inner.Messages["detections"].Sequence != 1 {
		t.Errorf("inner group holds wrong members: %+v", inner.Messages)
	}
	// The forwarded message carries the primary stream's tags.
	if g.Messages["pairs"].Sequence != 1 {
		t.Errorf("forwarded sequence: got %d, want 1", g.Messages["pairs"].Sequence)
	}
}

func TestCascade_ValidatesStreamNames(t *testing.T) {
	first, _ := New(Config{Streams: []string{"frames", "detections"}, Strategy: StrategySequence})
	second, _ := New(Config{Streams: []string{"pairs", "recognitions"}, Strategy: StrategySequence})

	if _, err := NewCascade(first, second, "nope", "pairs", nil); !IsCode(err, ErrCodeConfig) {
		t.Errorf("expected CONFIG_ERROR for bad primary, got %v", err)
	}
	if _, err := NewCascade(first, second, "frames", "nope", nil); !IsCode(err, ErrCodeConfig) {
		t.Errorf("expected CONFIG_ERROR for bad target, got %v", err)
	}
}

func TestCascade_FlushDrainsBothStages(t *testing.T) {
	var recFirst, recSecond capture
	c := newCascadeFixture(t, &recFirst, &recSecond)

	// A full first-stage group with no recognition yet, plus a lone frame.
	_ = c.Ingest(Message{StreamID: "frames", Sequence: 1, Timestamp: 33 * time.Millisecond})
	_ = c.Ingest(Message{StreamID: "detections", Sequence: 1, Timestamp: 33 * time.Millisecond})
	_ = c.Ingest(Message{StreamID: "frames", Sequence: 2, Timestamp: 66 * time.Millisecond})

	if err := c.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	// The lone frame drains from stage one, the unmatched pair from stage
	// two; both carry the shutdown reason.
	if got := recFirst.dropped(DropShutdown); len(got) != 1 {
		t.Errorf("expected 1 first-stage shutdown drop, got %d", len(got))
	}
	if got := recSecond.dropped(DropShutdown); len(got) != 1 {
		t.Errorf("expected 1 second-stage shutdown drop, got %d", len(got))
	}
}
