package hostsync

import (
	"fmt"
	"log/slog"
	"slices"
)

// Cascade chains two synchronizers for two-stage pipelines, e.g.
// detections matched to frames first, recognition results matched to the
// detection groups second. Every group emitted by the first stage is
// re-ingested into one declared stream of the second stage, tagged with
// the sequence and timestamp of the first stage's primary stream and
// carrying the whole group as payload.
type Cascade struct {
	first   *Synchronizer
	second  *Synchronizer
	primary string
	into    string
	logger  *slog.Logger
}

// NewCascade wires first-stage groups into the second stage. primary
// must be a stream of the first stage (its tags travel forward), into a
// stream of the second.
func NewCascade(first, second *Synchronizer, primary, into string, logger *slog.Logger) (*Cascade, error) {
	if !slices.Contains(first.Streams(), primary) {
		return nil, NewSyncError(ErrCodeConfig,
			fmt.Sprintf("primary stream %q is not part of the first stage", primary), nil)
	}
	if !slices.Contains(second.Streams(), into) {
		return nil, NewSyncError(ErrCodeConfig,
			fmt.Sprintf("stream %q is not part of the second stage", into), nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cascade{
		first:   first,
		second:  second,
		primary: primary,
		into:    into,
		logger:  logger,
	}
	first.AddEmitter(c)
	return c, nil
}

// Ingest routes a message to whichever stage declares its stream.
func (c *Cascade) Ingest(msg Message) error {
	if slices.Contains(c.first.Streams(), msg.StreamID) {
		return c.first.Ingest(msg)
	}
	return c.second.Ingest(msg)
}

// Flush drains the first stage, then the second, so in-flight first-stage
// groups are still forwarded before the second stage closes.
func (c *Cascade) Flush() error {
	if err := c.first.Flush(); err != nil {
		return err
	}
	return c.second.Flush()
}

// OnGroup implements Emitter for the first stage.
func (c *Cascade) OnGroup(g Group) {
	tag := g.Messages[c.primary]
	err := c.second.Ingest(Message{
		StreamID:  c.into,
		Sequence:  tag.Sequence,
		Timestamp: tag.Timestamp,
		Payload:   g,
	})
	if err != nil {
		c.logger.Warn("Cascade forward failed",
			"group_id", g.ID, "error", err)
	}
}

// OnDrop implements Emitter; first-stage drops are reported by the first
// stage's own emitters and do not propagate.
func (c *Cascade) OnDrop(Drop) {}
