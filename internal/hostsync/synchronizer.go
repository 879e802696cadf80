package hostsync

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention bounds how long an unmatched message may sit in its
// buffer before it is evicted as a timeout drop.
const DefaultRetention = 500 * time.Millisecond

// Config declares which streams participate in synchronization and how
// they are matched.
type Config struct {
	// Streams lists the participating stream IDs. At least two are
	// required; a group is only emitted when every stream contributes.
	Streams []string

	// Strategy selects the matching policy.
	Strategy Kind

	// Tolerance is the maximum pairwise timestamp difference for the
	// timestamp strategy. Commonly derived from the capture period as
	// half of 1/FPS. Ignored by the sequence strategy.
	Tolerance time.Duration

	// Retention is the maximum host-side age of a buffered message
	// before eviction. Defaults to DefaultRetention.
	Retention time.Duration

	// MaxBuffered caps the per-stream buffer depth; when exceeded the
	// oldest message is evicted as an overflow drop. 0 means unbounded.
	MaxBuffered int
}

// Synchronizer owns one buffer per configured stream and applies the
// configured match strategy on every arrival. All mutations of the buffer
// set are serialized through a single mutex: a match attempt reads and
// potentially mutates every buffer atomically.
type Synchronizer struct {
	mu       sync.Mutex
	cfg      Config
	buffers  map[string]*streamBuffer
	strategy strategy
	emitters []Emitter
	logger   *slog.Logger
	clock    func() time.Time
	closed   bool
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithClock overrides the time source, used by tests and replay tooling.
func WithClock(clock func() time.Time) Option {
	return func(s *Synchronizer) {
		s.clock = clock
	}
}

// WithEmitter registers an emitter for groups and drops. May be given
// multiple times; emitters are invoked in registration order.
func WithEmitter(e Emitter) Option {
	return func(s *Synchronizer) {
		s.emitters = append(s.emitters, e)
	}
}

// New validates the configuration and creates a synchronizer.
func New(cfg Config, opts ...Option) (*Synchronizer, error) {
	if len(cfg.Streams) < 2 {
		return nil, NewSyncError(ErrCodeConfig,
			fmt.Sprintf("need at least two streams, got %d", len(cfg.Streams)), nil)
	}
	seen := make(map[string]bool, len(cfg.Streams))
	for _, id := range cfg.Streams {
		if id == "" {
			return nil, NewSyncError(ErrCodeConfig, "empty stream id", nil)
		}
		if seen[id] {
			return nil, NewSyncError(ErrCodeConfig, "duplicate stream id "+id, nil)
		}
		seen[id] = true
	}
	if cfg.Retention == 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Retention < 0 || cfg.MaxBuffered < 0 {
		return nil, NewSyncError(ErrCodeConfig, "retention and max_buffered must not be negative", nil)
	}

	var strat strategy
	switch cfg.Strategy {
	case StrategySequence:
		strat = sequenceStrategy{}
	case StrategyTimestamp:
		if cfg.Tolerance <= 0 {
			return nil, NewSyncError(ErrCodeConfig,
				"timestamp strategy requires a positive tolerance", nil)
		}
		strat = timestampStrategy{tolerance: cfg.Tolerance}
	default:
		return nil, NewSyncError(ErrCodeConfig,
			fmt.Sprintf("unknown strategy %q", cfg.Strategy), nil)
	}

	s := &Synchronizer{
		cfg:      cfg,
		buffers:  make(map[string]*streamBuffer, len(cfg.Streams)),
		strategy: strat,
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, id := range cfg.Streams {
		s.buffers[id] = newStreamBuffer(id, cfg.MaxBuffered)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddEmitter registers an emitter after construction. Needed when the
// emitter itself references the synchronizer, as in a cascade.
func (s *Synchronizer) AddEmitter(e Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitters = append(s.emitters, e)
}

// Ingest routes a message into its stream buffer and attempts a match.
// Emits at most one group and any number of drop records as side effects.
// Returns an error when the synchronizer is flushed, the stream is not
// configured, or the producer violated per-stream ordering.
func (s *Synchronizer) Ingest(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewSyncError(ErrCodeClosed, "ingest after flush", nil)
	}
	buf, ok := s.buffers[msg.StreamID]
	if !ok {
		return NewSyncError(ErrCodeUnknownStream,
			fmt.Sprintf("stream %q is not configured", msg.StreamID), nil)
	}

	now := s.clock()
	s.evictLocked(now)

	overflow, err := buf.push(msg, now)
	if err != nil {
		return err
	}
	if overflow != nil {
		s.logger.Debug("Buffer overflow, evicting oldest",
			"stream_id", msg.StreamID, "sequence", overflow.Message.Sequence)
		s.emitDrop(*overflow)
	}

	dec := s.strategy.match(s.buffers, msg)
	switch {
	case dec.dropArriving:
		e := buf.removeAt(buf.len() - 1)
		s.emitDrop(Drop{Message: e.msg, Reason: dec.dropReason, At: now})
	case dec.matched != nil:
		s.emitGroupLocked(dec.matched, now)
	}
	return nil
}

// Tick runs the eviction sweep across all buffers, bounding staleness
// independent of arrival rate. Safe to call from a timer goroutine.
func (s *Synchronizer) Tick(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewSyncError(ErrCodeClosed, "tick after flush", nil)
	}
	s.evictLocked(now)
	return nil
}

// Flush drains every buffer, emitting all remaining messages as shutdown
// drops, and closes the synchronizer. Subsequent calls fail with a closed
// error; no message ever disappears unaccounted for.
func (s *Synchronizer) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewSyncError(ErrCodeClosed, "flush after flush", nil)
	}
	s.closed = true

	now := s.clock()
	for _, id := range s.cfg.Streams {
		buf := s.buffers[id]
		for buf.len() > 0 {
			e := buf.removeAt(0)
			s.emitDrop(Drop{Message: e.msg, Reason: DropShutdown, At: now})
		}
	}
	return nil
}

// Depths reports the current number of buffered messages per stream.
func (s *Synchronizer) Depths() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	depths := make(map[string]int, len(s.buffers))
	for id, buf := range s.buffers {
		depths[id] = buf.len()
	}
	return depths
}

// Streams returns the configured stream IDs in declaration order.
func (s *Synchronizer) Streams() []string {
	ids := make([]string, len(s.cfg.Streams))
	copy(ids, s.cfg.Streams)
	return ids
}

// Strategy returns the configured matching strategy kind.
func (s *Synchronizer) Strategy() Kind {
	return s.cfg.Strategy
}

// evictLocked sweeps age-based eviction across all buffers.
func (s *Synchronizer) evictLocked(now time.Time) {
	for _, buf := range s.buffers {
		for _, d := range buf.evictOlderThan(now, s.cfg.Retention) {
			s.emitDrop(d)
		}
	}
}

// emitGroupLocked removes the picked entries from their buffers, emits
// the group, and evicts everything a matched entry skipped over. Entries
// older than a stream's matched member can never complete a later group:
// their partners on the other streams are already consumed.
func (s *Synchronizer) emitGroupLocked(picks map[string]int, now time.Time) {
	msgs := make(map[string]Message, len(picks))
	var superseded []Drop

	for id, idx := range picks {
		buf := s.buffers[id]
		for i := 0; i < idx; i++ {
			e := buf.removeAt(0)
			superseded = append(superseded, Drop{Message: e.msg, Reason: DropSuperseded, At: now})
		}
		msgs[id] = buf.removeAt(0).msg
	}

	group := Group{
		ID:        uuid.NewString(),
		Messages:  msgs,
		MatchedAt: now,
		Spread:    spread(msgs),
	}

	for _, d := range superseded {
		s.emitDrop(d)
	}
	for _, e := range s.emitters {
		e.OnGroup(group)
	}
	s.logger.Debug("Group synchronized",
		"group_id", group.ID, "spread", group.Spread)
}

func (s *Synchronizer) emitDrop(d Drop) {
	for _, e := range s.emitters {
		e.OnDrop(d)
	}
}

// spread computes the largest pairwise timestamp difference in a group.
func spread(msgs map[string]Message) time.Duration {
	var minTS, maxTS time.Duration
	first := true
	for _, m := range msgs {
		if first {
			minTS, maxTS = m.Timestamp, m.Timestamp
			first = false
			continue
		}
		if m.Timestamp < minTS {
			minTS = m.Timestamp
		}
		if m.Timestamp > maxTS {
			maxTS = m.Timestamp
		}
	}
	return maxTS - minTS
}
