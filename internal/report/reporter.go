// Package report accumulates per-stream match/drop counts and pairwise
// timestamp delta distributions for synchronized pipelines. The reporter
// is a pure observer: it implements hostsync.Emitter and never influences
// matching decisions.
package report

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/visiona/framesync/internal/hostsync"
)

// recentCapacity bounds the ring of recent delta samples kept per pair.
const recentCapacity = 256

// StreamStats are the per-stream counters in a snapshot.
type StreamStats struct {
	Matched uint64                         `json:"matched"`
	Dropped map[hostsync.DropReason]uint64 `json:"dropped"`
}

// PairStats describe the running distribution of timestamp deltas between
// two streams across matched groups, e.g. "rgb-left diff". Deltas are
// signed: first stream minus second stream in the pair key.
type PairStats struct {
	Count  uint64          `json:"count"`
	Min    time.Duration   `json:"min"`
	Max    time.Duration   `json:"max"`
	Mean   time.Duration   `json:"mean"`
	Recent []time.Duration `json:"recent"`
}

// Snapshot is a read-only copy of the reporter state.
type Snapshot struct {
	Pipeline    string                 `json:"pipeline"`
	Groups      uint64                 `json:"groups"`
	Streams     map[string]StreamStats `json:"streams"`
	Pairs       map[string]PairStats   `json:"pairs"`
	GeneratedAt time.Time              `json:"generated_at"`
}

type pairAccum struct {
	count  uint64
	min    time.Duration
	max    time.Duration
	sum    time.Duration
	recent []time.Duration // ring buffer
	head   int
	filled bool
}

// Reporter accumulates statistics for one pipeline.
type Reporter struct {
	mu       sync.RWMutex
	pipeline string
	groups   uint64
	streams  map[string]*StreamStats
	pairs    map[string]*pairAccum
}

// New creates a reporter for the named pipeline.
func New(pipeline string) *Reporter {
	return &Reporter{
		pipeline: pipeline,
		streams:  make(map[string]*StreamStats),
		pairs:    make(map[string]*pairAccum),
	}
}

// OnGroup implements hostsync.Emitter.
func (r *Reporter) OnGroup(g hostsync.Group) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.groups++

	ids := make([]string, 0, len(g.Messages))
	for id := range g.Messages {
		r.stream(id).Matched++
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			delta := g.Messages[ids[i]].Timestamp - g.Messages[ids[j]].Timestamp
			r.pair(ids[i], ids[j]).observe(delta)
		}
	}
}

// OnDrop implements hostsync.Emitter.
func (r *Reporter) OnDrop(d hostsync.Drop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stream(d.Message.StreamID).Dropped[d.Reason]++
}

// Snapshot returns a deep copy of the accumulated statistics.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Pipeline:    r.pipeline,
		Groups:      r.groups,
		Streams:     make(map[string]StreamStats, len(r.streams)),
		Pairs:       make(map[string]PairStats, len(r.pairs)),
		GeneratedAt: time.Now(),
	}
	for id, st := range r.streams {
		dropped := make(map[hostsync.DropReason]uint64, len(st.Dropped))
		for reason, n := range st.Dropped {
			dropped[reason] = n
		}
		snap.Streams[id] = StreamStats{Matched: st.Matched, Dropped: dropped}
	}
	for key, acc := range r.pairs {
		snap.Pairs[key] = acc.stats()
	}
	return snap
}

// Pipeline returns the pipeline name this reporter observes.
func (r *Reporter) Pipeline() string {
	return r.pipeline
}

func (r *Reporter) stream(id string) *StreamStats {
	st, ok := r.streams[id]
	if !ok {
		st = &StreamStats{Dropped: make(map[hostsync.DropReason]uint64)}
		r.streams[id] = st
	}
	return st
}

func (r *Reporter) pair(a, b string) *pairAccum {
	key := fmt.Sprintf("%s-%s", a, b)
	acc, ok := r.pairs[key]
	if !ok {
		acc = &pairAccum{recent: make([]time.Duration, recentCapacity)}
		r.pairs[key] = acc
	}
	return acc
}

func (a *pairAccum) observe(delta time.Duration) {
	if a.count == 0 || delta < a.min {
		a.min = delta
	}
	if a.count == 0 || delta > a.max {
		a.max = delta
	}
	a.count++
	a.sum += delta

	a.recent[a.head] = delta
	a.head = (a.head + 1) % len(a.recent)
	if a.head == 0 {
		a.filled = true
	}
}

func (a *pairAccum) stats() PairStats {
	st := PairStats{
		Count: a.count,
		Min:   a.min,
		Max:   a.max,
	}
	if a.count > 0 {
		st.Mean = a.sum / time.Duration(a.count)
	}

	// Copy the ring oldest-first.
	size := a.head
	if a.filled {
		size = len(a.recent)
	}
	st.Recent = make([]time.Duration, 0, size)
	start := 0
	if a.filled {
		start = a.head
	}
	for i := 0; i < size; i++ {
		st.Recent = append(st.Recent, a.recent[(start+i)%len(a.recent)])
	}
	return st
}
