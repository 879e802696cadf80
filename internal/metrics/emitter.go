package metrics

import (
	"github.com/visiona/framesync/internal/hostsync"
)

// Emitter feeds synchronizer output into the Prometheus collectors. It
// implements hostsync.Emitter.
type Emitter struct {
	pipeline string
}

// NewEmitter creates a metrics emitter for the named pipeline.
func NewEmitter(pipeline string) *Emitter {
	return &Emitter{pipeline: pipeline}
}

// OnGroup implements hostsync.Emitter.
func (e *Emitter) OnGroup(g hostsync.Group) {
	streams := make([]string, 0, len(g.Messages))
	for id := range g.Messages {
		streams = append(streams, id)
	}
	RecordGroup(e.pipeline, streams, g.Spread.Seconds())
}

// OnDrop implements hostsync.Emitter.
func (e *Emitter) OnDrop(d hostsync.Drop) {
	RecordDrop(e.pipeline, d.Message.StreamID, string(d.Reason))
}
