package events

// Event type constants for kelindar/event.
const (
	TypeGroupSynced uint32 = iota + 1
	TypeMessageDropped
	TypePipelineFlushed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// GroupMember carries the tags of one message inside a synchronized group.
type GroupMember struct {
	Sequence    int64   `json:"sequence" doc:"Producer-assigned sequence number"`
	TimestampMs float64 `json:"timestamp_ms" doc:"Device timestamp in milliseconds since the shared epoch"`
}

// GroupSyncedEvent is published whenever a pipeline emits a synchronized
// group. Payloads stay with the in-process consumer; only tags travel.
type GroupSyncedEvent struct {
	Pipeline  string                 `json:"pipeline" example:"depth" doc:"Pipeline that produced the group"`
	GroupID   string                 `json:"group_id" doc:"Unique group identifier"`
	Members   map[string]GroupMember `json:"members" doc:"Per-stream message tags"`
	SpreadMs  float64                `json:"spread_ms" doc:"Largest pairwise timestamp difference in milliseconds"`
	Timestamp string                 `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Emission timestamp"`
}

// Type returns the event type identifier for GroupSyncedEvent.
func (e GroupSyncedEvent) Type() uint32 { return TypeGroupSynced }

// MessageDroppedEvent is published for every message that left its buffer
// unmatched.
type MessageDroppedEvent struct {
	Pipeline    string  `json:"pipeline" example:"depth" doc:"Pipeline that dropped the message"`
	StreamID    string  `json:"stream_id" example:"color" doc:"Stream the message belonged to"`
	Sequence    int64   `json:"sequence" doc:"Producer-assigned sequence number"`
	TimestampMs float64 `json:"timestamp_ms" doc:"Device timestamp in milliseconds since the shared epoch"`
	Reason      string  `json:"reason" example:"timeout" doc:"Why the message could not be matched"`
	Timestamp   string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Emission timestamp"`
}

// Type returns the event type identifier for MessageDroppedEvent.
func (e MessageDroppedEvent) Type() uint32 { return TypeMessageDropped }

// PipelineFlushedEvent is published when a pipeline is drained, either on
// shutdown or on a configuration reload.
type PipelineFlushedEvent struct {
	Pipeline  string `json:"pipeline" example:"depth" doc:"Flushed pipeline"`
	Reason    string `json:"reason" example:"reload" doc:"Why the pipeline was flushed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Flush timestamp"`
}

// Type returns the event type identifier for PipelineFlushedEvent.
func (e PipelineFlushedEvent) Type() uint32 { return TypePipelineFlushed }
