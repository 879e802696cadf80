// Package nats provides NATS messaging between message producers and the
// synchronization service.
//
// # Architecture
//
//   - Server: Embedded NATS server running in the main process (framesync serve)
//   - Bridge: Subscribes to ingest subjects and feeds the pipeline manager
//   - Publisher: Forwards synchronized groups and drops from the event bus to NATS
//
// # Subject Hierarchy
//
//	framesync.ingest.{pipeline}.{stream}   # Producer messages (producer → service)
//	framesync.sync.{pipeline}.groups       # Synchronized groups (service → consumers)
//	framesync.sync.{pipeline}.drops        # Drop records (service → consumers)
//
// The package uses fire-and-forget messaging (core NATS, no JetStream).
// The publisher gracefully degrades when NATS is unavailable.
//
// # Debugging with nats CLI
//
// Monitor all synchronized output:
//
//	nats sub "framesync.sync.>"
//
// Inject a message manually:
//
//	nats pub "framesync.ingest.depth.color" '{"sequence":5,"timestamp_ms":165.0}'
//
// # Message Formats
//
// IngestMessage (framesync.ingest.{pipeline}.{stream}):
//
//	{
//	  "sequence": 5,
//	  "timestamp_ms": 165.0
//	}
//
// GroupMessage (framesync.sync.{pipeline}.groups):
//
//	{
//	  "pipeline": "depth",
//	  "group_id": "6f9c...",
//	  "members": {"color": {"sequence": 5, "timestamp_ms": 165.0}},
//	  "spread_ms": 2.1,
//	  "timestamp": "2024-01-01T12:00:00Z"
//	}
//
// DropMessage (framesync.sync.{pipeline}.drops):
//
//	{
//	  "pipeline": "depth",
//	  "stream_id": "nn",
//	  "sequence": 4,
//	  "timestamp_ms": 132.0,
//	  "reason": "timeout",
//	  "timestamp": "2024-01-01T12:00:00Z"
//	}
package nats
