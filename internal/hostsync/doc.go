// Package hostsync synchronizes tagged messages arriving from multiple
// independent streams (camera frames, depth maps, inference results) into
// groups that represent the same capture instant.
//
// Each stream delivers messages in order, but streams are not ordered
// relative to each other and run at different rates and latencies. The
// Synchronizer buffers messages per stream and matches them either by
// exact sequence number or by bounded timestamp proximity. Every ingested
// message ends up in exactly one emitted Group or exactly one Drop, so
// consumers can audit that nothing was silently discarded.
package hostsync
