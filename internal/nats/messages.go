package nats

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Subject prefixes for NATS topics.
const (
	SubjectIngestPrefix = "framesync.ingest"
	SubjectSyncPrefix   = "framesync.sync"
)

// SubjectIngest returns the NATS subject producers publish messages to.
func SubjectIngest(pipeline, stream string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectIngestPrefix, pipeline, stream)
}

// SubjectSyncGroups returns the NATS subject synchronized groups are
// published on.
func SubjectSyncGroups(pipeline string) string {
	return fmt.Sprintf("%s.%s.groups", SubjectSyncPrefix, pipeline)
}

// SubjectSyncDrops returns the NATS subject drop records are published on.
func SubjectSyncDrops(pipeline string) string {
	return fmt.Sprintf("%s.%s.drops", SubjectSyncPrefix, pipeline)
}

// ParseIngestSubject extracts pipeline and stream from an ingest subject.
func ParseIngestSubject(subject string) (pipeline, stream string, err error) {
	rest, ok := strings.CutPrefix(subject, SubjectIngestPrefix+".")
	if !ok {
		return "", "", fmt.Errorf("not an ingest subject: %s", subject)
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed ingest subject: %s", subject)
	}
	return parts[0], parts[1], nil
}

// IngestMessage represents one stream message published by a producer.
// Only tags travel over the wire; payloads stay with the producer.
type IngestMessage struct {
	Sequence    int64   `json:"sequence"`
	TimestampMs float64 `json:"timestamp_ms"`
}

// Marshal serializes the message to JSON.
func (m IngestMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// GroupMemberMessage carries the tags of one group member.
type GroupMemberMessage struct {
	Sequence    int64   `json:"sequence"`
	TimestampMs float64 `json:"timestamp_ms"`
}

// GroupMessage represents a synchronized group sent over NATS.
type GroupMessage struct {
	Pipeline  string                        `json:"pipeline"`
	GroupID   string                        `json:"group_id"`
	Members   map[string]GroupMemberMessage `json:"members"`
	SpreadMs  float64                       `json:"spread_ms"`
	Timestamp string                        `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m GroupMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// DropMessage represents a dropped message record sent over NATS.
type DropMessage struct {
	Pipeline    string  `json:"pipeline"`
	StreamID    string  `json:"stream_id"`
	Sequence    int64   `json:"sequence"`
	TimestampMs float64 `json:"timestamp_ms"`
	Reason      string  `json:"reason"`
	Timestamp   string  `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m DropMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalIngest deserializes an IngestMessage from JSON.
func UnmarshalIngest(data []byte) (IngestMessage, error) {
	var m IngestMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalGroup deserializes a GroupMessage from JSON.
func UnmarshalGroup(data []byte) (GroupMessage, error) {
	var m GroupMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalDrop deserializes a DropMessage from JSON.
func UnmarshalDrop(data []byte) (DropMessage, error) {
	var m DropMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
