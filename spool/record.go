// Package spool implements the durable JSONL staging file: serialized
// appends with size-based rotation, line-aligned reads from a byte offset,
// and the persisted replay cursor.
package spool

import "encoding/json"

// Stages under which records are spooled.
const (
	// StageAlways marks records written unconditionally as an audit log.
	StageAlways = "jsonl.always"
	// StageFallback marks records written because the webhook path failed.
	StageFallback = "jsonl.fallback"
)

// Record is one spooled line.
type Record struct {
	TS              string          `json:"ts"`
	Kind            string          `json:"kind"`
	Stage           string          `json:"stage"`
	Reason          string          `json:"reason,omitempty"`
	JobID           string          `json:"job_id"`
	TraceID         string          `json:"trace_id"`
	Source          string          `json:"source"`
	EventType       string          `json:"event_type"`
	Payload         json.RawMessage `json:"payload"`
	ReceivedAt      string          `json:"received_at"`
	IngestLatencyMS int64           `json:"ingest_latency_ms"`
}
