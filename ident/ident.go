// Package ident mints identifiers and timestamps used across the gateway.
package ident

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NowMS is the current wall-clock time in milliseconds since the epoch.
func NowMS() int64 { return time.Now().UnixMilli() }

// ISO renders |t| as an RFC 3339 timestamp with millisecond precision, in UTC.
func ISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// EventID synthesizes an identifier for an event which arrived without one.
func EventID(source, user string, t time.Time) string {
	return fmt.Sprintf("evt_%s_%s_%d_%s", source, user, t.UnixMilli(), RandHex(4))
}

// JobID mints an identifier for one accepted /ingest submission.
func JobID(t time.Time) string {
	var compact = t.UTC().Format("20060102T150405Z")
	return fmt.Sprintf("job_%s_%s", compact, RandHex(6))
}

// BatchID mints an identifier for one accepted /events request.
func BatchID(t time.Time) string {
	return fmt.Sprintf("req_%d_%s", t.UnixMilli(), RandHex(4))
}

// TraceID mints a fresh trace identifier.
func TraceID() string { return uuid.NewString() }

// RandHex returns |n| bytes of entropy, hex-encoded.
func RandHex(n int) string {
	var b = make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// timestamp-derived suffix rather than panicking in the ingest path.
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:n*2]
	}
	return hex.EncodeToString(b)
}
