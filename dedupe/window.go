// Package dedupe implements the short-horizon duplicate suppression window
// consulted by the ingest path.
package dedupe

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// capacity bounds the number of fingerprints retained, independent of the
// time horizon. At ingest line rate this is several minutes of traffic.
const capacity = 65536

// Window is a bounded fingerprint -> last-seen mapping. A fingerprint is a
// duplicate iff it was recorded within the configured horizon. Entries age
// out lazily: a stale hit reports not-duplicate and is re-recorded, and the
// LRU bound keeps the structure from growing without limit.
type Window struct {
	mu      sync.Mutex
	horizon time.Duration
	seen    *lru.Cache[string, int64]
}

// NewWindow returns a Window with the given duplicate horizon.
func NewWindow(horizon time.Duration) *Window {
	var seen, err = lru.New[string, int64](capacity)
	if err != nil {
		panic(err) // Unreachable: capacity is a positive constant.
	}
	return &Window{horizon: horizon, seen: seen}
}

// CheckAndRecord probes |fingerprint| at |now| and records the observation.
// It returns true iff the fingerprint was already seen within the horizon.
// An empty fingerprint is never a duplicate and is not recorded.
func (w *Window) CheckAndRecord(fingerprint string, now time.Time) bool {
	if fingerprint == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var nowMS = now.UnixMilli()
	var last, ok = w.seen.Get(fingerprint)
	w.seen.Add(fingerprint, nowMS)

	return ok && nowMS-last <= w.horizon.Milliseconds()
}

// Len is the number of retained fingerprints, stale entries included.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seen.Len()
}

// HorizonMS is the configured duplicate horizon in milliseconds.
func (w *Window) HorizonMS() int64 { return w.horizon.Milliseconds() }
