// Package store keeps a bounded, ordered record of recent ingest activity,
// served back by the /store/recent API.
package store

import "sync"

// Record summarizes one accepted /events request.
type Record struct {
	TS          int64  `json:"ts"`
	Fingerprint string `json:"fingerprint"`
	Bytes       int    `json:"bytes"`
	Duplicate   bool   `json:"duplicate"`
}

// Ring is a fixed-capacity sequence of Records, newest at the tail.
// On overflow the oldest Record is dropped.
type Ring struct {
	mu    sync.Mutex
	limit int
	recs  []Record
}

// NewRing returns a Ring retaining at most |limit| records.
func NewRing(limit int) *Ring {
	return &Ring{limit: limit}
}

// Push appends |rec|, trimming from the front to honor the capacity bound.
func (r *Ring) Push(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recs = append(r.recs, rec)
	if n := len(r.recs) - r.limit; n > 0 {
		r.recs = append(r.recs[:0:0], r.recs[n:]...)
	}
}

// Tail returns the last min(k, len) records, oldest first.
func (r *Ring) Tail(k int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if k > len(r.recs) {
		k = len(r.recs)
	}
	var out = make([]Record, k)
	copy(out, r.recs[len(r.recs)-k:])
	return out
}

// Len is the current number of retained records.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

// Limit is the configured capacity bound.
func (r *Ring) Limit() int { return r.limit }
