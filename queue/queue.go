// Package queue implements the bounded forward queue of pending sink batches,
// and the periodic worker which drains it with retry and backoff.
package queue

import (
	"sync"
	"time"
)

// Item is one pending unit of work for the batch sink. Payload is the
// canonical request body as accepted at ingest time, and is immutable once
// enqueued: what the external sink eventually sees is exactly what the
// client sent.
type Item struct {
	ID            string `json:"id"`
	Fingerprint   string `json:"fingerprint"`
	Bytes         int    `json:"bytes"`
	ReceivedAt    string `json:"received_at"`
	Payload       string `json:"payload"`
	Retry         int    `json:"retry"`
	LastError     string `json:"last_error,omitempty"`
	NextAttemptAt int64  `json:"next_attempt_at_ms"`
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Length  int   `json:"length"`
	Limit   int   `json:"limit"`
	Synced  int64 `json:"synced"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Queue is a bounded FIFO of Items with per-item retry state.
// When full, enqueueing drops the oldest item.
type Queue struct {
	mu          sync.Mutex
	limit       int
	maxRetry    int
	backoffBase time.Duration
	items       []*Item

	synced  int64
	failed  int64
	dropped int64
}

// New returns a Queue bounded at |limit| items, dropping items whose retry
// count exceeds |maxRetry|, with exponential backoff starting at |backoffBase|.
func New(limit, maxRetry int, backoffBase time.Duration) *Queue {
	return &Queue{limit: limit, maxRetry: maxRetry, backoffBase: backoffBase}
}

// Enqueue appends |item|. If the queue is at capacity the head is dropped
// first and the dropped counter is incremented.
func (q *Queue) Enqueue(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.limit {
		q.items = append(q.items[:0:0], q.items[1:]...)
		q.dropped++
		droppedCounter.Inc()
	}
	q.items = append(q.items, &item)
}

// Candidates returns copies of the first up-to-|max| items which are due at
// |now|, in insertion order.
func (q *Queue) Candidates(now time.Time, max int) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	var nowMS = now.UnixMilli()
	var out []Item
	for _, it := range q.items {
		if len(out) >= max {
			break
		}
		if it.NextAttemptAt <= nowMS {
			out = append(out, *it)
		}
	}
	return out
}

// RemoveAll deletes items by ID, returning the number removed and crediting
// them to the synced counter.
func (q *Queue) RemoveAll(ids []string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	var drop = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	var kept = q.items[:0]
	var removed int
	for _, it := range q.items {
		if _, ok := drop[it.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	q.items = kept
	q.synced += int64(removed)
	syncedCounter.Add(float64(removed))
	return removed
}

// DeferDue walks the due prefix of up to |max| items, records |cause| against
// each, and either drops the item (retry budget exhausted) or schedules its
// next attempt with exponential backoff.
func (q *Queue) DeferDue(now time.Time, max int, cause string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var nowMS = now.UnixMilli()
	var kept = q.items[:0]
	var touched int
	for _, it := range q.items {
		if touched >= max || it.NextAttemptAt > nowMS {
			kept = append(kept, it)
			continue
		}
		touched++
		it.Retry++
		it.LastError = cause

		if it.Retry > q.maxRetry {
			q.failed++
			failedCounter.Inc()
			continue
		}
		var backoff = q.backoffBase << (it.Retry - 1)
		it.NextAttemptAt = nowMS + backoff.Milliseconds()
		kept = append(kept, it)
	}
	q.items = kept
}

// Len is the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns current queue counters.
func (q *Queue) Snapshot() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Length:  len(q.items),
		Limit:   q.limit,
		Synced:  q.synced,
		Failed:  q.failed,
		Dropped: q.dropped,
	}
}
