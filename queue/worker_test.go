package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedSink fails a fixed number of AppendBatch calls, then succeeds.
type scriptedSink struct {
	failures int
	reason   string
	batches  [][]Item
}

func (s *scriptedSink) Ready() (string, bool) {
	return s.reason, s.reason == ""
}

func (s *scriptedSink) AppendBatch(_ context.Context, items []Item) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("append failed")
	}
	s.batches = append(s.batches, items)
	return nil
}

func TestWorkerSyncsAfterTransientFailures(t *testing.T) {
	var q = New(10, 2, 100*time.Millisecond)
	var sink = &scriptedSink{failures: 2}
	var w = NewWorker(q, sink, time.Minute, 5)

	var now = time.Unix(100, 0)
	w.now = func() time.Time { return now }

	q.Enqueue(Item{ID: "A", Payload: `{"x":1}`})

	// Tick 1: failure defers with 100ms backoff.
	var res = w.TickOnce(context.Background())
	require.Equal(t, "sync_failed", res.Error)
	require.Equal(t, "append failed", res.Detail)

	// Still backing off: the item is not a candidate yet.
	now = now.Add(50 * time.Millisecond)
	require.Equal(t, TickResult{}, w.TickOnce(context.Background()))

	// Tick 2: due again, fails again, backoff doubles.
	now = now.Add(60 * time.Millisecond)
	res = w.TickOnce(context.Background())
	require.Equal(t, "sync_failed", res.Error)

	// Tick 3: due and the sink has recovered.
	now = now.Add(210 * time.Millisecond)
	res = w.TickOnce(context.Background())
	require.Equal(t, 1, res.Synced)

	var stats = q.Snapshot()
	require.Equal(t, int64(1), stats.Synced)
	require.Equal(t, int64(0), stats.Failed)
	require.Equal(t, 0, q.Len())
	require.Len(t, sink.batches, 1)
	require.Equal(t, "A", sink.batches[0][0].ID)
}

func TestWorkerReportsUnreadySink(t *testing.T) {
	var q = New(10, 2, time.Millisecond)
	q.Enqueue(Item{ID: "A"})

	var w = NewWorker(q, &scriptedSink{reason: "missing_SHEET_ID_or_GOOGLE_SERVICE_ACCOUNT_JSON"}, time.Minute, 5)
	var res = w.TickOnce(context.Background())

	require.Equal(t, "missing_SHEET_ID_or_GOOGLE_SERVICE_ACCOUNT_JSON", res.Reason)
	require.Equal(t, 1, q.Len())
}

func TestWorkerIsSingleFlight(t *testing.T) {
	var w = NewWorker(New(10, 2, time.Millisecond), &scriptedSink{}, time.Minute, 5)
	w.busy.Store(true)

	require.Equal(t, "worker_busy", w.TickOnce(context.Background()).Reason)
}

func TestWorkerIdleTickIsEmpty(t *testing.T) {
	var w = NewWorker(New(10, 2, time.Millisecond), &scriptedSink{}, time.Minute, 5)
	require.Equal(t, TickResult{}, w.TickOnce(context.Background()))
}
