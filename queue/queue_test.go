package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnqueueDropsOldestAtCapacity(t *testing.T) {
	var q = New(3, 5, time.Second)
	for _, id := range []string{"A", "B", "C", "D"} {
		q.Enqueue(Item{ID: id})
	}

	require.Equal(t, 3, q.Len())
	var due = q.Candidates(time.Unix(1, 0), 10)
	require.Equal(t, "B", due[0].ID)
	require.Equal(t, "D", due[2].ID)
	require.Equal(t, int64(1), q.Snapshot().Dropped)
}

func TestCandidatesRespectDueTimeAndOrder(t *testing.T) {
	var q = New(10, 5, time.Second)
	var now = time.Unix(100, 0)

	q.Enqueue(Item{ID: "A"})
	q.Enqueue(Item{ID: "B", NextAttemptAt: now.UnixMilli() + 5000})
	q.Enqueue(Item{ID: "C"})

	var due = q.Candidates(now, 10)
	require.Len(t, due, 2)
	require.Equal(t, "A", due[0].ID)
	require.Equal(t, "C", due[1].ID)

	// The batch bound applies after due filtering.
	require.Len(t, q.Candidates(now, 1), 1)

	// Once B's attempt time arrives it is due, in insertion order.
	due = q.Candidates(now.Add(6*time.Second), 10)
	require.Equal(t, []string{"A", "B", "C"}, []string{due[0].ID, due[1].ID, due[2].ID})
}

func TestDeferDueAppliesExponentialBackoff(t *testing.T) {
	var q = New(10, 5, 100*time.Millisecond)
	var now = time.Unix(100, 0)
	q.Enqueue(Item{ID: "A"})

	q.DeferDue(now, 10, "sink down")
	var items = q.Candidates(now.Add(time.Minute), 10)
	require.Equal(t, 1, items[0].Retry)
	require.Equal(t, "sink down", items[0].LastError)
	require.Equal(t, now.UnixMilli()+100, items[0].NextAttemptAt)

	// Not yet due: a second defer at |now| must not touch it.
	q.DeferDue(now, 10, "still down")
	require.Equal(t, 1, q.Candidates(now.Add(time.Minute), 10)[0].Retry)

	q.DeferDue(now.Add(150*time.Millisecond), 10, "still down")
	items = q.Candidates(now.Add(time.Minute), 10)
	require.Equal(t, 2, items[0].Retry)
	require.Equal(t, now.Add(150*time.Millisecond).UnixMilli()+200, items[0].NextAttemptAt)
}

func TestDeferDueDropsOverRetriedItems(t *testing.T) {
	var q = New(10, 2, time.Millisecond)
	q.Enqueue(Item{ID: "A"})

	var now = time.Unix(100, 0)
	for i := 0; i < 3; i++ {
		now = now.Add(time.Second)
		q.DeferDue(now, 10, "sink down")
	}

	require.Equal(t, 0, q.Len())
	require.Equal(t, int64(1), q.Snapshot().Failed)
}

func TestRemoveAllCreditsSynced(t *testing.T) {
	var q = New(10, 5, time.Second)
	q.Enqueue(Item{ID: "A"})
	q.Enqueue(Item{ID: "B"})
	q.Enqueue(Item{ID: "C"})

	require.Equal(t, 2, q.RemoveAll([]string{"A", "C", "missing"}))
	require.Equal(t, 1, q.Len())
	require.Equal(t, int64(2), q.Snapshot().Synced)
}
