package queue

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/trace"
)

// Sink is the destination to which due queue items are batch-appended.
type Sink interface {
	// Ready reports whether the sink has the configuration it needs,
	// with the reason when it doesn't.
	Ready() (reason string, ok bool)
	// AppendBatch appends |items| as one batch. An error defers the batch.
	AppendBatch(ctx context.Context, items []Item) error
}

// TickResult is the outcome of one worker tick, serialized to /sync/run callers.
type TickResult struct {
	Synced int    `json:"synced"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Worker periodically drains due queue items into the Sink, at most one
// tick in flight. Failed batches are deferred with exponential backoff by
// the queue itself.
type Worker struct {
	queue    *Queue
	sink     Sink
	interval time.Duration
	batch    int

	busy   atomic.Bool
	events trace.EventLog
	// now is stubbed by tests.
	now func() time.Time
}

// NewWorker returns a Worker draining |q| into |sink| every |interval|,
// in batches of |batch|.
func NewWorker(q *Queue, sink Sink, interval time.Duration, batch int) *Worker {
	return &Worker{
		queue:    q,
		sink:     sink,
		interval: interval,
		batch:    batch,
		events:   trace.NewEventLog("eventgate.Worker", "queue"),
		now:      time.Now,
	}
}

// Run ticks the worker until |ctx| is cancelled. It is queued as a task of
// the gateway's task group.
func (w *Worker) Run(ctx context.Context) error {
	var ticker = time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.events.Finish()

	for {
		select {
		case <-ticker.C:
			w.TickOnce(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// TickOnce runs a single worker tick. Reentrant invocations (the periodic
// timer racing a manual /sync/run) return immediately.
func (w *Worker) TickOnce(ctx context.Context) TickResult {
	if !w.busy.CompareAndSwap(false, true) {
		return TickResult{Reason: "worker_busy"}
	}
	defer w.busy.Store(false)

	if reason, ok := w.sink.Ready(); !ok {
		tickCounter.WithLabelValues("unready").Inc()
		return TickResult{Reason: reason}
	}

	var now = w.now()
	var candidates = w.queue.Candidates(now, w.batch)
	if len(candidates) == 0 {
		tickCounter.WithLabelValues("idle").Inc()
		return TickResult{}
	}

	if err := w.sink.AppendBatch(ctx, candidates); err != nil {
		w.queue.DeferDue(now, w.batch, err.Error())
		w.events.Errorf("batch of %d deferred: %v", len(candidates), err)
		log.WithFields(log.Fields{"items": len(candidates), "err": err}).
			Warn("batch append failed; deferring")
		tickCounter.WithLabelValues("deferred").Inc()
		return TickResult{Error: "sync_failed", Detail: err.Error()}
	}

	var ids = make([]string, len(candidates))
	for i, it := range candidates {
		ids[i] = it.ID
	}
	var removed = w.queue.RemoveAll(ids)
	w.events.Printf("synced %d", removed)
	tickCounter.WithLabelValues("synced").Inc()
	return TickResult{Synced: removed}
}
