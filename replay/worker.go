// Package replay re-submits spooled records to the webhook sink, advancing
// a persisted byte offset only past records which were delivered.
package replay

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/trace"

	"github.com/itplaylab/eventgate/ident"
	"github.com/itplaylab/eventgate/sink"
	"github.com/itplaylab/eventgate/spool"
)

// Replay modes.
const (
	// ModeFallbackOnly replays only records spooled on webhook failure.
	ModeFallbackOnly = "FALLBACK_ONLY"
	// ModeAll replays fallback and always-on audit records alike.
	ModeAll = "ALL"
)

// Poster posts one record body to the webhook sink.
type Poster interface {
	Post(ctx context.Context, traceID string, body interface{}) sink.WebhookResult
}

// TickResult is the outcome of one replay tick, serialized to /replay/run callers.
type TickResult struct {
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Offset  int64  `json:"offset"`
	Error   string `json:"error,omitempty"`
}

// Config bounds one replay tick.
type Config struct {
	// SpoolPath is the active JSONL file.
	SpoolPath string
	// Enabled arms replay ticks; when false every tick is skipped.
	Enabled bool
	// SpoolEnabled reflects whether any JSONL writing is on at all.
	SpoolEnabled bool
	// Mode selects which stages are replayed.
	Mode string
	// Interval between periodic ticks.
	Interval time.Duration
	// BatchSize caps records sent per tick.
	BatchSize int
	// MaxBytesPerTick caps bytes read from the spool per tick.
	MaxBytesPerTick int64
}

// Worker periodically reads the spool from the persisted offset and
// re-submits records to the webhook, at most one tick in flight.
//
// The critical rule is stop-on-first-failure: the offset is persisted
// unchanged when any record of the tick fails, so it never crosses an
// undelivered record and at-least-once delivery holds across restarts.
type Worker struct {
	cfg    Config
	states *spool.StateStore
	poster Poster

	busy   atomic.Bool
	events trace.EventLog
}

// NewWorker returns a replay Worker over |states| and |poster|.
func NewWorker(cfg Config, states *spool.StateStore, poster Poster) *Worker {
	return &Worker{
		cfg:    cfg,
		states: states,
		poster: poster,
		events: trace.NewEventLog("eventgate.Replay", cfg.SpoolPath),
	}
}

// Run ticks the worker until |ctx| is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	var ticker = time.NewTicker(w.cfg.Interval)
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

// State is the current persisted replay cursor.
func (w *Worker) State() spool.State { return w.states.Load() }

// TickOnce runs a single replay tick.
func (w *Worker) TickOnce(ctx context.Context) TickResult {
	if !w.cfg.SpoolEnabled {
		return TickResult{Skipped: true, Reason: "jsonl_disabled"}
	}
	if !w.cfg.Enabled {
		return TickResult{Skipped: true, Reason: "replay_disabled"}
	}
	if !w.busy.CompareAndSwap(false, true) {
		return TickResult{Skipped: true, Reason: "replay_busy"}
	}
	defer w.busy.Store(false)

	var fi, err = os.Stat(w.cfg.SpoolPath)
	if os.IsNotExist(err) {
		return TickResult{Skipped: true, Reason: "no_jsonl_file"}
	} else if err != nil {
		return TickResult{Error: err.Error()}
	}

	var st = w.states.Load()
	if st.Offset > fi.Size() {
		// The spool was rotated out from under the cursor: the persisted
		// offset refers to the renamed file. Restart from the head of the
		// fresh file so its records are not skipped.
		log.WithFields(log.Fields{"offset": st.Offset, "size": fi.Size()}).
			Info("spool shrank under replay cursor; resetting to head")
		w.events.Printf("offset %d exceeds spool size %d; reset to 0", st.Offset, fi.Size())
		st.Offset = 0
		w.saveState(st)
	}
	read, err := spool.ReadFrom(w.cfg.SpoolPath, st.Offset, w.cfg.MaxBytesPerTick)
	if err != nil {
		w.events.Errorf("read failed: %v", err)
		return TickResult{Offset: st.Offset, Error: err.Error()}
	}
	if read.EOF && len(read.Lines) == 0 {
		return TickResult{Skipped: true, Reason: "eof", Offset: st.Offset}
	}

	// truncated is set when the batch bound left replayable records in the
	// window; the offset must then stop at the last sent record rather than
	// consuming the full window.
	var candidates []spool.Line
	var truncated bool
	for _, line := range read.Lines {
		if line.Record.Stage != spool.StageFallback &&
			!(w.cfg.Mode == ModeAll && line.Record.Stage == spool.StageAlways) {
			continue
		}
		if len(candidates) == w.cfg.BatchSize {
			truncated = true
			break
		}
		candidates = append(candidates, line)
	}

	// With no candidates, the window held only filtered-out records: they
	// are consumed, and any stale error is cleared.
	if len(candidates) == 0 {
		st.Offset = read.NewOffset
		st.LastError = ""
		w.saveState(st)
		return TickResult{Offset: st.Offset}
	}

	var now = ident.ISO(time.Now())
	for i, line := range candidates {
		var res = w.poster.Post(ctx, line.Record.TraceID, replayBody(line.Record, now))
		if !res.OK {
			// Stop on first failure. The offset covers only records sent so
			// far, so the failing record is retried by the next tick.
			st.Failed++
			st.LastError = res.Summary()
			w.saveState(st)
			failedCounter.Inc()
			w.events.Errorf("record %d of %d failed: %s", i+1, len(candidates), st.LastError)
			log.WithFields(log.Fields{"sent": i, "err": st.LastError}).
				Warn("replay tick stopped on failure")
			return TickResult{Sent: i, Failed: 1, Offset: st.Offset, Error: st.LastError}
		}
		st.Sent++
		st.Offset = line.EndOffset
		sentCounter.Inc()
	}

	if !truncated {
		// The whole window is delivered; trailing filtered-out records are
		// consumed with it.
		st.Offset = read.NewOffset
	}
	st.LastError = ""
	w.saveState(st)
	w.events.Printf("replayed %d, offset now %d", len(candidates), st.Offset)
	return TickResult{Sent: len(candidates), Offset: st.Offset}
}

func (w *Worker) saveState(st spool.State) {
	if err := w.states.Save(st); err != nil {
		log.WithField("err", err).Error("persisting replay state")
	}
}

// replayBody re-shapes a spooled record for the webhook, stamping the
// replay time. Fields are copied verbatim with tolerant defaults.
func replayBody(rec spool.Record, replayedAt string) map[string]interface{} {
	var payload interface{} = rec.Payload
	if len(rec.Payload) == 0 {
		payload = json.RawMessage("null")
	}
	return map[string]interface{}{
		"ts":          rec.TS,
		"kind":        rec.Kind,
		"stage":       rec.Stage,
		"job_id":      rec.JobID,
		"trace_id":    rec.TraceID,
		"source":      rec.Source,
		"event_type":  rec.EventType,
		"payload":     payload,
		"received_at": rec.ReceivedAt,
		"replayed_at": replayedAt,
	}
}
