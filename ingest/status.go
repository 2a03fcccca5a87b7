package ingest

import (
	"net/http"
	"os"
	"strconv"

	"github.com/itplaylab/eventgate/spool"
)

func (a api) serveHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, a.gw.Health())
}

func (a api) serveStoreRecent(w http.ResponseWriter, r *http.Request) {
	if !a.gw.Modes.StoreActive() {
		serveNotFound(w, r)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"mode":   a.gw.Modes.Mode,
		"stored": a.gw.Ring.Len(),
		"recent": a.gw.Ring.Tail(20),
	})
}

func (a api) serveSyncStatus(w http.ResponseWriter, r *http.Request) {
	if !a.gw.Modes.QueueActive() {
		serveNotFound(w, r)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"external": a.gw.Config.Gateway.ExternalSync,
		"armed":    a.gw.Modes.WorkerArmed(),
		"queue":    a.gw.Queue.Snapshot(),
		"worker": map[string]interface{}{
			"interval_ms":     a.gw.Config.Worker.IntervalMS,
			"batch_size":      a.gw.Config.Worker.BatchSize,
			"max_retry":       a.gw.Config.Worker.MaxRetry,
			"backoff_base_ms": a.gw.Config.Worker.BackoffBaseMS,
		},
	})
}

func (a api) serveSyncRun(w http.ResponseWriter, r *http.Request) {
	if !a.gw.Modes.WorkerArmed() {
		respond(w, http.StatusOK, map[string]interface{}{
			"synced": 0,
			"detail": "Worker disabled",
		})
		return
	}
	respond(w, http.StatusOK, a.gw.Worker.TickOnce(r.Context()))
}

func (a api) serveFallbackStatus(w http.ResponseWriter, r *http.Request) {
	var st = a.gw.SpoolStatus()
	respond(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"path":       st.Path,
		"bytes":      st.Bytes,
		"updated_at": st.UpdatedAt,
	})
}

func (a api) serveFallbackTail(w http.ResponseWriter, r *http.Request) {
	var n = 50
	if arg := r.URL.Query().Get("n"); arg != "" {
		if v, err := strconv.Atoi(arg); err == nil {
			n = v
		}
	}
	if n < 1 {
		n = 1
	} else if n > 500 {
		n = 500
	}

	var path = a.gw.Spool.Path()
	var lines = []spool.Record{}

	if fi, err := os.Stat(path); err == nil {
		var offset int64
		if fi.Size() > a.gw.Config.JSONL.TailMaxBytes {
			// Reading mid-line is fine: the leading fragment fails to parse
			// and is skipped like any other malformed line.
			offset = fi.Size() - a.gw.Config.JSONL.TailMaxBytes
		}
		if read, err := spool.ReadFrom(path, offset, a.gw.Config.JSONL.TailMaxBytes); err == nil {
			if len(read.Lines) > n {
				read.Lines = read.Lines[len(read.Lines)-n:]
			}
			for _, line := range read.Lines {
				lines = append(lines, line.Record)
			}
		}
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"path":  path,
		"count": len(lines),
		"lines": lines,
	})
}

func (a api) serveReplayStatus(w http.ResponseWriter, r *http.Request) {
	var st = a.gw.States.Load()
	respond(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"replay_enabled": a.gw.Modes.ReplayArmed(),
		"mode":           a.gw.Config.Replay.Mode,
		"stats": map[string]int64{
			"sent":   st.Sent,
			"failed": st.Failed,
		},
		"state": st,
		"jsonl": map[string]string{"path": a.gw.Spool.Path()},
	})
}

func (a api) serveReplayRun(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, a.gw.Replay.TickOnce(r.Context()))
}
