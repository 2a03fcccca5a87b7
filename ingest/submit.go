package ingest

import (
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itplaylab/eventgate/gateway"
	"github.com/itplaylab/eventgate/ident"
	"github.com/itplaylab/eventgate/spool"
)

// submitRequest is the /ingest body. All three fields are required.
type submitRequest struct {
	Source    string          `json:"source"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// submitResponse is the /ingest success envelope. It is returned whenever
// the body was valid: webhook or spool trouble never surfaces here.
type submitResponse struct {
	OK         bool   `json:"ok"`
	JobID      string `json:"job_id"`
	TraceID    string `json:"trace_id"`
	ReceivedAt string `json:"received_at"`
	LatencyMS  int64  `json:"latency_ms"`
	Mode       string `json:"mode"`
}

func (a api) serveIngest(w http.ResponseWriter, r *http.Request) {
	var started = time.Now()

	var raw, ok = a.readBody(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if req.Source == "" || req.EventType == "" || len(req.Payload) == 0 {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "source, event_type and payload are required")
		return
	}

	var now = time.Now()
	var jobID = ident.JobID(now)
	var traceID = r.Header.Get("X-Request-Id")
	if traceID == "" {
		traceID = ident.TraceID()
	}
	var receivedAt = ident.ISO(now)

	if a.gw.Modes.StoreActive() {
		// The job ID is the fingerprint here; fresh per submission, so this
		// only records it for observability.
		a.gw.Window.CheckAndRecord(jobID, now)
	}

	var rec = spool.Record{
		TS:         ident.ISO(time.Now()),
		Kind:       "ingest",
		JobID:      jobID,
		TraceID:    traceID,
		Source:     req.Source,
		EventType:  req.EventType,
		Payload:    req.Payload,
		ReceivedAt: receivedAt,
	}

	if a.gw.Modes.SpoolActive() && a.gw.Modes.JSONLAlways {
		rec.Stage = spool.StageAlways
		rec.IngestLatencyMS = time.Since(started).Milliseconds()
		if err := a.gw.Spool.Append(rec); err != nil {
			log.WithFields(log.Fields{"job": jobID, "err": err}).Warn("always-on spool append failed")
		}
	}

	if a.gw.Modes.Mode == gateway.ModeFull {
		var res = a.gw.Webhook.Post(r.Context(), traceID, map[string]interface{}{
			"job_id":      jobID,
			"trace_id":    traceID,
			"source":      req.Source,
			"event_type":  req.EventType,
			"payload":     req.Payload,
			"received_at": receivedAt,
		})
		if !res.OK {
			webhookFailCounter.Inc()
			log.WithFields(log.Fields{"job": jobID, "err": res.Summary()}).Info("webhook path failed")

			if a.gw.Modes.SpoolActive() && a.gw.Modes.JSONLFallback {
				rec.Stage = spool.StageFallback
				rec.Reason = res.Summary()
				rec.IngestLatencyMS = time.Since(started).Milliseconds()
				if err := a.gw.Spool.Append(rec); err != nil {
					log.WithFields(log.Fields{"job": jobID, "err": err}).Warn("fallback spool append failed")
				}
			}
		}
	}

	a.gw.AddReceived(1)
	receivedCounter.Inc()

	respond(w, http.StatusOK, submitResponse{
		OK:         true,
		JobID:      jobID,
		TraceID:    traceID,
		ReceivedAt: receivedAt,
		LatencyMS:  time.Since(started).Milliseconds(),
		Mode:       a.gw.Modes.Mode,
	})
}
