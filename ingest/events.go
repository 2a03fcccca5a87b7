package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itplaylab/eventgate/ident"
	"github.com/itplaylab/eventgate/queue"
	"github.com/itplaylab/eventgate/store"
)

const actionAppendTSV = "append_events_tsv"

// eventsRequest is the /events body, covering both accepted shapes.
type eventsRequest struct {
	Action string            `json:"action"`
	Events []json.RawMessage `json:"events"`
	Lines  []string          `json:"lines"`
	Source string            `json:"source"`
	UserID string            `json:"user_id"`
}

// eventIn is one event of the standard shape.
type eventIn struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Source     string          `json:"source"`
	UserID     string          `json:"user_id"`
	OccurredAt string          `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// PackedEvent is the canonical per-event envelope built at ingest time.
type PackedEvent struct {
	V          int             `json:"v"`
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at,omitempty"`
	Meta       PackedMeta      `json:"meta"`
	Data       json.RawMessage `json:"data,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// PackedMeta carries the resolved origin of a packed event.
type PackedMeta struct {
	Source string `json:"source"`
	UserID string `json:"user_id"`
	IP     string `json:"ip"`
	UA     string `json:"ua"`
}

// eventsResponse is the /events success envelope.
type eventsResponse struct {
	OK                bool   `json:"ok"`
	Received          int    `json:"received"`
	Appended          int    `json:"appended"`
	DroppedDuplicates int    `json:"dropped_duplicates"`
	LatencyMS         int64  `json:"latency_ms"`
	Mode              string `json:"mode"`
	Bytes             int    `json:"bytes"`
	Stored            int    `json:"stored"`
	Duplicate         bool   `json:"duplicate"`
	QueueLength       *int   `json:"queue_length,omitempty"`
	External          string `json:"external"`
}

func (a api) serveEvents(w http.ResponseWriter, r *http.Request) {
	var started = time.Now()

	var raw, ok = a.readBody(w, r)
	if !ok {
		return
	}
	var req eventsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	var tsv = req.Action == actionAppendTSV
	if (tsv && req.Lines == nil) || (!tsv && req.Events == nil) {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "unrecognized body shape")
		return
	}

	var now = time.Now()
	var meta = PackedMeta{IP: clientIP(r), UA: r.UserAgent()}
	var active = a.gw.Modes.StoreActive()

	var received, appended, dropped int
	var packed []PackedEvent
	if tsv {
		received = len(req.Lines)
		for _, line := range req.Lines {
			var fp, evt = packTSVLine(line, req, meta, now)
			if active && a.gw.Window.CheckAndRecord(fp, now) {
				dropped++
				duplicateCounter.Inc()
				continue
			}
			packed = append(packed, evt)
		}
	} else {
		received = len(req.Events)
		for _, rawEvt := range req.Events {
			var fp, evt, err = packStandardEvent(rawEvt, req, meta, now)
			if err != nil {
				respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
				return
			}
			if active && a.gw.Window.CheckAndRecord(fp, now) {
				dropped++
				duplicateCounter.Inc()
				continue
			}
			packed = append(packed, evt)
		}
	}
	appended = len(packed)

	// The request-level fingerprint covers the canonical body: two
	// identical submissions within the window are duplicates regardless of
	// their per-event IDs.
	var bodySum = sha256.Sum256(raw)
	var requestFP = hex.EncodeToString(bodySum[:])
	var requestDup bool
	if active {
		requestDup = a.gw.Window.CheckAndRecord(requestFP, now)
		a.gw.Ring.Push(store.Record{
			TS:          now.UnixMilli(),
			Fingerprint: requestFP,
			Bytes:       len(raw),
			Duplicate:   requestDup,
		})
	}
	if a.gw.Modes.QueueActive() && appended > 0 {
		// One queue item per request: the sink receives the canonical body.
		a.gw.Queue.Enqueue(queue.Item{
			ID:          ident.BatchID(now),
			Fingerprint: requestFP,
			Bytes:       len(raw),
			ReceivedAt:  ident.ISO(now),
			Payload:     string(raw),
		})
	}

	a.gw.AddReceived(received)
	receivedCounter.Add(float64(received))
	appendedCounter.Add(float64(appended))

	var resp = eventsResponse{
		OK:                true,
		Received:          received,
		Appended:          appended,
		DroppedDuplicates: dropped,
		LatencyMS:         time.Since(started).Milliseconds(),
		Mode:              a.gw.Modes.Mode,
		Bytes:             len(raw),
		Stored:            a.gw.Ring.Len(),
		Duplicate:         requestDup,
		External:          a.gw.Config.Gateway.ExternalSync,
	}
	if a.gw.Modes.QueueActive() {
		var depth = a.gw.Queue.Len()
		resp.QueueLength = &depth
	}
	respond(w, http.StatusOK, resp)
}

// readBody drains the request body under the configured size limit,
// responding with the appropriate error envelope on failure.
func (a api) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var raw, err = io.ReadAll(http.MaxBytesReader(w, r.Body, a.gw.BodyLimit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())
		} else {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		}
		return nil, false
	}
	return raw, true
}

// packStandardEvent resolves one standard-shape event and its fingerprint.
func packStandardEvent(raw json.RawMessage, req eventsRequest, meta PackedMeta, now time.Time) (string, PackedEvent, error) {
	var in eventIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", PackedEvent{}, err
	}

	meta.Source = firstOf(in.Source, req.Source, "unknown")
	meta.UserID = firstOf(in.UserID, req.UserID, "anonymous")

	var fp = in.EventID
	if fp == "" {
		// No client ID: identical events still dedupe by content.
		var sum = sha256.Sum256(raw)
		fp = hex.EncodeToString(sum[:])
		in.EventID = ident.EventID(meta.Source, meta.UserID, now)
	}

	return fp, PackedEvent{
		V:          1,
		EventID:    in.EventID,
		EventType:  firstOf(in.EventType, "unknown"),
		OccurredAt: in.OccurredAt,
		Meta:       meta,
		Data:       in.Payload,
		Raw:        raw,
	}, nil
}

// packTSVLine resolves one legacy TSV line and its fingerprint. The first
// tab splits the event ID from its JSON payload; a payload which fails to
// parse is preserved as {"raw_line": ...}.
func packTSVLine(line string, req eventsRequest, meta PackedMeta, now time.Time) (string, PackedEvent) {
	meta.Source = firstOf(req.Source, "legacy")
	meta.UserID = firstOf(req.UserID, "anonymous")

	var fp, payload, _ = strings.Cut(line, "\t")
	var data json.RawMessage
	if json.Valid([]byte(payload)) && payload != "" {
		data = json.RawMessage(payload)
	} else {
		var fallback, err = json.Marshal(map[string]string{"raw_line": line})
		if err != nil {
			log.WithField("err", err).Warn("encoding raw TSV line")
		}
		data = fallback
	}

	var rawLine, _ = json.Marshal(line)
	return fp, PackedEvent{
		V:         1,
		EventID:   fp,
		EventType: "legacy.tsv",
		Meta:      meta,
		Data:      data,
		Raw:       rawLine,
	}
}

// clientIP is the first X-Forwarded-For hop when present, else the socket
// peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
