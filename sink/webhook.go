// Package sink holds clients for the two external delivery paths: the
// signed webhook endpoint and the spreadsheet batch-append API.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Webhook result error codes.
const (
	errMissingConfig = "missing_GAS_WEBAPP_URL_or_ITPLAYLAB_SECRET"
	errTimeout       = "gas_timeout"
	errInvalidJSON   = "invalid_json_from_gas"
)

// WebhookResult is the normalized outcome of one webhook POST. OK mirrors
// the remote body's `ok` field, not the HTTP status: the endpoint reports
// its own success inside a 200.
type WebhookResult struct {
	OK        bool            `json:"ok"`
	Status    int             `json:"status,omitempty"`
	LatencyMS int64           `json:"latency_ms"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Raw       string          `json:"raw,omitempty"`
}

// Summary is a short form of the result, recorded as a fallback reason.
func (r WebhookResult) Summary() string {
	if r.Error != "" {
		return r.Error
	}
	if !r.OK {
		return fmt.Sprintf("gas_not_ok_status_%d", r.Status)
	}
	return ""
}

// Webhook posts event bodies to the external web app, authenticated by a
// shared secret carried as a query parameter.
type Webhook struct {
	url     string
	secret  string
	timeout time.Duration
	client  *http.Client
}

// NewWebhook returns a Webhook posting to |rawURL| with |secret|, enforcing
// |timeout| per call.
func NewWebhook(rawURL, secret string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:     rawURL,
		secret:  secret,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// Configured reports whether both the URL and secret are present.
func (w *Webhook) Configured() bool { return w.url != "" && w.secret != "" }

// Post sends |body| as JSON, propagating |traceID| as the X-Request-Id
// header when present. The in-flight request is cancelled at the configured
// deadline. Post never returns an error: every failure mode is folded into
// the result so callers can fall back uniformly.
func (w *Webhook) Post(ctx context.Context, traceID string, body interface{}) WebhookResult {
	if !w.Configured() {
		return WebhookResult{Error: errMissingConfig}
	}

	var raw, err = json.Marshal(body)
	if err != nil {
		return WebhookResult{Error: fmt.Sprintf("encoding body: %v", err)}
	}

	var started = time.Now()
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST",
		w.url+"?__secret="+url.QueryEscape(w.secret), bytes.NewReader(raw))
	if err != nil {
		return WebhookResult{Error: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID != "" {
		req.Header.Set("X-Request-Id", traceID)
	}

	resp, err := w.client.Do(req)
	var latency = time.Since(started).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return WebhookResult{Error: errTimeout, LatencyMS: latency}
		}
		return WebhookResult{Error: err.Error(), LatencyMS: latency}
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return WebhookResult{Status: resp.StatusCode, Error: err.Error(), LatencyMS: latency}
	}

	var envelope struct {
		OK bool `json:"ok"`
	}
	if err = json.Unmarshal(text, &envelope); err != nil {
		return WebhookResult{
			Status:    resp.StatusCode,
			Error:     errInvalidJSON,
			Raw:       string(text),
			LatencyMS: latency,
		}
	}
	return WebhookResult{
		OK:        envelope.OK,
		Status:    resp.StatusCode,
		Data:      json.RawMessage(text),
		LatencyMS: latency,
	}
}
