// Package gateway wires configuration, the operating-mode machine, and the
// gateway's subsystems into one runnable service.
package gateway

import (
	"fmt"
	"strconv"
	"strings"

	mbp "go.gazette.dev/core/mainboilerplate"
)

// Config is the top-level configuration of the event gateway, parsed from
// flags and environment by go-flags.
type Config struct {
	Gateway struct {
		Port           uint16 `long:"port" env:"PORT" default:"3000" description:"Service port for HTTP requests"`
		Mode           string `long:"mode" env:"OPS_MODE" default:"FULL" choice:"ECHO" choice:"STORE" choice:"FULL" description:"Operating mode"`
		ExternalSync   string `long:"external-sync" env:"EXTERNAL_SYNC" default:"OFF" choice:"OFF" choice:"ON" description:"Arm the queue worker against the batch sink"`
		JSONLimit      string `long:"json-limit" env:"JSON_LIMIT" default:"2mb" description:"Maximum accepted request body size"`
		DedupeWindowMS int    `long:"dedupe-window-ms" env:"DEDUPE_WINDOW_MS" default:"2000" description:"Duplicate suppression horizon"`
		StoreLimit     int    `long:"store-limit" env:"STORE_LIMIT" default:"200" description:"Summary ring capacity"`
		QueueLimit     int    `long:"queue-limit" env:"QUEUE_LIMIT" default:"500" description:"Forward queue capacity"`
	} `group:"Gateway" namespace:"gateway"`

	Worker struct {
		IntervalMS    int `long:"interval-ms" env:"WORKER_INTERVAL_MS" default:"1500" description:"Queue worker tick interval"`
		BatchSize     int `long:"batch-size" env:"WORKER_BATCH_SIZE" default:"5" description:"Items per batch append"`
		MaxRetry      int `long:"max-retry" env:"WORKER_MAX_RETRY" default:"5" description:"Retry budget before an item is dropped"`
		BackoffBaseMS int `long:"backoff-base-ms" env:"WORKER_BACKOFF_BASE_MS" default:"2000" description:"Exponential backoff base"`
	} `group:"Worker" namespace:"worker"`

	Sheets struct {
		SheetID        string `long:"sheet-id" env:"SHEET_ID" description:"Target spreadsheet ID"`
		SheetName      string `long:"sheet-name" env:"EVENTS_SHEET_NAME" default:"events" description:"Target sheet tab"`
		CredentialsB64 string `long:"service-account-b64" env:"GOOGLE_SERVICE_ACCOUNT_JSON_B64" description:"Service account key, base64"`
		Credentials    string `long:"service-account" env:"GOOGLE_SERVICE_ACCOUNT_JSON" description:"Service account key, raw JSON"`
	} `group:"Sheets" namespace:"sheets"`

	Webhook struct {
		URL       string `long:"url" env:"GAS_WEBAPP_URL" description:"Webhook endpoint URL"`
		Secret    string `long:"secret" env:"ITPLAYLAB_SECRET" description:"Shared webhook secret"`
		TimeoutMS int    `long:"timeout-ms" env:"GAS_TIMEOUT_MS" default:"2500" description:"Per-call webhook deadline"`
	} `group:"Webhook" namespace:"webhook"`

	JSONL struct {
		Fallback     string `long:"fallback" env:"JSONL_FALLBACK" default:"OFF" choice:"OFF" choice:"ON" description:"Spool records when the webhook path fails"`
		Always       string `long:"always" env:"JSONL_ALWAYS" default:"OFF" choice:"OFF" choice:"ON" description:"Spool every accepted record"`
		Dir          string `long:"dir" env:"JSONL_DIR" default:"/var/data" description:"Spool directory"`
		File         string `long:"file" env:"JSONL_FILE" default:"ingest_fallback.jsonl" description:"Spool file name"`
		MaxBytes     int64  `long:"max-bytes" env:"JSONL_MAX_BYTES" default:"104857600" description:"Spool rotation threshold"`
		TailMaxBytes int64  `long:"tail-max-bytes" env:"JSONL_TAIL_MAX_BYTES" default:"2097152" description:"Byte cap of /fallback/tail reads"`
	} `group:"JSONL" namespace:"jsonl"`

	Replay struct {
		Enabled         string `long:"enabled" env:"REPLAY_ENABLED" default:"OFF" choice:"OFF" choice:"ON" description:"Arm the replay worker"`
		IntervalMS      int    `long:"interval-ms" env:"REPLAY_INTERVAL_MS" default:"3000" description:"Replay tick interval"`
		BatchSize       int    `long:"batch-size" env:"REPLAY_BATCH_SIZE" default:"10" description:"Records replayed per tick"`
		MaxBytesPerTick int64  `long:"max-bytes-per-tick" env:"REPLAY_MAX_BYTES_PER_TICK" default:"1048576" description:"Spool bytes read per tick"`
		Mode            string `long:"mode" env:"REPLAY_MODE" default:"FALLBACK_ONLY" choice:"FALLBACK_ONLY" choice:"ALL" description:"Stages eligible for replay"`
		StateFile       string `long:"state-file" env:"REPLAY_STATE_FILE" default:"replay_state.json" description:"Replay cursor file name"`
	} `group:"Replay" namespace:"replay"`

	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
}

// ParseSizeLimit parses body-size limits of the form "2mb", "512kb", or a
// plain byte count.
func ParseSizeLimit(s string) (int64, error) {
	var unit int64 = 1
	var trimmed = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasSuffix(trimmed, "mb"):
		unit, trimmed = 1<<20, strings.TrimSuffix(trimmed, "mb")
	case strings.HasSuffix(trimmed, "kb"):
		unit, trimmed = 1<<10, strings.TrimSuffix(trimmed, "kb")
	case strings.HasSuffix(trimmed, "b"):
		trimmed = strings.TrimSuffix(trimmed, "b")
	}
	var n, err = strconv.ParseInt(strings.TrimSpace(trimmed), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size limit %q", s)
	}
	return n * unit, nil
}
