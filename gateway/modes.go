package gateway

// Operating modes of the gateway binary.
const (
	// ModeEcho disables every subsystem: requests are validated and echoed.
	ModeEcho = "ECHO"
	// ModeStore activates duplicate suppression and the summary ring only.
	ModeStore = "STORE"
	// ModeFull activates the forward queue, and the spool and replay paths
	// according to their toggles.
	ModeFull = "FULL"
)

// Modes captures the resolved operating mode and its orthogonal toggles,
// and answers which subsystems are active.
type Modes struct {
	Mode          string `json:"mode"`
	ExternalSync  bool   `json:"external_sync"`
	JSONLAlways   bool   `json:"jsonl_always"`
	JSONLFallback bool   `json:"jsonl_fallback"`
	ReplayEnabled bool   `json:"replay_enabled"`
}

// modesOf resolves a Config into Modes.
func modesOf(cfg Config) Modes {
	return Modes{
		Mode:          cfg.Gateway.Mode,
		ExternalSync:  cfg.Gateway.ExternalSync == "ON",
		JSONLAlways:   cfg.JSONL.Always == "ON",
		JSONLFallback: cfg.JSONL.Fallback == "ON",
		ReplayEnabled: cfg.Replay.Enabled == "ON",
	}
}

// StoreActive reports whether the duplicate window and summary ring apply.
func (m Modes) StoreActive() bool { return m.Mode != ModeEcho }

// QueueActive reports whether accepted requests are enqueued for the sink.
func (m Modes) QueueActive() bool { return m.Mode == ModeFull }

// WorkerArmed reports whether the queue worker runs.
func (m Modes) WorkerArmed() bool { return m.Mode == ModeFull && m.ExternalSync }

// SpoolActive reports whether any JSONL writing applies.
func (m Modes) SpoolActive() bool {
	return m.Mode == ModeFull && (m.JSONLAlways || m.JSONLFallback)
}

// ReplayArmed reports whether the replay worker runs.
func (m Modes) ReplayArmed() bool { return m.Mode == ModeFull && m.ReplayEnabled }
