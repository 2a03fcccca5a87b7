package gateway

import "os"

// FileStatus is a stat snapshot of a spool or state file.
type FileStatus struct {
	Path      string `json:"path"`
	Bytes     int64  `json:"bytes"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// SpoolStatus stats the active spool file. A missing file reports zero bytes.
func (gw *Gateway) SpoolStatus() FileStatus {
	var st = FileStatus{Path: gw.Spool.Path()}
	if fi, err := os.Stat(gw.Spool.Path()); err == nil {
		st.Bytes = fi.Size()
		st.UpdatedAt = fi.ModTime().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	return st
}

// Health assembles the full status snapshot served by /health. It is
// side-effect-free: file interactions are limited to stats and the replay
// cursor read.
func (gw *Gateway) Health() map[string]interface{} {
	var health = map[string]interface{}{
		"ok":        true,
		"mode":      gw.Modes.Mode,
		"toggles":   gw.Modes,
		"uptime_ms": gw.UptimeMS(),
		"received":  gw.Received(),
		"dedupe": map[string]interface{}{
			"active":    gw.Modes.StoreActive(),
			"window_ms": gw.Window.HorizonMS(),
			"size":      gw.Window.Len(),
		},
		"store": map[string]interface{}{
			"active": gw.Modes.StoreActive(),
			"limit":  gw.Ring.Limit(),
			"size":   gw.Ring.Len(),
		},
		"queue": map[string]interface{}{
			"active": gw.Modes.QueueActive(),
			"armed":  gw.Modes.WorkerArmed(),
			"stats":  gw.Queue.Snapshot(),
		},
		"jsonl": map[string]interface{}{
			"active":   gw.Modes.SpoolActive(),
			"always":   gw.Modes.JSONLAlways,
			"fallback": gw.Modes.JSONLFallback,
			"file":     gw.SpoolStatus(),
		},
		"replay": map[string]interface{}{
			"armed": gw.Modes.ReplayArmed(),
			"mode":  gw.Config.Replay.Mode,
			"state": gw.States.Load(),
		},
	}
	return health
}
