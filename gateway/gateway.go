package gateway

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.gazette.dev/core/task"

	"github.com/itplaylab/eventgate/dedupe"
	"github.com/itplaylab/eventgate/queue"
	"github.com/itplaylab/eventgate/replay"
	"github.com/itplaylab/eventgate/sink"
	"github.com/itplaylab/eventgate/spool"
	"github.com/itplaylab/eventgate/store"
)

// Gateway owns every subsystem of the ingest pipeline. All subsystems are
// constructed regardless of mode (construction is cheap and the sheets
// client authenticates lazily); Modes gates which of them the ingest path
// and the background workers actually touch.
type Gateway struct {
	Config Config
	Modes  Modes

	Window  *dedupe.Window
	Ring    *store.Ring
	Queue   *queue.Queue
	Worker  *queue.Worker
	Replay  *replay.Worker
	Spool   *spool.Writer
	States  *spool.StateStore
	Webhook *sink.Webhook

	// BodyLimit is the parsed JSON_LIMIT in bytes.
	BodyLimit int64

	received atomic.Int64
	started  time.Time
}

// New builds a Gateway from |cfg|.
func New(cfg Config) (*Gateway, error) {
	var bodyLimit, err = ParseSizeLimit(cfg.Gateway.JSONLimit)
	if err != nil {
		return nil, fmt.Errorf("parsing JSON_LIMIT: %w", err)
	}

	var modes = modesOf(cfg)
	var spoolPath = filepath.Join(cfg.JSONL.Dir, cfg.JSONL.File)
	var statePath = filepath.Join(cfg.JSONL.Dir, cfg.Replay.StateFile)

	var gw = &Gateway{
		Config:    cfg,
		Modes:     modes,
		Window:    dedupe.NewWindow(time.Duration(cfg.Gateway.DedupeWindowMS) * time.Millisecond),
		Ring:      store.NewRing(cfg.Gateway.StoreLimit),
		Spool:     spool.NewWriter(spoolPath, cfg.JSONL.MaxBytes),
		States:    spool.NewStateStore(statePath),
		Webhook:   sink.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Secret, time.Duration(cfg.Webhook.TimeoutMS)*time.Millisecond),
		BodyLimit: bodyLimit,
		started:   time.Now(),
	}

	gw.Queue = queue.New(
		cfg.Gateway.QueueLimit,
		cfg.Worker.MaxRetry,
		time.Duration(cfg.Worker.BackoffBaseMS)*time.Millisecond,
	)
	gw.Worker = queue.NewWorker(
		gw.Queue,
		sink.NewSheets(sink.SheetsConfig{
			SheetID:         cfg.Sheets.SheetID,
			SheetName:       cfg.Sheets.SheetName,
			CredentialsB64:  cfg.Sheets.CredentialsB64,
			CredentialsJSON: cfg.Sheets.Credentials,
		}),
		time.Duration(cfg.Worker.IntervalMS)*time.Millisecond,
		cfg.Worker.BatchSize,
	)
	gw.Replay = replay.NewWorker(replay.Config{
		SpoolPath:       spoolPath,
		Enabled:         modes.ReplayArmed(),
		SpoolEnabled:    modes.SpoolActive(),
		Mode:            cfg.Replay.Mode,
		Interval:        time.Duration(cfg.Replay.IntervalMS) * time.Millisecond,
		BatchSize:       cfg.Replay.BatchSize,
		MaxBytesPerTick: cfg.Replay.MaxBytesPerTick,
	}, gw.States, gw.Webhook)

	return gw, nil
}

// QueueTasks starts the armed background workers as tasks of |tasks|.
func (gw *Gateway) QueueTasks(tasks *task.Group) {
	if gw.Modes.WorkerArmed() {
		tasks.Queue("queueWorker", func() error { return gw.Worker.Run(tasks.Context()) })
		log.WithFields(log.Fields{
			"intervalMS": gw.Config.Worker.IntervalMS,
			"batch":      gw.Config.Worker.BatchSize,
		}).Info("queue worker armed")
	}
	if gw.Modes.ReplayArmed() {
		tasks.Queue("replayWorker", func() error { return gw.Replay.Run(tasks.Context()) })
		log.WithFields(log.Fields{
			"intervalMS": gw.Config.Replay.IntervalMS,
			"mode":       gw.Config.Replay.Mode,
		}).Info("replay worker armed")
	}
}

// AddReceived credits |n| accepted events to the received counter.
func (gw *Gateway) AddReceived(n int) { gw.received.Add(int64(n)) }

// Received is the number of events accepted since process start.
func (gw *Gateway) Received() int64 { return gw.received.Load() }

// UptimeMS is the process uptime in milliseconds.
func (gw *Gateway) UptimeMS() int64 { return time.Since(gw.started).Milliseconds() }
