package spool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itplaylab/eventgate/ident"
)

// Writer appends Records to a JSONL file, one per line. Appends are strictly
// serialized: rotation decisions depend on every prior append's effect on
// file size. When the active file reaches MaxBytes it is renamed aside to
// <path>.<timestamp>.bak and a fresh file is started. Rotated files are
// never replayed; they are preserved for manual recovery.
type Writer struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
}

// NewWriter returns a Writer appending to |path|, rotating at |maxBytes|.
func NewWriter(path string, maxBytes int64) *Writer {
	return &Writer{path: path, maxBytes: maxBytes}
}

// Path is the active spool file path.
func (w *Writer) Path() string { return w.path }

// Append serializes |rec| and appends it as one LF-terminated line.
// Failures are returned to the caller and must not abort the ingest request.
func (w *Writer) Append(rec Record) error {
	var line, err = json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding spool record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err = os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("creating spool directory: %w", err)
	}
	if err = w.rotateLocked(); err != nil {
		return err
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening spool: %w", err)
	}
	defer f.Close()

	if _, err = f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending to spool: %w", err)
	}
	appendCounter.Inc()
	return nil
}

// rotateLocked renames the active file aside if it's at or past the size bound.
func (w *Writer) rotateLocked() error {
	var fi, err = os.Stat(w.path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("stat spool: %w", err)
	}
	if fi.Size() < w.maxBytes {
		return nil
	}

	var stamp = strings.ReplaceAll(ident.ISO(time.Now()), ":", "-")
	var aside = fmt.Sprintf("%s.%s.bak", w.path, stamp)
	if err = os.Rename(w.path, aside); err != nil {
		return fmt.Errorf("rotating spool: %w", err)
	}
	rotationCounter.Inc()
	log.WithFields(log.Fields{"from": w.path, "to": aside, "bytes": fi.Size()}).
		Info("rotated spool file")
	return nil
}
