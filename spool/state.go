package spool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/itplaylab/eventgate/ident"
)

// State is the persisted replay cursor. Offset is the first byte of the
// spool not yet successfully delivered; it advances only after every record
// of a replay tick succeeds.
type State struct {
	Offset    int64  `json:"offset"`
	UpdatedAt string `json:"updated_at"`
	LastError string `json:"last_error"`
	Sent      int64  `json:"sent"`
	Failed    int64  `json:"failed"`
}

// StateStore persists State as a single JSON object, written atomically via
// a temp file and rename so a crashed reader observes either the previous
// or the new version, never a torn one.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore returns a StateStore persisting at |path|.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path is the state file path.
func (s *StateStore) Path() string { return s.path }

// Load reads the persisted State. A missing or malformed file loads as the
// zero State: replay starts over from the head of the spool, which is safe
// under at-least-once delivery.
func (s *StateStore) Load() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st State
	var raw, err = os.ReadFile(s.path)
	if err != nil {
		return State{}
	}
	if err = json.Unmarshal(raw, &st); err != nil {
		return State{}
	}
	return st
}

// Save persists |st| with a refreshed UpdatedAt stamp.
func (s *StateStore) Save(st State) error {
	st.UpdatedAt = ident.ISO(time.Now())

	var raw, err = json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding replay state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	var tmp = s.path + ".tmp"
	if err = os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing replay state: %w", err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("committing replay state: %w", err)
	}
	return nil
}
