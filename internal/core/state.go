package core

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// State is the per-installation key/value storage.
type State struct {
	// SetupVersion is the last pipeline version that ran to completion,
	// regardless of individual step failures.
	SetupVersion string    `toml:"setupVersion"`
	LastRun      time.Time `toml:"lastRun,omitempty"`
}

// StateStore reads and writes State as a TOML file.
type StateStore struct {
	path string
	mu   sync.RWMutex
}

// NewStateStore creates a StateStore backed by path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the state from disk. A missing file yields an empty State.
func (s *StateStore) Load() (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st State
	if _, err := toml.DecodeFile(s.path, &st); err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}
	return &st, nil
}

// Save writes the state to disk, creating the directory if needed.
func (s *StateStore) Save(st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(st); err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	// Write atomically: write to temp file then rename
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

// SetupVersion returns the persisted gate value, or "" when unreadable.
func (s *StateStore) SetupVersion() string {
	st, err := s.Load()
	if err != nil {
		return ""
	}
	return st.SetupVersion
}

// SetSetupVersion records version as the last completed pipeline run.
func (s *StateStore) SetSetupVersion(version string, now time.Time) error {
	st, err := s.Load()
	if err != nil {
		// An unreadable store is replaced rather than blocking the gate forever.
		st = &State{}
	}
	st.SetupVersion = version
	st.LastRun = now.UTC().Truncate(time.Second)
	return s.Save(st)
}
