package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// defaultPersistInterval limits how often position-only changes hit disk
const defaultPersistInterval = 1 * time.Second

// NowPlaying is the snapshot written to the state file for status bars and
// the now command.
type NowPlaying struct {
	Title      string    `json:"title,omitempty"`
	Artist     string    `json:"artist,omitempty"`
	Album      string    `json:"album,omitempty"`
	PlayState  string    `json:"play_state"`
	Lyrics     string    `json:"lyrics_state"`
	Line       string    `json:"line,omitempty"`
	Next       string    `json:"next,omitempty"`
	Index      int       `json:"index"`
	PositionMs int64     `json:"position_ms"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Tier       string    `json:"tier"`
	OffsetMs   int64     `json:"offset_ms"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// State holds the latest NowPlaying with thread-safe access and throttled
// persistence.
type State struct {
	mu              sync.RWMutex
	current         NowPlaying
	filePath        string // Path to state file for persistence
	persistInterval time.Duration
	lastPersist     time.Time
	dirty           bool // Changes not yet on disk
}

// NewState creates a new State instance
// If filePath is provided, attempts to restore state from disk
func NewState(filePath string) (*State, error) {
	s := &State{
		filePath:        filePath,
		persistInterval: defaultPersistInterval,
	}

	if filePath != "" {
		if err := s.restore(); err != nil && !os.IsNotExist(err) {
			// Not fatal, the daemon starts fresh
			return s, err
		}
	}

	return s, nil
}

// Set replaces the snapshot and writes it immediately. Use for track and
// state changes.
func (s *State) Set(np NowPlaying) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = np
	return s.persist()
}

// Update replaces the snapshot, writing at most once per persist interval
func (s *State) Update(np NowPlaying) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = np
	return s.throttledPersist()
}

// Get returns a copy of the current snapshot
func (s *State) Get() NowPlaying {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reset clears the snapshot
func (s *State) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = NowPlaying{}
	return s.persist()
}

// Flush writes pending changes. Call on shutdown.
func (s *State) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	return s.persist()
}

// throttledPersist persists only if the interval has elapsed, otherwise it
// marks the state dirty. Must be called with lock held.
func (s *State) throttledPersist() error {
	if time.Since(s.lastPersist) < s.persistInterval {
		s.dirty = true
		return nil
	}
	return s.persist()
}

// persist saves the current state to disk
// Must be called with lock held
func (s *State) persist() error {
	if s.filePath == "" {
		s.dirty = false
		return nil
	}

	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write atomically via temp file + rename
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return err
	}

	s.lastPersist = time.Now()
	s.dirty = false
	return nil
}

// restore loads state from disk
func (s *State) restore() error {
	np, err := ReadState(s.filePath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = np
	return nil
}

// ReadState reads a state file written by a running daemon
func ReadState(path string) (NowPlaying, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NowPlaying{}, err
	}

	var np NowPlaying
	if err := json.Unmarshal(data, &np); err != nil {
		return NowPlaying{}, fmt.Errorf("failed to parse state file: %w", err)
	}
	return np, nil
}
