// Package store keeps downloaded and manually chosen lyrics on disk as .lrc
// files, remembers manual track associations, and searches the local
// collection.
package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const associationsFile = "associations.json"

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// Options configures a Store
type Options struct {
	Index  *Index         // Optional SQLite index of cached files
	Logger zerolog.Logger // Optional, the zero value discards
}

// Store is a directory of .lrc files plus an association map. It is safe
// for concurrent use.
type Store struct {
	dir    string
	index  *Index
	logger zerolog.Logger

	mu sync.Mutex // serializes lyric writes and guards the association file
}

// New opens the store rooted at dir, creating it if necessary
func New(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Store{
		dir:    dir,
		index:  opts.Index,
		logger: opts.Logger.With().Str("component", "store").Logger(),
	}, nil
}

// Dir returns the cache directory
func (s *Store) Dir() string {
	return s.dir
}

// Index returns the attached index, or nil
func (s *Store) Index() *Index {
	return s.index
}

// Path returns the readable cache location for a track
func (s *Store) Path(title, artist string) string {
	name := title
	if artist != "" {
		name = artist + " - " + title
	}
	return filepath.Join(s.dir, SanitizeFilename(name)+".lrc")
}

// SanitizeFilename replaces characters that are invalid in file names
func SanitizeFilename(name string) string {
	return strings.TrimSpace(unsafeChars.ReplaceAllString(name, "_"))
}

// legacyPath is the hashed location used by older caches
func (s *Store) legacyPath(title, artist string) string {
	raw := strings.ToLower(strings.TrimSpace(title)) + "||" + strings.ToLower(strings.TrimSpace(artist))
	sum := md5.Sum([]byte(raw))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".lrc")
}

// Load returns cached lyrics for a track. It checks the manual association
// first, then the readable file name, then the legacy hashed name.
func (s *Store) Load(title, artist string) (string, bool, error) {
	if content, ok := s.loadAssociated(title, artist); ok {
		return content, true, nil
	}

	var firstErr error
	for _, path := range []string{s.Path(title, artist), s.legacyPath(title, artist)} {
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), true, nil
		}
		if !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return "", false, firstErr
}

// loadAssociated reads the associated file, dropping the association when
// the file is gone.
func (s *Store) loadAssociated(title, artist string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assoc, err := s.readAssociations()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read associations")
		return "", false
	}

	key := associationKey(title, artist)
	path, ok := assoc[key]
	if !ok {
		return "", false
	}

	data, err := os.ReadFile(path)
	if err == nil {
		s.logger.Debug().Str("track", title).Str("path", path).Msg("Loaded associated lyrics")
		return string(data), true
	}

	if os.IsNotExist(err) {
		s.logger.Info().Str("track", title).Str("path", path).Msg("Associated file missing, removing association")
		delete(assoc, key)
		if err := s.writeAssociations(assoc); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to write associations")
		}
	} else {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to read associated file")
	}
	return "", false
}

// Save writes lyrics to the track's readable location and returns it
func (s *Store) Save(title, artist, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(title, artist)
	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return "", fmt.Errorf("failed to save lyrics: %w", err)
	}

	if s.index != nil {
		if err := s.index.Upsert(context.Background(), title, artist, path); err != nil {
			s.logger.Warn().Err(err).Str("track", title).Msg("Failed to index lyrics")
		}
	}

	s.logger.Debug().Str("track", title).Str("artist", artist).Str("path", path).Msg("Saved lyrics")
	return path, nil
}

// SaveAssociation maps a track to a lyric file chosen by the user
func (s *Store) SaveAssociation(title, artist, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	assoc, err := s.readAssociations()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Replacing unreadable associations file")
		assoc = make(map[string]string)
	}
	assoc[associationKey(title, artist)] = location

	if err := s.writeAssociations(assoc); err != nil {
		return fmt.Errorf("failed to save association: %w", err)
	}
	s.logger.Info().Str("track", title).Str("artist", artist).Str("path", location).Msg("Saved association")
	return nil
}

// Associations returns a copy of the association map
func (s *Store) Associations() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAssociations()
}

// RecordOffset adds a sync adjustment to the track's running total. It is a
// no-op without an index.
func (s *Store) RecordOffset(title, artist string, deltaMs int64) error {
	if s.index == nil {
		return nil
	}
	return s.index.AddOffset(context.Background(), title, artist, deltaMs)
}

func associationKey(title, artist string) string {
	return title + "||" + artist
}

func (s *Store) readAssociations() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, associationsFile))
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read associations: %w", err)
	}

	assoc := make(map[string]string)
	if err := json.Unmarshal(data, &assoc); err != nil {
		return nil, fmt.Errorf("failed to parse associations: %w", err)
	}
	return assoc, nil
}

func (s *Store) writeAssociations(assoc map[string]string) error {
	data, err := json.MarshalIndent(assoc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal associations: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, associationsFile), data)
}

// writeFileAtomic writes to a uniquely named temp file next to path and
// renames it into place
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
