// Package session owns the lifecycle of the lyrics for the currently playing
// track: loading, position tracking, manual overrides and sync adjustments.
//
// A Session is not safe for concurrent use. All methods must be called from
// the goroutine that owns it; background work reports back through
// Completions and is applied with Apply on that same goroutine.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/lyricsync/internal/lrc"
	"github.com/jfmyers9/lyricsync/internal/lyrics"
)

// State is the session's lifecycle state
type State int

const (
	StateIdle           State = iota // No track identified
	StateLoading                     // Lyrics requested, waiting for a result
	StateReady                       // Lyrics loaded from cache or a provider
	StateNoLyricsFound               // Every source came back empty
	StateManualOverride              // Lyrics supplied by the user
)

// String returns a human-readable representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateNoLyricsFound:
		return "no_lyrics"
	case StateManualOverride:
		return "manual"
	default:
		return "unknown"
	}
}

// HasLyrics reports whether the state carries a displayable document
func (s State) HasLyrics() bool {
	return s == StateReady || s == StateManualOverride
}

// Track identifies the playing track. Missing fields are empty or zero.
type Track struct {
	Title      string
	Artist     string
	Album      string
	DurationMs int64
}

// Key returns the track's identity
func (t Track) Key() TrackKey {
	return TrackKey{Title: t.Title, Artist: t.Artist}
}

// TrackKey is the exact, case-sensitive identity of a track
type TrackKey struct {
	Title  string
	Artist string
}

// String returns the "title||artist" form used by the association map
func (k TrackKey) String() string {
	return k.Title + "||" + k.Artist
}

// IsZero reports whether no track is identified
func (k TrackKey) IsZero() bool {
	return k.Title == "" && k.Artist == ""
}

// Source supplies lyric text from providers
type Source interface {
	Fetch(ctx context.Context, q lyrics.Query) (string, error)
	Search(ctx context.Context, query string) ([]lyrics.Result, error)
	Download(ctx context.Context, id string) (string, error)
}

// Cache stores lyric text by track
type Cache interface {
	Load(title, artist string) (string, bool, error)
	Save(title, artist, content string) (string, error)
	SaveAssociation(title, artist, location string) error
}

// OffsetRecorder is an optional Cache capability that keeps a running total
// of sync adjustments per track.
type OffsetRecorder interface {
	RecordOffset(title, artist string, deltaMs int64) error
}

// Config holds session dependencies. Source and Cache may be nil.
type Config struct {
	Source  Source
	Cache   Cache
	Logger  zerolog.Logger
	Timeout time.Duration // Per background job, defaults to 10s
	NoCache bool          // Skip cache reads when loading
}

const defaultTimeout = 10 * time.Second

// Session tracks lyrics for one track at a time
type Session struct {
	source  Source
	cache   Cache
	logger  zerolog.Logger
	timeout time.Duration
	noCache bool

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	completions chan Completion

	// saveMu guards saves, which is fed by the owner and drained by saveLoop
	saveMu   sync.Mutex
	saves    []saveJob
	saveWake chan struct{}

	track    Track
	key      TrackKey
	state    State
	doc      *lrc.Document
	index    int
	offsetMs int64
	results  []lyrics.Result
	origin   string
}

// New creates an idle Session
func New(cfg Config) *Session {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		source:      cfg.Source,
		cache:       cfg.Cache,
		logger:      cfg.Logger.With().Str("component", "session").Logger(),
		timeout:     timeout,
		noCache:     cfg.NoCache,
		ctx:         ctx,
		cancel:      cancel,
		completions: make(chan Completion, 16),
		saveWake:    make(chan struct{}, 1),
		index:       lrc.None,
	}
	if s.cache != nil {
		s.wg.Add(1)
		go s.saveLoop()
	}
	return s
}

// Close cancels outstanding background work and waits for it to finish
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}

// Completions delivers results of background work. Each one must be passed
// to Apply on the owning goroutine.
func (s *Session) Completions() <-chan Completion {
	return s.completions
}

// ObserveTrack compares t against the current track and starts a new load
// when the identity differs. Tracks without a title are ignored. It reports
// whether a change was detected.
func (s *Session) ObserveTrack(t Track) bool {
	if t.Title == "" {
		return false
	}
	if t.Key() == s.key && s.state != StateIdle {
		return false
	}
	s.OnTrackChanged(t)
	return true
}

// OnTrackChanged resets the session for t and requests its lyrics
func (s *Session) OnTrackChanged(t Track) {
	s.track = t
	s.key = t.Key()
	s.doc = nil
	s.index = lrc.None
	s.offsetMs = 0
	s.results = nil
	s.origin = ""

	s.logger.Info().
		Str("track", t.Title).
		Str("artist", t.Artist).
		Msg("Track changed")

	if s.source == nil && s.cache == nil {
		s.state = StateNoLyricsFound
		return
	}

	s.state = StateLoading
	s.dispatch(KindLoad, s.loadJob(t))
}

// Reset returns the session to idle, dropping the current track
func (s *Session) Reset() {
	s.track = Track{}
	s.key = TrackKey{}
	s.doc = nil
	s.index = lrc.None
	s.offsetMs = 0
	s.results = nil
	s.origin = ""
	s.state = StateIdle
}

// OnManualContentProvided replaces the current lyrics with raw and reports
// whether it did. Content without timed lines leaves the session untouched.
// When a track is identified the content is saved to the cache and
// associated with it so later plays load it first.
func (s *Session) OnManualContentProvided(raw string) bool {
	doc := lrc.Parse(raw)
	if doc.Empty() {
		s.logger.Warn().
			Str("track", s.key.Title).
			Str("state", s.state.String()).
			Msg("Manual lyrics contain no timed lines, keeping current lyrics")
		return false
	}

	s.doc = doc
	s.index = lrc.None
	s.offsetMs = 0
	s.state = StateManualOverride
	s.origin = OriginManual

	if s.key.IsZero() || s.cache == nil {
		return true
	}

	title, artist := s.key.Title, s.key.Artist
	s.queueSave(func() Completion {
		loc, err := s.cache.Save(title, artist, raw)
		if err == nil {
			err = s.cache.SaveAssociation(title, artist, loc)
		}
		return Completion{Content: loc, Err: err}
	})
	return true
}

// OnPositionTick moves the active line to match posMs and reports whether
// it changed.
func (s *Session) OnPositionTick(posMs int64) bool {
	if s.doc.Empty() {
		return false
	}
	active, _ := lrc.Locate(s.doc.Lines, posMs)
	if active == s.index {
		return false
	}
	s.index = active
	return true
}

// ApplySyncAdjustment shifts every line by deltaMs and rewrites the cached
// lyric file with the result.
func (s *Session) ApplySyncAdjustment(deltaMs int64) {
	if s.doc.Empty() {
		return
	}

	s.doc = s.doc.Shift(deltaMs)
	s.offsetMs += deltaMs
	s.index = lrc.None

	s.logger.Info().
		Int64("delta_ms", deltaMs).
		Int64("offset_ms", s.offsetMs).
		Msg("Sync adjusted")

	if s.key.IsZero() || s.cache == nil {
		return
	}

	title, artist := s.key.Title, s.key.Artist
	content := lrc.Format(s.doc)
	s.queueSave(func() Completion {
		loc, err := s.cache.Save(title, artist, content)
		if err == nil {
			if rec, ok := s.cache.(OffsetRecorder); ok {
				err = rec.RecordOffset(title, artist, deltaMs)
			}
		}
		return Completion{Content: loc, Err: err}
	})
}

// Search queries the lyric source in the background. Results replace
// Results() once they arrive.
func (s *Session) Search(query string) {
	if s.source == nil || query == "" {
		return
	}
	s.dispatch(KindSearch, func(ctx context.Context) Completion {
		results, err := s.source.Search(ctx, query)
		return Completion{Results: results, Err: err}
	})
}

// Download fetches a search result by id in the background and applies it
// as manual content.
func (s *Session) Download(id string) {
	if s.source == nil || id == "" {
		return
	}
	s.dispatch(KindDownload, func(ctx context.Context) Completion {
		content, err := s.source.Download(ctx, id)
		return Completion{Content: content, Err: err}
	})
}

// Apply routes a completion into the session. Completions issued for a
// different track are dropped. It reports whether the visible state changed.
func (s *Session) Apply(c Completion) bool {
	if c.Kind == KindSave {
		if c.Err != nil {
			s.logger.Error().Err(c.Err).Str("track", c.Key.Title).Msg("Failed to save lyrics")
		} else {
			s.logger.Debug().Str("path", c.Content).Msg("Lyrics saved")
		}
		return false
	}

	if c.Key != s.key {
		s.logger.Debug().
			Str("kind", c.Kind.String()).
			Str("for", c.Key.String()).
			Str("current", s.key.String()).
			Msg("Dropping stale completion")
		return false
	}

	switch c.Kind {
	case KindLoad:
		return s.applyLoad(c)
	case KindSearch:
		if c.Err != nil {
			s.logger.Warn().Err(c.Err).Msg("Search failed")
		}
		s.results = c.Results
		return true
	case KindDownload:
		if c.Err != nil || c.Content == "" {
			s.logger.Warn().Err(c.Err).Msg("Download failed")
			return false
		}
		return s.OnManualContentProvided(c.Content)
	}
	return false
}

func (s *Session) applyLoad(c Completion) bool {
	if s.state != StateLoading {
		return false
	}

	if c.Err != nil && !errors.Is(c.Err, lyrics.ErrNotFound) {
		s.logger.Warn().Err(c.Err).Str("track", s.key.Title).Msg("Failed to fetch lyrics")
	}

	doc := lrc.Parse(c.Content)
	if doc.Empty() {
		s.state = StateNoLyricsFound
		s.logger.Info().Str("track", s.key.Title).Msg("No lyrics found")
		return true
	}

	s.doc = doc
	s.index = lrc.None
	s.origin = c.Origin
	s.state = StateReady
	s.logger.Info().
		Str("track", s.key.Title).
		Str("origin", c.Origin).
		Int("lines", len(doc.Lines)).
		Msg("Lyrics loaded")

	if c.Origin == OriginProvider && s.cache != nil {
		title, artist, content := s.key.Title, s.key.Artist, c.Content
		s.queueSave(func() Completion {
			loc, err := s.cache.Save(title, artist, content)
			return Completion{Content: loc, Err: err}
		})
	}
	return true
}

// State returns the lifecycle state
func (s *Session) State() State { return s.state }

// Track returns the current track
func (s *Session) Track() Track { return s.track }

// Key returns the current track key
func (s *Session) Key() TrackKey { return s.key }

// Document returns the loaded lyrics, or nil
func (s *Session) Document() *lrc.Document { return s.doc }

// Index returns the active line index, or lrc.None
func (s *Session) Index() int { return s.index }

// OffsetMs returns the total sync adjustment applied since the track loaded
func (s *Session) OffsetMs() int64 { return s.offsetMs }

// Origin returns where the current lyrics came from
func (s *Session) Origin() string { return s.origin }

// Results returns the most recent search results
func (s *Session) Results() []lyrics.Result { return s.results }

// Line returns the text of the line at offset rel from the active line.
// Before the first line, rel 1 is the first line.
func (s *Session) Line(rel int) (string, bool) {
	if s.doc.Empty() {
		return "", false
	}
	i := s.index + rel
	if i < 0 || i >= len(s.doc.Lines) {
		return "", false
	}
	return s.doc.Lines[i].Text, true
}
