package daemon

import (
	"github.com/jfmyers9/lyricsync/internal/clock"
	"github.com/jfmyers9/lyricsync/internal/lyrics"
	"github.com/jfmyers9/lyricsync/internal/player"
	"github.com/jfmyers9/lyricsync/internal/session"
)

// EventKind identifies what changed
type EventKind int

const (
	EventTrack    EventKind = iota // A new track was detected
	EventLyrics                    // Lyrics loaded, replaced or not found
	EventLine                      // The active line moved
	EventOffset                    // A sync adjustment was applied
	EventResults                   // Search results arrived
	EventPlayback                  // Play state changed
)

// String returns a human-readable representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case EventTrack:
		return "track"
	case EventLyrics:
		return "lyrics"
	case EventLine:
		return "line"
	case EventOffset:
		return "offset"
	case EventResults:
		return "results"
	case EventPlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// View is a copy of the session as seen by presentation code
type View struct {
	Track      session.Track
	State      session.State
	PlayState  player.PlayState
	Lines      []string
	Index      int // Active line, lrc.None before the first line
	Line       string
	Next       string
	OffsetMs   int64
	PositionMs int64
	Tier       clock.Tier
	Origin     string
	Results    []lyrics.Result
}

// Event is delivered to subscribers
type Event struct {
	Kind EventKind
	View
}
