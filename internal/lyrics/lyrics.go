// Package lyrics fetches lyric text from a chain of providers and exposes
// manual search and download across them.
package lyrics

import (
	"context"
	"errors"
	"strings"

	"github.com/jfmyers9/lyricsync/internal/lrc"
)

// ErrNotFound is returned when no provider has synced lyrics
var ErrNotFound = errors.New("lyrics not found")

// Query describes the track to look up. Album and DurationMs are optional.
type Query struct {
	Title      string
	Artist     string
	Album      string
	DurationMs int64
}

// Result is one candidate from a manual search. ID is prefixed with the
// provider name, e.g. "lrclib:123".
type Result struct {
	Source string
	ID     string
	Title  string
	Artist string
	Album  string
}

// Label returns a one-line description for pickers
func (r Result) Label() string {
	label := r.Title
	if r.Artist != "" {
		label = r.Artist + " - " + label
	}
	if r.Album != "" {
		label += " (" + r.Album + ")"
	}
	return "[" + r.Source + "] " + label
}

// Provider is a named lyric backend. It should implement at least one of
// Fetcher, Searcher or Downloader.
type Provider interface {
	Name() string
}

// Fetcher looks up lyrics for a known track
type Fetcher interface {
	Provider
	Fetch(ctx context.Context, q Query) (string, error)
}

// Searcher lists candidates for a free-text query
type Searcher interface {
	Provider
	Search(ctx context.Context, query string) ([]Result, error)
}

// Downloader retrieves the lyrics of a search result. The id passed in has
// the provider prefix removed.
type Downloader interface {
	Provider
	Download(ctx context.Context, id string) (string, error)
}

// ResultID builds a prefixed result id
func ResultID(provider, id string) string {
	return provider + ":" + id
}

// SplitID separates a result id into provider name and provider-local id
func SplitID(id string) (provider, rest string, ok bool) {
	provider, rest, ok = strings.Cut(id, ":")
	if !ok || provider == "" || rest == "" {
		return "", "", false
	}
	return provider, rest, true
}

// IsSynced reports whether content has at least one timestamped line
func IsSynced(content string) bool {
	return !lrc.Parse(content).Empty()
}
