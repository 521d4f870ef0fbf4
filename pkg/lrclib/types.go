package lrclib

import "time"

// Record is a lyrics entry as returned by the API.
type Record struct {
	ID           int64   `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"` // Seconds
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// HasSynced reports whether the record carries timestamped lyrics.
func (r Record) HasSynced() bool {
	return r.SyncedLyrics != ""
}

// Signature identifies a track for an exact lookup.
type Signature struct {
	Track    string        // Required: track title
	Artist   string        // Required: artist name
	Album    string        // Optional: album name
	Duration time.Duration // Optional: track length; sent in whole seconds
}

// Query describes a search. Q searches all fields; the others narrow it.
type Query struct {
	Q      string
	Track  string
	Artist string
	Album  string
}
