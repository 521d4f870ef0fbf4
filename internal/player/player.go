// Package player reads playback state from music players.
//
// Each Connector reports a Snapshot of what is playing. Connectors that know
// the exact playback position set HasPosition; those that only know the
// track leave position estimation to the caller.
package player

import (
	"context"
	"time"
)

// PlayState represents the current playback state of the music player
type PlayState int

const (
	StateStopped PlayState = iota // No track loaded or player not running
	StatePlaying                  // Track is currently playing
	StatePaused                   // Track is paused
	StateError                    // Player could not be queried
)

// String returns a human-readable representation of the PlayState
func (s PlayState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Track represents a music track's metadata
type Track struct {
	Title    string        // Track name
	Artist   string        // Artist name, multiple artists joined with ", "
	Album    string        // Album name, may be empty
	Duration time.Duration // Total track duration, zero if unknown
}

// Snapshot is one reading of the player
type Snapshot struct {
	State       PlayState
	Track       Track
	Position    time.Duration // Valid only when HasPosition is set
	HasPosition bool
}

// Connector reads the player's current state
type Connector interface {
	// Name identifies the connector in logs
	Name() string

	// GetState returns the current snapshot. On failure the snapshot's
	// state is StateError.
	GetState(ctx context.Context) (Snapshot, error)
}

// Controller is an optional Connector capability for transport controls
type Controller interface {
	PlayPause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
