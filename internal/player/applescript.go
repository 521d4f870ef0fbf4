package player

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const appleScriptDelimiter = "|||"

// currentTrackScript checks that Music is running and reads the track in a
// single osascript call.
const currentTrackScript = `
tell application "System Events"
	if not ((name of processes) contains "Music") then
		return "not_running"
	end if
end tell
tell application "Music"
	if player state is stopped then
		return "stopped"
	else
		set trackName to name of current track
		set trackArtist to artist of current track
		set trackAlbum to album of current track
		set trackDuration to duration of current track
		set playerPos to player position
		set playerState to player state as string

		return trackName & "|||" & trackArtist & "|||" & trackAlbum & "|||" & trackDuration & "|||" & playerPos & "|||" & playerState
	end if
end tell`

// AppleScript reads Apple Music through osascript on macOS
type AppleScript struct {
	run func(ctx context.Context, script string) ([]byte, error)
}

// NewAppleScript creates an Apple Music connector
func NewAppleScript() *AppleScript {
	return &AppleScript{run: runOSAScript}
}

func runOSAScript(ctx context.Context, script string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("osascript error: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("failed to execute osascript: %w", err)
	}
	return out, nil
}

// Name implements Connector
func (c *AppleScript) Name() string {
	return "applescript"
}

// GetState implements Connector. Apple Music reports an exact position.
func (c *AppleScript) GetState(ctx context.Context) (Snapshot, error) {
	out, err := c.run(ctx, currentTrackScript)
	if err != nil {
		return Snapshot{State: StateError}, err
	}

	result := strings.TrimSpace(string(out))
	if result == "not_running" || result == "stopped" {
		return Snapshot{State: StateStopped}, nil
	}

	snap, err := parseAppleScriptOutput(result)
	if err != nil {
		return Snapshot{State: StateError}, fmt.Errorf("failed to parse track output: %w", err)
	}
	return snap, nil
}

// parseAppleScriptOutput parses the delimited output of currentTrackScript
func parseAppleScriptOutput(output string) (Snapshot, error) {
	parts := strings.Split(output, appleScriptDelimiter)
	if len(parts) != 6 {
		return Snapshot{}, fmt.Errorf("expected 6 parts, got %d: %q", len(parts), output)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	durationSec, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse duration %q: %w", parts[3], err)
	}

	positionSec, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse position %q: %w", parts[4], err)
	}

	var state PlayState
	switch parts[5] {
	case "playing":
		state = StatePlaying
	case "paused":
		state = StatePaused
	case "stopped":
		state = StateStopped
	default:
		return Snapshot{}, fmt.Errorf("unknown player state: %q", parts[5])
	}

	return Snapshot{
		State: state,
		Track: Track{
			Title:    parts[0],
			Artist:   parts[1],
			Album:    parts[2],
			Duration: secondsToDuration(durationSec),
		},
		Position:    secondsToDuration(positionSec),
		HasPosition: true,
	}, nil
}

// PlayPause toggles between play and pause in Apple Music
func (c *AppleScript) PlayPause(ctx context.Context) error {
	if _, err := c.run(ctx, `tell application "Music" to playpause`); err != nil {
		return fmt.Errorf("failed to playpause: %w", err)
	}
	return nil
}

// Next skips to the next track in Apple Music
func (c *AppleScript) Next(ctx context.Context) error {
	if _, err := c.run(ctx, `tell application "Music" to next track`); err != nil {
		return fmt.Errorf("failed to skip to next track: %w", err)
	}
	return nil
}

// Previous goes back to the previous track in Apple Music
func (c *AppleScript) Previous(ctx context.Context) error {
	if _, err := c.run(ctx, `tell application "Music" to back track`); err != nil {
		return fmt.Errorf("failed to go to previous track: %w", err)
	}
	return nil
}
