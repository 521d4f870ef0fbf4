package player

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultWindowCommand prints the titles of Spotify's windows on X11
var DefaultWindowCommand = []string{"xdotool", "search", "--class", "spotify", "getwindowname", "%@"}

const titleSeparator = " - "

// Window titles ending in one of these belong to editors and browsers
var rejectedTitleSuffixes = []string{
	" - Cursor", " - Visual Studio Code", " - Code",
	" - Chrome", " - Firefox", " - Edge", " - Brave",
	" - Opera", " - Safari", " - Notepad", " - Notepad++",
	" - Sublime Text", " - Atom", " - IntelliJ IDEA",
	" - PyCharm", " - WebStorm", " - Explorer",
}

// Window infers the playing track from the player's window title. It never
// knows the playback position.
type Window struct {
	command []string
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewWindow creates a window-title connector. command is run on every poll
// and should print one window title per line; nil uses DefaultWindowCommand.
func NewWindow(command []string) *Window {
	if len(command) == 0 {
		command = DefaultWindowCommand
	}
	return &Window{
		command: command,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Name implements Connector
func (w *Window) Name() string {
	return "window"
}

// GetState implements Connector. A command that exits non-zero means the
// player is not running; a window without a track title means paused.
func (w *Window) GetState(ctx context.Context) (Snapshot, error) {
	out, err := w.run(ctx, w.command[0], w.command[1:]...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Snapshot{State: StateStopped}, nil
		}
		return Snapshot{State: StateError}, fmt.Errorf("failed to run %s: %w", w.command[0], err)
	}

	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		if track, ok := ParseWindowTitle(sc.Text()); ok {
			return Snapshot{State: StatePlaying, Track: track}, nil
		}
	}
	return Snapshot{State: StatePaused}, nil
}

// ParseWindowTitle accepts titles of the form "Artist - Title" with exactly
// one separator and no known editor or browser suffix.
func ParseWindowTitle(title string) (Track, bool) {
	title = strings.TrimSpace(title)
	if title == "" || strings.Count(title, titleSeparator) != 1 {
		return Track{}, false
	}
	for _, suffix := range rejectedTitleSuffixes {
		if strings.HasSuffix(title, suffix) {
			return Track{}, false
		}
	}

	artist, name, _ := strings.Cut(title, titleSeparator)
	artist = strings.TrimSpace(artist)
	name = strings.TrimSpace(name)
	if name == "" {
		return Track{}, false
	}
	return Track{Title: name, Artist: artist}, true
}
