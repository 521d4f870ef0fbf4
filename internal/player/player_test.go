package player

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

func TestPlayState_String(t *testing.T) {
	tests := []struct {
		state PlayState
		want  string
	}{
		{StateStopped, "stopped"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{StateError, "error"},
		{PlayState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("PlayState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestParseAppleScriptOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    Snapshot
		wantErr bool
	}{
		{
			name:   "playing",
			output: "Yesterday|||The Beatles|||Help!|||125.5|||61.25|||playing",
			want: Snapshot{
				State:       StatePlaying,
				Track:       Track{Title: "Yesterday", Artist: "The Beatles", Album: "Help!", Duration: 125500 * time.Millisecond},
				Position:    61250 * time.Millisecond,
				HasPosition: true,
			},
		},
		{
			name:   "paused with empty album",
			output: "Song|||Band||| |||200|||0|||paused",
			want: Snapshot{
				State:       StatePaused,
				Track:       Track{Title: "Song", Artist: "Band", Duration: 200 * time.Second},
				HasPosition: true,
			},
		},
		{name: "too few parts", output: "a|||b|||c", wantErr: true},
		{name: "bad duration", output: "a|||b|||c|||x|||0|||playing", wantErr: true},
		{name: "bad position", output: "a|||b|||c|||1|||x|||playing", wantErr: true},
		{name: "bad state", output: "a|||b|||c|||1|||0|||rewinding", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAppleScriptOutput(tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAppleScript_GetState(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		want   PlayState
		ok     bool
	}{
		{"not running", "not_running\n", nil, StateStopped, true},
		{"stopped", "stopped", nil, StateStopped, true},
		{"playing", "a|||b|||c|||1|||0|||playing", nil, StatePlaying, true},
		{"garbage", "???", nil, StateError, false},
		{"osascript fails", "", errors.New("boom"), StateError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &AppleScript{run: func(ctx context.Context, script string) ([]byte, error) {
				return []byte(tt.output), tt.err
			}}
			snap, err := c.GetState(context.Background())
			if (err == nil) != tt.ok {
				t.Fatalf("err = %v", err)
			}
			if snap.State != tt.want {
				t.Errorf("State = %v, want %v", snap.State, tt.want)
			}
		})
	}
}

func TestSnapshotFromMPRIS(t *testing.T) {
	metadata := map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant("Yesterday"),
		"xesam:artist": dbus.MakeVariant([]string{"The Beatles", "Guest"}),
		"xesam:album":  dbus.MakeVariant("Help!"),
		"mpris:length": dbus.MakeVariant(uint64(125_000_000)),
	}

	tests := []struct {
		name     string
		status   string
		metadata map[string]dbus.Variant
		position interface{}
		want     Snapshot
	}{
		{
			name:     "playing with position",
			status:   "Playing",
			metadata: metadata,
			position: int64(61_500_000),
			want: Snapshot{
				State:       StatePlaying,
				Track:       Track{Title: "Yesterday", Artist: "The Beatles, Guest", Album: "Help!", Duration: 125 * time.Second},
				Position:    61500 * time.Millisecond,
				HasPosition: true,
			},
		},
		{
			name:     "paused without position",
			status:   "Paused",
			metadata: metadata,
			want: Snapshot{
				State: StatePaused,
				Track: Track{Title: "Yesterday", Artist: "The Beatles, Guest", Album: "Help!", Duration: 125 * time.Second},
			},
		},
		{
			name:     "negative position clamps",
			status:   "Playing",
			metadata: map[string]dbus.Variant{"xesam:title": dbus.MakeVariant("T"), "xesam:artist": dbus.MakeVariant("A")},
			position: int64(-5),
			want:     Snapshot{State: StatePlaying, Track: Track{Title: "T", Artist: "A"}, HasPosition: true},
		},
		{name: "stopped", status: "Stopped", metadata: metadata, want: Snapshot{State: StateStopped}},
		{name: "no title", status: "Playing", metadata: map[string]dbus.Variant{}, want: Snapshot{State: StateStopped}},
		{name: "nil metadata", status: "Playing", want: Snapshot{State: StateStopped}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snapshotFromMPRIS(tt.status, tt.metadata, tt.position); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFilterPlayers(t *testing.T) {
	names := []string{
		"org.freedesktop.DBus",
		"org.mpris.MediaPlayer2.vlc",
		":1.42",
		"org.mpris.MediaPlayer2.spotify",
		"org.mpris.MediaPlayer2.firefox.instance123",
	}
	got := filterPlayers(names)
	want := []string{
		"org.mpris.MediaPlayer2.spotify",
		"org.mpris.MediaPlayer2.firefox.instance123",
		"org.mpris.MediaPlayer2.vlc",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestServiceGone(t *testing.T) {
	if !serviceGone(dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}) {
		t.Error("ServiceUnknown should mean gone")
	}
	if serviceGone(dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownMethod"}) {
		t.Error("UnknownMethod should not mean gone")
	}
	if serviceGone(errors.New("other")) {
		t.Error("plain error should not mean gone")
	}
}

func TestParseWindowTitle(t *testing.T) {
	tests := []struct {
		title string
		want  Track
		ok    bool
	}{
		{"The Beatles - Yesterday", Track{Title: "Yesterday", Artist: "The Beatles"}, true},
		{"  AC/DC - Back in Black  ", Track{Title: "Back in Black", Artist: "AC/DC"}, true},
		{"Spotify", Track{}, false},
		{"Spotify Premium", Track{}, false},
		{"main.go - project - Visual Studio Code", Track{}, false},
		{"Page - Chrome", Track{}, false},
		{"notes - Notepad++", Track{}, false},
		{"file.py - PyCharm", Track{}, false},
		{"Artist - ", Track{}, false},
		{"", Track{}, false},
		{"Artist-Title", Track{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseWindowTitle(tt.title)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseWindowTitle(%q) = %+v, %v; want %+v, %v", tt.title, got, ok, tt.want, tt.ok)
		}
	}
}

func TestWindow_GetState(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		want   Snapshot
		ok     bool
	}{
		{
			name:   "track title",
			output: "Spotify\nThe Beatles - Yesterday\n",
			want:   Snapshot{State: StatePlaying, Track: Track{Title: "Yesterday", Artist: "The Beatles"}},
			ok:     true,
		},
		{name: "no track title", output: "Spotify Premium\n", want: Snapshot{State: StatePaused}, ok: true},
		{name: "no window", err: &exec.ExitError{}, want: Snapshot{State: StateStopped}, ok: true},
		{name: "missing command", err: exec.ErrNotFound, want: Snapshot{State: StateError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(nil)
			w.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
				if name != "xdotool" {
					t.Errorf("command = %q, want xdotool", name)
				}
				return []byte(tt.output), tt.err
			}

			got, err := w.GetState(context.Background())
			if (err == nil) != tt.ok {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if got.HasPosition {
				t.Error("window titles never carry a position")
			}
		})
	}
}

func TestSnapshotFromSpotify(t *testing.T) {
	playing := &spotify.CurrentlyPlaying{
		Playing:  true,
		Progress: 61000,
		Item: &spotify.FullTrack{
			SimpleTrack: spotify.SimpleTrack{
				Name:     "Yesterday",
				Artists:  []spotify.SimpleArtist{{Name: "The Beatles"}, {Name: "Guest"}},
				Duration: 125000,
			},
			Album: spotify.SimpleAlbum{Name: "Help!"},
		},
	}

	got := snapshotFromSpotify(playing)
	want := Snapshot{
		State:       StatePlaying,
		Track:       Track{Title: "Yesterday", Artist: "The Beatles, Guest", Album: "Help!", Duration: 125 * time.Second},
		Position:    61 * time.Second,
		HasPosition: true,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	playing.Playing = false
	if got := snapshotFromSpotify(playing); got.State != StatePaused {
		t.Errorf("State = %v, want paused", got.State)
	}

	if got := snapshotFromSpotify(nil); got.State != StateStopped {
		t.Errorf("nil response State = %v, want stopped", got.State)
	}
	if got := snapshotFromSpotify(&spotify.CurrentlyPlaying{}); got.State != StateStopped {
		t.Errorf("empty response State = %v, want stopped", got.State)
	}
}

type fakeSpotifyClient struct {
	cp    *spotify.CurrentlyPlaying
	err   error
	token *oauth2.Token
}

func (f *fakeSpotifyClient) PlayerCurrentlyPlaying(ctx context.Context, opts ...spotify.RequestOption) (*spotify.CurrentlyPlaying, error) {
	return f.cp, f.err
}

func (f *fakeSpotifyClient) Token() (*oauth2.Token, error) {
	return f.token, nil
}

func TestSpotify_PersistsRefreshedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spotify_token.json")
	fake := &fakeSpotifyClient{token: &oauth2.Token{AccessToken: "new", RefreshToken: "r"}}
	s := &Spotify{client: fake, tokenPath: path, lastToken: "old"}

	snap, err := s.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if snap.State != StateStopped {
		t.Errorf("State = %v, want stopped", snap.State)
	}

	tok, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if tok.AccessToken != "new" {
		t.Errorf("AccessToken = %q, want new", tok.AccessToken)
	}

	fake.err = errors.New("api down")
	if snap, err := s.GetState(context.Background()); err == nil || snap.State != StateError {
		t.Errorf("GetState() = %v, %v; want error state", snap.State, err)
	}
}

func TestLoadToken(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadToken(filepath.Join(dir, "missing.json")); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("missing file err = %v, want ErrNotAuthenticated", err)
	}

	path := filepath.Join(dir, "tok.json")
	if err := SaveToken(path, &oauth2.Token{}); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadToken(path); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("empty token err = %v, want ErrNotAuthenticated", err)
	}
}

func TestSpotifyConfig_Authenticator(t *testing.T) {
	cfg := SpotifyConfig{ClientID: "abc"}
	auth := cfg.Authenticator()
	u := auth.AuthURL("state123")
	for _, want := range []string{"client_id=abc", "state=state123", "redirect_uri=http%3A%2F%2F127.0.0.1%3A9090%2Fcallback"} {
		if !strings.Contains(u, want) {
			t.Errorf("AuthURL %q missing %q", u, want)
		}
	}
}
