package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jfmyers9/lyricsync/internal/daemon"
)

func TestPadToWidth(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "no padding when width is 0",
			input:    "Hello",
			width:    0,
			expected: "Hello",
		},
		{
			name:     "no padding when width is negative",
			input:    "Hello",
			width:    -1,
			expected: "Hello",
		},
		{
			name:     "pad short text with spaces",
			input:    "Hi",
			width:    10,
			expected: "Hi        ",
		},
		{
			name:     "exact width unchanged",
			input:    "Hello",
			width:    5,
			expected: "Hello",
		},
		{
			name:     "truncate long text with ellipsis",
			input:    "This is a very long string that needs truncation",
			width:    20,
			expected: "This is a very lo...",
		},
		{
			name:     "handle emoji correctly",
			input:    "🎵 Music",
			width:    15,
			expected: "🎵 Music       ", // emoji is 2 columns, so 8 total + 7 spaces
		},
		{
			name:     "truncate emoji text",
			input:    "🎵 This is a very long song title",
			width:    15,
			expected: "🎵 This is a...",
		},
		{
			name:     "handle unicode characters",
			input:    "日本語",
			width:    10,
			expected: "日本語    ",
		},
		{
			name:     "truncate unicode text",
			input:    "日本語とても長いテキスト",
			width:    10,
			expected: "日本語... ", // 日本語 is 6 columns, ... is 3, need 1 space
		},
		{
			name:     "empty string padding",
			input:    "",
			width:    5,
			expected: "     ",
		},
		{
			name:     "minimum width for truncation",
			input:    "Hello",
			width:    3,
			expected: "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := padToWidth(tt.input, tt.width)
			if result != tt.expected {
				t.Errorf("padToWidth(%q, %d) = %q, expected %q",
					tt.input, tt.width, result, tt.expected)
			}

			if tt.width > 0 {
				if w := runewidth.StringWidth(result); w != tt.width {
					t.Errorf("padToWidth(%q, %d) produced width %d, expected %d",
						tt.input, tt.width, w, tt.width)
				}
			}
		})
	}
}

func TestMarqueeText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		width    int
		unixSec  int64
		expected string
	}{
		{"fits is padded", "abc", 5, 7, "abc  "},
		{"start of loop", "abcdef", 4, 0, "abcd"},
		{"advances with time", "abcdef", 4, 2, "cdef"},
		{"runs into separator", "abcdef", 4, 5, "f | "},
		{"wraps around", "abcdef", 4, 16, "bcde"},
		{"disabled width", "abcdef", 0, 3, "abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := marqueeText(tt.text, tt.width, 1, " | ", tt.unixSec)
			if got != tt.expected {
				t.Errorf("marqueeText(%q, %d, t=%d) = %q, expected %q",
					tt.text, tt.width, tt.unixSec, got, tt.expected)
			}
		})
	}
}

func TestMarqueeTextWideRunes(t *testing.T) {
	got := marqueeText("日本語とても長い", 5, 1, " ", 0)
	if w := runewidth.StringWidth(got); w != 5 {
		t.Errorf("marquee width = %d, expected 5 (%q)", w, got)
	}
}

func TestFormatNowPlaying(t *testing.T) {
	np := daemon.NowPlaying{
		Title:  "Bohemian Rhapsody",
		Artist: "Queen",
		Line:   "Is this the real life?",
		Next:   "Is this just fantasy?",
	}

	tests := []struct {
		name     string
		format   string
		expected string
		wantErr  bool
	}{
		{"line", "{{.Line}}", "Is this the real life?", false},
		{"track", "{{.Artist}} - {{.Title}}", "Queen - Bohemian Rhapsody", false},
		{"fallback", "{{if .Line}}{{.Line}}{{else}}{{.Title}}{{end}}", "Is this the real life?", false},
		{"invalid template", "{{.Line", "", true},
		{"unknown field", "{{.Nope}}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatNowPlaying(np, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("formatNowPlaying() err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("formatNowPlaying() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestPlaying(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name string
		np   daemon.NowPlaying
		want error
	}{
		{
			name: "fresh and playing",
			np:   daemon.NowPlaying{Title: "Song", PlayState: "playing", UpdatedAt: now.Add(-time.Second)},
		},
		{
			name: "paused",
			np:   daemon.NowPlaying{Title: "Song", PlayState: "paused", UpdatedAt: now},
			want: errNotPlaying,
		},
		{
			name: "no track",
			np:   daemon.NowPlaying{PlayState: "playing", UpdatedAt: now},
			want: errNotPlaying,
		},
		{
			name: "stale state file",
			np:   daemon.NowPlaying{Title: "Song", PlayState: "playing", UpdatedAt: now.Add(-time.Minute)},
			want: errNotPlaying,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := playing(tt.np, now); !errors.Is(err, tt.want) {
				t.Errorf("playing() = %v, want %v", err, tt.want)
			}
		})
	}
}
