package player

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
)

// Source names accepted by New
const (
	SourceAuto        = "auto"
	SourceMPRIS       = "mpris"
	SourceSpotify     = "spotify"
	SourceAppleScript = "applescript"
	SourceWindow      = "window"
)

// Options selects and configures a connector
type Options struct {
	Source        string
	MPRISService  string
	WindowCommand []string
	Spotify       SpotifyConfig
	Logger        zerolog.Logger
}

// New builds the connector named by opts.Source. "auto" picks Apple Music on
// macOS; elsewhere it tries the Spotify Web API when a token is cached, then
// MPRIS, then window titles.
func New(ctx context.Context, opts Options) (Connector, error) {
	logger := opts.Logger.With().Str("component", "player").Logger()

	switch opts.Source {
	case SourceMPRIS:
		return NewMPRIS(opts.MPRISService)
	case SourceSpotify:
		return NewSpotify(ctx, opts.Spotify)
	case SourceAppleScript:
		return NewAppleScript(), nil
	case SourceWindow:
		return NewWindow(opts.WindowCommand), nil
	case SourceAuto, "":
	default:
		return nil, fmt.Errorf("unknown player source %q", opts.Source)
	}

	if runtime.GOOS == "darwin" {
		return NewAppleScript(), nil
	}

	if opts.Spotify.ClientID != "" {
		sp, err := NewSpotify(ctx, opts.Spotify)
		if err == nil {
			logger.Info().Msg("Using Spotify Web API")
			return sp, nil
		}
		logger.Warn().Err(err).Msg("Spotify Web API unavailable, falling back")
	}

	m, err := NewMPRIS(opts.MPRISService)
	if err == nil {
		logger.Info().Msg("Using MPRIS")
		return m, nil
	}
	logger.Warn().Err(err).Msg("MPRIS unavailable, using window titles without playback position")
	return NewWindow(opts.WindowCommand), nil
}
