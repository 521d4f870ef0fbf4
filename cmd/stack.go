package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/lyricsync/internal/config"
	"github.com/jfmyers9/lyricsync/internal/daemon"
	"github.com/jfmyers9/lyricsync/internal/lyrics"
	"github.com/jfmyers9/lyricsync/internal/player"
	"github.com/jfmyers9/lyricsync/internal/session"
	"github.com/jfmyers9/lyricsync/internal/store"
	"github.com/jfmyers9/lyricsync/pkg/lrclib"
)

// debugLogger adapts zerolog to the lrclib client's Logger
type debugLogger struct {
	logger zerolog.Logger
}

func (l debugLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// resolveDataDir returns dir, or the default data directory, and creates it
func resolveDataDir(dir string) (string, error) {
	if dir == "" {
		dir = config.GetDataDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// openStore opens the lyric cache with its sqlite index. A broken index is
// logged and the cache runs without it.
func openStore(cfg *config.Config, dataDir string, logger zerolog.Logger) (*store.Store, error) {
	index, err := store.NewIndex(filepath.Join(dataDir, "index.db"))
	if err != nil {
		logger.Warn().Err(err).Msg("Lyric index unavailable")
		index = nil
	}

	st, err := store.New(cfg.Cache.Dir, store.Options{Index: index, Logger: logger})
	if err != nil {
		if index != nil {
			_ = index.Close()
		}
		return nil, err
	}
	return st, nil
}

// closeStore releases the store's index
func closeStore(st *store.Store) {
	if idx := st.Index(); idx != nil {
		_ = idx.Close()
	}
}

// buildManager creates the provider chain named in the config. The local
// cache always answers searches first.
func buildManager(cfg *config.Config, st *store.Store, logger zerolog.Logger) (*lyrics.Manager, error) {
	providers := []lyrics.Provider{}
	if st != nil {
		providers = append(providers, st)
	}

	for _, name := range cfg.Lyrics.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "lrclib":
			client := lrclib.NewClient(lrclib.Config{
				BaseURL: cfg.Lyrics.LRCLIBURL,
				Logger:  debugLogger{logger: logger.With().Str("component", "lrclib").Logger()},
			})
			providers = append(providers, lyrics.NewLRCLIB(client))
		case "netease":
			providers = append(providers, lyrics.NewNetEase(lyrics.NetEaseConfig{
				BaseURL: cfg.Lyrics.NetEaseURL,
			}))
		case "local", "":
		default:
			return nil, fmt.Errorf("unknown lyrics provider %q", name)
		}
	}

	return lyrics.NewManager(logger, providers...), nil
}

// spotifyConfig maps the config section onto the connector's settings
func spotifyConfig(cfg *config.Config, dataDir string) player.SpotifyConfig {
	return player.SpotifyConfig{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURL:  cfg.Spotify.RedirectURL,
		TokenPath:    filepath.Join(dataDir, "spotify_token.json"),
	}
}

// openConnector builds the player connector the config selects
func openConnector(ctx context.Context, cfg *config.Config, dataDir string, logger zerolog.Logger) (player.Connector, error) {
	conn, err := player.New(ctx, player.Options{
		Source:        cfg.Player.Source,
		MPRISService:  cfg.Player.MPRISService,
		WindowCommand: cfg.Player.WindowCommand,
		Spotify:       spotifyConfig(cfg, dataDir),
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create player connector: %w", err)
	}
	return conn, nil
}

// stackOptions tweaks buildDaemon for a single command
type stackOptions struct {
	DataDir string
	NoCache bool
}

// lyricStack is everything a running daemon needs
type lyricStack struct {
	store  *store.Store
	daemon *daemon.Daemon
}

func (s *lyricStack) Close() error {
	err := s.daemon.Shutdown()
	closeStore(s.store)
	return err
}

// buildDaemon wires the store, providers, session, connector and daemon
func buildDaemon(ctx context.Context, cfg *config.Config, opts stackOptions, logger zerolog.Logger) (*lyricStack, error) {
	dataDir, err := resolveDataDir(opts.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("data_dir", dataDir).Msg("Using data directory")

	st, err := openStore(cfg, dataDir, logger)
	if err != nil {
		return nil, err
	}

	manager, err := buildManager(cfg, st, logger)
	if err != nil {
		closeStore(st)
		return nil, err
	}

	conn, err := openConnector(ctx, cfg, dataDir, logger)
	if err != nil {
		closeStore(st)
		return nil, err
	}
	logger.Info().Str("connector", conn.Name()).Msg("Player connector ready")

	sess := session.New(session.Config{
		Source:  manager,
		Cache:   st,
		Logger:  logger,
		Timeout: cfg.Lyrics.Timeout,
		NoCache: opts.NoCache,
	})

	d, err := daemon.New(daemon.Config{
		MetadataInterval: cfg.Poll.Metadata,
		PositionInterval: cfg.Poll.Position,
		StateFile:        filepath.Join(dataDir, "state.json"),
	}, conn, sess, logger)
	if err != nil {
		sess.Close()
		if c, ok := conn.(io.Closer); ok {
			_ = c.Close()
		}
		closeStore(st)
		return nil, fmt.Errorf("failed to create daemon: %w", err)
	}

	return &lyricStack{store: st, daemon: d}, nil
}
