package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// DefaultSpotifyRedirectURL must be registered in the Spotify dashboard
const DefaultSpotifyRedirectURL = "http://127.0.0.1:9090/callback"

// ErrNotAuthenticated is returned when no Spotify token has been saved
var ErrNotAuthenticated = errors.New("spotify: not authenticated, run 'lyricsync auth spotify'")

// SpotifyConfig holds Spotify Web API credentials
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string // Optional, PKCE is used without it
	RedirectURL  string // Optional, defaults to DefaultSpotifyRedirectURL
	TokenPath    string // Where the OAuth token is cached
}

// Authenticator builds the OAuth client for this config
func (c SpotifyConfig) Authenticator() *spotifyauth.Authenticator {
	redirect := c.RedirectURL
	if redirect == "" {
		redirect = DefaultSpotifyRedirectURL
	}
	opts := []spotifyauth.AuthenticatorOption{
		spotifyauth.WithRedirectURL(redirect),
		spotifyauth.WithScopes(spotifyauth.ScopeUserReadPlaybackState, spotifyauth.ScopeUserReadCurrentlyPlaying),
		spotifyauth.WithClientID(c.ClientID),
	}
	if c.ClientSecret != "" {
		opts = append(opts, spotifyauth.WithClientSecret(c.ClientSecret))
	}
	return spotifyauth.New(opts...)
}

type currentlyPlayingClient interface {
	PlayerCurrentlyPlaying(ctx context.Context, opts ...spotify.RequestOption) (*spotify.CurrentlyPlaying, error)
	Token() (*oauth2.Token, error)
}

// Spotify reads the Spotify Web API. Progress is exact.
type Spotify struct {
	client    currentlyPlayingClient
	tokenPath string

	mu        sync.Mutex
	lastToken string
}

// NewSpotify loads the cached token and creates the connector. Refreshed
// tokens are written back to the token file.
func NewSpotify(ctx context.Context, cfg SpotifyConfig) (*Spotify, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("spotify: client id required")
	}

	tok, err := LoadToken(cfg.TokenPath)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.Authenticator().Client(ctx, tok)
	return &Spotify{
		client:    spotify.New(httpClient),
		tokenPath: cfg.TokenPath,
		lastToken: tok.AccessToken,
	}, nil
}

// Name implements Connector
func (s *Spotify) Name() string {
	return "spotify"
}

// GetState implements Connector
func (s *Spotify) GetState(ctx context.Context) (Snapshot, error) {
	cp, err := s.client.PlayerCurrentlyPlaying(ctx)
	if err != nil {
		return Snapshot{State: StateError}, fmt.Errorf("failed to get currently playing: %w", err)
	}
	s.persistRefreshedToken()
	return snapshotFromSpotify(cp), nil
}

// snapshotFromSpotify converts a currently-playing response. A nil
// response or missing item means nothing is playing.
func snapshotFromSpotify(cp *spotify.CurrentlyPlaying) Snapshot {
	if cp == nil || cp.Item == nil || cp.Item.Name == "" {
		return Snapshot{State: StateStopped}
	}

	names := make([]string, 0, len(cp.Item.Artists))
	for _, a := range cp.Item.Artists {
		names = append(names, a.Name)
	}

	state := StatePaused
	if cp.Playing {
		state = StatePlaying
	}

	return Snapshot{
		State: state,
		Track: Track{
			Title:    cp.Item.Name,
			Artist:   strings.Join(names, ", "),
			Album:    cp.Item.Album.Name,
			Duration: time.Duration(int64(cp.Item.Duration)) * time.Millisecond,
		},
		Position:    time.Duration(int64(cp.Progress)) * time.Millisecond,
		HasPosition: true,
	}
}

func (s *Spotify) persistRefreshedToken() {
	if s.tokenPath == "" {
		return
	}
	tok, err := s.client.Token()
	if err != nil || tok == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.lastToken {
		return
	}
	if err := SaveToken(s.tokenPath, tok); err == nil {
		s.lastToken = tok.AccessToken
	}
}

// LoadToken reads a cached OAuth token
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}
	return &tok, nil
}

// SaveToken writes an OAuth token with owner-only permissions
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename token file: %w", err)
	}
	return nil
}
