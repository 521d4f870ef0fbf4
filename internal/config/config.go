package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Player  PlayerConfig
	Poll    PollConfig
	Lyrics  LyricsConfig
	Cache   CacheConfig
	Spotify SpotifyConfig
	Now     NowConfig
	Discord DiscordConfig

	// Display settings for presentation front ends, kept as given
	Display map[string]string
}

// PlayerConfig selects the player connector
type PlayerConfig struct {
	// Source is one of auto, mpris, spotify, applescript, window
	Source        string
	MPRISService  string
	WindowCommand []string
}

// PollConfig holds the daemon's loop intervals
type PollConfig struct {
	Metadata time.Duration
	Position time.Duration
}

// LyricsConfig configures the provider chain
type LyricsConfig struct {
	Providers  []string
	Timeout    time.Duration
	LRCLIBURL  string
	NetEaseURL string
}

// CacheConfig locates the lyric cache
type CacheConfig struct {
	Dir string
}

// SpotifyConfig holds Spotify Web API credentials
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NowConfig formats output for the now command
type NowConfig struct {
	// Output format template
	// Default: "{{.Line}}"
	Format string

	// Width pads or truncates output, 0 disables
	OutputWidth int

	MarqueeEnabled bool
	MarqueeSpeed   int // Characters per second
	MarqueeSep     string
}

// DiscordConfig controls Rich Presence
type DiscordConfig struct {
	Enabled bool
	AppID   string
}

// DefaultWindowCommand prints the titles of Spotify windows
var DefaultWindowCommand = []string{"xdotool", "search", "--class", "spotify", "getwindowname", "%@"}

var defaultDisplay = map[string]string{
	"font_size":    "40",
	"color_text":   "#1DB954",
	"color_shadow": "#000000",
	"align":        "center",
	"opacity":      "0.9",
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := newViper()

	// Config file locations (in order of precedence)
	v.AddConfigPath(getConfigDir())
	v.AddConfigPath(".")

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	return fromViper(v), nil
}

// LoadFile reads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return fromViper(v), nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("LYRICSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("player.source", "auto")
	v.SetDefault("player.mpris_service", "")
	v.SetDefault("player.window_command", DefaultWindowCommand)

	v.SetDefault("poll.metadata_ms", 1500)
	v.SetDefault("poll.position_ms", 50)

	v.SetDefault("lyrics.providers", []string{"lrclib", "netease"})
	v.SetDefault("lyrics.timeout", "10s")
	v.SetDefault("lyrics.lrclib_url", "https://lrclib.net")
	v.SetDefault("lyrics.netease_url", "https://music.163.com")

	v.SetDefault("cache.dir", filepath.Join(GetDataDir(), "lyrics"))

	v.SetDefault("spotify.redirect_url", "http://127.0.0.1:9090/callback")

	v.SetDefault("now.format", "{{.Line}}")
	v.SetDefault("now.output_width", 0)
	v.SetDefault("now.marquee_enabled", false)
	v.SetDefault("now.marquee_speed", 8)
	v.SetDefault("now.marquee_separator", " • ")

	v.SetDefault("discord.enabled", false)
	v.SetDefault("discord.app_id", "")

	for k, val := range defaultDisplay {
		v.SetDefault("display."+k, val)
	}
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Player: PlayerConfig{
			Source:        v.GetString("player.source"),
			MPRISService:  v.GetString("player.mpris_service"),
			WindowCommand: v.GetStringSlice("player.window_command"),
		},
		Poll: PollConfig{
			Metadata: time.Duration(v.GetInt("poll.metadata_ms")) * time.Millisecond,
			Position: time.Duration(v.GetInt("poll.position_ms")) * time.Millisecond,
		},
		Lyrics: LyricsConfig{
			Providers:  v.GetStringSlice("lyrics.providers"),
			Timeout:    v.GetDuration("lyrics.timeout"),
			LRCLIBURL:  v.GetString("lyrics.lrclib_url"),
			NetEaseURL: v.GetString("lyrics.netease_url"),
		},
		Cache: CacheConfig{
			Dir: expandHome(v.GetString("cache.dir")),
		},
		Spotify: SpotifyConfig{
			ClientID:     v.GetString("spotify.client_id"),
			ClientSecret: v.GetString("spotify.client_secret"),
			RedirectURL:  v.GetString("spotify.redirect_url"),
		},
		Now: NowConfig{
			Format:         v.GetString("now.format"),
			OutputWidth:    v.GetInt("now.output_width"),
			MarqueeEnabled: v.GetBool("now.marquee_enabled"),
			MarqueeSpeed:   v.GetInt("now.marquee_speed"),
			MarqueeSep:     v.GetString("now.marquee_separator"),
		},
		Discord: DiscordConfig{
			Enabled: v.GetBool("discord.enabled"),
			AppID:   v.GetString("discord.app_id"),
		},
		Display: make(map[string]string),
	}

	// Spotify credentials fall back to the conventional variables
	if cfg.Spotify.ClientID == "" {
		cfg.Spotify.ClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	}
	if cfg.Spotify.ClientSecret == "" {
		cfg.Spotify.ClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	}

	for k := range defaultDisplay {
		cfg.Display[k] = v.GetString("display." + k)
	}
	for k, val := range v.GetStringMapString("display") {
		cfg.Display[k] = val
	}

	return cfg
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "lyricsync")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// GetDataDir returns the directory for state, tokens and cached lyrics
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "lyricsync")
}

// Save writes configuration to file
func (c *Config) Save() error {
	return c.SaveAs(filepath.Join(getConfigDir(), "config.yaml"))
}

// SaveAs writes configuration to path
func (c *Config) SaveAs(path string) error {
	v := viper.New()

	v.Set("player.source", c.Player.Source)
	v.Set("player.mpris_service", c.Player.MPRISService)
	v.Set("player.window_command", c.Player.WindowCommand)
	v.Set("poll.metadata_ms", c.Poll.Metadata.Milliseconds())
	v.Set("poll.position_ms", c.Poll.Position.Milliseconds())
	v.Set("lyrics.providers", c.Lyrics.Providers)
	v.Set("lyrics.timeout", c.Lyrics.Timeout.String())
	v.Set("lyrics.lrclib_url", c.Lyrics.LRCLIBURL)
	v.Set("lyrics.netease_url", c.Lyrics.NetEaseURL)
	v.Set("cache.dir", c.Cache.Dir)
	v.Set("spotify.client_id", c.Spotify.ClientID)
	v.Set("spotify.client_secret", c.Spotify.ClientSecret)
	v.Set("spotify.redirect_url", c.Spotify.RedirectURL)
	v.Set("now.format", c.Now.Format)
	v.Set("now.output_width", c.Now.OutputWidth)
	v.Set("now.marquee_enabled", c.Now.MarqueeEnabled)
	v.Set("now.marquee_speed", c.Now.MarqueeSpeed)
	v.Set("now.marquee_separator", c.Now.MarqueeSep)
	v.Set("discord.enabled", c.Discord.Enabled)
	v.Set("discord.app_id", c.Discord.AppID)
	for k, val := range c.Display {
		v.Set("display."+k, val)
	}

	// Write to file
	return v.WriteConfigAs(path)
}
