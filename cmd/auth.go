package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/lyricsync/internal/config"
	"github.com/jfmyers9/lyricsync/internal/player"
)

var authDataDir string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with a player service",
}

var authSpotifyCmd = &cobra.Command{
	Use:   "spotify",
	Short: "Authenticate with the Spotify Web API",
	Long: `Authenticate with Spotify so the daemon can read the exact playback
position from the Web API.

This command will guide you through the Spotify authorization:
1. You'll be prompted for your app's client ID if none is configured
2. A browser URL will be printed for you to authorize the application
3. Spotify redirects to a local callback and the token is saved to the data dir

Create an app at https://developer.spotify.com/dashboard and add
http://127.0.0.1:9090/callback as a redirect URI. The client ID and secret
may also be set with SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET, in the
environment or a .env file. Without a secret, PKCE is used.`,
	RunE: runAuthSpotify,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSpotifyCmd)

	authSpotifyCmd.Flags().StringVar(&authDataDir, "data-dir", "", "Data directory for the token (default: ~/.local/share/lyricsync)")
}

func runAuthSpotify(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Spotify Authentication")
	fmt.Println("======================")
	fmt.Println()

	saveConfig := false
	if cfg.Spotify.ClientID == "" {
		fmt.Println("You can create a client ID at: https://developer.spotify.com/dashboard")
		fmt.Print("\nEnter your Spotify client ID: ")
		clientID, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read client ID: %w", err)
		}
		cfg.Spotify.ClientID = strings.TrimSpace(clientID)
		saveConfig = true
	} else {
		fmt.Printf("Using client ID: %s\n", cfg.Spotify.ClientID)
	}

	if cfg.Spotify.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}

	dataDir, err := resolveDataDir(authDataDir)
	if err != nil {
		return err
	}
	spotify := spotifyConfig(cfg, dataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := player.SpotifyLogin(ctx, spotify, func(url string) {
		fmt.Println("\nPlease visit this URL to authorize lyricsync:")
		fmt.Printf("\n  %s\n\n", url)
		fmt.Println("Waiting for the callback...")
	}); err != nil {
		return fmt.Errorf("failed to authenticate with Spotify: %w", err)
	}

	if saveConfig {
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("✓ Client ID saved to %s/config.yaml\n", config.GetConfigDir())
	}

	fmt.Printf("\n✓ Authentication successful!\n")
	fmt.Printf("✓ Token saved to %s\n", spotify.TokenPath)
	fmt.Println("\nSet player.source to spotify, or leave it on auto, and run 'lyricsync daemon'.")

	return nil
}
