package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/lyricsync/internal/player"
)

var (
	playerDataDir string
	playerWatch   bool
)

// playerCmd represents the player command
var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "Show what the player connector sees",
	Long: `Query the configured player connector once and print the track, play state
and position it reports. Useful for checking MPRIS, Spotify or window-title
setup before running the daemon.

With --watch, the player is polled every second until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runPlayer,
}

var playPauseCmd = &cobra.Command{
	Use:   "playpause",
	Short: "Toggle play/pause",
	Args:  cobra.NoArgs,
	RunE: withController("playpause", func(ctx context.Context, c player.Controller) error {
		return c.PlayPause(ctx)
	}),
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to the next track",
	Args:  cobra.NoArgs,
	RunE: withController("skip to next track", func(ctx context.Context, c player.Controller) error {
		return c.Next(ctx)
	}),
}

var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Go to the previous track",
	Args:  cobra.NoArgs,
	RunE: withController("go to previous track", func(ctx context.Context, c player.Controller) error {
		return c.Previous(ctx)
	}),
}

func init() {
	rootCmd.AddCommand(playerCmd)
	playerCmd.AddCommand(playPauseCmd, nextCmd, prevCmd)

	playerCmd.PersistentFlags().StringVar(&playerDataDir, "data-dir", "", "Data directory holding the Spotify token (default: ~/.local/share/lyricsync)")
	playerCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	playerCmd.Flags().BoolVar(&playerWatch, "watch", false, "Keep polling until interrupted")
}

// connect opens the configured connector for a one-off command
func connect(ctx context.Context, cmd *cobra.Command) (player.Connector, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	dataDir, err := resolveDataDir(playerDataDir)
	if err != nil {
		return nil, nil, err
	}

	level, _ := cmd.Flags().GetString("log-level")
	conn, err := openConnector(ctx, cfg, dataDir, setupLogger("", level))
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if c, ok := conn.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return conn, closeFn, nil
}

func runPlayer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, closeFn, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Fprintf(cmd.OutOrStdout(), "Connector: %s\n", conn.Name())

	for {
		pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		snap, err := conn.GetState(pollCtx)
		cancel()
		if err != nil && !playerWatch {
			return fmt.Errorf("failed to query player: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), describeSnapshot(snap, err))

		if !playerWatch {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

// describeSnapshot renders one line per reading
func describeSnapshot(snap player.Snapshot, err error) string {
	if err != nil {
		return fmt.Sprintf("[%s] %v", player.StateError, err)
	}
	if snap.Track.Title == "" {
		return fmt.Sprintf("[%s]", snap.State)
	}

	track := snap.Track.Title
	if snap.Track.Artist != "" {
		track = snap.Track.Artist + " - " + track
	}
	if snap.Track.Album != "" {
		track += " (" + snap.Track.Album + ")"
	}

	position := "position unknown"
	if snap.HasPosition {
		position = formatClock(snap.Position)
		if snap.Track.Duration > 0 {
			position += " / " + formatClock(snap.Track.Duration)
		}
	}
	return fmt.Sprintf("[%s] %s, %s", snap.State, track, position)
}

// formatClock formats a duration as MM:SS
func formatClock(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// withController runs fn against the connector's transport controls
func withController(action string, fn func(context.Context, player.Controller) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, closeFn, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		c, ok := conn.(player.Controller)
		if !ok {
			return fmt.Errorf("%s player does not support playback control", conn.Name())
		}
		if err := fn(ctx, c); err != nil {
			return fmt.Errorf("failed to %s: %w", action, err)
		}
		return nil
	}
}
