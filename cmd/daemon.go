package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/lyricsync/internal/config"
	"github.com/jfmyers9/lyricsync/internal/daemon"
	"github.com/jfmyers9/lyricsync/internal/discord"
	"github.com/jfmyers9/lyricsync/internal/tui"
)

var (
	daemonLogFile  string
	daemonLogLevel string
	daemonDataDir  string
	daemonNoCache  bool
	daemonTUI      bool
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the lyric sync daemon",
	Long: `Run the daemon that follows your music player and keeps the current lyric
line up to date.

The daemon will:
- Poll the player for the current track and playback position
- Load lyrics from the local cache, or fetch them from LRCLIB and NetEase
- Estimate the playback position between polls and advance the active line
- Write the current line to a state file for 'lyricsync now'
- Mirror the current line to Discord Rich Presence when enabled
- Handle graceful shutdown on SIGINT/SIGTERM

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for launchd or systemd).
Use --tui to show the lyrics view while the daemon runs.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	// Command-line flags
	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	daemonCmd.Flags().StringVar(&daemonDataDir, "data-dir", "", "Data directory for state, tokens and the lyric index (default: ~/.local/share/lyricsync)")
	daemonCmd.Flags().BoolVar(&daemonNoCache, "no-cache", false, "Ignore cached lyrics and always ask the providers")
	daemonCmd.Flags().BoolVar(&daemonTUI, "tui", false, "Show the terminal lyrics view")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logFile := daemonLogFile
	if daemonTUI && logFile == "" {
		// The terminal belongs to the TUI
		logFile = defaultTUILogFile(daemonDataDir)
	}
	logger := setupLogger(logFile, daemonLogLevel)

	logger.Info().
		Str("version", version).
		Msg("Starting lyricsync daemon")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := buildDaemon(ctx, cfg, stackOptions{DataDir: daemonDataDir, NoCache: daemonNoCache}, logger)
	if err != nil {
		return err
	}

	startPresence(ctx, cfg, stack.daemon, logger)

	if daemonTUI {
		err = runWithTUI(ctx, stack.daemon, logger)
	} else {
		err = stack.daemon.RunContext(ctx)
	}
	if err != nil {
		_ = stack.Close()
		return fmt.Errorf("daemon error: %w", err)
	}

	// Graceful shutdown
	if err := stack.Close(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// runWithTUI runs the daemon loop in the background and the lyrics view in
// the foreground. Quitting the view stops the daemon.
func runWithTUI(ctx context.Context, d *daemon.Daemon, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.RunContext(ctx)
	}()

	uiErr := tui.New(d).Run(ctx)
	cancel()
	runErr := <-errCh

	if uiErr != nil {
		logger.Error().Err(uiErr).Msg("TUI error")
		return fmt.Errorf("TUI error: %w", uiErr)
	}
	return runErr
}

// startPresence mirrors daemon events to Discord when enabled
func startPresence(ctx context.Context, cfg *config.Config, d *daemon.Daemon, logger zerolog.Logger) {
	if !cfg.Discord.Enabled {
		return
	}
	if cfg.Discord.AppID == "" {
		logger.Warn().Msg("Discord enabled without discord.app_id, skipping Rich Presence")
		return
	}

	events, unsubscribe := d.Subscribe()
	p := discord.New(cfg.Discord.AppID, logger)
	go func() {
		defer unsubscribe()
		p.Run(ctx, events)
	}()
	logger.Info().Msg("Discord Rich Presence enabled")
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
