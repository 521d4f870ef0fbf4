package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/lyricsync/internal/config"
)

var (
	tuiLogFile  string
	tuiLogLevel string
	tuiDataDir  string
	tuiNoCache  bool
)

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Display synced lyrics in a terminal UI",
	Long: `Display a terminal user interface with the lyrics of the current track,
highlighting the active line as the song plays.

The TUI runs its own daemon loop. It shares the cache and state file with
'lyricsync daemon', so only one of them should run at a time.

Keys:
  Up/Down     shift lyrics 0.5s earlier/later
  Left/Right  shift lyrics 0.2s earlier/later
  /           search for lyrics
  space       play/pause
  n, p        next, previous track
  q           quit

Logs go to a file since the terminal is in use.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "Log file path (default: <data-dir>/tui.log)")
	tuiCmd.Flags().StringVar(&tuiLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	tuiCmd.Flags().StringVar(&tuiDataDir, "data-dir", "", "Data directory (default: ~/.local/share/lyricsync)")
	tuiCmd.Flags().BoolVar(&tuiNoCache, "no-cache", false, "Ignore cached lyrics and always ask the providers")
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logFile := tuiLogFile
	if logFile == "" {
		logFile = defaultTUILogFile(tuiDataDir)
	}
	logger := setupLogger(logFile, tuiLogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := buildDaemon(ctx, cfg, stackOptions{DataDir: tuiDataDir, NoCache: tuiNoCache}, logger)
	if err != nil {
		return err
	}

	startPresence(ctx, cfg, stack.daemon, logger)

	runErr := runWithTUI(ctx, stack.daemon, logger)
	if err := stack.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// defaultTUILogFile places the log next to the state file
func defaultTUILogFile(dataDir string) string {
	if dataDir == "" {
		dataDir = config.GetDataDir()
	}
	_ = os.MkdirAll(dataDir, 0755)
	return filepath.Join(dataDir, "tui.log")
}
