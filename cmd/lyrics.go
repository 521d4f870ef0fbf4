package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/lyricsync/internal/lrc"
	"github.com/jfmyers9/lyricsync/internal/lyrics"
	"github.com/jfmyers9/lyricsync/internal/store"
)

var (
	lyricsLogLevel string
	lyricsDataDir  string
	lyricsTimeout  time.Duration

	parseAt        time.Duration
	parseNormalize bool

	fetchAlbum    string
	fetchDuration time.Duration
	fetchNoCache  bool
	fetchSave     bool

	downloadTitle  string
	downloadArtist string
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "Parse, fetch and search lyrics without the daemon",
}

var lyricsParseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Parse an LRC file and preview line timing",
	Long: `Parse an LRC file and print its tags and timed lines.

With --at, the line active at that playback position is marked, the same
way the daemon resolves it. --normalize prints the file as the cache writes
it instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runLyricsParse,
}

var lyricsFetchCmd = &cobra.Command{
	Use:   "fetch TITLE ARTIST",
	Short: "Look up synced lyrics for a track",
	Long: `Look up synced lyrics the way the daemon does: the local cache first,
then each configured provider in order.`,
	Args: cobra.ExactArgs(2),
	RunE: runLyricsFetch,
}

var lyricsSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search every provider for lyrics",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLyricsSearch,
}

var lyricsDownloadCmd = &cobra.Command{
	Use:   "download ID",
	Short: "Download lyrics for a search result ID",
	Long: `Download the lyrics of a result printed by 'lyricsync lyrics search'.

With --title and --artist the lyrics are saved to the cache and associated
with that track.`,
	Args: cobra.ExactArgs(1),
	RunE: runLyricsDownload,
}

func init() {
	rootCmd.AddCommand(lyricsCmd)
	lyricsCmd.AddCommand(lyricsParseCmd, lyricsFetchCmd, lyricsSearchCmd, lyricsDownloadCmd)

	lyricsCmd.PersistentFlags().StringVar(&lyricsLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	lyricsCmd.PersistentFlags().StringVar(&lyricsDataDir, "data-dir", "", "Data directory (default: ~/.local/share/lyricsync)")
	lyricsCmd.PersistentFlags().DurationVar(&lyricsTimeout, "timeout", 15*time.Second, "Request timeout")

	lyricsParseCmd.Flags().DurationVar(&parseAt, "at", 0, "Mark the line active at this position (e.g. 1m23.5s)")
	lyricsParseCmd.Flags().BoolVar(&parseNormalize, "normalize", false, "Print the normalized LRC text")

	lyricsFetchCmd.Flags().StringVar(&fetchAlbum, "album", "", "Album name, improves matching")
	lyricsFetchCmd.Flags().DurationVar(&fetchDuration, "duration", 0, "Track duration, improves matching")
	lyricsFetchCmd.Flags().BoolVar(&fetchNoCache, "no-cache", false, "Skip the local cache")
	lyricsFetchCmd.Flags().BoolVar(&fetchSave, "save", false, "Save fetched lyrics to the cache")

	lyricsDownloadCmd.Flags().StringVar(&downloadTitle, "title", "", "Save to the cache for this title")
	lyricsDownloadCmd.Flags().StringVar(&downloadArtist, "artist", "", "Save to the cache for this artist")
}

func runLyricsParse(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	doc := lrc.Parse(string(data))
	if parseNormalize {
		fmt.Fprintln(cmd.OutOrStdout(), lrc.Format(doc))
		return nil
	}

	atMs := int64(-1)
	if cmd.Flags().Changed("at") {
		atMs = parseAt.Milliseconds()
	}
	printDocument(cmd.OutOrStdout(), doc, atMs)
	if doc.Empty() {
		return fmt.Errorf("no timed lines in %s", args[0])
	}
	return nil
}

// printDocument lists tags and lines. When atMs is not negative the active
// line is marked with > and the next one with +.
func printDocument(w io.Writer, doc *lrc.Document, atMs int64) {
	for _, key := range doc.Attrs.Keys() {
		value, _ := doc.Attrs.Get(key)
		fmt.Fprintf(w, "[%s] %s\n", key, value)
	}
	fmt.Fprintf(w, "%d timed lines\n", len(doc.Lines))

	active, next := lrc.None, lrc.None
	if atMs >= 0 {
		active, next = lrc.Locate(doc.Lines, atMs)
	}

	for i, line := range doc.Lines {
		marker := " "
		switch i {
		case active:
			marker = ">"
		case next:
			marker = "+"
		}
		fmt.Fprintf(w, "%s %s %s\n", marker, lrc.FormatTimestamp(line.TimestampMs), line.Text)
	}
}

// openLyrics opens the cache and provider chain for one-off commands
func openLyrics() (*store.Store, *lyrics.Manager, zerolog.Logger, error) {
	logger := setupLogger("", lyricsLogLevel)

	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, logger, err
	}

	dataDir, err := resolveDataDir(lyricsDataDir)
	if err != nil {
		return nil, nil, logger, err
	}

	st, err := openStore(cfg, dataDir, logger)
	if err != nil {
		return nil, nil, logger, err
	}

	manager, err := buildManager(cfg, st, logger)
	if err != nil {
		closeStore(st)
		return nil, nil, logger, err
	}
	return st, manager, logger, nil
}

func runLyricsFetch(cmd *cobra.Command, args []string) error {
	st, manager, logger, err := openLyrics()
	if err != nil {
		return err
	}
	defer closeStore(st)

	title, artist := args[0], args[1]

	if !fetchNoCache {
		content, ok, err := st.Load(title, artist)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to read cache")
		}
		if ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "Found in cache")
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), lyricsTimeout)
	defer cancel()

	content, err := manager.Fetch(ctx, lyrics.Query{
		Title:      title,
		Artist:     artist,
		Album:      fetchAlbum,
		DurationMs: fetchDuration.Milliseconds(),
	})
	if errors.Is(err, lyrics.ErrNotFound) {
		return fmt.Errorf("no synced lyrics found for %q by %q", title, artist)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch lyrics: %w", err)
	}

	if fetchSave {
		path, err := st.Save(title, artist, content)
		if err != nil {
			return fmt.Errorf("failed to save lyrics: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved to %s\n", path)
	}

	fmt.Fprint(cmd.OutOrStdout(), content)
	return nil
}

func runLyricsSearch(cmd *cobra.Command, args []string) error {
	st, manager, _, err := openLyrics()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx, cancel := context.WithTimeout(context.Background(), lyricsTimeout)
	defer cancel()

	query := args[0]
	for _, a := range args[1:] {
		query += " " + a
	}

	results, err := manager.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to search lyrics: %w", err)
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No results")
		return nil
	}

	printResults(cmd.OutOrStdout(), results)
	return nil
}

// printResults writes one aligned row per result
func printResults(w io.Writer, results []lyrics.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tARTIST\tTITLE\tALBUM")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Artist, r.Title, r.Album)
	}
	_ = tw.Flush()
}

func runLyricsDownload(cmd *cobra.Command, args []string) error {
	if (downloadTitle == "") != (downloadArtist == "") {
		return fmt.Errorf("--title and --artist must be given together")
	}

	st, manager, _, err := openLyrics()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx, cancel := context.WithTimeout(context.Background(), lyricsTimeout)
	defer cancel()

	content, err := manager.Download(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to download lyrics: %w", err)
	}

	if downloadTitle != "" {
		path, err := st.Save(downloadTitle, downloadArtist, content)
		if err != nil {
			return fmt.Errorf("failed to save lyrics: %w", err)
		}
		if err := st.SaveAssociation(downloadTitle, downloadArtist, path); err != nil {
			return fmt.Errorf("failed to save association: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved to %s\n", path)
	}

	fmt.Fprint(cmd.OutOrStdout(), content)
	return nil
}
