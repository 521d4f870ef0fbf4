package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/lyricsync/internal/store"
)

var (
	cacheDataDir string
	cacheLimit   int
	cacheKeep    bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the lyric cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached lyrics, most recently used first",
	Args:  cobra.NoArgs,
	RunE: withIndex(func(ctx context.Context, cmd *cobra.Command, st *store.Store, args []string) error {
		entries, err := st.Index().List(ctx, cacheLimit)
		if err != nil {
			return err
		}
		printEntries(cmd.OutOrStdout(), entries)
		return nil
	}),
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and location",
	Args:  cobra.NoArgs,
	RunE: withIndex(func(ctx context.Context, cmd *cobra.Command, st *store.Store, args []string) error {
		count, err := st.Index().Count(ctx)
		if err != nil {
			return err
		}
		assoc, err := st.Associations()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Directory:     %s\n", st.Dir())
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed:       %d\n", count)
		fmt.Fprintf(cmd.OutOrStdout(), "Associations:  %d\n", len(assoc))
		return nil
	}),
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop index entries whose lyric file is gone",
	Args:  cobra.NoArgs,
	RunE: withIndex(func(ctx context.Context, cmd *cobra.Command, st *store.Store, args []string) error {
		n, err := st.Index().Prune(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d entries\n", n)
		return nil
	}),
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete TITLE ARTIST",
	Short: "Remove a track's cached lyrics",
	Args:  cobra.ExactArgs(2),
	RunE: withIndex(func(ctx context.Context, cmd *cobra.Command, st *store.Store, args []string) error {
		path, err := st.Index().Delete(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if !cacheKeep {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", path)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd, cacheStatsCmd, cachePruneCmd, cacheDeleteCmd)

	cacheCmd.PersistentFlags().StringVar(&cacheDataDir, "data-dir", "", "Data directory holding the index (default: ~/.local/share/lyricsync)")
	cacheListCmd.Flags().IntVarP(&cacheLimit, "limit", "n", 0, "Show at most this many entries (0=all)")
	cacheDeleteCmd.Flags().BoolVar(&cacheKeep, "keep-file", false, "Only drop the index entry")
}

// withIndex opens the store and its index around fn
func withIndex(fn func(ctx context.Context, cmd *cobra.Command, st *store.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dataDir, err := resolveDataDir(cacheDataDir)
		if err != nil {
			return err
		}

		st, err := openStore(cfg, dataDir, setupLogger("", "warn"))
		if err != nil {
			return err
		}
		defer closeStore(st)

		if st.Index() == nil {
			return fmt.Errorf("lyric index is not available")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return fn(ctx, cmd, st, args)
	}
}

// printEntries writes one aligned row per index entry
func printEntries(w io.Writer, entries []store.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ARTIST\tTITLE\tOFFSET\tUPDATED\tPATH")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Artist, e.Title, formatOffsetMs(e.OffsetMs), e.UpdatedAt.Local().Format("2006-01-02 15:04"), e.Path)
	}
	_ = tw.Flush()
}

// formatOffsetMs renders a sync offset as signed seconds
func formatOffsetMs(ms int64) string {
	if ms == 0 {
		return "0"
	}
	return fmt.Sprintf("%+.1fs", float64(ms)/1000)
}
