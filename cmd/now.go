/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/lyricsync/internal/config"
	"github.com/jfmyers9/lyricsync/internal/daemon"
	"github.com/jfmyers9/lyricsync/internal/player"
)

// nowStaleAfter is how old the state file may be before the daemon is
// assumed to be gone
const nowStaleAfter = 10 * time.Second

// errNotPlaying makes the command exit 1 without printing anything
var errNotPlaying = errors.New("nothing playing")

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Print the current lyric line",
	Long: `Print the active lyric line of the playing track, as last written by the
daemon to its state file.

The output format can be customized in ~/.config/lyricsync/config.yaml
using a Go template. Available fields: .Line, .Next, .Title, .Artist, .Album,
.PlayState, .Lyrics, .Tier, .OffsetMs, .PositionMs, .DurationMs

Exit codes:
  0 - A track is playing
  1 - Nothing playing, paused, or the daemon is not running`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)

	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	nowCmd.Flags().Bool("marquee", false, "Enable marquee scrolling for long text (overrides config)")
	nowCmd.Flags().String("data-dir", "", "Data directory holding state.json (default: ~/.local/share/lyricsync)")
}

func runNow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if formatFlag, _ := cmd.Flags().GetString("format"); formatFlag != "" {
		cfg.Now.Format = formatFlag
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = config.GetDataDir()
	}

	np, err := daemon.ReadState(filepath.Join(dataDir, "state.json"))
	if err != nil {
		os.Exit(1)
	}
	if playing(np, time.Now()) != nil {
		os.Exit(1)
	}

	output, err := formatNowPlaying(np, cfg.Now.Format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.Now.OutputWidth
	}

	marquee := cfg.Now.MarqueeEnabled
	if cmd.Flags().Changed("marquee") {
		marquee, _ = cmd.Flags().GetBool("marquee")
	}

	if width > 0 {
		if marquee {
			output = marqueeText(output, width, cfg.Now.MarqueeSpeed, cfg.Now.MarqueeSep, time.Now().Unix())
		} else {
			output = padToWidth(output, width)
		}
	}

	fmt.Println(output)
	return nil
}

// playing returns errNotPlaying unless np describes a live, playing track
func playing(np daemon.NowPlaying, now time.Time) error {
	if np.PlayState != player.StatePlaying.String() || np.Title == "" {
		return errNotPlaying
	}
	if now.Sub(np.UpdatedAt) > nowStaleAfter {
		return errNotPlaying
	}
	return nil
}

// formatNowPlaying applies the template to the state
func formatNowPlaying(np daemon.NowPlaying, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, np); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, so wide runes count twice.
// Longer text is cut with a "..." suffix, shorter text is padded with spaces.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	const ellipsis = "..."
	if runewidth.StringWidth(text) > width {
		if width <= len(ellipsis) {
			return ellipsis[:width]
		}
		text = runewidth.Truncate(text, width-len(ellipsis), "") + ellipsis
	}

	// Truncate can stop short of a wide rune, so pad what is left
	if w := runewidth.StringWidth(text); w < width {
		text += strings.Repeat(" ", width-w)
	}
	return text
}

// marqueeText scrolls text that does not fit in width. The window start is
// derived from the unix time, unixSec*speed columns into "text+sep+text",
// so each status bar refresh advances it without keeping state.
// Text that fits is padded and returned as is.
func marqueeText(text string, width int, speed int, separator string, unixSec int64) string {
	if width <= 0 {
		return text
	}
	if runewidth.StringWidth(text) <= width {
		return padToWidth(text, width)
	}

	runes := []rune(text + separator + text)
	total := len(runes)
	position := int(unixSec*int64(speed)) % total
	if position < 0 {
		position += total
	}

	var b strings.Builder
	used := 0
	for i := 0; i < total; i++ {
		r := runes[(position+i)%total]
		rw := runewidth.RuneWidth(r)
		if used+rw > width {
			break
		}
		b.WriteRune(r)
		used += rw
	}
	if used < width {
		b.WriteString(strings.Repeat(" ", width-used))
	}
	return b.String()
}
