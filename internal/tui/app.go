package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jfmyers9/lyricsync/internal/daemon"
	"github.com/jfmyers9/lyricsync/internal/lrc"
	"github.com/jfmyers9/lyricsync/internal/lyrics"
	"github.com/jfmyers9/lyricsync/internal/player"
	"github.com/jfmyers9/lyricsync/internal/session"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"
)

const (
	pageMain   = "main"
	pageSearch = "search"
)

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to refresh the display
	Context     int           // Lines shown above and below the active line
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 100 * time.Millisecond,
		Context:     4,
	}
}

// Backend is the running daemon as seen by the display
type Backend interface {
	Subscribe() (<-chan daemon.Event, func())
	View(ctx context.Context) (daemon.View, error)
	AdjustSync(ctx context.Context, deltaMs int64) error
	Search(ctx context.Context, query string) error
	Download(ctx context.Context, id string) error
	Controller() (player.Controller, error)
}

// App is the TUI application for displaying synced lyrics
type App struct {
	app     *tview.Application
	pages   *tview.Pages
	header  *tview.TextView
	lyrics  *tview.TextView
	footer  *tview.TextView
	status  *tview.TextView
	query   *tview.InputField
	results *tview.List

	config  Config
	backend Backend

	// mu guards view and message, written by the event consumer and read
	// by the refresh ticker.
	mu      sync.Mutex
	view    daemon.View
	message string

	// Last-rendered content for change detection
	lastHeader string
	lastLyrics string
	lastFooter string

	cancelFunc context.CancelFunc
}

// New creates a new TUI application with default config
func New(backend Backend) *App {
	return NewWithConfig(backend, DefaultConfig())
}

// NewWithConfig creates a new TUI application with the given config
func NewWithConfig(backend Backend, cfg Config) *App {
	a := &App{
		app:     tview.NewApplication(),
		config:  cfg,
		backend: backend,
		view:    daemon.View{Index: lrc.None},
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.header.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	a.lyrics = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.lyrics.SetBorder(true).
		SetTitle(" Lyrics ").
		SetTitleAlign(tview.AlignLeft)

	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.footer.SetBorder(true)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  space:play/pause  n:next  p:prev  ↑↓:±500ms  ←→:±200ms  /:search[-]")

	main := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, 5, 1, false).
		AddItem(a.lyrics, 0, 1, false).
		AddItem(a.footer, 3, 1, false).
		AddItem(a.status, 1, 1, false)

	a.query = tview.NewInputField().
		SetLabel("Search: ").
		SetFieldWidth(0)
	a.query.SetDoneFunc(a.handleQueryDone)

	a.results = tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)
	a.results.SetDoneFunc(a.closeSearch)

	search := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.query, 1, 1, true).
		AddItem(a.results, 0, 1, false)
	search.SetBorder(true).
		SetTitle(" Find lyrics (enter:search  tab:results  esc:close) ").
		SetTitleAlign(tview.AlignLeft)

	a.pages = tview.NewPages().
		AddPage(pageMain, main, true, true).
		AddPage(pageSearch, centered(search, 70, 20), true, false)

	// Handle keyboard input
	a.app.SetInputCapture(a.handleKeyEvent)

	a.app.SetRoot(a.pages, true)
}

// centered wraps p in a fixed size box in the middle of the screen
func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

// syncDelta maps arrow keys to sync adjustments in milliseconds
func syncDelta(key tcell.Key) (int64, bool) {
	switch key {
	case tcell.KeyUp:
		return -500, true
	case tcell.KeyDown:
		return 500, true
	case tcell.KeyLeft:
		return -200, true
	case tcell.KeyRight:
		return 200, true
	}
	return 0, false
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	if name, _ := a.pages.GetFrontPage(); name == pageSearch {
		if event.Key() == tcell.KeyTab {
			if a.query.HasFocus() {
				a.app.SetFocus(a.results)
			} else {
				a.app.SetFocus(a.query)
			}
			return nil
		}
		return event
	}

	if delta, ok := syncDelta(event.Key()); ok {
		a.withTimeout(func(ctx context.Context) error {
			return a.backend.AdjustSync(ctx, delta)
		})
		return nil
	}

	switch event.Rune() {
	case 'q', 'Q':
		a.Stop()
		return nil
	case '/':
		a.openSearch()
		return nil
	case ' ':
		a.control(player.Controller.PlayPause)
		return nil
	case 'n', 'N':
		a.control(player.Controller.Next)
		return nil
	case 'p', 'P':
		a.control(player.Controller.Previous)
		return nil
	}
	return event
}

// control runs a transport command if the player supports it
func (a *App) control(fn func(player.Controller, context.Context) error) {
	c, err := a.backend.Controller()
	if err != nil {
		a.setMessage(err.Error())
		return
	}
	a.withTimeout(func(ctx context.Context) error { return fn(c, ctx) })
}

func (a *App) withTimeout(fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		a.setMessage(err.Error())
	}
}

func (a *App) setMessage(msg string) {
	a.mu.Lock()
	a.message = msg
	a.mu.Unlock()
}

func (a *App) openSearch() {
	a.mu.Lock()
	t := a.view.Track
	a.mu.Unlock()

	if a.query.GetText() == "" && t.Title != "" {
		a.query.SetText(strings.TrimSpace(t.Artist + " " + t.Title))
	}
	a.pages.ShowPage(pageSearch)
	a.app.SetFocus(a.query)
}

func (a *App) closeSearch() {
	a.pages.HidePage(pageSearch)
	a.app.SetFocus(a.lyrics)
}

// handleQueryDone starts a search on enter
func (a *App) handleQueryDone(key tcell.Key) {
	switch key {
	case tcell.KeyEscape:
		a.closeSearch()
	case tcell.KeyEnter:
		q := strings.TrimSpace(a.query.GetText())
		if q == "" {
			return
		}
		a.results.Clear()
		a.results.AddItem("Searching...", "", 0, nil)
		a.withTimeout(func(ctx context.Context) error {
			return a.backend.Search(ctx, q)
		})
	}
}

// showResults fills the result list. Must run on the UI goroutine.
func (a *App) showResults(results []lyrics.Result) {
	a.results.Clear()
	if len(results) == 0 {
		a.results.AddItem("No synced lyrics found", "", 0, nil)
		return
	}
	for _, r := range results {
		id := r.ID
		a.results.AddItem(tview.Escape(r.Label()), "", 0, func() {
			a.withTimeout(func(ctx context.Context) error {
				return a.backend.Download(ctx, id)
			})
			a.closeSearch()
		})
	}
	a.app.SetFocus(a.results)
}

// Run starts the TUI and blocks until it exits
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)

	events, unsubscribe := a.backend.Subscribe()
	defer unsubscribe()

	if v, err := a.backend.View(ctx); err == nil {
		a.mu.Lock()
		a.view = v
		a.mu.Unlock()
	}

	go a.handleEvents(ctx, events)

	// Run application
	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// handleEvents stores daemon events and refreshes the display.
// The ticker is the only source of redraws.
func (a *App) handleEvents(ctx context.Context, events <-chan daemon.Event) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				a.mu.Lock()
				a.view = ev.View
				if ev.Kind == daemon.EventTrack || ev.Kind == daemon.EventLyrics {
					a.message = ""
				}
				a.mu.Unlock()

				if ev.Kind == daemon.EventResults {
					results := ev.Results
					a.app.QueueUpdateDraw(func() { a.showResults(results) })
				}
			}
		}
	}()

	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = 100 * time.Millisecond
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.refresh()
		}
	}
}

// refresh updates all UI components
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		v := a.view
		msg := a.message
		a.mu.Unlock()

		_, _, width, height := a.lyrics.GetInnerRect()

		if text := renderHeader(v); text != a.lastHeader {
			a.lastHeader = text
			a.header.SetText(text)
		}
		if text := renderLyrics(v, a.config.Context, height, width); text != a.lastLyrics {
			a.lastLyrics = text
			a.lyrics.SetText(text)
		}
		if text := renderFooter(v, msg); text != a.lastFooter {
			a.lastFooter = text
			a.footer.SetText(text)
		}
	})
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

func renderHeader(v daemon.View) string {
	if v.Track.Title == "" {
		return "\n[gray]No track playing[-]"
	}

	stateIcon := "[green]▶[-]" // Play triangle
	switch v.PlayState {
	case player.StatePaused:
		stateIcon = "[yellow]⏸[-]"
	case player.StateStopped, player.StateError:
		stateIcon = "[gray]■[-]"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s [white::b]%s[-:-:-]\n", stateIcon, tview.Escape(v.Track.Title)))
	sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(v.Track.Artist)))
	sb.WriteString(fmt.Sprintf("[gray]%s[-]", tview.Escape(v.Track.Album)))
	return sb.String()
}

// renderLyrics shows the active line with up to around lines on each side,
// vertically centered in height rows and truncated to width columns.
func renderLyrics(v daemon.View, around, height, width int) string {
	switch v.State {
	case session.StateIdle:
		return "\n[gray]Waiting for a track[-]"
	case session.StateLoading:
		return "\n[gray]Loading lyrics...[-]"
	case session.StateNoLyricsFound:
		return "\n[gray]No synced lyrics found. Press / to search.[-]"
	}
	if len(v.Lines) == 0 {
		return ""
	}

	if height > 0 && 2*around+1 > height {
		around = (height - 1) / 2
	}
	if around < 0 {
		around = 0
	}

	var rows []string
	for rel := -around; rel <= around; rel++ {
		i := v.Index + rel
		if i < 0 || i >= len(v.Lines) {
			rows = append(rows, "")
			continue
		}
		text := v.Lines[i]
		if width > 0 {
			text = runewidth.Truncate(text, width, "…")
		}
		text = tview.Escape(text)
		if i == v.Index {
			text = "[green::b]" + text + "[-:-:-]"
		} else {
			text = "[gray]" + text + "[-]"
		}
		rows = append(rows, text)
	}

	pad := 0
	if height > len(rows) {
		pad = (height - len(rows)) / 2
	}
	return strings.Repeat("\n", pad) + strings.Join(rows, "\n")
}

func renderFooter(v daemon.View, msg string) string {
	if msg != "" {
		return "[red]" + tview.Escape(msg) + "[-]"
	}
	if v.Track.Title == "" {
		return ""
	}

	parts := []string{formatDuration(time.Duration(v.PositionMs) * time.Millisecond)}
	if v.Track.DurationMs > 0 {
		parts[0] += " / " + formatDuration(time.Duration(v.Track.DurationMs)*time.Millisecond)
	}
	parts = append(parts, "offset "+formatOffset(v.OffsetMs))
	if v.Origin != "" {
		parts = append(parts, v.Origin)
	}
	parts = append(parts, "clock "+v.Tier.String())
	return "[gray]" + strings.Join(parts, "  │  ") + "[-]"
}

// formatOffset renders a signed sync offset, e.g. "+0.5s"
func formatOffset(ms int64) string {
	sign := "+"
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	return fmt.Sprintf("%s%d.%01ds", sign, ms/1000, (ms%1000)/100)
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
