package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jfmyers9/lyricsync/internal/clock"
	"github.com/jfmyers9/lyricsync/internal/lyrics"
	"github.com/jfmyers9/lyricsync/internal/player"
	"github.com/jfmyers9/lyricsync/internal/session"
	"github.com/rs/zerolog"
)

// ErrNotRunning is returned by requests made after the loop has exited
var ErrNotRunning = errors.New("daemon not running")

// ErrNoController is returned when the connector cannot control playback
var ErrNoController = errors.New("player does not support playback control")

// Config holds daemon configuration
type Config struct {
	MetadataInterval time.Duration // How often to poll the player
	PositionInterval time.Duration // How often to advance the active line
	StateFile        string        // Path to the now-playing state file
}

const (
	defaultMetadataInterval = 1500 * time.Millisecond
	defaultPositionInterval = 50 * time.Millisecond
)

// Daemon owns the lyric session and playback clock. Poll results, background
// completions and requests from other goroutines are all handled on the
// single goroutine running the loop.
type Daemon struct {
	config    Config
	connector player.Connector
	session   *session.Session
	clock     *clock.Estimator
	state     *State
	poller    *Poller
	logger    zerolog.Logger

	commands chan func()
	done     chan struct{}

	playState player.PlayState

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSub     int
}

// New creates a new Daemon instance
func New(cfg Config, connector player.Connector, sess *session.Session, logger zerolog.Logger) (*Daemon, error) {
	if cfg.MetadataInterval <= 0 {
		cfg.MetadataInterval = defaultMetadataInterval
	}
	if cfg.PositionInterval <= 0 {
		cfg.PositionInterval = defaultPositionInterval
	}

	state, err := NewState(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create state: %w", err)
	}

	return &Daemon{
		config:      cfg,
		connector:   connector,
		session:     sess,
		clock:       clock.New(nil),
		state:       state,
		poller:      NewPoller(connector, cfg.MetadataInterval, logger),
		logger:      logger.With().Str("component", "daemon").Logger(),
		commands:    make(chan func()),
		done:        make(chan struct{}),
		subscribers: make(map[int]chan Event),
	}, nil
}

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	return d.RunContext(ctx)
}

// RunContext runs the daemon until ctx is cancelled
func (d *Daemon) RunContext(ctx context.Context) error {
	if err := d.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// run is the main daemon loop
func (d *Daemon) run(ctx context.Context) error {
	d.logger.Info().Str("connector", d.connector.Name()).Msg("Starting daemon")
	defer close(d.done)

	pollCtx, cancelPoll := context.WithCancel(ctx)
	var wg sync.WaitGroup
	updates := make(chan SnapshotUpdate, 10)

	// Start poller
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.poller.Run(pollCtx, updates); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error().Err(err).Msg("Poller error")
		}
	}()

	ticker := time.NewTicker(d.config.PositionInterval)
	defer ticker.Stop()

	defer func() {
		cancelPoll()
		wg.Wait()
		d.logger.Info().Msg("Daemon stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			d.handleSnapshot(update)
		case c := <-d.session.Completions():
			d.handleCompletion(c)
		case fn := <-d.commands:
			fn()
		case <-ticker.C:
			d.tick()
		}
	}
}

// handleSnapshot feeds one player reading into the clock and session
func (d *Daemon) handleSnapshot(u SnapshotUpdate) {
	snap := u.Snapshot
	prev := d.playState
	d.playState = snap.State

	if snap.State == player.StateStopped || snap.State == player.StateError {
		d.clock.Halt()
		if prev != snap.State {
			d.logger.Info().Str("state", snap.State.String()).Msg("Playback halted")
			d.publish(EventPlayback, true)
		}
		return
	}

	playing := snap.State == player.StatePlaying
	changed := d.session.ObserveTrack(session.Track{
		Title:      snap.Track.Title,
		Artist:     snap.Track.Artist,
		Album:      snap.Track.Album,
		DurationMs: snap.Track.Duration.Milliseconds(),
	})

	switch {
	case snap.HasPosition:
		d.clock.Sample(snap.Position.Milliseconds(), playing)
	case changed || (d.clock.Tier() == clock.TierNone && snap.Track.Title != ""):
		d.clock.Seed()
		d.clock.SetPlaying(playing)
	default:
		d.clock.SetPlaying(playing)
	}

	if changed {
		d.publish(EventTrack, true)
		return
	}
	if prev != snap.State {
		d.publish(EventPlayback, true)
	}
}

// handleCompletion applies background work to the session
func (d *Daemon) handleCompletion(c session.Completion) {
	if !d.session.Apply(c) {
		return
	}
	if c.Kind == session.KindSearch {
		d.publish(EventResults, false)
		return
	}
	d.tick()
	d.publish(EventLyrics, true)
}

// tick advances the active line from the clock estimate
func (d *Daemon) tick() {
	pos, ok := d.clock.Position()
	if !ok {
		return
	}
	if !d.session.OnPositionTick(pos) {
		if err := d.state.Update(d.nowPlaying()); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to update state file")
		}
		return
	}

	line, _ := d.session.Line(0)
	d.logger.Debug().
		Int("index", d.session.Index()).
		Int64("position_ms", pos).
		Str("line", line).
		Msg("Line changed")

	d.publish(EventLine, false)
}

// publish notifies subscribers and records the state file. Immediate
// writes are used for track and state changes, line changes are throttled.
func (d *Daemon) publish(kind EventKind, immediate bool) {
	v := d.view()

	np := d.nowPlaying()
	var err error
	if immediate {
		err = d.state.Set(np)
	} else {
		err = d.state.Update(np)
	}
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to write state file")
	}

	ev := Event{Kind: kind, View: v}
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for id, ch := range d.subscribers {
		select {
		case ch <- ev:
		default:
			d.logger.Debug().Int("subscriber", id).Str("kind", kind.String()).Msg("Subscriber slow, dropping event")
		}
	}
}

// view builds a snapshot of the session for presentation
func (d *Daemon) view() View {
	v := View{
		Track:     d.session.Track(),
		State:     d.session.State(),
		PlayState: d.playState,
		Index:     d.session.Index(),
		OffsetMs:  d.session.OffsetMs(),
		Origin:    d.session.Origin(),
		Tier:      d.clock.Tier(),
		Results:   d.session.Results(),
	}
	v.PositionMs, _ = d.clock.Position()
	v.Line, _ = d.session.Line(0)
	v.Next, _ = d.session.Line(1)
	if doc := d.session.Document(); !doc.Empty() {
		v.Lines = make([]string, len(doc.Lines))
		for i, l := range doc.Lines {
			v.Lines[i] = l.Text
		}
	}
	return v
}

func (d *Daemon) nowPlaying() NowPlaying {
	t := d.session.Track()
	np := NowPlaying{
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		DurationMs: t.DurationMs,
		PlayState:  d.playState.String(),
		Lyrics:     d.session.State().String(),
		Index:      d.session.Index(),
		Tier:       d.clock.Tier().String(),
		OffsetMs:   d.session.OffsetMs(),
		UpdatedAt:  time.Now(),
	}
	np.PositionMs, _ = d.clock.Position()
	np.Line, _ = d.session.Line(0)
	np.Next, _ = d.session.Line(1)
	return np
}

// do runs fn on the loop goroutine and waits for it to finish
func (d *Daemon) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case d.commands <- wrapped:
	case <-d.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-d.done:
		return ErrNotRunning
	}
}

// View returns the current session snapshot
func (d *Daemon) View(ctx context.Context) (View, error) {
	var v View
	err := d.do(ctx, func() { v = d.view() })
	return v, err
}

// AdjustSync shifts the current lyrics by deltaMs
func (d *Daemon) AdjustSync(ctx context.Context, deltaMs int64) error {
	return d.do(ctx, func() {
		if !d.session.State().HasLyrics() {
			return
		}
		d.session.ApplySyncAdjustment(deltaMs)
		d.tick()
		d.publish(EventOffset, false)
	})
}

// Search queries lyric providers. Results arrive as an EventResults.
func (d *Daemon) Search(ctx context.Context, query string) error {
	return d.do(ctx, func() { d.session.Search(query) })
}

// Download fetches a search result and applies it as manual lyrics
func (d *Daemon) Download(ctx context.Context, id string) error {
	return d.do(ctx, func() { d.session.Download(id) })
}

// ProvideLyrics replaces the current lyrics with raw LRC content
func (d *Daemon) ProvideLyrics(ctx context.Context, raw string) error {
	return d.do(ctx, func() {
		if !d.session.OnManualContentProvided(raw) {
			return
		}
		d.tick()
		d.publish(EventLyrics, true)
	})
}

// Results returns the most recent search results
func (d *Daemon) Results(ctx context.Context) ([]lyrics.Result, error) {
	var results []lyrics.Result
	err := d.do(ctx, func() { results = d.session.Results() })
	return results, err
}

// Controller returns the connector's playback controls, if it has them
func (d *Daemon) Controller() (player.Controller, error) {
	c, ok := d.connector.(player.Controller)
	if !ok {
		return nil, ErrNoController
	}
	return c, nil
}

// Subscribe registers for events. The returned function unsubscribes and
// closes the channel. Events are dropped for subscribers that fall behind.
func (d *Daemon) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)

	d.subMu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subscribers[id] = ch
	d.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.subMu.Lock()
			delete(d.subscribers, id)
			d.subMu.Unlock()
			close(ch)
		})
	}
}

// Shutdown gracefully shuts down the daemon
func (d *Daemon) Shutdown() error {
	d.logger.Info().Msg("Shutting down daemon")

	d.session.Close()

	if err := d.state.Flush(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to flush state")
	}

	if c, ok := d.connector.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close connector: %w", err)
		}
	}

	return nil
}
