// Package discord mirrors the active lyric line to Discord Rich Presence.
package discord

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/lyricsync/internal/daemon"
	"github.com/jfmyers9/lyricsync/internal/player"
)

// Discord accepts roughly five activity updates per 20 seconds
const defaultMinInterval = 4 * time.Second

type rpcClient interface {
	SetActivity(Activity) error
	Close() error
}

// Presence manages Discord Rich Presence updates.
type Presence struct {
	appID       string
	logger      zerolog.Logger
	client      rpcClient
	connect     func(string) (rpcClient, error)
	artwork     *artworkLookup
	now         func() time.Time
	minInterval time.Duration

	last     shown
	lastSent time.Time
	pending  *daemon.View
}

// shown is what the last activity displayed
type shown struct {
	title, artist, line string
	playing             bool
}

func New(appID string, logger zerolog.Logger) *Presence {
	return &Presence{
		appID:  appID,
		logger: logger.With().Str("component", "discord").Logger(),
		connect: func(appID string) (rpcClient, error) {
			return ipcConnect(appID)
		},
		artwork:     newArtworkLookup(),
		now:         time.Now,
		minInterval: defaultMinInterval,
	}
}

// Run consumes daemon events and sets Discord Rich Presence.
// Connects lazily on the first playing track. If Discord isn't
// running, logs the error and retries on the next update.
func (p *Presence) Run(ctx context.Context, events <-chan daemon.Event) {
	ticker := time.NewTicker(p.minInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.clearActivity()
			p.close()
			return
		case ev, ok := <-events:
			if !ok {
				p.close()
				return
			}
			if ev.Kind == daemon.EventResults {
				continue
			}
			p.handleView(ctx, ev.View)
		case <-ticker.C:
			if p.pending != nil {
				v := *p.pending
				p.pending = nil
				p.handleView(ctx, v)
			}
		}
	}
}

func (p *Presence) handleView(ctx context.Context, v daemon.View) {
	if v.Track.Title == "" || v.PlayState != player.StatePlaying {
		p.pending = nil
		if p.last.playing {
			p.clearActivity()
			p.last = shown{}
		}
		return
	}

	cur := shown{
		title:   v.Track.Title,
		artist:  v.Track.Artist,
		line:    v.Line,
		playing: true,
	}
	if cur == p.last {
		return
	}

	// Line changes are rate limited. Track changes go out at once.
	sameTrack := cur.title == p.last.title && cur.artist == p.last.artist
	if sameTrack && p.now().Sub(p.lastSent) < p.minInterval {
		p.pending = &v
		return
	}

	if err := p.ensureConnected(); err != nil {
		p.logger.Warn().Err(err).Msg("Discord not available")
		return
	}

	if err := p.client.SetActivity(p.activity(ctx, v)); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to set activity")
		p.close()
		return
	}
	p.last = cur
	p.lastSent = p.now()
	p.pending = nil
}

// activity builds the presence for v: the active line as details and the
// track underneath.
func (p *Presence) activity(ctx context.Context, v daemon.View) Activity {
	details := v.Line
	if details == "" {
		details = "♪"
	}
	state := v.Track.Title
	if v.Track.Artist != "" {
		state += " by " + v.Track.Artist
	}

	start := p.now().Add(-time.Duration(v.PositionMs) * time.Millisecond)
	startUnix := start.UnixMilli()
	ts := &Timestamps{Start: &startUnix}
	if v.Track.DurationMs > 0 {
		endUnix := start.Add(time.Duration(v.Track.DurationMs) * time.Millisecond).UnixMilli()
		ts.End = &endUnix
	}

	var largeImage string
	if p.artwork != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		largeImage = p.artwork.Lookup(lookupCtx, v.Track.Title, v.Track.Artist, v.Track.Album)
		cancel()
	}

	largeText := v.Track.Album
	if largeText == "" {
		largeText = v.Track.Title
	}

	return Activity{
		Type:       2, // Listening
		Name:       "lyricsync",
		Details:    truncate(details, 128),
		State:      truncate(state, 128),
		Timestamps: ts,
		Assets: &Assets{
			LargeImage: largeImage,
			LargeText:  truncate(largeText, 128),
			SmallImage: "lyricsync",
			SmallText:  "lyricsync",
		},
	}
}

// truncate limits s to n runes, the cap Discord applies to text fields
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (p *Presence) ensureConnected() error {
	if p.client != nil {
		return nil
	}
	client, err := p.connect(p.appID)
	if err != nil {
		return err
	}
	p.logger.Info().Msg("Connected to Discord")
	p.client = client
	return nil
}

func (p *Presence) clearActivity() {
	if p.client == nil {
		return
	}
	if err := p.client.SetActivity(Activity{}); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to clear activity")
		p.close()
	}
}

func (p *Presence) close() {
	if p.client == nil {
		return
	}
	_ = p.client.Close()
	p.client = nil
}
