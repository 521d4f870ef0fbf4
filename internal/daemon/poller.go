package daemon

import (
	"context"
	"time"

	"github.com/jfmyers9/lyricsync/internal/player"
	"github.com/rs/zerolog"
)

// SnapshotUpdate represents one reading of the player
type SnapshotUpdate struct {
	Snapshot player.Snapshot
	Err      error // Error from the connector, Snapshot.State is StateError
}

// Poller polls the player connector at regular intervals
type Poller struct {
	connector player.Connector
	interval  time.Duration
	logger    zerolog.Logger
}

// NewPoller creates a new Poller instance
func NewPoller(connector player.Connector, interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		connector: connector,
		interval:  interval,
		logger:    logger.With().Str("component", "poller").Logger(),
	}
}

// Run starts the polling loop and sends updates to the provided channel
// Blocks until context is cancelled
func (p *Poller) Run(ctx context.Context, updates chan<- SnapshotUpdate) error {
	p.logger.Info().
		Str("connector", p.connector.Name()).
		Dur("interval", p.interval).
		Msg("Starting poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Poll immediately on start
	p.poll(ctx, updates)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx, updates)
		}
	}
}

// poll queries the connector and sends an update
func (p *Poller) poll(ctx context.Context, updates chan<- SnapshotUpdate) {
	pollCtx, cancel := context.WithTimeout(ctx, p.interval*2)
	snap, err := p.connector.GetState(pollCtx)
	cancel()

	if err != nil {
		p.logger.Debug().Err(err).Msg("Error reading player state")
		snap.State = player.StateError
	} else if snap.State != player.StateStopped {
		p.logger.Trace().
			Str("track", snap.Track.Title).
			Str("artist", snap.Track.Artist).
			Str("state", snap.State.String()).
			Dur("position", snap.Position).
			Msg("Poll update")
	}

	select {
	case updates <- SnapshotUpdate{Snapshot: snap, Err: err}:
	case <-ctx.Done():
	}
}
