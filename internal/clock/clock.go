// Package clock estimates a continuously advancing playback position from
// intermittent player samples.
package clock

import (
	"sync"
	"time"
)

// Tier describes where the current estimate comes from
type Tier int

const (
	TierNone      Tier = iota // Stopped or unreachable player, no estimate
	TierExact                 // Extrapolated from an exact player sample
	TierEstimated             // Local wall clock started at track detection
)

// String returns a human-readable representation of the Tier
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierExact:
		return "exact"
	case TierEstimated:
		return "estimated"
	default:
		return "unknown"
	}
}

// Estimator tracks playback position between player polls.
//
// With exact samples it extrapolates lastSample + elapsed while playing.
// Without them it runs a local clock from the moment the track was first
// seen. An exact sample arriving later recalibrates the local clock so both
// paths agree.
type Estimator struct {
	mu  sync.Mutex
	now func() time.Time

	tier Tier

	sampleMs int64
	sampleAt time.Time

	localStart time.Time
	pausedAt   time.Time
	playing    bool
}

// New creates an Estimator. A nil now uses time.Now.
func New(now func() time.Time) *Estimator {
	if now == nil {
		now = time.Now
	}
	return &Estimator{now: now}
}

// Seed starts the local clock for a newly detected track
func (e *Estimator) Seed() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.tier = TierEstimated
	e.localStart = now
	e.pausedAt = time.Time{}
	e.sampleAt = time.Time{}
	e.sampleMs = 0
	e.playing = true
}

// Sample records an exact position reported by the player
func (e *Estimator) Sample(positionMs int64, playing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if positionMs < 0 {
		positionMs = 0
	}
	e.tier = TierExact
	e.sampleMs = positionMs
	e.sampleAt = now
	e.playing = playing

	e.localStart = now.Add(-time.Duration(positionMs) * time.Millisecond)
	if playing {
		e.pausedAt = time.Time{}
	} else {
		e.pausedAt = now
	}
}

// SetPlaying freezes or resumes the local clock for players that report
// play state but no position. It has no effect on exact samples.
func (e *Estimator) SetPlaying(playing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tier != TierEstimated || playing == e.playing {
		return
	}

	now := e.now()
	if playing {
		if !e.pausedAt.IsZero() {
			e.localStart = e.localStart.Add(now.Sub(e.pausedAt))
		}
		e.pausedAt = time.Time{}
	} else {
		e.pausedAt = now
	}
	e.playing = playing
}

// Halt drops the estimate until the next Seed or Sample
func (e *Estimator) Halt() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tier = TierNone
	e.playing = false
}

// Position returns the estimated position in milliseconds, or false when no
// estimate is available.
func (e *Estimator) Position() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var pos int64
	switch e.tier {
	case TierExact:
		pos = e.sampleMs
		if e.playing {
			pos += e.now().Sub(e.sampleAt).Milliseconds()
		}
	case TierEstimated:
		end := e.now()
		if !e.pausedAt.IsZero() {
			end = e.pausedAt
		}
		pos = end.Sub(e.localStart).Milliseconds()
	default:
		return 0, false
	}

	if pos < 0 {
		pos = 0
	}
	return pos, true
}

// Tier reports which source produced the current estimate
func (e *Estimator) Tier() Tier {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tier
}

// Playing reports whether the estimate is advancing
func (e *Estimator) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tier != TierNone && e.playing
}
