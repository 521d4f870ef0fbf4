package session

import (
	"context"

	"github.com/jfmyers9/lyricsync/internal/lyrics"
)

// Kind identifies the background job that produced a Completion
type Kind int

const (
	KindLoad     Kind = iota // Cache lookup then provider fetch
	KindSearch               // Provider search
	KindDownload             // Download of a chosen search result
	KindSave                 // Cache write
)

// String returns a human-readable representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "load"
	case KindSearch:
		return "search"
	case KindDownload:
		return "download"
	case KindSave:
		return "save"
	default:
		return "unknown"
	}
}

// Where loaded lyrics came from
const (
	OriginCache    = "cache"
	OriginProvider = "provider"
	OriginManual   = "manual"
)

// Completion is the result of a background job, tagged with the track it
// was issued for.
type Completion struct {
	Key     TrackKey
	Kind    Kind
	Content string
	Origin  string
	Results []lyrics.Result
	Err     error
}

// dispatch runs job in the background and queues its result for Apply
func (s *Session) dispatch(kind Kind, job func(ctx context.Context) Completion) {
	key := s.key
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		c := job(ctx)
		cancel()

		c.Key = key
		c.Kind = kind
		select {
		case s.completions <- c:
		case <-s.ctx.Done():
		}
	}()
}

// saveJob is a queued cache write for the track that was current when it
// was queued
type saveJob struct {
	key TrackKey
	run func() Completion
}

// queueSave appends a cache write. The save loop runs writes one at a time
// in the order they were queued, so the last adjustment is the one on disk.
func (s *Session) queueSave(run func() Completion) {
	s.saveMu.Lock()
	s.saves = append(s.saves, saveJob{key: s.key, run: run})
	s.saveMu.Unlock()

	select {
	case s.saveWake <- struct{}{}:
	default:
	}
}

func (s *Session) popSave() (saveJob, bool) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if len(s.saves) == 0 {
		return saveJob{}, false
	}
	job := s.saves[0]
	s.saves[0] = saveJob{}
	s.saves = s.saves[1:]
	return job, true
}

// saveLoop drains the save queue until the session is closed. Writes still
// queued at Close are run without reporting.
func (s *Session) saveLoop() {
	defer s.wg.Done()
	for {
		for job, ok := s.popSave(); ok; job, ok = s.popSave() {
			c := job.run()
			c.Key = job.key
			c.Kind = KindSave
			select {
			case s.completions <- c:
			case <-s.ctx.Done():
			}
		}

		select {
		case <-s.saveWake:
		case <-s.ctx.Done():
			for job, ok := s.popSave(); ok; job, ok = s.popSave() {
				job.run()
			}
			return
		}
	}
}

// loadJob looks in the cache first, then asks the source
func (s *Session) loadJob(t Track) func(ctx context.Context) Completion {
	return func(ctx context.Context) Completion {
		if s.cache != nil && !s.noCache {
			content, ok, err := s.cache.Load(t.Title, t.Artist)
			if err != nil {
				s.logger.Warn().Err(err).Str("track", t.Title).Msg("Failed to read cache")
			}
			if ok && content != "" {
				return Completion{Content: content, Origin: OriginCache}
			}
		}

		if s.source == nil {
			return Completion{Err: lyrics.ErrNotFound}
		}

		content, err := s.source.Fetch(ctx, lyrics.Query{
			Title:      t.Title,
			Artist:     t.Artist,
			Album:      t.Album,
			DurationMs: t.DurationMs,
		})
		if err != nil {
			return Completion{Err: err}
		}
		return Completion{Content: content, Origin: OriginProvider}
	}
}
