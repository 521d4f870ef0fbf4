package lyrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Manager runs lookups across providers in order
type Manager struct {
	providers []Provider
	logger    zerolog.Logger
}

// NewManager creates a Manager. Providers are tried in the given order.
func NewManager(logger zerolog.Logger, providers ...Provider) *Manager {
	m := &Manager{
		providers: providers,
		logger:    logger.With().Str("component", "lyrics").Logger(),
	}

	names := m.ProviderNames()
	if len(names) == 0 {
		m.logger.Warn().Msg("No lyric providers configured")
	} else {
		m.logger.Debug().Strs("providers", names).Msg("Lyric providers initialized")
	}
	return m
}

// ProviderNames returns the configured provider names in order
func (m *Manager) ProviderNames() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return names
}

// Fetch returns the first synced lyrics any provider has for the track.
// Returns ErrNotFound when every provider comes back empty.
func (m *Manager) Fetch(ctx context.Context, q Query) (string, error) {
	var lastErr error
	for _, p := range m.providers {
		f, ok := p.(Fetcher)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		content, err := f.Fetch(ctx, q)
		if err == nil && IsSynced(content) {
			m.logger.Info().
				Str("provider", p.Name()).
				Str("track", q.Title).
				Str("artist", q.Artist).
				Msg("Found lyrics")
			return content, nil
		}

		if err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.Warn().
				Err(err).
				Str("provider", p.Name()).
				Str("track", q.Title).
				Msg("Provider failed")
			lastErr = err
			continue
		}
		m.logger.Debug().
			Str("provider", p.Name()).
			Str("track", q.Title).
			Msg("Provider has no synced lyrics")
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: last error: %v", ErrNotFound, lastErr)
	}
	return "", ErrNotFound
}

// Search concatenates results from every searching provider. A failing
// provider is logged and skipped.
func (m *Manager) Search(ctx context.Context, query string) ([]Result, error) {
	var results []Result
	for _, p := range m.providers {
		s, ok := p.(Searcher)
		if !ok {
			continue
		}

		found, err := s.Search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			m.logger.Warn().Err(err).Str("provider", p.Name()).Str("query", query).Msg("Search failed")
			continue
		}
		results = append(results, found...)
	}

	m.logger.Debug().Str("query", query).Int("results", len(results)).Msg("Search complete")
	return results, nil
}

// Download retrieves the lyrics of a search result by its prefixed id
func (m *Manager) Download(ctx context.Context, id string) (string, error) {
	name, rest, ok := SplitID(id)
	if !ok {
		return "", fmt.Errorf("invalid result id %q", id)
	}

	for _, p := range m.providers {
		if p.Name() != name {
			continue
		}
		d, ok := p.(Downloader)
		if !ok {
			return "", fmt.Errorf("provider %s does not support download", name)
		}
		content, err := d.Download(ctx, rest)
		if err != nil {
			return "", err
		}
		m.logger.Info().Str("provider", name).Str("id", rest).Msg("Downloaded lyrics")
		return content, nil
	}
	return "", fmt.Errorf("unknown provider %q", name)
}
