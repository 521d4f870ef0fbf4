package lyrics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jfmyers9/lyricsync/pkg/lrclib"
)

// LRCLIB serves synced lyrics from lrclib.net
type LRCLIB struct {
	client *lrclib.Client
}

// NewLRCLIB wraps an LRCLIB API client
func NewLRCLIB(client *lrclib.Client) *LRCLIB {
	return &LRCLIB{client: client}
}

// Name implements Provider
func (p *LRCLIB) Name() string {
	return "lrclib"
}

// Fetch looks up the exact track signature. Records with only plain lyrics
// count as not found.
func (p *LRCLIB) Fetch(ctx context.Context, q Query) (string, error) {
	rec, err := p.client.Get(ctx, lrclib.Signature{
		Track:    q.Title,
		Artist:   q.Artist,
		Album:    q.Album,
		Duration: time.Duration(q.DurationMs) * time.Millisecond,
	})
	if err != nil {
		if errors.Is(err, lrclib.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get lyrics: %w", err)
	}
	if !rec.HasSynced() {
		return "", ErrNotFound
	}
	return rec.SyncedLyrics, nil
}

// Search returns records that carry synced lyrics
func (p *LRCLIB) Search(ctx context.Context, query string) ([]Result, error) {
	records, err := p.client.Search(ctx, lrclib.Query{Q: query})
	if err != nil {
		if errors.Is(err, lrclib.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		if !rec.HasSynced() {
			continue
		}
		results = append(results, Result{
			Source: p.Name(),
			ID:     ResultID(p.Name(), strconv.FormatInt(rec.ID, 10)),
			Title:  rec.TrackName,
			Artist: rec.ArtistName,
			Album:  rec.AlbumName,
		})
	}
	return results, nil
}

// Download fetches a record by its numeric id
func (p *LRCLIB) Download(ctx context.Context, id string) (string, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid lrclib id %q: %w", id, err)
	}

	rec, err := p.client.GetByID(ctx, n)
	if err != nil {
		if errors.Is(err, lrclib.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get lyrics: %w", err)
	}
	if !rec.HasSynced() {
		return "", ErrNotFound
	}
	return rec.SyncedLyrics, nil
}
