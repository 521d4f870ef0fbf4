package lrclib

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Get looks up the record matching a track signature.
//
// Album and Duration are optional but improve matching. Returns ErrNotFound
// when no record matches.
//
// Example:
//
//	rec, err := client.Get(ctx, lrclib.Signature{
//	    Track:  "Yesterday",
//	    Artist: "The Beatles",
//	})
func (c *Client) Get(ctx context.Context, sig Signature) (*Record, error) {
	if sig.Track == "" {
		return nil, fmt.Errorf("lrclib: track name required")
	}

	params := url.Values{}
	params.Set("track_name", sig.Track)
	params.Set("artist_name", sig.Artist)
	if sig.Album != "" {
		params.Set("album_name", sig.Album)
	}
	if secs := int64(sig.Duration.Seconds()); secs > 0 {
		params.Set("duration", strconv.FormatInt(secs, 10))
	}

	var rec Record
	if err := c.get(ctx, "/api/get", params, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByID looks up a record by its LRCLIB id.
func (c *Client) GetByID(ctx context.Context, id int64) (*Record, error) {
	var rec Record
	if err := c.get(ctx, "/api/get/"+strconv.FormatInt(id, 10), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Search returns records matching the query. At least one of Q or Track
// must be set. An empty result is not an error.
func (c *Client) Search(ctx context.Context, q Query) ([]Record, error) {
	if q.Q == "" && q.Track == "" {
		return nil, fmt.Errorf("lrclib: query or track name required")
	}

	params := url.Values{}
	if q.Q != "" {
		params.Set("q", q.Q)
	}
	if q.Track != "" {
		params.Set("track_name", q.Track)
	}
	if q.Artist != "" {
		params.Set("artist_name", q.Artist)
	}
	if q.Album != "" {
		params.Set("album_name", q.Album)
	}

	var records []Record
	if err := c.get(ctx, "/api/search", params, &records); err != nil {
		return nil, err
	}
	return records, nil
}
