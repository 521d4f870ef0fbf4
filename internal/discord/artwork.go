package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultArtworkEndpoint = "https://itunes.apple.com/search"

// negativeCacheTTL is how long a miss is remembered before retrying
const negativeCacheTTL = 10 * time.Minute

// artworkLookup finds cover art URLs through the iTunes Search API. Hits
// are cached for the life of the process, misses for negativeCacheTTL.
type artworkLookup struct {
	mu       sync.Mutex
	cache    map[string]artworkEntry
	client   *http.Client
	endpoint string
	now      func() time.Time
}

type artworkEntry struct {
	url     string
	checked time.Time
}

func newArtworkLookup() *artworkLookup {
	return &artworkLookup{
		cache:    make(map[string]artworkEntry),
		client:   &http.Client{Timeout: 3 * time.Second},
		endpoint: defaultArtworkEndpoint,
		now:      time.Now,
	}
}

type itunesResponse struct {
	Results []itunesResult `json:"results"`
}

type itunesResult struct {
	ArtworkURL100 string `json:"artworkUrl100"`
}

// Lookup returns a cover URL for the track, or "" when none is found.
// The album is searched first; tracks without one, or whose album misses,
// fall back to a song search.
func (a *artworkLookup) Lookup(ctx context.Context, title, artist, album string) string {
	key := strings.ToLower(artist + "|" + album + "|" + title)
	a.mu.Lock()
	if e, ok := a.cache[key]; ok && (e.url != "" || a.now().Sub(e.checked) < negativeCacheTTL) {
		a.mu.Unlock()
		return e.url
	}
	a.mu.Unlock()

	var art string
	if album != "" {
		art = a.fetch(ctx, artist+" "+album, "album")
	}
	if art == "" && title != "" {
		art = a.fetch(ctx, artist+" "+title, "song")
	}

	a.mu.Lock()
	a.cache[key] = artworkEntry{url: art, checked: a.now()}
	a.mu.Unlock()

	return art
}

func (a *artworkLookup) fetch(ctx context.Context, term, entity string) string {
	query := url.Values{
		"term":   {term},
		"entity": {entity},
		"limit":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", a.endpoint, query.Encode()), nil)
	if err != nil {
		return ""
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var result itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ""
	}
	if len(result.Results) == 0 || result.Results[0].ArtworkURL100 == "" {
		return ""
	}

	// Upscale from 100x100 to 600x600 for better quality
	return strings.Replace(result.Results[0].ArtworkURL100, "100x100bb", "600x600bb", 1)
}
