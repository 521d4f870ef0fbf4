package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultNetEaseURL is the public NetEase Cloud Music endpoint
const DefaultNetEaseURL = "https://music.163.com"

const neteaseSearchLimit = 10

// NetEaseConfig configures the NetEase provider
type NetEaseConfig struct {
	HTTPClient *http.Client // Optional, defaults to a 10s timeout client
	BaseURL    string       // Optional, defaults to DefaultNetEaseURL
	Cookie     string       // Optional account cookie
}

// NetEase serves lyrics from NetEase Cloud Music
type NetEase struct {
	httpClient *http.Client
	baseURL    string
	cookie     string
}

type neteaseSong struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
}

type neteaseSearchResponse struct {
	Result struct {
		Songs []neteaseSong `json:"songs"`
	} `json:"result"`
}

type neteaseLyricResponse struct {
	NoLyric     bool `json:"nolyric"`
	Uncollected bool `json:"uncollected"`
	Lrc         struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
}

// NewNetEase creates a NetEase provider
func NewNetEase(cfg NetEaseConfig) *NetEase {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultNetEaseURL
	}
	return &NetEase{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookie:     cfg.Cookie,
	}
}

// Name implements Provider
func (p *NetEase) Name() string {
	return "netease"
}

// Fetch searches for the track and downloads the best match
func (p *NetEase) Fetch(ctx context.Context, q Query) (string, error) {
	songs, err := p.search(ctx, strings.TrimSpace(q.Title+" "+q.Artist))
	if err != nil {
		return "", err
	}
	if len(songs) == 0 {
		return "", ErrNotFound
	}

	song := bestMatch(songs, q.Title, q.Artist)
	return p.lyric(ctx, song.ID)
}

// Search lists matching songs
func (p *NetEase) Search(ctx context.Context, query string) ([]Result, error) {
	songs, err := p.search(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(songs))
	for _, song := range songs {
		results = append(results, Result{
			Source: p.Name(),
			ID:     ResultID(p.Name(), strconv.FormatInt(song.ID, 10)),
			Title:  song.Name,
			Artist: joinArtists(song),
			Album:  song.Album.Name,
		})
	}
	return results, nil
}

// Download fetches lyrics by NetEase song id
func (p *NetEase) Download(ctx context.Context, id string) (string, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid netease id %q: %w", id, err)
	}
	return p.lyric(ctx, n)
}

func (p *NetEase) search(ctx context.Context, s string) ([]neteaseSong, error) {
	form := url.Values{}
	form.Set("s", s)
	form.Set("type", "1")
	form.Set("limit", strconv.Itoa(neteaseSearchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/search/get", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp neteaseSearchResponse
	if err := p.do(req, &resp); err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	return resp.Result.Songs, nil
}

func (p *NetEase) lyric(ctx context.Context, id int64) (string, error) {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(id, 10))
	params.Set("lv", "-1")
	params.Set("kv", "-1")
	params.Set("tv", "-1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/song/lyric?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create lyric request: %w", err)
	}

	var resp neteaseLyricResponse
	if err := p.do(req, &resp); err != nil {
		return "", fmt.Errorf("failed to get lyric: %w", err)
	}
	if resp.NoLyric || resp.Uncollected || resp.Lrc.Lyric == "" {
		return "", ErrNotFound
	}
	return resp.Lrc.Lyric, nil
}

func (p *NetEase) do(req *http.Request, out interface{}) error {
	req.Header.Set("Referer", p.baseURL+"/")
	req.Header.Set("Origin", p.baseURL)
	req.Header.Set("Accept", "application/json")
	if p.cookie != "" {
		req.Header.Set("Cookie", p.cookie)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// bestMatch prefers a song whose name contains the title and whose first
// artist contains the artist, falling back to the first song.
func bestMatch(songs []neteaseSong, title, artist string) neteaseSong {
	title = strings.ToLower(title)
	artist = strings.ToLower(artist)
	for _, song := range songs {
		if !strings.Contains(strings.ToLower(song.Name), title) || len(song.Artists) == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(song.Artists[0].Name), artist) {
			return song
		}
	}
	return songs[0]
}

func joinArtists(song neteaseSong) string {
	names := make([]string, 0, len(song.Artists))
	for _, a := range song.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
